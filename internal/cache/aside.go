package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"koydenal/internal/middleware"

	"github.com/redis/go-redis/v9"
)

const (
	CategoriesKey     = "categories:active"
	ListingKeyPrefix  = "listing:%s"
	AdminStatsKey     = "admin:stats"
	TokenBlacklistFmt = "blacklist:%s"
)

const (
	CategoriesTTL = 30 * time.Minute
	ListingTTL    = 5 * time.Minute
	AdminStatsTTL = 30 * time.Second
)

func ListingKey(id fmt.Stringer) string {
	return fmt.Sprintf(ListingKeyPrefix, id.String())
}

func BlacklistKey(jti string) string {
	return fmt.Sprintf(TokenBlacklistFmt, jti)
}

// Aside loads key into dest, calling fetch and caching the JSON result on a miss.
// Redis failures fall through to fetch.
func Aside(ctx context.Context, key string, dest interface{}, ttl time.Duration, fetch func() error) error {
	if client == nil {
		return fetch()
	}

	raw, err := client.Get(ctx, key).Bytes()
	if err == nil {
		if jsonErr := json.Unmarshal(raw, dest); jsonErr == nil {
			return nil
		}
		client.Del(ctx, key)
	} else if !errors.Is(err, redis.Nil) {
		middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}

	if err := fetch(); err != nil {
		return err
	}

	payload, err := json.Marshal(dest)
	if err != nil {
		return nil
	}
	if err := client.Set(ctx, key, payload, ttl).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}

func Invalidate(ctx context.Context, keys ...string) {
	if client != nil && len(keys) > 0 {
		client.Del(ctx, keys...)
	}
}

func InvalidateCategories(ctx context.Context) {
	Invalidate(ctx, CategoriesKey)
}

// InvalidateListing drops the cached listing and the admin dashboard counts.
func InvalidateListing(ctx context.Context, id fmt.Stringer) {
	Invalidate(ctx, ListingKey(id), AdminStatsKey)
}
