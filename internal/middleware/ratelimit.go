package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"koydenal/internal/models"
	"koydenal/internal/observability"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
)

// Limit is a named fixed-window request quota.
type Limit struct {
	Name   string
	Max    int
	Window time.Duration
}

// Quotas used by the public API. Search and submission quotas come from config.
var (
	RegisterLimit   = Limit{Name: "register", Max: 5, Window: 10 * time.Minute}
	LoginLimit      = Limit{Name: "login", Max: 10, Window: 5 * time.Minute}
	AdminLoginLimit = Limit{Name: "admin_login", Max: 5, Window: 5 * time.Minute}
	MessageLimit    = Limit{Name: "listing_message", Max: 10, Window: 10 * time.Minute}
)

// SearchLimit bounds search-as-you-type traffic per caller.
func SearchLimit(perMinute int) Limit {
	return Limit{Name: "search", Max: perMinute, Window: time.Minute}
}

// SubmitLimit bounds listing submissions per caller. Guest and account
// submissions share the window.
func SubmitLimit(perHour int) Limit {
	return Limit{Name: "submit_listing", Max: perHour, Window: time.Hour}
}

// Usage is a caller's position inside the current window after one hit.
type Usage struct {
	Count     int64
	Remaining int
	ResetIn   time.Duration
}

// Allowed reports whether the hit fit within the limit.
func (u Usage) Allowed(l Limit) bool {
	return u.Count <= int64(l.Max)
}

var errNoRateStore = errors.New("rate limit store unavailable")

// rateLimitBypassed is true in development and test.
func rateLimitBypassed() bool {
	switch os.Getenv("APP_ENV") {
	case "", "development", "test":
		return true
	}
	return false
}

// Hit counts one request for caller against l and returns the resulting usage.
// The window starts at the first hit and is not extended by later ones.
func Hit(ctx context.Context, rdb *redis.Client, l Limit, caller string) (Usage, error) {
	if rdb == nil {
		return Usage{}, errNoRateStore
	}

	key := fmt.Sprintf("rl:%s:%s", l.Name, caller)
	var incr *redis.IntCmd
	var ttl *redis.DurationCmd
	_, err := rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, key)
		pipe.ExpireNX(ctx, key, l.Window)
		ttl = pipe.PTTL(ctx, key)
		return nil
	})
	if err != nil {
		return Usage{}, err
	}

	u := Usage{Count: incr.Val(), ResetIn: ttl.Val()}
	if u.ResetIn < 0 {
		u.ResetIn = l.Window
	}
	if rem := l.Max - int(u.Count); rem > 0 {
		u.Remaining = rem
	}
	return u, nil
}

// callerKey keys by the authenticated user when present, otherwise by remote IP.
func callerKey(c *fiber.Ctx) string {
	if uid := c.Locals("userID"); uid != nil {
		return fmt.Sprintf("user:%v", uid)
	}
	return "ip:" + c.IP()
}

// RateLimit enforces l per caller. It fails open when Redis is unavailable and
// is a no-op in development and test.
func RateLimit(rdb *redis.Client, l Limit) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if rateLimitBypassed() || l.Max <= 0 {
			return c.Next()
		}

		usage, err := Hit(c.UserContext(), rdb, l, callerKey(c))
		if err != nil {
			observability.RateLimitDecisions.WithLabelValues(l.Name, "store_error").Inc()
			Logger.WarnContext(c.UserContext(), "rate limit check failed, allowing request",
				slog.String("limit", l.Name), slog.String("error", err.Error()))
			return c.Next()
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(l.Max))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(usage.Remaining))

		if !usage.Allowed(l) {
			observability.RateLimitDecisions.WithLabelValues(l.Name, "limited").Inc()
			retry := int(usage.ResetIn.Round(time.Second) / time.Second)
			if retry < 1 {
				retry = 1
			}
			c.Set(fiber.HeaderRetryAfter, strconv.Itoa(retry))
			return models.RespondWithError(c, fiber.StatusTooManyRequests, models.NewRateLimitedError())
		}

		observability.RateLimitDecisions.WithLabelValues(l.Name, "allowed").Inc()
		return c.Next()
	}
}
