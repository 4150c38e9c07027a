// Package notifications publishes listing workflow events over Redis pub/sub.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"koydenal/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Event types.
const (
	EventListingSubmitted = "listing_submitted"
	EventListingReviewed  = "listing_reviewed"
)

// AdminChannel receives every new submission.
const AdminChannel = "koydenal:admin:listings"

// Event is the JSON payload published on notification channels.
type Event struct {
	Type      string                `json:"type"`
	ListingID uuid.UUID             `json:"listing_id"`
	Title     string                `json:"title"`
	Status    models.ApprovalStatus `json:"status"`
	Guest     bool                  `json:"guest"`
	Reason    string                `json:"reason,omitempty"`
	At        time.Time             `json:"at"`
}

// UserChannel is the channel for events about listings owned by userID.
func UserChannel(userID uuid.UUID) string {
	return "koydenal:user:" + userID.String()
}

// Notifier provides helpers to publish workflow events into Redis channels.
type Notifier struct {
	rdb *redis.Client
	now func() time.Time
}

// NewNotifier creates a new Notifier. A nil client turns every publish into a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb, now: time.Now}
}

// ListingSubmitted tells admins a listing is waiting for review.
func (n *Notifier) ListingSubmitted(ctx context.Context, l *models.Listing) error {
	return n.publish(ctx, AdminChannel, n.event(EventListingSubmitted, l))
}

// ListingReviewed tells the owner their listing was approved or rejected.
// Guest listings have no owner channel.
func (n *Notifier) ListingReviewed(ctx context.Context, l *models.Listing) error {
	if l.UserID == nil {
		return nil
	}
	ev := n.event(EventListingReviewed, l)
	if l.RejectionReason != nil {
		ev.Reason = *l.RejectionReason
	}
	return n.publish(ctx, UserChannel(*l.UserID), ev)
}

func (n *Notifier) event(kind string, l *models.Listing) Event {
	return Event{
		Type:      kind,
		ListingID: l.ID,
		Title:     l.Title,
		Status:    l.Status,
		Guest:     l.IsGuest(),
		At:        n.now().UTC(),
	}
}

func (n *Notifier) publish(ctx context.Context, channel string, ev Event) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.rdb.Publish(ctx, channel, payload).Err()
}

// Subscribe listens on the given channel patterns until ctx is cancelled.
// It returns once Redis has confirmed the subscription.
func (n *Notifier) Subscribe(
	ctx context.Context, onEvent func(channel string, ev Event), patterns ...string,
) error {
	if n == nil || n.rdb == nil {
		return nil
	}
	if len(patterns) == 0 {
		patterns = []string{AdminChannel, "koydenal:user:*"}
	}
	sub := n.rdb.PSubscribe(ctx, patterns...)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %v: %w", patterns, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					slog.Warn("dropping malformed notification", "channel", msg.Channel, "error", err)
					continue
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							slog.Error("panic in notification subscriber", "panic", r, "stack", string(debug.Stack()))
						}
					}()
					onEvent(msg.Channel, ev)
				}()
			}
		}
	}()

	return nil
}
