// Package service holds the listing workflow: submission, guest access,
// admin review, public browse and owner self-service.
package service

import (
	"context"

	"koydenal/internal/models"
)

// EventPublisher fans workflow events out to admins and listing owners.
type EventPublisher interface {
	ListingSubmitted(ctx context.Context, l *models.Listing) error
	ListingReviewed(ctx context.Context, l *models.Listing) error
}

type noopPublisher struct{}

func (noopPublisher) ListingSubmitted(context.Context, *models.Listing) error { return nil }
func (noopPublisher) ListingReviewed(context.Context, *models.Listing) error  { return nil }

func publisherOrNoop(p EventPublisher) EventPublisher {
	if p == nil {
		return noopPublisher{}
	}
	return p
}
