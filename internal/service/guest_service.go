package service

import (
	"context"
	"log/slog"

	"koydenal/internal/cache"
	"koydenal/internal/models"
	"koydenal/internal/observability"
	"koydenal/internal/repository"
	"koydenal/internal/storage"
	"koydenal/internal/validation"
)

// GuestService serves guest listings to whoever holds their secret. The
// secret is the only authorization; role gates never apply here.
type GuestService struct {
	listings   repository.ListingRepository
	categories repository.CategoryRepository
	store      storage.Store
}

func NewGuestService(
	listings repository.ListingRepository,
	categories repository.CategoryRepository,
	store storage.Store,
) *GuestService {
	return &GuestService{listings: listings, categories: categories, store: store}
}

// GetListing returns the listing only when the capability matches exactly.
func (s *GuestService) GetListing(ctx context.Context, capability models.ListingCapability) (*models.Listing, error) {
	if capability.Secret == "" {
		observability.GuestAccessChecks.WithLabelValues("read", "mismatch").Inc()
		return nil, models.NewNotFoundError("Listing", capability.ListingID)
	}
	listing, err := s.listings.GetBySecret(ctx, capability.ListingID, DigestSecret(capability.Secret))
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			observability.GuestAccessChecks.WithLabelValues("read", "mismatch").Inc()
		}
		return nil, err
	}
	observability.GuestAccessChecks.WithLabelValues("read", "match").Inc()
	return listing, nil
}

// UpdateListing replaces the editable fields. It returns false, with no
// error, when the secret does not match. The review status is left as is.
func (s *GuestService) UpdateListing(
	ctx context.Context, capability models.ListingCapability, fields ListingFields,
) (bool, error) {
	fields.normalize()
	if err := validation.Struct(&fields); err != nil {
		return false, err
	}
	category, err := resolveCategory(ctx, s.categories, fields.Category)
	if err != nil {
		return false, err
	}
	if capability.Secret == "" {
		observability.GuestAccessChecks.WithLabelValues("update", "mismatch").Inc()
		return false, nil
	}

	ok, err := s.listings.UpdateWithSecret(ctx, capability.ListingID, DigestSecret(capability.Secret),
		fieldUpdates(fields, category.ID))
	if err != nil {
		observability.GuestAccessChecks.WithLabelValues("update", "error").Inc()
		return false, err
	}
	observability.GuestAccessChecks.WithLabelValues("update", matchLabel(ok)).Inc()
	if ok {
		cache.InvalidateListing(ctx, capability.ListingID)
	}
	return ok, nil
}

// DeleteListing removes the listing and everything hanging off it. It
// returns false, with no error, when the secret does not match.
func (s *GuestService) DeleteListing(ctx context.Context, capability models.ListingCapability) (bool, error) {
	if capability.Secret == "" {
		observability.GuestAccessChecks.WithLabelValues("delete", "mismatch").Inc()
		return false, nil
	}
	digest := DigestSecret(capability.Secret)

	var images []string
	if listing, err := s.listings.GetBySecret(ctx, capability.ListingID, digest); err == nil {
		images = listing.Images
	} else if !models.IsCode(err, models.CodeNotFound) {
		slog.WarnContext(ctx, "could not load guest listing images before delete",
			"listing_id", capability.ListingID, "error", err)
	}

	ok, err := s.listings.DeleteWithSecret(ctx, capability.ListingID, digest)
	if err != nil {
		observability.GuestAccessChecks.WithLabelValues("delete", "error").Inc()
		return false, err
	}
	observability.GuestAccessChecks.WithLabelValues("delete", matchLabel(ok)).Inc()
	if ok {
		cache.InvalidateListing(ctx, capability.ListingID)
		discardImages(ctx, s.store, images)
	}
	return ok, nil
}

func matchLabel(ok bool) string {
	if ok {
		return "match"
	}
	return "mismatch"
}
