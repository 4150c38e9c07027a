package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"koydenal/internal/cache"
	"koydenal/internal/models"
	"koydenal/internal/observability"
	"koydenal/internal/repository"
	"koydenal/internal/storage"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

const defaultFeaturedDays = 30

// AdminListingFilter selects listings for the review dashboard. Status is
// pending, approved, rejected or all.
type AdminListingFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// AdminUserFilter selects user profiles for the review dashboard.
type AdminUserFilter struct {
	Status string
	Search string
	Limit  int
	Offset int
}

// Page is one window of a filtered list plus the unwindowed total.
type Page[T any] struct {
	Items  []T   `json:"items"`
	Total  int64 `json:"total"`
	Limit  int   `json:"limit"`
	Offset int   `json:"offset"`
}

// DashboardStats holds per-status counts for listings and users.
type DashboardStats struct {
	Listings map[models.ApprovalStatus]int64 `json:"listings"`
	Users    map[models.ApprovalStatus]int64 `json:"users"`
}

// ApprovalService is the admin review workflow for listings and user profiles.
type ApprovalService struct {
	listings     repository.ListingRepository
	users        repository.UserRepository
	store        storage.Store
	events       EventPublisher
	featuredDays int
	now          func() time.Time
}

func NewApprovalService(
	listings repository.ListingRepository,
	users repository.UserRepository,
	store storage.Store,
	events EventPublisher,
	featuredDays int,
) *ApprovalService {
	if featuredDays <= 0 {
		featuredDays = defaultFeaturedDays
	}
	return &ApprovalService{
		listings:     listings,
		users:        users,
		store:        store,
		events:       publisherOrNoop(events),
		featuredDays: featuredDays,
		now:          time.Now,
	}
}

// ApproveListing publishes a pending listing. Approving an approved listing
// keeps its original approver and timestamp but still writes an audit row.
func (s *ApprovalService) ApproveListing(ctx context.Context, adminID, listingID uuid.UUID) (*models.Listing, error) {
	return s.decideListing(ctx, listingID, repository.Decision{
		To:      models.StatusApproved,
		AdminID: adminID,
		At:      s.now(),
	})
}

// RejectListing rejects a pending listing with a mandatory reason.
func (s *ApprovalService) RejectListing(
	ctx context.Context, adminID, listingID uuid.UUID, reason string,
) (*models.Listing, error) {
	reason, err := requireReason(reason)
	if err != nil {
		return nil, err
	}
	return s.decideListing(ctx, listingID, repository.Decision{
		To:      models.StatusRejected,
		AdminID: adminID,
		Reason:  &reason,
		At:      s.now(),
	})
}

func (s *ApprovalService) decideListing(
	ctx context.Context, listingID uuid.UUID, d repository.Decision,
) (*models.Listing, error) {
	ctx, span := observability.StartSpan(ctx, "ApprovalService.DecideListing",
		attribute.String("listing.id", listingID.String()),
		attribute.String("listing.to", string(d.To)),
	)
	listing, err := s.listings.Decide(ctx, listingID, d)
	observability.EndSpan(span, err)
	if err != nil {
		return nil, err
	}
	observability.WorkflowTransitions.WithLabelValues("listing", string(d.To)).Inc()
	cache.InvalidateListing(ctx, listingID)
	if err := s.events.ListingReviewed(ctx, listing); err != nil {
		slog.WarnContext(ctx, "failed to publish listing review", "listing_id", listingID, "error", err)
	}
	return listing, nil
}

// ApproveUser approves a profile. No audit row is written for users.
func (s *ApprovalService) ApproveUser(ctx context.Context, adminID, userID uuid.UUID) (*models.User, error) {
	return s.decideUser(ctx, userID, repository.Decision{
		To:      models.StatusApproved,
		AdminID: adminID,
		At:      s.now(),
	})
}

// RejectUser rejects a profile with a mandatory reason.
func (s *ApprovalService) RejectUser(ctx context.Context, adminID, userID uuid.UUID, reason string) (*models.User, error) {
	reason, err := requireReason(reason)
	if err != nil {
		return nil, err
	}
	return s.decideUser(ctx, userID, repository.Decision{
		To:      models.StatusRejected,
		AdminID: adminID,
		Reason:  &reason,
		At:      s.now(),
	})
}

func (s *ApprovalService) decideUser(ctx context.Context, userID uuid.UUID, d repository.Decision) (*models.User, error) {
	user, err := s.users.Decide(ctx, userID, d)
	if err != nil {
		return nil, err
	}
	observability.WorkflowTransitions.WithLabelValues("user", string(d.To)).Inc()
	cache.Invalidate(ctx, cache.AdminStatsKey)
	return user, nil
}

func requireReason(reason string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return "", models.NewFieldValidationError(map[string]string{"reason": "Red gerekçesi zorunludur"})
	}
	return reason, nil
}

// ToggleFeatured sets the featured flag. Enabling runs for the configured
// number of days; disabling clears the expiry.
func (s *ApprovalService) ToggleFeatured(ctx context.Context, listingID uuid.UUID, on bool) (*models.Listing, error) {
	var until *time.Time
	if on {
		t := s.now().Add(time.Duration(s.featuredDays) * 24 * time.Hour)
		until = &t
	}
	listing, err := s.listings.SetFeatured(ctx, listingID, on, until)
	if err != nil {
		return nil, err
	}
	cache.InvalidateListing(ctx, listingID)
	return listing, nil
}

func (s *ApprovalService) ToggleOpportunity(ctx context.Context, listingID uuid.UUID, on bool) (*models.Listing, error) {
	listing, err := s.listings.SetOpportunity(ctx, listingID, on)
	if err != nil {
		return nil, err
	}
	cache.InvalidateListing(ctx, listingID)
	return listing, nil
}

// ListListings returns listings of any owner, newest first.
func (s *ApprovalService) ListListings(ctx context.Context, f AdminListingFilter) (*Page[models.Listing], error) {
	status, err := models.ParseStatusFilter(f.Status)
	if err != nil {
		return nil, err
	}
	page := repository.Page{Limit: f.Limit, Offset: f.Offset}
	items, total, err := s.listings.List(ctx, repository.ListingFilter{
		Status: status,
		Search: f.Search,
		Page:   page,
	})
	if err != nil {
		return nil, err
	}
	return newPage(items, total, page), nil
}

// ListUsers returns profiles matching the filter, newest first.
func (s *ApprovalService) ListUsers(ctx context.Context, f AdminUserFilter) (*Page[models.User], error) {
	status, err := models.ParseStatusFilter(f.Status)
	if err != nil {
		return nil, err
	}
	page := repository.Page{Limit: f.Limit, Offset: f.Offset}
	items, total, err := s.users.List(ctx, repository.UserFilter{
		Status: status,
		Search: f.Search,
		Page:   page,
	})
	if err != nil {
		return nil, err
	}
	return newPage(items, total, page), nil
}

// Stats returns dashboard counts, cached briefly in Redis.
func (s *ApprovalService) Stats(ctx context.Context) (*DashboardStats, error) {
	var stats DashboardStats
	err := cache.Aside(ctx, cache.AdminStatsKey, &stats, cache.AdminStatsTTL, func() error {
		listings, err := s.listings.CountByStatus(ctx)
		if err != nil {
			return err
		}
		users, err := s.users.CountByStatus(ctx)
		if err != nil {
			return err
		}
		stats = DashboardStats{Listings: listings, Users: users}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetListingActions returns the audit trail of a listing, oldest first.
func (s *ApprovalService) GetListingActions(ctx context.Context, listingID uuid.UUID) ([]models.AdminAction, error) {
	if _, err := s.listings.GetByID(ctx, listingID); err != nil {
		return nil, err
	}
	return s.listings.Actions(ctx, listingID)
}

// DeleteListing hard-deletes a listing and its dependents in one transaction,
// then removes its images from storage.
func (s *ApprovalService) DeleteListing(ctx context.Context, listingID uuid.UUID) error {
	listing, err := s.listings.Delete(ctx, listingID)
	if err != nil {
		return err
	}
	cache.InvalidateListing(ctx, listingID)
	discardImages(ctx, s.store, listing.Images)
	return nil
}

// DeleteUser hard-deletes a profile and every listing it owns in one
// transaction, then removes the listings' images from storage.
func (s *ApprovalService) DeleteUser(ctx context.Context, userID uuid.UUID) error {
	removed, err := s.users.Delete(ctx, userID)
	if err != nil {
		return err
	}
	for _, l := range removed {
		cache.InvalidateListing(ctx, l.ID)
		discardImages(ctx, s.store, l.Images)
	}
	cache.Invalidate(ctx, cache.AdminStatsKey)
	return nil
}

func newPage[T any](items []T, total int64, p repository.Page) *Page[T] {
	if items == nil {
		items = []T{}
	}
	p = p.Normalized()
	return &Page[T]{Items: items, Total: total, Limit: p.Limit, Offset: p.Offset}
}
