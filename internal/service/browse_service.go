package service

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"koydenal/internal/cache"
	"koydenal/internal/models"
	"koydenal/internal/repository"

	"github.com/google/uuid"
)

// BrowseFilter narrows the public catalogue. Zero values mean "any".
type BrowseFilter struct {
	Search       string
	CategoryID   uint
	CategorySlug string
	Location     string
	ListingType  string
	MinPrice     *float64
	MaxPrice     *float64
	Featured     bool
	Opportunity  bool
	Limit        int
	Offset       int
}

// BrowseService is the read side visitors see: approved listings and categories.
type BrowseService struct {
	listings   repository.ListingRepository
	categories repository.CategoryRepository
}

func NewBrowseService(listings repository.ListingRepository, categories repository.CategoryRepository) *BrowseService {
	return &BrowseService{listings: listings, categories: categories}
}

// ListApproved returns approved listings, newest first.
func (s *BrowseService) ListApproved(ctx context.Context, f BrowseFilter) (*Page[models.Listing], error) {
	filter := repository.ListingFilter{
		Status:          models.StatusApproved,
		Search:          strings.TrimSpace(f.Search),
		CategoryID:      f.CategoryID,
		Location:        strings.TrimSpace(f.Location),
		MinPrice:        f.MinPrice,
		MaxPrice:        f.MaxPrice,
		FeaturedOnly:    f.Featured,
		OpportunityOnly: f.Opportunity,
		Page:            repository.Page{Limit: f.Limit, Offset: f.Offset},
	}
	if f.ListingType != "" {
		lt := models.ListingType(strings.ToLower(strings.TrimSpace(f.ListingType)))
		if !lt.Valid() {
			return nil, models.NewFieldValidationError(map[string]string{"listing_type": "Geçersiz ilan türü"})
		}
		filter.ListingType = lt
	}
	if f.MinPrice != nil && f.MaxPrice != nil && *f.MinPrice > *f.MaxPrice {
		return nil, models.NewFieldValidationError(map[string]string{"min_price": "En düşük fiyat en yüksek fiyattan büyük olamaz"})
	}
	if filter.CategoryID == 0 && f.CategorySlug != "" {
		category, err := s.categories.FindByNameOrSlug(ctx, f.CategorySlug)
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return newPage([]models.Listing{}, 0, filter.Page), nil
			}
			return nil, err
		}
		filter.CategoryID = category.ID
	}

	items, total, err := s.listings.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	for i := range items {
		items[i].IsFeatured = items[i].FeaturedAt(now)
	}
	return newPage(items, total, filter.Page), nil
}

// GetApproved returns one approved listing and records the view. Listings
// under review or rejected are reported as not found.
func (s *BrowseService) GetApproved(ctx context.Context, id uuid.UUID, viewerKey string) (*models.Listing, error) {
	var listing models.Listing
	err := cache.Aside(ctx, cache.ListingKey(id), &listing, cache.ListingTTL, func() error {
		l, err := s.listings.GetByID(ctx, id)
		if err != nil {
			return err
		}
		listing = *l
		return nil
	})
	if err != nil {
		return nil, err
	}
	if listing.Status != models.StatusApproved {
		return nil, models.NewNotFoundError("Listing", id)
	}

	if viewerKey != "" {
		if err := s.listings.RecordView(ctx, id, viewerKey); err != nil {
			slog.WarnContext(ctx, "failed to record listing view", "listing_id", id, "error", err)
		} else {
			// The cached copy now lags the stored counter.
			cache.Invalidate(ctx, cache.ListingKey(id))
			listing.ViewCount++
		}
	}
	listing.IsFeatured = listing.FeaturedAt(time.Now())
	return &listing, nil
}

// Categories returns the active categories in display order.
func (s *BrowseService) Categories(ctx context.Context) ([]models.Category, error) {
	return s.categories.ListActive(ctx)
}
