package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"koydenal/internal/featureflags"
	"koydenal/internal/models"
	"koydenal/internal/observability"
	"koydenal/internal/repository"
	"koydenal/internal/storage"
	"koydenal/internal/validation"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/errgroup"
)

const (
	defaultUploadConcurrency = 4
	defaultMaxImages         = 8
)

// ListingFields is the editable part of a listing shared by submission and edits.
type ListingFields struct {
	Title            string  `json:"title" form:"title" validate:"required,min=8,max=200"`
	Description      string  `json:"description" form:"description" validate:"required,min=20,max=5000"`
	Price            float64 `json:"price" form:"price" validate:"gte=0"`
	Currency         string  `json:"currency" form:"currency" validate:"omitempty,len=3"`
	Quantity         int     `json:"quantity" form:"quantity" validate:"gte=1"`
	Unit             string  `json:"unit" form:"unit" validate:"required,max=32"`
	Category         string  `json:"category" form:"category" validate:"required"`
	Location         string  `json:"location" form:"location" validate:"required,max=200"`
	ListingType      string  `json:"listing_type" form:"listing_type" validate:"omitempty,oneof=sale wanted barter"`
	ContactPhone     string  `json:"contact_phone" form:"contact_phone" validate:"required,trmobile"`
	ContactEmail     string  `json:"contact_email" form:"contact_email" validate:"omitempty,email"`
	ContactPerson    string  `json:"contact_person" form:"contact_person" validate:"required,min=3,max=120"`
	PreferredContact string  `json:"preferred_contact" form:"preferred_contact" validate:"omitempty,oneof=phone whatsapp email"`
}

func (f *ListingFields) normalize() {
	f.Title = strings.TrimSpace(f.Title)
	f.Description = strings.TrimSpace(f.Description)
	f.Currency = strings.ToUpper(strings.TrimSpace(f.Currency))
	f.Unit = strings.TrimSpace(f.Unit)
	f.Category = strings.TrimSpace(f.Category)
	f.Location = strings.TrimSpace(f.Location)
	f.ListingType = strings.ToLower(strings.TrimSpace(f.ListingType))
	f.ContactPhone = strings.TrimSpace(f.ContactPhone)
	f.ContactEmail = strings.ToLower(strings.TrimSpace(f.ContactEmail))
	f.ContactPerson = strings.TrimSpace(f.ContactPerson)
	f.PreferredContact = strings.ToLower(strings.TrimSpace(f.PreferredContact))
}

// ImageUpload is one attached image file.
type ImageUpload struct {
	Filename string
	Content  []byte
}

// SubmitListingInput is a candidate listing. UserID is nil for guests.
type SubmitListingInput struct {
	Fields ListingFields
	Images []ImageUpload
	UserID *uuid.UUID
}

// SubmitResult is returned once the listing is stored. Secret is set only
// for guest submissions and is never retrievable again.
type SubmitResult struct {
	Listing       *models.Listing `json:"listing"`
	Secret        string          `json:"secret,omitempty"`
	DroppedImages int             `json:"dropped_images"`
}

// ListingServiceConfig carries the tunables of listing submission.
type ListingServiceConfig struct {
	UploadConcurrency int
	MaxImages         int
}

// ListingService accepts new listings from sellers and guests.
type ListingService struct {
	listings   repository.ListingRepository
	categories repository.CategoryRepository
	users      repository.UserRepository
	store      storage.Store
	images     storage.ImageProcessor
	flags      *featureflags.Manager
	events     EventPublisher
	cfg        ListingServiceConfig
}

func NewListingService(
	listings repository.ListingRepository,
	categories repository.CategoryRepository,
	users repository.UserRepository,
	store storage.Store,
	images storage.ImageProcessor,
	flags *featureflags.Manager,
	events EventPublisher,
	cfg ListingServiceConfig,
) *ListingService {
	if cfg.UploadConcurrency <= 0 {
		cfg.UploadConcurrency = defaultUploadConcurrency
	}
	if cfg.MaxImages <= 0 {
		cfg.MaxImages = defaultMaxImages
	}
	return &ListingService{
		listings:   listings,
		categories: categories,
		users:      users,
		store:      store,
		images:     images,
		flags:      flags,
		events:     publisherOrNoop(events),
		cfg:        cfg,
	}
}

// Submit validates, resolves the category, uploads images and stores the listing as pending.
func (s *ListingService) Submit(ctx context.Context, in SubmitListingInput) (*SubmitResult, error) {
	submitter := "user"
	if in.UserID == nil {
		submitter = "guest"
	}
	ctx, span := observability.StartSpan(ctx, "ListingService.Submit",
		attribute.String("listing.submitter", submitter),
		attribute.Int("listing.images", len(in.Images)),
	)
	res, err := s.submit(ctx, in)
	observability.EndSpan(span, err)
	outcome := "accepted"
	if err != nil {
		outcome = strings.ToLower(errorCode(err))
	}
	observability.ListingSubmissions.WithLabelValues(submitter, outcome).Inc()
	return res, err
}

func (s *ListingService) submit(ctx context.Context, in SubmitListingInput) (*SubmitResult, error) {
	in.Fields.normalize()
	if err := validation.Struct(&in.Fields); err != nil {
		return nil, err
	}
	if len(in.Images) > s.cfg.MaxImages {
		return nil, models.NewFieldValidationError(map[string]string{
			"images": fmt.Sprintf("En fazla %d fotoğraf eklenebilir", s.cfg.MaxImages),
		})
	}

	if err := s.checkSubmitter(ctx, in.UserID); err != nil {
		return nil, err
	}

	category, err := resolveCategory(ctx, s.categories, in.Fields.Category)
	if err != nil {
		return nil, err
	}

	listing := &models.Listing{
		ID:         uuid.New(),
		UserID:     in.UserID,
		CategoryID: category.ID,
		Status:     models.StatusPending,
	}
	applyFields(listing, in.Fields)

	var secret string
	if in.UserID == nil {
		token, digest, err := NewListingSecret()
		if err != nil {
			return nil, models.NewInternalError(err)
		}
		secret = token
		listing.ListingSecret = &digest
	}

	urls, dropped := s.uploadImages(ctx, listing.ID, in.UserID, in.Images)
	listing.Images = urls

	if err := s.listings.Create(ctx, listing); err != nil {
		s.discardImages(ctx, urls)
		return nil, err
	}
	listing.Category = category

	if err := s.events.ListingSubmitted(ctx, listing); err != nil {
		slog.WarnContext(ctx, "failed to publish listing submission", "listing_id", listing.ID, "error", err)
	}

	return &SubmitResult{Listing: listing, Secret: secret, DroppedImages: dropped}, nil
}

// checkSubmitter enforces who may create listings. Denials surface as a
// generic security error.
func (s *ListingService) checkSubmitter(ctx context.Context, userID *uuid.UUID) error {
	if userID == nil {
		if !s.flags.EnabledGlobally(featureflags.GuestListings) {
			return models.NewForbiddenError("Güvenlik hatası: misafir ilanları şu anda kabul edilmiyor")
		}
		return nil
	}
	user, err := s.users.GetByID(ctx, *userID)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return models.NewForbiddenError("Güvenlik hatası: ilan kaydedilemedi")
		}
		return err
	}
	if user.Status == models.StatusRejected {
		return models.NewForbiddenError("Güvenlik hatası: ilan kaydedilemedi")
	}
	return nil
}

// resolveCategory maps a category name or slug to an active category. A miss
// is reported against the category field.
func resolveCategory(ctx context.Context, categories repository.CategoryRepository, value string) (*models.Category, error) {
	category, err := categories.FindByNameOrSlug(ctx, value)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewFieldValidationError(map[string]string{"category": "Kategori bulunamadı"})
		}
		return nil, err
	}
	if !category.IsActive {
		return nil, models.NewFieldValidationError(map[string]string{"category": "Kategori bulunamadı"})
	}
	return category, nil
}

// uploadImages stores every image in parallel and returns the public URLs in
// input order. Images that fail are dropped and counted.
func (s *ListingService) uploadImages(
	ctx context.Context, listingID uuid.UUID, userID *uuid.UUID, images []ImageUpload,
) ([]string, int) {
	if len(images) == 0 {
		return models.StringList{}, 0
	}

	processor := s.images
	processor.EncodeWebP = processor.EncodeWebP || s.flags.Enabled(featureflags.ImageWebP, userID)

	urls := make([]string, len(images))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.UploadConcurrency)
	for i, img := range images {
		g.Go(func() error {
			url, err := s.uploadImage(gctx, listingID, processor, img)
			if err != nil {
				observability.ImageUploads.WithLabelValues("dropped").Inc()
				slog.WarnContext(ctx, "dropping listing image",
					"listing_id", listingID, "file", img.Filename, "error", err)
				return nil
			}
			observability.ImageUploads.WithLabelValues("stored").Inc()
			urls[i] = url
			return nil
		})
	}
	_ = g.Wait()

	kept := make(models.StringList, 0, len(urls))
	for _, u := range urls {
		if u != "" {
			kept = append(kept, u)
		}
	}
	return kept, len(images) - len(kept)
}

func (s *ListingService) uploadImage(
	ctx context.Context, listingID uuid.UUID, processor storage.ImageProcessor, img ImageUpload,
) (string, error) {
	processed, err := processor.Process(img.Content)
	if err != nil {
		return "", err
	}
	base := fmt.Sprintf("listings/%s/%s", listingID, processed.Hash[:16])
	url, err := s.store.Put(ctx, base+".jpg", processed.JPEG)
	if err != nil {
		return "", err
	}
	if processed.WebP != nil {
		if _, err := s.store.Put(ctx, base+".webp", processed.WebP); err != nil {
			slog.WarnContext(ctx, "failed to store webp rendition", "key", base+".webp", "error", err)
		}
	}
	return url, nil
}

// discardImages deletes stored objects (and their WebP siblings) after the
// listing row is gone or was never written. Failures are only logged.
func (s *ListingService) discardImages(ctx context.Context, urls []string) {
	discardImages(ctx, s.store, urls)
}

func discardImages(ctx context.Context, store storage.Store, urls []string) {
	for _, u := range urls {
		for _, target := range []string{u, strings.TrimSuffix(u, ".jpg") + ".webp"} {
			if err := store.Delete(ctx, target); err != nil {
				slog.WarnContext(ctx, "failed to delete listing image", "url", target, "error", err)
			}
		}
	}
}

func applyFields(l *models.Listing, f ListingFields) {
	l.Title = f.Title
	l.Description = f.Description
	l.Price = f.Price
	l.Currency = f.Currency
	if l.Currency == "" {
		l.Currency = models.DefaultCurrency
	}
	l.Quantity = f.Quantity
	l.Unit = f.Unit
	l.Location = f.Location
	l.ListingType = models.ListingType(f.ListingType)
	if l.ListingType == "" {
		l.ListingType = models.ListingTypeSale
	}
	l.ContactPhone = validation.NormalizePhone(f.ContactPhone)
	l.ContactEmail = f.ContactEmail
	l.ContactPerson = f.ContactPerson
	l.PreferredContact = f.PreferredContact
	if l.PreferredContact == "" {
		l.PreferredContact = "phone"
	}
}

// fieldUpdates maps edited fields to listing columns.
func fieldUpdates(f ListingFields, categoryID uint) map[string]interface{} {
	var l models.Listing
	applyFields(&l, f)
	return map[string]interface{}{
		"title":             l.Title,
		"description":       l.Description,
		"price":             l.Price,
		"currency":          l.Currency,
		"quantity":          l.Quantity,
		"unit":              l.Unit,
		"location":          l.Location,
		"listing_type":      l.ListingType,
		"contact_phone":     l.ContactPhone,
		"contact_email":     l.ContactEmail,
		"contact_person":    l.ContactPerson,
		"preferred_contact": l.PreferredContact,
		"category_id":       categoryID,
		"updated_at":        time.Now(),
	}
}

func errorCode(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return models.CodeInternal
}
