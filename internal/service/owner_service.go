package service

import (
	"context"
	"strings"

	"koydenal/internal/cache"
	"koydenal/internal/models"
	"koydenal/internal/repository"
	"koydenal/internal/storage"
	"koydenal/internal/validation"

	"github.com/google/uuid"
)

// SendMessageInput is a buyer's message about a listing. SenderID is nil for visitors.
type SendMessageInput struct {
	ListingID     uuid.UUID  `json:"-"`
	SenderID      *uuid.UUID `json:"-"`
	SenderName    string     `json:"sender_name" validate:"required,min=2,max=120"`
	SenderContact string     `json:"sender_contact" validate:"required,max=255"`
	Body          string     `json:"body" validate:"required,min=5,max=2000"`
}

// OwnerService lets signed-in sellers manage their own listings, favorites and inbox.
type OwnerService struct {
	listings   repository.ListingRepository
	categories repository.CategoryRepository
	favorites  repository.FavoriteRepository
	messages   repository.MessageRepository
	store      storage.Store
}

func NewOwnerService(
	listings repository.ListingRepository,
	categories repository.CategoryRepository,
	favorites repository.FavoriteRepository,
	messages repository.MessageRepository,
	store storage.Store,
) *OwnerService {
	return &OwnerService{
		listings:   listings,
		categories: categories,
		favorites:  favorites,
		messages:   messages,
		store:      store,
	}
}

// MyListings returns the caller's listings in every status.
func (s *OwnerService) MyListings(ctx context.Context, userID uuid.UUID, limit, offset int) (*Page[models.Listing], error) {
	page := repository.Page{Limit: limit, Offset: offset}
	items, total, err := s.listings.List(ctx, repository.ListingFilter{UserID: &userID, Page: page})
	if err != nil {
		return nil, err
	}
	return newPage(items, total, page), nil
}

func (s *OwnerService) ownedListing(ctx context.Context, userID, listingID uuid.UUID) (*models.Listing, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if !listing.OwnedBy(userID) {
		return nil, models.NewForbiddenError("Bu ilan size ait değil")
	}
	return listing, nil
}

// UpdateMyListing replaces the editable fields of an owned listing. The
// review status is left as is.
func (s *OwnerService) UpdateMyListing(
	ctx context.Context, userID, listingID uuid.UUID, fields ListingFields,
) (*models.Listing, error) {
	if _, err := s.ownedListing(ctx, userID, listingID); err != nil {
		return nil, err
	}
	fields.normalize()
	if err := validation.Struct(&fields); err != nil {
		return nil, err
	}
	category, err := resolveCategory(ctx, s.categories, fields.Category)
	if err != nil {
		return nil, err
	}
	if err := s.listings.UpdateFields(ctx, listingID, fieldUpdates(fields, category.ID)); err != nil {
		return nil, err
	}
	cache.InvalidateListing(ctx, listingID)
	return s.listings.GetByID(ctx, listingID)
}

// DeleteMyListing removes an owned listing with the same cascade admins use.
func (s *OwnerService) DeleteMyListing(ctx context.Context, userID, listingID uuid.UUID) error {
	if _, err := s.ownedListing(ctx, userID, listingID); err != nil {
		return err
	}
	listing, err := s.listings.Delete(ctx, listingID)
	if err != nil {
		return err
	}
	cache.InvalidateListing(ctx, listingID)
	discardImages(ctx, s.store, listing.Images)
	return nil
}

func (s *OwnerService) approvedListing(ctx context.Context, listingID uuid.UUID) (*models.Listing, error) {
	listing, err := s.listings.GetByID(ctx, listingID)
	if err != nil {
		return nil, err
	}
	if listing.Status != models.StatusApproved {
		return nil, models.NewNotFoundError("Listing", listingID)
	}
	return listing, nil
}

// AddFavorite saves an approved listing. Saving twice is not an error.
func (s *OwnerService) AddFavorite(ctx context.Context, userID, listingID uuid.UUID) error {
	if _, err := s.approvedListing(ctx, listingID); err != nil {
		return err
	}
	return s.favorites.Add(ctx, userID, listingID)
}

func (s *OwnerService) RemoveFavorite(ctx context.Context, userID, listingID uuid.UUID) error {
	return s.favorites.Remove(ctx, userID, listingID)
}

// Favorites returns saved listings that are still approved.
func (s *OwnerService) Favorites(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Favorite, error) {
	favorites, err := s.favorites.ListByUser(ctx, userID, repository.Page{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	if favorites == nil {
		favorites = []models.Favorite{}
	}
	return favorites, nil
}

// SendMessage delivers a buyer message to the seller of an approved listing.
func (s *OwnerService) SendMessage(ctx context.Context, in SendMessageInput) (*models.ListingMessage, error) {
	in.SenderName = strings.TrimSpace(in.SenderName)
	in.SenderContact = strings.TrimSpace(in.SenderContact)
	in.Body = strings.TrimSpace(in.Body)
	if err := validation.Struct(&in); err != nil {
		return nil, err
	}
	listing, err := s.approvedListing(ctx, in.ListingID)
	if err != nil {
		return nil, err
	}
	if in.SenderID != nil && listing.OwnedBy(*in.SenderID) {
		return nil, models.NewValidationError("Kendi ilanınıza mesaj gönderemezsiniz")
	}

	msg := &models.ListingMessage{
		ListingID:     in.ListingID,
		SenderID:      in.SenderID,
		SenderName:    in.SenderName,
		SenderContact: in.SenderContact,
		Body:          in.Body,
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// Inbox returns messages sent about the caller's listings, newest first.
func (s *OwnerService) Inbox(ctx context.Context, ownerID uuid.UUID, limit, offset int) ([]models.ListingMessage, error) {
	messages, err := s.messages.ListForOwner(ctx, ownerID, repository.Page{Limit: limit, Offset: offset})
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []models.ListingMessage{}
	}
	return messages, nil
}
