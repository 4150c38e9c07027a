package repository

import (
	"context"

	"koydenal/internal/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// FavoriteRepository stores saved listings per user.
type FavoriteRepository interface {
	Add(ctx context.Context, userID, listingID uuid.UUID) error
	Remove(ctx context.Context, userID, listingID uuid.UUID) error
	ListByUser(ctx context.Context, userID uuid.UUID, page Page) ([]models.Favorite, error)
}

type favoriteRepository struct {
	db *gorm.DB
}

// NewFavoriteRepository returns a new FavoriteRepository implementation.
func NewFavoriteRepository(db *gorm.DB) FavoriteRepository {
	return &favoriteRepository{db: db}
}

// Add is idempotent: saving an already saved listing is not an error.
func (r *favoriteRepository) Add(ctx context.Context, userID, listingID uuid.UUID) error {
	err := r.db.WithContext(ctx).Create(&models.Favorite{UserID: userID, ListingID: listingID}).Error
	if err != nil && !isUniqueConstraintError(err) {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *favoriteRepository) Remove(ctx context.Context, userID, listingID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND listing_id = ?", userID, listingID).
		Delete(&models.Favorite{}).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ListByUser returns the user's favorites whose listings are still approved.
func (r *favoriteRepository) ListByUser(ctx context.Context, userID uuid.UUID, page Page) ([]models.Favorite, error) {
	page = page.Normalized()
	var favorites []models.Favorite
	err := r.db.WithContext(ctx).
		Joins("Listing").
		Where("favorites.user_id = ? AND \"Listing\".status = ?", userID, models.StatusApproved).
		Order("favorites.created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&favorites).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return favorites, nil
}

// MessageRepository stores buyer messages on listings.
type MessageRepository interface {
	Create(ctx context.Context, msg *models.ListingMessage) error
	ListForOwner(ctx context.Context, ownerID uuid.UUID, page Page) ([]models.ListingMessage, error)
}

type messageRepository struct {
	db *gorm.DB
}

// NewMessageRepository returns a new MessageRepository implementation.
func NewMessageRepository(db *gorm.DB) MessageRepository {
	return &messageRepository{db: db}
}

func (r *messageRepository) Create(ctx context.Context, msg *models.ListingMessage) error {
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

// ListForOwner returns messages sent about any listing owned by ownerID, newest first.
func (r *messageRepository) ListForOwner(ctx context.Context, ownerID uuid.UUID, page Page) ([]models.ListingMessage, error) {
	page = page.Normalized()
	var messages []models.ListingMessage
	err := r.db.WithContext(ctx).
		Where("listing_id IN (?)", r.db.Model(&models.Listing{}).Select("id").Where("user_id = ?", ownerID)).
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&messages).Error
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	return messages, nil
}
