package models

import (
	"time"

	"github.com/google/uuid"
)

// ListingMessage is a buyer's message to the seller of a listing.
type ListingMessage struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	ListingID     uuid.UUID  `gorm:"type:uuid;not null;index" json:"listing_id"`
	SenderID      *uuid.UUID `gorm:"type:uuid;index" json:"sender_id"`
	SenderName    string     `gorm:"size:120;not null" json:"sender_name"`
	SenderContact string     `gorm:"size:255;not null" json:"sender_contact"`
	Body          string     `gorm:"type:text;not null" json:"body"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Favorite marks a listing as saved by a user.
type Favorite struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_favorite_user_listing" json:"user_id"`
	ListingID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_favorite_user_listing;index" json:"listing_id"`
	Listing   *Listing  `gorm:"foreignKey:ListingID" json:"listing,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ListingView is one recorded detail-page view.
type ListingView struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ListingID uuid.UUID `gorm:"type:uuid;not null;index" json:"listing_id"`
	ViewerKey string    `gorm:"size:80;not null" json:"viewer_key"`
	CreatedAt time.Time `json:"created_at"`
}
