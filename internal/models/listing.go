package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ListingType distinguishes offers from requests.
type ListingType string

const (
	ListingTypeSale   ListingType = "sale"
	ListingTypeWanted ListingType = "wanted"
	ListingTypeBarter ListingType = "barter"
)

func (t ListingType) Valid() bool {
	switch t {
	case ListingTypeSale, ListingTypeWanted, ListingTypeBarter:
		return true
	}
	return false
}

// DefaultCurrency is applied when a submission omits currency.
const DefaultCurrency = "TRY"

// StringList is an ordered list of strings stored as a JSON text column.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (l *StringList) Scan(value interface{}) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*l = StringList{}
		return nil
	case string:
		raw = []byte(v)
	case []byte:
		raw = v
	default:
		return fmt.Errorf("unsupported StringList source %T", value)
	}
	if len(raw) == 0 {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(raw, (*[]string)(l))
}

// Listing is a produce offer submitted by a registered seller or a guest.
type Listing struct {
	ID               uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	UserID           *uuid.UUID     `gorm:"type:uuid;index" json:"user_id"`
	CategoryID       uint           `gorm:"not null;index" json:"category_id"`
	Category         *Category      `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	Title            string         `gorm:"size:200;not null" json:"title"`
	Description      string         `gorm:"type:text;not null" json:"description"`
	Price            float64        `gorm:"not null" json:"price"`
	Currency         string         `gorm:"size:8;not null;default:'TRY'" json:"currency"`
	Quantity         int            `gorm:"not null" json:"quantity"`
	Unit             string         `gorm:"size:32;not null" json:"unit"`
	Location         string         `gorm:"size:200;not null" json:"location"`
	ListingType      ListingType    `gorm:"size:16;not null;default:'sale'" json:"listing_type"`
	ContactPhone     string         `gorm:"size:32" json:"contact_phone"`
	ContactEmail     string         `gorm:"size:255" json:"contact_email"`
	ContactPerson    string         `gorm:"size:120" json:"contact_person"`
	PreferredContact string         `gorm:"size:16" json:"preferred_contact"`
	Images           StringList     `gorm:"type:text" json:"images"`
	Status           ApprovalStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	RejectionReason  *string        `gorm:"type:text" json:"rejection_reason"`
	ApprovedBy       *uuid.UUID     `gorm:"type:uuid" json:"approved_by"`
	ApprovedAt       *time.Time     `json:"approved_at"`
	// ListingSecret holds the SHA-256 hex digest of the guest token, never the token.
	ListingSecret *string    `gorm:"size:64;index" json:"-"`
	IsFeatured    bool       `gorm:"not null;default:false" json:"is_featured"`
	FeaturedUntil *time.Time `json:"featured_until"`
	IsOpportunity bool       `gorm:"not null;default:false" json:"is_opportunity"`
	ViewCount     int64      `gorm:"not null;default:0" json:"view_count"`
	CreatedAt     time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// BeforeCreate assigns an id when the caller did not.
func (l *Listing) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	if l.Images == nil {
		l.Images = StringList{}
	}
	return nil
}

// Decision returns the typed review outcome of the listing.
func (l *Listing) Decision() (Decision, error) {
	return decisionFrom(l.Status, l.ApprovedBy, l.ApprovedAt, l.RejectionReason)
}

// IsGuest reports whether the listing was submitted without an account.
func (l *Listing) IsGuest() bool {
	return l.UserID == nil
}

// FeaturedAt reports whether the listing counts as featured at the given time.
func (l *Listing) FeaturedAt(now time.Time) bool {
	if !l.IsFeatured {
		return false
	}
	return l.FeaturedUntil == nil || l.FeaturedUntil.After(now)
}

// OwnedBy reports whether userID is the registered owner.
func (l *Listing) OwnedBy(userID uuid.UUID) bool {
	return l.UserID != nil && *l.UserID == userID
}

// ListingCapability grants read, update and delete on exactly one guest listing.
type ListingCapability struct {
	ListingID uuid.UUID
	Secret    string
}
