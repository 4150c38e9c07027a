package models

import (
	"time"

	"github.com/google/uuid"
)

// AdminActionType is the decision recorded in the audit trail.
type AdminActionType string

const (
	AdminActionApproved AdminActionType = "approved"
	AdminActionRejected AdminActionType = "rejected"
)

// AdminAction is an append-only audit row written for every listing decision.
type AdminAction struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	ListingID uuid.UUID       `gorm:"type:uuid;not null;index" json:"listing_id"`
	AdminID   uuid.UUID       `gorm:"type:uuid;not null;index" json:"admin_id"`
	Action    AdminActionType `gorm:"type:varchar(20);not null" json:"action"`
	Reason    *string         `gorm:"type:text" json:"reason"`
	CreatedAt time.Time       `json:"created_at"`
}
