package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is a user's privilege level.
type Role string

const (
	RoleUser      Role = "user"
	RoleAdmin     Role = "admin"
	RoleModerator Role = "moderator"
)

// User is an account and its public profile. The password hash never leaves the server.
type User struct {
	ID              uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	Email           string         `gorm:"size:255;uniqueIndex;not null" json:"email"`
	Password        string         `gorm:"size:255;not null" json:"-"`
	FullName        string         `gorm:"size:120" json:"full_name"`
	Phone           string         `gorm:"size:32" json:"phone"`
	Address         string         `gorm:"type:text" json:"address"`
	Role            Role           `gorm:"type:varchar(20);not null;default:'user'" json:"role"`
	Status          ApprovalStatus `gorm:"type:varchar(20);not null;default:'pending';index" json:"status"`
	ApprovedBy      *uuid.UUID     `gorm:"type:uuid" json:"approved_by"`
	ApprovedAt      *time.Time     `json:"approved_at"`
	RejectionReason *string        `gorm:"type:text" json:"rejection_reason"`
	CreatedAt       time.Time      `gorm:"index" json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// BeforeCreate assigns an id when the caller did not.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	return nil
}

// IsApprovedAdmin is the only condition under which admin capability is granted.
func (u *User) IsApprovedAdmin() bool {
	return u.Role == RoleAdmin && u.Status == StatusApproved
}

// Decision returns the typed review outcome of the profile.
func (u *User) Decision() (Decision, error) {
	return decisionFrom(u.Status, u.ApprovedBy, u.ApprovedAt, u.RejectionReason)
}
