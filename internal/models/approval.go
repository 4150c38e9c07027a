package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ApprovalStatus is the moderation state shared by listings and user profiles.
type ApprovalStatus string

const (
	// StatusPending indicates the row is awaiting review.
	StatusPending ApprovalStatus = "pending"
	// StatusApproved indicates an admin accepted the row.
	StatusApproved ApprovalStatus = "approved"
	// StatusRejected indicates an admin denied the row.
	StatusRejected ApprovalStatus = "rejected"
)

// StatusFilterAll selects every status in admin list queries.
const StatusFilterAll = "all"

// ErrInconsistentDecision is returned when a row's status disagrees with its review fields.
var ErrInconsistentDecision = errors.New("inconsistent approval decision")

func (s ApprovalStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// ParseStatusFilter normalizes an admin filter value. An empty value or "all" yields "".
func ParseStatusFilter(raw string) (ApprovalStatus, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" || v == StatusFilterAll {
		return "", nil
	}
	s := ApprovalStatus(v)
	if !s.Valid() {
		return "", NewValidationError(fmt.Sprintf("geçersiz durum filtresi: %q", raw))
	}
	return s, nil
}

// CanTransition reports whether an admin decision may move a row from one status to another.
// Repeating the current decision is allowed; flipping a decided row is not.
func CanTransition(from, to ApprovalStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusApproved || to == StatusRejected
	case StatusApproved:
		return to == StatusApproved
	case StatusRejected:
		return to == StatusRejected
	}
	return false
}

// NewInvalidTransitionError describes a refused status change.
func NewInvalidTransitionError(from, to ApprovalStatus) *AppError {
	return &AppError{
		Code:    CodeInvalidTransition,
		Message: fmt.Sprintf("durum %s -> %s değiştirilemez", from, to),
	}
}

// Decision is the typed view of a row's review outcome.
type Decision interface {
	Status() ApprovalStatus
}

// Pending has no review data.
type Pending struct{}

// Approved records who approved the row and when.
type Approved struct {
	By uuid.UUID
	At time.Time
}

// Rejected records the reviewer and the reason given to the submitter.
type Rejected struct {
	By     *uuid.UUID
	At     *time.Time
	Reason string
}

func (Pending) Status() ApprovalStatus  { return StatusPending }
func (Approved) Status() ApprovalStatus { return StatusApproved }
func (Rejected) Status() ApprovalStatus { return StatusRejected }

func decisionFrom(status ApprovalStatus, by *uuid.UUID, at *time.Time, reason *string) (Decision, error) {
	switch status {
	case StatusPending:
		return Pending{}, nil
	case StatusApproved:
		if by == nil || at == nil {
			return nil, fmt.Errorf("approved without reviewer: %w", ErrInconsistentDecision)
		}
		return Approved{By: *by, At: *at}, nil
	case StatusRejected:
		if reason == nil || strings.TrimSpace(*reason) == "" {
			return nil, fmt.Errorf("rejected without reason: %w", ErrInconsistentDecision)
		}
		return Rejected{By: by, At: at, Reason: *reason}, nil
	}
	return nil, fmt.Errorf("unknown status %q: %w", status, ErrInconsistentDecision)
}
