package repository

import (
	"context"
	"errors"
	"time"

	"koydenal/internal/models"
	"koydenal/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ListingFilter narrows listing queries. Zero values mean "no constraint".
type ListingFilter struct {
	Status          models.ApprovalStatus
	Search          string
	CategoryID      uint
	Location        string
	ListingType     models.ListingType
	MinPrice        *float64
	MaxPrice        *float64
	FeaturedOnly    bool
	OpportunityOnly bool
	UserID          *uuid.UUID
	Page
}

// Decision describes an admin verdict to persist.
type Decision struct {
	To      models.ApprovalStatus
	AdminID uuid.UUID
	Reason  *string
	At      time.Time
}

// ListingRepository defines persistence operations for listings.
type ListingRepository interface {
	Create(ctx context.Context, listing *models.Listing) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	GetBySecret(ctx context.Context, id uuid.UUID, digest string) (*models.Listing, error)
	List(ctx context.Context, filter ListingFilter) ([]models.Listing, int64, error)
	UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error
	UpdateWithSecret(ctx context.Context, id uuid.UUID, digest string, fields map[string]interface{}) (bool, error)
	DeleteWithSecret(ctx context.Context, id uuid.UUID, digest string) (bool, error)
	Decide(ctx context.Context, id uuid.UUID, d Decision) (*models.Listing, error)
	SetFeatured(ctx context.Context, id uuid.UUID, featured bool, until *time.Time) (*models.Listing, error)
	SetOpportunity(ctx context.Context, id uuid.UUID, opportunity bool) (*models.Listing, error)
	Delete(ctx context.Context, id uuid.UUID) (*models.Listing, error)
	CountByStatus(ctx context.Context) (map[models.ApprovalStatus]int64, error)
	RecordView(ctx context.Context, id uuid.UUID, viewerKey string) error
	Actions(ctx context.Context, id uuid.UUID) ([]models.AdminAction, error)
}

type listingRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewListingRepository creates a new listing repository
func NewListingRepository(db *gorm.DB) ListingRepository {
	return &listingRepository{db: db, log: observability.NewRepoLogger("listings")}
}

func (r *listingRepository) Create(ctx context.Context, listing *models.Listing) error {
	defer observability.TrackQuery("create", "listings")()
	if err := r.db.WithContext(ctx).Create(listing).Error; err != nil {
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{
		"listing_id": listing.ID.String(),
		"guest":      listing.IsGuest(),
	})
	return nil
}

func (r *listingRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	if err := r.db.WithContext(ctx).Preload("Category").First(&listing, "id = ?", id).Error; err != nil {
		return nil, notFoundOrInternal(err, "Listing", id)
	}
	return &listing, nil
}

func (r *listingRepository) GetBySecret(ctx context.Context, id uuid.UUID, digest string) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).Preload("Category").
		Where("id = ? AND listing_secret = ?", id, digest).
		First(&listing).Error
	if err != nil {
		return nil, notFoundOrInternal(err, "Listing", id)
	}
	return &listing, nil
}

func (r *listingRepository) List(ctx context.Context, filter ListingFilter) ([]models.Listing, int64, error) {
	defer observability.TrackQuery("list", "listings")()
	page := filter.Normalized()

	q := r.db.WithContext(ctx).Model(&models.Listing{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		q = q.Where("("+likeClause("title")+" OR "+likeClause("description")+")", pattern, pattern)
	}
	if filter.CategoryID != 0 {
		q = q.Where("category_id = ?", filter.CategoryID)
	}
	if filter.Location != "" {
		q = q.Where(likeClause("location"), likePattern(filter.Location))
	}
	if filter.ListingType != "" {
		q = q.Where("listing_type = ?", filter.ListingType)
	}
	if filter.MinPrice != nil {
		q = q.Where("price >= ?", *filter.MinPrice)
	}
	if filter.MaxPrice != nil {
		q = q.Where("price <= ?", *filter.MaxPrice)
	}
	if filter.FeaturedOnly {
		q = q.Where("is_featured = ? AND (featured_until IS NULL OR featured_until > ?)", true, time.Now())
	}
	if filter.OpportunityOnly {
		q = q.Where("is_opportunity = ?", true)
	}
	if filter.UserID != nil {
		q = q.Where("user_id = ?", *filter.UserID)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var listings []models.Listing
	err := q.Preload("Category").
		Order("created_at DESC").
		Limit(page.Limit).
		Offset(page.Offset).
		Find(&listings).Error
	if err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return listings, total, nil
}

func (r *listingRepository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]interface{}) error {
	res := r.db.WithContext(ctx).Model(&models.Listing{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		r.log.LogError(ctx, res.Error, "update")
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Listing", id)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"listing_id": id.String()})
	return nil
}

// UpdateWithSecret applies fields only when digest matches the stored secret.
// It reports false, with no error, when the secret does not match.
func (r *listingRepository) UpdateWithSecret(ctx context.Context, id uuid.UUID, digest string, fields map[string]interface{}) (bool, error) {
	matched := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var listing models.Listing
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ? AND listing_secret = ?", id, digest).
			First(&listing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		matched = true
		return tx.Model(&models.Listing{}).Where("id = ?", id).Updates(fields).Error
	})
	if err != nil {
		r.log.LogError(ctx, err, "update_with_secret")
		return false, models.NewInternalError(err)
	}
	if matched {
		r.log.LogUpdate(ctx, map[string]interface{}{"listing_id": id.String(), "guest": true})
	}
	return matched, nil
}

// DeleteWithSecret removes the listing and its dependents when digest matches.
// It reports false, with no error, when the secret does not match.
func (r *listingRepository) DeleteWithSecret(ctx context.Context, id uuid.UUID, digest string) (bool, error) {
	matched := false
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var listing models.Listing
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Select("id").
			Where("id = ? AND listing_secret = ?", id, digest).
			First(&listing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		matched = true
		return deleteListingTree(tx, id)
	})
	if err != nil {
		r.log.LogError(ctx, err, "delete_with_secret")
		return false, models.NewInternalError(err)
	}
	if matched {
		r.log.LogDelete(ctx, map[string]interface{}{"listing_id": id.String(), "guest": true})
	}
	return matched, nil
}

// Decide applies an admin verdict and appends exactly one audit row, atomically.
func (r *listingRepository) Decide(ctx context.Context, id uuid.UUID, d Decision) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&listing, "id = ?", id).Error; err != nil {
			return notFoundOrInternal(err, "Listing", id)
		}
		if !models.CanTransition(listing.Status, d.To) {
			return models.NewInvalidTransitionError(listing.Status, d.To)
		}

		fields := map[string]interface{}{"status": d.To}
		switch d.To {
		case models.StatusApproved:
			// Re-approval keeps the original reviewer stamp.
			if listing.Status != models.StatusApproved || listing.ApprovedBy == nil {
				fields["approved_by"] = d.AdminID
				fields["approved_at"] = d.At
			}
			fields["rejection_reason"] = nil
		case models.StatusRejected:
			fields["rejection_reason"] = d.Reason
			fields["approved_by"] = d.AdminID
			fields["approved_at"] = d.At
		}
		if err := tx.Model(&listing).Updates(fields).Error; err != nil {
			return models.NewInternalError(err)
		}

		action := models.AdminAction{
			ListingID: id,
			AdminID:   d.AdminID,
			Action:    models.AdminActionType(d.To),
			Reason:    d.Reason,
		}
		if err := tx.Create(&action).Error; err != nil {
			return models.NewInternalError(err)
		}
		return tx.Preload("Category").First(&listing, "id = ?", id).Error
	})
	if err != nil {
		r.log.LogError(ctx, err, "decide")
		return nil, asAppError(err)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{
		"listing_id": id.String(),
		"status":     string(d.To),
		"admin_id":   d.AdminID.String(),
	})
	return &listing, nil
}

func (r *listingRepository) SetFeatured(ctx context.Context, id uuid.UUID, featured bool, until *time.Time) (*models.Listing, error) {
	if err := r.UpdateFields(ctx, id, map[string]interface{}{
		"is_featured":    featured,
		"featured_until": until,
	}); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

func (r *listingRepository) SetOpportunity(ctx context.Context, id uuid.UUID, opportunity bool) (*models.Listing, error) {
	if err := r.UpdateFields(ctx, id, map[string]interface{}{"is_opportunity": opportunity}); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}

// Delete removes the listing with its messages, favorites, views and audit rows in one transaction.
// The removed row is returned so callers can release its images.
func (r *listingRepository) Delete(ctx context.Context, id uuid.UUID) (*models.Listing, error) {
	var listing models.Listing
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&listing, "id = ?", id).Error; err != nil {
			return notFoundOrInternal(err, "Listing", id)
		}
		return deleteListingTree(tx, id)
	})
	if err != nil {
		r.log.LogError(ctx, err, "delete")
		return nil, asAppError(err)
	}
	r.log.LogDelete(ctx, map[string]interface{}{"listing_id": id.String()})
	return &listing, nil
}

func (r *listingRepository) CountByStatus(ctx context.Context) (map[models.ApprovalStatus]int64, error) {
	return countByStatus(r.db.WithContext(ctx).Model(&models.Listing{}))
}

// RecordView stores one view row and bumps the denormalized counter.
func (r *listingRepository) RecordView(ctx context.Context, id uuid.UUID, viewerKey string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&models.ListingView{ListingID: id, ViewerKey: viewerKey}).Error; err != nil {
			return err
		}
		return tx.Model(&models.Listing{}).Where("id = ?", id).
			UpdateColumn("view_count", gorm.Expr("view_count + ?", 1)).Error
	})
	if err != nil {
		return models.NewInternalError(err)
	}
	return nil
}

func (r *listingRepository) Actions(ctx context.Context, id uuid.UUID) ([]models.AdminAction, error) {
	var actions []models.AdminAction
	if err := r.db.WithContext(ctx).Where("listing_id = ?", id).Order("created_at ASC, id ASC").Find(&actions).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	return actions, nil
}

// deleteListingTree removes every row that references the listing, then the listing.
func deleteListingTree(tx *gorm.DB, id uuid.UUID) error {
	dependents := []interface{}{
		&models.ListingMessage{},
		&models.Favorite{},
		&models.ListingView{},
		&models.AdminAction{},
	}
	for _, model := range dependents {
		if err := tx.Where("listing_id = ?", id).Delete(model).Error; err != nil {
			return err
		}
	}
	return tx.Where("id = ?", id).Delete(&models.Listing{}).Error
}

type statusCount struct {
	Status models.ApprovalStatus
	Count  int64
}

func countByStatus(q *gorm.DB) (map[models.ApprovalStatus]int64, error) {
	var rows []statusCount
	if err := q.Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, models.NewInternalError(err)
	}
	out := map[models.ApprovalStatus]int64{
		models.StatusPending:  0,
		models.StatusApproved: 0,
		models.StatusRejected: 0,
	}
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

func notFoundOrInternal(err error, resource string, id interface{}) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewNotFoundError(resource, id)
	}
	return models.NewInternalError(err)
}

func asAppError(err error) error {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return models.NewInternalError(err)
}
