package repository

import (
	"context"
	"errors"
	"strings"

	"koydenal/internal/models"
	"koydenal/internal/observability"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UserFilter narrows admin user queries.
type UserFilter struct {
	Status models.ApprovalStatus
	Role   models.Role
	Search string
	Page
}

// UserRepository defines persistence operations for users.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	List(ctx context.Context, filter UserFilter) ([]models.User, int64, error)
	Decide(ctx context.Context, id uuid.UUID, d Decision) (*models.User, error)
	SetRole(ctx context.Context, id uuid.UUID, role models.Role) error
	Delete(ctx context.Context, id uuid.UUID) ([]models.Listing, error)
	CountByStatus(ctx context.Context) (map[models.ApprovalStatus]int64, error)
}

type userRepository struct {
	db  *gorm.DB
	log *observability.RepoLogger
}

// NewUserRepository returns a new UserRepository implementation.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db, log: observability.NewRepoLogger("users")}
}

func (r *userRepository) Create(ctx context.Context, user *models.User) error {
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if err := r.db.WithContext(ctx).Create(user).Error; err != nil {
		if isUniqueConstraintError(err) {
			return models.NewConflictError("Bu e-posta adresi zaten kayıtlı")
		}
		r.log.LogError(ctx, err, "create")
		return models.NewInternalError(err)
	}
	r.log.LogCreate(ctx, map[string]interface{}{"user_id": user.ID.String()})
	return nil
}

func (r *userRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, notFoundOrInternal(err, "User", id)
	}
	return &user, nil
}

// GetByEmail returns nil, nil when no user has the address.
func (r *userRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, models.NewInternalError(err)
	}
	return &user, nil
}

func (r *userRepository) List(ctx context.Context, filter UserFilter) ([]models.User, int64, error) {
	page := filter.Normalized()

	q := r.db.WithContext(ctx).Model(&models.User{})
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if filter.Search != "" {
		pattern := likePattern(filter.Search)
		q = q.Where("("+likeClause("full_name")+" OR "+likeClause("email")+")", pattern, pattern)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}

	var users []models.User
	if err := q.Order("created_at DESC").Limit(page.Limit).Offset(page.Offset).Find(&users).Error; err != nil {
		return nil, 0, models.NewInternalError(err)
	}
	return users, total, nil
}

// Decide applies an admin verdict to a profile. No audit row is written for users.
func (r *userRepository) Decide(ctx context.Context, id uuid.UUID, d Decision) (*models.User, error) {
	var user models.User
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, "id = ?", id).Error; err != nil {
			return notFoundOrInternal(err, "User", id)
		}
		if !models.CanTransition(user.Status, d.To) {
			return models.NewInvalidTransitionError(user.Status, d.To)
		}

		fields := map[string]interface{}{"status": d.To}
		switch d.To {
		case models.StatusApproved:
			if user.Status != models.StatusApproved || user.ApprovedBy == nil {
				fields["approved_by"] = d.AdminID
				fields["approved_at"] = d.At
			}
			fields["rejection_reason"] = nil
		case models.StatusRejected:
			fields["rejection_reason"] = d.Reason
			fields["approved_by"] = d.AdminID
			fields["approved_at"] = d.At
		}
		if err := tx.Model(&user).Updates(fields).Error; err != nil {
			return models.NewInternalError(err)
		}
		return tx.First(&user, "id = ?", id).Error
	})
	if err != nil {
		r.log.LogError(ctx, err, "decide")
		return nil, asAppError(err)
	}
	r.log.LogUpdate(ctx, map[string]interface{}{"user_id": id.String(), "status": string(d.To)})
	return &user, nil
}

func (r *userRepository) SetRole(ctx context.Context, id uuid.UUID, role models.Role) error {
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update("role", role)
	if res.Error != nil {
		return models.NewInternalError(res.Error)
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("User", id)
	}
	return nil
}

// Delete removes the user's listings (with their dependents), the user's own
// favorites and the profile in one transaction. It returns the removed listings.
func (r *userRepository) Delete(ctx context.Context, id uuid.UUID) ([]models.Listing, error) {
	var owned []models.Listing
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var user models.User
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&user, "id = ?", id).Error; err != nil {
			return notFoundOrInternal(err, "User", id)
		}
		if err := tx.Where("user_id = ?", id).Find(&owned).Error; err != nil {
			return err
		}
		for _, l := range owned {
			if err := deleteListingTree(tx, l.ID); err != nil {
				return err
			}
		}
		if err := tx.Where("user_id = ?", id).Delete(&models.Favorite{}).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.ListingMessage{}).Where("sender_id = ?", id).Update("sender_id", nil).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&models.User{}).Error
	})
	if err != nil {
		r.log.LogError(ctx, err, "delete")
		return nil, asAppError(err)
	}
	r.log.LogDelete(ctx, map[string]interface{}{"user_id": id.String(), "listings": len(owned)})
	return owned, nil
}

func (r *userRepository) CountByStatus(ctx context.Context) (map[models.ApprovalStatus]int64, error) {
	return countByStatus(r.db.WithContext(ctx).Model(&models.User{}))
}
