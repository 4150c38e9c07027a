package repository

import (
	"context"
	"strings"

	"koydenal/internal/cache"
	"koydenal/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CategoryRepository defines read access to categories plus seeding.
type CategoryRepository interface {
	ListActive(ctx context.Context) ([]models.Category, error)
	GetByID(ctx context.Context, id uint) (*models.Category, error)
	FindByNameOrSlug(ctx context.Context, value string) (*models.Category, error)
	Upsert(ctx context.Context, categories []models.Category) error
}

type categoryRepository struct {
	db *gorm.DB
}

// NewCategoryRepository returns a new CategoryRepository implementation.
func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) ListActive(ctx context.Context) ([]models.Category, error) {
	var categories []models.Category
	err := cache.Aside(ctx, cache.CategoriesKey, &categories, cache.CategoriesTTL, func() error {
		if err := r.db.WithContext(ctx).
			Where("is_active = ?", true).
			Order("display_order ASC, name ASC").
			Find(&categories).Error; err != nil {
			return models.NewInternalError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return categories, nil
}

func (r *categoryRepository) GetByID(ctx context.Context, id uint) (*models.Category, error) {
	var category models.Category
	if err := r.db.WithContext(ctx).First(&category, id).Error; err != nil {
		return nil, notFoundOrInternal(err, "Category", id)
	}
	return &category, nil
}

// FindByNameOrSlug resolves a category by case-insensitive name or exact slug.
func (r *categoryRepository) FindByNameOrSlug(ctx context.Context, value string) (*models.Category, error) {
	value = strings.TrimSpace(value)
	var category models.Category
	err := r.db.WithContext(ctx).
		Where("LOWER(name) = ? OR slug = ?", strings.ToLower(value), strings.ToLower(value)).
		First(&category).Error
	if err != nil {
		return nil, notFoundOrInternal(err, "Category", value)
	}
	return &category, nil
}

func (r *categoryRepository) Upsert(ctx context.Context, categories []models.Category) error {
	if len(categories) == 0 {
		return nil
	}
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "icon", "display_order", "is_active"}),
	}).Create(&categories).Error
	if err != nil {
		return models.NewInternalError(err)
	}
	cache.InvalidateCategories(ctx)
	return nil
}
