package testutil

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"koydenal/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// TestPassword is the plain password of every user created by CreateUser.
const TestPassword = "Sifre1234!"

var testPasswordHash = sync.OnceValues(func() ([]byte, error) {
	return bcrypt.GenerateFromPassword([]byte(TestPassword), bcrypt.MinCost)
})

func passwordHash(t *testing.T) string {
	t.Helper()
	h, err := testPasswordHash()
	require.NoError(t, err)
	return string(h)
}

// CreateUser inserts a user with the given role and status.
func CreateUser(t *testing.T, db *gorm.DB, role models.Role, status models.ApprovalStatus) *models.User {
	t.Helper()
	id := uuid.New()
	u := &models.User{
		ID:       id,
		Email:    fmt.Sprintf("%s@koydenal.test", id.String()[:8]),
		Password: passwordHash(t),
		FullName: "Ayşe Yılmaz",
		Phone:    "0532 111 22 33",
		Role:     role,
		Status:   status,
	}
	require.NoError(t, db.Create(u).Error)
	return u
}

// CreateCategory inserts an active category.
func CreateCategory(t *testing.T, db *gorm.DB, name, slug string) *models.Category {
	t.Helper()
	c := &models.Category{Name: name, Slug: slug, IsActive: true}
	require.NoError(t, db.Create(c).Error)
	return c
}

// ListingOption customizes a fixture listing.
type ListingOption func(*models.Listing)

func WithStatus(s models.ApprovalStatus) ListingOption {
	return func(l *models.Listing) { l.Status = s }
}

func WithOwner(id uuid.UUID) ListingOption {
	return func(l *models.Listing) { l.UserID = &id }
}

func WithSecretDigest(digest string) ListingOption {
	return func(l *models.Listing) { l.ListingSecret = &digest }
}

func WithTitle(title string) ListingOption {
	return func(l *models.Listing) { l.Title = title }
}

func WithDescription(d string) ListingOption {
	return func(l *models.Listing) { l.Description = d }
}

func WithCreatedAt(at time.Time) ListingOption {
	return func(l *models.Listing) { l.CreatedAt = at }
}

func WithImages(urls ...string) ListingOption {
	return func(l *models.Listing) { l.Images = urls }
}

// CreateListing inserts a pending listing in the given category.
func CreateListing(t *testing.T, db *gorm.DB, categoryID uint, opts ...ListingOption) *models.Listing {
	t.Helper()
	l := &models.Listing{
		CategoryID:    categoryID,
		Title:         "Organik domates 10 kg",
		Description:   "Bahçemizden yeni toplanmış ürün, ilaç kullanılmadı.",
		Price:         120,
		Currency:      models.DefaultCurrency,
		Quantity:      10,
		Unit:          "kg",
		Location:      "İzmir, Tire",
		ListingType:   models.ListingTypeSale,
		ContactPerson: "Mehmet Demir",
		ContactPhone:  "0532 111 22 33",
		Status:        models.StatusPending,
	}
	for _, opt := range opts {
		opt(l)
	}
	require.NoError(t, db.Create(l).Error)
	return l
}
