package service

import (
	"context"
	"sync"
	"testing"

	"koydenal/internal/featureflags"
	"koydenal/internal/models"
	"koydenal/internal/repository"
	"koydenal/internal/storage"
	"koydenal/internal/testutil"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type recordingPublisher struct {
	mu        sync.Mutex
	submitted []*models.Listing
	reviewed  []*models.Listing
}

func (p *recordingPublisher) ListingSubmitted(_ context.Context, l *models.Listing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.submitted = append(p.submitted, l)
	return nil
}

func (p *recordingPublisher) ListingReviewed(_ context.Context, l *models.Listing) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reviewed = append(p.reviewed, l)
	return nil
}

type testEnv struct {
	db       *gorm.DB
	listings repository.ListingRepository
	cats     repository.CategoryRepository
	users    repository.UserRepository
	store    *storage.FSStore
	events   *recordingPublisher
	category *models.Category
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := testutil.NewTestDB(t)
	return &testEnv{
		db:       db,
		listings: repository.NewListingRepository(db),
		cats:     repository.NewCategoryRepository(db),
		users:    repository.NewUserRepository(db),
		store:    storage.NewMemoryStore("/uploads"),
		events:   &recordingPublisher{},
		category: testutil.CreateCategory(t, db, "Sebze", "sebze"),
	}
}

func (e *testEnv) listingService(flags string) *ListingService {
	return NewListingService(e.listings, e.cats, e.users, e.store,
		storage.ImageProcessor{MaxBytes: 1 << 20, MaxDimension: 64},
		featureflags.NewManager(flags), e.events, ListingServiceConfig{UploadConcurrency: 2})
}

func (e *testEnv) approvalService() *ApprovalService {
	return NewApprovalService(e.listings, e.users, e.store, e.events, 30)
}

func validFields() ListingFields {
	return ListingFields{
		Title:         "Test İlanı - Organik Domates",
		Description:   "Köyümüzde ilaçsız yetiştirilen organik domates, günlük toplama.",
		Price:         25.00,
		Quantity:      50,
		Unit:          "kg",
		Category:      "Sebze",
		Location:      "Manisa, Salihli",
		ContactPhone:  "0532 123 45 67",
		ContactPerson: "Hasan Çiftçi",
	}
}

func pngImage(t *testing.T, w, h int) []byte {
	t.Helper()
	return testutil.TinyPNG(t, w, h)
}

func countRows(t *testing.T, db *gorm.DB, model interface{}, query string, args ...interface{}) int64 {
	t.Helper()
	var n int64
	require.NoError(t, db.Model(model).Where(query, args...).Count(&n).Error)
	return n
}
