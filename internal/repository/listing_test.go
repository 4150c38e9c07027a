package repository

import (
	"context"
	"testing"
	"time"

	"koydenal/internal/models"
	"koydenal/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListingRepository_DecideWritesOneAuditRowPerCall(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewListingRepository(db)
	ctx := context.Background()

	cat := testutil.CreateCategory(t, db, "Sebze", "sebze")
	admin := testutil.CreateUser(t, db, models.RoleAdmin, models.StatusApproved)
	listing := testutil.CreateListing(t, db, cat.ID)

	first := time.Now().Add(-time.Hour)
	updated, err := repo.Decide(ctx, listing.ID, Decision{To: models.StatusApproved, AdminID: admin.ID, At: first})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, updated.Status)
	require.NotNil(t, updated.ApprovedBy)
	assert.Equal(t, admin.ID, *updated.ApprovedBy)

	// Re-approval is allowed and keeps the original stamp.
	other := testutil.CreateUser(t, db, models.RoleAdmin, models.StatusApproved)
	again, err := repo.Decide(ctx, listing.ID, Decision{To: models.StatusApproved, AdminID: other.ID, At: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, *again.ApprovedBy)

	actions, err := repo.Actions(ctx, listing.ID)
	require.NoError(t, err)
	require.Len(t, actions, 2)
	assert.Equal(t, models.AdminActionApproved, actions[0].Action)
	assert.Equal(t, other.ID, actions[1].AdminID)
}

func TestListingRepository_DecideRejectsForbiddenTransition(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewListingRepository(db)
	ctx := context.Background()

	cat := testutil.CreateCategory(t, db, "Meyve", "meyve")
	admin := testutil.CreateUser(t, db, models.RoleAdmin, models.StatusApproved)
	listing := testutil.CreateListing(t, db, cat.ID)

	reason := "Fiyat bilgisi eksik"
	rejected, err := repo.Decide(ctx, listing.ID, Decision{To: models.StatusRejected, AdminID: admin.ID, Reason: &reason, At: time.Now()})
	require.NoError(t, err)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, reason, *rejected.RejectionReason)
	assert.NotNil(t, rejected.ApprovedBy)

	_, err = repo.Decide(ctx, listing.ID, Decision{To: models.StatusApproved, AdminID: admin.ID, At: time.Now()})
	assert.True(t, models.IsCode(err, models.CodeInvalidTransition))

	actions, err := repo.Actions(ctx, listing.ID)
	require.NoError(t, err)
	assert.Len(t, actions, 1)
}

func TestListingRepository_DecideMissingListing(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewListingRepository(db)

	_, err := repo.Decide(context.Background(), uuid.New(), Decision{To: models.StatusApproved, AdminID: uuid.New(), At: time.Now()})
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestListingRepository_SecretProcedures(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewListingRepository(db)
	ctx := context.Background()

	cat := testutil.CreateCategory(t, db, "Süt Ürünleri", "sut-urunleri")
	listing := testutil.CreateListing(t, db, cat.ID, testutil.WithSecretDigest("good"))

	ok, err := repo.UpdateWithSecret(ctx, listing.ID, "bad", map[string]interface{}{"title": "Değişmemeli"})
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.UpdateWithSecret(ctx, listing.ID, "good", map[string]interface{}{"title": "Köy peyniri 5 kg"})
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := repo.GetBySecret(ctx, listing.ID, "good")
	require.NoError(t, err)
	assert.Equal(t, "Köy peyniri 5 kg", got.Title)

	_, err = repo.GetBySecret(ctx, listing.ID, "bad")
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	ok, err = repo.DeleteWithSecret(ctx, listing.ID, "bad")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.DeleteWithSecret(ctx, listing.ID, "good")
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.GetByID(ctx, listing.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestListingRepository_DeleteCascades(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewListingRepository(db)
	ctx := context.Background()

	cat := testutil.CreateCategory(t, db, "Bal", "bal")
	admin := testutil.CreateUser(t, db, models.RoleAdmin, models.StatusApproved)
	buyer := testutil.CreateUser(t, db, models.RoleUser, models.StatusApproved)
	listing := testutil.CreateListing(t, db, cat.ID, testutil.WithImages("https://cdn.test/a.jpg"))

	_, err := repo.Decide(ctx, listing.ID, Decision{To: models.StatusApproved, AdminID: admin.ID, At: time.Now()})
	require.NoError(t, err)
	require.NoError(t, NewFavoriteRepository(db).Add(ctx, buyer.ID, listing.ID))
	require.NoError(t, NewMessageRepository(db).Create(ctx, &models.ListingMessage{
		ListingID: listing.ID, SenderName: "Ali", SenderContact: "ali@test", Body: "Hâlâ satılık mı?",
	}))
	require.NoError(t, repo.RecordView(ctx, listing.ID, "ip:1"))

	deleted, err := repo.Delete(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StringList{"https://cdn.test/a.jpg"}, deleted.Images)

	for _, model := range []interface{}{&models.AdminAction{}, &models.Favorite{}, &models.ListingMessage{}, &models.ListingView{}} {
		var count int64
		require.NoError(t, db.Model(model).Where("listing_id = ?", listing.ID).Count(&count).Error)
		assert.Zero(t, count, "%T rows should be removed", model)
	}

	_, err = repo.Delete(ctx, listing.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestListingRepository_ListFiltersAndOrder(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewListingRepository(db)
	ctx := context.Background()

	cat := testutil.CreateCategory(t, db, "Sebze", "sebze")
	now := time.Now()
	old := testutil.CreateListing(t, db, cat.ID, testutil.WithTitle("Taze Domates kasası"), testutil.WithCreatedAt(now.Add(-2*time.Hour)))
	newer := testutil.CreateListing(t, db, cat.ID, testutil.WithTitle("Kuru domates 1 kg"), testutil.WithCreatedAt(now.Add(-time.Hour)))
	testutil.CreateListing(t, db, cat.ID, testutil.WithTitle("Salatalık turşuluk"), testutil.WithStatus(models.StatusApproved))

	listings, total, err := repo.List(ctx, ListingFilter{Status: models.StatusPending, Search: "DOMATES"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, listings, 2)
	assert.Equal(t, newer.ID, listings[0].ID)
	assert.Equal(t, old.ID, listings[1].ID)

	_, total, err = repo.List(ctx, ListingFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)

	listings, _, err = repo.List(ctx, ListingFilter{Status: models.StatusApproved})
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "Salatalık turşuluk", listings[0].Title)

	listings, total, err = repo.List(ctx, ListingFilter{Page: Page{Limit: 1, Offset: 1}})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	assert.Len(t, listings, 1)
}

func TestListingRepository_RecordView(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := NewListingRepository(db)
	ctx := context.Background()

	cat := testutil.CreateCategory(t, db, "Yumurta", "yumurta")
	listing := testutil.CreateListing(t, db, cat.ID)

	require.NoError(t, repo.RecordView(ctx, listing.ID, "ip:1"))
	require.NoError(t, repo.RecordView(ctx, listing.ID, "ip:2"))

	got, err := repo.GetByID(ctx, listing.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.ViewCount)
}
