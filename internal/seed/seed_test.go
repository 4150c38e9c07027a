package seed

import (
	"context"
	"testing"

	"koydenal/internal/models"
	"koydenal/internal/repository"
	"koydenal/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCategories(t *testing.T) {
	categories, err := LoadCategories()
	require.NoError(t, err)
	require.NotEmpty(t, categories)

	slugs := map[string]bool{}
	for _, c := range categories {
		assert.False(t, slugs[c.Slug], "duplicate slug %s", c.Slug)
		slugs[c.Slug] = true
		assert.True(t, c.IsActive)
	}
	assert.True(t, slugs["sebze"])
}

func TestCategoriesIsIdempotent(t *testing.T) {
	db := testutil.NewTestDB(t)
	repo := repository.NewCategoryRepository(db)
	ctx := context.Background()

	require.NoError(t, Categories(ctx, repo))
	require.NoError(t, Categories(ctx, repo))

	want, err := LoadCategories()
	require.NoError(t, err)
	got, err := repo.ListActive(ctx)
	require.NoError(t, err)
	assert.Len(t, got, len(want))
	assert.Equal(t, "sebze", got[0].Slug)
}

func TestListingsProduceConsistentDecisions(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	require.NoError(t, Categories(ctx, repository.NewCategoryRepository(db)))

	s := NewSeeder(db, 42)
	listings, err := s.Listings(ctx, Options{Listings: 25, Approved: 0.5, Rejected: 0.2})
	require.NoError(t, err)
	require.Len(t, listings, 25)

	var decided int
	for _, l := range listings {
		_, err := l.Decision()
		require.NoError(t, err, "listing %s has an inconsistent decision", l.ID)
		if l.Status != models.StatusPending {
			decided++
		}
	}

	var actions int64
	require.NoError(t, db.Model(&models.AdminAction{}).Count(&actions).Error)
	assert.Equal(t, int64(decided), actions)

	// Demo accounts are reused on a second run.
	_, err = s.Listings(ctx, Options{Listings: 1})
	require.NoError(t, err)
	var users int64
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	assert.Equal(t, int64(2), users)
}

func TestListingsRequireCategories(t *testing.T) {
	db := testutil.NewTestDB(t)
	_, err := NewSeeder(db, 1).Listings(context.Background(), DefaultOptions())
	assert.Error(t, err)
}

func TestClearListingsKeepsUsersAndCategories(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()
	require.NoError(t, Categories(ctx, repository.NewCategoryRepository(db)))
	s := NewSeeder(db, 7)
	_, err := s.Listings(ctx, Options{Listings: 5, Approved: 1})
	require.NoError(t, err)

	require.NoError(t, s.ClearListings(ctx))

	var listings, actions, users, categories int64
	require.NoError(t, db.Model(&models.Listing{}).Count(&listings).Error)
	require.NoError(t, db.Model(&models.AdminAction{}).Count(&actions).Error)
	require.NoError(t, db.Model(&models.User{}).Count(&users).Error)
	require.NoError(t, db.Model(&models.Category{}).Count(&categories).Error)
	assert.Zero(t, listings)
	assert.Zero(t, actions)
	assert.Equal(t, int64(2), users)
	assert.NotZero(t, categories)
}
