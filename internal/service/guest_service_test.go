package service

import (
	"context"
	"errors"
	"testing"

	"koydenal/internal/models"
	"koydenal/internal/repository"
	"koydenal/internal/testutil"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// faultyListingRepo fails the secret-gated procedures with a server error.
type faultyListingRepo struct {
	repository.ListingRepository
}

func (faultyListingRepo) UpdateWithSecret(context.Context, uuid.UUID, string, map[string]interface{}) (bool, error) {
	return false, models.NewInternalError(errors.New("connection refused"))
}

func (faultyListingRepo) DeleteWithSecret(context.Context, uuid.UUID, string) (bool, error) {
	return false, models.NewInternalError(errors.New("connection refused"))
}

func (faultyListingRepo) GetBySecret(_ context.Context, id uuid.UUID, _ string) (*models.Listing, error) {
	return nil, models.NewNotFoundError("Listing", id)
}

func guestListing(t *testing.T, env *testEnv, opts ...testutil.ListingOption) (*models.Listing, string) {
	t.Helper()
	token, digest, err := NewListingSecret()
	require.NoError(t, err)
	l := testutil.CreateListing(t, env.db, env.category.ID, append(opts, testutil.WithSecretDigest(digest))...)
	return l, token
}

func TestGuestService_GetListing(t *testing.T) {
	env := newTestEnv(t)
	svc := NewGuestService(env.listings, env.cats, env.store)
	ctx := context.Background()

	mine, secret := guestListing(t, env)
	_, otherSecret := guestListing(t, env)

	got, err := svc.GetListing(ctx, models.ListingCapability{ListingID: mine.ID, Secret: secret})
	require.NoError(t, err)
	assert.Equal(t, mine.ID, got.ID)

	for name, s := range map[string]string{
		"empty":         "",
		"wrong":         "wrong-secret",
		"other listing": otherSecret,
		"stored digest": *mine.ListingSecret,
		"case changed":  swapCase(secret),
	} {
		_, err := svc.GetListing(ctx, models.ListingCapability{ListingID: mine.ID, Secret: s})
		assert.True(t, models.IsCode(err, models.CodeNotFound), name)
	}
}

func swapCase(s string) string {
	out := []byte(s)
	for i, c := range out {
		switch {
		case c >= 'a' && c <= 'z':
			out[i] = c - 32
		case c >= 'A' && c <= 'Z':
			out[i] = c + 32
		}
	}
	return string(out)
}

func TestGuestService_UpdateListing(t *testing.T) {
	env := newTestEnv(t)
	svc := NewGuestService(env.listings, env.cats, env.store)
	ctx := context.Background()
	listing, secret := guestListing(t, env, testutil.WithStatus(models.StatusApproved))

	fields := validFields()
	fields.Title = "Güncellenmiş ilan başlığı"

	ok, err := svc.UpdateListing(ctx, models.ListingCapability{ListingID: listing.ID, Secret: "yanlis"}, fields)
	require.NoError(t, err)
	assert.False(t, ok)

	var unchanged models.Listing
	require.NoError(t, env.db.First(&unchanged, "id = ?", listing.ID).Error)
	assert.Equal(t, listing.Title, unchanged.Title)

	ok, err = svc.UpdateListing(ctx, models.ListingCapability{ListingID: listing.ID, Secret: secret}, fields)
	require.NoError(t, err)
	assert.True(t, ok)

	var updated models.Listing
	require.NoError(t, env.db.First(&updated, "id = ?", listing.ID).Error)
	assert.Equal(t, "Güncellenmiş ilan başlığı", updated.Title)
	assert.Equal(t, models.StatusApproved, updated.Status, "guest edits keep the review status")

	fields.Title = "kısa"
	_, err = svc.UpdateListing(ctx, models.ListingCapability{ListingID: listing.ID, Secret: secret}, fields)
	assertFieldErrors(t, err, "title")
}

// Scenario C: a wrong secret leaves the row in place.
func TestGuestService_DeleteListing(t *testing.T) {
	env := newTestEnv(t)
	svc := NewGuestService(env.listings, env.cats, env.store)
	ctx := context.Background()

	url, err := env.store.Put(ctx, "listings/x/photo.jpg", []byte("jpeg"))
	require.NoError(t, err)
	listing, secret := guestListing(t, env, testutil.WithImages(url))
	require.NoError(t, env.db.Create(&models.Favorite{UserID: uuid.New(), ListingID: listing.ID}).Error)

	ok, err := svc.DeleteListing(ctx, models.ListingCapability{ListingID: listing.ID, Secret: "wrong-secret"})
	require.NoError(t, err)
	assert.False(t, ok)

	var still models.Listing
	require.NoError(t, env.db.First(&still, "id = ?", listing.ID).Error)
	assert.Equal(t, listing.Title, still.Title)
	assert.Equal(t, models.StatusPending, still.Status)

	ok, err = svc.DeleteListing(ctx, models.ListingCapability{ListingID: listing.ID, Secret: secret})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, countRows(t, env.db, &models.Listing{}, "id = ?", listing.ID))
	assert.Zero(t, countRows(t, env.db, &models.Favorite{}, "listing_id = ?", listing.ID))

	_, err = env.store.Get(ctx, "listings/x/photo.jpg")
	assert.Error(t, err)
}

func TestGuestService_ServerFaultIsNotMismatch(t *testing.T) {
	env := newTestEnv(t)
	svc := NewGuestService(faultyListingRepo{env.listings}, env.cats, env.store)
	capability := models.ListingCapability{ListingID: uuid.New(), Secret: "anything"}

	ok, err := svc.UpdateListing(context.Background(), capability, validFields())
	assert.False(t, ok)
	assert.True(t, models.IsCode(err, models.CodeInternal))

	ok, err = svc.DeleteListing(context.Background(), capability)
	assert.False(t, ok)
	assert.True(t, models.IsCode(err, models.CodeInternal))
}
