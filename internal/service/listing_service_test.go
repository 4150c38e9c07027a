package service

import (
	"context"
	"strings"
	"testing"

	"koydenal/internal/models"
	"koydenal/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func assertFieldErrors(t *testing.T, err error, fields ...string) {
	t.Helper()
	require.Error(t, err)
	var appErr *models.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, models.CodeValidation, appErr.Code)
	for _, f := range fields {
		assert.Contains(t, appErr.Fields, f)
	}
}

func TestSubmit_GuestListingThenApprove(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.listingService("guest_listings=on").Submit(ctx, SubmitListingInput{Fields: validFields()})
	require.NoError(t, err)

	var stored models.Listing
	require.NoError(t, env.db.First(&stored, "id = ?", res.Listing.ID).Error)
	assert.Equal(t, models.StatusPending, stored.Status)
	assert.Nil(t, stored.UserID)
	require.NotNil(t, stored.ListingSecret)
	assert.NotEmpty(t, res.Secret)
	assert.Equal(t, DigestSecret(res.Secret), *stored.ListingSecret)
	assert.NotEqual(t, res.Secret, *stored.ListingSecret)
	assert.Equal(t, env.category.ID, stored.CategoryID)
	assert.Equal(t, "5321234567", stored.ContactPhone)
	assert.Equal(t, models.DefaultCurrency, stored.Currency)
	assert.Equal(t, models.ListingTypeSale, stored.ListingType)
	assert.Len(t, env.events.submitted, 1)

	admin := testutil.CreateUser(t, env.db, models.RoleAdmin, models.StatusApproved)
	approved, err := env.approvalService().ApproveListing(ctx, admin.ID, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, approved.Status)

	var actions []models.AdminAction
	require.NoError(t, env.db.Where("listing_id = ?", stored.ID).Find(&actions).Error)
	require.Len(t, actions, 1)
	assert.Equal(t, models.AdminActionApproved, actions[0].Action)
	assert.Equal(t, admin.ID, actions[0].AdminID)
}

func TestSubmit_OwnedListingHasNoSecret(t *testing.T) {
	env := newTestEnv(t)
	seller := testutil.CreateUser(t, env.db, models.RoleUser, models.StatusPending)

	res, err := env.listingService("").Submit(context.Background(), SubmitListingInput{
		Fields: validFields(),
		UserID: &seller.ID,
	})
	require.NoError(t, err)
	assert.Empty(t, res.Secret)
	assert.Nil(t, res.Listing.ListingSecret)
	require.NotNil(t, res.Listing.UserID)
	assert.Equal(t, seller.ID, *res.Listing.UserID)
}

func TestSubmit_Validation(t *testing.T) {
	env := newTestEnv(t)
	svc := env.listingService("guest_listings=on")

	tests := []struct {
		name   string
		mutate func(*ListingFields)
		fields []string
	}{
		{"short title", func(f *ListingFields) { f.Title = "Domates" }, []string{"title"}},
		{"short description", func(f *ListingFields) { f.Description = "Çok güzel" }, []string{"description"}},
		{"negative price", func(f *ListingFields) { f.Price = -1 }, []string{"price"}},
		{"zero quantity", func(f *ListingFields) { f.Quantity = 0 }, []string{"quantity"}},
		{"blank unit and location", func(f *ListingFields) { f.Unit = "  "; f.Location = "" }, []string{"unit", "location"}},
		{"landline phone", func(f *ListingFields) { f.ContactPhone = "0212 555 11 22" }, []string{"contact_phone"}},
		{"short contact person", func(f *ListingFields) { f.ContactPerson = "Al" }, []string{"contact_person"}},
		{"bad email", func(f *ListingFields) { f.ContactEmail = "yok" }, []string{"contact_email"}},
		{"unknown category", func(f *ListingFields) { f.Category = "Uzay gemisi" }, []string{"category"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fields := validFields()
			tt.mutate(&fields)
			_, err := svc.Submit(context.Background(), SubmitListingInput{Fields: fields})
			assertFieldErrors(t, err, tt.fields...)
		})
	}

	var n int64
	require.NoError(t, env.db.Model(&models.Listing{}).Count(&n).Error)
	assert.Zero(t, n)
	assert.Empty(t, env.events.submitted)
}

func TestSubmit_TooManyImages(t *testing.T) {
	env := newTestEnv(t)
	images := make([]ImageUpload, 9)
	_, err := env.listingService("guest_listings=on").Submit(context.Background(), SubmitListingInput{
		Fields: validFields(),
		Images: images,
	})
	assertFieldErrors(t, err, "images")
}

func TestSubmit_CategoryBySlugIsCaseInsensitive(t *testing.T) {
	env := newTestEnv(t)
	fields := validFields()
	fields.Category = "SEBZE"
	res, err := env.listingService("guest_listings=on").Submit(context.Background(), SubmitListingInput{Fields: fields})
	require.NoError(t, err)
	assert.Equal(t, env.category.ID, res.Listing.CategoryID)
}

func TestSubmit_PolicyRejections(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.listingService("guest_listings=off").Submit(ctx, SubmitListingInput{Fields: validFields()})
	assert.True(t, models.IsCode(err, models.CodeForbidden))

	banned := testutil.CreateUser(t, env.db, models.RoleUser, models.StatusRejected)
	_, err = env.listingService("guest_listings=on").Submit(ctx, SubmitListingInput{
		Fields: validFields(),
		UserID: &banned.ID,
	})
	assert.True(t, models.IsCode(err, models.CodeForbidden))
	assert.Equal(t, int64(0), countRows(t, env.db, &models.Listing{}, "1 = 1"))
}

func TestSubmit_DropsFailedImages(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.listingService("guest_listings=on,image_webp=on").Submit(ctx, SubmitListingInput{
		Fields: validFields(),
		Images: []ImageUpload{
			{Filename: "domates.png", Content: pngImage(t, 200, 100)},
			{Filename: "bozuk.png", Content: []byte("not an image at all")},
			{Filename: "kasa.png", Content: pngImage(t, 20, 20)},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.DroppedImages)
	require.Len(t, res.Listing.Images, 2)
	for _, u := range res.Listing.Images {
		assert.True(t, strings.HasPrefix(u, "/uploads/listings/"+res.Listing.ID.String()+"/"), u)
		assert.True(t, strings.HasSuffix(u, ".jpg"), u)
	}

	keys, err := env.store.List(ctx, "listings/"+res.Listing.ID.String())
	require.NoError(t, err)
	assert.Len(t, keys, 4, "each image stores a JPEG and a WebP rendition")

	var stored models.Listing
	require.NoError(t, env.db.First(&stored, "id = ?", res.Listing.ID).Error)
	assert.Equal(t, res.Listing.Images, stored.Images)
}

func TestListingSecret(t *testing.T) {
	t.Parallel()
	a, digestA, err := NewListingSecret()
	require.NoError(t, err)
	b, _, err := NewListingSecret()
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Len(t, a, 43)
	assert.Len(t, digestA, 64)
	assert.Equal(t, digestA, DigestSecret(a))
	assert.NotContains(t, a, "+")
	assert.NotContains(t, a, "/")
}
