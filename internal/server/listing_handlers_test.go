package server

import (
	"bytes"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"koydenal/internal/models"
	"koydenal/internal/service"
	"koydenal/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func multipartListing(t *testing.T, images map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range listingBody() {
		require.NoError(t, writer.WriteField(k, fmt.Sprint(v)))
	}
	for name, content := range images {
		part, err := writer.CreateFormFile(imagesFormField, name)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return &body, writer.FormDataContentType()
}

func TestSubmitListingMultipartAsSeller(t *testing.T) {
	ts := newTestServer(t)
	seller := testutil.CreateUser(t, ts.db, models.RoleUser, models.StatusApproved)

	body, contentType := multipartListing(t, map[string][]byte{
		"domates.png": testutil.TinyPNG(t, 1200, 600),
		"bozuk.png":   []byte("not an image"),
	})
	req := httptest.NewRequest(http.MethodPost, "/api/listings", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+ts.login(t, seller))

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	result := decode[service.SubmitResult](t, raw)
	assert.Empty(t, result.Secret, "registered sellers get no guest secret")
	require.NotNil(t, result.Listing.UserID)
	assert.Equal(t, seller.ID, *result.Listing.UserID)
	assert.Equal(t, 1, result.DroppedImages)
	require.Len(t, result.Listing.Images, 1)

	imageURL := result.Listing.Images[0]
	require.True(t, strings.HasPrefix(imageURL, "/uploads/listings/"), imageURL)

	resp, raw = ts.do(t, request{method: http.MethodGet, path: imageURL})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "image/jpeg", resp.Header.Get("Content-Type"))
	assert.NotEmpty(t, raw)
}

func TestSubmitListingJSONAsGuestOnOptionalRoute(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, request{method: http.MethodPost, path: "/api/listings", body: listingBody()})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	result := decode[service.SubmitResult](t, body)
	assert.NotEmpty(t, result.Secret)
	assert.Nil(t, result.Listing.UserID)
}

func TestSubmitListingRejectsExpiredSessionInsteadOfGuest(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.do(t, request{
		method: http.MethodPost, path: "/api/listings", body: listingBody(), token: "expired.or.bogus",
	})
	assertError(t, resp, body, http.StatusUnauthorized, models.CodeUnauthorized)
}

func TestSubmitListingValidationAndCategory(t *testing.T) {
	ts := newTestServer(t)

	invalid := listingBody()
	invalid["title"] = "kısa"
	invalid["contact_phone"] = "12345"
	resp, body := ts.do(t, request{method: http.MethodPost, path: "/api/listings", body: invalid})
	errResp := assertError(t, resp, body, http.StatusBadRequest, models.CodeValidation)
	assert.Contains(t, errResp.Fields, "title")
	assert.Contains(t, errResp.Fields, "contact_phone")

	unknown := listingBody()
	unknown["category"] = "Uzay Gemisi"
	resp, body = ts.do(t, request{method: http.MethodPost, path: "/api/listings", body: unknown})
	errResp = assertError(t, resp, body, http.StatusBadRequest, models.CodeValidation)
	assert.Equal(t, "Kategori bulunamadı", errResp.Fields["category"])
}

func TestSubmitListingRejectedUserIsForbidden(t *testing.T) {
	ts := newTestServer(t)
	banned := testutil.CreateUser(t, ts.db, models.RoleUser, models.StatusRejected)

	resp, body := ts.do(t, request{method: http.MethodPost, path: "/api/listings", body: listingBody(), token: ts.login(t, banned)})
	assertError(t, resp, body, http.StatusForbidden, models.CodeForbidden)
}

func TestBrowseShowsOnlyApproved(t *testing.T) {
	ts := newTestServer(t)
	approved := testutil.CreateListing(t, ts.db, ts.cat.ID,
		testutil.WithTitle("Yayla balı 2 kg"), testutil.WithStatus(models.StatusApproved))
	pending := testutil.CreateListing(t, ts.db, ts.cat.ID, testutil.WithTitle("Köy tereyağı"))
	rejected := testutil.CreateListing(t, ts.db, ts.cat.ID, testutil.WithStatus(models.StatusRejected))

	resp, body := ts.do(t, request{method: http.MethodGet, path: "/api/listings"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	page := decode[service.Page[models.Listing]](t, body)
	require.Len(t, page.Items, 1)
	assert.Equal(t, int64(1), page.Total)
	assert.Equal(t, approved.ID, page.Items[0].ID)

	resp, body = ts.do(t, request{method: http.MethodGet, path: "/api/listings?q=bal&category=sebze"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Len(t, decode[service.Page[models.Listing]](t, body).Items, 1)

	resp, body = ts.do(t, request{method: http.MethodGet, path: "/api/listings?min_price=abc"})
	assertError(t, resp, body, http.StatusBadRequest, models.CodeValidation)

	for _, hidden := range []*models.Listing{pending, rejected} {
		resp, body = ts.do(t, request{method: http.MethodGet, path: "/api/listings/" + hidden.ID.String()})
		assertError(t, resp, body, http.StatusNotFound, models.CodeNotFound)
	}

	resp, body = ts.do(t, request{method: http.MethodGet, path: "/api/listings/" + approved.ID.String()})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, int64(1), decode[models.Listing](t, body).ViewCount)
}

func TestGetCategories(t *testing.T) {
	ts := newTestServer(t)
	testutil.CreateCategory(t, ts.db, "Meyve", "meyve")

	resp, body := ts.do(t, request{method: http.MethodGet, path: "/api/categories"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Len(t, decode[[]models.Category](t, body), 2)
}

func TestFavoritesAndMessages(t *testing.T) {
	ts := newTestServer(t)
	owner := testutil.CreateUser(t, ts.db, models.RoleUser, models.StatusApproved)
	buyer := testutil.CreateUser(t, ts.db, models.RoleUser, models.StatusApproved)
	listing := testutil.CreateListing(t, ts.db, ts.cat.ID,
		testutil.WithOwner(owner.ID), testutil.WithStatus(models.StatusApproved))
	pending := testutil.CreateListing(t, ts.db, ts.cat.ID, testutil.WithOwner(owner.ID))
	buyerToken := ts.login(t, buyer)

	resp, body := ts.do(t, request{method: http.MethodPost, path: "/api/listings/" + listing.ID.String() + "/favorite", token: buyerToken})
	require.Equal(t, http.StatusNoContent, resp.StatusCode, string(body))

	resp, body = ts.do(t, request{method: http.MethodPost, path: "/api/listings/" + pending.ID.String() + "/favorite", token: buyerToken})
	assertError(t, resp, body, http.StatusNotFound, models.CodeNotFound)

	resp, body = ts.do(t, request{method: http.MethodGet, path: "/api/me/favorites", token: buyerToken})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Len(t, decode[[]models.Favorite](t, body), 1)

	resp, body = ts.do(t, request{method: http.MethodDelete, path: "/api/listings/" + listing.ID.String() + "/favorite", token: buyerToken})
	require.Equal(t, http.StatusNoContent, resp.StatusCode, string(body))

	// Visitors may message sellers without an account.
	resp, body = ts.do(t, request{method: http.MethodPost, path: "/api/listings/" + listing.ID.String() + "/messages", body: map[string]string{
		"sender_name":    "Fatma",
		"sender_contact": "0533 444 55 66",
		"body":           "Merhaba, 20 kg alabilir miyim?",
	}})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	msg := decode[models.ListingMessage](t, body)
	assert.Nil(t, msg.SenderID)

	resp, body = ts.do(t, request{method: http.MethodGet, path: "/api/me/messages", token: ts.login(t, owner)})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	inbox := decode[[]models.ListingMessage](t, body)
	require.Len(t, inbox, 1)
	assert.Equal(t, "Fatma", inbox[0].SenderName)
}

func TestFeatureFlagsEndpoint(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.do(t, request{method: http.MethodGet, path: "/api/feature-flags"})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	out := decode[struct {
		Evaluated map[string]bool `json:"evaluated"`
	}](t, body)
	assert.True(t, out.Evaluated["guest_listings"])
}
