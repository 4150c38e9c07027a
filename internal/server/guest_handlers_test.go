package server

import (
	"net/http"
	"testing"

	"koydenal/internal/config"
	"koydenal/internal/models"
	"koydenal/internal/service"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func submitGuest(t *testing.T, ts *testServer) service.SubmitResult {
	t.Helper()
	resp, body := ts.do(t, request{method: http.MethodPost, path: "/api/guest/listings", body: listingBody()})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	return decode[service.SubmitResult](t, body)
}

func TestGuestListingLifecycle(t *testing.T) {
	ts := newTestServer(t)

	submitted := submitGuest(t, ts)
	require.NotEmpty(t, submitted.Secret)
	require.NotNil(t, submitted.Listing)
	assert.Equal(t, models.StatusPending, submitted.Listing.Status)
	assert.Nil(t, submitted.Listing.UserID)

	path := "/api/guest/listings/" + submitted.Listing.ID.String()
	withSecret := map[string]string{listingSecretHeader: submitted.Secret}

	resp, body := ts.do(t, request{method: http.MethodGet, path: path, headers: withSecret})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.Equal(t, submitted.Listing.Title, decode[models.Listing](t, body).Title)

	// The edit link form of the capability works too.
	resp, body = ts.do(t, request{method: http.MethodGet, path: path + "?secret=" + submitted.Secret})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	update := listingBody()
	update["title"] = "Güncellenmiş organik domates"
	resp, body = ts.do(t, request{method: http.MethodPut, path: path, headers: withSecret, body: update})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	updated := decode[models.Listing](t, body)
	assert.Equal(t, "Güncellenmiş organik domates", updated.Title)
	assert.Equal(t, models.StatusPending, updated.Status)

	resp, body = ts.do(t, request{method: http.MethodDelete, path: path, headers: withSecret})
	require.Equal(t, http.StatusNoContent, resp.StatusCode, string(body))

	resp, body = ts.do(t, request{method: http.MethodGet, path: path, headers: withSecret})
	assertError(t, resp, body, http.StatusNotFound, models.CodeNotFound)
}

func TestGuestCapabilityMismatch(t *testing.T) {
	ts := newTestServer(t)
	first := submitGuest(t, ts)
	second := submitGuest(t, ts)

	path := "/api/guest/listings/" + first.Listing.ID.String()
	foreign := map[string]string{listingSecretHeader: second.Secret}

	resp, body := ts.do(t, request{method: http.MethodGet, path: path, headers: foreign})
	assertError(t, resp, body, http.StatusNotFound, models.CodeNotFound)

	resp, body = ts.do(t, request{method: http.MethodGet, path: path})
	assertError(t, resp, body, http.StatusNotFound, models.CodeNotFound)

	resp, body = ts.do(t, request{method: http.MethodPut, path: path, headers: foreign, body: listingBody()})
	assertError(t, resp, body, http.StatusForbidden, models.CodeSecretMismatch)

	resp, body = ts.do(t, request{method: http.MethodDelete, path: path, headers: foreign})
	assertError(t, resp, body, http.StatusForbidden, models.CodeSecretMismatch)

	// The listing is untouched by the failed attempts.
	resp, body = ts.do(t, request{method: http.MethodGet, path: path, headers: map[string]string{listingSecretHeader: first.Secret}})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
}

func TestGuestUpdateRevalidates(t *testing.T) {
	ts := newTestServer(t)
	submitted := submitGuest(t, ts)

	update := listingBody()
	update["title"] = "kısa"
	resp, body := ts.do(t, request{
		method:  http.MethodPut,
		path:    "/api/guest/listings/" + submitted.Listing.ID.String(),
		headers: map[string]string{listingSecretHeader: submitted.Secret},
		body:    update,
	})
	errResp := assertError(t, resp, body, http.StatusBadRequest, models.CodeValidation)
	assert.Contains(t, errResp.Fields, "title")
}

func TestGuestSubmissionDisabledByFlag(t *testing.T) {
	ts := newTestServer(t, func(cfg *config.Config) { cfg.FeatureFlags = "guest_listings=off" })

	resp, body := ts.do(t, request{method: http.MethodPost, path: "/api/guest/listings", body: listingBody()})
	assertError(t, resp, body, http.StatusForbidden, models.CodeForbidden)

	var count int64
	require.NoError(t, ts.db.Model(&models.Listing{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestGuestRouteRejectsMalformedID(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.do(t, request{method: http.MethodGet, path: "/api/guest/listings/123"})
	assertError(t, resp, body, http.StatusBadRequest, models.CodeValidation)
}
