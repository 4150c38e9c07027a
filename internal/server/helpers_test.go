package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"koydenal/internal/config"
	"koydenal/internal/models"
	"koydenal/internal/storage"
	"koydenal/internal/testutil"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testJWTSecret = "test-secret-key-12345678901234567890123456789012"

type testServer struct {
	*Server
	mr  *miniredis.Miniredis
	cat *models.Category
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                  "test",
		JWTSecret:            testJWTSecret,
		JWTTTLHours:          1,
		FeatureFlags:         "guest_listings=on",
		StoragePublicURL:     "/uploads",
		ImageMaxUploadSizeMB: 5,
		ImageMaxDimension:    800,
		UploadConcurrency:    2,
		MaxImagesPerListing:  8,
		FeaturedDays:         30,
		SearchRatePerMinute:  60,
		SubmitRatePerHour:    20,
	}
}

func newTestServer(t *testing.T, mutate ...func(*config.Config)) *testServer {
	t.Helper()
	t.Setenv("APP_ENV", "test")

	cfg := testConfig()
	for _, fn := range mutate {
		fn(cfg)
	}

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	db := testutil.NewTestDB(t)
	s, err := NewServerWithDeps(cfg, db, rdb, storage.NewMemoryStore(cfg.StoragePublicURL))
	require.NoError(t, err)
	t.Cleanup(s.detachGate)

	s.app = s.NewApp()
	s.SetupMiddleware(s.app)
	s.SetupRoutes(s.app)

	return &testServer{
		Server: s,
		mr:     mr,
		cat:    testutil.CreateCategory(t, db, "Sebze", "sebze"),
	}
}

// login issues a token for an existing user without going through the password check.
func (ts *testServer) login(t *testing.T, user *models.User) string {
	t.Helper()
	sess, err := ts.sessions.Issue(context.Background(), user.ID)
	require.NoError(t, err)
	return sess.Token
}

type request struct {
	method  string
	path    string
	body    interface{}
	token   string
	headers map[string]string
}

func (ts *testServer) do(t *testing.T, r request) (*http.Response, []byte) {
	t.Helper()

	var reader io.Reader
	if r.body != nil {
		raw, err := json.Marshal(r.body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(r.method, r.path, reader)
	if r.body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if r.token != "" {
		req.Header.Set("Authorization", "Bearer "+r.token)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := ts.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func decode[T any](t *testing.T, body []byte) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(body, &v), string(body))
	return v
}

func assertError(t *testing.T, resp *http.Response, body []byte, status int, code string) models.ErrorResponse {
	t.Helper()
	assert.Equal(t, status, resp.StatusCode, string(body))
	errResp := decode[models.ErrorResponse](t, body)
	if code != "" {
		assert.Equal(t, code, errResp.Code)
	}
	return errResp
}

func listingBody() map[string]interface{} {
	return map[string]interface{}{
		"title":          "Test İlanı - Organik Domates",
		"description":    "Köyümüzde ilaçsız yetiştirilen organik domates, günlük toplama.",
		"price":          25.0,
		"quantity":       50,
		"unit":           "kg",
		"category":       "Sebze",
		"location":       "Manisa, Salihli",
		"contact_phone":  "0532 123 45 67",
		"contact_person": "Hasan Çiftçi",
	}
}
