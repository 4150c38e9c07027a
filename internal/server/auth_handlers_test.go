package server

import (
	"net/http"
	"testing"

	"koydenal/internal/models"
	"koydenal/internal/session"
	"koydenal/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterMeLogout(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, request{method: http.MethodPost, path: "/api/auth/register", body: map[string]string{
		"email":     "Zeynep@Example.com",
		"password":  "GucluSifre123!",
		"full_name": "Zeynep Kaya",
		"phone":     "+90 533 222 33 44",
	}})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
	registered := decode[AuthResponse](t, body)
	require.NotEmpty(t, registered.Token)
	assert.Equal(t, "zeynep@example.com", registered.User.Email)
	assert.Equal(t, models.StatusPending, registered.User.Status)

	resp, body = ts.do(t, request{method: http.MethodGet, path: "/api/auth/me", token: registered.Token})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	me := decode[struct {
		User        models.User `json:"user"`
		IsAdmin     bool        `json:"is_admin"`
		AdminStatus string      `json:"admin_status"`
	}](t, body)
	assert.False(t, me.IsAdmin)
	assert.Equal(t, "not_admin", me.AdminStatus)

	resp, body = ts.do(t, request{method: http.MethodPost, path: "/api/auth/logout", token: registered.Token})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	resp, body = ts.do(t, request{method: http.MethodGet, path: "/api/auth/me", token: registered.Token})
	assertError(t, resp, body, http.StatusUnauthorized, models.CodeUnauthorized)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	ts := newTestServer(t)
	payload := map[string]string{
		"email":     "ali@example.com",
		"password":  "GucluSifre123!",
		"full_name": "Ali Veli",
	}

	resp, body := ts.do(t, request{method: http.MethodPost, path: "/api/auth/register", body: payload})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))

	resp, body = ts.do(t, request{method: http.MethodPost, path: "/api/auth/register", body: payload})
	assertError(t, resp, body, http.StatusConflict, models.CodeConflict)
}

func TestLogin(t *testing.T) {
	ts := newTestServer(t)
	admin := testutil.CreateUser(t, ts.db, models.RoleAdmin, models.StatusApproved)

	resp, body := ts.do(t, request{method: http.MethodPost, path: "/api/auth/login", body: credentials{
		Email: admin.Email, Password: testutil.TestPassword,
	}})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	out := decode[AuthResponse](t, body)
	assert.NotEmpty(t, out.Token)
	assert.True(t, out.IsAdmin)

	resp, body = ts.do(t, request{method: http.MethodPost, path: "/api/auth/login", body: credentials{
		Email: admin.Email, Password: "yanlis",
	}})
	errResp := assertError(t, resp, body, http.StatusUnauthorized, models.CodeUnauthorized)
	assert.Equal(t, session.ErrBadCredentials.Error(), errResp.Error)
}

func TestAdminLoginOutcomes(t *testing.T) {
	ts := newTestServer(t)
	approvedAdmin := testutil.CreateUser(t, ts.db, models.RoleAdmin, models.StatusApproved)
	pendingAdmin := testutil.CreateUser(t, ts.db, models.RoleAdmin, models.StatusPending)
	seller := testutil.CreateUser(t, ts.db, models.RoleUser, models.StatusApproved)

	tests := []struct {
		name     string
		email    string
		password string
		status   int
		message  string
	}{
		{"approved admin", approvedAdmin.Email, testutil.TestPassword, http.StatusOK, ""},
		{"pending admin", pendingAdmin.Email, testutil.TestPassword, http.StatusForbidden, session.ErrAdminNotApproved.Error()},
		{"regular user", seller.Email, testutil.TestPassword, http.StatusForbidden, session.ErrNotAdmin.Error()},
		{"wrong password", approvedAdmin.Email, "Yanlis123!", http.StatusUnauthorized, session.ErrBadCredentials.Error()},
		{"unknown email", "yok@koydenal.test", testutil.TestPassword, http.StatusUnauthorized, session.ErrBadCredentials.Error()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, request{method: http.MethodPost, path: "/api/auth/admin/login", body: credentials{
				Email: tt.email, Password: tt.password,
			}})
			require.Equal(t, tt.status, resp.StatusCode, string(body))
			if tt.status == http.StatusOK {
				out := decode[AuthResponse](t, body)
				assert.True(t, out.IsAdmin)
				assert.NotEmpty(t, out.Token)
				return
			}
			assert.Equal(t, tt.message, decode[models.ErrorResponse](t, body).Error)
		})
	}
}

func TestAuthRequiredRejectsBadTokens(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			headers := map[string]string{}
			if tt.header != "" {
				headers["Authorization"] = tt.header
			}
			resp, body := ts.do(t, request{method: http.MethodGet, path: "/api/me/listings", headers: headers})
			assertError(t, resp, body, http.StatusUnauthorized, models.CodeUnauthorized)
		})
	}
}

func TestAdminRequiredRechecksProfile(t *testing.T) {
	ts := newTestServer(t)
	admin := testutil.CreateUser(t, ts.db, models.RoleAdmin, models.StatusApproved)
	token := ts.login(t, admin)

	resp, body := ts.do(t, request{method: http.MethodGet, path: "/api/admin/stats", token: token})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	// Demoting the profile takes effect on the next request with the same token.
	require.NoError(t, ts.db.Model(&models.User{}).Where("id = ?", admin.ID).Update("role", models.RoleUser).Error)
	resp, body = ts.do(t, request{method: http.MethodGet, path: "/api/admin/stats", token: token})
	errResp := assertError(t, resp, body, http.StatusForbidden, models.CodeForbidden)
	assert.Equal(t, session.ErrNotAdmin.Error(), errResp.Error)

	_, known := ts.adminGate.State().Get(admin.ID)
	assert.False(t, known)
}

func TestMeAdminFlagFollowsProfileChanges(t *testing.T) {
	ts := newTestServer(t)
	admin := testutil.CreateUser(t, ts.db, models.RoleAdmin, models.StatusApproved)
	token := ts.login(t, admin)

	type meResponse struct {
		IsAdmin     bool   `json:"is_admin"`
		AdminStatus string `json:"admin_status"`
	}

	resp, body := ts.do(t, request{method: http.MethodGet, path: "/api/auth/me", token: token})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	me := decode[meResponse](t, body)
	assert.True(t, me.IsAdmin)
	assert.Equal(t, "admin", me.AdminStatus)

	require.NoError(t, ts.db.Model(&models.User{}).Where("id = ?", admin.ID).Update("status", models.StatusPending).Error)
	resp, body = ts.do(t, request{method: http.MethodGet, path: "/api/auth/me", token: token})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	me = decode[meResponse](t, body)
	assert.False(t, me.IsAdmin)
	assert.Equal(t, "pending_admin", me.AdminStatus)
	assert.Equal(t, session.VerdictPendingAdmin, ts.adminGate.Current(admin.ID))

	require.NoError(t, ts.db.Model(&models.User{}).Where("id = ?", admin.ID).Update("role", models.RoleUser).Error)
	resp, body = ts.do(t, request{method: http.MethodGet, path: "/api/auth/me", token: token})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	me = decode[meResponse](t, body)
	assert.False(t, me.IsAdmin)
	assert.Equal(t, "not_admin", me.AdminStatus)
	_, known := ts.adminGate.State().Get(admin.ID)
	assert.False(t, known)
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	ts := newTestServer(t)
	seller := testutil.CreateUser(t, ts.db, models.RoleUser, models.StatusApproved)
	pendingAdmin := testutil.CreateUser(t, ts.db, models.RoleAdmin, models.StatusPending)

	resp, body := ts.do(t, request{method: http.MethodGet, path: "/api/admin/listings"})
	assertError(t, resp, body, http.StatusUnauthorized, models.CodeUnauthorized)

	resp, body = ts.do(t, request{method: http.MethodGet, path: "/api/admin/listings", token: ts.login(t, seller)})
	assertError(t, resp, body, http.StatusForbidden, models.CodeForbidden)

	resp, body = ts.do(t, request{method: http.MethodGet, path: "/api/admin/listings", token: ts.login(t, pendingAdmin)})
	errResp := assertError(t, resp, body, http.StatusForbidden, models.CodeForbidden)
	assert.Equal(t, session.ErrAdminNotApproved.Error(), errResp.Error)
}
