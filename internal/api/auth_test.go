package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pr-poehali-dev/rusbakery-email-system/internal/auth"
	"github.com/pr-poehali-dev/rusbakery-email-system/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func hashFor(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)
	return string(hash)
}

func storedUser(t *testing.T, password string) *models.User {
	t.Helper()
	return &models.User{
		ID:           1,
		Email:        "anna@rusbakery.ru",
		PasswordHash: hashFor(t, password),
		FirstName:    "Anna",
		LastName:     "Petrova",
		DisplayName:  "Anna",
		Role:         "worker",
	}
}

func TestLoginSuccess(t *testing.T) {
	now := time.Now().UTC().Truncate(time.Second)
	user := storedUser(t, "fresh-bread")

	var setOnlineID int64
	users := &fakeUserRepo{
		getByEmailFn: func(ctx context.Context, email string) (*models.User, error) {
			if email == user.Email {
				return user, nil
			}
			return nil, nil
		},
		setOnlineFn: func(ctx context.Context, id int64) (*models.User, error) {
			setOnlineID = id
			updated := *user
			updated.IsOnline = true
			updated.LastSeen = &now
			return &updated, nil
		},
	}
	pres := &fakePresence{}
	r := newTestRouter(t, users, nil, pres)

	w := doRequest(r, http.MethodPost, "/v1/auth/login",
		`{"email":"anna@rusbakery.ru","password":"fresh-bread"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")
	assert.NotEmpty(t, w.Header().Get("X-Session-Token"))

	var profile models.Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, int64(1), profile.ID)
	assert.Equal(t, "anna@rusbakery.ru", profile.Email)
	assert.True(t, profile.IsOnline)
	require.NotNil(t, profile.LastSeen)
	assert.True(t, profile.LastSeen.Equal(now), "lastSeen should round-trip")

	// Side effects: online flip persisted, presence marked.
	assert.Equal(t, int64(1), setOnlineID)
	assert.Equal(t, []int64{1}, pres.marked)

	// The issued token introspects back to the same user.
	claims, err := auth.ParseToken(w.Header().Get("X-Session-Token"), testJWTSecret)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.UserID)
}

func TestLoginMissingFields(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"missing email", `{"password":"x"}`},
		{"missing password", `{"email":"anna@rusbakery.ru"}`},
		{"empty email", `{"email":"","password":"x"}`},
		{"empty body", `{}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRouter(t, nil, nil, nil)
			w := doRequest(r, http.MethodPost, "/v1/auth/login", tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
		})
	}
}

// An unknown email and a wrong password must be indistinguishable: same
// status, byte-identical body.
func TestLoginRejectionsAreIndistinguishable(t *testing.T) {
	user := storedUser(t, "fresh-bread")
	users := &fakeUserRepo{
		getByEmailFn: func(ctx context.Context, email string) (*models.User, error) {
			if email == user.Email {
				return user, nil
			}
			return nil, nil
		},
	}
	r := newTestRouter(t, users, nil, nil)

	unknown := doRequest(r, http.MethodPost, "/v1/auth/login",
		`{"email":"nobody@rusbakery.ru","password":"fresh-bread"}`)
	wrongPass := doRequest(r, http.MethodPost, "/v1/auth/login",
		`{"email":"anna@rusbakery.ru","password":"stale-bread"}`)

	assert.Equal(t, http.StatusUnauthorized, unknown.Code)
	assert.Equal(t, http.StatusUnauthorized, wrongPass.Code)
	assert.Equal(t, unknown.Body.String(), wrongPass.Body.String())
}

func TestLoginMethodNotAllowed(t *testing.T) {
	r := newTestRouter(t, nil, nil, nil)

	w := doRequest(r, http.MethodGet, "/v1/auth/login", "")

	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestLoginPreflight(t *testing.T) {
	r := newTestRouter(t, nil, nil, nil)

	w := doRequest(r, http.MethodOptions, "/v1/auth/login", "")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, w.Body.String())
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "POST, OPTIONS", w.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "86400", w.Header().Get("Access-Control-Max-Age"))
}

func TestLogout(t *testing.T) {
	var offlineID int64
	users := &fakeUserRepo{
		setOfflineFn: func(ctx context.Context, id int64) error {
			offlineID = id
			return nil
		},
	}
	pres := &fakePresence{}
	r := newTestRouter(t, users, nil, pres)

	w := doRequest(r, http.MethodPost, "/v1/auth/logout", `{"id":7}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	assert.Equal(t, int64(7), offlineID)
	assert.Equal(t, []int64{7}, pres.cleared)
}

func TestLogoutMissingID(t *testing.T) {
	r := newTestRouter(t, nil, nil, nil)
	w := doRequest(r, http.MethodPost, "/v1/auth/logout", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSession(t *testing.T) {
	user := storedUser(t, "fresh-bread")
	users := &fakeUserRepo{
		getByIDFn: func(ctx context.Context, id int64) (*models.User, error) {
			if id == user.ID {
				return user, nil
			}
			return nil, nil
		},
	}
	r := newTestRouter(t, users, nil, nil)

	token, err := auth.GenerateToken(user.ID, user.Email, testJWTSecret, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/auth/session", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var profile models.Profile
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &profile))
	assert.Equal(t, user.Email, profile.Email)
}

func TestSessionRejectsBadTokens(t *testing.T) {
	r := newTestRouter(t, nil, nil, nil)

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc"},
		{"garbage token", "Bearer not-a-token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/v1/auth/session", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}
}
