package http

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "correct horse battery staple"

func TestAuthMiddleware_Disabled(t *testing.T) {
	m := NewAuthMiddleware("")
	assert.False(t, m.Enabled())

	called := false
	h := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/history", nil))
	assert.True(t, called)
}

func TestAuthMiddleware_Tokens(t *testing.T) {
	valid, err := IssueToken(testSecret, "reader-1", time.Hour)
	require.NoError(t, err)
	expired, err := IssueToken(testSecret, "reader-1", -time.Minute)
	require.NoError(t, err)
	foreign, err := IssueToken("another secret", "reader-1", time.Hour)
	require.NoError(t, err)
	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{Subject: "reader-1"}).
		SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		want    int
		message string
	}{
		{"valid", "Bearer " + valid, http.StatusOK, ""},
		{"lowercase scheme", "bearer " + valid, http.StatusOK, ""},
		{"missing", "", http.StatusUnauthorized, "missing authorization token"},
		{"basic scheme", "Basic dXNlcjpwYXNz", http.StatusUnauthorized, "missing authorization token"},
		{"expired", "Bearer " + expired, http.StatusUnauthorized, "token expired"},
		{"wrong secret", "Bearer " + foreign, http.StatusUnauthorized, "invalid token"},
		{"wrong algorithm", "Bearer " + hs512, http.StatusUnauthorized, "invalid token"},
		{"garbage", "Bearer not.a.jwt", http.StatusUnauthorized, "invalid token"},
	}

	m := NewAuthMiddleware(testSecret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var subject string
			h := m.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				subject = GetSubject(r.Context())
				writeJSON(w, http.StatusOK, StatusResponse{Status: "ok"})
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/v1/history", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.want, rec.Code)
			if tt.want == http.StatusOK {
				assert.Equal(t, "reader-1", subject)
			} else {
				assert.Equal(t, tt.message, decode[ErrorResponse](t, rec).Error)
			}
		})
	}
}

func TestServer_RequiresTokenWhenSecretSet(t *testing.T) {
	cfg := DefaultConfig()
	cfg.JWTSecret = testSecret
	s, src := newTestServer(t, cfg)
	src.Put("mem://abc", alphabet)

	// Health stays public
	rec := do(t, s, http.MethodGet, "/health", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, s, http.MethodGet, "/api/v1/history", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	token, err := IssueToken(testSecret, "cli", time.Hour)
	require.NoError(t, err)
	rec = do(t, s, http.MethodPost, "/api/v1/books/open", OpenBookRequest{URI: "mem://abc"}, token)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIssueToken_RequiresSecret(t *testing.T) {
	_, err := IssueToken("", "cli", time.Hour)
	assert.Error(t, err)
}

func TestCORSMiddleware(t *testing.T) {
	m := NewCORSMiddleware([]string{"http://localhost:3000"})
	h := m.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/bookmarks", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/v1/bookmarks", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRecoveryMiddleware(t *testing.T) {
	h := NewRecoveryMiddleware().Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("page index out of range")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
