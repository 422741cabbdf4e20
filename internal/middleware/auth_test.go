package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yu-iskw/lightdash/internal/domain"
)

func newAuthHandler(t *testing.T, admins ...string) (http.Handler, *domain.ContextPrincipal) {
	t.Helper()
	v, err := NewHS256Validator(testSecret)
	require.NoError(t, err)

	var seen domain.ContextPrincipal
	h := Authenticate(AuthConfig{Validator: v, Admins: admins})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := domain.PrincipalFromContext(r.Context())
		require.True(t, ok)
		seen = p
		w.WriteHeader(http.StatusOK)
	}))
	return h, &seen
}

func authRequest(token string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/v1/projects", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAuthenticate_SetsPrincipal(t *testing.T) {
	h, seen := newAuthHandler(t, "root")
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   domain.ContextPrincipal
	}{
		{"subject", jwt.MapClaims{"sub": "alice", "exp": exp}, domain.ContextPrincipal{Name: "alice", Type: "user"}},
		{"email fallback", jwt.MapClaims{"email": "bob@example.com", "exp": exp}, domain.ContextPrincipal{Name: "bob@example.com", Type: "user"}},
		{"admin claim", jwt.MapClaims{"sub": "carol", "is_admin": true, "exp": exp}, domain.ContextPrincipal{Name: "carol", Type: "user", IsAdmin: true}},
		{"configured admin", jwt.MapClaims{"sub": "root", "exp": exp}, domain.ContextPrincipal{Name: "root", Type: "user", IsAdmin: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, authRequest(makeToken(testSecret, tt.claims)))
			require.Equal(t, http.StatusOK, rec.Code)
			assert.Equal(t, tt.want, *seen)
		})
	}
}

func TestAuthenticate_Rejects(t *testing.T) {
	h, _ := newAuthHandler(t)

	tests := []struct {
		name    string
		req     *http.Request
		message string
	}{
		{"no header", authRequest(""), "unauthorized: missing bearer token"},
		{"bad signature", authRequest(makeToken("wrong", jwt.MapClaims{"sub": "alice"})), "unauthorized: invalid bearer token"},
		{"no subject", authRequest(makeToken(testSecret, jwt.MapClaims{"name": "x"})), "unauthorized: token has no subject"},
	}
	basic := httptest.NewRequest(http.MethodGet, "/", nil)
	basic.Header.Set("Authorization", "Basic YWxpY2U6cHc=")
	tests = append(tests, struct {
		name    string
		req     *http.Request
		message string
	}{"basic auth", basic, "unauthorized: missing bearer token"})

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, tt.req)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body map[string]any
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.InDelta(t, float64(401), body["code"], 0.001)
			assert.Equal(t, tt.message, body["message"])
		})
	}
}
