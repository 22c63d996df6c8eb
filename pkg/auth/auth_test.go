package auth

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestJWTValidator_RoundTrip(t *testing.T) {
	v := NewJWTValidator(testSecret, "qtx")
	token, err := v.IssueToken("user-1", time.Hour, time.Now())
	require.NoError(t, err)

	claims, err := v.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Subject)
}

func TestJWTValidator_Rejects(t *testing.T) {
	v := NewJWTValidator(testSecret, "qtx")

	expired, err := v.IssueToken("user-1", time.Minute, time.Now().Add(-time.Hour))
	require.NoError(t, err)

	otherIssuer, err := NewJWTValidator(testSecret, "someone-else").IssueToken("user-1", time.Hour, time.Now())
	require.NoError(t, err)

	wrongSecret, err := NewJWTValidator("ffffffffffffffffffffffffffffffff", "qtx").IssueToken("user-1", time.Hour, time.Now())
	require.NoError(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{RegisteredClaims: jwt.RegisteredClaims{
		Issuer:    "qtx",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := map[string]string{
		"expired":    expired,
		"issuer":     otherIssuer,
		"secret":     wrongSecret,
		"no subject": noSubject,
		"garbage":    "not-a-token",
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := v.ValidateToken(token)
			assert.True(t, errors.Is(err, ErrInvalidToken), "got %v", err)
		})
	}

	_, err = v.ValidateToken("")
	assert.ErrorIs(t, err, ErrMissingToken)
}

func TestMiddleware(t *testing.T) {
	v := NewJWTValidator(testSecret, "")
	var seen string
	h := Middleware(v, zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = UserIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected status %d, got %d", http.StatusUnauthorized, rec.Code)
	}

	token, err := v.IssueToken("user-42", time.Hour, time.Now())
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer "+token)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected status %d, got %d", http.StatusNoContent, rec.Code)
	}
	if seen != "user-42" {
		t.Fatalf("expected user-42 in context, got %q", seen)
	}
}
