package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, isAdmin bool, expiresIn time.Duration) string {
	t.Helper()
	claims := Claims{
		UserID:  7,
		IsAdmin: isAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiresIn)),
		},
	}
	raw, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return raw
}

func TestVerifyValidToken(t *testing.T) {
	t.Parallel()

	v := NewVerifier(testSecret)
	claims, err := v.Verify(signToken(t, testSecret, true, time.Hour))
	require.NoError(t, err)
	require.Equal(t, int64(7), claims.UserID)
	require.True(t, claims.IsAdmin)
}

func TestVerifyRejectsBadTokens(t *testing.T) {
	t.Parallel()

	v := NewVerifier(testSecret)

	_, err := v.Verify(signToken(t, "other-secret", false, time.Hour))
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify(signToken(t, testSecret, false, -time.Minute))
	require.ErrorIs(t, err, ErrInvalidToken)

	_, err = v.Verify("not.a.token")
	require.ErrorIs(t, err, ErrInvalidToken)
}

func okHandler() (http.Handler, *bool) {
	called := false
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		called = true
		w.WriteHeader(http.StatusOK)
	}), &called
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	v := NewVerifier(testSecret)
	next, called := okHandler()
	handler := v.Middleware(next)

	// No header.
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.False(t, *called)

	// Wrong scheme.
	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	// Valid token.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, false, time.Hour))
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, *called)
}

func TestAdminMiddleware(t *testing.T) {
	t.Parallel()

	v := NewVerifier(testSecret)
	next, called := okHandler()
	handler := v.AdminMiddleware(next)

	// Authenticated but not admin.
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, false, time.Hour))
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.False(t, *called)

	// Admin.
	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, true, time.Hour))
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, *called)
}
