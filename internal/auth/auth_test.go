package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{Secret: "test-secret", Issuer: "biastrack"}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testConfig.Secret))
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":    "u-1",
		"iss":    testConfig.Issuer,
		"exp":    time.Now().Add(time.Hour).Unix(),
		"scopes": []string{ScopeRecordsRead, ScopeRecordsWrite},
	}
}

func TestParseValidToken(t *testing.T) {
	claims, err := Parse(signToken(t, validClaims()), testConfig)
	require.NoError(t, err)
	require.Equal(t, "u-1", claims.Subject)
	require.True(t, claims.HasScope(ScopeRecordsRead))
	require.True(t, claims.HasScope(ScopeRecordsWrite))
	require.False(t, claims.HasScope("records:admin"))
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	signed, err := token.SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = Parse(signed, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	mc := validClaims()
	mc["iss"] = "someone-else"
	_, err := Parse(signToken(t, mc), testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	mc := validClaims()
	mc["exp"] = time.Now().Add(-time.Hour).Unix()
	_, err := Parse(signToken(t, mc), testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsMissingSubject(t *testing.T) {
	mc := validClaims()
	delete(mc, "sub")
	_, err := Parse(signToken(t, mc), testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseEmptyToken(t *testing.T) {
	_, err := Parse("", testConfig)
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestParseScopesAsSpaceSeparatedString(t *testing.T) {
	mc := validClaims()
	mc["scopes"] = "records:read  records:write"
	claims, err := Parse(signToken(t, mc), testConfig)
	require.NoError(t, err)
	require.True(t, claims.HasScope(ScopeRecordsRead))
	require.True(t, claims.HasScope(ScopeRecordsWrite))
}

func TestHasScopeNilClaims(t *testing.T) {
	var claims *Claims
	require.False(t, claims.HasScope(ScopeRecordsRead))
}

func okHandler(t *testing.T, expectSubject string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims, ok := FromContext(r.Context())
		if expectSubject != "" {
			require.True(t, ok)
			require.Equal(t, expectSubject, claims.Subject)
		}
		w.WriteHeader(http.StatusOK)
	})
}

func TestMiddlewareAcceptsBearerToken(t *testing.T) {
	mw := NewMiddleware(testConfig, nil)
	handler := mw.Wrap(okHandler(t, "u-1"))

	req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, validClaims()))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddlewareRejectsMissingHeader(t *testing.T) {
	mw := NewMiddleware(testConfig, nil)
	handler := mw.Wrap(okHandler(t, ""))

	req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareRejectsNonBearerScheme(t *testing.T) {
	mw := NewMiddleware(testConfig, nil)
	handler := mw.Wrap(okHandler(t, ""))

	req := httptest.NewRequest(http.MethodGet, "/v1/feed", nil)
	req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddlewareSkipper(t *testing.T) {
	mw := NewMiddleware(testConfig, func(r *http.Request) bool {
		return r.URL.Path == "/healthz"
	})
	handler := mw.Wrap(okHandler(t, ""))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}
