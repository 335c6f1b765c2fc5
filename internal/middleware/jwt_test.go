package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtv4 "github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigvault/gigvault/internal/middleware"
)

const secret = "test-secret"

// signToken mirrors what the auth service issues.
func signToken(t *testing.T, userID uuid.UUID, role string, ttl time.Duration) string {
	t.Helper()
	claims := jwtv4.MapClaims{
		"user_id": userID.String(),
		"role":    role,
		"exp":     time.Now().Add(ttl).Unix(),
	}
	signed, err := jwtv4.NewWithClaims(jwtv4.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func newEcho() *echo.Echo {
	e := echo.New()
	g := e.Group("", middleware.JWTMiddleware(secret))
	g.GET("/whoami", func(c echo.Context) error {
		id, _ := middleware.UserID(c)
		return c.JSON(http.StatusOK, echo.Map{"id": id, "role": middleware.Role(c)})
	})
	g.GET("/admin-only", func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}, middleware.RequireRoles("admin"))
	return e
}

func do(e *echo.Echo, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestJWTMiddlewareAcceptsIssuedTokens(t *testing.T) {
	e := newEcho()
	userID := uuid.New()
	rec := do(e, signToken(t, userID, "poster", time.Hour))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), userID.String())
	assert.Contains(t, rec.Body.String(), "poster")
}

func TestJWTMiddlewareRejectsBadTokens(t *testing.T) {
	e := newEcho()

	rec := do(e, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, "not-a-token")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = do(e, signToken(t, uuid.New(), "poster", -time.Minute))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Wrong key.
	claims := jwtv4.MapClaims{"user_id": uuid.NewString(), "exp": time.Now().Add(time.Hour).Unix()}
	forged, err := jwtv4.NewWithClaims(jwtv4.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	rec = do(e, forged)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoles(t *testing.T) {
	e := newEcho()

	req := httptest.NewRequest(http.MethodGet, "/admin-only", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+signToken(t, uuid.New(), "worker", time.Hour))
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/admin-only", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+signToken(t, uuid.New(), "admin", time.Hour))
	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
