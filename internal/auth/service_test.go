package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/auth"
	"github.com/gigvault/gigvault/internal/config"
	"github.com/gigvault/gigvault/internal/models"
	"github.com/gigvault/gigvault/internal/store"
)

func newService() (*auth.Service, *store.Memory) {
	st := store.NewMemory()
	return auth.NewService(st, config.JWTConfig{Secret: "test-secret", TTL: time.Hour}), st
}

func TestSignupAndLogin(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	u, err := svc.Signup(ctx, "Ada", "ada@example.com", "hunter2hunter2", models.RoleWorker, "acct_ada")
	require.NoError(t, err)
	assert.Equal(t, models.RoleWorker, u.Role)
	assert.NotEqual(t, "hunter2hunter2", u.PasswordHash)

	token, got, err := svc.Login(ctx, "ADA@example.com", "hunter2hunter2")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	// The token carries the id and role the middleware relies on.
	parsed, err := jwt.Parse(token, func(*jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, u.ID.String(), claims["user_id"])
	assert.Equal(t, models.RoleWorker, claims["role"])
}

func TestSignupValidation(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	_, err := svc.Signup(ctx, "Bob", "bob@example.com", "short", models.RolePoster, "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Signup(ctx, "Bob", "bob@example.com", "longenough1", "admin", "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Signup(ctx, "Bob", "bob@example.com", "longenough1", models.RolePoster, "")
	require.NoError(t, err)
	_, err = svc.Signup(ctx, "Bobby", "BOB@example.com", "longenough1", models.RolePoster, "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestLoginFailures(t *testing.T) {
	svc, st := newService()
	ctx := context.Background()

	u, err := svc.Signup(ctx, "Cam", "cam@example.com", "longenough1", models.RolePoster, "")
	require.NoError(t, err)

	_, _, err = svc.Login(ctx, "cam@example.com", "wrongpassword")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	_, _, err = svc.Login(ctx, "nobody@example.com", "whatever")
	require.Error(t, err)

	require.NoError(t, st.SetUserActive(ctx, u.ID, false))
	_, _, err = svc.Login(ctx, "cam@example.com", "longenough1")
	require.ErrorIs(t, err, auth.ErrSuspended)
}
