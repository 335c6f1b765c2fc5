// Package auth handles signup, login and token issuance.
package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/config"
	"github.com/gigvault/gigvault/internal/models"
	"github.com/gigvault/gigvault/internal/store"
)

// ErrSuspended distinguishes a deactivated account from bad credentials.
var ErrSuspended = apperr.Forbidden("account suspended")

type Service struct {
	store store.Store
	cfg   config.JWTConfig
}

func NewService(s store.Store, cfg config.JWTConfig) *Service {
	return &Service{store: s, cfg: cfg}
}

// Signup registers a poster or worker. Workers may attach their processor
// payout account reference up front; payouts fail until one is on file.
func (s *Service) Signup(ctx context.Context, name, email, password, role, payoutAccount string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" {
		return nil, apperr.Validation("name and email are required")
	}
	if len(password) < 8 {
		return nil, apperr.Validation("password must be at least 8 characters")
	}
	switch role {
	case models.RolePoster, models.RoleWorker:
	default:
		return nil, apperr.Validation("role must be %q or %q", models.RolePoster, models.RoleWorker)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, apperr.Internal("password hashing failed", err)
	}
	u := &models.User{
		ID:            uuid.New(),
		Name:          name,
		Email:         email,
		PasswordHash:  string(hash),
		Role:          role,
		PayoutAccount: payoutAccount,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
	if err := s.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Validation("email is already registered")
		}
		return nil, err
	}
	return u, nil
}

// Login checks credentials and returns a signed token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil, apperr.Forbidden("invalid credentials")
		}
		return "", nil, err
	}
	if !u.IsActive {
		return "", nil, ErrSuspended
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, apperr.Forbidden("invalid credentials")
	}
	token, err := s.IssueToken(u)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// IssueToken signs a token carrying the user's id and role.
func (s *Service) IssueToken(u *models.User) (string, error) {
	claims := jwt.MapClaims{
		"user_id": u.ID.String(),
		"role":    u.Role,
		"exp":     time.Now().Add(s.cfg.TTL).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(s.cfg.Secret))
	if err != nil {
		return "", apperr.Internal("token generation failed", err)
	}
	return signed, nil
}
