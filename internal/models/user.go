package models

import (
	"time"

	"github.com/google/uuid"
)

// User roles.
const (
	RolePoster = "poster"
	RoleWorker = "worker"
	RoleAdmin  = "admin"
)

// User is a verified identity with a role. Workers carry a processor payout
// account reference used for transfers.
type User struct {
	ID            uuid.UUID `json:"id"`
	Name          string    `json:"name"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Role          string    `json:"role"`
	Bio           string    `json:"bio,omitempty"`
	Skills        []string  `json:"skills,omitempty"`
	PayoutAccount string    `json:"payout_account,omitempty"`
	IsActive      bool      `json:"is_active"`
	CreatedAt     time.Time `json:"created_at"`
}
