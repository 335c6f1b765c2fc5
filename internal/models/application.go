package models

import (
	"time"

	"github.com/google/uuid"
)

// Application statuses. An application only ever moves from pending to
// accepted or rejected; accepting one rejects all of its siblings.
const (
	ApplicationPending  = "pending"
	ApplicationAccepted = "accepted"
	ApplicationRejected = "rejected"
)

// Application is a worker's bid on an open job. One non-rejected
// application per (job, worker) pair.
type Application struct {
	ID               uuid.UUID `json:"id"`
	JobID            uuid.UUID `json:"job_id"`
	WorkerID         uuid.UUID `json:"worker_id"`
	Message          string    `json:"message,omitempty"`
	ProposedRate     int64     `json:"proposed_rate_cents,omitempty"`
	ExpectedDuration string    `json:"expected_duration,omitempty"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}
