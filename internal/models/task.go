package models

import (
	"time"

	"github.com/google/uuid"
)

// Task is a checklist item attached to a job. Tasks are created by the
// poster before assignment and completed by the assigned worker while the
// job is in progress. They are never deleted once the job leaves open.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	JobID       uuid.UUID  `json:"job_id"`
	Description string     `json:"description"`
	Location    string     `json:"location,omitempty"`
	BonusCents  int64      `json:"bonus_cents"`
	IsCompleted bool       `json:"is_completed"`
	CompletedBy *uuid.UUID `json:"completed_by,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}
