package models

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the closed set of lifecycle states a job can be in.
// All transition checks go through CanTransition; handlers never compare
// raw status strings.
type JobStatus string

const (
	StatusDraft          JobStatus = "draft"
	StatusPendingPayment JobStatus = "pending_payment"
	StatusOpen           JobStatus = "open"
	StatusAssigned       JobStatus = "assigned"
	StatusInProgress     JobStatus = "in_progress"
	StatusPendingPayout  JobStatus = "pending_payout"
	StatusCompleted      JobStatus = "completed"
	StatusCancelPending  JobStatus = "cancel_pending"
	StatusCanceled       JobStatus = "canceled"
	StatusDisputed       JobStatus = "disputed"
)

// PaymentType distinguishes fixed-price from hourly jobs.
const (
	PaymentTypeFixed  = "fixed"
	PaymentTypeHourly = "hourly"
)

// transitions is the single source of truth for legal status changes.
// A job can only be canceled before completion, and a completed job can
// only move sideways into disputed and back.
var transitions = map[JobStatus][]JobStatus{
	StatusDraft:          {StatusPendingPayment, StatusCanceled},
	StatusPendingPayment: {StatusOpen, StatusCancelPending, StatusCanceled},
	StatusOpen:           {StatusAssigned, StatusCancelPending},
	StatusAssigned:       {StatusInProgress, StatusCancelPending},
	StatusInProgress:     {StatusPendingPayout, StatusCancelPending},
	StatusPendingPayout:  {StatusCompleted, StatusCancelPending},
	StatusCancelPending:  {StatusCanceled},
	StatusCompleted:      {StatusDisputed},
	StatusDisputed:       {StatusCompleted},
}

// CanTransition reports whether moving from one status to another is legal.
func CanTransition(from, to JobStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether a status is an end state for the lifecycle.
func (s JobStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusCanceled
}

// PreCompletion reports whether a job in this status can still be canceled.
func (s JobStatus) PreCompletion() bool {
	switch s {
	case StatusCompleted, StatusCanceled, StatusCancelPending, StatusDisputed:
		return false
	}
	return true
}

// Job is a paid task posted by a poster and executed by a single worker.
// Amounts are in the smallest currency unit. Version is the optimistic
// concurrency token; every update must carry the version it observed.
type Job struct {
	ID                uuid.UUID  `json:"id"`
	PosterID          uuid.UUID  `json:"poster_id"`
	WorkerID          *uuid.UUID `json:"worker_id,omitempty"`
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Location          string     `json:"location,omitempty"`
	RequiredSkills    []string   `json:"required_skills,omitempty"`
	AmountCents       int64      `json:"amount_cents"`
	PaymentType       string     `json:"payment_type"`
	Status            JobStatus  `json:"status"`
	Version           int64      `json:"version"`
	EquipmentProvided bool       `json:"equipment_provided"`
	CompletedOverride bool       `json:"completed_override,omitempty"`
	CancelReason      string     `json:"cancel_reason,omitempty"`
	DatePosted        time.Time  `json:"date_posted"`
	DateNeeded        *time.Time `json:"date_needed,omitempty"`
	DateCompleted     *time.Time `json:"date_completed,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// AssignedTo reports whether the given user is the job's assigned worker.
func (j *Job) AssignedTo(userID uuid.UUID) bool {
	return j.WorkerID != nil && *j.WorkerID == userID
}
