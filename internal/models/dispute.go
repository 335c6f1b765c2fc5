package models

import (
	"time"

	"github.com/google/uuid"
)

// Dispute types.
const (
	DisputePaymentNotReceived = "payment_not_received"
	DisputePaymentIncorrect   = "payment_incorrect"
	DisputeWorkNotCompleted   = "work_not_completed"
	DisputeWorkQuality        = "work_quality"
	DisputeOther              = "other"
)

// Dispute statuses.
const (
	DisputeOpen        = "open"
	DisputeUnderReview = "under_review"
	DisputeResolved    = "resolved"
)

// Dispute resolution outcomes. Monetary outcomes record a new ledger
// adjustment; the original escrow record is never edited.
const (
	ResolutionNoAction      = "no_action"
	ResolutionPartialRefund = "partial_refund"
	ResolutionBonusTransfer = "bonus_transfer"
)

// Dispute is filed against a completed job by either party. At most one
// unresolved dispute per job.
type Dispute struct {
	ID             uuid.UUID  `json:"id"`
	JobID          uuid.UUID  `json:"job_id"`
	ReportedBy     uuid.UUID  `json:"reported_by"`
	Type           string     `json:"type"`
	Description    string     `json:"description"`
	ExpectedCents  int64      `json:"expected_cents,omitempty"`
	Evidence       string     `json:"evidence,omitempty"`
	Status         string     `json:"status"`
	Resolution     string     `json:"resolution,omitempty"`
	ResolutionNote string     `json:"resolution_note,omitempty"`
	ResolvedBy     *uuid.UUID `json:"resolved_by,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}
