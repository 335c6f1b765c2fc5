package models

import (
	"time"

	"github.com/google/uuid"
)

// Ledger event kinds. Every payment-side mutation appends one of these
// against the job's escrow record; the record is reconstructible from its
// event history.
const (
	LedgerOpened       = "opened"
	LedgerAuthorized   = "authorized"
	LedgerCaptured     = "captured"
	LedgerTransferred  = "transferred"
	LedgerRefunded     = "refunded"
	LedgerAdjustRefund = "adjust_refund"
	LedgerAdjustPayout = "adjust_payout"
)

// EscrowRecord is the monetary bookkeeping for one job, 1:1 with the job.
// AttemptEpoch counts user-initiated authorization attempts and feeds the
// idempotency key so a fresh attempt after a declined card is not replayed
// from the processor's idempotency cache.
type EscrowRecord struct {
	JobID           uuid.UUID  `json:"job_id"`
	HoldID          string     `json:"hold_id,omitempty"`
	TransferID      string     `json:"transfer_id,omitempty"`
	AuthorizedCents int64      `json:"authorized_cents"`
	FeeCents        int64      `json:"fee_cents"`
	NetPayableCents int64      `json:"net_payable_cents"`
	RefundedCents   int64      `json:"refunded_cents"`
	AttemptEpoch    int64      `json:"attempt_epoch"`
	AuthorizedAt    *time.Time `json:"authorized_at,omitempty"`
	CapturedAt      *time.Time `json:"captured_at,omitempty"`
	TransferredAt   *time.Time `json:"transferred_at,omitempty"`
	RefundedAt      *time.Time `json:"refunded_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// Authorized reports whether the processor accepted the hold.
func (r *EscrowRecord) Authorized() bool { return r.AuthorizedAt != nil }

// Transferred reports whether the net payable left for the worker.
func (r *EscrowRecord) Transferred() bool { return r.TransferredAt != nil }

// ConservationHolds checks the ledger invariant for a job in a terminal
// state: the authorized amount is fully accounted for by refunds plus, when
// the payout happened, the transferred net and the retained fee.
func (r *EscrowRecord) ConservationHolds() bool {
	transferredNet := int64(0)
	retainedFee := int64(0)
	if r.Transferred() {
		transferredNet = r.NetPayableCents
		retainedFee = r.FeeCents
	}
	return r.AuthorizedCents == r.RefundedCents+transferredNet+retainedFee
}

// LedgerEvent is one append-only entry against a job's escrow record.
// Reference carries the processor id (hold, transfer, refund) or the
// dispute id for adjustment entries.
type LedgerEvent struct {
	ID          uuid.UUID `json:"id"`
	JobID       uuid.UUID `json:"job_id"`
	Kind        string    `json:"kind"`
	AmountCents int64     `json:"amount_cents"`
	Reference   string    `json:"reference,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}
