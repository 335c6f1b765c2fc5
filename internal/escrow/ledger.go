// Package escrow owns the monetary bookkeeping for jobs. It makes no
// external calls; the payment orchestrator moves money and the ledger
// records what happened, append-only.
package escrow

import (
	"context"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/models"
	"github.com/gigvault/gigvault/internal/store"
)

type Ledger struct {
	store   store.Store
	feeRate float64
}

func NewLedger(s store.Store, feeRate float64) *Ledger {
	return &Ledger{store: s, feeRate: feeRate}
}

func (l *Ledger) appendEvent(ctx context.Context, jobID uuid.UUID, kind string, amount int64, ref string) error {
	return l.store.AppendLedgerEvent(ctx, &models.LedgerEvent{
		ID:          uuid.New(),
		JobID:       jobID,
		Kind:        kind,
		AmountCents: amount,
		Reference:   ref,
		CreatedAt:   time.Now().UTC(),
	})
}

// Open creates the escrow record for a job, splitting the authorized
// amount into the platform fee and the net payable to the worker. Called
// atomically with job creation, before any processor call.
func (l *Ledger) Open(ctx context.Context, jobID uuid.UUID, amountCents int64) (*models.EscrowRecord, error) {
	if amountCents <= 0 {
		return nil, apperr.Validation("escrow amount must be positive")
	}
	fee := int64(math.Round(float64(amountCents) * l.feeRate))
	rec := &models.EscrowRecord{
		JobID:           jobID,
		AuthorizedCents: amountCents,
		FeeCents:        fee,
		NetPayableCents: amountCents - fee,
		CreatedAt:       time.Now().UTC(),
	}
	if err := l.store.CreateEscrow(ctx, rec); err != nil {
		return nil, err
	}
	if err := l.appendEvent(ctx, jobID, models.LedgerOpened, amountCents, ""); err != nil {
		return nil, err
	}
	return rec, nil
}

// BumpAttempt advances the authorization attempt epoch. A fresh epoch
// changes the idempotency key so a new user-initiated attempt is not
// answered from the processor's idempotency cache.
func (l *Ledger) BumpAttempt(ctx context.Context, jobID uuid.UUID) (int64, error) {
	rec, err := l.store.GetEscrow(ctx, jobID)
	if err != nil {
		return 0, err
	}
	rec.AttemptEpoch++
	if err := l.store.UpdateEscrow(ctx, rec); err != nil {
		return 0, err
	}
	return rec.AttemptEpoch, nil
}

// RecordAuthorization marks the processor hold as accepted. Replays with
// the same hold id are no-ops.
func (l *Ledger) RecordAuthorization(ctx context.Context, jobID uuid.UUID, holdID string) error {
	rec, err := l.store.GetEscrow(ctx, jobID)
	if err != nil {
		return err
	}
	if rec.Authorized() {
		if rec.HoldID == holdID {
			return nil
		}
		return apperr.Conflict("escrow for job %s already authorized under a different hold", jobID)
	}
	now := time.Now().UTC()
	rec.HoldID = holdID
	rec.AuthorizedAt = &now
	if err := l.store.UpdateEscrow(ctx, rec); err != nil {
		return err
	}
	return l.appendEvent(ctx, jobID, models.LedgerAuthorized, rec.AuthorizedCents, holdID)
}

// RecordCapture marks the hold as settled into the platform balance.
func (l *Ledger) RecordCapture(ctx context.Context, jobID uuid.UUID) error {
	rec, err := l.store.GetEscrow(ctx, jobID)
	if err != nil {
		return err
	}
	if !rec.Authorized() {
		return apperr.Conflict("cannot capture before authorization for job %s", jobID)
	}
	if rec.CapturedAt != nil {
		return nil
	}
	now := time.Now().UTC()
	rec.CapturedAt = &now
	if err := l.store.UpdateEscrow(ctx, rec); err != nil {
		return err
	}
	return l.appendEvent(ctx, jobID, models.LedgerCaptured, rec.AuthorizedCents, rec.HoldID)
}

// RecordTransfer marks the net payable as sent to the worker. Idempotent
// for the same transfer id.
func (l *Ledger) RecordTransfer(ctx context.Context, jobID uuid.UUID, transferID string) error {
	rec, err := l.store.GetEscrow(ctx, jobID)
	if err != nil {
		return err
	}
	if !rec.Authorized() {
		return apperr.Conflict("cannot transfer before authorization for job %s", jobID)
	}
	if rec.Transferred() {
		if rec.TransferID == transferID {
			return nil
		}
		return apperr.Conflict("escrow for job %s already transferred", jobID)
	}
	if rec.RefundedCents >= rec.AuthorizedCents {
		return apperr.Conflict("escrow for job %s fully refunded", jobID)
	}
	now := time.Now().UTC()
	rec.TransferID = transferID
	rec.TransferredAt = &now
	if err := l.store.UpdateEscrow(ctx, rec); err != nil {
		return err
	}
	return l.appendEvent(ctx, jobID, models.LedgerTransferred, rec.NetPayableCents, transferID)
}

// RecordRefund returns part or all of the authorized amount to the poster.
// Refunds are only legal before payout; a post-payout dispute goes through
// RecordAdjustment instead, never back through here.
func (l *Ledger) RecordRefund(ctx context.Context, jobID uuid.UUID, amountCents int64, refundID string) error {
	rec, err := l.store.GetEscrow(ctx, jobID)
	if err != nil {
		return err
	}
	if rec.Transferred() {
		return apperr.Conflict("cannot refund job %s after worker payout", jobID)
	}
	if amountCents <= 0 || rec.RefundedCents+amountCents > rec.AuthorizedCents {
		return apperr.Validation("refund of %d exceeds remaining escrow for job %s", amountCents, jobID)
	}
	now := time.Now().UTC()
	rec.RefundedCents += amountCents
	rec.RefundedAt = &now
	if err := l.store.UpdateEscrow(ctx, rec); err != nil {
		return err
	}
	return l.appendEvent(ctx, jobID, models.LedgerRefunded, amountCents, refundID)
}

// RecordAdjustment appends a dispute-resolution entry without touching the
// original record's amounts or timestamps.
func (l *Ledger) RecordAdjustment(ctx context.Context, jobID uuid.UUID, kind string, amountCents int64, disputeID uuid.UUID) error {
	if kind != models.LedgerAdjustRefund && kind != models.LedgerAdjustPayout {
		return apperr.Validation("unknown adjustment kind %q", kind)
	}
	if amountCents <= 0 {
		return apperr.Validation("adjustment amount must be positive")
	}
	return l.appendEvent(ctx, jobID, kind, amountCents, disputeID.String())
}

// Record returns the escrow record for a job.
func (l *Ledger) Record(ctx context.Context, jobID uuid.UUID) (*models.EscrowRecord, error) {
	return l.store.GetEscrow(ctx, jobID)
}

// Events returns the append-only history for a job.
func (l *Ledger) Events(ctx context.Context, jobID uuid.UUID) ([]*models.LedgerEvent, error) {
	return l.store.ListLedgerEvents(ctx, jobID)
}
