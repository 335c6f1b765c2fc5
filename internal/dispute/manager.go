// Package dispute handles disagreements over completed jobs. A dispute
// never reopens the lifecycle: the job sits in disputed until an admin
// resolves it, and monetary outcomes land as ledger adjustments plus
// compensating processor calls, never as edits to the original escrow
// record.
package dispute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gigvault/gigvault/internal/alerts"
	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/escrow"
	"github.com/gigvault/gigvault/internal/models"
	"github.com/gigvault/gigvault/internal/payment"
	"github.com/gigvault/gigvault/internal/store"
)

// JobGate is the slice of the job engine the dispute flow needs.
type JobGate interface {
	Get(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
	MarkDisputed(ctx context.Context, jobID uuid.UUID) (*models.Job, error)
	ClearDisputed(ctx context.Context, jobID uuid.UUID) error
}

type Manager struct {
	store    store.Store
	ledger   *escrow.Ledger
	payments *payment.Orchestrator
	jobs     JobGate
	notifier *alerts.Notifier
}

func NewManager(s store.Store, ledger *escrow.Ledger, payments *payment.Orchestrator, jobs JobGate, notifier *alerts.Notifier) *Manager {
	return &Manager{store: s, ledger: ledger, payments: payments, jobs: jobs, notifier: notifier}
}

// OpenInput is a party's complaint about a completed job.
type OpenInput struct {
	Type          string `json:"type"`
	Description   string `json:"description"`
	ExpectedCents int64  `json:"expected_cents"`
	Evidence      string `json:"evidence"`
}

func (in *OpenInput) validate() error {
	switch in.Type {
	case models.DisputePaymentNotReceived, models.DisputePaymentIncorrect,
		models.DisputeWorkNotCompleted, models.DisputeWorkQuality, models.DisputeOther:
	default:
		return apperr.Validation("unknown dispute type %q", in.Type)
	}
	if in.Description == "" {
		return apperr.Validation("description is required")
	}
	if in.ExpectedCents < 0 {
		return apperr.Validation("expected amount cannot be negative")
	}
	return nil
}

// Open files a dispute against a completed job. Only the poster or the
// assigned worker may file, and a job carries at most one unresolved
// dispute at a time.
func (m *Manager) Open(ctx context.Context, reporterID, jobID uuid.UUID, in OpenInput) (*models.Dispute, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	j, err := m.jobs.Get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.PosterID != reporterID && !j.AssignedTo(reporterID) {
		return nil, apperr.Forbidden("only the poster or the assigned worker can open a dispute")
	}
	if _, err := m.store.GetUnresolvedDisputeByJob(ctx, jobID); err == nil {
		return nil, apperr.Conflict("job already has an unresolved dispute")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	if _, err := m.jobs.MarkDisputed(ctx, jobID); err != nil {
		return nil, err
	}
	d := &models.Dispute{
		ID:            uuid.New(),
		JobID:         jobID,
		ReportedBy:    reporterID,
		Type:          in.Type,
		Description:   in.Description,
		ExpectedCents: in.ExpectedCents,
		Evidence:      in.Evidence,
		Status:        models.DisputeOpen,
		CreatedAt:     time.Now().UTC(),
	}
	if err := m.store.CreateDispute(ctx, d); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("job already has an unresolved dispute")
		}
		return nil, err
	}
	m.notifyCounterparty(ctx, j, reporterID, alerts.NotifyDisputeOpened,
		"Dispute opened", fmt.Sprintf("A dispute was opened on %q.", j.Title), d.ID.String())
	return d, nil
}

// StartReview moves an open dispute under admin review.
func (m *Manager) StartReview(ctx context.Context, adminID, disputeID uuid.UUID) (*models.Dispute, error) {
	d, err := m.get(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if d.Status != models.DisputeOpen {
		return nil, apperr.Conflict("dispute is %s, only open disputes can move to review", d.Status)
	}
	d.Status = models.DisputeUnderReview
	d.ResolvedBy = &adminID
	if err := m.store.UpdateDispute(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// ResolveInput is the admin's ruling. AmountCents is required for the
// monetary outcomes and ignored for no_action.
type ResolveInput struct {
	Resolution  string `json:"resolution"`
	Note        string `json:"note"`
	AmountCents int64  `json:"amount_cents"`
}

// Resolve closes a dispute. Monetary outcomes run a compensating processor
// call under a fresh attempt epoch and append a ledger adjustment; the
// job returns to completed either way.
func (m *Manager) Resolve(ctx context.Context, adminID, disputeID uuid.UUID, in ResolveInput) (*models.Dispute, error) {
	d, err := m.get(ctx, disputeID)
	if err != nil {
		return nil, err
	}
	if d.Status == models.DisputeResolved {
		return nil, apperr.Conflict("dispute is already resolved")
	}
	j, err := m.jobs.Get(ctx, d.JobID)
	if err != nil {
		return nil, err
	}

	switch in.Resolution {
	case models.ResolutionNoAction:
	case models.ResolutionPartialRefund:
		if err := m.compensate(ctx, d, in.AmountCents, models.LedgerAdjustRefund); err != nil {
			return nil, err
		}
	case models.ResolutionBonusTransfer:
		if err := m.compensate(ctx, d, in.AmountCents, models.LedgerAdjustPayout); err != nil {
			return nil, err
		}
	default:
		return nil, apperr.Validation("unknown resolution %q", in.Resolution)
	}

	now := time.Now().UTC()
	d.Status = models.DisputeResolved
	d.Resolution = in.Resolution
	d.ResolutionNote = in.Note
	d.ResolvedBy = &adminID
	d.ResolvedAt = &now
	if err := m.store.UpdateDispute(ctx, d); err != nil {
		return nil, err
	}
	if err := m.jobs.ClearDisputed(ctx, d.JobID); err != nil {
		return nil, err
	}
	m.notifier.Notify(ctx, j.PosterID, alerts.NotifyDisputeClosed,
		"Dispute resolved", fmt.Sprintf("The dispute on %q was resolved: %s.", j.Title, in.Resolution), d.ID.String())
	if j.WorkerID != nil {
		m.notifier.Notify(ctx, *j.WorkerID, alerts.NotifyDisputeClosed,
			"Dispute resolved", fmt.Sprintf("The dispute on %q was resolved: %s.", j.Title, in.Resolution), d.ID.String())
	}
	return d, nil
}

// compensate moves dispute money. A refund adjustment sends part of the
// captured charge back to the poster; a payout adjustment sends an extra
// transfer to the worker. Both are bounded by the original escrow amount.
func (m *Manager) compensate(ctx context.Context, d *models.Dispute, amountCents int64, kind string) error {
	if amountCents <= 0 {
		return apperr.Validation("resolution amount must be positive")
	}
	rec, err := m.ledger.Record(ctx, d.JobID)
	if err != nil {
		return err
	}
	if amountCents > rec.AuthorizedCents {
		return apperr.Validation("resolution amount exceeds the original escrow amount")
	}
	// Fresh epoch so the compensating call cannot collide with the
	// lifecycle's own refund or transfer idempotency keys.
	epoch, err := m.ledger.BumpAttempt(ctx, d.JobID)
	if err != nil {
		return err
	}

	switch kind {
	case models.LedgerAdjustRefund:
		if _, err := m.payments.Refund(ctx, d.JobID, rec.HoldID, amountCents, epoch); err != nil {
			return err
		}
	case models.LedgerAdjustPayout:
		j, err := m.jobs.Get(ctx, d.JobID)
		if err != nil {
			return err
		}
		if j.WorkerID == nil {
			return apperr.Internal("disputed job has no assigned worker", nil)
		}
		worker, err := m.store.GetUser(ctx, *j.WorkerID)
		if err != nil {
			return err
		}
		if worker.PayoutAccount == "" {
			return apperr.PaymentPermanent("worker has no payout account on file", nil)
		}
		if _, err := m.payments.Transfer(ctx, d.JobID, worker.PayoutAccount, amountCents, epoch); err != nil {
			return err
		}
	}
	return m.ledger.RecordAdjustment(ctx, d.JobID, kind, amountCents, d.ID)
}

// Get loads a dispute visible to its parties and admins.
func (m *Manager) Get(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	return m.get(ctx, disputeID)
}

// List returns disputes, optionally filtered by status. Admin only at the
// HTTP layer.
func (m *Manager) List(ctx context.Context, status string) ([]*models.Dispute, error) {
	return m.store.ListDisputes(ctx, status)
}

func (m *Manager) get(ctx context.Context, disputeID uuid.UUID) (*models.Dispute, error) {
	d, err := m.store.GetDispute(ctx, disputeID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("dispute %s not found", disputeID)
		}
		return nil, err
	}
	return d, nil
}

func (m *Manager) notifyCounterparty(ctx context.Context, j *models.Job, reporterID uuid.UUID, typ, title, body, ref string) {
	if j.PosterID != reporterID {
		m.notifier.Notify(ctx, j.PosterID, typ, title, body, ref)
	}
	if j.WorkerID != nil && *j.WorkerID != reporterID {
		m.notifier.Notify(ctx, *j.WorkerID, typ, title, body, ref)
	}
}
