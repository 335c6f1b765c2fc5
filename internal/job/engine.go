// Package job is the lifecycle state machine. Every transition funnels
// through the engine: it validates the move against the transition table,
// commits it under the job's version check, and only then touches money
// through the payment orchestrator and the escrow ledger.
package job

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/gigvault/gigvault/internal/alerts"
	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/application"
	"github.com/gigvault/gigvault/internal/escrow"
	"github.com/gigvault/gigvault/internal/events"
	"github.com/gigvault/gigvault/internal/models"
	"github.com/gigvault/gigvault/internal/payment"
	"github.com/gigvault/gigvault/internal/store"
	"github.com/gigvault/gigvault/internal/task"
)

// retryDelay is how long a stalled payout or refund waits before the
// background worker re-drives it.
const retryDelay = time.Minute

type Engine struct {
	store    store.Store
	ledger   *escrow.Ledger
	payments *payment.Orchestrator
	tasks    *task.Tracker
	apps     *application.Manager
	notifier *alerts.Notifier
	bus      *events.Bus
}

func NewEngine(
	s store.Store,
	ledger *escrow.Ledger,
	payments *payment.Orchestrator,
	tasks *task.Tracker,
	apps *application.Manager,
	notifier *alerts.Notifier,
	bus *events.Bus,
) *Engine {
	return &Engine{
		store:    s,
		ledger:   ledger,
		payments: payments,
		tasks:    tasks,
		apps:     apps,
		notifier: notifier,
		bus:      bus,
	}
}

// CreateInput is the poster's job posting. AmountCents is the full price
// held in escrow; PaymentMethodID defaults to the poster's default saved
// method when empty.
type CreateInput struct {
	Title             string     `json:"title"`
	Description       string     `json:"description"`
	Location          string     `json:"location"`
	RequiredSkills    []string   `json:"required_skills"`
	AmountCents       int64      `json:"amount_cents"`
	PaymentType       string     `json:"payment_type"`
	EquipmentProvided bool       `json:"equipment_provided"`
	DateNeeded        *time.Time `json:"date_needed"`
	PaymentMethodID   string     `json:"payment_method_id"`
	SaveAsDraft       bool       `json:"save_as_draft"`
}

func (in *CreateInput) validate() error {
	if in.Title == "" {
		return apperr.Validation("title is required")
	}
	if in.Description == "" {
		return apperr.Validation("description is required")
	}
	if in.AmountCents <= 0 {
		return apperr.Validation("amount must be positive")
	}
	switch in.PaymentType {
	case models.PaymentTypeFixed, models.PaymentTypeHourly:
	case "":
		in.PaymentType = models.PaymentTypeFixed
	default:
		return apperr.Validation("payment type must be %q or %q", models.PaymentTypeFixed, models.PaymentTypeHourly)
	}
	return nil
}

// Create posts a job. Unless saved as a draft it immediately runs the
// payment-first publish flow: open the escrow record, authorize the hold,
// and only then expose the job as open. On a payment failure the job is
// returned in pending_payment alongside the payment error so the poster
// can retry with another card.
func (e *Engine) Create(ctx context.Context, posterID uuid.UUID, in CreateInput) (*models.Job, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	j := &models.Job{
		ID:                uuid.New(),
		PosterID:          posterID,
		Title:             in.Title,
		Description:       in.Description,
		Location:          in.Location,
		RequiredSkills:    in.RequiredSkills,
		AmountCents:       in.AmountCents,
		PaymentType:       in.PaymentType,
		Status:            models.StatusDraft,
		EquipmentProvided: in.EquipmentProvided,
		DatePosted:        now,
		DateNeeded:        in.DateNeeded,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := e.store.CreateJob(ctx, j); err != nil {
		return nil, err
	}
	if in.SaveAsDraft {
		return j, nil
	}
	return e.Publish(ctx, posterID, j.ID, in.PaymentMethodID)
}

// Publish takes a draft through escrow funding. The escrow record and the
// pending_payment status land before any processor call, so a crash
// mid-authorization leaves a job the webhook or a retry can reconcile.
func (e *Engine) Publish(ctx context.Context, posterID, jobID uuid.UUID, methodID string) (*models.Job, error) {
	j, err := e.get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.PosterID != posterID {
		return nil, apperr.Forbidden("only the poster can publish this job")
	}
	if j.Status != models.StatusDraft {
		return nil, apperr.Conflict("job is %s, only drafts can be published", j.Status)
	}
	if _, err := e.ledger.Open(ctx, j.ID, j.AmountCents); err != nil {
		if !errors.Is(err, store.ErrDuplicate) {
			return nil, err
		}
	}
	if err := e.transition(ctx, j, models.StatusPendingPayment); err != nil {
		return nil, err
	}
	if err := e.authorize(ctx, j, methodID); err != nil {
		return j, err
	}
	return j, nil
}

// RetryPayment re-runs authorization for a job stuck in pending_payment,
// under a fresh attempt epoch so the processor does not replay the failed
// attempt from its idempotency cache.
func (e *Engine) RetryPayment(ctx context.Context, posterID, jobID uuid.UUID, methodID string) (*models.Job, error) {
	j, err := e.get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.PosterID != posterID {
		return nil, apperr.Forbidden("only the poster can retry payment")
	}
	if j.Status != models.StatusPendingPayment {
		return nil, apperr.Conflict("job is %s, payment can only be retried while pending payment", j.Status)
	}
	if _, err := e.ledger.BumpAttempt(ctx, j.ID); err != nil {
		return nil, err
	}
	if err := e.authorize(ctx, j, methodID); err != nil {
		return j, err
	}
	return j, nil
}

// authorize places the hold and, on success, records it and opens the job.
func (e *Engine) authorize(ctx context.Context, j *models.Job, methodID string) error {
	if methodID == "" {
		def, err := e.payments.DefaultPaymentMethod(ctx, j.PosterID)
		if err != nil {
			return err
		}
		methodID = def.ID
	}
	rec, err := e.ledger.Record(ctx, j.ID)
	if err != nil {
		return err
	}
	res, err := e.payments.Authorize(ctx, j, methodID, rec.AttemptEpoch)
	if err != nil {
		e.notifier.Notify(ctx, j.PosterID, alerts.NotifyPaymentFailed,
			"Payment failed", "We could not place the hold for your job. Retry with another payment method.", j.ID.String())
		return err
	}
	if err := e.ledger.RecordAuthorization(ctx, j.ID, res.HoldID); err != nil {
		return err
	}
	if err := e.transition(ctx, j, models.StatusOpen); err != nil {
		return err
	}
	e.notifier.Notify(ctx, j.PosterID, alerts.NotifyJobOpen,
		"Your job is live", "Funds are held in escrow and workers can now apply.", j.ID.String())
	return nil
}

// AcceptApplication assigns the job to one applicant. The open→assigned
// write is the race arbiter: of two concurrent accepts, exactly one wins
// the version check and the loser gets a state conflict.
func (e *Engine) AcceptApplication(ctx context.Context, posterID, applicationID uuid.UUID) (*models.Job, error) {
	app, err := e.apps.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	j, err := e.get(ctx, app.JobID)
	if err != nil {
		return nil, err
	}
	if j.PosterID != posterID {
		return nil, apperr.Forbidden("only the poster can accept applications")
	}
	if app.Status != models.ApplicationPending {
		return nil, apperr.Conflict("application is already %s", app.Status)
	}
	j.WorkerID = &app.WorkerID
	if err := e.transition(ctx, j, models.StatusAssigned); err != nil {
		return nil, err
	}
	rejected, err := e.apps.Accept(ctx, app)
	if err != nil {
		return nil, err
	}
	e.notifier.Notify(ctx, app.WorkerID, alerts.NotifyJobAssigned,
		"You got the job", fmt.Sprintf("%q is yours. Start when you are ready.", j.Title), j.ID.String())
	log.Printf("[job] %s assigned to %s, %d sibling applications rejected", j.ID, app.WorkerID, rejected)
	return j, nil
}

// Start moves an assigned job into in_progress. Only the assigned worker;
// starting an already started job is a no-op.
func (e *Engine) Start(ctx context.Context, workerID, jobID uuid.UUID) (*models.Job, error) {
	j, err := e.get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !j.AssignedTo(workerID) {
		return nil, apperr.Forbidden("only the assigned worker can start the job")
	}
	if j.Status == models.StatusInProgress {
		return j, nil
	}
	if err := e.transition(ctx, j, models.StatusInProgress); err != nil {
		return nil, err
	}
	e.notifier.Notify(ctx, j.PosterID, alerts.NotifyJobStarted,
		"Work has started", fmt.Sprintf("The worker started on %q.", j.Title), j.ID.String())
	return j, nil
}

// Complete is the sign-off on finished work, normally the assigned
// worker's call. The checklist must be at 100% unless the caller
// explicitly overrides; either party can confirm the override, which is
// stored on the job for the audit trail. The job lands in pending_payout
// immediately and the payout settles synchronously when the processor
// cooperates, in the background otherwise.
func (e *Engine) Complete(ctx context.Context, callerID, jobID uuid.UUID, override bool) (*models.Job, error) {
	j, err := e.get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if !j.AssignedTo(callerID) && j.PosterID != callerID {
		return nil, apperr.Forbidden("only the assigned worker or the poster can complete the job")
	}
	if j.Status != models.StatusInProgress {
		return nil, apperr.Conflict("job is %s, only in-progress jobs can be completed", j.Status)
	}
	progress, err := e.tasks.Progress(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if progress.Percent < 100 && !override {
		return nil, apperr.Conflict("checklist is at %d%% (%d of %d tasks); pass the override flag to complete anyway",
			progress.Percent, progress.Completed, progress.Total)
	}
	j.CompletedOverride = override && progress.Percent < 100
	if err := e.transition(ctx, j, models.StatusPendingPayout); err != nil {
		return nil, err
	}
	if err := e.settlePayout(ctx, j); err != nil {
		// The sign-off stands. The payout is re-driven in the background
		// and the job stays pending_payout until it lands.
		log.Printf("[job] payout for %s did not settle, scheduling retry: %v", j.ID, err)
		e.notifier.ScheduleRetryPayout(j.ID, retryDelay)
		e.notifier.Notify(ctx, j.PosterID, alerts.NotifyPayoutDelayed,
			"Payout delayed", "Completion is recorded; the worker payout is retrying in the background.", j.ID.String())
	}
	return j, nil
}

// settlePayout captures the hold, transfers the net payable to the worker
// and closes the job. Each leg is idempotent, so a retry resumes wherever
// the last attempt stopped.
func (e *Engine) settlePayout(ctx context.Context, j *models.Job) error {
	if j.WorkerID == nil {
		return apperr.Internal("job has no assigned worker", nil)
	}
	rec, err := e.ledger.Record(ctx, j.ID)
	if err != nil {
		return err
	}
	if !rec.Authorized() {
		return apperr.Conflict("escrow for job %s was never authorized", j.ID)
	}
	if rec.CapturedAt == nil {
		if err := e.payments.Capture(ctx, j.ID, rec.HoldID, rec.AttemptEpoch); err != nil {
			return err
		}
		if err := e.ledger.RecordCapture(ctx, j.ID); err != nil {
			return err
		}
	}
	if !rec.Transferred() {
		worker, err := e.store.GetUser(ctx, *j.WorkerID)
		if err != nil {
			return err
		}
		if worker.PayoutAccount == "" {
			return apperr.PaymentPermanent("worker has no payout account on file", nil)
		}
		res, err := e.payments.Transfer(ctx, j.ID, worker.PayoutAccount, rec.NetPayableCents, rec.AttemptEpoch)
		if err != nil {
			return err
		}
		if err := e.ledger.RecordTransfer(ctx, j.ID, res.TransferID); err != nil {
			return err
		}
	}
	if err := e.finishCompleted(ctx, j); err != nil {
		return err
	}
	e.notifier.Notify(ctx, *j.WorkerID, alerts.NotifyPayoutSent,
		"Payout sent", fmt.Sprintf("Your payout for %q is on its way.", j.Title), j.ID.String())
	e.notifier.Notify(ctx, j.PosterID, alerts.NotifyJobCompleted,
		"Job completed", fmt.Sprintf("%q is complete and the worker has been paid.", j.Title), j.ID.String())
	return nil
}

func (e *Engine) finishCompleted(ctx context.Context, j *models.Job) error {
	now := time.Now().UTC()
	j.DateCompleted = &now
	return e.transition(ctx, j, models.StatusCompleted)
}

// Cancel aborts a job before completion. If escrow was authorized the job
// parks in cancel_pending until the refund of the unspent balance lands;
// an unfunded job cancels outright.
func (e *Engine) Cancel(ctx context.Context, callerID uuid.UUID, callerRole string, jobID uuid.UUID, reason string) (*models.Job, error) {
	j, err := e.get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.PosterID != callerID && !j.AssignedTo(callerID) && callerRole != models.RoleAdmin {
		return nil, apperr.Forbidden("only the poster, the assigned worker or an admin can cancel the job")
	}
	if !j.Status.PreCompletion() {
		return nil, apperr.Conflict("job is %s and can no longer be canceled", j.Status)
	}
	j.CancelReason = reason

	rec, err := e.ledger.Record(ctx, jobID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if rec == nil || !rec.Authorized() {
		// No money ever moved. Draft cancels directly; pending_payment
		// does too since the hold never landed.
		if err := e.transition(ctx, j, models.StatusCanceled); err != nil {
			return nil, err
		}
		return j, nil
	}

	if err := e.transition(ctx, j, models.StatusCancelPending); err != nil {
		return nil, err
	}
	if j.WorkerID != nil && *j.WorkerID == callerID {
		e.notifier.Notify(ctx, j.PosterID, alerts.NotifyJobCanceled,
			"Job canceled", fmt.Sprintf("The worker canceled %q.", j.Title), j.ID.String())
	} else if j.WorkerID != nil {
		e.notifier.Notify(ctx, *j.WorkerID, alerts.NotifyJobCanceled,
			"Job canceled", fmt.Sprintf("%q was canceled by the poster.", j.Title), j.ID.String())
	}
	if err := e.settleRefund(ctx, j); err != nil {
		log.Printf("[job] refund for %s did not settle, scheduling retry: %v", j.ID, err)
		e.notifier.ScheduleRetryRefund(j.ID, retryDelay)
	}
	return j, nil
}

// settleRefund returns the unspent escrow balance and closes the
// cancellation.
func (e *Engine) settleRefund(ctx context.Context, j *models.Job) error {
	rec, err := e.ledger.Record(ctx, j.ID)
	if err != nil {
		return err
	}
	remaining := rec.AuthorizedCents - rec.RefundedCents
	if remaining > 0 {
		res, err := e.payments.Refund(ctx, j.ID, rec.HoldID, remaining, rec.AttemptEpoch)
		if err != nil {
			return err
		}
		if err := e.ledger.RecordRefund(ctx, j.ID, remaining, res.RefundID); err != nil {
			return err
		}
	}
	if err := e.transition(ctx, j, models.StatusCanceled); err != nil {
		return err
	}
	e.notifier.Notify(ctx, j.PosterID, alerts.NotifyRefundIssued,
		"Refund issued", "The escrow hold for your canceled job has been released.", j.ID.String())
	return nil
}

// RetryPayout re-drives a stalled payout from the background worker.
func (e *Engine) RetryPayout(ctx context.Context, jobID uuid.UUID) error {
	j, err := e.get(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status != models.StatusPendingPayout {
		log.Printf("[job] payout retry for %s skipped, job is %s", jobID, j.Status)
		return nil
	}
	return e.settlePayout(ctx, j)
}

// RetryRefund re-drives a stalled cancellation refund.
func (e *Engine) RetryRefund(ctx context.Context, jobID uuid.UUID) error {
	j, err := e.get(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status != models.StatusCancelPending {
		log.Printf("[job] refund retry for %s skipped, job is %s", jobID, j.Status)
		return nil
	}
	return e.settleRefund(ctx, j)
}

// Get returns a job by id.
func (e *Engine) Get(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	return e.get(ctx, jobID)
}

// ListOpen returns jobs accepting applications.
func (e *Engine) ListOpen(ctx context.Context) ([]*models.Job, error) {
	return e.store.ListJobsByStatus(ctx, models.StatusOpen)
}

// ListForUser returns jobs the user posted or works on.
func (e *Engine) ListForUser(ctx context.Context, userID uuid.UUID) ([]*models.Job, error) {
	return e.store.ListJobsByUser(ctx, userID)
}

func (e *Engine) get(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	j, err := e.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("job %s not found", jobID)
		}
		return nil, err
	}
	return j, nil
}

// transition validates the move against the transition table and commits
// it under the job's version check. A concurrent writer surfaces as a
// state conflict; the caller re-reads and decides.
func (e *Engine) transition(ctx context.Context, j *models.Job, to models.JobStatus) error {
	from := j.Status
	if !models.CanTransition(from, to) {
		return apperr.Conflict("illegal transition %s -> %s", from, to)
	}
	j.Status = to
	j.UpdatedAt = time.Now().UTC()
	if err := e.store.UpdateJob(ctx, j); err != nil {
		j.Status = from
		if errors.Is(err, store.ErrVersionConflict) {
			return apperr.Conflict("job was modified concurrently, reload and retry")
		}
		return err
	}
	log.Printf("[job] %s: %s -> %s (v%d)", j.ID, from, to, j.Version)
	e.bus.PublishJobChanged(ctx, j)
	return nil
}
