package job

import (
	"context"
	"log"

	"github.com/google/uuid"

	"github.com/gigvault/gigvault/internal/alerts"
	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/models"
)

// The engine is the payment orchestrator's webhook applier: webhooks are
// the processor's word on asynchronous outcomes and can arrive before,
// after, or instead of the synchronous API response. Every handler here
// must tolerate having already been applied through the synchronous path.

// ApplyAuthorization reconciles the hold outcome. The interesting case is
// a success landing after the job was already canceled: the money is held
// for a job nobody wants, so it is released straight back.
func (e *Engine) ApplyAuthorization(ctx context.Context, jobID uuid.UUID, succeeded bool, holdID string) error {
	j, err := e.get(ctx, jobID)
	if err != nil {
		return err
	}
	if !succeeded {
		if j.Status == models.StatusPendingPayment {
			e.notifier.Notify(ctx, j.PosterID, alerts.NotifyPaymentFailed,
				"Payment failed", "The hold for your job was declined. Retry with another payment method.", j.ID.String())
		}
		return nil
	}

	if err := e.ledger.RecordAuthorization(ctx, jobID, holdID); err != nil {
		// Already authorized under another hold: the processor and our
		// books disagree, which needs a human.
		if apperr.Is(err, apperr.KindStateConflict) {
			log.Printf("[webhook] job %s: conflicting hold %s: %v", jobID, holdID, err)
		}
		return err
	}

	switch j.Status {
	case models.StatusPendingPayment:
		if err := e.transition(ctx, j, models.StatusOpen); err != nil {
			return err
		}
		e.notifier.Notify(ctx, j.PosterID, alerts.NotifyJobOpen,
			"Your job is live", "Funds are held in escrow and workers can now apply.", j.ID.String())
		return nil
	case models.StatusCanceled, models.StatusCancelPending:
		// Stale success after cancellation. Release the hold immediately;
		// the job does not come back to life.
		log.Printf("[webhook] job %s: hold %s landed after cancellation, refunding", jobID, holdID)
		rec, err := e.ledger.Record(ctx, jobID)
		if err != nil {
			return err
		}
		res, err := e.payments.Refund(ctx, jobID, holdID, rec.AuthorizedCents-rec.RefundedCents, rec.AttemptEpoch)
		if err != nil {
			e.notifier.ScheduleRetryRefund(jobID, retryDelay)
			return err
		}
		return e.ledger.RecordRefund(ctx, jobID, rec.AuthorizedCents-rec.RefundedCents, res.RefundID)
	default:
		// Synchronous path already advanced the job. Nothing to do.
		return nil
	}
}

// ApplyTransfer reconciles the worker payout outcome.
func (e *Engine) ApplyTransfer(ctx context.Context, jobID uuid.UUID, succeeded bool, transferID string) error {
	j, err := e.get(ctx, jobID)
	if err != nil {
		return err
	}
	if !succeeded {
		if j.Status == models.StatusPendingPayout {
			log.Printf("[webhook] job %s: transfer %s failed, scheduling retry", jobID, transferID)
			e.notifier.ScheduleRetryPayout(jobID, retryDelay)
		}
		return nil
	}
	rec, err := e.ledger.Record(ctx, jobID)
	if err != nil {
		return err
	}
	if rec.CapturedAt == nil {
		// A settled transfer implies the hold was captured, even when the
		// capture API response never reached us. Record it so the event
		// history stays complete.
		if err := e.ledger.RecordCapture(ctx, jobID); err != nil {
			return err
		}
	}
	if err := e.ledger.RecordTransfer(ctx, jobID, transferID); err != nil {
		return err
	}
	if j.Status != models.StatusPendingPayout {
		return nil
	}
	if err := e.finishCompleted(ctx, j); err != nil {
		return err
	}
	if j.WorkerID != nil {
		e.notifier.Notify(ctx, *j.WorkerID, alerts.NotifyPayoutSent,
			"Payout sent", "Your payout has settled.", j.ID.String())
	}
	return nil
}

// ApplyRefund reconciles a settled refund. Refund ids already on the
// ledger are skipped so a webhook confirming the synchronous path does not
// double-count.
func (e *Engine) ApplyRefund(ctx context.Context, jobID uuid.UUID, refundID string, amountCents int64) error {
	evts, err := e.ledger.Events(ctx, jobID)
	if err != nil {
		return err
	}
	for _, ev := range evts {
		if ev.Kind == models.LedgerRefunded && ev.Reference == refundID {
			return nil
		}
	}
	if err := e.ledger.RecordRefund(ctx, jobID, amountCents, refundID); err != nil {
		return err
	}
	j, err := e.get(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status != models.StatusCancelPending {
		return nil
	}
	rec, err := e.ledger.Record(ctx, jobID)
	if err != nil {
		return err
	}
	if rec.RefundedCents < rec.AuthorizedCents {
		return nil
	}
	if err := e.transition(ctx, j, models.StatusCanceled); err != nil {
		return err
	}
	e.notifier.Notify(ctx, j.PosterID, alerts.NotifyRefundIssued,
		"Refund issued", "The escrow hold for your canceled job has been released.", j.ID.String())
	return nil
}

// ApplyProcessorDispute flags a card-network chargeback against the job.
// The platform-side dispute flow is driven by the parties; this only makes
// sure an operator sees it.
func (e *Engine) ApplyProcessorDispute(ctx context.Context, jobID uuid.UUID, reference string) error {
	j, err := e.get(ctx, jobID)
	if err != nil {
		return err
	}
	log.Printf("[webhook] job %s: processor dispute %s opened", jobID, reference)
	admins, err := e.store.ListUsers(ctx)
	if err != nil {
		return err
	}
	for _, u := range admins {
		if u.Role != models.RoleAdmin {
			continue
		}
		e.notifier.Notify(ctx, u.ID, alerts.NotifyDisputeOpened,
			"Processor dispute opened", "A chargeback was filed against job "+j.ID.String()+".", reference)
	}
	return nil
}
