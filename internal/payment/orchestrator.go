// Package payment owns every call to the external processor: holds,
// transfers, refunds, saved payment methods, and webhook reconciliation.
// Transient failures are retried with bounded exponential backoff;
// permanent failures surface immediately. Money-moving calls carry an
// idempotency key derived from (job, operation, attempt epoch) so a retry
// after a timeout cannot double-charge.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/config"
	"github.com/gigvault/gigvault/internal/models"
	"github.com/gigvault/gigvault/internal/processor"
	"github.com/gigvault/gigvault/internal/store"
)

type Orchestrator struct {
	store         store.Store
	proc          processor.Processor
	maxAttempts   int
	backoffBase   time.Duration
	webhookSecret string
	applier       WebhookApplier
}

func NewOrchestrator(s store.Store, p processor.Processor, cfg config.ProcessorConfig) *Orchestrator {
	return &Orchestrator{
		store:         s,
		proc:          p,
		maxAttempts:   cfg.MaxAttempts,
		backoffBase:   cfg.BackoffBase,
		webhookSecret: cfg.WebhookSecret,
	}
}

// SetWebhookApplier wires the job state machine in after construction;
// the engine depends on the orchestrator, not the other way around.
func (o *Orchestrator) SetWebhookApplier(a WebhookApplier) {
	o.applier = a
}

// IdempotencyKey is stable across automatic retries of one logical
// operation and changes only when a new attempt epoch is started.
func IdempotencyKey(jobID uuid.UUID, op string, epoch int64) string {
	return fmt.Sprintf("%s:%s:%d", jobID, op, epoch)
}

// withRetry reruns fn on transient errors, doubling the delay each time,
// up to the attempt ceiling. Permanent errors and successes return
// immediately; the idempotency key inside fn must not change between
// attempts.
func (o *Orchestrator) withRetry(ctx context.Context, op string, fn func() error) error {
	delay := o.backoffBase
	var err error
	for attempt := 1; attempt <= o.maxAttempts; attempt++ {
		err = fn()
		if err == nil || !apperr.Is(err, apperr.KindPaymentTransient) {
			return err
		}
		if attempt == o.maxAttempts {
			break
		}
		log.Printf("[payment] %s attempt %d/%d failed, retrying in %s: %v", op, attempt, o.maxAttempts, delay, err)
		select {
		case <-ctx.Done():
			return apperr.PaymentTransient("canceled while retrying "+op, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
	}
	return err
}

// Authorize places a hold for the job's full amount against the given
// payment method.
func (o *Orchestrator) Authorize(ctx context.Context, job *models.Job, methodID string, epoch int64) (*processor.AuthorizeResult, error) {
	key := IdempotencyKey(job.ID, "authorize", epoch)
	var res *processor.AuthorizeResult
	err := o.withRetry(ctx, "authorize", func() error {
		var callErr error
		res, callErr = o.proc.Authorize(ctx, processor.AuthorizeRequest{
			JobID:           job.ID,
			AmountCents:     job.AmountCents,
			PaymentMethodID: methodID,
			IdempotencyKey:  key,
		})
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Capture settles a hold into the platform balance.
func (o *Orchestrator) Capture(ctx context.Context, jobID uuid.UUID, holdID string, epoch int64) error {
	key := IdempotencyKey(jobID, "capture", epoch)
	return o.withRetry(ctx, "capture", func() error {
		return o.proc.Capture(ctx, holdID, key)
	})
}

// Transfer sends the net payable to the worker's payout account.
func (o *Orchestrator) Transfer(ctx context.Context, jobID uuid.UUID, payoutAccount string, amountCents, epoch int64) (*processor.TransferResult, error) {
	key := IdempotencyKey(jobID, "transfer", epoch)
	var res *processor.TransferResult
	err := o.withRetry(ctx, "transfer", func() error {
		var callErr error
		res, callErr = o.proc.Transfer(ctx, processor.TransferRequest{
			JobID:          jobID,
			PayoutAccount:  payoutAccount,
			AmountCents:    amountCents,
			IdempotencyKey: key,
		})
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// Refund releases amountCents of the hold back to the poster.
func (o *Orchestrator) Refund(ctx context.Context, jobID uuid.UUID, holdID string, amountCents, epoch int64) (*processor.RefundResult, error) {
	key := IdempotencyKey(jobID, "refund", epoch)
	var res *processor.RefundResult
	err := o.withRetry(ctx, "refund", func() error {
		var callErr error
		res, callErr = o.proc.Refund(ctx, processor.RefundRequest{
			HoldID:         holdID,
			AmountCents:    amountCents,
			IdempotencyKey: key,
		})
		return callErr
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ----- saved payment methods (setup-intent two-phase flow) -----

// BeginSavePaymentMethod registers a setup intent with the processor. The
// client confirms card details against the processor directly, so card
// verification never blocks job creation.
func (o *Orchestrator) BeginSavePaymentMethod(ctx context.Context, userID uuid.UUID) (*processor.SetupIntent, error) {
	return o.proc.CreateSetupIntent(ctx, userID)
}

// ConfirmSavePaymentMethod exchanges a confirmed setup-intent token for a
// stored payment method. Confirming the same intent twice returns the
// already-saved method.
func (o *Orchestrator) ConfirmSavePaymentMethod(ctx context.Context, userID uuid.UUID, intentID, token string) (*models.PaymentMethod, error) {
	card, err := o.proc.ConfirmSetupIntent(ctx, intentID, token)
	if err != nil {
		return nil, err
	}
	if existing, err := o.store.GetPaymentMethod(ctx, card.MethodID); err == nil {
		return existing, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	existing, err := o.store.ListPaymentMethods(ctx, userID)
	if err != nil {
		return nil, err
	}
	method := &models.PaymentMethod{
		ID:          card.MethodID,
		UserID:      userID,
		Brand:       card.Brand,
		Last4:       card.Last4,
		ExpiryMonth: card.ExpiryMonth,
		ExpiryYear:  card.ExpiryYear,
		IsDefault:   len(existing) == 0,
		CreatedAt:   time.Now().UTC(),
	}
	if err := o.store.CreatePaymentMethod(ctx, method); err != nil {
		return nil, err
	}
	return method, nil
}

func (o *Orchestrator) SetDefaultPaymentMethod(ctx context.Context, userID uuid.UUID, methodID string) error {
	if err := o.store.SetDefaultPaymentMethod(ctx, userID, methodID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("payment method %s not found", methodID)
		}
		return err
	}
	return nil
}

func (o *Orchestrator) DeletePaymentMethod(ctx context.Context, userID uuid.UUID, methodID string) error {
	method, err := o.store.GetPaymentMethod(ctx, methodID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("payment method %s not found", methodID)
		}
		return err
	}
	if method.UserID != userID {
		return apperr.Forbidden("payment method belongs to another user")
	}
	if err := o.proc.DetachPaymentMethod(ctx, methodID); err != nil {
		return err
	}
	return o.store.DeletePaymentMethod(ctx, methodID)
}

func (o *Orchestrator) ListPaymentMethods(ctx context.Context, userID uuid.UUID) ([]*models.PaymentMethod, error) {
	return o.store.ListPaymentMethods(ctx, userID)
}

// DefaultPaymentMethod returns the user's default saved method, if any.
func (o *Orchestrator) DefaultPaymentMethod(ctx context.Context, userID uuid.UUID) (*models.PaymentMethod, error) {
	methods, err := o.store.ListPaymentMethods(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, m := range methods {
		if m.IsDefault {
			return m, nil
		}
	}
	return nil, apperr.Validation("no default payment method on file")
}
