package payment

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log"

	"github.com/google/uuid"

	"github.com/gigvault/gigvault/internal/apperr"
)

// Webhook event types the processor sends.
const (
	EventHoldSucceeded   = "hold.succeeded"
	EventHoldFailed      = "hold.failed"
	EventTransferSettled = "transfer.settled"
	EventTransferFailed  = "transfer.failed"
	EventRefundSettled   = "refund.settled"
	EventDisputeOpened   = "dispute.opened"
)

// Event is the processor's webhook payload. Reference carries our job id.
type Event struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Reference   uuid.UUID `json:"reference"`
	HoldID      string    `json:"hold_id,omitempty"`
	TransferID  string    `json:"transfer_id,omitempty"`
	RefundID    string    `json:"refund_id,omitempty"`
	AmountCents int64     `json:"amount,omitempty"`
}

// WebhookApplier is implemented by the job state machine. The orchestrator
// verifies, deduplicates and parses; the applier decides what the outcome
// means for the job.
type WebhookApplier interface {
	ApplyAuthorization(ctx context.Context, jobID uuid.UUID, succeeded bool, holdID string) error
	ApplyTransfer(ctx context.Context, jobID uuid.UUID, succeeded bool, transferID string) error
	ApplyRefund(ctx context.Context, jobID uuid.UUID, refundID string, amountCents int64) error
	ApplyProcessorDispute(ctx context.Context, jobID uuid.UUID, reference string) error
}

// VerifySignature checks the hex-encoded HMAC-SHA256 of the raw body
// against the signature header.
func (o *Orchestrator) VerifySignature(body []byte, signature string) bool {
	mac := hmac.New(sha256.New, []byte(o.webhookSecret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(signature))
}

// HandleWebhook verifies, deduplicates and applies one processor event.
// A replayed event id is a no-op by construction.
func (o *Orchestrator) HandleWebhook(ctx context.Context, body []byte, signature string) error {
	if !o.VerifySignature(body, signature) {
		return apperr.Forbidden("invalid webhook signature")
	}
	var ev Event
	if err := json.Unmarshal(body, &ev); err != nil {
		return apperr.Validation("malformed webhook payload")
	}
	if ev.ID == "" || ev.Type == "" {
		return apperr.Validation("webhook event missing id or type")
	}

	if o.applier == nil {
		return apperr.Internal("webhook applier not wired", nil)
	}
	first, err := o.store.MarkWebhookEvent(ctx, ev.ID, ev.Type)
	if err != nil {
		return err
	}
	if !first {
		log.Printf("[webhook] replayed event %s (%s), ignoring", ev.ID, ev.Type)
		return nil
	}
	if err := o.apply(ctx, ev); err != nil {
		// The outcome was not applied. Forget the event id so the
		// processor's redelivery is processed instead of dropped as a
		// replay.
		if uerr := o.store.UnmarkWebhookEvent(ctx, ev.ID); uerr != nil {
			log.Printf("[webhook] could not unmark failed event %s: %v", ev.ID, uerr)
		}
		return err
	}
	return nil
}

func (o *Orchestrator) apply(ctx context.Context, ev Event) error {
	switch ev.Type {
	case EventHoldSucceeded:
		return o.applier.ApplyAuthorization(ctx, ev.Reference, true, ev.HoldID)
	case EventHoldFailed:
		return o.applier.ApplyAuthorization(ctx, ev.Reference, false, ev.HoldID)
	case EventTransferSettled:
		return o.applier.ApplyTransfer(ctx, ev.Reference, true, ev.TransferID)
	case EventTransferFailed:
		return o.applier.ApplyTransfer(ctx, ev.Reference, false, ev.TransferID)
	case EventRefundSettled:
		return o.applier.ApplyRefund(ctx, ev.Reference, ev.RefundID, ev.AmountCents)
	case EventDisputeOpened:
		return o.applier.ApplyProcessorDispute(ctx, ev.Reference, ev.ID)
	default:
		log.Printf("[webhook] unhandled event type %q (%s)", ev.Type, ev.ID)
		return nil
	}
}
