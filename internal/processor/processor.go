// Package processor is the boundary to the external payment processor.
// The engine only ever sees this interface; the HTTP client and the test
// fake both implement it. Every money-moving call carries a caller-supplied
// idempotency key so a retry after a timeout has effect at most once.
package processor

import (
	"context"

	"github.com/google/uuid"
)

type AuthorizeRequest struct {
	JobID           uuid.UUID
	AmountCents     int64
	PaymentMethodID string
	IdempotencyKey  string
}

type AuthorizeResult struct {
	HoldID string
}

type TransferRequest struct {
	JobID          uuid.UUID
	PayoutAccount  string
	AmountCents    int64
	IdempotencyKey string
}

type TransferResult struct {
	TransferID string
}

type RefundRequest struct {
	HoldID         string
	AmountCents    int64
	IdempotencyKey string
}

type RefundResult struct {
	RefundID string
}

// SetupIntent is the first half of the two-phase saved-card flow: the
// client confirms the intent with the processor directly, off the job
// creation path, then posts the resulting token back to us.
type SetupIntent struct {
	ID           string
	ClientSecret string
}

type CardInfo struct {
	MethodID    string
	Brand       string
	Last4       string
	ExpiryMonth int
	ExpiryYear  int
}

type Processor interface {
	Authorize(ctx context.Context, req AuthorizeRequest) (*AuthorizeResult, error)
	Capture(ctx context.Context, holdID, idempotencyKey string) error
	Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
	CreateSetupIntent(ctx context.Context, userID uuid.UUID) (*SetupIntent, error)
	ConfirmSetupIntent(ctx context.Context, intentID, token string) (*CardInfo, error)
	DetachPaymentMethod(ctx context.Context, methodID string) error
}
