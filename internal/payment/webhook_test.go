package payment_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/config"
	"github.com/gigvault/gigvault/internal/payment"
	"github.com/gigvault/gigvault/internal/processor"
	"github.com/gigvault/gigvault/internal/store"
)

const testSecret = "whsec_test"

func sign(body []byte) string {
	mac := hmac.New(sha256.New, []byte(testSecret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// countingApplier records how often each outcome is applied. authFailures
// makes the next N authorization applies fail.
type countingApplier struct {
	auth, transfer, refund, dispute int
	authFailures                    int
}

func (a *countingApplier) ApplyAuthorization(context.Context, uuid.UUID, bool, string) error {
	a.auth++
	if a.authFailures > 0 {
		a.authFailures--
		return apperr.Internal("job row not visible yet", nil)
	}
	return nil
}
func (a *countingApplier) ApplyTransfer(context.Context, uuid.UUID, bool, string) error {
	a.transfer++
	return nil
}
func (a *countingApplier) ApplyRefund(context.Context, uuid.UUID, string, int64) error {
	a.refund++
	return nil
}
func (a *countingApplier) ApplyProcessorDispute(context.Context, uuid.UUID, string) error {
	a.dispute++
	return nil
}

func newOrch() (*payment.Orchestrator, *countingApplier) {
	st := store.NewMemory()
	orch := payment.NewOrchestrator(st, processor.NewFake(), config.ProcessorConfig{
		WebhookSecret: testSecret,
		MaxAttempts:   3,
		BackoffBase:   time.Millisecond,
	})
	a := &countingApplier{}
	orch.SetWebhookApplier(a)
	return orch, a
}

func eventBody(t *testing.T, ev payment.Event) []byte {
	t.Helper()
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return b
}

func TestWebhookRejectsBadSignature(t *testing.T) {
	orch, a := newOrch()
	body := eventBody(t, payment.Event{ID: "evt_1", Type: payment.EventHoldSucceeded, Reference: uuid.New()})

	err := orch.HandleWebhook(context.Background(), body, "deadbeef")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))
	assert.Zero(t, a.auth)
}

func TestWebhookReplayIsNoOp(t *testing.T) {
	orch, a := newOrch()
	body := eventBody(t, payment.Event{ID: "evt_1", Type: payment.EventHoldSucceeded, Reference: uuid.New(), HoldID: "hold_1"})

	require.NoError(t, orch.HandleWebhook(context.Background(), body, sign(body)))
	require.NoError(t, orch.HandleWebhook(context.Background(), body, sign(body)))
	require.NoError(t, orch.HandleWebhook(context.Background(), body, sign(body)))

	assert.Equal(t, 1, a.auth)
}

func TestWebhookRedeliveryAfterFailedApply(t *testing.T) {
	orch, a := newOrch()
	a.authFailures = 1
	body := eventBody(t, payment.Event{ID: "evt_1", Type: payment.EventHoldSucceeded, Reference: uuid.New(), HoldID: "hold_1"})

	// The first delivery fails to apply; the event id must not be burned.
	require.Error(t, orch.HandleWebhook(context.Background(), body, sign(body)))

	// The processor redelivers the same event id and it applies this time.
	require.NoError(t, orch.HandleWebhook(context.Background(), body, sign(body)))
	assert.Equal(t, 2, a.auth)

	// Only an applied event counts as seen; from here on it is a replay.
	require.NoError(t, orch.HandleWebhook(context.Background(), body, sign(body)))
	assert.Equal(t, 2, a.auth)
}

func TestWebhookRoutesByType(t *testing.T) {
	orch, a := newOrch()
	jobID := uuid.New()
	events := []payment.Event{
		{ID: "evt_a", Type: payment.EventHoldFailed, Reference: jobID},
		{ID: "evt_b", Type: payment.EventTransferSettled, Reference: jobID, TransferID: "tr_1"},
		{ID: "evt_c", Type: payment.EventRefundSettled, Reference: jobID, RefundID: "re_1", AmountCents: 500},
		{ID: "evt_d", Type: payment.EventDisputeOpened, Reference: jobID},
		{ID: "evt_e", Type: "something.new", Reference: jobID},
	}
	for _, ev := range events {
		body := eventBody(t, ev)
		require.NoError(t, orch.HandleWebhook(context.Background(), body, sign(body)))
	}
	assert.Equal(t, 1, a.auth)
	assert.Equal(t, 1, a.transfer)
	assert.Equal(t, 1, a.refund)
	assert.Equal(t, 1, a.dispute)
}

func TestWebhookRejectsMalformedPayloads(t *testing.T) {
	orch, _ := newOrch()
	for _, body := range [][]byte{
		[]byte("not json"),
		eventBody(t, payment.Event{Type: payment.EventHoldSucceeded}),
		eventBody(t, payment.Event{ID: "evt_x"}),
	} {
		err := orch.HandleWebhook(context.Background(), body, sign(body))
		require.Error(t, err)
		assert.True(t, apperr.Is(err, apperr.KindValidation))
	}
}
