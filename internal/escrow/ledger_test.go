package escrow_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/escrow"
	"github.com/gigvault/gigvault/internal/models"
	"github.com/gigvault/gigvault/internal/store"
)

func newLedger() (*escrow.Ledger, *store.Memory) {
	st := store.NewMemory()
	return escrow.NewLedger(st, 0.10), st
}

func TestOpenSplitsFee(t *testing.T) {
	l, _ := newLedger()
	ctx := context.Background()
	jobID := uuid.New()

	rec, err := l.Open(ctx, jobID, 10000)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), rec.AuthorizedCents)
	assert.Equal(t, int64(1000), rec.FeeCents)
	assert.Equal(t, int64(9000), rec.NetPayableCents)

	evts, err := l.Events(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, models.LedgerOpened, evts[0].Kind)
}

func TestOpenRejectsNonPositiveAmounts(t *testing.T) {
	l, _ := newLedger()
	_, err := l.Open(context.Background(), uuid.New(), 0)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestFeeRounding(t *testing.T) {
	l, _ := newLedger()
	// 10% of 10005 is 1000.5, rounds to 1001; net absorbs the remainder.
	rec, err := l.Open(context.Background(), uuid.New(), 10005)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), rec.FeeCents)
	assert.Equal(t, int64(9004), rec.NetPayableCents)
	assert.Equal(t, rec.AuthorizedCents, rec.FeeCents+rec.NetPayableCents)
}

func TestAuthorizationIsIdempotentPerHold(t *testing.T) {
	l, _ := newLedger()
	ctx := context.Background()
	jobID := uuid.New()
	_, err := l.Open(ctx, jobID, 5000)
	require.NoError(t, err)

	require.NoError(t, l.RecordAuthorization(ctx, jobID, "hold_1"))
	require.NoError(t, l.RecordAuthorization(ctx, jobID, "hold_1"))

	err = l.RecordAuthorization(ctx, jobID, "hold_2")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))

	evts, err := l.Events(ctx, jobID)
	require.NoError(t, err)
	var authorized int
	for _, e := range evts {
		if e.Kind == models.LedgerAuthorized {
			authorized++
		}
	}
	assert.Equal(t, 1, authorized)
}

func TestNoRefundAfterTransfer(t *testing.T) {
	l, _ := newLedger()
	ctx := context.Background()
	jobID := uuid.New()
	_, err := l.Open(ctx, jobID, 5000)
	require.NoError(t, err)
	require.NoError(t, l.RecordAuthorization(ctx, jobID, "hold_1"))
	require.NoError(t, l.RecordCapture(ctx, jobID))
	require.NoError(t, l.RecordTransfer(ctx, jobID, "tr_1"))

	err = l.RecordRefund(ctx, jobID, 100, "re_1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))
}

func TestNoTransferAfterFullRefund(t *testing.T) {
	l, _ := newLedger()
	ctx := context.Background()
	jobID := uuid.New()
	_, err := l.Open(ctx, jobID, 5000)
	require.NoError(t, err)
	require.NoError(t, l.RecordAuthorization(ctx, jobID, "hold_1"))
	require.NoError(t, l.RecordRefund(ctx, jobID, 5000, "re_1"))

	err = l.RecordTransfer(ctx, jobID, "tr_1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))

	rec, err := l.Record(ctx, jobID)
	require.NoError(t, err)
	assert.True(t, rec.ConservationHolds())
}

func TestRefundBounds(t *testing.T) {
	l, _ := newLedger()
	ctx := context.Background()
	jobID := uuid.New()
	_, err := l.Open(ctx, jobID, 5000)
	require.NoError(t, err)
	require.NoError(t, l.RecordAuthorization(ctx, jobID, "hold_1"))

	err = l.RecordRefund(ctx, jobID, 6000, "re_1")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	require.NoError(t, l.RecordRefund(ctx, jobID, 3000, "re_2"))
	err = l.RecordRefund(ctx, jobID, 2500, "re_3")
	require.Error(t, err)

	require.NoError(t, l.RecordRefund(ctx, jobID, 2000, "re_4"))
	rec, err := l.Record(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), rec.RefundedCents)
	assert.True(t, rec.ConservationHolds())
}

func TestConservationAfterPayout(t *testing.T) {
	l, _ := newLedger()
	ctx := context.Background()
	jobID := uuid.New()
	_, err := l.Open(ctx, jobID, 10000)
	require.NoError(t, err)
	require.NoError(t, l.RecordAuthorization(ctx, jobID, "hold_1"))
	require.NoError(t, l.RecordCapture(ctx, jobID))
	require.NoError(t, l.RecordTransfer(ctx, jobID, "tr_1"))

	rec, err := l.Record(ctx, jobID)
	require.NoError(t, err)
	// authorized == refunded + net + fee
	assert.True(t, rec.ConservationHolds())
}

func TestBumpAttemptAdvancesEpoch(t *testing.T) {
	l, _ := newLedger()
	ctx := context.Background()
	jobID := uuid.New()
	_, err := l.Open(ctx, jobID, 5000)
	require.NoError(t, err)

	e1, err := l.BumpAttempt(ctx, jobID)
	require.NoError(t, err)
	e2, err := l.BumpAttempt(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, e1+1, e2)
}

func TestAdjustmentsAreAppendOnly(t *testing.T) {
	l, _ := newLedger()
	ctx := context.Background()
	jobID := uuid.New()
	disputeID := uuid.New()
	_, err := l.Open(ctx, jobID, 10000)
	require.NoError(t, err)
	require.NoError(t, l.RecordAuthorization(ctx, jobID, "hold_1"))
	require.NoError(t, l.RecordCapture(ctx, jobID))
	require.NoError(t, l.RecordTransfer(ctx, jobID, "tr_1"))

	before, err := l.Record(ctx, jobID)
	require.NoError(t, err)

	require.NoError(t, l.RecordAdjustment(ctx, jobID, models.LedgerAdjustRefund, 2000, disputeID))

	after, err := l.Record(ctx, jobID)
	require.NoError(t, err)
	// The original record's amounts never move.
	assert.Equal(t, before.AuthorizedCents, after.AuthorizedCents)
	assert.Equal(t, before.RefundedCents, after.RefundedCents)
	assert.Equal(t, before.NetPayableCents, after.NetPayableCents)

	evts, err := l.Events(ctx, jobID)
	require.NoError(t, err)
	last := evts[len(evts)-1]
	assert.Equal(t, models.LedgerAdjustRefund, last.Kind)
	assert.Equal(t, int64(2000), last.AmountCents)
	assert.Equal(t, disputeID.String(), last.Reference)

	err = l.RecordAdjustment(ctx, jobID, "made_up", 100, disputeID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}
