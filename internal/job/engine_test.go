package job_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigvault/gigvault/internal/alerts"
	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/application"
	"github.com/gigvault/gigvault/internal/config"
	"github.com/gigvault/gigvault/internal/escrow"
	"github.com/gigvault/gigvault/internal/job"
	"github.com/gigvault/gigvault/internal/models"
	"github.com/gigvault/gigvault/internal/payment"
	"github.com/gigvault/gigvault/internal/processor"
	"github.com/gigvault/gigvault/internal/store"
	"github.com/gigvault/gigvault/internal/task"
)

type fixture struct {
	st      *store.Memory
	fake    *processor.Fake
	ledger  *escrow.Ledger
	orch    *payment.Orchestrator
	tracker *task.Tracker
	engine  *job.Engine
	poster  *models.User
	worker  *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	st := store.NewMemory()
	fake := processor.NewFake()
	ledger := escrow.NewLedger(st, 0.10)
	orch := payment.NewOrchestrator(st, fake, config.ProcessorConfig{
		WebhookSecret: "test-secret",
		MaxAttempts:   4,
		BackoffBase:   time.Millisecond,
	})
	tracker := task.NewTracker(st)
	apps := application.NewManager(st, nil)
	engine := job.NewEngine(st, ledger, orch, tracker, apps, alerts.NewStoreOnlyNotifier(st), nil)
	orch.SetWebhookApplier(engine)

	f := &fixture{st: st, fake: fake, ledger: ledger, orch: orch, tracker: tracker, engine: engine}
	f.poster = f.addUser(t, models.RolePoster, "")
	f.worker = f.addUser(t, models.RoleWorker, "acct_worker")
	return f
}

func (f *fixture) addUser(t *testing.T, role, payoutAccount string) *models.User {
	t.Helper()
	u := &models.User{
		ID:            uuid.New(),
		Name:          role + " " + uuid.NewString()[:8],
		Email:         uuid.NewString() + "@example.com",
		Role:          role,
		PayoutAccount: payoutAccount,
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, f.st.CreateUser(context.Background(), u))
	return u
}

func (f *fixture) createOpenJob(t *testing.T, amountCents int64) *models.Job {
	t.Helper()
	j, err := f.engine.Create(context.Background(), f.poster.ID, job.CreateInput{
		Title:           "Fix the fence",
		Description:     "Two broken panels",
		AmountCents:     amountCents,
		PaymentMethodID: "pm_test",
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusOpen, j.Status)
	return j
}

// assignAndStart takes an open job through apply, accept and start.
func (f *fixture) assignAndStart(t *testing.T, j *models.Job) *models.Job {
	t.Helper()
	ctx := context.Background()
	apps := application.NewManager(f.st, nil)
	app, err := apps.Apply(ctx, f.worker.ID, j.ID, "I can do it", 0, "2 days")
	require.NoError(t, err)
	j, err = f.engine.AcceptApplication(ctx, f.poster.ID, app.ID)
	require.NoError(t, err)
	j, err = f.engine.Start(ctx, f.worker.ID, j.ID)
	require.NoError(t, err)
	require.Equal(t, models.StatusInProgress, j.Status)
	return j
}

func TestHappyPathLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	j := f.createOpenJob(t, 10000)

	rec, err := f.ledger.Record(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), rec.AuthorizedCents)
	assert.Equal(t, int64(1000), rec.FeeCents)
	assert.Equal(t, int64(9000), rec.NetPayableCents)
	assert.True(t, rec.Authorized())

	j = f.assignAndStart(t, j)

	j, err = f.engine.Complete(ctx, f.worker.ID, j.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, j.Status)
	assert.NotNil(t, j.DateCompleted)

	rec, err = f.ledger.Record(ctx, j.ID)
	require.NoError(t, err)
	assert.True(t, rec.Transferred())
	assert.True(t, rec.ConservationHolds())

	transfers := f.fake.Calls("transfer")
	require.Len(t, transfers, 1)
	assert.Equal(t, int64(9000), transfers[0].AmountCents)
	require.Len(t, f.fake.Calls("authorize"), 1)
}

func TestCreateWithDeclinedCardStaysPendingPayment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fake.FailNext("authorize", apperr.PaymentPermanent("card declined", nil), 1)
	j, err := f.engine.Create(ctx, f.poster.ID, job.CreateInput{
		Title:           "Paint the shed",
		Description:     "One coat",
		AmountCents:     5000,
		PaymentMethodID: "pm_bad",
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPaymentPermanent))
	require.NotNil(t, j)
	assert.Equal(t, models.StatusPendingPayment, j.Status)

	// A permanent failure is not retried automatically.
	require.Len(t, f.fake.Calls("authorize"), 1)

	// The job is invisible to workers until payment lands.
	open, err := f.engine.ListOpen(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)

	// Retrying with a working card opens the job under a fresh epoch.
	j, err = f.engine.RetryPayment(ctx, f.poster.ID, j.ID, "pm_good")
	require.NoError(t, err)
	assert.Equal(t, models.StatusOpen, j.Status)

	calls := f.fake.Calls("authorize")
	require.Len(t, calls, 2)
	assert.NotEqual(t, calls[0].IdempotencyKey, calls[1].IdempotencyKey)
}

func TestTransientAuthorizationFailuresRetryUnderOneKey(t *testing.T) {
	f := newFixture(t)

	f.fake.FailNext("authorize", apperr.PaymentTransient("processor timeout", nil), 3)
	j := f.createOpenJob(t, 8000)

	calls := f.fake.Calls("authorize")
	require.Len(t, calls, 4)
	for _, c := range calls[1:] {
		assert.Equal(t, calls[0].IdempotencyKey, c.IdempotencyKey)
	}

	rec, err := f.ledger.Record(context.Background(), j.ID)
	require.NoError(t, err)
	assert.True(t, rec.Authorized())
}

func TestTransientFailuresExhaustAttempts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.fake.FailNext("authorize", apperr.PaymentTransient("processor timeout", nil), 4)
	j, err := f.engine.Create(ctx, f.poster.ID, job.CreateInput{
		Title:           "Mow the lawn",
		Description:     "Front and back",
		AmountCents:     3000,
		PaymentMethodID: "pm_test",
	})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindPaymentTransient))
	assert.Equal(t, models.StatusPendingPayment, j.Status)
	require.Len(t, f.fake.Calls("authorize"), 4)
}

func TestCompleteGatedOnChecklist(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	j := f.createOpenJob(t, 10000)
	tk1, err := f.tracker.Add(ctx, f.poster.ID, j.ID, "clear debris", "", 0)
	require.NoError(t, err)
	_, err = f.tracker.Add(ctx, f.poster.ID, j.ID, "install panels", "", 500)
	require.NoError(t, err)

	j = f.assignAndStart(t, j)

	_, progress, err := f.tracker.Complete(ctx, f.worker.ID, tk1.ID)
	require.NoError(t, err)
	assert.Equal(t, 50, progress.Percent)

	_, err = f.engine.Complete(ctx, f.worker.ID, j.ID, false)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))

	// Explicit override completes anyway and is recorded on the job. The
	// poster confirming it works the same as the worker.
	j, err = f.engine.Complete(ctx, f.poster.ID, j.ID, true)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, j.Status)
	assert.True(t, j.CompletedOverride)
}

func TestCompleteWithFullChecklistNeedsNoOverride(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	j := f.createOpenJob(t, 10000)
	tk, err := f.tracker.Add(ctx, f.poster.ID, j.ID, "the only task", "", 0)
	require.NoError(t, err)
	j = f.assignAndStart(t, j)

	_, progress, err := f.tracker.Complete(ctx, f.worker.ID, tk.ID)
	require.NoError(t, err)
	require.Equal(t, 100, progress.Percent)

	j, err = f.engine.Complete(ctx, f.worker.ID, j.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, j.Status)
	assert.False(t, j.CompletedOverride)
}

func TestCancelBeforeAssignmentRefundsEverything(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	j := f.createOpenJob(t, 10000)
	j, err := f.engine.Cancel(ctx, f.poster.ID, models.RolePoster, j.ID, "changed my mind")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, j.Status)
	assert.Equal(t, "changed my mind", j.CancelReason)

	rec, err := f.ledger.Record(ctx, j.ID)
	require.NoError(t, err)
	// The fee comes back too when no payout happened.
	assert.Equal(t, int64(10000), rec.RefundedCents)
	assert.True(t, rec.ConservationHolds())

	refunds := f.fake.Calls("refund")
	require.Len(t, refunds, 1)
	assert.Equal(t, int64(10000), refunds[0].AmountCents)
}

func TestCancelAfterCompletionRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	j := f.createOpenJob(t, 10000)
	j = f.assignAndStart(t, j)
	j, err := f.engine.Complete(ctx, f.poster.ID, j.ID, false)
	require.NoError(t, err)

	_, err = f.engine.Cancel(ctx, f.poster.ID, models.RolePoster, j.ID, "too late")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))
}

func TestCancelUnfundedDraft(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	j, err := f.engine.Create(ctx, f.poster.ID, job.CreateInput{
		Title:       "Maybe later",
		Description: "Not sure yet",
		AmountCents: 2000,
		SaveAsDraft: true,
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusDraft, j.Status)

	j, err = f.engine.Cancel(ctx, f.poster.ID, models.RolePoster, j.ID, "")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, j.Status)
	assert.Empty(t, f.fake.Calls("refund"))
}

func TestPayoutRetryAfterTransientFailure(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	j := f.createOpenJob(t, 10000)
	j = f.assignAndStart(t, j)

	f.fake.FailNext("transfer", apperr.PaymentTransient("bank link down", nil), 4)
	j, err := f.engine.Complete(ctx, f.poster.ID, j.ID, false)
	require.NoError(t, err)
	// Sign-off stands, payout is pending.
	assert.Equal(t, models.StatusPendingPayout, j.Status)

	// Background retry drives it home without double-charging.
	require.NoError(t, f.engine.RetryPayout(ctx, j.ID))
	j, err = f.engine.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, j.Status)

	rec, err := f.ledger.Record(ctx, j.ID)
	require.NoError(t, err)
	assert.True(t, rec.ConservationHolds())
	require.Len(t, f.fake.Calls("capture"), 1)

	// 4 failed attempts plus the one that landed; the money moved once.
	assert.Len(t, f.fake.Calls("transfer"), 5)
}

func TestAcceptIsExclusive(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	j := f.createOpenJob(t, 6000)
	apps := application.NewManager(f.st, nil)
	worker2 := f.addUser(t, models.RoleWorker, "acct_w2")

	app1, err := apps.Apply(ctx, f.worker.ID, j.ID, "", 0, "")
	require.NoError(t, err)
	app2, err := apps.Apply(ctx, worker2.ID, j.ID, "", 0, "")
	require.NoError(t, err)

	_, err = f.engine.AcceptApplication(ctx, f.poster.ID, app1.ID)
	require.NoError(t, err)

	// The second accept loses: the job already left open.
	_, err = f.engine.AcceptApplication(ctx, f.poster.ID, app2.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))

	got, err := f.st.GetApplication(ctx, app2.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationRejected, got.Status)
}

func TestStartIsWorkerOnlyAndIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	j := f.createOpenJob(t, 6000)
	apps := application.NewManager(f.st, nil)
	app, err := apps.Apply(ctx, f.worker.ID, j.ID, "", 0, "")
	require.NoError(t, err)
	_, err = f.engine.AcceptApplication(ctx, f.poster.ID, app.ID)
	require.NoError(t, err)

	_, err = f.engine.Start(ctx, f.poster.ID, j.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	j1, err := f.engine.Start(ctx, f.worker.ID, j.ID)
	require.NoError(t, err)
	j2, err := f.engine.Start(ctx, f.worker.ID, j.ID)
	require.NoError(t, err)
	assert.Equal(t, j1.Version, j2.Version)
	assert.Equal(t, models.StatusInProgress, j2.Status)
}

func TestStaleAuthorizationAfterCancelIsRefunded(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// Authorization times out, the poster gives up and cancels.
	f.fake.FailNext("authorize", apperr.PaymentTransient("processor timeout", nil), 4)
	j, err := f.engine.Create(ctx, f.poster.ID, job.CreateInput{
		Title:           "Walk the dog",
		Description:     "Daily",
		AmountCents:     4000,
		PaymentMethodID: "pm_test",
	})
	require.Error(t, err)
	j, err = f.engine.Cancel(ctx, f.poster.ID, models.RolePoster, j.ID, "gave up")
	require.NoError(t, err)
	require.Equal(t, models.StatusCanceled, j.Status)

	// The hold lands anyway via webhook. The job stays canceled and the
	// money goes straight back.
	require.NoError(t, f.engine.ApplyAuthorization(ctx, j.ID, true, "hold_late"))
	j, err = f.engine.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, j.Status)

	rec, err := f.ledger.Record(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(4000), rec.RefundedCents)
	assert.True(t, rec.ConservationHolds())
}

func TestCompleteCallableByWorkerOrPosterOnly(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	j := f.createOpenJob(t, 10000)
	j = f.assignAndStart(t, j)

	outsider := f.addUser(t, models.RoleWorker, "acct_other")
	_, err := f.engine.Complete(ctx, outsider.ID, j.ID, false)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	j, err = f.engine.Complete(ctx, f.worker.ID, j.ID, false)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, j.Status)
}

func TestAssignedWorkerCanCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	j := f.createOpenJob(t, 10000)
	j = f.assignAndStart(t, j)

	outsider := f.addUser(t, models.RoleWorker, "")
	_, err := f.engine.Cancel(ctx, outsider.ID, models.RoleWorker, j.ID, "not my job")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	j, err = f.engine.Cancel(ctx, f.worker.ID, models.RoleWorker, j.ID, "family emergency")
	require.NoError(t, err)
	assert.Equal(t, models.StatusCanceled, j.Status)

	rec, err := f.ledger.Record(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(10000), rec.RefundedCents)
	assert.True(t, rec.ConservationHolds())
}

func TestTransferSettledWebhookRecordsCapture(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	j := f.createOpenJob(t, 10000)
	j = f.assignAndStart(t, j)

	// The capture call never comes back, so the job parks in
	// pending_payout with the capture leg unrecorded.
	f.fake.FailNext("capture", apperr.PaymentTransient("processor timeout", nil), 4)
	j, err := f.engine.Complete(ctx, f.worker.ID, j.ID, false)
	require.NoError(t, err)
	require.Equal(t, models.StatusPendingPayout, j.Status)

	// The processor settles the payout anyway and says so via webhook.
	// The ledger must pick up the implied capture, not just the transfer.
	require.NoError(t, f.engine.ApplyTransfer(ctx, j.ID, true, "tr_webhook"))

	j, err = f.engine.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, j.Status)

	rec, err := f.ledger.Record(ctx, j.ID)
	require.NoError(t, err)
	assert.NotNil(t, rec.CapturedAt)
	assert.True(t, rec.Transferred())

	evts, err := f.ledger.Events(ctx, j.ID)
	require.NoError(t, err)
	kinds := map[string]bool{}
	for _, ev := range evts {
		kinds[ev.Kind] = true
	}
	assert.True(t, kinds[models.LedgerCaptured])
	assert.True(t, kinds[models.LedgerTransferred])
}
