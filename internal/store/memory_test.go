package store_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigvault/gigvault/internal/models"
	"github.com/gigvault/gigvault/internal/store"
)

func seedJob(t *testing.T, m *store.Memory) *models.Job {
	t.Helper()
	j := &models.Job{
		ID:          uuid.New(),
		PosterID:    uuid.New(),
		Title:       "Test job",
		Description: "desc",
		AmountCents: 1000,
		PaymentType: models.PaymentTypeFixed,
		Status:      models.StatusOpen,
		DatePosted:  time.Now().UTC(),
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, m.CreateJob(context.Background(), j))
	return j
}

func TestUpdateJobVersionCheck(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	j := seedJob(t, m)

	// Two readers observe the same version.
	a, err := m.GetJob(ctx, j.ID)
	require.NoError(t, err)
	b, err := m.GetJob(ctx, j.ID)
	require.NoError(t, err)

	a.Status = models.StatusAssigned
	require.NoError(t, m.UpdateJob(ctx, a))
	assert.Equal(t, j.Version+1, a.Version)

	// The stale writer loses.
	b.Status = models.StatusCancelPending
	err = m.UpdateJob(ctx, b)
	require.ErrorIs(t, err, store.ErrVersionConflict)

	got, err := m.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusAssigned, got.Status)
}

func TestUpdateJobConcurrentWritersOneWins(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	j := seedJob(t, m)

	const writers = 8
	var wg sync.WaitGroup
	results := make(chan error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cp, err := m.GetJob(ctx, j.ID)
			if err != nil {
				results <- err
				return
			}
			// Everyone read version 0; at most one CAS can succeed.
			cp.Version = j.Version
			cp.Status = models.StatusAssigned
			results <- m.UpdateJob(ctx, cp)
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		if err == nil {
			wins++
		} else {
			require.ErrorIs(t, err, store.ErrVersionConflict)
		}
	}
	assert.Equal(t, 1, wins)
}

func TestUpdateJobDoesNotRewriteAmount(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	j := seedJob(t, m)

	cp, err := m.GetJob(ctx, j.ID)
	require.NoError(t, err)
	cp.AmountCents = 999999
	cp.Status = models.StatusAssigned
	require.NoError(t, m.UpdateJob(ctx, cp))

	got, err := m.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1000), got.AmountCents)
	assert.Equal(t, models.StatusAssigned, got.Status)
}

func TestMarkWebhookEventDeduplicates(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()

	first, err := m.MarkWebhookEvent(ctx, "evt_1", "hold.succeeded")
	require.NoError(t, err)
	assert.True(t, first)

	again, err := m.MarkWebhookEvent(ctx, "evt_1", "hold.succeeded")
	require.NoError(t, err)
	assert.False(t, again)

	other, err := m.MarkWebhookEvent(ctx, "evt_2", "hold.succeeded")
	require.NoError(t, err)
	assert.True(t, other)

	// Unmark frees the id so a redelivery is processed.
	require.NoError(t, m.UnmarkWebhookEvent(ctx, "evt_1"))
	redo, err := m.MarkWebhookEvent(ctx, "evt_1", "hold.succeeded")
	require.NoError(t, err)
	assert.True(t, redo)
}

func TestCreateApplicationDuplicateGuard(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	j := seedJob(t, m)
	workerID := uuid.New()

	mk := func() *models.Application {
		return &models.Application{
			ID:        uuid.New(),
			JobID:     j.ID,
			WorkerID:  workerID,
			Status:    models.ApplicationPending,
			CreatedAt: time.Now().UTC(),
			UpdatedAt: time.Now().UTC(),
		}
	}
	first := mk()
	require.NoError(t, m.CreateApplication(ctx, first))
	require.ErrorIs(t, m.CreateApplication(ctx, mk()), store.ErrDuplicate)

	// Rejection frees the slot, mirroring the partial unique index.
	require.NoError(t, m.UpdateApplicationStatus(ctx, first.ID, models.ApplicationRejected))
	require.NoError(t, m.CreateApplication(ctx, mk()))
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	m := store.NewMemory()
	ctx := context.Background()
	u := &models.User{ID: uuid.New(), Name: "a", Email: "A@example.com", Role: models.RolePoster, IsActive: true, CreatedAt: time.Now().UTC()}
	require.NoError(t, m.CreateUser(ctx, u))

	dup := &models.User{ID: uuid.New(), Name: "b", Email: "a@example.com", Role: models.RoleWorker, IsActive: true, CreatedAt: time.Now().UTC()}
	require.ErrorIs(t, m.CreateUser(ctx, dup), store.ErrDuplicate)
}
