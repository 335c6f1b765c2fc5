package application_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/application"
	"github.com/gigvault/gigvault/internal/models"
	"github.com/gigvault/gigvault/internal/store"
)

func seedJob(t *testing.T, st *store.Memory, status models.JobStatus) (*models.Job, uuid.UUID) {
	t.Helper()
	posterID := uuid.New()
	j := &models.Job{
		ID:          uuid.New(),
		PosterID:    posterID,
		Title:       "Trim the hedge",
		Description: "Front garden",
		AmountCents: 4000,
		PaymentType: models.PaymentTypeFixed,
		Status:      status,
		DatePosted:  time.Now().UTC(),
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	require.NoError(t, st.CreateJob(context.Background(), j))
	return j, posterID
}

func TestApplyRules(t *testing.T) {
	st := store.NewMemory()
	m := application.NewManager(st, nil)
	ctx := context.Background()
	j, posterID := seedJob(t, st, models.StatusOpen)
	workerID := uuid.New()

	app, err := m.Apply(ctx, workerID, j.ID, "pick me", 3500, "1 day")
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationPending, app.Status)

	// One live application per worker per job.
	_, err = m.Apply(ctx, workerID, j.ID, "again", 0, "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	// Posters cannot bid on their own jobs.
	_, err = m.Apply(ctx, posterID, j.ID, "", 0, "")
	require.Error(t, err)

	// Closed jobs take no applications.
	closed, _ := seedJob(t, st, models.StatusAssigned)
	_, err = m.Apply(ctx, workerID, closed.ID, "", 0, "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestReapplyAfterRejection(t *testing.T) {
	st := store.NewMemory()
	m := application.NewManager(st, nil)
	ctx := context.Background()
	j, posterID := seedJob(t, st, models.StatusOpen)
	workerID := uuid.New()

	app, err := m.Apply(ctx, workerID, j.ID, "", 0, "")
	require.NoError(t, err)
	_, err = m.Reject(ctx, posterID, app.ID)
	require.NoError(t, err)

	// A rejected application is not live, so the worker may try again.
	_, err = m.Apply(ctx, workerID, j.ID, "second try", 0, "")
	require.NoError(t, err)
}

func TestRejectPermissions(t *testing.T) {
	st := store.NewMemory()
	m := application.NewManager(st, nil)
	ctx := context.Background()
	j, posterID := seedJob(t, st, models.StatusOpen)

	app, err := m.Apply(ctx, uuid.New(), j.ID, "", 0, "")
	require.NoError(t, err)

	_, err = m.Reject(ctx, uuid.New(), app.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	rejected, err := m.Reject(ctx, posterID, app.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationRejected, rejected.Status)

	_, err = m.Reject(ctx, posterID, app.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))
}

func TestAcceptRejectsSiblings(t *testing.T) {
	st := store.NewMemory()
	m := application.NewManager(st, nil)
	ctx := context.Background()
	j, _ := seedJob(t, st, models.StatusOpen)

	winner, err := m.Apply(ctx, uuid.New(), j.ID, "", 0, "")
	require.NoError(t, err)
	loser1, err := m.Apply(ctx, uuid.New(), j.ID, "", 0, "")
	require.NoError(t, err)
	loser2, err := m.Apply(ctx, uuid.New(), j.ID, "", 0, "")
	require.NoError(t, err)

	rejected, err := m.Accept(ctx, winner)
	require.NoError(t, err)
	assert.Equal(t, 2, rejected)

	for _, id := range []uuid.UUID{loser1.ID, loser2.ID} {
		got, err := st.GetApplication(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, models.ApplicationRejected, got.Status)
	}
	got, err := st.GetApplication(ctx, winner.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationAccepted, got.Status)
}

func TestListIsPosterOnly(t *testing.T) {
	st := store.NewMemory()
	m := application.NewManager(st, nil)
	ctx := context.Background()
	j, posterID := seedJob(t, st, models.StatusOpen)

	_, err := m.Apply(ctx, uuid.New(), j.ID, "", 0, "")
	require.NoError(t, err)

	_, err = m.List(ctx, uuid.New(), j.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	apps, err := m.List(ctx, posterID, j.ID)
	require.NoError(t, err)
	assert.Len(t, apps, 1)
}
