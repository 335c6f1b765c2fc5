package task_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/models"
	"github.com/gigvault/gigvault/internal/store"
	"github.com/gigvault/gigvault/internal/task"
)

type seed struct {
	st       *store.Memory
	tracker  *task.Tracker
	posterID uuid.UUID
	workerID uuid.UUID
	job      *models.Job
}

func newSeed(t *testing.T, status models.JobStatus) *seed {
	t.Helper()
	st := store.NewMemory()
	posterID := uuid.New()
	workerID := uuid.New()
	j := &models.Job{
		ID:          uuid.New(),
		PosterID:    posterID,
		Title:       "Clean the gutters",
		Description: "Both sides",
		AmountCents: 3000,
		PaymentType: models.PaymentTypeFixed,
		Status:      status,
		DatePosted:  time.Now().UTC(),
		CreatedAt:   time.Now().UTC(),
		UpdatedAt:   time.Now().UTC(),
	}
	if status == models.StatusAssigned || status == models.StatusInProgress {
		j.WorkerID = &workerID
	}
	require.NoError(t, st.CreateJob(context.Background(), j))
	return &seed{st: st, tracker: task.NewTracker(st), posterID: posterID, workerID: workerID, job: j}
}

func TestProgressWithNoTasksIsComplete(t *testing.T) {
	s := newSeed(t, models.StatusOpen)
	p, err := s.tracker.Progress(context.Background(), s.job.ID)
	require.NoError(t, err)
	assert.Equal(t, 100, p.Percent)
	assert.Zero(t, p.Total)
}

func TestProgressMath(t *testing.T) {
	s := newSeed(t, models.StatusOpen)
	ctx := context.Background()
	var ids []uuid.UUID
	for _, desc := range []string{"a", "b", "c"} {
		tk, err := s.tracker.Add(ctx, s.posterID, s.job.ID, desc, "", 0)
		require.NoError(t, err)
		ids = append(ids, tk.ID)
	}

	// Move the job along so the worker can tick tasks.
	s.job.WorkerID = &s.workerID
	s.job.Status = models.StatusInProgress
	require.NoError(t, s.st.UpdateJob(ctx, s.job))

	_, p, err := s.tracker.Complete(ctx, s.workerID, ids[0])
	require.NoError(t, err)
	assert.Equal(t, 33, p.Percent)

	_, p, err = s.tracker.Complete(ctx, s.workerID, ids[1])
	require.NoError(t, err)
	assert.Equal(t, 66, p.Percent)

	_, p, err = s.tracker.Complete(ctx, s.workerID, ids[2])
	require.NoError(t, err)
	assert.Equal(t, 100, p.Percent)

	// Re-completing is a no-op at 100%.
	_, p, err = s.tracker.Complete(ctx, s.workerID, ids[2])
	require.NoError(t, err)
	assert.Equal(t, 100, p.Percent)
	assert.Equal(t, 3, p.Completed)
}

func TestAddPermissionsAndStates(t *testing.T) {
	s := newSeed(t, models.StatusOpen)
	ctx := context.Background()

	_, err := s.tracker.Add(ctx, uuid.New(), s.job.ID, "not yours", "", 0)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	_, err = s.tracker.Add(ctx, s.posterID, s.job.ID, "", "", 0)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	assigned := newSeed(t, models.StatusAssigned)
	_, err = assigned.tracker.Add(ctx, assigned.posterID, assigned.job.ID, "too late", "", 0)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))
}

func TestCompleteIsWorkerOnlyWhileInProgress(t *testing.T) {
	s := newSeed(t, models.StatusOpen)
	ctx := context.Background()
	tk, err := s.tracker.Add(ctx, s.posterID, s.job.ID, "rake leaves", "", 0)
	require.NoError(t, err)

	// Not in progress yet.
	s.job.WorkerID = &s.workerID
	s.job.Status = models.StatusAssigned
	require.NoError(t, s.st.UpdateJob(ctx, s.job))
	_, _, err = s.tracker.Complete(ctx, s.workerID, tk.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))

	s.job.Status = models.StatusInProgress
	require.NoError(t, s.st.UpdateJob(ctx, s.job))

	// The poster cannot tick tasks.
	_, _, err = s.tracker.Complete(ctx, s.posterID, tk.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	got, p, err := s.tracker.Complete(ctx, s.workerID, tk.ID)
	require.NoError(t, err)
	assert.True(t, got.IsCompleted)
	require.NotNil(t, got.CompletedBy)
	assert.Equal(t, s.workerID, *got.CompletedBy)
	assert.Equal(t, 100, p.Percent)
}

func TestRemoveOnlyBeforeAssignment(t *testing.T) {
	s := newSeed(t, models.StatusOpen)
	ctx := context.Background()
	tk, err := s.tracker.Add(ctx, s.posterID, s.job.ID, "disposable", "", 0)
	require.NoError(t, err)

	require.NoError(t, s.tracker.Remove(ctx, s.posterID, tk.ID))

	tk2, err := s.tracker.Add(ctx, s.posterID, s.job.ID, "sticky", "", 0)
	require.NoError(t, err)
	s.job.Status = models.StatusAssigned
	s.job.WorkerID = &s.workerID
	require.NoError(t, s.st.UpdateJob(ctx, s.job))

	err = s.tracker.Remove(ctx, s.posterID, tk2.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))
}
