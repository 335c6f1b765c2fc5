package review_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/models"
	"github.com/gigvault/gigvault/internal/review"
	"github.com/gigvault/gigvault/internal/store"
)

func seedCompletedJob(t *testing.T, st *store.Memory) (*models.Job, uuid.UUID, uuid.UUID) {
	t.Helper()
	posterID := uuid.New()
	workerID := uuid.New()
	now := time.Now().UTC()
	j := &models.Job{
		ID:            uuid.New(),
		PosterID:      posterID,
		WorkerID:      &workerID,
		Title:         "Hang pictures",
		Description:   "Five frames",
		AmountCents:   2000,
		PaymentType:   models.PaymentTypeFixed,
		Status:        models.StatusCompleted,
		DatePosted:    now,
		DateCompleted: &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, st.CreateJob(context.Background(), j))
	return j, posterID, workerID
}

func TestBothPartiesReviewEachOther(t *testing.T) {
	st := store.NewMemory()
	svc := review.NewService(st)
	ctx := context.Background()
	j, posterID, workerID := seedCompletedJob(t, st)

	r1, err := svc.Create(ctx, posterID, j.ID, 5, "great work")
	require.NoError(t, err)
	assert.Equal(t, workerID, r1.RevieweeID)

	r2, err := svc.Create(ctx, workerID, j.ID, 4, "clear instructions")
	require.NoError(t, err)
	assert.Equal(t, posterID, r2.RevieweeID)

	// One review per reviewer per job.
	_, err = svc.Create(ctx, posterID, j.ID, 1, "changed my mind")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))

	sum, err := svc.Summary(ctx, workerID)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.TotalReviews)
	assert.Equal(t, 5.0, sum.AverageRating)
}

func TestReviewRules(t *testing.T) {
	st := store.NewMemory()
	svc := review.NewService(st)
	ctx := context.Background()
	j, posterID, _ := seedCompletedJob(t, st)

	_, err := svc.Create(ctx, posterID, j.ID, 6, "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))

	_, err = svc.Create(ctx, uuid.New(), j.ID, 3, "drive-by")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindAuthorization))

	// Reviews only attach to completed jobs.
	j.Status = models.StatusInProgress
	require.NoError(t, st.UpdateJob(ctx, j))
	_, err = svc.Create(ctx, posterID, j.ID, 3, "")
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindStateConflict))
}
