// Package review lets the two parties of a completed job rate each other.
package review

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/models"
	"github.com/gigvault/gigvault/internal/store"
)

type Service struct {
	store store.Store
}

func NewService(s store.Store) *Service {
	return &Service{store: s}
}

// Create leaves a review on a completed job. The reviewer must be one of
// the job's parties and the reviewee is always the other party; one review
// per reviewer per job.
func (s *Service) Create(ctx context.Context, reviewerID, jobID uuid.UUID, rating int, comment string) (*models.Review, error) {
	if rating < 1 || rating > 5 {
		return nil, apperr.Validation("rating must be between 1 and 5")
	}
	j, err := s.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("job %s not found", jobID)
		}
		return nil, err
	}
	if j.Status != models.StatusCompleted {
		return nil, apperr.Conflict("reviews can only be left on completed jobs")
	}
	if j.WorkerID == nil {
		return nil, apperr.Conflict("job has no worker to review")
	}

	var revieweeID uuid.UUID
	switch reviewerID {
	case j.PosterID:
		revieweeID = *j.WorkerID
	case *j.WorkerID:
		revieweeID = j.PosterID
	default:
		return nil, apperr.Forbidden("only the job's parties can leave a review")
	}

	if _, err := s.store.GetReviewByJobReviewer(ctx, jobID, reviewerID); err == nil {
		return nil, apperr.Conflict("you already reviewed this job")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	r := &models.Review{
		ID:         uuid.New(),
		JobID:      jobID,
		ReviewerID: reviewerID,
		RevieweeID: revieweeID,
		Rating:     rating,
		Comment:    comment,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.store.CreateReview(ctx, r); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Conflict("you already reviewed this job")
		}
		return nil, err
	}
	return r, nil
}

// ForUser returns a user's received reviews.
func (s *Service) ForUser(ctx context.Context, userID uuid.UUID) ([]*models.Review, error) {
	return s.store.ListReviewsForUser(ctx, userID)
}

// Summary aggregates a user's received ratings.
func (s *Service) Summary(ctx context.Context, userID uuid.UUID) (*models.RatingSummary, error) {
	reviews, err := s.store.ListReviewsForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	sum := &models.RatingSummary{UserID: userID, TotalReviews: len(reviews)}
	if len(reviews) == 0 {
		return sum, nil
	}
	var total int
	for _, r := range reviews {
		total += r.Rating
	}
	sum.AverageRating = float64(total) / float64(len(reviews))
	return sum, nil
}
