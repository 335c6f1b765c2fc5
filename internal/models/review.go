package models

import (
	"time"

	"github.com/google/uuid"
)

// Review is a 1..5 rating left after a job completes. One per
// (job, reviewer) pair; poster reviews worker and vice versa.
type Review struct {
	ID         uuid.UUID `json:"id"`
	JobID      uuid.UUID `json:"job_id"`
	ReviewerID uuid.UUID `json:"reviewer_id"`
	RevieweeID uuid.UUID `json:"reviewee_id"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RatingSummary aggregates a user's received reviews.
type RatingSummary struct {
	UserID        uuid.UUID `json:"user_id"`
	TotalReviews  int       `json:"total_reviews"`
	AverageRating float64   `json:"average_rating"`
}
