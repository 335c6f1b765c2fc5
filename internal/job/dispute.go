package job

import (
	"context"

	"github.com/google/uuid"

	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/models"
)

// MarkDisputed moves a completed job sideways into disputed while a
// dispute is unresolved. Called by the dispute manager.
func (e *Engine) MarkDisputed(ctx context.Context, jobID uuid.UUID) (*models.Job, error) {
	j, err := e.get(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if j.Status != models.StatusCompleted {
		return nil, apperr.Conflict("disputes can only be opened on completed jobs, job is %s", j.Status)
	}
	if err := e.transition(ctx, j, models.StatusDisputed); err != nil {
		return nil, err
	}
	return j, nil
}

// ClearDisputed returns a disputed job to completed once its dispute is
// resolved.
func (e *Engine) ClearDisputed(ctx context.Context, jobID uuid.UUID) error {
	j, err := e.get(ctx, jobID)
	if err != nil {
		return err
	}
	if j.Status != models.StatusDisputed {
		return apperr.Conflict("job is %s, not disputed", j.Status)
	}
	return e.transition(ctx, j, models.StatusCompleted)
}
