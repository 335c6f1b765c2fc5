// Package task owns the sub-task checklist attached to a job and the
// progress percentage the state machine uses to gate completion.
package task

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/models"
	"github.com/gigvault/gigvault/internal/store"
)

type Tracker struct {
	store store.Store
}

func NewTracker(s store.Store) *Tracker {
	return &Tracker{store: s}
}

// Progress is the completed percentage for a job's checklist. A job with
// no tasks is 100% by convention so task-less jobs are always
// complete-eligible.
type Progress struct {
	Total     int `json:"total"`
	Completed int `json:"completed"`
	Percent   int `json:"percent"`
}

func (t *Tracker) Progress(ctx context.Context, jobID uuid.UUID) (Progress, error) {
	tasks, err := t.store.ListTasks(ctx, jobID)
	if err != nil {
		return Progress{}, err
	}
	p := Progress{Total: len(tasks)}
	for _, tk := range tasks {
		if tk.IsCompleted {
			p.Completed++
		}
	}
	if p.Total == 0 {
		p.Percent = 100
	} else {
		p.Percent = p.Completed * 100 / p.Total
	}
	return p, nil
}

// Add attaches a task to a job. Only the poster, and only before the job
// is assigned.
func (t *Tracker) Add(ctx context.Context, posterID, jobID uuid.UUID, description, location string, bonusCents int64) (*models.Task, error) {
	if description == "" {
		return nil, apperr.Validation("task description is required")
	}
	if bonusCents < 0 {
		return nil, apperr.Validation("task bonus cannot be negative")
	}
	job, err := t.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, jobErr(err, jobID)
	}
	if job.PosterID != posterID {
		return nil, apperr.Forbidden("only the poster can add tasks")
	}
	switch job.Status {
	case models.StatusDraft, models.StatusPendingPayment, models.StatusOpen:
	default:
		return nil, apperr.Conflict("tasks can only be added before the job is assigned")
	}
	tk := &models.Task{
		ID:          uuid.New(),
		JobID:       jobID,
		Description: description,
		Location:    location,
		BonusCents:  bonusCents,
		CreatedAt:   time.Now().UTC(),
	}
	if err := t.store.CreateTask(ctx, tk); err != nil {
		return nil, err
	}
	return tk, nil
}

// Remove deletes a task. Tasks are never deleted once the job leaves open.
func (t *Tracker) Remove(ctx context.Context, posterID, taskID uuid.UUID) error {
	tk, err := t.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.NotFound("task %s not found", taskID)
		}
		return err
	}
	job, err := t.store.GetJob(ctx, tk.JobID)
	if err != nil {
		return jobErr(err, tk.JobID)
	}
	if job.PosterID != posterID {
		return apperr.Forbidden("only the poster can remove tasks")
	}
	switch job.Status {
	case models.StatusDraft, models.StatusPendingPayment, models.StatusOpen:
	default:
		return apperr.Conflict("tasks cannot be removed once the job is assigned")
	}
	return t.store.DeleteTask(ctx, taskID)
}

// Complete marks a task done. Only the assigned worker, only while the job
// is in progress. Completing an already-completed task is a no-op.
// Returns the resulting progress so callers can prompt the completion
// transition when the checklist hits 100%.
func (t *Tracker) Complete(ctx context.Context, workerID, taskID uuid.UUID) (*models.Task, Progress, error) {
	tk, err := t.store.GetTask(ctx, taskID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, Progress{}, apperr.NotFound("task %s not found", taskID)
		}
		return nil, Progress{}, err
	}
	job, err := t.store.GetJob(ctx, tk.JobID)
	if err != nil {
		return nil, Progress{}, jobErr(err, tk.JobID)
	}
	if !job.AssignedTo(workerID) {
		return nil, Progress{}, apperr.Forbidden("only the assigned worker can complete tasks")
	}
	if job.Status != models.StatusInProgress {
		return nil, Progress{}, apperr.Conflict("tasks can only be completed while the job is in progress")
	}
	if !tk.IsCompleted {
		now := time.Now().UTC()
		tk.IsCompleted = true
		tk.CompletedBy = &workerID
		tk.CompletedAt = &now
		if err := t.store.UpdateTask(ctx, tk); err != nil {
			return nil, Progress{}, err
		}
	}
	progress, err := t.Progress(ctx, tk.JobID)
	if err != nil {
		return nil, Progress{}, err
	}
	return tk, progress, nil
}

// List returns a job's checklist.
func (t *Tracker) List(ctx context.Context, jobID uuid.UUID) ([]*models.Task, error) {
	return t.store.ListTasks(ctx, jobID)
}

func jobErr(err error, jobID uuid.UUID) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("job %s not found", jobID)
	}
	return err
}
