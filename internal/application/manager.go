// Package application owns worker applications to open jobs. Acceptance
// is coordinated by the job state machine, which calls back into Accept
// after winning the job's version check.
package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gigvault/gigvault/internal/alerts"
	"github.com/gigvault/gigvault/internal/apperr"
	"github.com/gigvault/gigvault/internal/models"
	"github.com/gigvault/gigvault/internal/store"
)

type Manager struct {
	store    store.Store
	notifier *alerts.Notifier
}

func NewManager(s store.Store, notifier *alerts.Notifier) *Manager {
	return &Manager{store: s, notifier: notifier}
}

// Apply submits a worker's bid on an open job. A worker gets one live
// (non-rejected) application per job.
func (m *Manager) Apply(ctx context.Context, workerID, jobID uuid.UUID, message string, proposedRate int64, expectedDuration string) (*models.Application, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("job %s not found", jobID)
		}
		return nil, err
	}
	if job.Status != models.StatusOpen {
		return nil, apperr.Validation("job is not open for applications")
	}
	if job.PosterID == workerID {
		return nil, apperr.Validation("you cannot apply to your own job")
	}
	if _, err := m.store.GetApplicationForWorker(ctx, jobID, workerID); err == nil {
		return nil, apperr.Validation("you already have an application for this job")
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	app := &models.Application{
		ID:               uuid.New(),
		JobID:            jobID,
		WorkerID:         workerID,
		Message:          message,
		ProposedRate:     proposedRate,
		ExpectedDuration: expectedDuration,
		Status:           models.ApplicationPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := m.store.CreateApplication(ctx, app); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, apperr.Validation("you already have an application for this job")
		}
		return nil, err
	}
	m.notifier.Notify(ctx, job.PosterID, alerts.NotifyApplicationNew,
		"New application", fmt.Sprintf("A worker applied to %q.", job.Title), app.ID.String())
	return app, nil
}

// Get loads an application.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	app, err := m.store.GetApplication(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("application %s not found", id)
	}
	return app, err
}

// Accept marks the application accepted and bulk-rejects its pending
// siblings. The caller (the job state machine) has already moved the job
// to assigned under the version check, so this cannot race another accept.
func (m *Manager) Accept(ctx context.Context, app *models.Application) (int, error) {
	if err := m.store.UpdateApplicationStatus(ctx, app.ID, models.ApplicationAccepted); err != nil {
		return 0, err
	}
	return m.store.RejectSiblingApplications(ctx, app.JobID, app.ID)
}

// Reject declines a pending application. Only the job's poster, any time
// before acceptance.
func (m *Manager) Reject(ctx context.Context, posterID, applicationID uuid.UUID) (*models.Application, error) {
	app, err := m.Get(ctx, applicationID)
	if err != nil {
		return nil, err
	}
	job, err := m.store.GetJob(ctx, app.JobID)
	if err != nil {
		return nil, err
	}
	if job.PosterID != posterID {
		return nil, apperr.Forbidden("only the poster can reject applications")
	}
	if app.Status != models.ApplicationPending {
		return nil, apperr.Conflict("application is already %s", app.Status)
	}
	if err := m.store.UpdateApplicationStatus(ctx, app.ID, models.ApplicationRejected); err != nil {
		return nil, err
	}
	app.Status = models.ApplicationRejected
	return app, nil
}

// List returns all applications for a job, visible to its poster.
func (m *Manager) List(ctx context.Context, posterID, jobID uuid.UUID) ([]*models.Application, error) {
	job, err := m.store.GetJob(ctx, jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, apperr.NotFound("job %s not found", jobID)
		}
		return nil, err
	}
	if job.PosterID != posterID {
		return nil, apperr.Forbidden("only the poster can list applications")
	}
	return m.store.ListApplications(ctx, jobID)
}
