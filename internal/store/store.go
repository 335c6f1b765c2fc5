package store

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/gigvault/gigvault/internal/models"
)

var (
	ErrNotFound        = errors.New("resource not found")
	ErrDuplicate       = errors.New("duplicate record")
	ErrVersionConflict = errors.New("version conflict")
)

// Store is the data access interface. All database operations go through
// here; the engine never touches the pool directly, which is what lets the
// lifecycle logic run against the in-memory implementation in tests.
//
// UpdateJob is the optimistic-concurrency point: it writes the job only if
// the stored version still equals job.Version, bumping the version on
// success (and on the passed struct). A stale version returns
// ErrVersionConflict and the caller must re-read and retry. The job's
// amount is fixed at creation; UpdateJob never writes it.
type Store interface {
	Ping(ctx context.Context) error

	CreateUser(ctx context.Context, u *models.User) error
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	SetUserActive(ctx context.Context, id uuid.UUID, active bool) error
	ListUsers(ctx context.Context) ([]*models.User, error)

	CreateJob(ctx context.Context, j *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error)
	UpdateJob(ctx context.Context, j *models.Job) error
	ListJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error)
	ListJobsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Job, error)
	ListJobs(ctx context.Context) ([]*models.Job, error)

	CreateTask(ctx context.Context, t *models.Task) error
	GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error)
	UpdateTask(ctx context.Context, t *models.Task) error
	DeleteTask(ctx context.Context, id uuid.UUID) error
	ListTasks(ctx context.Context, jobID uuid.UUID) ([]*models.Task, error)

	CreateApplication(ctx context.Context, a *models.Application) error
	GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error)
	GetApplicationForWorker(ctx context.Context, jobID, workerID uuid.UUID) (*models.Application, error)
	UpdateApplicationStatus(ctx context.Context, id uuid.UUID, status string) error
	RejectSiblingApplications(ctx context.Context, jobID, acceptedID uuid.UUID) (int, error)
	ListApplications(ctx context.Context, jobID uuid.UUID) ([]*models.Application, error)

	CreateEscrow(ctx context.Context, r *models.EscrowRecord) error
	GetEscrow(ctx context.Context, jobID uuid.UUID) (*models.EscrowRecord, error)
	UpdateEscrow(ctx context.Context, r *models.EscrowRecord) error
	AppendLedgerEvent(ctx context.Context, e *models.LedgerEvent) error
	ListLedgerEvents(ctx context.Context, jobID uuid.UUID) ([]*models.LedgerEvent, error)

	CreatePaymentMethod(ctx context.Context, m *models.PaymentMethod) error
	GetPaymentMethod(ctx context.Context, id string) (*models.PaymentMethod, error)
	ListPaymentMethods(ctx context.Context, userID uuid.UUID) ([]*models.PaymentMethod, error)
	SetDefaultPaymentMethod(ctx context.Context, userID uuid.UUID, id string) error
	DeletePaymentMethod(ctx context.Context, id string) error

	// MarkWebhookEvent records a processor event id and reports whether
	// this is its first sighting. Replays return false and must be no-ops.
	// UnmarkWebhookEvent forgets an event whose outcome failed to apply,
	// so the processor's redelivery is processed instead of dropped.
	MarkWebhookEvent(ctx context.Context, eventID, kind string) (bool, error)
	UnmarkWebhookEvent(ctx context.Context, eventID string) error

	CreateDispute(ctx context.Context, d *models.Dispute) error
	GetDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	GetUnresolvedDisputeByJob(ctx context.Context, jobID uuid.UUID) (*models.Dispute, error)
	UpdateDispute(ctx context.Context, d *models.Dispute) error
	ListDisputes(ctx context.Context, status string) ([]*models.Dispute, error)

	CreateReview(ctx context.Context, r *models.Review) error
	GetReviewByJobReviewer(ctx context.Context, jobID, reviewerID uuid.UUID) (*models.Review, error)
	ListReviewsForUser(ctx context.Context, userID uuid.UUID) ([]*models.Review, error)

	CreateNotification(ctx context.Context, n *models.Notification) error
	ListNotifications(ctx context.Context, userID uuid.UUID) ([]*models.Notification, error)
}
