package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gigvault/gigvault/internal/models"
)

// Postgres implements Store on a pgx pool. Jobs and escrow records are
// updated through single-row, version-checked statements; no transaction
// ever spans more than one job.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ----- users -----

func (p *Postgres) CreateUser(ctx context.Context, u *models.User) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO users (id, name, email, password, role, bio, skills, payout_account, is_active, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.Bio, u.Skills, u.PayoutAccount, u.IsActive, u.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (p *Postgres) scanUser(row pgx.Row) (*models.User, error) {
	var u models.User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.Bio, &u.Skills,
		&u.PayoutAccount, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

const userColumns = `id, name, email, password, role, bio, skills, payout_account, is_active, created_at`

func (p *Postgres) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return p.scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return p.scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email))
}

func (p *Postgres) UpdateUser(ctx context.Context, u *models.User) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE users SET name = $2, bio = $3, skills = $4, payout_account = $5 WHERE id = $1`,
		u.ID, u.Name, u.Bio, u.Skills, u.PayoutAccount)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) SetUserActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := p.pool.Exec(ctx, `UPDATE users SET is_active = $2 WHERE id = $1`, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ListUsers(ctx context.Context) ([]*models.User, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.User
	for rows.Next() {
		u, err := p.scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ----- jobs -----

const jobColumns = `id, poster_id, worker_id, title, description, location, required_skills,
	amount_cents, payment_type, status, version, equipment_provided, completed_override,
	cancel_reason, date_posted, date_needed, date_completed, created_at, updated_at`

func scanJob(row pgx.Row) (*models.Job, error) {
	var j models.Job
	var status string
	err := row.Scan(&j.ID, &j.PosterID, &j.WorkerID, &j.Title, &j.Description, &j.Location,
		&j.RequiredSkills, &j.AmountCents, &j.PaymentType, &status, &j.Version,
		&j.EquipmentProvided, &j.CompletedOverride, &j.CancelReason,
		&j.DatePosted, &j.DateNeeded, &j.DateCompleted, &j.CreatedAt, &j.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	j.Status = models.JobStatus(status)
	return &j, nil
}

func (p *Postgres) CreateJob(ctx context.Context, j *models.Job) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO jobs (id, poster_id, worker_id, title, description, location, required_skills,
		 amount_cents, payment_type, status, version, equipment_provided, completed_override,
		 cancel_reason, date_posted, date_needed, date_completed, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)`,
		j.ID, j.PosterID, j.WorkerID, j.Title, j.Description, j.Location, j.RequiredSkills,
		j.AmountCents, j.PaymentType, string(j.Status), j.Version, j.EquipmentProvided,
		j.CompletedOverride, j.CancelReason, j.DatePosted, j.DateNeeded, j.DateCompleted,
		j.CreatedAt, j.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (p *Postgres) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return scanJob(p.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id))
}

func (p *Postgres) UpdateJob(ctx context.Context, j *models.Job) error {
	// amount_cents is absent on purpose: the price is fixed at creation
	// and a stale struct must not rewrite it.
	now := time.Now().UTC()
	tag, err := p.pool.Exec(ctx,
		`UPDATE jobs SET worker_id = $2, title = $3, description = $4, location = $5,
		 required_skills = $6, payment_type = $7, status = $8,
		 equipment_provided = $9, completed_override = $10, cancel_reason = $11,
		 date_needed = $12, date_completed = $13, version = version + 1, updated_at = $14
		 WHERE id = $1 AND version = $15`,
		j.ID, j.WorkerID, j.Title, j.Description, j.Location, j.RequiredSkills,
		j.PaymentType, string(j.Status), j.EquipmentProvided,
		j.CompletedOverride, j.CancelReason, j.DateNeeded, j.DateCompleted, now, j.Version)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		// Distinguish a stale version from a missing row.
		var exists bool
		if err := p.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, j.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrNotFound
		}
		return ErrVersionConflict
	}
	j.Version++
	j.UpdatedAt = now
	return nil
}

func (p *Postgres) listJobs(ctx context.Context, query string, args ...any) ([]*models.Job, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

func (p *Postgres) ListJobsByStatus(ctx context.Context, status models.JobStatus) ([]*models.Job, error) {
	return p.listJobs(ctx, `SELECT `+jobColumns+` FROM jobs WHERE status = $1 ORDER BY created_at`, string(status))
}

func (p *Postgres) ListJobsByUser(ctx context.Context, userID uuid.UUID) ([]*models.Job, error) {
	return p.listJobs(ctx, `SELECT `+jobColumns+` FROM jobs WHERE poster_id = $1 OR worker_id = $1 ORDER BY created_at`, userID)
}

func (p *Postgres) ListJobs(ctx context.Context) ([]*models.Job, error) {
	return p.listJobs(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at`)
}

// ----- tasks -----

const taskColumns = `id, job_id, description, location, bonus_cents, is_completed, completed_by, completed_at, created_at`

func scanTask(row pgx.Row) (*models.Task, error) {
	var t models.Task
	err := row.Scan(&t.ID, &t.JobID, &t.Description, &t.Location, &t.BonusCents,
		&t.IsCompleted, &t.CompletedBy, &t.CompletedAt, &t.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (p *Postgres) CreateTask(ctx context.Context, t *models.Task) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO tasks (id, job_id, description, location, bonus_cents, is_completed, completed_by, completed_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		t.ID, t.JobID, t.Description, t.Location, t.BonusCents, t.IsCompleted, t.CompletedBy, t.CompletedAt, t.CreatedAt)
	return err
}

func (p *Postgres) GetTask(ctx context.Context, id uuid.UUID) (*models.Task, error) {
	return scanTask(p.pool.QueryRow(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
}

func (p *Postgres) UpdateTask(ctx context.Context, t *models.Task) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE tasks SET description = $2, location = $3, bonus_cents = $4,
		 is_completed = $5, completed_by = $6, completed_at = $7 WHERE id = $1`,
		t.ID, t.Description, t.Location, t.BonusCents, t.IsCompleted, t.CompletedBy, t.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) DeleteTask(ctx context.Context, id uuid.UUID) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ListTasks(ctx context.Context, jobID uuid.UUID) ([]*models.Task, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+taskColumns+` FROM tasks WHERE job_id = $1 ORDER BY created_at`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// ----- applications -----

const applicationColumns = `id, job_id, worker_id, message, proposed_rate_cents, expected_duration, status, created_at, updated_at`

func scanApplication(row pgx.Row) (*models.Application, error) {
	var a models.Application
	err := row.Scan(&a.ID, &a.JobID, &a.WorkerID, &a.Message, &a.ProposedRate,
		&a.ExpectedDuration, &a.Status, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (p *Postgres) CreateApplication(ctx context.Context, a *models.Application) error {
	// Partial unique index on (job_id, worker_id) WHERE status <> 'rejected'
	// backs the one-live-application rule.
	_, err := p.pool.Exec(ctx,
		`INSERT INTO applications (id, job_id, worker_id, message, proposed_rate_cents, expected_duration, status, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		a.ID, a.JobID, a.WorkerID, a.Message, a.ProposedRate, a.ExpectedDuration, a.Status, a.CreatedAt, a.UpdatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (p *Postgres) GetApplication(ctx context.Context, id uuid.UUID) (*models.Application, error) {
	return scanApplication(p.pool.QueryRow(ctx, `SELECT `+applicationColumns+` FROM applications WHERE id = $1`, id))
}

func (p *Postgres) GetApplicationForWorker(ctx context.Context, jobID, workerID uuid.UUID) (*models.Application, error) {
	return scanApplication(p.pool.QueryRow(ctx,
		`SELECT `+applicationColumns+` FROM applications
		 WHERE job_id = $1 AND worker_id = $2 AND status <> 'rejected'`, jobID, workerID))
}

func (p *Postgres) UpdateApplicationStatus(ctx context.Context, id uuid.UUID, status string) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE applications SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) RejectSiblingApplications(ctx context.Context, jobID, acceptedID uuid.UUID) (int, error) {
	tag, err := p.pool.Exec(ctx,
		`UPDATE applications SET status = 'rejected', updated_at = NOW()
		 WHERE job_id = $1 AND id <> $2 AND status = 'pending'`, jobID, acceptedID)
	if err != nil {
		return 0, err
	}
	return int(tag.RowsAffected()), nil
}

func (p *Postgres) ListApplications(ctx context.Context, jobID uuid.UUID) ([]*models.Application, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+applicationColumns+` FROM applications WHERE job_id = $1 ORDER BY created_at`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Application
	for rows.Next() {
		a, err := scanApplication(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ----- escrow -----

const escrowColumns = `job_id, hold_id, transfer_id, authorized_cents, fee_cents, net_payable_cents,
	refunded_cents, attempt_epoch, authorized_at, captured_at, transferred_at, refunded_at, created_at`

func scanEscrow(row pgx.Row) (*models.EscrowRecord, error) {
	var r models.EscrowRecord
	err := row.Scan(&r.JobID, &r.HoldID, &r.TransferID, &r.AuthorizedCents, &r.FeeCents,
		&r.NetPayableCents, &r.RefundedCents, &r.AttemptEpoch, &r.AuthorizedAt,
		&r.CapturedAt, &r.TransferredAt, &r.RefundedAt, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *Postgres) CreateEscrow(ctx context.Context, r *models.EscrowRecord) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO escrow_records (job_id, hold_id, transfer_id, authorized_cents, fee_cents,
		 net_payable_cents, refunded_cents, attempt_epoch, authorized_at, captured_at,
		 transferred_at, refunded_at, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		r.JobID, r.HoldID, r.TransferID, r.AuthorizedCents, r.FeeCents, r.NetPayableCents,
		r.RefundedCents, r.AttemptEpoch, r.AuthorizedAt, r.CapturedAt, r.TransferredAt,
		r.RefundedAt, r.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (p *Postgres) GetEscrow(ctx context.Context, jobID uuid.UUID) (*models.EscrowRecord, error) {
	return scanEscrow(p.pool.QueryRow(ctx, `SELECT `+escrowColumns+` FROM escrow_records WHERE job_id = $1`, jobID))
}

func (p *Postgres) UpdateEscrow(ctx context.Context, r *models.EscrowRecord) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE escrow_records SET hold_id = $2, transfer_id = $3, refunded_cents = $4,
		 attempt_epoch = $5, authorized_at = $6, captured_at = $7, transferred_at = $8, refunded_at = $9
		 WHERE job_id = $1`,
		r.JobID, r.HoldID, r.TransferID, r.RefundedCents, r.AttemptEpoch,
		r.AuthorizedAt, r.CapturedAt, r.TransferredAt, r.RefundedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) AppendLedgerEvent(ctx context.Context, e *models.LedgerEvent) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO ledger_events (id, job_id, kind, amount_cents, reference, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.JobID, e.Kind, e.AmountCents, e.Reference, e.CreatedAt)
	return err
}

func (p *Postgres) ListLedgerEvents(ctx context.Context, jobID uuid.UUID) ([]*models.LedgerEvent, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, job_id, kind, amount_cents, reference, created_at
		 FROM ledger_events WHERE job_id = $1 ORDER BY created_at`, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.LedgerEvent
	for rows.Next() {
		var e models.LedgerEvent
		if err := rows.Scan(&e.ID, &e.JobID, &e.Kind, &e.AmountCents, &e.Reference, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &e)
	}
	return out, rows.Err()
}

// ----- payment methods -----

func (p *Postgres) CreatePaymentMethod(ctx context.Context, m *models.PaymentMethod) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO payment_methods (id, user_id, brand, last4, expiry_month, expiry_year, is_default, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		m.ID, m.UserID, m.Brand, m.Last4, m.ExpiryMonth, m.ExpiryYear, m.IsDefault, m.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (p *Postgres) GetPaymentMethod(ctx context.Context, id string) (*models.PaymentMethod, error) {
	var m models.PaymentMethod
	err := p.pool.QueryRow(ctx,
		`SELECT id, user_id, brand, last4, expiry_month, expiry_year, is_default, created_at
		 FROM payment_methods WHERE id = $1`, id).
		Scan(&m.ID, &m.UserID, &m.Brand, &m.Last4, &m.ExpiryMonth, &m.ExpiryYear, &m.IsDefault, &m.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (p *Postgres) ListPaymentMethods(ctx context.Context, userID uuid.UUID) ([]*models.PaymentMethod, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, user_id, brand, last4, expiry_month, expiry_year, is_default, created_at
		 FROM payment_methods WHERE user_id = $1 ORDER BY created_at`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.PaymentMethod
	for rows.Next() {
		var m models.PaymentMethod
		if err := rows.Scan(&m.ID, &m.UserID, &m.Brand, &m.Last4, &m.ExpiryMonth, &m.ExpiryYear, &m.IsDefault, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (p *Postgres) SetDefaultPaymentMethod(ctx context.Context, userID uuid.UUID, id string) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx,
		`UPDATE payment_methods SET is_default = TRUE WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	if _, err := tx.Exec(ctx,
		`UPDATE payment_methods SET is_default = FALSE WHERE user_id = $1 AND id <> $2`, userID, id); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (p *Postgres) DeletePaymentMethod(ctx context.Context, id string) error {
	tag, err := p.pool.Exec(ctx, `DELETE FROM payment_methods WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ----- webhook dedup -----

func (p *Postgres) MarkWebhookEvent(ctx context.Context, eventID, kind string) (bool, error) {
	tag, err := p.pool.Exec(ctx,
		`INSERT INTO webhook_events (event_id, kind, received_at) VALUES ($1, $2, NOW())
		 ON CONFLICT (event_id) DO NOTHING`, eventID, kind)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (p *Postgres) UnmarkWebhookEvent(ctx context.Context, eventID string) error {
	_, err := p.pool.Exec(ctx, `DELETE FROM webhook_events WHERE event_id = $1`, eventID)
	return err
}

// ----- disputes -----

const disputeColumns = `id, job_id, reported_by, type, description, expected_cents, evidence,
	status, resolution, resolution_note, resolved_by, created_at, resolved_at`

func scanDispute(row pgx.Row) (*models.Dispute, error) {
	var d models.Dispute
	err := row.Scan(&d.ID, &d.JobID, &d.ReportedBy, &d.Type, &d.Description, &d.ExpectedCents,
		&d.Evidence, &d.Status, &d.Resolution, &d.ResolutionNote, &d.ResolvedBy,
		&d.CreatedAt, &d.ResolvedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (p *Postgres) CreateDispute(ctx context.Context, d *models.Dispute) error {
	// Partial unique index on job_id WHERE status <> 'resolved' enforces
	// one open dispute per job.
	_, err := p.pool.Exec(ctx,
		`INSERT INTO disputes (id, job_id, reported_by, type, description, expected_cents,
		 evidence, status, resolution, resolution_note, resolved_by, created_at, resolved_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		d.ID, d.JobID, d.ReportedBy, d.Type, d.Description, d.ExpectedCents, d.Evidence,
		d.Status, d.Resolution, d.ResolutionNote, d.ResolvedBy, d.CreatedAt, d.ResolvedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (p *Postgres) GetDispute(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return scanDispute(p.pool.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id))
}

func (p *Postgres) GetUnresolvedDisputeByJob(ctx context.Context, jobID uuid.UUID) (*models.Dispute, error) {
	return scanDispute(p.pool.QueryRow(ctx,
		`SELECT `+disputeColumns+` FROM disputes WHERE job_id = $1 AND status <> 'resolved'`, jobID))
}

func (p *Postgres) UpdateDispute(ctx context.Context, d *models.Dispute) error {
	tag, err := p.pool.Exec(ctx,
		`UPDATE disputes SET status = $2, resolution = $3, resolution_note = $4,
		 resolved_by = $5, resolved_at = $6 WHERE id = $1`,
		d.ID, d.Status, d.Resolution, d.ResolutionNote, d.ResolvedBy, d.ResolvedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (p *Postgres) ListDisputes(ctx context.Context, status string) ([]*models.Dispute, error) {
	query := `SELECT ` + disputeColumns + ` FROM disputes ORDER BY created_at`
	args := []any{}
	if status != "" {
		query = `SELECT ` + disputeColumns + ` FROM disputes WHERE status = $1 ORDER BY created_at`
		args = append(args, status)
	}
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// ----- reviews -----

func (p *Postgres) CreateReview(ctx context.Context, r *models.Review) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO reviews (id, job_id, reviewer_id, reviewee_id, rating, comment, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		r.ID, r.JobID, r.ReviewerID, r.RevieweeID, r.Rating, r.Comment, r.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	return err
}

func (p *Postgres) GetReviewByJobReviewer(ctx context.Context, jobID, reviewerID uuid.UUID) (*models.Review, error) {
	var r models.Review
	err := p.pool.QueryRow(ctx,
		`SELECT id, job_id, reviewer_id, reviewee_id, rating, comment, created_at
		 FROM reviews WHERE job_id = $1 AND reviewer_id = $2`, jobID, reviewerID).
		Scan(&r.ID, &r.JobID, &r.ReviewerID, &r.RevieweeID, &r.Rating, &r.Comment, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (p *Postgres) ListReviewsForUser(ctx context.Context, userID uuid.UUID) ([]*models.Review, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, job_id, reviewer_id, reviewee_id, rating, comment, created_at
		 FROM reviews WHERE reviewee_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Review
	for rows.Next() {
		var r models.Review
		if err := rows.Scan(&r.ID, &r.JobID, &r.ReviewerID, &r.RevieweeID, &r.Rating, &r.Comment, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, &r)
	}
	return out, rows.Err()
}

// ----- notifications -----

func (p *Postgres) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO notifications (id, user_id, type, title, body, reference, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		n.ID, n.UserID, n.Type, n.Title, n.Body, n.Reference, n.CreatedAt)
	return err
}

func (p *Postgres) ListNotifications(ctx context.Context, userID uuid.UUID) ([]*models.Notification, error) {
	rows, err := p.pool.Query(ctx,
		`SELECT id, user_id, type, title, body, reference, created_at, read_at
		 FROM notifications WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []*models.Notification
	for rows.Next() {
		var n models.Notification
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Body, &n.Reference, &n.CreatedAt, &n.ReadAt); err != nil {
			return nil, err
		}
		out = append(out, &n)
	}
	return out, rows.Err()
}
