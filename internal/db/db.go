package db

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gigvault/gigvault/internal/config"
)

// Connect opens the Postgres pool and verifies connectivity.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MinIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	log.Println("Connected to Postgres successfully")
	return pool, nil
}

// EnsureSchema creates or patches every table the engine uses. Statements
// are idempotent so startup is safe against an already-provisioned database.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password TEXT NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('poster', 'worker', 'admin')),
			bio TEXT NOT NULL DEFAULT '',
			skills TEXT[] NOT NULL DEFAULT '{}',
			payout_account TEXT NOT NULL DEFAULT '',
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS jobs (
			id UUID PRIMARY KEY,
			poster_id UUID NOT NULL REFERENCES users(id),
			worker_id UUID NULL REFERENCES users(id),
			title TEXT NOT NULL,
			description TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			required_skills TEXT[] NOT NULL DEFAULT '{}',
			amount_cents BIGINT NOT NULL CHECK (amount_cents > 0),
			payment_type TEXT NOT NULL CHECK (payment_type IN ('fixed', 'hourly')),
			status TEXT NOT NULL CHECK (status IN (
				'draft', 'pending_payment', 'open', 'assigned', 'in_progress',
				'pending_payout', 'completed', 'cancel_pending', 'canceled', 'disputed'
			)),
			version BIGINT NOT NULL DEFAULT 0,
			equipment_provided BOOLEAN NOT NULL DEFAULT FALSE,
			completed_override BOOLEAN NOT NULL DEFAULT FALSE,
			cancel_reason TEXT NOT NULL DEFAULT '',
			date_posted TIMESTAMPTZ NOT NULL,
			date_needed TIMESTAMPTZ NULL,
			date_completed TIMESTAMPTZ NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_status ON jobs(status)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_poster ON jobs(poster_id)`,
		`CREATE INDEX IF NOT EXISTS idx_jobs_worker ON jobs(worker_id)`,

		`CREATE TABLE IF NOT EXISTS tasks (
			id UUID PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
			description TEXT NOT NULL,
			location TEXT NOT NULL DEFAULT '',
			bonus_cents BIGINT NOT NULL DEFAULT 0 CHECK (bonus_cents >= 0),
			is_completed BOOLEAN NOT NULL DEFAULT FALSE,
			completed_by UUID NULL REFERENCES users(id),
			completed_at TIMESTAMPTZ NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_job ON tasks(job_id)`,

		`CREATE TABLE IF NOT EXISTS applications (
			id UUID PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES jobs(id) ON DELETE CASCADE,
			worker_id UUID NOT NULL REFERENCES users(id),
			message TEXT NOT NULL DEFAULT '',
			proposed_rate_cents BIGINT NOT NULL DEFAULT 0,
			expected_duration TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL CHECK (status IN ('pending', 'accepted', 'rejected')),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_applications_live
			ON applications(job_id, worker_id) WHERE status <> 'rejected'`,

		`CREATE TABLE IF NOT EXISTS escrow_records (
			job_id UUID PRIMARY KEY REFERENCES jobs(id),
			hold_id TEXT NOT NULL DEFAULT '',
			transfer_id TEXT NOT NULL DEFAULT '',
			authorized_cents BIGINT NOT NULL,
			fee_cents BIGINT NOT NULL,
			net_payable_cents BIGINT NOT NULL,
			refunded_cents BIGINT NOT NULL DEFAULT 0,
			attempt_epoch BIGINT NOT NULL DEFAULT 0,
			authorized_at TIMESTAMPTZ NULL,
			captured_at TIMESTAMPTZ NULL,
			transferred_at TIMESTAMPTZ NULL,
			refunded_at TIMESTAMPTZ NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS ledger_events (
			id UUID PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES jobs(id),
			kind TEXT NOT NULL,
			amount_cents BIGINT NOT NULL,
			reference TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_ledger_events_job ON ledger_events(job_id, created_at)`,

		`CREATE TABLE IF NOT EXISTS payment_methods (
			id TEXT PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			brand TEXT NOT NULL DEFAULT '',
			last4 TEXT NOT NULL DEFAULT '',
			expiry_month INTEGER NOT NULL DEFAULT 0,
			expiry_year INTEGER NOT NULL DEFAULT 0,
			is_default BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_payment_methods_user ON payment_methods(user_id)`,

		`CREATE TABLE IF NOT EXISTS webhook_events (
			event_id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			received_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS disputes (
			id UUID PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES jobs(id),
			reported_by UUID NOT NULL REFERENCES users(id),
			type TEXT NOT NULL CHECK (type IN (
				'payment_not_received', 'payment_incorrect', 'work_not_completed',
				'work_quality', 'other'
			)),
			description TEXT NOT NULL,
			expected_cents BIGINT NOT NULL DEFAULT 0,
			evidence TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL CHECK (status IN ('open', 'under_review', 'resolved')),
			resolution TEXT NOT NULL DEFAULT '',
			resolution_note TEXT NOT NULL DEFAULT '',
			resolved_by UUID NULL REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			resolved_at TIMESTAMPTZ NULL
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_disputes_open
			ON disputes(job_id) WHERE status <> 'resolved'`,

		`CREATE TABLE IF NOT EXISTS reviews (
			id UUID PRIMARY KEY,
			job_id UUID NOT NULL REFERENCES jobs(id),
			reviewer_id UUID NOT NULL REFERENCES users(id),
			reviewee_id UUID NOT NULL REFERENCES users(id),
			rating INTEGER NOT NULL CHECK (rating BETWEEN 1 AND 5),
			comment TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (job_id, reviewer_id)
		)`,

		`CREATE TABLE IF NOT EXISTS notifications (
			id UUID PRIMARY KEY,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			body TEXT NOT NULL DEFAULT '',
			reference TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			read_at TIMESTAMPTZ NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_user_created ON notifications(user_id, created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	log.Println("Database schema ensured")
	return nil
}
