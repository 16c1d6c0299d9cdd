package db

import (
	"context"
	"log"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Migrate applies the schema idempotently at startup.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	log.Printf("running database migrations")
	for _, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role TEXT NOT NULL CHECK (role IN ('student', 'teacher')),
		standard TEXT NOT NULL DEFAULT '',
		uid TEXT NOT NULL,
		is_verified BOOLEAN NOT NULL DEFAULT false,
		transport_enabled BOOLEAN NOT NULL DEFAULT false,
		pickup_point TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS batches (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL,
		teacher_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		joining_code TEXT NOT NULL,
		standard TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (teacher_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS batch_students (
		batch_id UUID NOT NULL REFERENCES batches (id) ON DELETE CASCADE,
		student_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		added_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (batch_id, student_id)
	)`,
	`CREATE TABLE IF NOT EXISTS assignments (
		id UUID PRIMARY KEY,
		file_urls TEXT[] NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS assignment_batches (
		assignment_id UUID NOT NULL REFERENCES assignments (id) ON DELETE CASCADE,
		batch_id UUID NOT NULL REFERENCES batches (id) ON DELETE CASCADE,
		PRIMARY KEY (assignment_id, batch_id)
	)`,
	// The (student_id, period) constraint is what makes fee generation safe to
	// re-run: concurrent runs race to the insert and the loser no-ops.
	`CREATE TABLE IF NOT EXISTS fee_entries (
		id UUID PRIMARY KEY,
		student_id UUID NOT NULL REFERENCES users (id) ON DELETE CASCADE,
		amount BIGINT NOT NULL,
		period TEXT NOT NULL,
		paid BOOLEAN NOT NULL DEFAULT false,
		mode TEXT CHECK (mode IN ('online', 'offline')),
		order_id TEXT,
		payment_id TEXT,
		paid_at TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (student_id, period)
	)`,
	`CREATE TABLE IF NOT EXISTS events (
		id UUID PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		date TEXT NOT NULL,
		image_url TEXT NOT NULL DEFAULT '',
		is_public BOOLEAN NOT NULL DEFAULT false,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_role ON users (role)`,
	`CREATE INDEX IF NOT EXISTS idx_fee_entries_student ON fee_entries (student_id)`,
	`CREATE INDEX IF NOT EXISTS idx_batch_students_student ON batch_students (student_id)`,
}
