package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
)

// Schema is the PostgreSQL layout backing the certificate registry.
const Schema = `
CREATE TABLE IF NOT EXISTS students (
	id TEXT PRIMARY KEY,
	first_name TEXT NOT NULL,
	last_name TEXT NOT NULL DEFAULT '',
	email TEXT NOT NULL DEFAULT '',
	national_id TEXT NOT NULL DEFAULT '',
	program TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS certificate_templates (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	background_image_url TEXT NOT NULL DEFAULT '',
	width DOUBLE PRECISION NOT NULL,
	height DOUBLE PRECISION NOT NULL,
	elements JSONB NOT NULL DEFAULT '[]'::jsonb,
	active BOOLEAN NOT NULL DEFAULT TRUE,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS certificates (
	id TEXT PRIMARY KEY,
	folio TEXT NOT NULL UNIQUE,
	student_id TEXT NOT NULL REFERENCES students(id),
	student_name TEXT NOT NULL,
	type TEXT NOT NULL,
	academic_program TEXT NOT NULL,
	issue_date TIMESTAMPTZ NOT NULL,
	expiration_date TIMESTAMPTZ,
	status TEXT NOT NULL,
	verification_url TEXT NOT NULL,
	document_path TEXT,
	template_id TEXT,
	metadata JSONB NOT NULL DEFAULT '{}'::jsonb,
	history JSONB NOT NULL DEFAULT '[]'::jsonb,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS certificates_student_idx ON certificates (student_id);
CREATE INDEX IF NOT EXISTS certificates_issue_idx ON certificates (type, issue_date DESC);
CREATE TABLE IF NOT EXISTS folio_counters (
	prefix TEXT NOT NULL,
	year INTEGER NOT NULL,
	type TEXT NOT NULL,
	current INTEGER NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (prefix, year, type)
);
CREATE TABLE IF NOT EXISTS program_stats (
	key TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	type TEXT,
	certificate_count INTEGER NOT NULL DEFAULT 0,
	last_issued TIMESTAMPTZ,
	updated_at TIMESTAMPTZ NOT NULL
);
`

// EnsureSchema creates missing tables and indexes. Existing objects are left untouched.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
