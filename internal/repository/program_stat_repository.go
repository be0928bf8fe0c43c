package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sigce-api/internal/models"
)

// ProgramStatRepository maintains the per-program issuance aggregate.
type ProgramStatRepository struct {
	db *sqlx.DB
}

// NewProgramStatRepository constructs a ProgramStatRepository.
func NewProgramStatRepository(db *sqlx.DB) *ProgramStatRepository {
	return &ProgramStatRepository{db: db}
}

// RecordIssued bumps the counter for the certificate's program.
func (r *ProgramStatRepository) RecordIssued(ctx context.Context, cert *models.Certificate) error {
	const query = `INSERT INTO program_stats (key, name, type, certificate_count, last_issued, updated_at)
VALUES ($1, $2, $3, 1, $4, $5)
ON CONFLICT (key) DO UPDATE SET
	name = EXCLUDED.name,
	type = EXCLUDED.type,
	certificate_count = program_stats.certificate_count + 1,
	last_issued = GREATEST(program_stats.last_issued, EXCLUDED.last_issued),
	updated_at = EXCLUDED.updated_at`
	key := models.ProgramKey(cert.AcademicProgram)
	if _, err := r.db.ExecContext(ctx, query, key, cert.AcademicProgram, cert.Type, cert.IssueDate, time.Now().UTC()); err != nil {
		return fmt.Errorf("record program stat %s: %w", key, err)
	}
	return nil
}

// List returns the most issued programs first.
func (r *ProgramStatRepository) List(ctx context.Context, limit int) ([]models.ProgramStat, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const query = `SELECT key, name, type, certificate_count, last_issued, updated_at FROM program_stats
        ORDER BY certificate_count DESC, name ASC LIMIT $1`
	stats := make([]models.ProgramStat, 0)
	if err := r.db.SelectContext(ctx, &stats, query, limit); err != nil {
		return nil, fmt.Errorf("list program stats: %w", err)
	}
	return stats, nil
}
