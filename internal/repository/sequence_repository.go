package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sigce-api/internal/models"
)

// SequenceRepository hands out folio sequence numbers from the folio_counters table.
type SequenceRepository struct {
	db *sqlx.DB
}

// NewSequenceRepository constructs a SequenceRepository.
func NewSequenceRepository(db *sqlx.DB) *SequenceRepository {
	return &SequenceRepository{db: db}
}

// ReserveNext atomically increments the counter for key and returns the new
// value. A missing counter is created at zero and incremented within the same
// statement; the upsert holds the row lock until commit, so concurrent callers
// on one key are serialized while other keys proceed in parallel.
func (r *SequenceRepository) ReserveNext(ctx context.Context, key models.SequenceKey) (next int, err error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return 0, fmt.Errorf("begin folio reservation: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	const query = `INSERT INTO folio_counters (prefix, year, type, current, created_at, updated_at)
VALUES ($1, $2, $3, 1, $4, $4)
ON CONFLICT (prefix, year, type) DO UPDATE SET current = folio_counters.current + 1, updated_at = EXCLUDED.updated_at
RETURNING current`
	if err = tx.GetContext(ctx, &next, query, key.Prefix, key.Year, key.Type, now); err != nil {
		return 0, fmt.Errorf("reserve folio sequence %s: %w", key, err)
	}
	if next < 1 {
		err = fmt.Errorf("reserve folio sequence %s: counter returned %d", key, next)
		return 0, err
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit folio reservation %s: %w", key, err)
	}
	return next, nil
}

// Seed raises the counter for key to at least floor without lowering it.
func (r *SequenceRepository) Seed(ctx context.Context, key models.SequenceKey, floor int) error {
	const query = `INSERT INTO folio_counters (prefix, year, type, current, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $5)
ON CONFLICT (prefix, year, type) DO UPDATE SET current = GREATEST(folio_counters.current, EXCLUDED.current), updated_at = EXCLUDED.updated_at`
	if _, err := r.db.ExecContext(ctx, query, key.Prefix, key.Year, key.Type, floor, time.Now().UTC()); err != nil {
		return fmt.Errorf("seed folio sequence %s: %w", key, err)
	}
	return nil
}
