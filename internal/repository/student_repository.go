package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sigce-api/internal/models"
)

// StudentRepository manages persistence for student records.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	base := "FROM students WHERE 1=1"
	args := []interface{}{}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		base += fmt.Sprintf(" AND (LOWER(first_name || ' ' || last_name) LIKE $%d OR LOWER(id) LIKE $%d)", len(args), len(args))
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT id, first_name, last_name, email, national_id, program, created_at, updated_at
        %s ORDER BY created_at DESC LIMIT %d OFFSET %d`, base, size, offset)
	students := make([]models.Student, 0)
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// FindByID fetches a student by identifier. A miss returns nil, nil.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	const query = `SELECT id, first_name, last_name, email, national_id, program, created_at, updated_at FROM students WHERE id = $1`
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// CreateIfAbsent inserts the student unless the identifier already exists.
// It reports whether this call created the row; concurrent callers for the
// same identifier all succeed and exactly one observes true.
func (r *StudentRepository) CreateIfAbsent(ctx context.Context, student *models.Student) (bool, error) {
	now := time.Now().UTC()
	if student.CreatedAt.IsZero() {
		student.CreatedAt = now
	}
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, first_name, last_name, email, national_id, program, created_at, updated_at)
        VALUES (:id, :first_name, :last_name, :email, :national_id, :program, :created_at, :updated_at)
        ON CONFLICT (id) DO NOTHING`
	res, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return false, fmt.Errorf("create student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("create student rows: %w", err)
	}
	return affected == 1, nil
}

// PatchMissing fills empty columns from the patch, never overwriting populated ones.
func (r *StudentRepository) PatchMissing(ctx context.Context, id string, patch models.StudentPatch) error {
	const query = `UPDATE students SET
        email = CASE WHEN email = '' THEN $2 ELSE email END,
        national_id = CASE WHEN national_id = '' THEN $3 ELSE national_id END,
        program = CASE WHEN program = '' THEN $4 ELSE program END,
        updated_at = $5
        WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, patch.Email, patch.NationalID, patch.Program, time.Now().UTC()); err != nil {
		return fmt.Errorf("patch student: %w", err)
	}
	return nil
}
