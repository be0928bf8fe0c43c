package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sigce-api/internal/models"
)

const certificateColumns = `id, folio, student_id, student_name, type, academic_program, issue_date, expiration_date, status,
        verification_url, document_path, template_id, metadata, history, created_at, updated_at`

// CertificateRepository manages persistence for certificate records.
type CertificateRepository struct {
	db *sqlx.DB
}

// NewCertificateRepository constructs a CertificateRepository.
func NewCertificateRepository(db *sqlx.DB) *CertificateRepository {
	return &CertificateRepository{db: db}
}

// Create inserts a new certificate. A folio collision returns ErrDuplicate.
func (r *CertificateRepository) Create(ctx context.Context, cert *models.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = now
	}
	cert.UpdatedAt = now
	if cert.Metadata == nil {
		cert.Metadata = models.Metadata{}
	}
	const query = `INSERT INTO certificates (id, folio, student_id, student_name, type, academic_program, issue_date, expiration_date, status,
        verification_url, document_path, template_id, metadata, history, created_at, updated_at)
        VALUES (:id, :folio, :student_id, :student_name, :type, :academic_program, :issue_date, :expiration_date, :status,
        :verification_url, :document_path, :template_id, :metadata, :history, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, cert); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("create certificate %s: %w", cert.Folio, ErrDuplicate)
		}
		return fmt.Errorf("create certificate: %w", err)
	}
	return nil
}

// FindByID fetches a certificate by internal id. A miss returns nil, nil.
func (r *CertificateRepository) FindByID(ctx context.Context, id string) (*models.Certificate, error) {
	return r.findOne(ctx, "id", id)
}

// FindByFolio fetches a certificate by its exact folio. A miss returns nil, nil.
func (r *CertificateRepository) FindByFolio(ctx context.Context, folio string) (*models.Certificate, error) {
	return r.findOne(ctx, "folio", folio)
}

func (r *CertificateRepository) findOne(ctx context.Context, column, value string) (*models.Certificate, error) {
	query := fmt.Sprintf("SELECT %s FROM certificates WHERE %s = $1 LIMIT 1", certificateColumns, column)
	var cert models.Certificate
	if err := r.db.GetContext(ctx, &cert, query, value); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find certificate by %s: %w", column, err)
	}
	return &cert, nil
}

// FindByStudent returns every certificate issued to the student, newest first.
func (r *CertificateRepository) FindByStudent(ctx context.Context, studentID string) ([]models.Certificate, error) {
	query := fmt.Sprintf("SELECT %s FROM certificates WHERE student_id = $1 ORDER BY issue_date DESC, created_at DESC", certificateColumns)
	certs := make([]models.Certificate, 0)
	if err := r.db.SelectContext(ctx, &certs, query, studentID); err != nil {
		return nil, fmt.Errorf("find certificates by student: %w", err)
	}
	return certs, nil
}

// List returns certificates matching the provided filters.
func (r *CertificateRepository) List(ctx context.Context, filter models.CertificateFilter) ([]models.Certificate, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.Type != "" {
		args = append(args, filter.Type)
		conditions = append(conditions, fmt.Sprintf("type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Program != "" {
		args = append(args, "%"+strings.ToLower(filter.Program)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(academic_program) LIKE $%d", len(args)))
	}
	if filter.Year > 0 {
		args = append(args, filter.Year)
		conditions = append(conditions, fmt.Sprintf("EXTRACT(YEAR FROM issue_date) = $%d", len(args)))
	}

	where := strings.Join(conditions, " AND ")
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM certificates WHERE %s ORDER BY created_at DESC LIMIT %d OFFSET %d", certificateColumns, where, size, offset)
	certs := make([]models.Certificate, 0)
	if err := r.db.SelectContext(ctx, &certs, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list certificates: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, fmt.Sprintf("SELECT COUNT(*) FROM certificates WHERE %s", where), args...); err != nil {
		return nil, 0, fmt.Errorf("count certificates: %w", err)
	}
	return certs, total, nil
}

// UpdateStatus moves a certificate from one status to another and appends the
// event to its history. It reports false when the certificate no longer holds
// the expected status (or does not exist).
func (r *CertificateRepository) UpdateStatus(ctx context.Context, id string, from, to models.CertificateStatus, event models.CertificateEvent) (bool, error) {
	payload, err := json.Marshal([]models.CertificateEvent{event})
	if err != nil {
		return false, fmt.Errorf("encode certificate event: %w", err)
	}
	const query = `UPDATE certificates SET status = $1, history = COALESCE(history, '[]'::jsonb) || $2::jsonb, updated_at = $3
        WHERE id = $4 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, to, string(payload), time.Now().UTC(), id, from)
	if err != nil {
		return false, fmt.Errorf("update certificate status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update certificate status rows: %w", err)
	}
	return affected == 1, nil
}

// SetDocumentPath records where the rendered document was stored.
func (r *CertificateRepository) SetDocumentPath(ctx context.Context, id, path string, event models.CertificateEvent) error {
	payload, err := json.Marshal([]models.CertificateEvent{event})
	if err != nil {
		return fmt.Errorf("encode certificate event: %w", err)
	}
	const query = `UPDATE certificates SET document_path = $1, history = COALESCE(history, '[]'::jsonb) || $2::jsonb, updated_at = $3 WHERE id = $4`
	if _, err := r.db.ExecContext(ctx, query, path, string(payload), time.Now().UTC(), id); err != nil {
		return fmt.Errorf("set certificate document path: %w", err)
	}
	return nil
}

// CountForSequence counts certificates whose folio belongs to the sequence key.
func (r *CertificateRepository) CountForSequence(ctx context.Context, key models.SequenceKey) (int, error) {
	pattern := fmt.Sprintf("%s-%d-%s-%%", escapeLike(key.Prefix), key.Year, escapeLike(string(key.Type)))
	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM certificates WHERE folio LIKE $1`, pattern); err != nil {
		return 0, fmt.Errorf("count certificates for sequence: %w", err)
	}
	return count, nil
}

const sequenceFloorsQuery = `SELECT lower(split_part(folio, '-', 1)) AS prefix,
	CAST(split_part(folio, '-', 2) AS INT) AS year,
	upper(split_part(folio, '-', 3)) AS type,
	MAX(CAST(split_part(folio, '-', 4) AS INT)) AS current
FROM certificates
WHERE folio ~ '^[A-Za-z0-9]+-[0-9]{4}-[A-Za-z]+-[0-9]{1,9}$'
GROUP BY 1, 2, 3`

// SequenceFloors returns the highest issued sequence per folio key. Folios
// that do not have folio shape are ignored.
func (r *CertificateRepository) SequenceFloors(ctx context.Context) ([]models.SequenceCounter, error) {
	floors := make([]models.SequenceCounter, 0)
	if err := r.db.SelectContext(ctx, &floors, sequenceFloorsQuery); err != nil {
		return nil, fmt.Errorf("load folio sequence floors: %w", err)
	}
	return floors, nil
}

func escapeLike(raw string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(raw)
}
