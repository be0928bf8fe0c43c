package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sigce-api/internal/models"
)

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

var certificateRowColumns = []string{"id", "folio", "student_id", "student_name", "type", "academic_program", "issue_date", "expiration_date", "status",
	"verification_url", "document_path", "template_id", "metadata", "history", "created_at", "updated_at"}

func certificateRow(rows *sqlmock.Rows, id, folio string) *sqlmock.Rows {
	now := time.Now()
	return rows.AddRow(id, folio, "2026-0042", "Ana Pérez", "CAP", "Diplomado en Datos", now, nil, "active",
		"https://sigce.example.edu/verify/"+folio, nil, nil, []byte(`{"hours":40}`), []byte(`[{"action":"issued","to_status":"active","at":"2026-03-15T10:00:00Z"}]`), now, now)
}

func TestCertificateRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectExec("INSERT INTO certificates").WillReturnResult(sqlmock.NewResult(1, 1))

	cert := &models.Certificate{Folio: "sigce-2026-CAP-0001", Type: models.CertificateTypeCAP, Status: models.CertificateStatusActive}
	require.NoError(t, repo.Create(context.Background(), cert))
	assert.NotEmpty(t, cert.ID)
	assert.NotNil(t, cert.Metadata)
	assert.False(t, cert.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryCreateDuplicateFolio(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectExec("INSERT INTO certificates").WillReturnError(&pq.Error{Code: "23505"})

	err := repo.Create(context.Background(), &models.Certificate{Folio: "sigce-2026-CAP-0001"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryFindByFolio(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectQuery(`SELECT .* FROM certificates WHERE folio = \$1 LIMIT 1`).
		WithArgs("sigce-2026-CAP-0001").
		WillReturnRows(certificateRow(sqlmock.NewRows(certificateRowColumns), "cert-1", "sigce-2026-CAP-0001"))
	mock.ExpectQuery(`SELECT .* FROM certificates WHERE folio = \$1 LIMIT 1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(certificateRowColumns))

	cert, err := repo.FindByFolio(context.Background(), "sigce-2026-CAP-0001")
	require.NoError(t, err)
	require.NotNil(t, cert)
	assert.Equal(t, models.CertificateTypeCAP, cert.Type)
	assert.Nil(t, cert.ExpirationDate)
	hours, ok := cert.Metadata.String("hours")
	assert.True(t, ok)
	assert.Equal(t, "40", hours)
	require.Len(t, cert.History, 1)
	assert.Equal(t, models.CertificateActionIssued, cert.History[0].Action)

	missing, err := repo.FindByFolio(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, missing)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryList(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM certificates WHERE 1=1 AND type = $1 AND EXTRACT(YEAR FROM issue_date) = $2 ORDER BY created_at DESC LIMIT 20 OFFSET 20")).
		WithArgs("CAP", 2026).
		WillReturnRows(certificateRow(sqlmock.NewRows(certificateRowColumns), "cert-21", "sigce-2026-CAP-0021"))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM certificates WHERE 1=1 AND type = $1 AND EXTRACT(YEAR FROM issue_date) = $2")).
		WithArgs("CAP", 2026).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(21))

	certs, total, err := repo.List(context.Background(), models.CertificateFilter{Type: models.CertificateTypeCAP, Year: 2026, Page: 2})
	require.NoError(t, err)
	assert.Len(t, certs, 1)
	assert.Equal(t, 21, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	event := models.CertificateEvent{Action: models.CertificateActionStatusChanged, FromStatus: models.CertificateStatusActive, ToStatus: models.CertificateStatusRevoked}
	mock.ExpectExec(regexp.QuoteMeta("UPDATE certificates SET status = $1")).
		WithArgs("revoked", sqlmock.AnyArg(), sqlmock.AnyArg(), "cert-1", "active").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE certificates SET status = $1")).
		WithArgs("revoked", sqlmock.AnyArg(), sqlmock.AnyArg(), "cert-1", "active").
		WillReturnResult(sqlmock.NewResult(0, 0))

	updated, err := repo.UpdateStatus(context.Background(), "cert-1", models.CertificateStatusActive, models.CertificateStatusRevoked, event)
	require.NoError(t, err)
	assert.True(t, updated)

	updated, err = repo.UpdateStatus(context.Background(), "cert-1", models.CertificateStatusActive, models.CertificateStatusRevoked, event)
	require.NoError(t, err)
	assert.False(t, updated)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositorySetDocumentPath(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE certificates SET document_path = $1")).
		WithArgs("2026/sigce-2026-CAP-0001.pdf", sqlmock.AnyArg(), sqlmock.AnyArg(), "cert-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.SetDocumentPath(context.Background(), "cert-1", "2026/sigce-2026-CAP-0001.pdf", models.CertificateEvent{Action: models.CertificateActionArchived})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositoryCountForSequence(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM certificates WHERE folio LIKE $1")).
		WithArgs(`my\_org-2026-CAP-%`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(7))

	count, err := repo.CountForSequence(context.Background(), models.SequenceKey{Prefix: "my_org", Year: 2026, Type: models.CertificateTypeCAP})
	require.NoError(t, err)
	assert.Equal(t, 7, count)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCertificateRepositorySequenceFloors(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewCertificateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("MAX(CAST(split_part(folio, '-', 4) AS INT)) AS current")).
		WillReturnRows(sqlmock.NewRows([]string{"prefix", "year", "type", "current"}).
			AddRow("sigce", 2026, "CAP", 118).
			AddRow("legacy", 2019, "PROFUNDO", 3))

	floors, err := repo.SequenceFloors(context.Background())
	require.NoError(t, err)
	require.Len(t, floors, 2)
	assert.Equal(t, models.SequenceCounter{Prefix: "sigce", Year: 2026, Type: models.CertificateTypeCAP, Current: 118}, floors[0])
	assert.Equal(t, 3, floors[1].Current)
	assert.NoError(t, mock.ExpectationsWereMet())
}
