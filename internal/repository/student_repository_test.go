package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sigce-api/internal/models"
)

var studentRowColumns = []string{"id", "first_name", "last_name", "email", "national_id", "program", "created_at", "updated_at"}

func TestStudentRepositoryList(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	rows := sqlmock.NewRows(studentRowColumns).
		AddRow("2026-0042", "Ana", "Pérez", "ana@example.com", "", "Diplomado", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE 1=1 AND (LOWER(first_name || ' ' || last_name) LIKE $1 OR LOWER(id) LIKE $1) ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("%ana%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM students WHERE 1=1")).
		WithArgs("%ana%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	students, total, err := repo.List(context.Background(), models.StudentFilter{Search: "Ana"})
	require.NoError(t, err)
	require.Len(t, students, 1)
	assert.Equal(t, "Ana Pérez", students[0].FullName())
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryFindByIDMiss(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM students WHERE id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(studentRowColumns))

	student, err := repo.FindByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, student)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryCreateIfAbsent(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(`INSERT INTO students .* ON CONFLICT \(id\) DO NOTHING`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO students .* ON CONFLICT \(id\) DO NOTHING`).WillReturnResult(sqlmock.NewResult(0, 0))

	student := &models.Student{ID: "2026-0042", FirstName: "Ana"}
	created, err := repo.CreateIfAbsent(context.Background(), student)
	require.NoError(t, err)
	assert.True(t, created)
	assert.False(t, student.CreatedAt.IsZero())

	created, err = repo.CreateIfAbsent(context.Background(), &models.Student{ID: "2026-0042", FirstName: "Ana"})
	require.NoError(t, err)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStudentRepositoryPatchMissing(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewStudentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE students SET")).
		WithArgs("2026-0042", "", "001-1234567-8", "Diplomado", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.PatchMissing(context.Background(), "2026-0042", models.StudentPatch{NationalID: "001-1234567-8", Program: "Diplomado"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
