package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sigce-api/internal/dto"
	"github.com/noah-isme/sigce-api/internal/models"
	appErrors "github.com/noah-isme/sigce-api/pkg/errors"
)

func TestStudentServiceEnsureCreatesOnce(t *testing.T) {
	repo := newMemStudentRepo()
	svc := NewStudentService(repo, nil, nil)

	profile := StudentProfile{ID: "2026-0042", FullName: "Ana Pérez", Program: "Diplomado en Datos"}
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Ensure(context.Background(), profile)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, repo.students, 1)
	assert.Equal(t, "Ana Pérez", repo.students["2026-0042"].FirstName)
}

func TestStudentServiceEnsurePatchesMissingFields(t *testing.T) {
	repo := newMemStudentRepo()
	repo.students["s-1"] = models.Student{ID: "s-1", FirstName: "Luis", Email: "luis@example.com"}
	svc := NewStudentService(repo, nil, nil)

	student, err := svc.Ensure(context.Background(), StudentProfile{ID: "s-1", Email: "other@example.com", NationalID: "001-1234567-8"})
	require.NoError(t, err)
	assert.Equal(t, "luis@example.com", student.Email)
	assert.Equal(t, "001-1234567-8", student.NationalID)
	require.Len(t, repo.patches, 1)
	assert.Empty(t, repo.patches[0].Email)

	_, err = svc.Ensure(context.Background(), StudentProfile{ID: "s-1", NationalID: "001-1234567-8"})
	require.NoError(t, err)
	assert.Len(t, repo.patches, 1)
}

func TestStudentServiceEnsureRequiresID(t *testing.T) {
	svc := NewStudentService(newMemStudentRepo(), nil, nil)
	_, err := svc.Ensure(context.Background(), StudentProfile{ID: "  "})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestStudentServiceCreateAndGet(t *testing.T) {
	repo := newMemStudentRepo()
	svc := NewStudentService(repo, nil, nil)

	created, err := svc.Create(context.Background(), dto.CreateStudentRequest{ID: " s-9 ", FirstName: "María", LastName: "Gómez"})
	require.NoError(t, err)
	assert.Equal(t, "s-9", created.ID)
	assert.Equal(t, "María Gómez", created.FullName())

	_, err = svc.Create(context.Background(), dto.CreateStudentRequest{ID: "s-9", FirstName: "Otra"})
	assert.True(t, errors.Is(err, appErrors.ErrConflict))

	_, err = svc.Create(context.Background(), dto.CreateStudentRequest{ID: "s-10", FirstName: "X", Email: "not-an-email"})
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	got, err := svc.Get(context.Background(), "s-9")
	require.NoError(t, err)
	assert.Equal(t, "María", got.FirstName)

	_, err = svc.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	students, pagination, err := svc.List(context.Background(), models.StudentFilter{PageSize: 500})
	require.NoError(t, err)
	assert.Len(t, students, 1)
	assert.Equal(t, 20, pagination.PageSize)
	assert.Equal(t, 1, pagination.Page)
}
