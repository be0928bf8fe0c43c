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

var templateRowColumns = []string{"id", "name", "background_image_url", "width", "height", "elements", "active", "created_at", "updated_at"}

func TestTemplateRepositoryCreate(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewTemplateRepository(db)

	mock.ExpectExec("INSERT INTO certificate_templates").WillReturnResult(sqlmock.NewResult(1, 1))

	tpl := &models.Template{Name: "Diplomado", Width: 297, Height: 210}
	require.NoError(t, repo.Create(context.Background(), tpl))
	assert.NotEmpty(t, tpl.ID)
	assert.True(t, tpl.Active)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateRepositoryFindByIDDecodesElements(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewTemplateRepository(db)

	elements := `[{"id":"name","type":"variable","content":"studentName","position":{"x":20,"y":80},"style":{"font_size":32}},
		{"id":"qr","type":"qr","position":{"x":250,"y":160},"style":{"width":30}}]`
	mock.ExpectQuery(regexp.QuoteMeta("FROM certificate_templates WHERE id = $1")).
		WithArgs("tpl-1").
		WillReturnRows(sqlmock.NewRows(templateRowColumns).
			AddRow("tpl-1", "Diplomado", "", 297.0, 210.0, []byte(elements), false, time.Now(), time.Now()))

	tpl, err := repo.FindByID(context.Background(), "tpl-1")
	require.NoError(t, err)
	require.NotNil(t, tpl)
	assert.False(t, tpl.Active)
	require.Len(t, tpl.Elements, 2)
	variable, ok := tpl.Elements[0].(models.VariableElement)
	require.True(t, ok)
	assert.Equal(t, "studentName", variable.Content)
	assert.Equal(t, 32.0, variable.Style.FontSize)
	assert.Equal(t, models.ElementTypeQR, tpl.Elements[1].Kind())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTemplateRepositoryListActiveOnly(t *testing.T) {
	db, mock, cleanup := newMockDB(t)
	defer cleanup()
	repo := NewTemplateRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM certificate_templates WHERE active = TRUE ORDER BY updated_at DESC")).
		WillReturnRows(sqlmock.NewRows(templateRowColumns).
			AddRow("tpl-1", "Diplomado", "", 297.0, 210.0, []byte(`[]`), true, time.Now(), time.Now()))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE certificate_templates SET active = FALSE")).
		WithArgs("tpl-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	templates, err := repo.List(context.Background(), models.TemplateFilter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, templates, 1)
	require.NoError(t, repo.Deactivate(context.Background(), "tpl-1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}
