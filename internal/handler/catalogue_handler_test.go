package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sigce-api/internal/dto"
	"github.com/noah-isme/sigce-api/internal/models"
	appErrors "github.com/noah-isme/sigce-api/pkg/errors"
)

type templateStub struct {
	includeInactive bool
	created         dto.TemplateRequest
	deleted         string
}

func (s *templateStub) List(ctx context.Context, includeInactive bool) ([]models.Template, error) {
	s.includeInactive = includeInactive
	return []models.Template{}, nil
}

func (s *templateStub) Get(ctx context.Context, id string) (*models.Template, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
}

func (s *templateStub) Create(ctx context.Context, req dto.TemplateRequest) (*models.Template, error) {
	s.created = req
	return &models.Template{ID: "tpl-1", Name: req.Name, Width: req.Width, Height: req.Height, Active: true}, nil
}

func (s *templateStub) Update(ctx context.Context, id string, req dto.TemplateRequest) (*models.Template, error) {
	return &models.Template{ID: id, Name: req.Name}, nil
}

func (s *templateStub) Delete(ctx context.Context, id string) error {
	s.deleted = id
	return nil
}

func TestTemplateHandlerEndpoints(t *testing.T) {
	stub := &templateStub{}
	h := NewTemplateHandler(stub)

	c, w := newTestContext(http.MethodGet, "/templates?includeInactive=true", nil)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, stub.includeInactive)

	c, w = newTestContext(http.MethodPost, "/templates", []byte(`{"name":"Diploma","width":297,"height":210,"elements":[]}`))
	h.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Diploma", stub.created.Name)

	c, w = newTestContext(http.MethodPost, "/templates", []byte(`[]`))
	h.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newTestContext(http.MethodGet, "/templates/tpl-404", nil)
	c.Params = gin.Params{{Key: "id", Value: "tpl-404"}}
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, w.Code)

	c, w = newTestContext(http.MethodDelete, "/templates/tpl-1", nil)
	c.Params = gin.Params{{Key: "id", Value: "tpl-1"}}
	h.Delete(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "tpl-1", stub.deleted)
}

type studentStub struct {
	filter models.StudentFilter
}

func (s *studentStub) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	s.filter = filter
	return []models.Student{{ID: "2026-0001", FirstName: "Ana"}}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: 1}, nil
}

func (s *studentStub) Get(ctx context.Context, id string) (*models.Student, error) {
	return &models.Student{ID: id, FirstName: "Ana"}, nil
}

func (s *studentStub) Create(ctx context.Context, req dto.CreateStudentRequest) (*models.Student, error) {
	return nil, appErrors.Clone(appErrors.ErrConflict, "student already exists")
}

func TestStudentHandlerEndpoints(t *testing.T) {
	stub := &studentStub{}
	h := NewStudentHandler(stub)

	c, w := newTestContext(http.MethodGet, "/students?search=%20ana%20&page=3&limit=5", nil)
	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.StudentFilter{Search: "ana", Page: 3, PageSize: 5}, stub.filter)
	assert.Contains(t, w.Body.String(), `"total_count":1`)

	c, w = newTestContext(http.MethodPost, "/students", []byte(`{"id":"2026-0001","first_name":"Ana"}`))
	h.Create(c)
	assert.Equal(t, http.StatusConflict, w.Code)
}

type exporterStub struct {
	req dto.CertificateReportRequest
}

func (s *exporterStub) CertificateRegistry(ctx context.Context, req dto.CertificateReportRequest) (*dto.RenderedReport, error) {
	s.req = req
	return &dto.RenderedReport{Filename: "certificados.csv", ContentType: "text/csv", Content: []byte("Folio\n")}, nil
}

func TestReportHandlerCertificateRegistry(t *testing.T) {
	stub := &exporterStub{}
	h := NewReportHandler(stub)
	c, w := newTestContext(http.MethodGet, "/reports/certificates?format=CSV&type=cap&year=2026", nil)

	h.CertificateRegistry(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ReportFormatCSV, stub.req.Format)
	assert.Equal(t, models.CertificateTypeCAP, stub.req.Type)
	assert.Equal(t, 2026, stub.req.Year)
	assert.Equal(t, `attachment; filename="certificados.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Folio\n", w.Body.String())
}
