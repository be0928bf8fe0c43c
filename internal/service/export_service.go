package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sigce-api/internal/dto"
	"github.com/noah-isme/sigce-api/internal/models"
	appErrors "github.com/noah-isme/sigce-api/pkg/errors"
	"github.com/noah-isme/sigce-api/pkg/export"
)

const (
	exportPageSize = 100
	exportMaxRows  = 10000
)

type certificateLister interface {
	List(ctx context.Context, filter models.CertificateFilter) ([]models.Certificate, int, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

var registryHeaders = []string{"Folio", "Matrícula", "Estudiante", "Tipo", "Programa", "Emisión", "Vencimiento", "Estado"}

// ExportService renders the certificate registry as CSV or PDF.
type ExportService struct {
	certs     certificateLister
	csv       csvRenderer
	pdf       pdfRenderer
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewExportService constructs an ExportService.
func NewExportService(certs certificateLister, csv csvRenderer, pdf pdfRenderer, validate *validator.Validate, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{certs: certs, csv: csv, pdf: pdf, validator: validate, logger: logger, now: time.Now}
}

// CertificateRegistry renders every certificate matching req.
func (s *ExportService) CertificateRegistry(ctx context.Context, req dto.CertificateReportRequest) (*dto.RenderedReport, error) {
	if req.Format == "" {
		req.Format = dto.ReportFormatCSV
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid report filter")
	}

	dataset, err := s.buildDataset(ctx, req)
	if err != nil {
		return nil, err
	}

	var (
		payload     []byte
		contentType string
	)
	switch req.Format {
	case dto.ReportFormatCSV:
		payload, err = s.csv.Render(dataset)
		contentType = "text/csv; charset=utf-8"
	case dto.ReportFormatPDF:
		payload, err = s.pdf.Render(dataset, reportTitle(req))
		contentType = pdfContentType
	default:
		err = fmt.Errorf("unsupported format %s", req.Format)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}

	s.logger.Info("certificate registry exported", zap.String("format", string(req.Format)), zap.Int("rows", len(dataset.Rows)))
	return &dto.RenderedReport{
		Filename:    s.buildFilename(req),
		ContentType: contentType,
		Content:     payload,
	}, nil
}

func (s *ExportService) buildDataset(ctx context.Context, req dto.CertificateReportRequest) (export.Dataset, error) {
	filter := models.CertificateFilter{
		Type:     req.Type,
		Status:   req.Status,
		Program:  req.Program,
		Year:     req.Year,
		PageSize: exportPageSize,
	}
	dataset := export.Dataset{Headers: registryHeaders, Rows: make([]map[string]string, 0)}
	for page := 1; ; page++ {
		filter.Page = page
		certs, total, err := s.certs.List(ctx, filter)
		if err != nil {
			return export.Dataset{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificates")
		}
		for i := range certs {
			dataset.Rows = append(dataset.Rows, registryRow(&certs[i]))
		}
		if len(certs) < exportPageSize || len(dataset.Rows) >= total {
			break
		}
		if len(dataset.Rows) >= exportMaxRows {
			s.logger.Warn("certificate registry export truncated", zap.Int("rows", len(dataset.Rows)), zap.Int("total", total))
			break
		}
	}
	return dataset, nil
}

func registryRow(cert *models.Certificate) map[string]string {
	expiration := ""
	if cert.ExpirationDate != nil {
		expiration = cert.ExpirationDate.Format("2006-01-02")
	}
	return map[string]string{
		"Folio":       cert.Folio,
		"Matrícula":   cert.StudentID,
		"Estudiante":  cert.StudentName,
		"Tipo":        string(cert.Type),
		"Programa":    cert.AcademicProgram,
		"Emisión":     cert.IssueDate.Format("2006-01-02"),
		"Vencimiento": expiration,
		"Estado":      string(cert.Status),
	}
}

func reportTitle(req dto.CertificateReportRequest) string {
	title := "Registro de certificados"
	if req.Year > 0 {
		title = fmt.Sprintf("%s %d", title, req.Year)
	}
	return title
}

func (s *ExportService) buildFilename(req dto.CertificateReportRequest) string {
	parts := []string{"certificados"}
	if req.Year > 0 {
		parts = append(parts, fmt.Sprintf("%d", req.Year))
	}
	if req.Type != "" {
		parts = append(parts, strings.ToLower(string(req.Type)))
	}
	if req.Status != "" {
		parts = append(parts, string(req.Status))
	}
	parts = append(parts, s.now().UTC().Format("20060102_150405"))
	return sanitizeFilename(strings.Join(parts, "_")) + "." + string(req.Format)
}

func sanitizeFilename(raw string) string {
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}
