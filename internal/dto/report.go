package dto

import "github.com/noah-isme/sigce-api/internal/models"

// ReportFormat enumerates registry export formats.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// CertificateReportRequest selects the certificates included in a registry export.
type CertificateReportRequest struct {
	Format  ReportFormat             `form:"format" validate:"omitempty,oneof=csv pdf"`
	Year    int                      `form:"year" validate:"omitempty,min=1900,max=9999"`
	Type    models.CertificateType   `form:"type" validate:"omitempty,oneof=CAP PROFUNDO"`
	Status  models.CertificateStatus `form:"status" validate:"omitempty,oneof=active revoked expired"`
	Program string                   `form:"program"`
}

// RenderedReport is an in-memory export ready to stream.
type RenderedReport struct {
	Filename    string
	ContentType string
	Content     []byte
}
