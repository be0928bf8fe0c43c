package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sigce-api/internal/dto"
	"github.com/noah-isme/sigce-api/internal/models"
	appErrors "github.com/noah-isme/sigce-api/pkg/errors"
	"github.com/noah-isme/sigce-api/pkg/response"
)

type registryExporter interface {
	CertificateRegistry(ctx context.Context, req dto.CertificateReportRequest) (*dto.RenderedReport, error)
}

// ReportHandler exposes registry exports.
type ReportHandler struct {
	exports registryExporter
}

// NewReportHandler constructs handler.
func NewReportHandler(exports registryExporter) *ReportHandler {
	return &ReportHandler{exports: exports}
}

// CertificateRegistry godoc
// @Summary Export the certificate registry
// @Tags Reports
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv or pdf"
// @Param year query int false "Issue year"
// @Param type query string false "CAP or PROFUNDO"
// @Param status query string false "active, revoked or expired"
// @Param program query string false "Program name contains"
// @Success 200 {file} file
// @Router /reports/certificates [get]
func (h *ReportHandler) CertificateRegistry(c *gin.Context) {
	var req dto.CertificateReportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	req.Format = dto.ReportFormat(strings.ToLower(string(req.Format)))
	req.Type = models.CertificateType(strings.ToUpper(string(req.Type)))
	report, err := h.exports.CertificateRegistry(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, report.Filename, report.ContentType, report.Content)
}
