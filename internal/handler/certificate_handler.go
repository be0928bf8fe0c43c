package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sigce-api/internal/dto"
	"github.com/noah-isme/sigce-api/internal/models"
	appErrors "github.com/noah-isme/sigce-api/pkg/errors"
	"github.com/noah-isme/sigce-api/pkg/response"
)

// ActorHeader names the operator performing a write when the body omits it.
const ActorHeader = "X-Actor"

type certificateService interface {
	Issue(ctx context.Context, req dto.IssueCertificateRequest) (*models.Certificate, error)
	Get(ctx context.Context, id string) (*models.Certificate, error)
	FindByFolio(ctx context.Context, folio string) (*models.Certificate, error)
	FindByStudent(ctx context.Context, studentID string) ([]models.Certificate, error)
	List(ctx context.Context, query dto.CertificateListQuery) ([]models.Certificate, *models.Pagination, error)
	UpdateStatus(ctx context.Context, id string, req dto.UpdateStatusRequest) (*models.Certificate, error)
	CountForSequence(ctx context.Context, year int, certType models.CertificateType, prefix string) (int, error)
	ProgramStats(ctx context.Context, limit int) ([]models.ProgramStat, error)
}

// CertificateHandler exposes certificate lifecycle endpoints.
type CertificateHandler struct {
	certs certificateService
}

// NewCertificateHandler constructs CertificateHandler.
func NewCertificateHandler(certs certificateService) *CertificateHandler {
	return &CertificateHandler{certs: certs}
}

// Issue godoc
// @Summary Issue certificate
// @Tags Certificates
// @Accept json
// @Produce json
// @Param payload body dto.IssueCertificateRequest true "Certificate payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /certificates [post]
func (h *CertificateHandler) Issue(c *gin.Context) {
	var req dto.IssueCertificateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if req.Actor == "" {
		req.Actor = c.GetHeader(ActorHeader)
	}
	cert, err := h.certs.Issue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, cert)
}

// List godoc
// @Summary List certificates
// @Tags Certificates
// @Produce json
// @Param student_id query string false "Student ID"
// @Param type query string false "CAP or PROFUNDO"
// @Param status query string false "active, revoked or expired"
// @Param program query string false "Program name contains"
// @Param year query int false "Issue year"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /certificates [get]
func (h *CertificateHandler) List(c *gin.Context) {
	var query dto.CertificateListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid query"))
		return
	}
	query.Type = models.CertificateType(strings.ToUpper(string(query.Type)))
	certs, pagination, err := h.certs.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certs, pagination)
}

// Get godoc
// @Summary Get certificate by id
// @Tags Certificates
// @Produce json
// @Param id path string true "Certificate ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /certificates/{id} [get]
func (h *CertificateHandler) Get(c *gin.Context) {
	cert, err := h.certs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cert, nil)
}

// GetByFolio godoc
// @Summary Get certificate by folio
// @Tags Certificates
// @Produce json
// @Param folio path string true "Folio"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /certificates/folio/{folio} [get]
func (h *CertificateHandler) GetByFolio(c *gin.Context) {
	cert, err := h.certs.FindByFolio(c.Request.Context(), strings.TrimSpace(c.Param("folio")))
	if err != nil {
		response.Error(c, err)
		return
	}
	if cert == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "certificate not found"))
		return
	}
	response.JSON(c, http.StatusOK, cert, nil)
}

// ByStudent godoc
// @Summary List a student's certificates
// @Tags Certificates
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/certificates [get]
func (h *CertificateHandler) ByStudent(c *gin.Context) {
	certs, err := h.certs.FindByStudent(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certs, nil)
}

// UpdateStatus godoc
// @Summary Change certificate status
// @Tags Certificates
// @Accept json
// @Produce json
// @Param id path string true "Certificate ID"
// @Param payload body dto.UpdateStatusRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /certificates/{id}/status [patch]
func (h *CertificateHandler) UpdateStatus(c *gin.Context) {
	var req dto.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if req.Actor == "" {
		req.Actor = c.GetHeader(ActorHeader)
	}
	cert, err := h.certs.UpdateStatus(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cert, nil)
}

// SequenceCount godoc
// @Summary Count certificates under a folio sequence
// @Tags Certificates
// @Produce json
// @Param year query int true "Year"
// @Param type query string true "CAP or PROFUNDO"
// @Param prefix query string false "Folio prefix"
// @Success 200 {object} response.Envelope
// @Router /certificates/sequences/count [get]
func (h *CertificateHandler) SequenceCount(c *gin.Context) {
	year, err := strconv.Atoi(c.Query("year"))
	certType := models.CertificateType(strings.ToUpper(c.Query("type")))
	if err != nil || year < 1900 || !certType.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "year and type are required"))
		return
	}
	count, err := h.certs.CountForSequence(c.Request.Context(), year, certType, c.Query("prefix"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"year": year, "type": certType, "count": count}, nil)
}

// ProgramStats godoc
// @Summary Certificates issued per academic program
// @Tags Certificates
// @Produce json
// @Param limit query int false "Maximum programs"
// @Success 200 {object} response.Envelope
// @Router /programs/stats [get]
func (h *CertificateHandler) ProgramStats(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	stats, err := h.certs.ProgramStats(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, stats, nil)
}
