package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sigce-api/internal/dto"
	"github.com/noah-isme/sigce-api/internal/service"
	"github.com/noah-isme/sigce-api/pkg/response"
)

type documentService interface {
	Render(ctx context.Context, certificateID, templateID string) (*service.Document, error)
	Archive(ctx context.Context, certificateID string) (*dto.ArchivedDocument, error)
	Download(ctx context.Context, token string) (*service.Document, error)
}

// DocumentHandler serves certificate PDFs.
type DocumentHandler struct {
	documents documentService
}

// NewDocumentHandler constructs DocumentHandler.
func NewDocumentHandler(documents documentService) *DocumentHandler {
	return &DocumentHandler{documents: documents}
}

// Render godoc
// @Summary Render certificate PDF
// @Tags Documents
// @Produce application/pdf
// @Param id path string true "Certificate ID"
// @Param templateId query string false "Template override"
// @Success 200 {file} file
// @Failure 404 {object} response.Envelope
// @Router /certificates/{id}/document [get]
func (h *DocumentHandler) Render(c *gin.Context) {
	doc, err := h.documents.Render(c.Request.Context(), c.Param("id"), c.Query("templateId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Content)
}

// Archive godoc
// @Summary Archive certificate PDF
// @Description Renders the certificate, stores it and returns a signed download link.
// @Tags Documents
// @Produce json
// @Param id path string true "Certificate ID"
// @Success 201 {object} response.Envelope
// @Router /certificates/{id}/document/archive [post]
func (h *DocumentHandler) Archive(c *gin.Context) {
	archived, err := h.documents.Archive(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, archived, nil)
}

// Download godoc
// @Summary Download archived certificate
// @Tags Documents
// @Produce application/pdf
// @Param token path string true "Signed download token"
// @Success 200 {file} file
// @Failure 401 {object} response.Envelope
// @Router /documents/{token} [get]
func (h *DocumentHandler) Download(c *gin.Context) {
	doc, err := h.documents.Download(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, doc.Filename, doc.ContentType, doc.Content)
}
