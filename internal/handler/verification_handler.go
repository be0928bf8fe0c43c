package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sigce-api/internal/dto"
	"github.com/noah-isme/sigce-api/pkg/response"
)

type verificationService interface {
	Resolve(ctx context.Context, query string) (*dto.VerificationResult, error)
}

// VerificationHandler exposes the public verification endpoint.
type VerificationHandler struct {
	verifier verificationService
}

// NewVerificationHandler constructs VerificationHandler.
func NewVerificationHandler(verifier verificationService) *VerificationHandler {
	return &VerificationHandler{verifier: verifier}
}

// Verify godoc
// @Summary Verify a certificate
// @Description Resolves a folio (any letter case) or certificate id. An unknown query returns found=false with HTTP 200.
// @Tags Verification
// @Produce json
// @Param query path string true "Folio or certificate ID"
// @Success 200 {object} response.Envelope
// @Router /verify/{query} [get]
func (h *VerificationHandler) Verify(c *gin.Context) {
	result, err := h.verifier.Resolve(c.Request.Context(), c.Param("query"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
