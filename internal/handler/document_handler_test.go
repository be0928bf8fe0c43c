package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sigce-api/internal/dto"
	"github.com/noah-isme/sigce-api/internal/service"
	appErrors "github.com/noah-isme/sigce-api/pkg/errors"
)

type documentStub struct {
	templateID string
}

func (s *documentStub) Render(ctx context.Context, certificateID, templateID string) (*service.Document, error) {
	s.templateID = templateID
	if certificateID == "missing" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
	}
	return &service.Document{Content: []byte("%PDF-1.3"), Filename: "Certificado_sigce-2026-CAP-0001.pdf", ContentType: "application/pdf"}, nil
}

func (s *documentStub) Archive(ctx context.Context, certificateID string) (*dto.ArchivedDocument, error) {
	return &dto.ArchivedDocument{
		CertificateID: certificateID,
		Folio:         "sigce-2026-CAP-0001",
		Path:          "2026/sigce-2026-CAP-0001.pdf",
		DownloadURL:   "http://localhost/api/v1/documents/token",
		ExpiresAt:     time.Date(2026, 3, 16, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (s *documentStub) Download(ctx context.Context, token string) (*service.Document, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrInvalidToken, "download link expired")
	}
	return &service.Document{Content: []byte("%PDF-1.3"), Filename: "Certificado_sigce-2026-CAP-0001.pdf", ContentType: "application/pdf"}, nil
}

func TestDocumentHandlerRenderStreamsAttachment(t *testing.T) {
	stub := &documentStub{}
	h := NewDocumentHandler(stub)
	c, w := newTestContext(http.MethodGet, "/certificates/cert-1/document?templateId=tpl-9", nil)
	c.Params = gin.Params{{Key: "id", Value: "cert-1"}}

	h.Render(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "tpl-9", stub.templateID)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="Certificado_sigce-2026-CAP-0001.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.3", w.Body.String())
}

func TestDocumentHandlerRenderMissingCertificate(t *testing.T) {
	h := NewDocumentHandler(&documentStub{})
	c, w := newTestContext(http.MethodGet, "/certificates/missing/document", nil)
	c.Params = gin.Params{{Key: "id", Value: "missing"}}

	h.Render(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDocumentHandlerArchive(t *testing.T) {
	h := NewDocumentHandler(&documentStub{})
	c, w := newTestContext(http.MethodPost, "/certificates/cert-1/document/archive", nil)
	c.Params = gin.Params{{Key: "id", Value: "cert-1"}}

	h.Archive(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), "2026/sigce-2026-CAP-0001.pdf")
}

func TestDocumentHandlerDownload(t *testing.T) {
	h := NewDocumentHandler(&documentStub{})

	c, w := newTestContext(http.MethodGet, "/documents/good", nil)
	c.Params = gin.Params{{Key: "token", Value: "good"}}
	h.Download(c)
	require.Equal(t, http.StatusOK, w.Code)

	c, w = newTestContext(http.MethodGet, "/documents/stale", nil)
	c.Params = gin.Params{{Key: "token", Value: "stale"}}
	h.Download(c)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
