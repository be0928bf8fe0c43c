package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sigce-api/internal/models"
	appErrors "github.com/noah-isme/sigce-api/pkg/errors"
	"github.com/noah-isme/sigce-api/pkg/jobs"
	"github.com/noah-isme/sigce-api/pkg/storage"
)

type stubRenderer struct {
	templates []*models.Template
	err       error
}

func (s *stubRenderer) Render(ctx context.Context, cert *models.Certificate, tpl *models.Template) (*Document, error) {
	s.templates = append(s.templates, tpl)
	if s.err != nil {
		return nil, s.err
	}
	return &Document{Content: []byte("%PDF-1.3 " + cert.Folio), Filename: DocumentFilename(cert.Folio), ContentType: pdfContentType}, nil
}

type documentFixture struct {
	svc      *DocumentService
	certs    *memCertificateRepo
	renderer *stubRenderer
	store    *storage.LocalStorage
	cert     *models.Certificate
	tpl      *models.Template
}

func newDocumentFixture(t *testing.T) *documentFixture {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	tpl := &models.Template{ID: "5f1d0c1e-8c4b-4a43-9d0c-54d1b0b6e7a1", Name: "Diplomado", Width: 297, Height: 210}
	tplID := tpl.ID
	certs := newMemCertificateRepo()
	cert := certs.put(models.Certificate{
		Folio:      "sigce-2026-CAP-0001",
		IssueDate:  time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		Status:     models.CertificateStatusActive,
		TemplateID: &tplID,
	})
	renderer := &stubRenderer{}
	svc := NewDocumentService(
		certs,
		&memTemplates{templates: map[string]*models.Template{tpl.ID: tpl}},
		renderer,
		store,
		storage.NewDocumentTokenSigner("download-secret", time.Hour),
		nil,
		DocumentConfig{DownloadBaseURL: "https://api.sigce.example.edu/api/v1/documents/"},
		nil,
	)
	return &documentFixture{svc: svc, certs: certs, renderer: renderer, store: store, cert: cert, tpl: tpl}
}

func TestDocumentServiceRenderResolvesTemplate(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()

	_, err := f.svc.Render(ctx, f.cert.ID, "")
	require.NoError(t, err)
	_, err = f.svc.Render(ctx, f.cert.ID, "3b1e0f7c-0000-4000-8000-000000000000")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))

	missing := "9e0c3c6a-0000-4000-8000-000000000000"
	stale := f.certs.put(models.Certificate{Folio: "sigce-2026-CAP-0002", TemplateID: &missing})
	_, err = f.svc.Render(ctx, stale.ID, "")
	require.NoError(t, err)

	require.Len(t, f.renderer.templates, 2)
	assert.Equal(t, f.tpl, f.renderer.templates[0])
	assert.Nil(t, f.renderer.templates[1])

	_, err = f.svc.Render(ctx, "unknown", "")
	assert.True(t, errors.Is(err, appErrors.ErrNotFound))
}

func TestDocumentServiceArchiveAndDownload(t *testing.T) {
	f := newDocumentFixture(t)
	ctx := context.Background()

	archived, err := f.svc.Archive(ctx, f.cert.ID)
	require.NoError(t, err)
	assert.Equal(t, "2026/sigce-2026-CAP-0001.pdf", archived.Path)
	assert.Contains(t, archived.DownloadURL, "https://api.sigce.example.edu/api/v1/documents/")
	assert.True(t, f.store.Exists(archived.Path))

	stored, err := f.certs.FindByID(ctx, f.cert.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.DocumentPath)
	assert.Equal(t, archived.Path, *stored.DocumentPath)

	token := archived.DownloadURL[len("https://api.sigce.example.edu/api/v1/documents/"):]
	doc, err := f.svc.Download(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "%PDF-1.3 sigce-2026-CAP-0001", string(doc.Content))
	assert.Equal(t, "Certificado_sigce-2026-CAP-0001.pdf", doc.Filename)

	_, err = f.svc.Download(ctx, "not-a-token")
	assert.True(t, errors.Is(err, appErrors.ErrInvalidToken))
}

func TestDocumentServiceArchiveRenderFailure(t *testing.T) {
	f := newDocumentFixture(t)
	f.renderer.err = appErrors.Clone(appErrors.ErrRender, "boom")

	_, err := f.svc.Archive(context.Background(), f.cert.ID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrRender))
	assert.False(t, f.store.Exists("2026/sigce-2026-CAP-0001.pdf"))
}

func TestDocumentServiceQueuedArchival(t *testing.T) {
	f := newDocumentFixture(t)
	require.Error(t, f.svc.EnqueueArchive(f.cert))

	queue := jobs.NewQueue("documents", f.svc.HandleJob, jobs.QueueConfig{Workers: 1, BufferSize: 4})
	f.svc.AttachQueue(queue)
	queue.Start(context.Background())
	t.Cleanup(queue.Stop)

	require.NoError(t, f.svc.EnqueueArchive(f.cert))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, queue.Wait(ctx))

	assert.True(t, f.store.Exists("2026/sigce-2026-CAP-0001.pdf"))
	assert.Equal(t, int64(1), queue.Stats().Processed)

	assert.Error(t, f.svc.HandleJob(context.Background(), jobs.Job{Type: "other"}))
}
