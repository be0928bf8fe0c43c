package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sigce-api/internal/dto"
	"github.com/noah-isme/sigce-api/internal/models"
	appErrors "github.com/noah-isme/sigce-api/pkg/errors"
	"github.com/noah-isme/sigce-api/pkg/jobs"
	"github.com/noah-isme/sigce-api/pkg/storage"
)

// JobTypeArchiveCertificate renders and stores a certificate document.
const JobTypeArchiveCertificate = "archive_certificate"

type documentCertificates interface {
	FindByID(ctx context.Context, id string) (*models.Certificate, error)
	SetDocumentPath(ctx context.Context, id, path string, event models.CertificateEvent) error
}

type templateFinder interface {
	FindByID(ctx context.Context, id string) (*models.Template, error)
}

type certificateRenderer interface {
	Render(ctx context.Context, cert *models.Certificate, tpl *models.Template) (*Document, error)
}

type documentStore interface {
	Save(name string, data []byte) (string, error)
	Read(name string) ([]byte, error)
	Exists(name string) bool
}

type downloadSigner interface {
	Generate(certificateID, relPath string) (string, time.Time, error)
	Parse(token string) (*storage.DownloadClaims, error)
}

type jobEnqueuer interface {
	TryEnqueue(job jobs.Job) error
}

// DocumentConfig controls archived document links.
type DocumentConfig struct {
	// DownloadBaseURL prefixes download tokens, e.g. https://api.sigce.app/api/v1/documents
	DownloadBaseURL string
}

// DocumentService renders certificates on demand and archives them to storage
// behind signed download links.
type DocumentService struct {
	certs     documentCertificates
	templates templateFinder
	renderer  certificateRenderer
	store     documentStore
	signer    downloadSigner
	queue     jobEnqueuer
	metrics   *MetricsService
	cfg       DocumentConfig
	logger    *zap.Logger
}

// NewDocumentService constructs the service.
func NewDocumentService(
	certs documentCertificates,
	templates templateFinder,
	renderer certificateRenderer,
	store documentStore,
	signer downloadSigner,
	metrics *MetricsService,
	cfg DocumentConfig,
	logger *zap.Logger,
) *DocumentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.DownloadBaseURL = strings.TrimRight(cfg.DownloadBaseURL, "/")
	return &DocumentService{
		certs:     certs,
		templates: templates,
		renderer:  renderer,
		store:     store,
		signer:    signer,
		metrics:   metrics,
		cfg:       cfg,
		logger:    logger,
	}
}

// AttachQueue wires the background archival queue.
func (s *DocumentService) AttachQueue(queue jobEnqueuer) {
	s.queue = queue
}

// Render produces the PDF for a certificate. templateID overrides the
// template stored on the certificate; with neither, the default layout is used.
func (s *DocumentService) Render(ctx context.Context, certificateID, templateID string) (*Document, error) {
	cert, err := s.loadCertificate(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	tpl, err := s.resolveTemplate(ctx, cert, strings.TrimSpace(templateID))
	if err != nil {
		return nil, err
	}
	return s.renderer.Render(ctx, cert, tpl)
}

func (s *DocumentService) loadCertificate(ctx context.Context, id string) (*models.Certificate, error) {
	cert, err := s.certs.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	if cert == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
	}
	return cert, nil
}

func (s *DocumentService) resolveTemplate(ctx context.Context, cert *models.Certificate, explicit string) (*models.Template, error) {
	if explicit != "" {
		tpl, err := s.templates.FindByID(ctx, explicit)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
		}
		if tpl == nil {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return tpl, nil
	}
	if cert.TemplateID == nil || *cert.TemplateID == "" {
		return nil, nil
	}
	tpl, err := s.templates.FindByID(ctx, *cert.TemplateID)
	if err != nil || tpl == nil {
		s.logger.Warn("certificate template unavailable, using default layout",
			zap.String("folio", cert.Folio),
			zap.String("template_id", *cert.TemplateID),
			zap.Error(err),
		)
		return nil, nil
	}
	return tpl, nil
}

// Archive renders the certificate, stores it and returns a signed download link.
func (s *DocumentService) Archive(ctx context.Context, certificateID string) (*dto.ArchivedDocument, error) {
	cert, err := s.loadCertificate(ctx, certificateID)
	if err != nil {
		return nil, err
	}
	tpl, err := s.resolveTemplate(ctx, cert, "")
	if err != nil {
		return nil, err
	}
	doc, err := s.renderer.Render(ctx, cert, tpl)
	if err != nil {
		s.metrics.RecordArchive("render_failed")
		return nil, err
	}

	path, err := s.store.Save(documentPath(cert), doc.Content)
	if err != nil {
		s.metrics.RecordArchive("store_failed")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store certificate document")
	}
	event := models.CertificateEvent{Action: models.CertificateActionArchived, At: time.Now().UTC()}
	if err := s.certs.SetDocumentPath(ctx, cert.ID, path, event); err != nil {
		s.metrics.RecordArchive("store_failed")
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record certificate document")
	}

	token, expiresAt, err := s.signer.Generate(cert.ID, path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download link")
	}
	s.metrics.RecordArchive("ok")
	s.logger.Info("certificate document archived", zap.String("folio", cert.Folio), zap.String("path", path))

	return &dto.ArchivedDocument{
		CertificateID: cert.ID,
		Folio:         cert.Folio,
		Path:          path,
		DownloadURL:   s.cfg.DownloadBaseURL + "/" + token,
		ExpiresAt:     expiresAt,
		SkippedAssets: doc.SkippedAssets,
	}, nil
}

// Download returns the archived document a token grants access to.
func (s *DocumentService) Download(ctx context.Context, token string) (*Document, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		msg := "invalid download token"
		if errors.Is(err, storage.ErrTokenExpired) {
			msg = "download token expired"
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInvalidToken.Code, appErrors.ErrInvalidToken.Status, msg)
	}
	cert, err := s.loadCertificate(ctx, claims.CertificateID)
	if err != nil {
		return nil, err
	}
	if !s.store.Exists(claims.Path) {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "document no longer available")
	}
	content, err := s.store.Read(claims.Path)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read certificate document")
	}
	return &Document{Content: content, Filename: DocumentFilename(cert.Folio), ContentType: pdfContentType}, nil
}

// EnqueueArchive schedules background archival without blocking.
func (s *DocumentService) EnqueueArchive(cert *models.Certificate) error {
	if s.queue == nil {
		return fmt.Errorf("archival queue not attached")
	}
	return s.queue.TryEnqueue(jobs.Job{ID: cert.ID, Type: JobTypeArchiveCertificate, Payload: cert.ID})
}

// HandleJob is the queue handler for archival jobs.
func (s *DocumentService) HandleJob(ctx context.Context, job jobs.Job) error {
	if job.Type != JobTypeArchiveCertificate {
		return fmt.Errorf("unsupported job type %q", job.Type)
	}
	id, ok := job.Payload.(string)
	if !ok || id == "" {
		return fmt.Errorf("archive job %s has no certificate id", job.ID)
	}
	_, err := s.Archive(ctx, id)
	return err
}

func documentPath(cert *models.Certificate) string {
	return fmt.Sprintf("%d/%s.pdf", cert.IssueDate.Year(), cert.Folio)
}
