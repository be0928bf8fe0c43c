package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sigce-api/internal/dto"
	"github.com/noah-isme/sigce-api/internal/models"
	"github.com/noah-isme/sigce-api/internal/repository"
	appErrors "github.com/noah-isme/sigce-api/pkg/errors"
)

type certificateRepository interface {
	Create(ctx context.Context, cert *models.Certificate) error
	FindByID(ctx context.Context, id string) (*models.Certificate, error)
	FindByFolio(ctx context.Context, folio string) (*models.Certificate, error)
	FindByStudent(ctx context.Context, studentID string) ([]models.Certificate, error)
	List(ctx context.Context, filter models.CertificateFilter) ([]models.Certificate, int, error)
	UpdateStatus(ctx context.Context, id string, from, to models.CertificateStatus, event models.CertificateEvent) (bool, error)
	CountForSequence(ctx context.Context, key models.SequenceKey) (int, error)
}

type studentEnsurer interface {
	Ensure(ctx context.Context, profile StudentProfile) (*models.Student, error)
}

type programStatRepository interface {
	RecordIssued(ctx context.Context, cert *models.Certificate) error
	List(ctx context.Context, limit int) ([]models.ProgramStat, error)
}

type documentArchiver interface {
	EnqueueArchive(cert *models.Certificate) error
}

type verificationInvalidator interface {
	Invalidate(ctx context.Context, cert *models.Certificate)
}

// CertificateConfig carries issuance settings.
type CertificateConfig struct {
	AppBaseURL     string
	DefaultPrefix  string
	ArchiveOnIssue bool
}

// CertificateService manages the certificate lifecycle.
type CertificateService struct {
	repo      certificateRepository
	students  studentEnsurer
	sequences SequenceReserver
	stats     programStatRepository
	archiver  documentArchiver
	verifier  verificationInvalidator
	metrics   *MetricsService
	cfg       CertificateConfig
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// CertificateServiceDeps groups optional collaborators.
type CertificateServiceDeps struct {
	Stats    programStatRepository
	Archiver documentArchiver
	Verifier verificationInvalidator
	Metrics  *MetricsService
}

// NewCertificateService constructs the lifecycle manager.
func NewCertificateService(
	repo certificateRepository,
	students studentEnsurer,
	sequences SequenceReserver,
	deps CertificateServiceDeps,
	cfg CertificateConfig,
	validate *validator.Validate,
	logger *zap.Logger,
) *CertificateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.AppBaseURL = strings.TrimRight(cfg.AppBaseURL, "/")
	return &CertificateService{
		repo:      repo,
		students:  students,
		sequences: sequences,
		stats:     deps.Stats,
		archiver:  deps.Archiver,
		verifier:  deps.Verifier,
		metrics:   deps.Metrics,
		cfg:       cfg,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// SetArchiver attaches the document archiver after construction.
func (s *CertificateService) SetArchiver(archiver documentArchiver) {
	s.archiver = archiver
}

// VerificationURL returns the public verification link for folio.
func (s *CertificateService) VerificationURL(folio string) string {
	return s.cfg.AppBaseURL + "/verify/" + folio
}

// Issue validates the request, resolves the student, reserves a folio and
// stores an active certificate.
func (s *CertificateService) Issue(ctx context.Context, req dto.IssueCertificateRequest) (*models.Certificate, error) {
	req.StudentID = strings.TrimSpace(req.StudentID)
	req.StudentName = strings.TrimSpace(req.StudentName)
	req.AcademicProgram = strings.TrimSpace(req.AcademicProgram)
	if req.StudentID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student_id is required")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid certificate payload")
	}
	if err := req.Metadata.Validate(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	issueDate := s.now().UTC()
	if req.IssueDate != nil && !req.IssueDate.IsZero() {
		issueDate = req.IssueDate.UTC()
	}
	if year := issueDate.Year(); year < minFolioYear || year > maxFolioYear {
		return nil, appErrors.Clone(appErrors.ErrValidation, "issue_date year must have four digits")
	}
	if req.ExpirationDate != nil && !req.ExpirationDate.After(issueDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "expiration_date must be after issue_date")
	}

	if _, err := s.students.Ensure(ctx, StudentProfile{
		ID:         req.StudentID,
		FullName:   req.StudentName,
		Email:      req.StudentEmail,
		NationalID: req.NationalID,
		Program:    req.AcademicProgram,
	}); err != nil {
		return nil, err
	}

	key := models.SequenceKey{
		Prefix: NormalizePrefix(req.Prefix, s.cfg.DefaultPrefix),
		Year:   issueDate.Year(),
		Type:   req.Type,
	}
	seq, err := s.sequences.ReserveNext(ctx, key)
	if err != nil {
		var appErr *appErrors.Error
		if errors.As(err, &appErr) {
			return nil, err
		}
		return nil, appErrors.WrapAs(err, appErrors.ErrReservationUnavailable, "")
	}
	folio := FormatFolio(key.Prefix, key.Year, key.Type, seq)

	metadata := req.Metadata
	if metadata == nil {
		metadata = models.Metadata{}
	}
	cert := &models.Certificate{
		Folio:           folio,
		StudentID:       req.StudentID,
		StudentName:     req.StudentName,
		Type:            req.Type,
		AcademicProgram: req.AcademicProgram,
		IssueDate:       issueDate,
		ExpirationDate:  req.ExpirationDate,
		Status:          models.CertificateStatusActive,
		VerificationURL: s.VerificationURL(folio),
		TemplateID:      req.TemplateID,
		Metadata:        metadata,
		History: models.CertificateHistory{{
			Action:   models.CertificateActionIssued,
			Actor:    req.Actor,
			ToStatus: models.CertificateStatusActive,
			At:       s.now().UTC(),
		}},
	}
	if err := s.repo.Create(ctx, cert); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "folio already issued, retry the request")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store certificate")
	}

	s.metrics.RecordIssued(string(cert.Type))
	s.logger.Info("certificate issued",
		zap.String("certificate_id", cert.ID),
		zap.String("folio", cert.Folio),
		zap.String("student_id", cert.StudentID),
	)
	s.recordProgramStat(ctx, cert)
	s.enqueueArchive(cert)
	return cert, nil
}

func (s *CertificateService) recordProgramStat(ctx context.Context, cert *models.Certificate) {
	if s.stats == nil {
		return
	}
	if err := s.stats.RecordIssued(ctx, cert); err != nil {
		s.logger.Warn("program statistics update failed", zap.String("folio", cert.Folio), zap.Error(err))
	}
}

func (s *CertificateService) enqueueArchive(cert *models.Certificate) {
	if !s.cfg.ArchiveOnIssue || s.archiver == nil {
		return
	}
	if err := s.archiver.EnqueueArchive(cert); err != nil {
		s.logger.Warn("document archival not queued", zap.String("folio", cert.Folio), zap.Error(err))
	}
}

// FindByFolio returns the certificate with exactly this folio, or nil.
func (s *CertificateService) FindByFolio(ctx context.Context, folio string) (*models.Certificate, error) {
	cert, err := s.repo.FindByFolio(ctx, folio)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	return cert, nil
}

// FindByID returns the certificate with this id, or nil.
func (s *CertificateService) FindByID(ctx context.Context, id string) (*models.Certificate, error) {
	cert, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificate")
	}
	return cert, nil
}

// Get returns the certificate with this id or ErrNotFound.
func (s *CertificateService) Get(ctx context.Context, id string) (*models.Certificate, error) {
	cert, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if cert == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "certificate not found")
	}
	return cert, nil
}

// FindByStudent lists a student's certificates, newest first.
func (s *CertificateService) FindByStudent(ctx context.Context, studentID string) ([]models.Certificate, error) {
	certs, err := s.repo.FindByStudent(ctx, strings.TrimSpace(studentID))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load certificates")
	}
	return certs, nil
}

// List returns a page of certificates.
func (s *CertificateService) List(ctx context.Context, query dto.CertificateListQuery) ([]models.Certificate, *models.Pagination, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid certificate filter")
	}
	filter := query.Filter()
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	certs, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list certificates")
	}
	return certs, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// UpdateStatus applies a lifecycle transition. Only active certificates may
// change; requesting the current status is a no-op.
func (s *CertificateService) UpdateStatus(ctx context.Context, id string, req dto.UpdateStatusRequest) (*models.Certificate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}
	cert, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if cert.Status == req.Status {
		return cert, nil
	}
	if !cert.Status.CanTransitionTo(req.Status) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "cannot change status from "+string(cert.Status)+" to "+string(req.Status))
	}

	event := models.CertificateEvent{
		Action:     models.CertificateActionStatusChanged,
		Actor:      req.Actor,
		FromStatus: cert.Status,
		ToStatus:   req.Status,
		Reason:     req.Reason,
		At:         s.now().UTC(),
	}
	updated, err := s.repo.UpdateStatus(ctx, cert.ID, cert.Status, req.Status, event)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update certificate status")
	}
	if !updated {
		return nil, appErrors.Clone(appErrors.ErrConflict, "certificate status changed concurrently")
	}

	s.metrics.RecordStatusChange(string(event.FromStatus), string(event.ToStatus))
	s.logger.Info("certificate status changed",
		zap.String("folio", cert.Folio),
		zap.String("from", string(event.FromStatus)),
		zap.String("to", string(event.ToStatus)),
	)
	cert.Status = req.Status
	cert.History = append(cert.History, event)
	cert.UpdatedAt = event.At
	if s.verifier != nil {
		s.verifier.Invalidate(ctx, cert)
	}
	return cert, nil
}

// CountForSequence counts certificates already issued under the sequence key.
func (s *CertificateService) CountForSequence(ctx context.Context, year int, certType models.CertificateType, prefix string) (int, error) {
	key := models.SequenceKey{Prefix: NormalizePrefix(prefix, s.cfg.DefaultPrefix), Year: year, Type: certType}
	count, err := s.repo.CountForSequence(ctx, key)
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count certificates")
	}
	return count, nil
}

// ProgramStats returns issuance totals per academic program.
func (s *CertificateService) ProgramStats(ctx context.Context, limit int) ([]models.ProgramStat, error) {
	if s.stats == nil {
		return []models.ProgramStat{}, nil
	}
	stats, err := s.stats.List(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load program statistics")
	}
	return stats, nil
}
