package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/sigce-api/internal/dto"
	"github.com/noah-isme/sigce-api/internal/models"
	appErrors "github.com/noah-isme/sigce-api/pkg/errors"
)

type studentRepository interface {
	List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error)
	FindByID(ctx context.Context, id string) (*models.Student, error)
	CreateIfAbsent(ctx context.Context, student *models.Student) (bool, error)
	PatchMissing(ctx context.Context, id string, patch models.StudentPatch) error
}

// StudentProfile is what issuance knows about the student.
type StudentProfile struct {
	ID         string
	FullName   string
	Email      string
	NationalID string
	Program    string
}

// StudentService resolves the student a certificate points at.
type StudentService struct {
	repo      studentRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewStudentService constructs the service.
func NewStudentService(repo studentRepository, validate *validator.Validate, logger *zap.Logger) *StudentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StudentService{repo: repo, validator: validate, logger: logger}
}

// Ensure creates the student when absent and otherwise fills missing contact
// fields. It is idempotent and safe under concurrent calls for one id.
func (s *StudentService) Ensure(ctx context.Context, profile StudentProfile) (*models.Student, error) {
	id := strings.TrimSpace(profile.ID)
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "student id is required")
	}

	existing, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if existing == nil {
		student := &models.Student{
			ID:         id,
			FirstName:  strings.TrimSpace(profile.FullName),
			Email:      strings.TrimSpace(profile.Email),
			NationalID: strings.TrimSpace(profile.NationalID),
			Program:    strings.TrimSpace(profile.Program),
		}
		created, err := s.repo.CreateIfAbsent(ctx, student)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
		}
		if created {
			s.logger.Info("student registered from issuance", zap.String("student_id", id))
			return student, nil
		}
		// Lost a creation race; fall through to patch the winner's row.
		if existing, err = s.repo.FindByID(ctx, id); err != nil || existing == nil {
			if err == nil {
				err = appErrors.Clone(appErrors.ErrInternal, "student vanished after concurrent create")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
		}
	}

	patch := missingFields(existing, profile)
	if patch.Empty() {
		return existing, nil
	}
	if err := s.repo.PatchMissing(ctx, id, patch); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update student")
	}
	if existing.NationalID == "" {
		existing.NationalID = patch.NationalID
	}
	if existing.Email == "" {
		existing.Email = patch.Email
	}
	if existing.Program == "" {
		existing.Program = patch.Program
	}
	return existing, nil
}

func missingFields(existing *models.Student, profile StudentProfile) models.StudentPatch {
	var patch models.StudentPatch
	if existing.NationalID == "" {
		patch.NationalID = strings.TrimSpace(profile.NationalID)
	}
	if existing.Email == "" {
		patch.Email = strings.TrimSpace(profile.Email)
	}
	if existing.Program == "" {
		patch.Program = strings.TrimSpace(profile.Program)
	}
	return patch
}

// Get returns the student or ErrNotFound.
func (s *StudentService) Get(ctx context.Context, id string) (*models.Student, error) {
	student, err := s.repo.FindByID(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}
	return student, nil
}

// List returns paginated students.
func (s *StudentService) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, *models.Pagination, error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}
	students, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list students")
	}
	return students, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Create registers a student explicitly. An existing id is a conflict.
func (s *StudentService) Create(ctx context.Context, req dto.CreateStudentRequest) (*models.Student, error) {
	req.ID = strings.TrimSpace(req.ID)
	req.FirstName = strings.TrimSpace(req.FirstName)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid student payload")
	}
	student := &models.Student{
		ID:         req.ID,
		FirstName:  req.FirstName,
		LastName:   strings.TrimSpace(req.LastName),
		Email:      strings.TrimSpace(req.Email),
		NationalID: strings.TrimSpace(req.NationalID),
		Program:    strings.TrimSpace(req.Program),
	}
	created, err := s.repo.CreateIfAbsent(ctx, student)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create student")
	}
	if !created {
		return nil, appErrors.Clone(appErrors.ErrConflict, "student already exists")
	}
	return student, nil
}
