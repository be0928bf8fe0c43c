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

type templateRepository interface {
	Create(ctx context.Context, tpl *models.Template) error
	Update(ctx context.Context, tpl *models.Template) error
	FindByID(ctx context.Context, id string) (*models.Template, error)
	List(ctx context.Context, filter models.TemplateFilter) ([]models.Template, error)
	Deactivate(ctx context.Context, id string) error
}

// TemplateService manages the certificate template catalogue.
type TemplateService struct {
	repo      templateRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTemplateService constructs the service.
func NewTemplateService(repo templateRepository, validate *validator.Validate, logger *zap.Logger) *TemplateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateService{repo: repo, validator: validate, logger: logger}
}

// List returns templates; active only unless includeInactive is set.
func (s *TemplateService) List(ctx context.Context, includeInactive bool) ([]models.Template, error) {
	templates, err := s.repo.List(ctx, models.TemplateFilter{ActiveOnly: !includeInactive})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list templates")
	}
	return templates, nil
}

// Get returns a template, active or not, or ErrNotFound.
func (s *TemplateService) Get(ctx context.Context, id string) (*models.Template, error) {
	tpl, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	if tpl == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
	}
	return tpl, nil
}

// Create stores a new template.
func (s *TemplateService) Create(ctx context.Context, req dto.TemplateRequest) (*models.Template, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	tpl := &models.Template{
		Name:               req.Name,
		BackgroundImageURL: req.BackgroundImageURL,
		Width:              req.Width,
		Height:             req.Height,
		Elements:           req.Elements,
	}
	if err := s.repo.Create(ctx, tpl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create template")
	}
	s.logger.Info("template created", zap.String("template_id", tpl.ID), zap.Int("elements", len(tpl.Elements)))
	return tpl, nil
}

// Update replaces the layout of an existing template.
func (s *TemplateService) Update(ctx context.Context, id string, req dto.TemplateRequest) (*models.Template, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	tpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	tpl.Name = req.Name
	tpl.BackgroundImageURL = req.BackgroundImageURL
	tpl.Width = req.Width
	tpl.Height = req.Height
	tpl.Elements = req.Elements
	if err := s.repo.Update(ctx, tpl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update template")
	}
	return tpl, nil
}

// Delete soft deletes a template. Certificates bound to it still render.
func (s *TemplateService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.repo.Deactivate(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete template")
	}
	s.logger.Info("template deactivated", zap.String("template_id", id))
	return nil
}

func (s *TemplateService) validate(req *dto.TemplateRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	req.BackgroundImageURL = strings.TrimSpace(req.BackgroundImageURL)
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template payload")
	}
	if req.Elements == nil {
		req.Elements = models.Elements{}
	}
	if err := req.Elements.Validate(); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}
	return nil
}
