package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sigce-api/internal/models"
)

const templateColumns = "id, name, background_image_url, width, height, elements, active, created_at, updated_at"

// TemplateRepository manages persistence for certificate templates.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository constructs a TemplateRepository.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// Create inserts a new active template.
func (r *TemplateRepository) Create(ctx context.Context, tpl *models.Template) error {
	if tpl.ID == "" {
		tpl.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	tpl.CreatedAt = now
	tpl.UpdatedAt = now
	tpl.Active = true
	const query = `INSERT INTO certificate_templates (id, name, background_image_url, width, height, elements, active, created_at, updated_at)
        VALUES (:id, :name, :background_image_url, :width, :height, :elements, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, tpl); err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

// Update replaces the layout of an existing template.
func (r *TemplateRepository) Update(ctx context.Context, tpl *models.Template) error {
	tpl.UpdatedAt = time.Now().UTC()
	const query = `UPDATE certificate_templates SET name = :name, background_image_url = :background_image_url, width = :width,
        height = :height, elements = :elements, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, tpl); err != nil {
		return fmt.Errorf("update template: %w", err)
	}
	return nil
}

// FindByID fetches a template regardless of its active flag so certificates
// bound to a retired template can still be rendered. A miss returns nil, nil.
func (r *TemplateRepository) FindByID(ctx context.Context, id string) (*models.Template, error) {
	query := fmt.Sprintf("SELECT %s FROM certificate_templates WHERE id = $1", templateColumns)
	var tpl models.Template
	if err := r.db.GetContext(ctx, &tpl, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("find template: %w", err)
	}
	return &tpl, nil
}

// List returns templates ordered by last update.
func (r *TemplateRepository) List(ctx context.Context, filter models.TemplateFilter) ([]models.Template, error) {
	query := fmt.Sprintf("SELECT %s FROM certificate_templates", templateColumns)
	if filter.ActiveOnly {
		query += " WHERE active = TRUE"
	}
	query += " ORDER BY updated_at DESC"
	templates := make([]models.Template, 0)
	if err := r.db.SelectContext(ctx, &templates, query); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// Deactivate soft deletes a template.
func (r *TemplateRepository) Deactivate(ctx context.Context, id string) error {
	const query = `UPDATE certificate_templates SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("deactivate template: %w", err)
	}
	return nil
}
