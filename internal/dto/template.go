package dto

import "github.com/noah-isme/sigce-api/internal/models"

// TemplateRequest creates or replaces a certificate template.
type TemplateRequest struct {
	Name               string          `json:"name" validate:"required,max=120"`
	BackgroundImageURL string          `json:"background_image_url" validate:"omitempty,max=2048"`
	Width              float64         `json:"width" validate:"required,gt=0,lte=5000"`
	Height             float64         `json:"height" validate:"required,gt=0,lte=5000"`
	Elements           models.Elements `json:"elements"`
}
