package dto

import (
	"time"

	"github.com/noah-isme/sigce-api/internal/models"
)

// IssueCertificateRequest is the input for issuing a certificate. StudentID
// is the enrollment number and is mandatory.
type IssueCertificateRequest struct {
	StudentID       string                 `json:"student_id" validate:"required,max=64"`
	StudentName     string                 `json:"student_name" validate:"required,max=200"`
	NationalID      string                 `json:"national_id" validate:"omitempty,max=32"`
	StudentEmail    string                 `json:"student_email" validate:"omitempty,email"`
	Type            models.CertificateType `json:"type" validate:"required,oneof=CAP PROFUNDO"`
	AcademicProgram string                 `json:"academic_program" validate:"required,max=200"`
	IssueDate       *time.Time             `json:"issue_date"`
	ExpirationDate  *time.Time             `json:"expiration_date"`
	Prefix          string                 `json:"prefix" validate:"omitempty,alphanum,max=16"`
	TemplateID      *string                `json:"template_id" validate:"omitempty,uuid"`
	Metadata        models.Metadata        `json:"metadata"`
	Actor           string                 `json:"actor" validate:"omitempty,max=120"`
}

// UpdateStatusRequest moves a certificate to a new lifecycle status.
type UpdateStatusRequest struct {
	Status models.CertificateStatus `json:"status" validate:"required,oneof=active revoked expired"`
	Actor  string                   `json:"actor" validate:"omitempty,max=120"`
	Reason string                   `json:"reason" validate:"omitempty,max=500"`
}

// CertificateListQuery binds listing filters from the query string.
type CertificateListQuery struct {
	StudentID string                   `form:"student_id"`
	Type      models.CertificateType   `form:"type" validate:"omitempty,oneof=CAP PROFUNDO"`
	Status    models.CertificateStatus `form:"status" validate:"omitempty,oneof=active revoked expired"`
	Program   string                   `form:"program"`
	Year      int                      `form:"year" validate:"omitempty,min=1900,max=9999"`
	Page      int                      `form:"page" validate:"omitempty,min=1"`
	Limit     int                      `form:"limit" validate:"omitempty,min=1,max=100"`
}

// Filter converts the query into a repository filter.
func (q CertificateListQuery) Filter() models.CertificateFilter {
	return models.CertificateFilter{
		StudentID: q.StudentID,
		Type:      q.Type,
		Status:    q.Status,
		Program:   q.Program,
		Year:      q.Year,
		Page:      q.Page,
		PageSize:  q.Limit,
	}
}
