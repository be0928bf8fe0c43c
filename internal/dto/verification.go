package dto

import (
	"time"

	"github.com/noah-isme/sigce-api/internal/models"
)

// VerificationOutcome is the public classification of a certificate.
type VerificationOutcome string

const (
	VerificationValid    VerificationOutcome = "valid"
	VerificationInvalid  VerificationOutcome = "invalid"
	VerificationNotFound VerificationOutcome = "not_found"
)

// Verification lookup strategies, in resolution order.
const (
	MatchedByFolio          = "folio"
	MatchedByUppercaseFolio = "folio_uppercase"
	MatchedByCanonicalFolio = "folio_canonical"
	MatchedByID             = "id"
)

// VerificationResult is returned by the public verification endpoint.
type VerificationResult struct {
	Query       string               `json:"query"`
	Found       bool                 `json:"found"`
	Outcome     VerificationOutcome  `json:"outcome"`
	Reason      string               `json:"reason,omitempty"`
	MatchedBy   string               `json:"matched_by,omitempty"`
	Certificate *VerifiedCertificate `json:"certificate,omitempty"`
	CheckedAt   time.Time            `json:"checked_at"`
}

// Valid reports whether the certificate was found and is active.
func (r VerificationResult) Valid() bool {
	return r.Outcome == VerificationValid
}

// VerifiedCertificate is the public projection of a certificate.
type VerifiedCertificate struct {
	ID              string                   `json:"id"`
	Folio           string                   `json:"folio"`
	StudentName     string                   `json:"student_name"`
	Type            models.CertificateType   `json:"type"`
	AcademicProgram string                   `json:"academic_program"`
	IssueDate       time.Time                `json:"issue_date"`
	ExpirationDate  *time.Time               `json:"expiration_date,omitempty"`
	Status          models.CertificateStatus `json:"status"`
	VerificationURL string                   `json:"verification_url"`
}

// NewVerifiedCertificate projects a certificate for public display.
func NewVerifiedCertificate(cert *models.Certificate) *VerifiedCertificate {
	if cert == nil {
		return nil
	}
	return &VerifiedCertificate{
		ID:              cert.ID,
		Folio:           cert.Folio,
		StudentName:     cert.StudentName,
		Type:            cert.Type,
		AcademicProgram: cert.AcademicProgram,
		IssueDate:       cert.IssueDate,
		ExpirationDate:  cert.ExpirationDate,
		Status:          cert.Status,
		VerificationURL: cert.VerificationURL,
	}
}
