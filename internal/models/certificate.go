package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// CertificateType enumerates the kinds of certificate the institution issues.
type CertificateType string

const (
	// CertificateTypeCAP is a continuing-education capacitation certificate.
	CertificateTypeCAP CertificateType = "CAP"
	// CertificateTypeProfundo is an in-depth program certificate.
	CertificateTypeProfundo CertificateType = "PROFUNDO"
)

// Valid reports whether the type belongs to the closed set.
func (t CertificateType) Valid() bool {
	switch t {
	case CertificateTypeCAP, CertificateTypeProfundo:
		return true
	}
	return false
}

// CertificateStatus captures the lifecycle state of a certificate.
type CertificateStatus string

const (
	CertificateStatusActive  CertificateStatus = "active"
	CertificateStatusRevoked CertificateStatus = "revoked"
	CertificateStatusExpired CertificateStatus = "expired"
)

// Valid reports whether the status belongs to the closed set.
func (s CertificateStatus) Valid() bool {
	switch s {
	case CertificateStatusActive, CertificateStatusRevoked, CertificateStatusExpired:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed. Only
// active certificates may change; revoked and expired are terminal.
func (s CertificateStatus) CanTransitionTo(next CertificateStatus) bool {
	if s != CertificateStatusActive {
		return false
	}
	return next == CertificateStatusRevoked || next == CertificateStatusExpired
}

// Certificate is an issued credential. StudentName is a snapshot taken at
// issuance and is not kept in sync with the student record.
type Certificate struct {
	ID              string             `db:"id" json:"id"`
	Folio           string             `db:"folio" json:"folio"`
	StudentID       string             `db:"student_id" json:"student_id"`
	StudentName     string             `db:"student_name" json:"student_name"`
	Type            CertificateType    `db:"type" json:"type"`
	AcademicProgram string             `db:"academic_program" json:"academic_program"`
	IssueDate       time.Time          `db:"issue_date" json:"issue_date"`
	ExpirationDate  *time.Time         `db:"expiration_date" json:"expiration_date,omitempty"`
	Status          CertificateStatus  `db:"status" json:"status"`
	VerificationURL string             `db:"verification_url" json:"verification_url"`
	DocumentPath    *string            `db:"document_path" json:"document_path,omitempty"`
	TemplateID      *string            `db:"template_id" json:"template_id,omitempty"`
	Metadata        Metadata           `db:"metadata" json:"metadata"`
	History         CertificateHistory `db:"history" json:"history,omitempty"`
	CreatedAt       time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time          `db:"updated_at" json:"updated_at"`
}

// Certificate event actions.
const (
	CertificateActionIssued        = "issued"
	CertificateActionStatusChanged = "status_changed"
	CertificateActionArchived      = "document_archived"
)

// CertificateEvent records a lifecycle change.
type CertificateEvent struct {
	Action     string            `json:"action"`
	Actor      string            `json:"actor,omitempty"`
	FromStatus CertificateStatus `json:"from_status,omitempty"`
	ToStatus   CertificateStatus `json:"to_status,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	At         time.Time         `json:"at"`
}

// CertificateHistory is the ordered event log stored as JSONB.
type CertificateHistory []CertificateEvent

// Value implements driver.Valuer.
func (h CertificateHistory) Value() (driver.Value, error) {
	if h == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(h)
}

// Scan implements sql.Scanner.
func (h *CertificateHistory) Scan(src interface{}) error {
	raw, err := jsonBytes(src)
	if err != nil || raw == nil {
		*h = nil
		return err
	}
	return json.Unmarshal(raw, h)
}

// Metadata is an open bag of primitive values (string, number, bool).
type Metadata map[string]interface{}

// Validate rejects nested structures so the bag stays flat and portable.
func (m Metadata) Validate() error {
	for key, value := range m {
		if key == "" {
			return fmt.Errorf("metadata key must not be empty")
		}
		switch value.(type) {
		case nil, string, bool, float64, float32, int, int32, int64, json.Number:
		default:
			return fmt.Errorf("metadata %q must be a string, number or boolean", key)
		}
	}
	return nil
}

// String renders a metadata value for display.
func (m Metadata) String(key string) (string, bool) {
	value, ok := m[key]
	if !ok || value == nil {
		return "", false
	}
	switch v := value.(type) {
	case string:
		return v, true
	case float64:
		return formatFloat(v), true
	default:
		return fmt.Sprint(v), true
	}
}

// Value implements driver.Valuer.
func (m Metadata) Value() (driver.Value, error) {
	if m == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m)
}

// Scan implements sql.Scanner.
func (m *Metadata) Scan(src interface{}) error {
	raw, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if raw == nil {
		*m = Metadata{}
		return nil
	}
	out := Metadata{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return err
	}
	*m = out
	return nil
}

// CertificateFilter narrows certificate listings.
type CertificateFilter struct {
	StudentID string
	Type      CertificateType
	Status    CertificateStatus
	Program   string
	Year      int
	Page      int
	PageSize  int
}

func jsonBytes(src interface{}) ([]byte, error) {
	switch v := src.(type) {
	case nil:
		return nil, nil
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return nil, fmt.Errorf("unsupported json source %T", src)
	}
}

func formatFloat(v float64) string {
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%g", v)
}
