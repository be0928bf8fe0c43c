package models

import (
	"strings"
	"time"
)

// Student is the minimal profile a certificate points at. ID is the caller
// supplied enrollment number or national id, never generated.
type Student struct {
	ID         string    `db:"id" json:"id"`
	FirstName  string    `db:"first_name" json:"first_name"`
	LastName   string    `db:"last_name" json:"last_name"`
	Email      string    `db:"email" json:"email,omitempty"`
	NationalID string    `db:"national_id" json:"national_id,omitempty"`
	Program    string    `db:"program" json:"program,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (s Student) FullName() string {
	return strings.TrimSpace(s.FirstName + " " + s.LastName)
}

// StudentPatch lists fields that may be filled in when currently empty.
type StudentPatch struct {
	Email      string
	NationalID string
	Program    string
}

// Empty reports whether the patch carries nothing to apply.
func (p StudentPatch) Empty() bool {
	return p.Email == "" && p.NationalID == "" && p.Program == ""
}

// StudentFilter encapsulates allowed search parameters for listing students.
type StudentFilter struct {
	Search   string
	Page     int
	PageSize int
}
