package models

import (
	"fmt"
	"strings"
	"time"
)

// SequenceKey identifies one folio counter.
type SequenceKey struct {
	Prefix string
	Year   int
	Type   CertificateType
}

// Normalize trims and lowercases the prefix.
func (k SequenceKey) Normalize() SequenceKey {
	k.Prefix = strings.ToLower(strings.TrimSpace(k.Prefix))
	return k
}

// String renders the key as prefix_year_type.
func (k SequenceKey) String() string {
	return fmt.Sprintf("%s_%d_%s", k.Prefix, k.Year, k.Type)
}

// SequenceCounter is the persisted state of a folio counter.
type SequenceCounter struct {
	Prefix    string          `db:"prefix" json:"prefix"`
	Year      int             `db:"year" json:"year"`
	Type      CertificateType `db:"type" json:"type"`
	Current   int             `db:"current" json:"current"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}
