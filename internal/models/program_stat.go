package models

import (
	"regexp"
	"strings"
	"time"
)

// ProgramStat aggregates certificates issued per academic program.
type ProgramStat struct {
	Key              string           `db:"key" json:"key"`
	Name             string           `db:"name" json:"name"`
	Type             *CertificateType `db:"type" json:"type,omitempty"`
	CertificateCount int              `db:"certificate_count" json:"certificate_count"`
	LastIssued       *time.Time       `db:"last_issued" json:"last_issued,omitempty"`
	UpdatedAt        time.Time        `db:"updated_at" json:"updated_at"`
}

const unknownProgramKey = "sin_programa"

var programKeyPattern = regexp.MustCompile(`[^a-z0-9]+`)

// ProgramKey slugifies a program name into its statistics key.
func ProgramKey(name string) string {
	key := programKeyPattern.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "_")
	key = strings.Trim(key, "_")
	if len(key) > 96 {
		key = key[:96]
	}
	if key == "" {
		return unknownProgramKey
	}
	return key
}
