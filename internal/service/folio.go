package service

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/noah-isme/sigce-api/internal/models"
)

// DefaultFolioPrefix is used when neither the request nor config names one.
const DefaultFolioPrefix = "sigce"

// Folios carry a four digit year.
const (
	minFolioYear = 1000
	maxFolioYear = 9999
)

var folioPattern = regexp.MustCompile(`^([A-Za-z0-9]+)-(\d{4})-([A-Za-z]+)-(\d{4,})$`)

// FormatFolio renders <prefix>-<year>-<type>-<seq>, zero padding seq to four
// digits. Larger sequences widen the field.
func FormatFolio(prefix string, year int, certType models.CertificateType, seq int) string {
	return fmt.Sprintf("%s-%d-%s-%04d", prefix, year, certType, seq)
}

// NormalizePrefix trims and lowercases prefix, falling back to fallback and
// then DefaultFolioPrefix when empty.
func NormalizePrefix(prefix, fallback string) string {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if prefix != "" {
		return prefix
	}
	fallback = strings.ToLower(strings.TrimSpace(fallback))
	if fallback != "" {
		return fallback
	}
	return DefaultFolioPrefix
}

// ParsedFolio is the decomposed form of a folio string.
type ParsedFolio struct {
	Prefix   string
	Year     int
	Type     models.CertificateType
	Sequence int
}

// ParseFolio splits a folio into its parts. The type is uppercased and the
// prefix lowercased; ok is false when the string does not have folio shape.
func ParseFolio(folio string) (ParsedFolio, bool) {
	m := folioPattern.FindStringSubmatch(strings.TrimSpace(folio))
	if m == nil {
		return ParsedFolio{}, false
	}
	year, err := strconv.Atoi(m[2])
	if err != nil {
		return ParsedFolio{}, false
	}
	seq, err := strconv.Atoi(m[4])
	if err != nil || seq < 1 {
		return ParsedFolio{}, false
	}
	certType := models.CertificateType(strings.ToUpper(m[3]))
	if !certType.Valid() {
		return ParsedFolio{}, false
	}
	return ParsedFolio{Prefix: strings.ToLower(m[1]), Year: year, Type: certType, Sequence: seq}, true
}

// CanonicalFolio rebuilds folio with a lowercase prefix and uppercase type.
func CanonicalFolio(folio string) (string, bool) {
	parsed, ok := ParseFolio(folio)
	if !ok {
		return "", false
	}
	return FormatFolio(parsed.Prefix, parsed.Year, parsed.Type, parsed.Sequence), true
}
