package storage

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const downloadIssuer = "sigce-api/documents"

// ErrTokenExpired is returned by Parse for a well-signed but expired token.
var ErrTokenExpired = errors.New("download token expired")

// DownloadClaims identify one archived certificate document.
type DownloadClaims struct {
	CertificateID string `json:"cid"`
	Path          string `json:"path"`
	jwt.RegisteredClaims
}

// DocumentTokenSigner issues short-lived HS256 tokens granting access to an
// archived document.
type DocumentTokenSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewDocumentTokenSigner constructs a signer with the provided secret and TTL.
func NewDocumentTokenSigner(secret string, ttl time.Duration) *DocumentTokenSigner {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &DocumentTokenSigner{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Generate returns a signed token for the certificate document at relPath.
func (s *DocumentTokenSigner) Generate(certificateID, relPath string) (string, time.Time, error) {
	if certificateID == "" || relPath == "" {
		return "", time.Time{}, fmt.Errorf("certificate id and path required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	issuedAt := s.now().UTC()
	expiresAt := issuedAt.Add(s.ttl)
	claims := DownloadClaims{
		CertificateID: certificateID,
		Path:          relPath,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    downloadIssuer,
			Subject:   certificateID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign download token: %w", err)
	}
	return token, expiresAt.Truncate(time.Second), nil
}

// Parse validates token and returns its claims.
func (s *DocumentTokenSigner) Parse(token string) (*DownloadClaims, error) {
	claims := &DownloadClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(downloadIssuer),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("parse download token: %w", err)
	}
	if !parsed.Valid || claims.CertificateID == "" || claims.Path == "" {
		return nil, fmt.Errorf("parse download token: incomplete claims")
	}
	return claims, nil
}
