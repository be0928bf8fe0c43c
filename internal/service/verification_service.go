package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/sigce-api/internal/dto"
	"github.com/noah-isme/sigce-api/internal/models"
	appErrors "github.com/noah-isme/sigce-api/pkg/errors"
)

const verificationCachePrefix = "verify:"

type certificateFinder interface {
	FindByFolio(ctx context.Context, folio string) (*models.Certificate, error)
	FindByID(ctx context.Context, id string) (*models.Certificate, error)
}

type verificationCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Invalidate(ctx context.Context, keys ...string)
}

// VerificationService resolves public verification queries.
type VerificationService struct {
	certs   certificateFinder
	cache   verificationCache
	ttl     time.Duration
	metrics *MetricsService
	logger  *zap.Logger
	now     func() time.Time
}

// NewVerificationService constructs the resolver. cache may be nil.
func NewVerificationService(certs certificateFinder, cache verificationCache, ttl time.Duration, metrics *MetricsService, logger *zap.Logger) *VerificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VerificationService{certs: certs, cache: cache, ttl: ttl, metrics: metrics, logger: logger, now: time.Now}
}

type lookupStep struct {
	matchedBy string
	run       func(ctx context.Context) (*models.Certificate, error)
}

// Resolve finds the certificate a query refers to, trying the exact folio,
// the uppercased folio, the canonical folio and finally the internal id.
// A miss is a result with Found=false, not an error. Only certificates in a
// terminal status are cached; an active one may be revoked mid-lookup.
func (s *VerificationService) Resolve(ctx context.Context, query string) (*dto.VerificationResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "verification query is required")
	}

	var cached dto.VerificationResult
	if s.cache != nil && s.cache.Get(ctx, verificationCacheKey(query), &cached) {
		cached.Query = query
		cached.CheckedAt = s.now().UTC()
		s.metrics.RecordVerification(string(cached.Outcome))
		return &cached, nil
	}

	cert, matchedBy, err := s.lookup(ctx, query)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify certificate")
	}
	result := Classify(query, cert, matchedBy, s.now().UTC())
	s.metrics.RecordVerification(string(result.Outcome))

	if s.cache != nil && cacheable(cert) {
		s.cache.Set(ctx, verificationCacheKey(query), result, s.ttl)
	}
	return result, nil
}

func (s *VerificationService) lookup(ctx context.Context, query string) (*models.Certificate, string, error) {
	steps := []lookupStep{{
		matchedBy: dto.MatchedByFolio,
		run:       func(ctx context.Context) (*models.Certificate, error) { return s.certs.FindByFolio(ctx, query) },
	}}
	if upper := strings.ToUpper(query); upper != query {
		steps = append(steps, lookupStep{
			matchedBy: dto.MatchedByUppercaseFolio,
			run:       func(ctx context.Context) (*models.Certificate, error) { return s.certs.FindByFolio(ctx, upper) },
		})
	}
	if canonical, ok := CanonicalFolio(query); ok && canonical != query && canonical != strings.ToUpper(query) {
		steps = append(steps, lookupStep{
			matchedBy: dto.MatchedByCanonicalFolio,
			run:       func(ctx context.Context) (*models.Certificate, error) { return s.certs.FindByFolio(ctx, canonical) },
		})
	}
	if id, err := uuid.Parse(query); err == nil {
		steps = append(steps, lookupStep{
			matchedBy: dto.MatchedByID,
			run:       func(ctx context.Context) (*models.Certificate, error) { return s.certs.FindByID(ctx, id.String()) },
		})
	}

	for _, step := range steps {
		cert, err := step.run(ctx)
		if err != nil {
			return nil, "", err
		}
		if cert != nil {
			return cert, step.matchedBy, nil
		}
	}
	return nil, "", nil
}

// cacheable reports whether cert has reached a status it can never leave.
func cacheable(cert *models.Certificate) bool {
	return cert != nil && cert.Status != models.CertificateStatusActive
}

// Classify builds the public verification result for cert.
func Classify(query string, cert *models.Certificate, matchedBy string, checkedAt time.Time) *dto.VerificationResult {
	result := &dto.VerificationResult{Query: query, CheckedAt: checkedAt}
	if cert == nil {
		result.Outcome = dto.VerificationNotFound
		return result
	}
	result.Found = true
	result.MatchedBy = matchedBy
	result.Certificate = dto.NewVerifiedCertificate(cert)
	if cert.Status == models.CertificateStatusActive {
		result.Outcome = dto.VerificationValid
	} else {
		result.Outcome = dto.VerificationInvalid
		result.Reason = string(cert.Status)
	}
	return result
}

// Invalidate drops cached results for every query form that can reach cert.
func (s *VerificationService) Invalidate(ctx context.Context, cert *models.Certificate) {
	if s.cache == nil || cert == nil {
		return
	}
	s.cache.Invalidate(ctx,
		verificationCacheKey(cert.Folio),
		verificationCacheKey(strings.ToUpper(cert.Folio)),
		verificationCacheKey(cert.ID),
	)
}

// verificationCacheKey folds every spelling of a folio onto its canonical form
// so invalidation can reach all of them.
func verificationCacheKey(query string) string {
	if canonical, ok := CanonicalFolio(query); ok {
		return verificationCachePrefix + canonical
	}
	return verificationCachePrefix + strings.ToLower(query)
}
