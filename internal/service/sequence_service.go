package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sigce-api/internal/models"
	"github.com/noah-isme/sigce-api/internal/repository"
	appErrors "github.com/noah-isme/sigce-api/pkg/errors"
)

// SequenceReserver hands out the next number for a folio counter.
type SequenceReserver interface {
	ReserveNext(ctx context.Context, key models.SequenceKey) (int, error)
}

type sequenceCounter interface {
	CountForSequence(ctx context.Context, key models.SequenceKey) (int, error)
}

type sequenceFloorSource interface {
	SequenceFloors(ctx context.Context) ([]models.SequenceCounter, error)
}

// SequenceSeeder raises a counter to at least a floor.
type SequenceSeeder interface {
	Seed(ctx context.Context, key models.SequenceKey, floor int) error
}

// SequenceConfig tunes reservation behaviour.
type SequenceConfig struct {
	Backend string
	Timeout time.Duration
	Retries int
	Backoff time.Duration
}

// SequenceService reserves folio sequence numbers with a deadline and
// bounded retries over any reserver.
type SequenceService struct {
	reserver SequenceReserver
	cfg      SequenceConfig
	metrics  *MetricsService
	logger   *zap.Logger
	sleep    func(context.Context, time.Duration) error
}

// NewSequenceService wraps reserver.
func NewSequenceService(reserver SequenceReserver, cfg SequenceConfig, metrics *MetricsService, logger *zap.Logger) *SequenceService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.Retries < 0 {
		cfg.Retries = 0
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = 50 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SequenceService{reserver: reserver, cfg: cfg, metrics: metrics, logger: logger, sleep: sleepContext}
}

// CollisionSafe reports whether the underlying reserver guarantees unique numbers.
func (s *SequenceService) CollisionSafe() bool {
	if c, ok := s.reserver.(interface{ CollisionSafe() bool }); ok {
		return c.CollisionSafe()
	}
	return true
}

// ReserveNext returns the next sequence for key. Exhausted retries and
// deadlines surface as appErrors.ErrReservationUnavailable.
func (s *SequenceService) ReserveNext(ctx context.Context, key models.SequenceKey) (int, error) {
	key = key.Normalize()
	start := time.Now()

	var lastErr error
	for attempt := 0; attempt <= s.cfg.Retries; attempt++ {
		if attempt > 0 {
			if err := s.sleep(ctx, s.cfg.Backoff*time.Duration(attempt)); err != nil {
				lastErr = err
				break
			}
		}
		next, err := s.reserveOnce(ctx, key)
		if err == nil {
			s.metrics.ObserveReservation(s.cfg.Backend, "ok", time.Since(start))
			return next, nil
		}
		lastErr = err
		if !isRetryableReservation(err) || ctx.Err() != nil {
			break
		}
		s.logger.Warn("folio reservation conflict, retrying",
			zap.String("key", key.String()),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	s.metrics.ObserveReservation(s.cfg.Backend, "failed", time.Since(start))
	s.logger.Error("folio reservation failed", zap.String("key", key.String()), zap.Error(lastErr))
	return 0, appErrors.WrapAs(lastErr, appErrors.ErrReservationUnavailable, "")
}

func (s *SequenceService) reserveOnce(ctx context.Context, key models.SequenceKey) (int, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()
	next, err := s.reserver.ReserveNext(attemptCtx, key)
	if err != nil {
		return 0, err
	}
	if next < 1 {
		return 0, errors.New("reserver returned a non-positive sequence")
	}
	return next, nil
}

// SeedSequences raises every counter to the highest sequence already issued
// under its key, so a registry moved onto a new backend continues after its
// existing folios. It returns the number of keys seeded.
func SeedSequences(ctx context.Context, source sequenceFloorSource, seeder SequenceSeeder, logger *zap.Logger) (int, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	floors, err := source.SequenceFloors(ctx)
	if err != nil {
		return 0, err
	}
	seeded := 0
	for _, floor := range floors {
		if floor.Current < 1 {
			continue
		}
		key := models.SequenceKey{Prefix: floor.Prefix, Year: floor.Year, Type: floor.Type}.Normalize()
		if err := seeder.Seed(ctx, key, floor.Current); err != nil {
			return seeded, err
		}
		seeded++
	}
	logger.Info("folio sequences seeded from registry", zap.Int("keys", seeded))
	return seeded, nil
}

func isRetryableReservation(err error) bool {
	return repository.IsTransientConflict(err) || errors.Is(err, context.DeadlineExceeded)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// CountingReserver derives the next sequence from the number of stored
// certificates. Concurrent issuances on one key can receive the same number;
// it exists for registries that predate the counter table.
type CountingReserver struct {
	counter sequenceCounter
	logger  *zap.Logger
}

// NewCountingReserver builds the counting fallback and warns that it is unsafe.
func NewCountingReserver(counter sequenceCounter, logger *zap.Logger) *CountingReserver {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Warn("folio sequence backend 'count' is not collision-safe under concurrent issuance")
	return &CountingReserver{counter: counter, logger: logger}
}

// CollisionSafe is always false.
func (r *CountingReserver) CollisionSafe() bool { return false }

// ReserveNext returns count+1 for key.
func (r *CountingReserver) ReserveNext(ctx context.Context, key models.SequenceKey) (int, error) {
	count, err := r.counter.CountForSequence(ctx, key)
	if err != nil {
		return 0, err
	}
	r.logger.Warn("issuing folio from certificate count", zap.String("key", key.String()), zap.Int("next", count+1))
	return count + 1, nil
}
