package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sigce-api/internal/models"
	"github.com/noah-isme/sigce-api/internal/repository"
	appErrors "github.com/noah-isme/sigce-api/pkg/errors"
)

func noSleep(context.Context, time.Duration) error { return nil }

func TestSequenceServiceRetriesTransientConflicts(t *testing.T) {
	reserver := newMemSequences()
	reserver.errs = []error{&pq.Error{Code: "40001"}, &pq.Error{Code: "40P01"}}
	svc := NewSequenceService(reserver, SequenceConfig{Backend: "postgres", Retries: 3}, nil, nil)
	svc.sleep = noSleep

	key := models.SequenceKey{Prefix: " SIGCE ", Year: 2026, Type: models.CertificateTypeCAP}
	next, err := svc.ReserveNext(context.Background(), key)
	require.NoError(t, err)
	assert.Equal(t, 1, next)
	assert.Equal(t, 3, reserver.calls)
	assert.Equal(t, 1, reserver.counters["sigce_2026_CAP"])
}

func TestSequenceServiceStopsOnPermanentError(t *testing.T) {
	reserver := newMemSequences()
	reserver.errs = []error{errors.New("relation folio_counters does not exist")}
	svc := NewSequenceService(reserver, SequenceConfig{Retries: 3}, nil, nil)
	svc.sleep = noSleep

	_, err := svc.ReserveNext(context.Background(), models.SequenceKey{Prefix: "sigce", Year: 2026, Type: models.CertificateTypeCAP})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrReservationUnavailable))
	assert.True(t, appErrors.IsRetryable(err))
	assert.Equal(t, 1, reserver.calls)
}

func TestSequenceServiceExhaustsRetries(t *testing.T) {
	reserver := newMemSequences()
	conflict := &pq.Error{Code: "55P03"}
	reserver.errs = []error{conflict, conflict, conflict}
	svc := NewSequenceService(reserver, SequenceConfig{Retries: 2}, nil, nil)
	svc.sleep = noSleep

	_, err := svc.ReserveNext(context.Background(), models.SequenceKey{Prefix: "sigce", Year: 2026, Type: models.CertificateTypeCAP})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrReservationUnavailable))
	assert.Equal(t, 3, reserver.calls)
}

type blockingReserver struct{}

func (blockingReserver) ReserveNext(ctx context.Context, key models.SequenceKey) (int, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestSequenceServiceTimesOut(t *testing.T) {
	svc := NewSequenceService(blockingReserver{}, SequenceConfig{Timeout: 10 * time.Millisecond}, nil, nil)

	start := time.Now()
	_, err := svc.ReserveNext(context.Background(), models.SequenceKey{Prefix: "sigce", Year: 2026, Type: models.CertificateTypeCAP})
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrReservationUnavailable))
	assert.Less(t, time.Since(start), time.Second)
}

func TestCountingReserverIsNotCollisionSafe(t *testing.T) {
	repo := newMemCertificateRepo()
	repo.put(models.Certificate{Folio: "sigce-2026-CAP-0001"})
	repo.put(models.Certificate{Folio: "sigce-2026-CAP-0002"})
	repo.put(models.Certificate{Folio: "sigce-2026-PROFUNDO-0001"})

	reserver := NewCountingReserver(repo, nil)
	svc := NewSequenceService(reserver, SequenceConfig{Backend: "count"}, nil, nil)
	assert.False(t, svc.CollisionSafe())

	next, err := svc.ReserveNext(context.Background(), models.SequenceKey{Prefix: "sigce", Year: 2026, Type: models.CertificateTypeCAP})
	require.NoError(t, err)
	assert.Equal(t, 3, next)

	assert.True(t, NewSequenceService(newMemSequences(), SequenceConfig{}, nil, nil).CollisionSafe())
}

type staticFloors struct {
	floors []models.SequenceCounter
	err    error
}

func (s staticFloors) SequenceFloors(ctx context.Context) ([]models.SequenceCounter, error) {
	return s.floors, s.err
}

func TestSeedSequencesResumesAfterExistingFolios(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	counters := repository.NewRedisSequenceRepository(client)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := counters.ReserveNext(ctx, models.SequenceKey{Prefix: "legacy", Year: 2019, Type: models.CertificateTypeProfundo})
		require.NoError(t, err)
	}

	source := staticFloors{floors: []models.SequenceCounter{
		{Prefix: "SIGCE", Year: 2026, Type: models.CertificateTypeCAP, Current: 118},
		{Prefix: "legacy", Year: 2019, Type: models.CertificateTypeProfundo, Current: 3},
		{Prefix: "sigce", Year: 2025, Type: models.CertificateTypeCAP, Current: 0},
	}}
	seeded, err := SeedSequences(ctx, source, counters, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, seeded)

	svc := NewSequenceService(counters, SequenceConfig{Backend: "redis"}, nil, nil)
	next, err := svc.ReserveNext(ctx, models.SequenceKey{Prefix: "sigce", Year: 2026, Type: models.CertificateTypeCAP})
	require.NoError(t, err)
	assert.Equal(t, 119, next)

	next, err = svc.ReserveNext(ctx, models.SequenceKey{Prefix: "legacy", Year: 2019, Type: models.CertificateTypeProfundo})
	require.NoError(t, err)
	assert.Equal(t, 11, next)
	assert.False(t, mr.Exists("folio:seq:sigce:2025:CAP"))
}

func TestSeedSequencesPropagatesSourceError(t *testing.T) {
	_, err := SeedSequences(context.Background(), staticFloors{err: errors.New("connection refused")}, nil, nil)
	assert.Error(t, err)
}
