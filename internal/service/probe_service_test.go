package service_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jt828/go-span-tracing/internal/repository"
	"github.com/jt828/go-span-tracing/internal/service"
	"github.com/jt828/go-span-tracing/pkg/apperror"
	"github.com/jt828/go-span-tracing/pkg/model"
	"github.com/jt828/go-span-tracing/pkg/observability"
	"github.com/jt828/go-span-tracing/pkg/observability/observabilitytest"
	"github.com/jt828/go-span-tracing/pkg/reactive"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockSnowflake struct {
	next atomic.Int64
}

func (m *mockSnowflake) Generate() int64 { return m.next.Add(1) }

type mockProbeRepository struct {
	pingFunc   func(ctx context.Context) (time.Duration, error)
	insertFunc func(ctx context.Context, result *model.ProbeResult) error
	recentFunc func(ctx context.Context, limit int) ([]model.ProbeResult, error)
}

func (m *mockProbeRepository) Ping(ctx context.Context) (time.Duration, error) {
	return m.pingFunc(ctx)
}

func (m *mockProbeRepository) Insert(ctx context.Context, result *model.ProbeResult) error {
	return m.insertFunc(ctx, result)
}

func (m *mockProbeRepository) Recent(ctx context.Context, limit int) ([]model.ProbeResult, error) {
	return m.recentFunc(ctx, limit)
}

type mockUnitOfWork struct {
	probeRepo repository.ProbeRepository
	commits   atomic.Int32
	aborts    atomic.Int32
	commitErr error
}

func (m *mockUnitOfWork) ProbeRepository() repository.ProbeRepository { return m.probeRepo }

func (m *mockUnitOfWork) Commit(ctx context.Context) error {
	m.commits.Add(1)
	return m.commitErr
}

func (m *mockUnitOfWork) Abort(ctx context.Context) error {
	m.aborts.Add(1)
	return nil
}

type mockUnitOfWorkFactory struct {
	newFunc func(ctx context.Context) (repository.UnitOfWork, error)
}

func (m *mockUnitOfWorkFactory) New(ctx context.Context) (repository.UnitOfWork, error) {
	return m.newFunc(ctx)
}

func healthyRepo(inserted *atomic.Int32) *mockProbeRepository {
	return &mockProbeRepository{
		pingFunc: func(ctx context.Context) (time.Duration, error) { return 2 * time.Millisecond, nil },
		insertFunc: func(ctx context.Context, result *model.ProbeResult) error {
			inserted.Add(1)
			return nil
		},
	}
}

func newService(uow *mockUnitOfWork, tracer observability.Tracer, interval time.Duration) service.ProbeService {
	factory := &mockUnitOfWorkFactory{newFunc: func(ctx context.Context) (repository.UnitOfWork, error) { return uow, nil }}
	return service.NewProbeService(factory, &mockSnowflake{}, tracer, observability.NopLogger(), interval)
}

// --- tests ---

func TestProbeService_ProbeOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy probe is recorded", func(t *testing.T) {
		var inserted atomic.Int32
		uow := &mockUnitOfWork{probeRepo: healthyRepo(&inserted)}
		svc := newService(uow, observabilitytest.NewTracer(), time.Second)

		result := svc.ProbeOnce(ctx, 4)

		assert.True(t, result.Healthy)
		assert.Equal(t, int64(4), result.Sequence)
		assert.Equal(t, 2*time.Millisecond, result.Latency)
		assert.NotZero(t, result.Id)
		assert.Equal(t, int32(1), inserted.Load())
		assert.Equal(t, int32(1), uow.commits.Load())
	})

	t.Run("failed ping aborts and reports unhealthy", func(t *testing.T) {
		uow := &mockUnitOfWork{probeRepo: &mockProbeRepository{
			pingFunc: func(ctx context.Context) (time.Duration, error) {
				return 0, errors.New("connection refused")
			},
		}}
		svc := newService(uow, observabilitytest.NewTracer(), time.Second)

		result := svc.ProbeOnce(ctx, 0)

		assert.False(t, result.Healthy)
		assert.Equal(t, "connection refused", result.Error)
		assert.Equal(t, int32(1), uow.aborts.Load())
		assert.Zero(t, uow.commits.Load())
	})

	t.Run("failed insert still reports the probe", func(t *testing.T) {
		uow := &mockUnitOfWork{probeRepo: &mockProbeRepository{
			pingFunc: func(ctx context.Context) (time.Duration, error) { return time.Millisecond, nil },
			insertFunc: func(ctx context.Context, result *model.ProbeResult) error {
				return errors.New("disk full")
			},
		}}
		svc := newService(uow, observabilitytest.NewTracer(), time.Second)

		result := svc.ProbeOnce(ctx, 0)

		assert.True(t, result.Healthy)
		assert.Equal(t, int32(1), uow.aborts.Load())
	})

	t.Run("begin failure reports unhealthy", func(t *testing.T) {
		factory := &mockUnitOfWorkFactory{newFunc: func(ctx context.Context) (repository.UnitOfWork, error) {
			return nil, errors.New("pool exhausted")
		}}
		svc := service.NewProbeService(factory, &mockSnowflake{}, observabilitytest.NewTracer(), observability.NopLogger(), time.Second)

		result := svc.ProbeOnce(ctx, 0)

		assert.False(t, result.Healthy)
		assert.Equal(t, "pool exhausted", result.Error)
	})
}

func TestProbeService_Watch(t *testing.T) {
	t.Run("emits probes inside one watch span", func(t *testing.T) {
		var inserted atomic.Int32
		uow := &mockUnitOfWork{probeRepo: healthyRepo(&inserted)}
		tracer := observabilitytest.NewTracer()
		svc := newService(uow, tracer, time.Millisecond)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		results, err := reactive.Collect(ctx, reactive.Take(svc.Watch(ctx), 3))
		require.NoError(t, err)

		require.Len(t, results, 3)
		for i, r := range results {
			assert.Equal(t, int64(i), r.Sequence)
			assert.True(t, r.Healthy)
		}

		spans := tracer.SpansNamed("watch-database")
		require.Len(t, spans, 1)
		assert.Equal(t, 1, spans[0].Starts())
		assert.Equal(t, 1, spans[0].Ends())
		assert.Equal(t, "1ms", spans[0].Tags()["probe.interval"])
		assert.Equal(t, []string{"probe.before", "probe.after"}, spans[0].Events())
		// the final signal returns through the operator after Collect has seen it
		require.Eventually(t, func() bool { return tracer.OpenScopes() == 0 }, time.Second, 10*time.Millisecond)
	})

	t.Run("watch completes when its context is done", func(t *testing.T) {
		var inserted atomic.Int32
		uow := &mockUnitOfWork{probeRepo: healthyRepo(&inserted)}
		tracer := observabilitytest.NewTracer()
		svc := newService(uow, tracer, time.Hour)

		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan struct{})
		reactive.SubscribeFunc(ctx, svc.Watch(ctx), nil, nil, func(context.Context) { close(done) })
		cancel()

		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("watch did not complete")
		}
		require.Eventually(t, func() bool {
			spans := tracer.SpansNamed("watch-database")
			return len(spans) == 1 && spans[0].Ends() == 1
		}, time.Second, 10*time.Millisecond)
	})
}

func TestProbeService_Recent(t *testing.T) {
	ctx := context.Background()

	t.Run("returns results", func(t *testing.T) {
		uow := &mockUnitOfWork{probeRepo: &mockProbeRepository{
			recentFunc: func(ctx context.Context, limit int) ([]model.ProbeResult, error) {
				assert.Equal(t, 5, limit)
				return []model.ProbeResult{{Id: 1}, {Id: 2}}, nil
			},
		}}
		svc := newService(uow, observabilitytest.NewTracer(), time.Second)

		results, err := svc.Recent(ctx, 5)
		require.NoError(t, err)
		assert.Len(t, results, 2)
		assert.Equal(t, int32(1), uow.commits.Load())
	})

	t.Run("invalid limit", func(t *testing.T) {
		svc := newService(&mockUnitOfWork{}, observabilitytest.NewTracer(), time.Second)

		_, err := svc.Recent(ctx, 0)
		assert.ErrorIs(t, err, apperror.ErrInvalidArgument)
		_, err = svc.Recent(ctx, 1000)
		assert.ErrorIs(t, err, apperror.ErrInvalidArgument)
	})

	t.Run("empty history is not found", func(t *testing.T) {
		uow := &mockUnitOfWork{probeRepo: &mockProbeRepository{
			recentFunc: func(ctx context.Context, limit int) ([]model.ProbeResult, error) { return nil, nil },
		}}
		svc := newService(uow, observabilitytest.NewTracer(), time.Second)

		_, err := svc.Recent(ctx, 1)
		assert.ErrorIs(t, err, apperror.ErrNotFound)
	})

	t.Run("repository error aborts", func(t *testing.T) {
		repoErr := errors.New("timeout")
		uow := &mockUnitOfWork{probeRepo: &mockProbeRepository{
			recentFunc: func(ctx context.Context, limit int) ([]model.ProbeResult, error) { return nil, repoErr },
		}}
		svc := newService(uow, observabilitytest.NewTracer(), time.Second)

		_, err := svc.Recent(ctx, 1)
		assert.ErrorIs(t, err, repoErr)
		assert.Equal(t, int32(1), uow.aborts.Load())
	})

	t.Run("begin failure is unavailable", func(t *testing.T) {
		factory := &mockUnitOfWorkFactory{newFunc: func(ctx context.Context) (repository.UnitOfWork, error) {
			return nil, errors.New("pool exhausted")
		}}
		svc := service.NewProbeService(factory, &mockSnowflake{}, observabilitytest.NewTracer(), observability.NopLogger(), time.Second)

		_, err := svc.Recent(ctx, 1)
		assert.ErrorIs(t, err, apperror.ErrUnavailable)
	})
}
