package service

import (
	"context"
	"fmt"
	"time"

	"github.com/jt828/go-span-tracing/internal/repository"
	"github.com/jt828/go-span-tracing/pkg/apperror"
	"github.com/jt828/go-span-tracing/pkg/model"
	"github.com/jt828/go-span-tracing/pkg/observability"
	"github.com/jt828/go-span-tracing/pkg/reactive"
	"github.com/jt828/go-span-tracing/pkg/snowflake"
	"github.com/jt828/go-span-tracing/pkg/spanscope"
)

const maxRecentProbes = 100

type ProbeService interface {
	// Watch probes the database every interval until the subscription is
	// cancelled or its context is done.
	Watch(ctx context.Context) reactive.Publisher[model.ProbeResult]
	ProbeOnce(ctx context.Context, sequence int64) model.ProbeResult
	Recent(ctx context.Context, limit int) ([]model.ProbeResult, error)
}

type probeService struct {
	uowFactory repository.UnitOfWorkFactory
	snowflake  snowflake.Snowflake
	tracer     observability.Tracer
	log        observability.Logger
	interval   time.Duration
}

func NewProbeService(
	uowFactory repository.UnitOfWorkFactory,
	snowflake snowflake.Snowflake,
	tracer observability.Tracer,
	log observability.Logger,
	interval time.Duration,
) ProbeService {
	return &probeService{
		uowFactory: uowFactory,
		snowflake:  snowflake,
		tracer:     tracer,
		log:        log,
		interval:   interval,
	}
}

func (s *probeService) Watch(ctx context.Context) reactive.Publisher[model.ProbeResult] {
	inv := spanscope.Invocation{
		Name:    "WatchDatabase",
		NewSpan: true,
		Log:     "probe",
		Tags:    map[string]string{"probe.interval": s.interval.String()},
	}
	return spanscope.Proceed(ctx, s.tracer, inv, func(context.Context) reactive.Publisher[model.ProbeResult] {
		return reactive.Map(reactive.Interval(s.interval), func(ctx context.Context, seq int64) (model.ProbeResult, error) {
			return s.ProbeOnce(ctx, seq), nil
		})
	}, spanscope.WithLogger(s.log))
}

// ProbeOnce never fails: an unreachable database is reported as an unhealthy
// result. Only healthy results are recorded.
func (s *probeService) ProbeOnce(ctx context.Context, sequence int64) model.ProbeResult {
	result := model.ProbeResult{
		Id:        s.snowflake.Generate(),
		Sequence:  sequence,
		CheckedAt: time.Now().UTC(),
	}

	uow, err := s.uowFactory.New(ctx)
	if err != nil {
		result.Error = observability.ErrorMessage(err)
		return result
	}

	latency, err := uow.ProbeRepository().Ping(ctx)
	result.Latency = latency
	if err != nil {
		result.Error = observability.ErrorMessage(err)
		_ = uow.Abort(ctx)
		return result
	}
	result.Healthy = true

	if err := uow.ProbeRepository().Insert(ctx, &result); err != nil {
		s.log.Warn("failed to record probe result", observability.Int64("sequence", sequence), observability.Err(err))
		_ = uow.Abort(ctx)
		return result
	}
	if err := uow.Commit(ctx); err != nil {
		s.log.Warn("failed to commit probe result", observability.Int64("sequence", sequence), observability.Err(err))
	}
	return result
}

func (s *probeService) Recent(ctx context.Context, limit int) ([]model.ProbeResult, error) {
	if limit <= 0 || limit > maxRecentProbes {
		return nil, fmt.Errorf("limit must be between 1 and %d: %w", maxRecentProbes, apperror.ErrInvalidArgument)
	}

	uow, err := s.uowFactory.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", apperror.ErrUnavailable)
	}

	results, err := uow.ProbeRepository().Recent(ctx, limit)
	if err != nil {
		_ = uow.Abort(ctx)
		return nil, err
	}

	if err := uow.Commit(ctx); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no probe results: %w", apperror.ErrNotFound)
	}
	return results, nil
}
