package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jt828/go-span-tracing/pkg/circuitbreaker"
	"github.com/jt828/go-span-tracing/pkg/model"
	"github.com/jt828/go-span-tracing/pkg/retry"
	"gorm.io/gorm"
)

type ProbeRepository interface {
	Ping(ctx context.Context) (time.Duration, error)
	Insert(ctx context.Context, result *model.ProbeResult) error
	Recent(ctx context.Context, limit int) ([]model.ProbeResult, error)
}

type ProbeRepositoryImpl struct {
	db    *gorm.DB
	cb    circuitbreaker.CircuitBreaker
	retry retry.Retry
}

func NewProbeRepository(db *gorm.DB, cb circuitbreaker.CircuitBreaker, retry retry.Retry) ProbeRepository {
	return &ProbeRepositoryImpl{db: db, cb: cb, retry: retry}
}

// Ping is not retried: a probe reports the database as it is right now.
func (r *ProbeRepositoryImpl) Ping(ctx context.Context) (time.Duration, error) {
	result, err := r.cb.Execute(func() (any, error) {
		start := time.Now()
		var one int
		if err := r.db.WithContext(ctx).Raw("SELECT 1").Scan(&one).Error; err != nil {
			return time.Since(start), err
		}
		if one != 1 {
			return time.Since(start), fmt.Errorf("unexpected probe result %d", one)
		}
		return time.Since(start), nil
	})
	latency, _ := result.(time.Duration)
	return latency, err
}

func (r *ProbeRepositoryImpl) Insert(ctx context.Context, result *model.ProbeResult) error {
	_, err := r.cb.Execute(func() (any, error) {
		err := r.retry.Execute(ctx, func() error {
			entity := model.NewProbeDataEntity(*result)
			return r.db.WithContext(ctx).Create(&entity).Error
		})
		return nil, err
	})
	return err
}

func (r *ProbeRepositoryImpl) Recent(ctx context.Context, limit int) ([]model.ProbeResult, error) {
	result, err := r.cb.Execute(func() (any, error) {
		var results []model.ProbeResult
		err := r.retry.Execute(ctx, func() error {
			var entities []model.ProbeDataEntity
			if err := r.db.WithContext(ctx).Order("checked_at DESC").Limit(limit).Find(&entities).Error; err != nil {
				return err
			}
			results = make([]model.ProbeResult, 0, len(entities))
			for i := range entities {
				results = append(results, entities[i].ToDomain())
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
		return results, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]model.ProbeResult), nil
}
