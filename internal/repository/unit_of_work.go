package repository

import (
	"context"
	"sync"

	"github.com/jt828/go-span-tracing/pkg/circuitbreaker"
	"github.com/jt828/go-span-tracing/pkg/retry"
	"gorm.io/gorm"
)

type UnitOfWork interface {
	Commit(ctx context.Context) error
	Abort(ctx context.Context) error
	ProbeRepository() ProbeRepository
}

type transactionDbUnitOfWork struct {
	tx                  *gorm.DB
	cb                  circuitbreaker.CircuitBreaker
	retry               retry.Retry
	probeRepository     ProbeRepository
	probeRepositoryOnce sync.Once
}

func (u *transactionDbUnitOfWork) ProbeRepository() ProbeRepository {
	u.probeRepositoryOnce.Do(func() {
		u.probeRepository = NewProbeRepository(u.tx, u.cb, u.retry)
	})
	return u.probeRepository
}

func (u *transactionDbUnitOfWork) Commit(ctx context.Context) error {
	return u.tx.WithContext(ctx).Commit().Error
}

func (u *transactionDbUnitOfWork) Abort(ctx context.Context) error {
	return u.tx.WithContext(ctx).Rollback().Error
}
