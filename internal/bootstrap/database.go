package bootstrap

import (
	"database/sql"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jt828/go-span-tracing/internal/repository"
	"github.com/jt828/go-span-tracing/pkg/circuitbreaker"
	cbImpl "github.com/jt828/go-span-tracing/pkg/circuitbreaker/implementation"
	"github.com/jt828/go-span-tracing/pkg/observability"
	obsImpl "github.com/jt828/go-span-tracing/pkg/observability/implementation"
	"github.com/jt828/go-span-tracing/pkg/resourcespan"
	"github.com/jt828/go-span-tracing/pkg/retry"
	retryImpl "github.com/jt828/go-span-tracing/pkg/retry/implementation"
	"github.com/jt828/go-span-tracing/pkg/snowflake"
	"github.com/jt828/go-span-tracing/pkg/sqltrace"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

type Database struct {
	DB                *gorm.DB
	SQL               *sql.DB
	Tracker           *sqltrace.Tracker
	CircuitBreaker    circuitbreaker.CircuitBreaker
	UnitOfWorkFactory repository.UnitOfWorkFactory
}

func (d *Database) Close() error {
	return d.SQL.Close()
}

func InitializeTracker(cfg *Config, obs observability.Observability) (*sqltrace.Tracker, error) {
	types, err := cfg.TraceTypes()
	if err != nil {
		return nil, err
	}
	return resourcespan.NewTracker[int64, int64, int64](obs.Tracer(),
		resourcespan.WithTraceTypes(types...),
		resourcespan.WithRollbackAsError(cfg.Tracing.RollbackAsError),
		resourcespan.WithLogger(obs.Logger().With(observability.String("component", "resourcespan"))),
		resourcespan.WithMeter(obs.Meter()),
	), nil
}

// InitializeDatabase opens postgres through the pgx driver wrapped by the
// tracing connector, so every connection, statement and result set is traced.
func InitializeDatabase(cfg DatabaseConfig, tracker *sqltrace.Tracker, ids snowflake.Snowflake, obs observability.Observability) (*Database, error) {
	pgxCfg, err := pgx.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse database dsn: %w", err)
	}
	// only meaningful to the tracer; postgres rejects unknown startup parameters
	delete(pgxCfg.RuntimeParams, resourcespan.ServiceNameParam)

	connector := sqltrace.NewConnector(stdlib.GetConnector(*pgxCfg), tracker, ids,
		sqltrace.WithName(cfg.Name),
		sqltrace.WithDSN(cfg.DSN),
	)
	sqlDB := sql.OpenDB(connector)
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxOpenConns)
	}

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	if err := db.Use(obsImpl.NewGormTracingPlugin(obs.Tracer(), obs.Meter())); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	log := obs.Logger()
	cb := cbImpl.NewCircuitBreaker(cfg.Name,
		circuitbreaker.WithMaxConsecutiveFailures(5),
		circuitbreaker.WithOpenTimeout(10*time.Second),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			log.Warn("circuit breaker state changed",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
		}),
	)

	r := retryImpl.NewRetry(
		retry.WithMaxRetries(3),
		retry.WithInterval(100*time.Millisecond),
		retry.WithMaxInterval(time.Second),
		retry.WithRetryable(IsRetryableDBError),
	)

	return &Database{
		DB:                db,
		SQL:               sqlDB,
		Tracker:           tracker,
		CircuitBreaker:    cb,
		UnitOfWorkFactory: repository.NewTransactionDbUnitOfWorkFactory(db, cb, r),
	}, nil
}

func IsRetryableDBError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001": // serialization_failure
			return true
		case "40P01": // deadlock_detected
			return true
		case "08006": // connection_failure
			return true
		case "08001": // sqlclient_unable_to_establish_sqlconnection
			return true
		case "08004": // sqlserver_rejected_establishment_of_sqlconnection
			return true
		}
	}

	var netErr *net.OpError
	return errors.As(err, &netErr)
}
