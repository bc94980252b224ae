// Package sqltrace wraps a database/sql driver so that connections,
// statements and result sets are reported to a resource span tracker.
package sqltrace

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"

	"github.com/jackc/pgx/v5"
	"github.com/jt828/go-span-tracing/pkg/resourcespan"
	"github.com/jt828/go-span-tracing/pkg/snowflake"
)

// Tracker is the tracker flavour used by this package. Resources are keyed by
// generated ids rather than by the driver objects themselves.
type Tracker = resourcespan.Tracker[int64, int64, int64]

const defaultRemoteName = "database"

type Option func(*connector)

// WithName sets the remote service name used until the live connection
// reports a better one.
func WithName(name string) Option {
	return func(c *connector) {
		c.name = name
	}
}

// WithDSN exposes the data source name to the tracker for endpoint
// resolution. Credentials in it are never recorded.
func WithDSN(dsn string) Option {
	return func(c *connector) {
		c.dsn = dsn
	}
}

type connector struct {
	base    driver.Connector
	tracker *Tracker
	ids     snowflake.Snowflake
	name    string
	dsn     string
}

func NewConnector(base driver.Connector, tracker *Tracker, ids snowflake.Snowflake, opts ...Option) driver.Connector {
	c := &connector{
		base:    base,
		tracker: tracker,
		ids:     ids,
		name:    defaultRemoteName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *connector) Connect(ctx context.Context) (driver.Conn, error) {
	id := c.ids.Generate()
	ctx = c.tracker.BeforeGetConnection(ctx, id, c.base, c.name)

	conn, err := c.base.Connect(ctx)
	if err != nil {
		c.tracker.AfterGetConnection(ctx, id, nil, err)
		return nil, err
	}

	c.tracker.AfterGetConnection(ctx, id, &metadata{dsn: c.dsn, conn: conn}, nil)
	return &tracedConn{Conn: conn, id: id, connector: c}, nil
}

func (c *connector) Driver() driver.Driver {
	return c.base.Driver()
}

func (c *connector) Close() error {
	if closer, ok := c.base.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// DriverConnector adapts a driver and DSN into a Connector, preferring the
// driver's own connector when it offers one.
func DriverConnector(drv driver.Driver, dsn string) (driver.Connector, error) {
	if dc, ok := drv.(driver.DriverContext); ok {
		return dc.OpenConnector(dsn)
	}
	return &dsnConnector{driver: drv, dsn: dsn}, nil
}

type dsnConnector struct {
	driver driver.Driver
	dsn    string
}

func (c *dsnConnector) Connect(_ context.Context) (driver.Conn, error) {
	return c.driver.Open(c.dsn)
}

func (c *dsnConnector) Driver() driver.Driver {
	return c.driver
}

var errNoDSN = errors.New("data source name unavailable")

type metadata struct {
	dsn  string
	conn driver.Conn
}

func (m *metadata) URL() (string, error) {
	if m.dsn == "" {
		return "", errNoDSN
	}
	return m.dsn, nil
}

func (m *metadata) Catalog() (string, error) {
	if pc, ok := m.conn.(interface{ Conn() *pgx.Conn }); ok {
		return pc.Conn().Config().Database, nil
	}
	return "", nil
}
