package sqltrace

import (
	"context"
	"database/sql/driver"
	"errors"
)

type tracedConn struct {
	driver.Conn
	id        int64
	connector *connector
}

var (
	_ driver.ConnPrepareContext = (*tracedConn)(nil)
	_ driver.ConnBeginTx        = (*tracedConn)(nil)
	_ driver.ExecerContext      = (*tracedConn)(nil)
	_ driver.QueryerContext     = (*tracedConn)(nil)
	_ driver.Pinger             = (*tracedConn)(nil)
	_ driver.SessionResetter    = (*tracedConn)(nil)
	_ driver.Validator          = (*tracedConn)(nil)
	_ driver.NamedValueChecker  = (*tracedConn)(nil)
)

func (c *tracedConn) tracker() *Tracker {
	return c.connector.tracker
}

func (c *tracedConn) PrepareContext(ctx context.Context, query string) (driver.Stmt, error) {
	stmt, err := c.prepareBase(ctx, query)
	if err != nil {
		return nil, err
	}
	return &tracedStmt{Stmt: stmt, conn: c, id: c.connector.ids.Generate(), query: query}, nil
}

func (c *tracedConn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	var (
		tx  driver.Tx
		err error
	)
	if b, ok := c.Conn.(driver.ConnBeginTx); ok {
		tx, err = b.BeginTx(ctx, opts)
	} else {
		tx, err = c.Conn.Begin() //nolint:staticcheck
	}
	if err != nil {
		return nil, err
	}
	return &tracedTx{Tx: tx, conn: c}, nil
}

func (c *tracedConn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	execer, ok := c.Conn.(driver.ExecerContext)
	if !ok {
		return nil, driver.ErrSkip
	}

	stmtID := c.connector.ids.Generate()
	ctx = c.tracker().BeforeQuery(ctx, c.id, stmtID, c.connector.name)
	res, err := execer.ExecContext(ctx, query, args)
	if errors.Is(err, driver.ErrSkip) {
		res, err = c.execPrepared(ctx, query, args)
	}
	c.afterExec(stmtID, query, res, err)
	c.tracker().AfterStatementClose(c.id, stmtID)
	return res, err
}

func (c *tracedConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	queryer, ok := c.Conn.(driver.QueryerContext)
	if !ok {
		return nil, driver.ErrSkip
	}

	stmtID := c.connector.ids.Generate()
	scoped := c.tracker().BeforeQuery(ctx, c.id, stmtID, c.connector.name)
	rows, err := queryer.QueryContext(scoped, query, args)
	if errors.Is(err, driver.ErrSkip) {
		rows, err = c.queryPrepared(scoped, query, args)
	}
	c.tracker().AfterQuery(c.id, stmtID, query, err)
	if err != nil {
		c.tracker().AfterStatementClose(c.id, stmtID)
		return nil, err
	}
	return newTracedRows(ctx, rows, c, stmtID, true), nil
}

// execPrepared runs query through a one-off prepared statement when the
// driver declines the direct path with driver.ErrSkip. Running it here keeps
// the execution inside the statement span already opened for it.
func (c *tracedConn) execPrepared(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	stmt, err := c.prepareBase(ctx, query)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()
	return execStmt(ctx, stmt, args)
}

func (c *tracedConn) queryPrepared(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	stmt, err := c.prepareBase(ctx, query)
	if err != nil {
		return nil, err
	}
	rows, err := queryStmt(ctx, stmt, args)
	if err != nil {
		_ = stmt.Close()
		return nil, err
	}
	return &stmtRows{Rows: rows, stmt: stmt}, nil
}

func (c *tracedConn) prepareBase(ctx context.Context, query string) (driver.Stmt, error) {
	if p, ok := c.Conn.(driver.ConnPrepareContext); ok {
		return p.PrepareContext(ctx, query)
	}
	return c.Conn.Prepare(query)
}

func (c *tracedConn) afterExec(stmtID int64, query string, res driver.Result, err error) {
	if err == nil && res != nil {
		if n, rerr := res.RowsAffected(); rerr == nil {
			c.tracker().AddRowCount(c.id, stmtID, n)
		}
	}
	c.tracker().AfterQuery(c.id, stmtID, query, err)
}

func (c *tracedConn) Ping(ctx context.Context) error {
	if p, ok := c.Conn.(driver.Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

func (c *tracedConn) ResetSession(ctx context.Context) error {
	if r, ok := c.Conn.(driver.SessionResetter); ok {
		return r.ResetSession(ctx)
	}
	return nil
}

func (c *tracedConn) IsValid() bool {
	if v, ok := c.Conn.(driver.Validator); ok {
		return v.IsValid()
	}
	return true
}

func (c *tracedConn) CheckNamedValue(nv *driver.NamedValue) error {
	if checker, ok := c.Conn.(driver.NamedValueChecker); ok {
		return checker.CheckNamedValue(nv)
	}
	return driver.ErrSkip
}

func (c *tracedConn) Close() error {
	err := c.Conn.Close()
	c.tracker().AfterConnectionClose(c.id, err)
	return err
}
