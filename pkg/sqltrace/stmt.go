package sqltrace

import (
	"context"
	"database/sql/driver"
	"errors"
)

type tracedStmt struct {
	driver.Stmt
	conn  *tracedConn
	id    int64
	query string
}

var (
	_ driver.StmtExecContext   = (*tracedStmt)(nil)
	_ driver.StmtQueryContext  = (*tracedStmt)(nil)
	_ driver.NamedValueChecker = (*tracedStmt)(nil)
)

var errNamedArgs = errors.New("sqltrace: driver does not support named parameters")

func (s *tracedStmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	ctx = s.conn.tracker().BeforeQuery(ctx, s.conn.id, s.id, s.conn.connector.name)
	res, err := execStmt(ctx, s.Stmt, args)
	s.conn.afterExec(s.id, s.query, res, err)
	return res, err
}

func (s *tracedStmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	tracker := s.conn.tracker()
	scoped := tracker.BeforeQuery(ctx, s.conn.id, s.id, s.conn.connector.name)
	rows, err := queryStmt(scoped, s.Stmt, args)
	tracker.AfterQuery(s.conn.id, s.id, s.query, err)
	if err != nil {
		return nil, err
	}
	return newTracedRows(ctx, rows, s.conn, s.id, false), nil
}

func (s *tracedStmt) CheckNamedValue(nv *driver.NamedValue) error {
	if checker, ok := s.Stmt.(driver.NamedValueChecker); ok {
		return checker.CheckNamedValue(nv)
	}
	return s.conn.CheckNamedValue(nv)
}

func (s *tracedStmt) Close() error {
	err := s.Stmt.Close()
	s.conn.tracker().AfterStatementClose(s.conn.id, s.id)
	return err
}

func execStmt(ctx context.Context, stmt driver.Stmt, args []driver.NamedValue) (driver.Result, error) {
	if e, ok := stmt.(driver.StmtExecContext); ok {
		return e.ExecContext(ctx, args)
	}
	values, err := namedValuesToValues(args)
	if err != nil {
		return nil, err
	}
	return stmt.Exec(values) //nolint:staticcheck
}

func queryStmt(ctx context.Context, stmt driver.Stmt, args []driver.NamedValue) (driver.Rows, error) {
	if q, ok := stmt.(driver.StmtQueryContext); ok {
		return q.QueryContext(ctx, args)
	}
	values, err := namedValuesToValues(args)
	if err != nil {
		return nil, err
	}
	return stmt.Query(values) //nolint:staticcheck
}

// stmtRows closes the one-off statement behind rows once they are closed.
type stmtRows struct {
	driver.Rows
	stmt driver.Stmt
}

func (r *stmtRows) Close() error {
	err := r.Rows.Close()
	if serr := r.stmt.Close(); err == nil {
		err = serr
	}
	return err
}

func namedValuesToValues(named []driver.NamedValue) ([]driver.Value, error) {
	values := make([]driver.Value, len(named))
	for i, nv := range named {
		if nv.Name != "" {
			return nil, errNamedArgs
		}
		values[i] = nv.Value
	}
	return values, nil
}
