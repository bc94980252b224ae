package sqltrace

import (
	"context"
	"database/sql/driver"
	"io"
	"reflect"
)

type tracedRows struct {
	driver.Rows
	ctx    context.Context
	conn   *tracedConn
	stmtID int64
	id     int64
	// ownsStatement is set for direct queries, whose statement lives exactly
	// as long as its rows.
	ownsStatement bool
	count         int64
}

func newTracedRows(ctx context.Context, rows driver.Rows, conn *tracedConn, stmtID int64, ownsStatement bool) *tracedRows {
	return &tracedRows{
		Rows:          rows,
		ctx:           ctx,
		conn:          conn,
		stmtID:        stmtID,
		id:            conn.connector.ids.Generate(),
		ownsStatement: ownsStatement,
	}
}

func (r *tracedRows) Next(dest []driver.Value) error {
	r.conn.tracker().BeforeResultSetNext(r.ctx, r.conn.id, r.stmtID, r.id, r.conn.connector.name)
	err := r.Rows.Next(dest)
	if err == nil {
		r.count++
	}
	return err
}

func (r *tracedRows) Close() error {
	err := r.Rows.Close()
	tracker := r.conn.tracker()
	tracker.AfterResultSetClose(r.conn.id, r.id, r.count, err)
	if r.ownsStatement {
		tracker.AfterStatementClose(r.conn.id, r.stmtID)
	}
	return err
}

func (r *tracedRows) HasNextResultSet() bool {
	if rs, ok := r.Rows.(driver.RowsNextResultSet); ok {
		return rs.HasNextResultSet()
	}
	return false
}

func (r *tracedRows) NextResultSet() error {
	if rs, ok := r.Rows.(driver.RowsNextResultSet); ok {
		return rs.NextResultSet()
	}
	return io.EOF
}

func (r *tracedRows) ColumnTypeScanType(index int) reflect.Type {
	if ct, ok := r.Rows.(driver.RowsColumnTypeScanType); ok {
		return ct.ColumnTypeScanType(index)
	}
	return reflect.TypeOf(new(any)).Elem()
}

func (r *tracedRows) ColumnTypeDatabaseTypeName(index int) string {
	if ct, ok := r.Rows.(driver.RowsColumnTypeDatabaseTypeName); ok {
		return ct.ColumnTypeDatabaseTypeName(index)
	}
	return ""
}

func (r *tracedRows) ColumnTypeLength(index int) (int64, bool) {
	if ct, ok := r.Rows.(driver.RowsColumnTypeLength); ok {
		return ct.ColumnTypeLength(index)
	}
	return 0, false
}

func (r *tracedRows) ColumnTypeNullable(index int) (bool, bool) {
	if ct, ok := r.Rows.(driver.RowsColumnTypeNullable); ok {
		return ct.ColumnTypeNullable(index)
	}
	return false, false
}

func (r *tracedRows) ColumnTypePrecisionScale(index int) (int64, int64, bool) {
	if ct, ok := r.Rows.(driver.RowsColumnTypePrecisionScale); ok {
		return ct.ColumnTypePrecisionScale(index)
	}
	return 0, 0, false
}
