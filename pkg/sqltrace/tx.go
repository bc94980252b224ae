package sqltrace

import "database/sql/driver"

type tracedTx struct {
	driver.Tx
	conn *tracedConn
}

func (t *tracedTx) Commit() error {
	err := t.Tx.Commit()
	t.conn.tracker().AfterCommit(t.conn.id, err)
	return err
}

func (t *tracedTx) Rollback() error {
	err := t.Tx.Rollback()
	t.conn.tracker().AfterRollback(t.conn.id, err)
	return err
}
