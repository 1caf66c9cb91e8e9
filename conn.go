package spanner

import (
	"context"
	"database/sql/driver"
	"errors"

	"github.com/eddumelendez/cloud-spanner-go/client"
)

// Conn adapts a Connection to database/sql. The client is owned by the
// conn and closed with it.
type Conn struct {
	client     client.Client
	connection *Connection
}

func (c *Conn) Prepare(sql string) (driver.Stmt, error) {
	return &Stmt{
		conn: c,
		sql:  sql,
	}, nil
}

func (c *Conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *Conn) BeginTx(ctx context.Context, opts driver.TxOptions) (driver.Tx, error) {
	if err := c.connection.BeginTransaction(ctx); err != nil {
		return nil, err
	}

	return &Tx{connection: c.connection}, nil
}

func (c *Conn) Close() error {
	err := c.connection.Close(context.Background())

	if closeErr := c.client.Close(); err == nil {
		err = closeErr
	}

	return err
}

func (c *Conn) ExecContext(ctx context.Context, sql string, args []driver.NamedValue) (driver.Result, error) {
	statement, err := bindArgs(c.connection.CreateStatement(sql), args)

	if err != nil {
		return nil, err
	}

	res, err := statement.Execute(ctx)

	if err != nil {
		return nil, err
	}

	affected, err := res.Discard(ctx)

	if err != nil {
		return nil, err
	}

	return &execResult{rowsAffected: affected}, nil
}

func (c *Conn) QueryContext(ctx context.Context, sql string, args []driver.NamedValue) (driver.Rows, error) {
	statement, err := bindArgs(c.connection.CreateStatement(sql), args)

	if err != nil {
		return nil, err
	}

	res, err := statement.Execute(ctx)

	if err != nil {
		return nil, err
	}

	columns, err := res.Columns(ctx)

	if err != nil {
		res.Stop()

		return nil, err
	}

	return &Rows{
		ctx:     ctx,
		result:  res,
		columns: columns,
	}, nil
}

func bindArgs(statement *Statement, args []driver.NamedValue) (*Statement, error) {
	for _, arg := range args {
		if arg.Name != "" {
			return nil, errors.New("named parameters are not supported, use positional @p1..@pN")
		}

		// Ordinal is one-based.
		statement.Bind(arg.Ordinal-1, arg.Value)
	}

	return statement, nil
}

// Tx is the single explicit transaction a connection can carry.
type Tx struct {
	connection *Connection
}

func (t *Tx) Commit() error {
	return t.connection.Commit(context.Background())
}

func (t *Tx) Rollback() error {
	return t.connection.Rollback(context.Background())
}

type execResult struct {
	rowsAffected int64
}

func (r *execResult) LastInsertId() (int64, error) {
	return 0, errors.New("last insert id is not supported")
}

func (r *execResult) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}
