package spanner

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
)

var paramRegex = regexp.MustCompile(`@p\d+`)

// Stmt is the driver.Stmt adapter. Statements are rebuilt per execution,
// so preparing mutates no shared state.
type Stmt struct {
	closed bool
	conn   *Conn
	sql    string
}

func (s *Stmt) Close() error {
	if s.closed {
		return errors.New("statement is already closed")
	}

	s.closed = true

	return nil
}

func (s *Stmt) NumInput() int {
	params := map[string]struct{}{}

	for _, param := range paramRegex.FindAllString(s.sql, -1) {
		params[param] = struct{}{}
	}

	return len(params)
}

func (s *Stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.ExecContext(context.Background(), namedValues(args))
}

func (s *Stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	return s.conn.ExecContext(ctx, s.sql, args)
}

func (s *Stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.QueryContext(context.Background(), namedValues(args))
}

func (s *Stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.conn.QueryContext(ctx, s.sql, args)
}

func namedValues(args []driver.Value) []driver.NamedValue {
	named := make([]driver.NamedValue, len(args))

	for i, arg := range args {
		named[i] = driver.NamedValue{
			Ordinal: i + 1,
			Value:   arg,
		}
	}

	return named
}
