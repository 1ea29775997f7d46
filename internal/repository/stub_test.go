package repository

import (
	"context"
	"errors"
	"fmt"
	"reflect"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type stubPool struct {
	exec     func(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	query    func(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	queryRow func(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *stubPool) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if s.exec != nil {
		return s.exec(ctx, sql, args...)
	}
	return pgconn.CommandTag{}, errors.New("exec not implemented")
}

func (s *stubPool) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if s.query != nil {
		return s.query(ctx, sql, args...)
	}
	return nil, errors.New("query not implemented")
}

func (s *stubPool) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if s.queryRow != nil {
		return s.queryRow(ctx, sql, args...)
	}
	return stubRow{err: errors.New("query row not implemented")}
}

func (s *stubPool) BeginTx(context.Context, pgx.TxOptions) (pgx.Tx, error) {
	return nil, errors.New("transactions not supported by stub")
}

// stubRow scans a fixed set of values into pointer destinations of the same type.
type stubRow struct {
	values []any
	err    error
}

func (r stubRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	return assign(r.values, dest)
}

// stubRows iterates over fixed value sets.
type stubRows struct {
	rows [][]any
	idx  int
}

func (s *stubRows) Close()                                       {}
func (s *stubRows) Err() error                                   { return nil }
func (s *stubRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (s *stubRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (s *stubRows) Values() ([]any, error)                       { return nil, nil }
func (s *stubRows) RawValues() [][]byte                          { return nil }
func (s *stubRows) Conn() *pgx.Conn                              { return nil }

func (s *stubRows) Next() bool {
	if s.idx >= len(s.rows) {
		return false
	}
	s.idx++
	return true
}

func (s *stubRows) Scan(dest ...any) error {
	if s.idx == 0 {
		return errors.New("scan called before next")
	}
	return assign(s.rows[s.idx-1], dest)
}

func assign(values []any, dest []any) error {
	if len(values) != len(dest) {
		return errors.New("column count mismatch")
	}
	for i, v := range values {
		if err := assignOne(v, dest[i]); err != nil {
			return err
		}
	}
	return nil
}

func assignOne(value, dest any) error {
	dv := reflect.ValueOf(dest)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return fmt.Errorf("destination %T is not a pointer", dest)
	}
	vv := reflect.ValueOf(value)
	if !vv.IsValid() {
		dv.Elem().Set(reflect.Zero(dv.Elem().Type()))
		return nil
	}
	if !vv.Type().AssignableTo(dv.Elem().Type()) {
		return fmt.Errorf("cannot scan %T into %T", value, dest)
	}
	dv.Elem().Set(vv)
	return nil
}
