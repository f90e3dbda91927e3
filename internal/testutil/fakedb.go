package testutil

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Call records one statement sent to a FakeDB.
type Call struct {
	SQL  string
	Args []any
}

// FakeDB is an in-memory stand-in for a pgx pool. Each hook sees the SQL and
// arguments; unset hooks succeed with no rows.
type FakeDB struct {
	ExecFunc  func(sql string, args []any) (pgconn.CommandTag, error)
	QueryFunc func(sql string, args []any) ([][]any, error)

	mu    sync.Mutex
	calls []Call
}

func (db *FakeDB) record(sql string, args []any) {
	db.mu.Lock()
	defer db.mu.Unlock()
	db.calls = append(db.calls, Call{SQL: sql, Args: args})
}

// Calls returns every statement seen so far.
func (db *FakeDB) Calls() []Call {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]Call(nil), db.calls...)
}

// CallsMatching returns statements containing substr.
func (db *FakeDB) CallsMatching(substr string) []Call {
	var out []Call
	for _, c := range db.Calls() {
		if strings.Contains(c.SQL, substr) {
			out = append(out, c)
		}
	}
	return out
}

func (db *FakeDB) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	db.record(sql, args)
	if err := ctx.Err(); err != nil {
		return pgconn.CommandTag{}, err
	}
	if db.ExecFunc != nil {
		return db.ExecFunc(sql, args)
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func (db *FakeDB) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	db.record(sql, args)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var data [][]any
	if db.QueryFunc != nil {
		var err error
		if data, err = db.QueryFunc(sql, args); err != nil {
			return nil, err
		}
	}
	return &FakeRows{data: data, idx: -1}, nil
}

func (db *FakeDB) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return errRow{err}
	}
	return &fakeRow{rows: rows.(*FakeRows)}
}

// FakeRows iterates over literal values.
type FakeRows struct {
	data   [][]any
	idx    int
	err    error
	closed bool
}

// NewFakeRows wraps data as a pgx.Rows.
func NewFakeRows(data [][]any) *FakeRows {
	return &FakeRows{data: data, idx: -1}
}

func (r *FakeRows) Close()                                       { r.closed = true }
func (r *FakeRows) Err() error                                   { return r.err }
func (r *FakeRows) CommandTag() pgconn.CommandTag                { return pgconn.NewCommandTag("SELECT") }
func (r *FakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *FakeRows) RawValues() [][]byte                          { return nil }
func (r *FakeRows) Conn() *pgx.Conn                              { return nil }

func (r *FakeRows) Next() bool {
	if r.closed || r.idx+1 >= len(r.data) {
		r.closed = true
		return false
	}
	r.idx++
	return true
}

func (r *FakeRows) Values() ([]any, error) {
	if r.idx < 0 || r.idx >= len(r.data) {
		return nil, errors.New("no current row")
	}
	return r.data[r.idx], nil
}

func (r *FakeRows) Scan(dest ...any) error {
	row, err := r.Values()
	if err != nil {
		return err
	}
	if len(dest) != len(row) {
		return fmt.Errorf("scan: %d destinations for %d values", len(dest), len(row))
	}
	for i, d := range dest {
		if err := assign(d, row[i]); err != nil {
			return fmt.Errorf("scan column %d: %w", i, err)
		}
	}
	return nil
}

// assign copies v into the pointer d. nil values zero the destination.
func assign(d, v any) error {
	dv := reflect.ValueOf(d)
	if dv.Kind() != reflect.Pointer || dv.IsNil() {
		return errors.New("destination is not a non-nil pointer")
	}
	target := dv.Elem()
	if v == nil {
		target.Set(reflect.Zero(target.Type()))
		return nil
	}
	vv := reflect.ValueOf(v)
	switch {
	case vv.Type().AssignableTo(target.Type()):
		target.Set(vv)
	case target.Kind() == reflect.Pointer && vv.Type().AssignableTo(target.Type().Elem()):
		p := reflect.New(target.Type().Elem())
		p.Elem().Set(vv)
		target.Set(p)
	case vv.Type().ConvertibleTo(target.Type()):
		target.Set(vv.Convert(target.Type()))
	default:
		return fmt.Errorf("cannot assign %T to %s", v, target.Type())
	}
	return nil
}

type fakeRow struct {
	rows *FakeRows
}

func (r *fakeRow) Scan(dest ...any) error {
	defer r.rows.Close()
	if !r.rows.Next() {
		return pgx.ErrNoRows
	}
	return r.rows.Scan(dest...)
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }
