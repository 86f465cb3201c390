package schema

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/koustreak/relgen/internal/database"
	"github.com/koustreak/relgen/internal/errs"
	"github.com/koustreak/relgen/internal/relation"
)

// fakeDB answers queries by the first registered fragment the SQL contains.
type fakeDB struct {
	mu      sync.Mutex
	answers []answer
	queries []recordedQuery
}

type answer struct {
	fragment string
	rows     [][]any
	err      error
}

type recordedQuery struct {
	sql  string
	args []any
}

func (f *fakeDB) on(fragment string, rows ...[]any) *fakeDB {
	f.answers = append(f.answers, answer{fragment: fragment, rows: rows})
	return f
}

func (f *fakeDB) fail(fragment string, err error) *fakeDB {
	f.answers = append(f.answers, answer{fragment: fragment, err: err})
	return f
}

func (f *fakeDB) lookup(sql string, args []any) (answer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, recordedQuery{sql: sql, args: args})
	for _, a := range f.answers {
		if strings.Contains(sql, a.fragment) {
			return a, a.err
		}
	}
	return answer{}, errs.Newf(errs.ErrKindQueryFailed, "unexpected query: %s", sql)
}

func (f *fakeDB) Ping(context.Context) error { return nil }
func (f *fakeDB) Close()                     {}

func (f *fakeDB) Query(_ context.Context, sql string, args ...any) (database.Rows, error) {
	a, err := f.lookup(sql, args)
	if err != nil {
		return nil, err
	}
	return &fakeRows{rows: a.rows, pos: -1}, nil
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) (database.Row, error) {
	a, err := f.lookup(sql, args)
	if err != nil {
		return nil, err
	}
	return &fakeRows{rows: a.rows, pos: 0}, nil
}

func (f *fakeDB) argsFor(fragment string) []any {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, q := range f.queries {
		if strings.Contains(q.sql, fragment) {
			return q.args
		}
	}
	return nil
}

type fakeRows struct {
	rows [][]any
	pos  int
}

func (r *fakeRows) Next() bool {
	r.pos++
	return r.pos < len(r.rows)
}

func (r *fakeRows) Scan(dest ...any) error {
	if r.pos >= len(r.rows) {
		return errs.New(errs.ErrKindNotFound, "no rows")
	}
	row := r.rows[r.pos]
	if len(row) != len(dest) {
		return fmt.Errorf("scan: %d values into %d targets", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *int:
			*d = v.(int)
		default:
			return fmt.Errorf("scan: unsupported target %T", d)
		}
	}
	return nil
}

func (r *fakeRows) Close()     {}
func (r *fakeRows) Err() error { return nil }

// countingLoader returns a fresh snapshot per call.
type countingLoader struct {
	mu    sync.Mutex
	calls int
	err   error
	gate  chan struct{}
}

func (l *countingLoader) LoadSchema(ctx context.Context) (*relation.SchemaMap, error) {
	if l.gate != nil {
		select {
		case <-l.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	l.mu.Lock()
	l.calls++
	n, err := l.calls, l.err
	l.mu.Unlock()

	if err != nil {
		return nil, err
	}
	m := relation.NewSchemaMap()
	if err := m.Add(fmt.Sprintf("t%d", n), relation.NewTableSchema("id")); err != nil {
		return nil, err
	}
	return m, nil
}

func (l *countingLoader) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}
