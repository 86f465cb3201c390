package database

import (
	"context"

	"github.com/koustreak/relgen/internal/errs"
)

// Collect drains rows through scan and always closes them. The result is
// non-nil even when the set is empty.
func Collect[T any](rows Rows, scan func(Rows) (T, error)) ([]T, error) {
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, asQueryError("failed to scan row", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, asQueryError("error during row iteration", err)
	}
	return out, nil
}

// QueryAll runs sql on db and collects the result through scan.
func QueryAll[T any](ctx context.Context, db DB, scan func(Rows) (T, error), sql string, args ...any) ([]T, error) {
	rows, err := db.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	return Collect(rows, scan)
}

// ScanString scans a single text column.
func ScanString(r Rows) (string, error) {
	var s string
	err := r.Scan(&s)
	return s, err
}

// asQueryError keeps an already classified error and wraps anything else.
func asQueryError(msg string, err error) error {
	if errs.KindOf(err) != errs.ErrKindUnknown {
		return err
	}
	return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
}
