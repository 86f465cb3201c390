package relation

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// TableRelations holds the inferred relationships of one table.
type TableRelations struct {
	Table        string
	Declarations []Declaration
}

// InferAll runs Infer for every table of schema, at most workers at a time
// (workers <= 0 means one per CPU). The result follows schema order.
func InferAll(ctx context.Context, schema *SchemaMap, workers int) ([]TableRelations, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	tables := schema.Tables()
	out := make([]TableRelations, len(tables))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i, name := range tables {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			decls, err := Infer(name, schema)
			if err != nil {
				return err
			}
			out[i] = TableRelations{Table: name, Declarations: decls}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	// The loop may stop early on cancellation without any goroutine failing.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
