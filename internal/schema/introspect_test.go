package schema

import (
	"context"
	"testing"

	"github.com/koustreak/relgen/internal/database"
	"github.com/koustreak/relgen/internal/errs"
	"github.com/koustreak/relgen/internal/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPgLoader_LoadSchema(t *testing.T) {
	db := (&fakeDB{}).
		on("referential_constraints",
			[]any{"comments", "comments_post_id_fkey", "post_id", "app", "posts", "id", "NO ACTION", "CASCADE"},
			[]any{"posts", "posts_tenant_fkey", "tenant_id", "shared", "tenants", "id", "NO ACTION", "NO ACTION"},
			[]any{"posts", "posts_user_id_fkey", "user_id", "app", "users", "id", "CASCADE", "SET NULL"},
		).
		on("PRIMARY KEY",
			[]any{"comments", "id"},
			[]any{"posts", "id"},
			[]any{"users", "id"},
		).
		on("information_schema.tables",
			[]any{"comments"}, []any{"posts"}, []any{"users"},
		)

	snap, err := NewPgLoader(db, Options{Schema: "app", Logger: logger.Nop()}).LoadSchema(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"comments", "posts", "users"}, snap.Tables())
	assert.Equal(t, []any{"app"}, db.argsFor("information_schema.tables"))

	posts, _ := snap.Get("posts")
	require.Len(t, posts.ForeignKeys, 2)
	assert.Equal(t, "shared.tenants", posts.ForeignKeys[0].ReferencedTable)
	assert.Equal(t, "users", posts.ForeignKeys[1].ReferencedTable)
	assert.Equal(t, "SET NULL", posts.ForeignKeys[1].OnDelete)
	assert.Equal(t, "CASCADE", posts.ForeignKeys[1].OnUpdate)
}

func TestPgLoader_DefaultsToPublic(t *testing.T) {
	db := (&fakeDB{}).
		on("referential_constraints").
		on("PRIMARY KEY").
		on("information_schema.tables")

	_, err := NewPgLoader(db, Options{Logger: logger.Nop()}).LoadSchema(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []any{"public"}, db.argsFor("PRIMARY KEY"))
}

func TestMySQLLoader_LoadSchema(t *testing.T) {
	db := (&fakeDB{}).
		on("DATABASE()", []any{"shop"}).
		on("referential_constraints",
			[]any{"order_items", "fk_items_order", "order_id", "shop", "orders", "id", "RESTRICT", "CASCADE"},
			[]any{"order_items", "fk_items_sku", "sku", "shop", "products", "sku", "RESTRICT", "RESTRICT"},
			[]any{"order_items", "fk_items_sku", "warehouse", "shop", "products", "warehouse", "RESTRICT", "RESTRICT"},
		).
		on("'PRIMARY'",
			[]any{"order_items", "id"},
			[]any{"orders", "id"},
			[]any{"products", "sku"},
			[]any{"products", "warehouse"},
		).
		on("information_schema.tables",
			[]any{"order_items"}, []any{"orders"}, []any{"products"},
		)

	snap, err := NewMySQLLoader(db, Options{Logger: logger.Nop()}).LoadSchema(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []any{"shop"}, db.argsFor("information_schema.tables"))

	items, _ := snap.Get("order_items")
	require.Len(t, items.ForeignKeys, 1, "composite key must be dropped")
	assert.Equal(t, "fk_items_order", items.ForeignKeys[0].Name)

	products, _ := snap.Get("products")
	assert.True(t, products.PrimaryKey.IsNull())
}

func TestLoader_PropagatesQueryErrors(t *testing.T) {
	boom := errs.New(errs.ErrKindPermissionDenied, "denied")
	db := (&fakeDB{}).fail("information_schema.tables", boom)

	_, err := NewPgLoader(db, Options{Logger: logger.Nop()}).LoadSchema(context.Background())
	assert.True(t, errs.IsPermissionDenied(err))
}

func TestNewLoader(t *testing.T) {
	db := &fakeDB{}
	for driver, want := range map[database.Driver]any{
		database.DriverMySQL:    &MySQLLoader{},
		database.DriverPostgres: &PgLoader{},
		database.DriverSQLite:   &SQLiteLoader{},
	} {
		l, err := NewLoader(db, driver, Options{})
		require.NoError(t, err)
		assert.IsType(t, want, l)
	}

	_, err := NewLoader(db, "oracle", Options{})
	assert.True(t, errs.IsInvalidArgument(err))
}

func TestOpen_SQLite(t *testing.T) {
	db, loader, err := Open(context.Background(), database.DefaultConfig(database.DriverSQLite, ":memory:"), Options{Logger: logger.Nop()})
	require.NoError(t, err)
	defer db.Close()

	snap, err := loader.LoadSchema(context.Background())
	require.NoError(t, err)
	assert.Zero(t, snap.Len())
}

func TestOpen_RejectsInvalidConfig(t *testing.T) {
	_, _, err := Open(context.Background(), database.DefaultConfig("oracle", "x"), Options{})
	assert.True(t, errs.IsInvalidArgument(err))
}
