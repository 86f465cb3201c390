package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/koustreak/relgen/internal/database"
	"github.com/koustreak/relgen/internal/database/sqlite"
	"github.com/koustreak/relgen/internal/errs"
	"github.com/koustreak/relgen/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const shopSchema = `
CREATE TABLE users (id INTEGER PRIMARY KEY, email TEXT NOT NULL);
CREATE TABLE profiles (user_id INTEGER PRIMARY KEY REFERENCES users (id));
CREATE TABLE posts (id INTEGER PRIMARY KEY, user_id INTEGER NOT NULL REFERENCES users (id));
CREATE TABLE roles (id INTEGER PRIMARY KEY, name TEXT NOT NULL);
CREATE TABLE role_user (
	role_id INTEGER NOT NULL REFERENCES roles (id),
	user_id INTEGER NOT NULL REFERENCES users (id)
);
`

func fixtureDB(t *testing.T) string {
	t.Helper()
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "shop.db")

	d, err := sqlite.New(ctx, database.DefaultConfig(database.DriverSQLite, path))
	require.NoError(t, err)
	defer d.Close()
	require.NoError(t, d.Exec(ctx, shopSchema))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	argv := append([]string{"relgen", "--log-level", "error"}, args...)
	err := newApp(&out, &logs).RunContext(context.Background(), argv)
	return out.String(), err
}

func TestInferCommand(t *testing.T) {
	dsn := fixtureDB(t)

	out, err := run(t, "--driver", "sqlite", "--dsn", dsn, "infer", "users")
	require.NoError(t, err)

	assert.Contains(t, out, "users (User)")
	assert.Contains(t, out, "1tm,Post,user_id")
	assert.Contains(t, out, "1t1,Profile")
	assert.Contains(t, out, "mtm,Role,role_user")
}

func TestInferCommand_JSON(t *testing.T) {
	dsn := fixtureDB(t)

	out, err := run(t, "--driver", "sqlite", "--dsn", dsn, "infer", "--format", "json", "posts")
	require.NoError(t, err)

	var table report.Table
	require.NoError(t, json.Unmarshal([]byte(out), &table))
	assert.Equal(t, "Post", table.Model)
	require.Len(t, table.Relations, 1)
	assert.Equal(t, "mt1,User,user_id", table.Relations[0].Notation)
}

func TestInferCommand_Errors(t *testing.T) {
	dsn := fixtureDB(t)

	_, err := run(t, "--driver", "sqlite", "--dsn", dsn, "infer")
	assert.True(t, errs.IsInvalidArgument(err))

	_, err = run(t, "--driver", "sqlite", "--dsn", dsn, "infer", "invoices")
	assert.True(t, errs.IsNotFound(err))

	_, err = run(t, "--driver", "sqlite", "--dsn", dsn, "infer", "--format", "xml", "users")
	assert.True(t, errs.IsInvalidArgument(err))
}

func TestTablesCommand(t *testing.T) {
	dsn := fixtureDB(t)

	out, err := run(t, "--driver", "sqlite", "--dsn", dsn, "--ignore", "role_user", "tables")
	require.NoError(t, err)

	assert.Contains(t, out, "TABLE")
	assert.Contains(t, out, "profiles")
	assert.NotContains(t, out, "role_user")
}

func TestReportCommand_WritesFile(t *testing.T) {
	dsn := fixtureDB(t)
	path := filepath.Join(t.TempDir(), "out", "relations.json")

	out, err := run(t, "--driver", "sqlite", "--dsn", dsn, "report", "--format", "json", "--out", path)
	require.NoError(t, err)
	assert.Empty(t, out)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)

	var rep report.Report
	require.NoError(t, json.Unmarshal(raw, &rep))
	assert.Equal(t, report.Generator, rep.Generator)
	assert.Equal(t, "sqlite", rep.Driver)
	assert.Len(t, rep.Tables, 5)
}

func TestReportCommand_Mermaid(t *testing.T) {
	dsn := fixtureDB(t)

	out, err := run(t, "--driver", "sqlite", "--dsn", dsn, "report", "-f", "mermaid")
	require.NoError(t, err)
	assert.Contains(t, out, "erDiagram")
}

func TestCommands_RequireDatabase(t *testing.T) {
	t.Setenv("RELGEN_DB_DRIVER", "")
	t.Setenv("RELGEN_DB_DSN", "")

	_, err := run(t, "tables")
	assert.True(t, errs.IsInvalidArgument(err))

	_, err = run(t, "--driver", "oracle", "--dsn", "x", "tables")
	assert.True(t, errs.IsInvalidArgument(err))
}

func TestHelp_NeedsNoDatabase(t *testing.T) {
	out, err := run(t, "--help")
	require.NoError(t, err)
	assert.Contains(t, out, "relgen")
}

func TestConfigFile_MissingIsNotFound(t *testing.T) {
	_, err := run(t, "--config", filepath.Join(t.TempDir(), "nope.yaml"), "tables")
	assert.True(t, errs.IsNotFound(err))
}
