package relation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInferAll(t *testing.T) {
	m := snapshot(t,
		tbl("users", "id"),
		tbl("roles", "id"),
		tbl("role_user", "", fk("role_id", "roles", "id"), fk("user_id", "users", "id")),
		tbl("posts", "id", fk("user_id", "users", "id")),
	)

	for _, workers := range []int{0, 1, 3} {
		got, err := InferAll(context.Background(), m, workers)
		require.NoError(t, err)
		require.Len(t, got, 4)

		for i, name := range m.Tables() {
			assert.Equal(t, name, got[i].Table)
			want, err := Infer(name, m)
			require.NoError(t, err)
			assert.Equal(t, want, got[i].Declarations)
		}
	}
}

func TestInferAll_Cancelled(t *testing.T) {
	m := snapshot(t, tbl("users", "id"), tbl("posts", "id", fk("user_id", "users", "id")))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got, err := InferAll(ctx, m, 2)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, got)
}

func TestInferAll_EmptySnapshot(t *testing.T) {
	got, err := InferAll(context.Background(), NewSchemaMap(), 4)
	require.NoError(t, err)
	assert.Empty(t, got)
}
