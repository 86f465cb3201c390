package errs

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Message(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without cause",
			err:  New(ErrKindInvalidArgument, "table \"orders\" is not in the snapshot"),
			want: "[invalid_argument] table \"orders\" is not in the snapshot",
		},
		{
			name: "with cause",
			err:  Wrap(ErrKindTimeout, "load schema", context.DeadlineExceeded),
			want: "[timeout] load schema: context deadline exceeded",
		},
		{
			name: "formatted",
			err:  Newf(ErrKindNotFound, "table %q", "users"),
			want: "[not_found] table \"users\"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestPredicates_TraverseWrappedChain(t *testing.T) {
	base := Wrap(ErrKindConnectionFailed, "ping failed", errors.New("dial tcp: refused"))
	wrapped := fmt.Errorf("open snapshot: %w", base)

	assert.True(t, IsConnectionFailed(wrapped))
	assert.False(t, IsTimeout(wrapped))
	assert.Equal(t, ErrKindConnectionFailed, KindOf(wrapped))
	assert.ErrorIs(t, wrapped, base.Cause)
}

func TestKindOf_ForeignError(t *testing.T) {
	assert.Equal(t, ErrKindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, ErrKindUnknown, KindOf(nil))
	assert.False(t, IsNotFound(nil))
}

func TestErrKind_String(t *testing.T) {
	kinds := map[ErrKind]string{
		ErrKindUnknown:          "unknown",
		ErrKindNotFound:         "not_found",
		ErrKindConnectionFailed: "connection_failed",
		ErrKindTimeout:          "timeout",
		ErrKindQueryFailed:      "query_failed",
		ErrKindInvalidArgument:  "invalid_argument",
		ErrKindPermissionDenied: "permission_denied",
	}
	for kind, want := range kinds {
		assert.Equal(t, want, kind.String())
	}
	assert.True(t, IsPermissionDenied(New(ErrKindPermissionDenied, "denied")))
	assert.True(t, IsQueryFailed(New(ErrKindQueryFailed, "bad sql")))
	assert.True(t, IsInvalidArgument(New(ErrKindInvalidArgument, "bad")))
}
