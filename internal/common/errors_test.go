package common

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRemoteError_IsMatchesKindAndCause(t *testing.T) {
	cause := errors.New("relation \"members\" does not exist")
	err := NewRemoteError("list", "members", KindSchemaAbsent, cause)

	assert.ErrorIs(t, err, ErrSchemaAbsent)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Contains(t, err.Error(), "list members: schema_absent")
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"plain", errors.New("boom"), KindUnknown},
		{"remote error", NewRemoteError("update", "events", KindNotFound, nil), KindNotFound},
		{"wrapped remote error", fmt.Errorf("manager: %w", NewRemoteError("create", "events", KindConflict, errors.New("dup"))), KindConflict},
		{"sentinel", fmt.Errorf("write: %w", ErrQuotaExceeded), KindQuotaExceeded},
		{"unavailable", ErrRemoteUnavailable, KindRemoteUnavailable},
		{"unauthorized", ErrUnauthorized, KindUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestKind_SentinelRoundTrip(t *testing.T) {
	for _, k := range []Kind{KindSchemaAbsent, KindNotFound, KindRemoteUnavailable, KindQuotaExceeded, KindConflict, KindUnauthorized} {
		assert.Equal(t, k, KindOf(k.Sentinel()), k.String())
	}
	assert.Nil(t, KindUnknown.Sentinel())
}
