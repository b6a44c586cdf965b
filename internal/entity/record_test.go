package entity

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIDString(t *testing.T) {
	cases := []struct {
		in   any
		want string
	}{
		{nil, ""},
		{float64(3), "3"},
		{float64(2.5), "2.5"},
		{int64(42), "42"},
		{7, "7"},
		{"  abc ", "abc"},
		{json.Number("12"), "12"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, IDString(c.in), "input %#v", c.in)
	}
}

func TestIsRemoteID(t *testing.T) {
	assert.True(t, IsRemoteID("1"))
	assert.True(t, IsRemoteID("9f1c2e8a-4b7d-4c1e-9a55-0d6c2f1b7e11"))
	assert.False(t, IsRemoteID(""))
	assert.False(t, IsRemoteID("0"))
	assert.False(t, IsRemoteID("-4"))
	assert.False(t, IsRemoteID("local-1"))
}

func TestCoerceBool(t *testing.T) {
	assert.True(t, CoerceBool(true, false))
	assert.True(t, CoerceBool("true", false))
	assert.True(t, CoerceBool(" TRUE ", false))
	assert.True(t, CoerceBool(float64(1), false))
	assert.True(t, CoerceBool(nil, true))
	assert.False(t, CoerceBool("false", true))
	assert.False(t, CoerceBool("0", true))
	assert.False(t, CoerceBool(0, true))
	assert.True(t, CoerceBool("maybe", true))
}

func TestClone_IsDeep(t *testing.T) {
	orig := Record{
		"id":           float64(1),
		"certificates": []any{map[string]any{"title": "CPR"}},
		"meta":         map[string]any{"k": "v"},
	}
	cp := orig.Clone()
	cp["certificates"].([]any)[0].(map[string]any)["title"] = "changed"
	cp["meta"].(map[string]any)["k"] = "x"

	assert.Equal(t, "CPR", orig["certificates"].([]any)[0].(map[string]any)["title"])
	assert.Equal(t, "v", orig["meta"].(map[string]any)["k"])
	assert.Nil(t, Record(nil).Clone())
}

func TestNumericID(t *testing.T) {
	require.Equal(t, int64(5), NumericID(float64(5)))
	require.Equal(t, int64(0), NumericID("uuid-ish"))
	require.Equal(t, int64(0), NumericID(nil))
}
