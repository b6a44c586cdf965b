package entity

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func members(t *testing.T) Schema {
	t.Helper()
	s, ok := DefaultRegistry().Get("members")
	require.True(t, ok)
	return s
}

func TestDefaultRegistry_HasBuiltins(t *testing.T) {
	r := DefaultRegistry()
	assert.Equal(t,
		[]string{"articles", "courses", "events", "for-parents", "members", "therapy-programs"},
		r.Names())

	s, ok := r.Get("therapy-programs")
	require.True(t, ok)
	assert.Equal(t, "therapy_programs", s.Table)
	assert.Equal(t, "id", s.IDField)
	assert.Equal(t, "tempId", s.TempIDField)
	assert.Equal(t, "therapy-programs-changed", s.Channel())
	assert.Equal(t, "cache:therapy-programs", s.CacheKey())
}

func TestSchema_Validate(t *testing.T) {
	assert.ErrorIs(t, Schema{}.WithDefaults().Validate(), ErrInvalidSchema)
	assert.ErrorIs(t, Schema{Name: "x", Table: "Bad-Table"}.WithDefaults().Validate(), ErrInvalidSchema)
	assert.ErrorIs(t, Schema{Name: "x", NaturalKeys: []string{"id"}}.WithDefaults().Validate(), ErrInvalidSchema)
	assert.ErrorIs(t, Schema{Name: "x", SecondaryIDs: []string{"a"}, NaturalKeys: []string{"a"}}.WithDefaults().Validate(), ErrInvalidSchema)
	assert.NoError(t, Schema{Name: "x"}.WithDefaults().Validate())
}

func TestSchema_IsLocalOnly(t *testing.T) {
	s := members(t)
	assert.False(t, s.IsLocalOnly(Record{"id": float64(5)}))
	assert.True(t, s.IsLocalOnly(Record{"id": float64(5), "tempId": "local-5"}))
	assert.True(t, s.IsLocalOnly(Record{"id": nil, "tempId": "local-1"}))
	assert.True(t, s.IsLocalOnly(Record{"email": "a@x.com"}))
}

func TestSchema_Normalize(t *testing.T) {
	s := members(t)
	in := Record{"id": 1, "isActive": "false"}
	out := s.Normalize(in)

	assert.Equal(t, false, out["isActive"])
	assert.Equal(t, []any{}, out["certificates"])
	assert.Equal(t, []any{}, out["enrolledCourses"])
	assert.Equal(t, "false", in["isActive"], "input must not be mutated")

	out = s.Normalize(Record{"id": 1})
	assert.Equal(t, true, out["isActive"], "absent status takes default")
}

func TestSchema_NextPlaceholder(t *testing.T) {
	s := members(t)
	n, temp := s.NextPlaceholder(nil)
	assert.Equal(t, int64(1), n)
	assert.Equal(t, "local-1", temp)

	n, temp = s.NextPlaceholder([]Record{{"id": float64(3)}, {"id": "7"}, {"id": "uuid"}})
	assert.Equal(t, int64(8), n)
	assert.Equal(t, "local-8", temp)
}

func TestSchema_AssetPaths(t *testing.T) {
	s, _ := DefaultRegistry().Get("for-parents")
	assert.Equal(t, []string{"a.png"}, s.AssetPaths(Record{"imagePath": "a.png", "documentPath": " "}))
}

func TestLoadSchemas(t *testing.T) {
	doc := `
collections:
  - name: volunteers
    secondary_ids: [authUserId]
    natural_keys: [email]
    status_fields:
      isActive: true
    asset_fields: [photoPath]
`
	got, err := LoadSchemas(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, got, 1)

	r, err := NewRegistry(append(Builtin(), got...)...)
	require.NoError(t, err)
	s, ok := r.Get("volunteers")
	require.True(t, ok)
	assert.Equal(t, "authUserId", s.ForeignKey)
	assert.Equal(t, map[string]bool{"isActive": true}, s.StatusFields)
	assert.Len(t, r.Names(), 7)
}

func TestLoadSchemas_Errors(t *testing.T) {
	_, err := LoadSchemas(strings.NewReader("collections:\n  - nme: typo\n"))
	assert.Error(t, err)

	got, err := LoadSchemas(strings.NewReader(""))
	assert.NoError(t, err)
	assert.Empty(t, got)

	_, err = NewRegistry(Schema{Name: "bad", Table: "1x"})
	assert.ErrorIs(t, err, ErrInvalidSchema)
}

func TestLoadRegistry(t *testing.T) {
	r, err := LoadRegistry("")
	require.NoError(t, err)
	assert.Len(t, r.Names(), 6)

	path := filepath.Join(t.TempDir(), "schemas.yaml")
	require.NoError(t, os.WriteFile(path, []byte("collections:\n  - name: volunteers\n"), 0o600))
	r, err = LoadRegistry(path)
	require.NoError(t, err)
	_, ok := r.Get("volunteers")
	assert.True(t, ok)

	_, err = LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "open schema file")
}
