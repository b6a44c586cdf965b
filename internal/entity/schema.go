package entity

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultIDField     = "id"
	DefaultTempIDField = "tempId"
)

var tableRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

var ErrInvalidSchema = errors.New("invalid schema")

// Schema is the per-collection metadata driving the generic engine.
type Schema struct {
	Name           string          `yaml:"name"`
	Table          string          `yaml:"table"`
	IDField        string          `yaml:"id_field"`
	TempIDField    string          `yaml:"temp_id_field"`
	SecondaryIDs   []string        `yaml:"secondary_ids"`
	NaturalKeys    []string        `yaml:"natural_keys"`
	ForeignKey     string          `yaml:"foreign_key"`
	StatusFields   map[string]bool `yaml:"status_fields"`
	SubCollections []string        `yaml:"sub_collections"`
	AssetFields    []string        `yaml:"asset_fields"`
	AssetBucket    string          `yaml:"asset_bucket"`
}

// WithDefaults fills unset id fields and derives the table name.
func (s Schema) WithDefaults() Schema {
	if s.IDField == "" {
		s.IDField = DefaultIDField
	}
	if s.TempIDField == "" {
		s.TempIDField = DefaultTempIDField
	}
	if s.Table == "" {
		s.Table = strings.ReplaceAll(s.Name, "-", "_")
	}
	if s.ForeignKey == "" && len(s.SecondaryIDs) > 0 {
		s.ForeignKey = s.SecondaryIDs[0]
	}
	return s
}

// Validate checks that the schema can be used by the engine.
func (s Schema) Validate() error {
	if strings.TrimSpace(s.Name) == "" {
		return fmt.Errorf("%w: empty name", ErrInvalidSchema)
	}
	if !tableRe.MatchString(s.Table) {
		return fmt.Errorf("%w: %s: bad table name %q", ErrInvalidSchema, s.Name, s.Table)
	}
	seen := map[string]bool{s.IDField: true, s.TempIDField: true}
	if s.IDField == s.TempIDField {
		return fmt.Errorf("%w: %s: id and temp id share field %q", ErrInvalidSchema, s.Name, s.IDField)
	}
	for _, f := range append(append([]string{}, s.SecondaryIDs...), s.NaturalKeys...) {
		if f == "" || seen[f] {
			return fmt.Errorf("%w: %s: identity field %q empty or repeated", ErrInvalidSchema, s.Name, f)
		}
		seen[f] = true
	}
	return nil
}

// Channel is the change-notification channel name for the collection.
func (s Schema) Channel() string { return s.Name + "-changed" }

// CacheKey is the persisted-store key of the collection's envelope.
func (s Schema) CacheKey() string { return "cache:" + s.Name }

// ID returns the canonical primary id of rec.
func (s Schema) ID(rec Record) string { return IDString(rec[s.IDField]) }

// IsLocalOnly reports whether rec was never confirmed by the remote: it carries
// a temp id, or its primary id is not a well-formed remote id.
func (s Schema) IsLocalOnly(rec Record) bool {
	if IDString(rec[s.TempIDField]) != "" {
		return true
	}
	return !IsRemoteID(s.ID(rec))
}

// IdentityFields lists every field taking part in identity resolution.
func (s Schema) IdentityFields() []string {
	out := []string{s.IDField}
	out = append(out, s.SecondaryIDs...)
	return append(out, s.NaturalKeys...)
}

// Normalize returns a copy of rec with status fields coerced to strict
// booleans and missing sub-collections set to empty lists.
func (s Schema) Normalize(rec Record) Record {
	out := rec.Clone()
	if out == nil {
		out = Record{}
	}
	for f, def := range s.StatusFields {
		out[f] = CoerceBool(out[f], def)
	}
	for _, f := range s.SubCollections {
		if _, ok := out[f].([]any); !ok {
			out[f] = toList(out[f])
		}
	}
	return out
}

func toList(v any) []any {
	switch t := v.(type) {
	case []map[string]any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i := range t {
			out[i] = t[i]
		}
		return out
	default:
		return []any{}
	}
}

// AssetPaths returns the non-empty asset paths referenced by rec.
func (s Schema) AssetPaths(rec Record) []string {
	var out []string
	for _, f := range s.AssetFields {
		if p := rec.String(f); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// NextPlaceholder returns the next local placeholder id for recs: the largest
// numeric id plus one, or 1 for an empty collection.
func (s Schema) NextPlaceholder(recs []Record) (int64, string) {
	var max int64
	for _, r := range recs {
		if n := NumericID(r[s.IDField]); n > max {
			max = n
		}
	}
	next := max + 1
	return next, "local-" + strconv.FormatInt(next, 10)
}

// Builtin returns the six collections managed out of the box.
func Builtin() []Schema {
	return []Schema{
		{
			Name:           "members",
			SecondaryIDs:   []string{"authUserId"},
			NaturalKeys:    []string{"email"},
			StatusFields:   map[string]bool{"isActive": true},
			SubCollections: []string{"certificates", "enrolledCourses"},
			AssetFields:    []string{"photoPath"},
			AssetBucket:    "member-photos",
		},
		{
			Name:         "events",
			NaturalKeys:  []string{"slug"},
			StatusFields: map[string]bool{"isPublished": false},
			AssetFields:  []string{"imagePath"},
			AssetBucket:  "event-images",
		},
		{
			Name:         "articles",
			NaturalKeys:  []string{"slug"},
			StatusFields: map[string]bool{"isPublished": false},
			AssetFields:  []string{"imagePath"},
			AssetBucket:  "article-images",
		},
		{
			Name:         "therapy-programs",
			NaturalKeys:  []string{"title"},
			StatusFields: map[string]bool{"isActive": true},
			AssetFields:  []string{"imagePath"},
			AssetBucket:  "program-images",
		},
		{
			Name:         "for-parents",
			NaturalKeys:  []string{"title"},
			StatusFields: map[string]bool{"isPublished": false},
			AssetFields:  []string{"imagePath", "documentPath"},
			AssetBucket:  "parent-resources",
		},
		{
			Name:           "courses",
			NaturalKeys:    []string{"code"},
			StatusFields:   map[string]bool{"isActive": true},
			SubCollections: []string{"sessions"},
		},
	}
}

// Registry holds validated schemas by name.
type Registry struct {
	byName map[string]Schema
}

// NewRegistry validates and registers schemas. Later entries replace earlier
// ones with the same name.
func NewRegistry(schemas ...Schema) (*Registry, error) {
	r := &Registry{byName: make(map[string]Schema, len(schemas))}
	for _, s := range schemas {
		s = s.WithDefaults()
		if err := s.Validate(); err != nil {
			return nil, err
		}
		r.byName[s.Name] = s
	}
	return r, nil
}

// DefaultRegistry returns a registry of the built-in schemas.
func DefaultRegistry() *Registry {
	r, err := NewRegistry(Builtin()...)
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the schema registered under name.
func (r *Registry) Get(name string) (Schema, bool) {
	s, ok := r.byName[name]
	return s, ok
}

// Names lists registered collections in lexical order.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.byName))
	for n := range r.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// All returns the registered schemas ordered by name.
func (r *Registry) All() []Schema {
	out := make([]Schema, 0, len(r.byName))
	for _, n := range r.Names() {
		out = append(out, r.byName[n])
	}
	return out
}

type schemaFile struct {
	Collections []Schema `yaml:"collections"`
}

// LoadSchemas parses a YAML document of the form
//
//	collections:
//	  - name: members
//	    natural_keys: [email]
func LoadSchemas(r io.Reader) ([]Schema, error) {
	var f schemaFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode schemas: %w", err)
	}
	return f.Collections, nil
}

// LoadRegistry returns the builtin collections extended by the YAML file at
// path. An empty path yields DefaultRegistry.
func LoadRegistry(path string) (*Registry, error) {
	if path == "" {
		return DefaultRegistry(), nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open schema file: %w", err)
	}
	defer f.Close()

	extra, err := LoadSchemas(f)
	if err != nil {
		return nil, fmt.Errorf("schema file %s: %w", path, err)
	}
	return NewRegistry(append(Builtin(), extra...)...)
}
