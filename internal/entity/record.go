package entity

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

// Record is one entity as a field map.
type Record map[string]any

// Clone returns a deep copy of r. Nested maps and slices are copied so the
// clone owns its sub-collections.
func (r Record) Clone() Record {
	if r == nil {
		return nil
	}
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case Record:
		return t.Clone()
	case map[string]any:
		return map[string]any(Record(t).Clone())
	case []any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = cloneValue(t[i])
		}
		return out
	case []map[string]any:
		out := make([]any, len(t))
		for i := range t {
			out[i] = map[string]any(Record(t[i]).Clone())
		}
		return out
	case []string:
		return append([]string(nil), t...)
	default:
		return v
	}
}

// CloneAll deep-copies a collection.
func CloneAll(recs []Record) []Record {
	out := make([]Record, len(recs))
	for i, r := range recs {
		out[i] = r.Clone()
	}
	return out
}

// Has reports whether field is present with a non-nil value.
func (r Record) Has(field string) bool {
	v, ok := r[field]
	return ok && v != nil
}

// String returns the field as a trimmed string, or "" when absent.
func (r Record) String(field string) string {
	return IDString(r[field])
}

// IDString canonicalises an identifier value so that ids decoded from JSON
// (float64), SQL (int64) and text compare equal. nil yields "".
func IDString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case float64:
		if t == math.Trunc(t) && math.Abs(t) < 1e18 {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return IDString(float64(t))
	case int:
		return strconv.Itoa(t)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case int64:
		return strconv.FormatInt(t, 10)
	case uint:
		return strconv.FormatUint(uint64(t), 10)
	case uint32:
		return strconv.FormatUint(uint64(t), 10)
	case uint64:
		return strconv.FormatUint(t, 10)
	case json.Number:
		return t.String()
	case fmt.Stringer:
		return strings.TrimSpace(t.String())
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// IsRemoteID reports whether id looks like an identifier assigned by the
// remote: a positive integer or a UUID.
func IsRemoteID(id string) bool {
	if id == "" {
		return false
	}
	if n, err := strconv.ParseUint(id, 10, 64); err == nil {
		return n > 0
	}
	_, err := uuid.Parse(id)
	return err == nil
}

// NumericID returns the integer value of v, or 0 when v is not an integer id.
func NumericID(v any) int64 {
	n, err := strconv.ParseInt(IDString(v), 10, 64)
	if err != nil {
		return 0
	}
	return n
}

// CoerceBool resolves v to a strict boolean. Absent, nil and unrecognised
// values yield def.
func CoerceBool(v any, def bool) bool {
	switch t := v.(type) {
	case nil:
		return def
	case bool:
		return t
	case string:
		switch strings.ToLower(strings.TrimSpace(t)) {
		case "true", "1", "yes", "on", "t":
			return true
		case "false", "0", "no", "off", "f":
			return false
		}
		return def
	case float64:
		return t != 0
	case float32:
		return t != 0
	case int:
		return t != 0
	case int32:
		return t != 0
	case int64:
		return t != 0
	case uint64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return def
		}
		return f != 0
	default:
		return def
	}
}
