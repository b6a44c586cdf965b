package manager

import (
	"strings"

	"github.com/dmitrijs2005/clubsync/internal/entity"
)

// Merge builds the record sent on update. A patch value replaces the
// existing one unless it is nil or a blank string; booleans, numbers and
// lists are taken as given. Identity fields of existing are kept, and status
// fields are coerced to strict booleans.
func Merge(schema entity.Schema, existing, patch entity.Record) entity.Record {
	out := existing.Clone()
	if out == nil {
		out = entity.Record{}
	}
	for k, v := range patch.Clone() {
		if k == schema.IDField || k == schema.TempIDField || blank(v) {
			continue
		}
		out[k] = v
	}
	return schema.Normalize(out)
}

func blank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	}
	return false
}

// upsert replaces the record rec resolves to, or appends it.
func upsert(schema entity.Schema, recs []entity.Record, rec entity.Record) []entity.Record {
	ix := entity.NewIndex(schema)
	for i, r := range recs {
		ix.Add(r, i)
	}
	if pos, ok := ix.Lookup(rec); ok {
		recs[pos] = rec
		return recs
	}
	return append(recs, rec)
}

// replaceByID drops the record stored under id and upserts rec.
func replaceByID(schema entity.Schema, recs []entity.Record, id string, rec entity.Record) []entity.Record {
	return upsert(schema, removeByID(schema, recs, id), rec)
}

func removeByID(schema entity.Schema, recs []entity.Record, id string) []entity.Record {
	if pos := entity.FindByID(schema, recs, id); pos >= 0 {
		return append(recs[:pos], recs[pos+1:]...)
	}
	return recs
}

func normalizeAll(schema entity.Schema, recs []entity.Record) []entity.Record {
	out := make([]entity.Record, len(recs))
	for i, r := range recs {
		out[i] = schema.Normalize(r)
	}
	return out
}
