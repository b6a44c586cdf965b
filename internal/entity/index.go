package entity

import "strings"

// Index resolves records to positions in a collection using the identity
// order: primary id, then secondary ids, then case-insensitive natural keys.
// Primary ids only match between records that are both remote-synced, so a
// placeholder id can never collide with a remote one.
type Index struct {
	schema    Schema
	byID      map[string]int
	secondary map[string]map[string]int
	natural   map[string]map[string]int
}

// NewIndex returns an empty index for schema.
func NewIndex(schema Schema) *Index {
	ix := &Index{
		schema:    schema,
		byID:      map[string]int{},
		secondary: map[string]map[string]int{},
		natural:   map[string]map[string]int{},
	}
	for _, f := range schema.SecondaryIDs {
		ix.secondary[f] = map[string]int{}
	}
	for _, f := range schema.NaturalKeys {
		ix.natural[f] = map[string]int{}
	}
	return ix
}

// Add indexes rec at pos. Keys already claimed by another position are kept.
func (ix *Index) Add(rec Record, pos int) {
	if !ix.schema.IsLocalOnly(rec) {
		claim(ix.byID, ix.schema.ID(rec), pos)
	}
	for f, m := range ix.secondary {
		claim(m, IDString(rec[f]), pos)
	}
	for f, m := range ix.natural {
		claim(m, naturalKey(rec[f]), pos)
	}
}

func claim(m map[string]int, key string, pos int) {
	if key == "" {
		return
	}
	if _, taken := m[key]; !taken {
		m[key] = pos
	}
}

// Lookup returns the position rec resolves to.
func (ix *Index) Lookup(rec Record) (int, bool) {
	if !ix.schema.IsLocalOnly(rec) {
		if pos, ok := ix.byID[ix.schema.ID(rec)]; ok {
			return pos, true
		}
	}
	for _, f := range ix.schema.SecondaryIDs {
		if v := IDString(rec[f]); v != "" {
			if pos, ok := ix.secondary[f][v]; ok {
				return pos, true
			}
		}
	}
	for _, f := range ix.schema.NaturalKeys {
		if v := naturalKey(rec[f]); v != "" {
			if pos, ok := ix.natural[f][v]; ok {
				return pos, true
			}
		}
	}
	return 0, false
}

func naturalKey(v any) string {
	s, ok := v.(string)
	if !ok {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(s))
}

// FindByID returns the position of the record id refers to. A synced record
// whose primary id matches wins, then a record whose temp id matches, then a
// local-only record whose placeholder id matches. A placeholder therefore
// never shadows a remote record that was later given the same id.
func FindByID(schema Schema, recs []Record, id string) int {
	id = strings.TrimSpace(id)
	if id == "" {
		return -1
	}
	temp, placeholder := -1, -1
	for i, r := range recs {
		switch {
		case !schema.IsLocalOnly(r) && schema.ID(r) == id:
			return i
		case temp < 0 && IDString(r[schema.TempIDField]) == id:
			temp = i
		case placeholder < 0 && schema.ID(r) == id:
			placeholder = i
		}
	}
	if temp >= 0 {
		return temp
	}
	return placeholder
}
