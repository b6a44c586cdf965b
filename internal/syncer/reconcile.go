package syncer

import "github.com/dmitrijs2005/clubsync/internal/entity"

// Counts summarises one reconciliation pass.
type Counts struct {
	Remote  int `json:"remote"`
	Local   int `json:"local"`
	Merged  int `json:"merged"`
	Added   int `json:"added"`
	Deleted int `json:"deleted"`
	// Collapsed counts local records dropped because an earlier local record
	// already claimed one of their identities.
	Collapsed int `json:"collapsed"`
}

// Reconcile merges a fresh remote fetch into the local collection.
//
// Local records win wholesale; a remote record matching a local one only
// backfills identity fields the local copy lacks. Remote records matching
// nothing are appended. Synced local records that match no remote record are
// treated as remotely deleted; local-only records are always kept.
// Neither input is modified.
func Reconcile(schema entity.Schema, remote, local []entity.Record) ([]entity.Record, Counts) {
	counts := Counts{Remote: len(remote), Local: len(local)}

	ix := entity.NewIndex(schema)
	merged := make([]entity.Record, 0, len(local)+len(remote))
	for _, l := range local {
		if l == nil {
			continue
		}
		if _, dup := ix.Lookup(l); dup {
			counts.Collapsed++
			continue
		}
		ix.Add(l, len(merged))
		merged = append(merged, l.Clone())
	}
	localN := len(merged)
	matched := make([]bool, localN)

	for _, r := range remote {
		if r == nil {
			continue
		}
		if pos, ok := ix.Lookup(r); ok {
			if pos < localN {
				matched[pos] = true
				backfill(schema, merged[pos], r)
				ix.Add(merged[pos], pos)
			}
			continue
		}
		ix.Add(r, len(merged))
		merged = append(merged, r.Clone())
		counts.Added++
	}

	out := make([]entity.Record, 0, len(merged))
	for i, rec := range merged {
		if i < localN && !matched[i] && !schema.IsLocalOnly(rec) {
			counts.Deleted++
			continue
		}
		out = append(out, rec)
	}
	counts.Merged = len(out)
	return out, counts
}

// backfill copies identity fields present on r and missing on l. A local-only
// record adopts the remote primary id and drops its temp id.
func backfill(schema entity.Schema, l, r entity.Record) {
	if schema.IsLocalOnly(l) && !schema.IsLocalOnly(r) {
		l[schema.IDField] = r[schema.IDField]
		delete(l, schema.TempIDField)
	}
	for _, f := range append(append([]string{}, schema.SecondaryIDs...), schema.NaturalKeys...) {
		if entity.IDString(l[f]) == "" && entity.IDString(r[f]) != "" {
			l[f] = r[f]
		}
	}
}
