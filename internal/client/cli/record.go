package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dmitrijs2005/clubsync/internal/entity"
)

// parseRecord builds a record from a JSON object or from field=value pairs.
// Values that parse as JSON (numbers, booleans, arrays, quoted strings) keep
// their type; anything else is taken as a plain string.
func parseRecord(args []string) (entity.Record, error) {
	if len(args) == 1 && strings.HasPrefix(strings.TrimSpace(args[0]), "{") {
		var rec entity.Record
		if err := json.Unmarshal([]byte(args[0]), &rec); err != nil {
			return nil, fmt.Errorf("parse record: %w", err)
		}
		return rec, nil
	}

	rec := entity.Record{}
	for _, a := range args {
		field, raw, ok := strings.Cut(a, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("expected field=value, got %q", a)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		rec[field] = v
	}
	return rec, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeTable(w io.Writer, schema entity.Schema, recs []entity.Record) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATE\tTITLE\tDETAILS")
	for _, rec := range recs {
		id, state := schema.ID(rec), "synced"
		if schema.IsLocalOnly(rec) {
			state = "local"
			if temp := entity.IDString(rec[schema.TempIDField]); temp != "" {
				id = temp
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", id, state, entity.Title(schema, rec), details(schema, rec))
	}
	return tw.Flush()
}

// details summarises the collections that have a typed view.
func details(schema entity.Schema, rec entity.Record) string {
	switch schema.Name {
	case "members":
		var m entity.Member
		if entity.Decode(rec, &m) != nil {
			return ""
		}
		return fmt.Sprintf("%s, %d certificates, %d courses", activity(m.IsActive), len(m.Certificates), len(m.EnrolledCourses))
	case "events":
		var e entity.Event
		if entity.Decode(rec, &e) != nil {
			return ""
		}
		parts := []string{published(e.IsPublished)}
		if e.StartsAt != "" {
			parts = append(parts, e.StartsAt)
		}
		if e.Location != "" {
			parts = append(parts, e.Location)
		}
		return strings.Join(parts, ", ")
	case "courses":
		var c entity.Course
		if entity.Decode(rec, &c) != nil {
			return ""
		}
		return fmt.Sprintf("%s, capacity %d, %d sessions", activity(c.IsActive), c.Capacity, len(c.Sessions))
	}
	return ""
}

func activity(active bool) string {
	if active {
		return "active"
	}
	return "inactive"
}

func published(p bool) string {
	if p {
		return "published"
	}
	return "draft"
}
