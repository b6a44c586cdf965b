package entity

import (
	"fmt"

	"github.com/mitchellh/mapstructure"
)

// Decode converts rec into a typed view using json tags. Loosely typed values
// (numbers as strings, "true" status flags) are accepted.
func Decode(rec Record, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("decoder: %w", err)
	}
	if err := dec.Decode(map[string]any(rec)); err != nil {
		return fmt.Errorf("decode record: %w", err)
	}
	return nil
}

// Certificate is an item of a member's certificates sub-collection.
type Certificate struct {
	Title    string `json:"title"`
	IssuedAt string `json:"issuedAt"`
}

// Member is the typed view of a members record.
type Member struct {
	ID              string        `json:"id"`
	TempID          string        `json:"tempId"`
	AuthUserID      string        `json:"authUserId"`
	Email           string        `json:"email"`
	FirstName       string        `json:"firstName"`
	LastName        string        `json:"lastName"`
	IsActive        bool          `json:"isActive"`
	PhotoPath       string        `json:"photoPath"`
	Certificates    []Certificate `json:"certificates"`
	EnrolledCourses []string      `json:"enrolledCourses"`
}

// Event is the typed view of an events record.
type Event struct {
	ID          string `json:"id"`
	TempID      string `json:"tempId"`
	Slug        string `json:"slug"`
	Title       string `json:"title"`
	StartsAt    string `json:"startsAt"`
	Location    string `json:"location"`
	IsPublished bool   `json:"isPublished"`
	ImagePath   string `json:"imagePath"`
}

// Session is an item of a course's sessions sub-collection.
type Session struct {
	Date  string `json:"date"`
	Topic string `json:"topic"`
}

// Course is the typed view of a courses record.
type Course struct {
	ID       string    `json:"id"`
	TempID   string    `json:"tempId"`
	Code     string    `json:"code"`
	Title    string    `json:"title"`
	Capacity int       `json:"capacity"`
	IsActive bool      `json:"isActive"`
	Sessions []Session `json:"sessions"`
}

// Title returns a one-line label for rec, preferring common display fields.
func Title(schema Schema, rec Record) string {
	for _, f := range []string{"title", "name", "email"} {
		if v := rec.String(f); v != "" {
			return v
		}
	}
	if first, last := rec.String("firstName"), rec.String("lastName"); first != "" || last != "" {
		return first + " " + last
	}
	return schema.ID(rec)
}
