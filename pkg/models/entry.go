package models

import (
	"errors"
	"strings"
	"time"
)

// AllCategory is the sentinel category every entry falls back to.
const AllCategory = "All"

// Data types recognized on Entry.DataType.
const (
	DataTypeJSON    = "json"
	DataTypeLib     = "Lib"
	DataTypeMD      = "md"
	DataTypeArchive = "archive"
)

// SchemaVersion is the record shape written by this build. Records with a
// lower version are normalized by UpgradeEntry before use.
const SchemaVersion = 2

// Ratings are whole numbers in MinRating..MaxRating.
const (
	MinRating = 0
	MaxRating = 10
)

var (
	ErrNotFound   = errors.New("not found")
	ErrConflict   = errors.New("already exists")
	ErrValidation = errors.New("validation failed")
)

// Entry is one catalog record (a series, book, note...).
type Entry struct {
	ID                int64        `json:"id,omitempty"`
	Slug              string       `json:"slug,omitempty"`
	Title             string       `json:"title"`
	AlternativeTitles []string     `json:"alternativeTitles"`
	CoverImageURL     *string      `json:"coverImageUrl"`
	Description       string       `json:"description"`
	Category          string       `json:"category"`
	Tags              []string     `json:"tags"`
	Badges            []string     `json:"badges"`
	Rating            *int         `json:"rating"`
	Characters        []Character  `json:"characters"`
	Rows              []ChapterRow `json:"rows"`
	DataType          string       `json:"dataType"`
	CreatedAt         *time.Time   `json:"createdAt"`
	OpenedAt          *time.Time   `json:"openedAt"`
	EditedAt          *time.Time   `json:"editedAt"`
	SchemaVersion     int          `json:"schemaVersion,omitempty"`
}

// Character is keyed by Name within an entry.
type Character struct {
	Name             string   `json:"name"`
	Image            string   `json:"image"`
	Role             string   `json:"role"`
	Description      string   `json:"description"`
	Tags             []string `json:"tags"`
	AlternativeNames []string `json:"alternativeNames"`
}

// ChapterRow is keyed by ChapterSE within an entry.
type ChapterRow struct {
	ChapterSE   string   `json:"chapterSE"`
	Description string   `json:"description"`
	Characters  string   `json:"characters"`
	Tags        []string `json:"tags"`
}

// IsDataType reports whether the entry's data type equals dt, ignoring case
// and surrounding space.
func (e Entry) IsDataType(dt string) bool {
	return strings.EqualFold(strings.TrimSpace(e.DataType), dt)
}

// Clone returns a copy that shares no slices or pointers with e.
func (e Entry) Clone() Entry {
	out := e
	out.AlternativeTitles = cloneStrings(e.AlternativeTitles)
	out.Tags = cloneStrings(e.Tags)
	out.Badges = cloneStrings(e.Badges)
	if e.CoverImageURL != nil {
		v := *e.CoverImageURL
		out.CoverImageURL = &v
	}
	if e.Rating != nil {
		v := *e.Rating
		out.Rating = &v
	}
	out.CreatedAt = cloneTime(e.CreatedAt)
	out.OpenedAt = cloneTime(e.OpenedAt)
	out.EditedAt = cloneTime(e.EditedAt)
	if e.Characters != nil {
		out.Characters = make([]Character, len(e.Characters))
		for i, c := range e.Characters {
			c.Tags = cloneStrings(c.Tags)
			c.AlternativeNames = cloneStrings(c.AlternativeNames)
			out.Characters[i] = c
		}
	}
	if e.Rows != nil {
		out.Rows = make([]ChapterRow, len(e.Rows))
		for i, r := range e.Rows {
			r.Tags = cloneStrings(r.Tags)
			out.Rows[i] = r
		}
	}
	return out
}

// DedupeStrings keeps the first occurrence of every value, preserving order.
func DedupeStrings(in ...[]string) []string {
	out := make([]string, 0)
	seen := make(map[string]struct{})
	for _, list := range in {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// StringPtr returns nil for an empty string.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// IntPtr returns a pointer to n.
func IntPtr(n int) *int {
	return &n
}

func cloneStrings(in []string) []string {
	if in == nil {
		return nil
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
