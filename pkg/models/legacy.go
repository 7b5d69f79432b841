package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Older exports stored characters and chapter rows with capitalized keys
// ("Name", "ChapterSE", ...) and tags as arbitrary JSON scalars. UpgradeEntry
// is the single place where those shapes are rewritten into the current
// schema; nothing downstream handles them.

var characterKeys = map[string][]string{
	"name":             {"name", "Name"},
	"image":            {"image", "Image"},
	"role":             {"role", "Role"},
	"description":      {"description", "Description"},
	"tags":             {"tags", "Tags"},
	"alternativeNames": {"alternativeNames", "AlternativeNames"},
}

var rowKeys = map[string][]string{
	"chapterSE":   {"chapterSE", "ChapterSE"},
	"description": {"description", "Description"},
	"characters":  {"characters", "Characters"},
	"tags":        {"tags", "Tags"},
}

// UpgradeEntry decodes one JSON record of any known schema version into the
// current Entry shape. Fields that cannot be coerced are dropped to their
// zero value and described in notes; only a record that is not a JSON object
// is an error.
func UpgradeEntry(raw []byte) (Entry, []string, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil || obj == nil {
		return Entry{}, nil, errors.New("record is not a JSON object")
	}

	var notes []string
	note := func(field string, err error) {
		notes = append(notes, fmt.Sprintf("%s: %v", field, err))
	}
	str := func(field string) string {
		s, err := scalarField(obj[field])
		if err != nil {
			note(field, err)
		}
		return s
	}
	strs := func(field string) []string {
		list, err := UpgradeStrings(obj[field])
		if err != nil {
			note(field, err)
			return []string{}
		}
		return list
	}
	when := func(field string) *time.Time {
		t, err := upgradeTime(obj[field])
		if err != nil {
			note(field, err)
		}
		return t
	}

	e := Entry{
		ID:                upgradeID(obj["id"]),
		Slug:              str("slug"),
		Title:             str("title"),
		AlternativeTitles: strs("alternativeTitles"),
		Description:       str("description"),
		Category:          str("category"),
		Tags:              strs("tags"),
		Badges:            strs("badges"),
		DataType:          str("dataType"),
		CreatedAt:         when("createdAt"),
		OpenedAt:          when("openedAt"),
		EditedAt:          when("editedAt"),
		SchemaVersion:     SchemaVersion,
	}
	if cover := strings.TrimSpace(str("coverImageUrl")); cover != "" {
		e.CoverImageURL = &cover
	}

	var err error
	if e.Rating, err = upgradeRating(obj["rating"]); err != nil {
		note("rating", err)
	}
	if e.Characters, err = UpgradeCharacters(obj["characters"]); err != nil {
		note("characters", err)
		e.Characters = []Character{}
	}
	if e.Rows, err = UpgradeRows(obj["rows"]); err != nil {
		note("rows", err)
		e.Rows = []ChapterRow{}
	}
	return e, notes, nil
}

func upgradeID(raw json.RawMessage) int64 {
	var id int64
	if isNull(raw) || json.Unmarshal(raw, &id) != nil {
		return 0
	}
	return id
}

// scalarField reads a string field, formatting numbers and booleans.
// Objects and arrays yield "" and an error.
func scalarField(raw json.RawMessage) (string, error) {
	if isNull(raw) {
		return "", nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return "", err
	}
	s, ok := scalarString(v)
	if !ok {
		return "", fmt.Errorf("unsupported value %s", bytes.TrimSpace(raw))
	}
	return s, nil
}

// UpgradeCharacters accepts a JSON array of characters in either key style.
// Characters without a name are dropped since they cannot be merged.
func UpgradeCharacters(raw json.RawMessage) ([]Character, error) {
	objs, err := decodeObjects(raw)
	if err != nil {
		return nil, err
	}
	out := make([]Character, 0, len(objs))
	for _, obj := range objs {
		var c Character
		if c.Name, err = pickString(obj, characterKeys["name"]); err != nil {
			return nil, err
		}
		if c.Name == "" {
			continue
		}
		if c.Image, err = pickString(obj, characterKeys["image"]); err != nil {
			return nil, err
		}
		if c.Role, err = pickString(obj, characterKeys["role"]); err != nil {
			return nil, err
		}
		if c.Description, err = pickString(obj, characterKeys["description"]); err != nil {
			return nil, err
		}
		if c.Tags, err = UpgradeStrings(pick(obj, characterKeys["tags"])); err != nil {
			return nil, err
		}
		if c.AlternativeNames, err = UpgradeStrings(pick(obj, characterKeys["alternativeNames"])); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

// UpgradeRows accepts a JSON array of chapter rows in either key style.
func UpgradeRows(raw json.RawMessage) ([]ChapterRow, error) {
	objs, err := decodeObjects(raw)
	if err != nil {
		return nil, err
	}
	out := make([]ChapterRow, 0, len(objs))
	for _, obj := range objs {
		var r ChapterRow
		if r.ChapterSE, err = pickString(obj, rowKeys["chapterSE"]); err != nil {
			return nil, err
		}
		if r.ChapterSE == "" {
			continue
		}
		if r.Description, err = pickString(obj, rowKeys["description"]); err != nil {
			return nil, err
		}
		if r.Characters, err = pickString(obj, rowKeys["characters"]); err != nil {
			return nil, err
		}
		if r.Tags, err = UpgradeStrings(pick(obj, rowKeys["tags"])); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, nil
}

// UpgradeStrings decodes a JSON array of scalars into a deduplicated string
// set. Numbers and booleans are formatted; nulls and empty strings are dropped.
func UpgradeStrings(raw json.RawMessage) ([]string, error) {
	if isNull(raw) {
		return []string{}, nil
	}
	var items []any
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("expected array: %w", err)
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := scalarString(it)
		if !ok || s == "" {
			continue
		}
		out = append(out, s)
	}
	return DedupeStrings(out), nil
}

func decodeObjects(raw json.RawMessage) ([]map[string]json.RawMessage, error) {
	if isNull(raw) {
		return nil, nil
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("expected array: %w", err)
	}
	objs := make([]map[string]json.RawMessage, 0, len(items))
	for _, it := range items {
		var obj map[string]json.RawMessage
		if json.Unmarshal(it, &obj) != nil || obj == nil {
			continue
		}
		objs = append(objs, obj)
	}
	return objs, nil
}

func pick(obj map[string]json.RawMessage, keys []string) json.RawMessage {
	for _, k := range keys {
		if v, ok := obj[k]; ok && !isNull(v) {
			return v
		}
	}
	return nil
}

func pickString(obj map[string]json.RawMessage, keys []string) (string, error) {
	v := pick(obj, keys)
	if v == nil {
		return "", nil
	}
	var val any
	if err := json.Unmarshal(v, &val); err != nil {
		return "", err
	}
	s, _ := scalarString(val)
	return s, nil
}

func scalarString(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(t), true
	default:
		return "", false
	}
}

// upgradeRating accepts a number or a numeric string and clamps it to
// MinRating..MaxRating. Anything else yields nil and an error.
func upgradeRating(raw json.RawMessage) (*int, error) {
	if isNull(raw) {
		return nil, nil
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		if strings.TrimSpace(t) == "" {
			return nil, nil
		}
		n, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return nil, fmt.Errorf("unsupported rating %q", t)
		}
		f = n
	default:
		return nil, fmt.Errorf("unsupported rating %v", v)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("unsupported rating %v", f)
	}
	n := int(math.Round(min(max(f, MinRating), MaxRating)))
	return &n, nil
}

func upgradeTime(raw json.RawMessage) (*time.Time, error) {
	if isNull(raw) {
		return nil, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, errors.New("expected timestamp string")
	}
	return ParseTimestamp(s)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
	time.DateOnly,
}

// ParseTimestamp parses an ISO-8601 timestamp, with or without a time of day.
// Values without a zone are read as UTC. Blank input yields nil.
func ParseTimestamp(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, fmt.Errorf("unsupported timestamp %q", s)
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
