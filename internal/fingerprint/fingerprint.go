// Package fingerprint derives the identity key used to match catalog entries
// across imports, independent of the store-assigned id.
package fingerprint

import (
	"sort"
	"strings"

	"mangashelf/pkg/models"
)

const (
	partSep = "::"
	altSep  = "|"
)

// Fingerprint returns the identity key of e.
//
// A non-empty slug is the whole key. Otherwise the key is the normalized
// title, followed by the normalized description for "md" notes (two notes
// may share a title), followed by the sorted set of normalized alternative
// titles. Empty parts are left out.
func Fingerprint(e models.Entry) string {
	if slug := Normalize(e.Slug); slug != "" {
		return slug
	}

	parts := make([]string, 0, 3)
	if title := Normalize(e.Title); title != "" {
		parts = append(parts, title)
	}
	if e.IsDataType(models.DataTypeMD) {
		if desc := Normalize(e.Description); desc != "" {
			parts = append(parts, desc)
		}
	}
	if alts := altTitles(e.AlternativeTitles); alts != "" {
		parts = append(parts, alts)
	}
	return strings.Join(parts, partSep)
}

// Normalize trims and lower-cases s and drops every character outside [a-z0-9].
func Normalize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') {
			b.WriteByte(c)
		}
	}
	return b.String()
}

func altTitles(titles []string) string {
	seen := make(map[string]struct{}, len(titles))
	out := make([]string, 0, len(titles))
	for _, t := range titles {
		n := Normalize(t)
		if n == "" {
			continue
		}
		if _, ok := seen[n]; ok {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Strings(out)
	return strings.Join(out, altSep)
}
