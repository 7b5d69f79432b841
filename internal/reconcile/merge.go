package reconcile

import (
	"strings"

	"mangashelf/pkg/models"
)

// merge folds incoming into existing. Identity fields (id, slug, title,
// alternative titles, createdAt, openedAt) always come from existing.
func merge(existing, incoming models.Entry) models.Entry {
	out := existing.Clone()

	out.Tags = models.DedupeStrings(existing.Tags, incoming.Tags)
	out.Badges = models.DedupeStrings(existing.Badges, incoming.Badges)
	out.Characters = mergeCharacters(existing.Characters, incoming.Characters)
	out.Rows = mergeRows(existing.Rows, incoming.Rows)

	if strings.TrimSpace(incoming.Description) != "" {
		out.Description = strings.TrimSpace(incoming.Description)
	}

	out.Rating = firstRating(existing.Rating, incoming.Rating)
	out.CoverImageURL = firstCover(existing.CoverImageURL, incoming.CoverImageURL)
	out.Category = firstNonEmpty(existing.Category, strings.TrimSpace(incoming.Category), models.AllCategory)

	if existing.IsDataType(models.DataTypeArchive) && !incoming.IsDataType(models.DataTypeMD) {
		out.DataType = models.DataTypeLib
	} else {
		out.DataType = firstNonEmpty(strings.TrimSpace(incoming.DataType), models.DataTypeLib)
	}
	return out
}

// mergeCharacters keeps existing order; an incoming character replaces the
// existing one with the same name, new names are appended.
func mergeCharacters(existing, incoming []models.Character) []models.Character {
	out := make([]models.Character, 0, len(existing)+len(incoming))
	pos := make(map[string]int, len(existing)+len(incoming))
	for _, list := range [][]models.Character{existing, incoming} {
		for _, c := range list {
			if i, ok := pos[c.Name]; ok {
				out[i] = c
				continue
			}
			pos[c.Name] = len(out)
			out = append(out, c)
		}
	}
	return out
}

// mergeRows is mergeCharacters keyed by chapterSE.
func mergeRows(existing, incoming []models.ChapterRow) []models.ChapterRow {
	out := make([]models.ChapterRow, 0, len(existing)+len(incoming))
	pos := make(map[string]int, len(existing)+len(incoming))
	for _, list := range [][]models.ChapterRow{existing, incoming} {
		for _, r := range list {
			if i, ok := pos[r.ChapterSE]; ok {
				out[i] = r
				continue
			}
			pos[r.ChapterSE] = len(out)
			out = append(out, r)
		}
	}
	return out
}

func firstRating(vals ...*int) *int {
	for _, v := range vals {
		if v != nil && *v != 0 {
			n := *v
			return &n
		}
	}
	return nil
}

func firstCover(vals ...*string) *string {
	for _, v := range vals {
		if v != nil && *v != "" {
			s := *v
			return &s
		}
	}
	return nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
