package exchange

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"mangashelf/pkg/models"
)

var csvHeader = []string{
	"id", "title", "slug", "category", "data_type", "rating",
	"tags", "badges", "characters", "chapters", "created_at", "edited_at",
}

// CSV writes a flat one-row-per-entry summary. List fields are joined with
// "|".
func (x *Exporter) CSV(ctx context.Context, w io.Writer) error {
	all, err := x.entries(ctx)
	if err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, e := range all {
		if err := cw.Write(csvRecord(e)); err != nil {
			return fmt.Errorf("write csv row %d: %w", e.ID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func csvRecord(e models.Entry) []string {
	rating := ""
	if e.Rating != nil {
		rating = strconv.Itoa(*e.Rating)
	}
	names := make([]string, 0, len(e.Characters))
	for _, c := range e.Characters {
		names = append(names, c.Name)
	}
	return []string{
		strconv.FormatInt(e.ID, 10),
		e.Title,
		e.Slug,
		e.Category,
		e.DataType,
		rating,
		strings.Join(e.Tags, "|"),
		strings.Join(e.Badges, "|"),
		strings.Join(names, "|"),
		strconv.Itoa(len(e.Rows)),
		formatTime(e.CreatedAt),
		formatTime(e.EditedAt),
	}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
