package exchange

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"time"

	"mangashelf/pkg/models"
)

// Source lists the entries to export.
type Source interface {
	GetAll(ctx context.Context) ([]models.Entry, error)
}

// Exporter renders the whole collection in one of the supported formats.
// Entries are written oldest id first.
type Exporter struct {
	Source Source
	Now    func() time.Time
}

func NewExporter(src Source) *Exporter {
	return &Exporter{Source: src, Now: time.Now}
}

func (x *Exporter) entries(ctx context.Context) ([]models.Entry, error) {
	all, err := x.Source.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	slices.SortFunc(all, func(a, b models.Entry) int { return cmp.Compare(a.ID, b.ID) })
	return all, nil
}

// JSON writes every entry, ids included, as an indented array.
func (x *Exporter) JSON(ctx context.Context, w io.Writer) error {
	all, err := x.entries(ctx)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(all); err != nil {
		return fmt.Errorf("encode json export: %w", err)
	}
	return nil
}

// Markdown writes the human-readable export.
func (x *Exporter) Markdown(ctx context.Context, w io.Writer) error {
	all, err := x.entries(ctx)
	if err != nil {
		return err
	}
	if _, err := io.WriteString(w, RenderMarkdown(all, x.Now())); err != nil {
		return fmt.Errorf("write markdown export: %w", err)
	}
	return nil
}
