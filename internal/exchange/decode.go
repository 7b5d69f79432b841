package exchange

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"mangashelf/pkg/models"
)

// DecodeBatch reads a JSON array of entries. Every record is passed through
// models.UpgradeEntry, so older export shapes come out in the current schema.
// Malformed fields degrade to their zero value and elements that are not
// objects are skipped; both are logged. Only input that is not a JSON array
// fails. Ids are kept; the reconciliation engine ignores them.
func DecodeBatch(r io.Reader, logger *slog.Logger) ([]models.Entry, error) {
	if logger == nil {
		logger = slog.Default()
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read batch: %w", err)
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty import", models.ErrValidation)
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(data, &raws); err != nil {
		return nil, fmt.Errorf("%w: import must be a JSON array of entries: %v", models.ErrValidation, err)
	}

	out := make([]models.Entry, 0, len(raws))
	for i, raw := range raws {
		e, notes, err := models.UpgradeEntry(raw)
		if err != nil {
			logger.Warn("import record skipped", "index", i, "error", err)
			continue
		}
		for _, n := range notes {
			logger.Warn("import field dropped", "index", i, "title", e.Title, "detail", n)
		}
		out = append(out, e)
	}
	return out, nil
}
