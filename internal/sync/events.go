package sync

import (
	"time"

	"github.com/google/uuid"
)

// Event types pushed to connected clients.
const (
	EventEntryCreated    = "entry.created"
	EventEntryUpdated    = "entry.updated"
	EventEntryDeleted    = "entry.deleted"
	EventEntryOpened     = "entry.opened"
	EventCategoryChanged = "category.changed"
	EventImportCompleted = "import.completed"
)

type CatalogEvent struct {
	ID       string    `json:"id"`
	Type     string    `json:"type"`
	EntryID  int64     `json:"entry_id,omitempty"`
	Title    string    `json:"title,omitempty"`
	Category string    `json:"category,omitempty"`
	Summary  string    `json:"summary,omitempty"`
	At       time.Time `json:"at"`
}

// NewEvent stamps a fresh id and time on an event of type typ.
func NewEvent(typ string) CatalogEvent {
	return CatalogEvent{
		ID:   uuid.NewString(),
		Type: typ,
		At:   time.Now().UTC(),
	}
}
