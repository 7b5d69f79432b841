package reconcile

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"mangashelf/internal/fingerprint"
	"mangashelf/pkg/models"
)

// Store is the slice of the entry store the engine writes through.
type Store interface {
	GetAll(ctx context.Context) ([]models.Entry, error)
	Add(ctx context.Context, e models.Entry) (int64, error)
	Update(ctx context.Context, id int64, e models.Entry) error
}

// CategoryEnsurer creates a category when it does not exist yet and reports
// whether it did.
type CategoryEnsurer interface {
	Ensure(ctx context.Context, name string) (bool, error)
}

// TxRunner runs fn in one store transaction.
type TxRunner interface {
	ExecTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Engine reconciles incoming records against the stored collection. Each
// record is inserted, merged into its fingerprint match, or archive-forked.
type Engine struct {
	mu         sync.Mutex
	store      Store
	categories CategoryEnsurer
	tx         TxRunner
	now        func() time.Time
	log        *slog.Logger
}

func NewEngine(store Store, categories CategoryEnsurer, tx TxRunner, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		categories: categories,
		tx:         tx,
		now:        func() time.Time { return time.Now().UTC() },
		log:        slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type action int

const (
	actionInsert action = iota
	actionMerge
	actionArchive
)

func (a action) String() string {
	switch a {
	case actionInsert:
		return "insert"
	case actionMerge:
		return "merge"
	default:
		return "archive"
	}
}

// batch is the state carried across the records of one ImportBatch call.
type batch struct {
	byFingerprint map[string]models.Entry
	knownCategory map[string]bool
}

// outcome is what one record did; it is applied to the batch state only
// after its transaction commits.
type outcome struct {
	action     action
	category   string
	created    bool
	register   map[string]models.Entry
	resultID   int64
	resultName string
}

// ImportBatch applies incoming in order. Records run in their own
// transactions: a failing record is reported in Result.Failures and the
// rest continue. A failure to read the current collection fails the whole
// batch. When ctx is cancelled between records the batch stops and the
// partial Result is returned with ctx.Err().
func (e *Engine) ImportBatch(ctx context.Context, incoming []models.Entry) (Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	res := Result{
		CategoriesCreated: []string{},
		Failures:          []RecordError{},
	}

	existing, err := e.store.GetAll(ctx)
	if err != nil {
		return res, fmt.Errorf("load collection: %w", err)
	}

	b := &batch{
		byFingerprint: make(map[string]models.Entry, len(existing)+len(incoming)),
		knownCategory: make(map[string]bool),
	}
	// GetAll lists newest first; iterate backwards so the newest record wins
	// a shared fingerprint.
	for i := len(existing) - 1; i >= 0; i-- {
		b.byFingerprint[fingerprint.Fingerprint(existing[i])] = existing[i]
	}

	for i, rec := range incoming {
		if err := ctx.Err(); err != nil {
			e.log.Warn("import cancelled", "processed", i, "total", len(incoming))
			return res, err
		}

		var out outcome
		err := e.tx.ExecTx(ctx, func(ctx context.Context) error {
			var err error
			out, err = e.apply(ctx, b, rec)
			return err
		})
		if err != nil {
			e.log.Warn("import record failed", "index", i, "title", rec.Title, "error", err)
			res.Failures = append(res.Failures, RecordError{Index: i, Title: rec.Title, Err: err})
			continue
		}

		if out.category != "" {
			b.knownCategory[out.category] = true
			if out.created {
				res.CategoriesCreated = append(res.CategoriesCreated, out.category)
			}
		}
		for fp, ent := range out.register {
			b.byFingerprint[fp] = ent
		}
		switch out.action {
		case actionInsert:
			res.Inserted++
		case actionMerge:
			res.Merged++
		case actionArchive:
			res.Archived++
		}
		e.log.Debug("import record", "index", i, "action", out.action.String(), "id", out.resultID, "title", out.resultName)
	}

	e.log.Info("import finished",
		"records", len(incoming),
		"inserted", res.Inserted,
		"merged", res.Merged,
		"archived", res.Archived,
		"categories_created", len(res.CategoriesCreated),
		"failures", len(res.Failures),
	)
	return res, nil
}

// apply runs inside the record's transaction and must not touch b.
func (e *Engine) apply(ctx context.Context, b *batch, in models.Entry) (outcome, error) {
	var out outcome

	if name := strings.TrimSpace(in.Category); name != "" && name != models.AllCategory && !b.knownCategory[name] {
		created, err := e.categories.Ensure(ctx, name)
		if err != nil {
			return out, fmt.Errorf("ensure category %q: %w", name, err)
		}
		out.category, out.created = name, created
	}

	fp := fingerprint.Fingerprint(in)
	match, found := b.byFingerprint[fp]

	switch {
	case !found:
		ent, err := e.insert(ctx, in, "")
		if err != nil {
			return out, err
		}
		out.action = actionInsert
		out.register = map[string]models.Entry{fp: ent}
		out.resultID, out.resultName = ent.ID, ent.Title

	case in.IsDataType(models.DataTypeMD) &&
		match.Description != in.Description &&
		!match.IsDataType(models.DataTypeArchive):
		archived := match.Clone()
		archived.DataType = models.DataTypeArchive
		if err := e.store.Update(ctx, match.ID, archived); err != nil {
			return out, fmt.Errorf("archive entry %d: %w", match.ID, err)
		}
		ent, err := e.insert(ctx, in, models.DataTypeLib)
		if err != nil {
			return out, err
		}
		out.action = actionArchive
		out.register = map[string]models.Entry{fp: ent}
		out.resultID, out.resultName = ent.ID, ent.Title

	default:
		merged := merge(match, in)
		if err := e.store.Update(ctx, match.ID, merged); err != nil {
			return out, fmt.Errorf("merge into entry %d: %w", match.ID, err)
		}
		now := e.now()
		merged.EditedAt = &now
		out.action = actionMerge
		out.register = map[string]models.Entry{fp: merged}
		out.register[fingerprint.Fingerprint(merged)] = merged
		out.resultID, out.resultName = merged.ID, merged.Title
	}
	return out, nil
}

// insert stores in as a new record. dataType overrides the incoming data
// type when set.
func (e *Engine) insert(ctx context.Context, in models.Entry, dataType string) (models.Entry, error) {
	ent := in.Clone()
	ent.ID = 0
	ent.DataType = firstNonEmpty(dataType, strings.TrimSpace(in.DataType), models.DataTypeLib)
	ent.Category = firstNonEmpty(strings.TrimSpace(in.Category), models.AllCategory)
	now := e.now()
	ent.CreatedAt = &now
	ent.OpenedAt = nil
	ent.EditedAt = nil
	ent.Tags = models.DedupeStrings(in.Tags)
	ent.Badges = models.DedupeStrings(in.Badges)
	ent.SchemaVersion = models.SchemaVersion

	id, err := e.store.Add(ctx, ent)
	if err != nil {
		return ent, fmt.Errorf("insert %q: %w", in.Title, err)
	}
	ent.ID = id
	return ent, nil
}
