package reconcile

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mangashelf/internal/category"
	"mangashelf/internal/entry"
	"mangashelf/internal/settings"
	"mangashelf/pkg/database"
	"mangashelf/pkg/models"
)

type fixture struct {
	engine   *Engine
	entries  *entry.Repo
	registry *category.Registry
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(context.Background(), database.Config{Path: filepath.Join(t.TempDir(), "rec.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	entries := entry.NewRepo(db)
	reg := category.NewRegistry(db, entries, settings.NewRepo(db), logger)
	eng := NewEngine(entries, reg, database.NewTxManager(db), WithLogger(logger))
	return &fixture{engine: eng, entries: entries, registry: reg}
}

func (f *fixture) all(t *testing.T) []models.Entry {
	t.Helper()
	out, err := f.entries.GetAll(context.Background())
	require.NoError(t, err)
	return out
}

func TestImportBatch_SoloScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.registry.Add(ctx, "Action"))
	id, err := f.entries.Add(ctx, models.Entry{
		Title:    "Solo",
		Category: "Action",
		Rating:   models.IntPtr(8),
		Tags:     []string{"t1"},
	})
	require.NoError(t, err)

	res, err := f.engine.ImportBatch(ctx, []models.Entry{{
		Title:    "Solo",
		Category: "Action",
		Tags:     []string{"t2"},
		DataType: models.DataTypeJSON,
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Merged)
	assert.Zero(t, res.Inserted)
	assert.Empty(t, res.CategoriesCreated)
	assert.NoError(t, res.Err())

	all := f.all(t)
	require.Len(t, all, 1)
	got := all[0]
	assert.Equal(t, id, got.ID)
	assert.Equal(t, []string{"t1", "t2"}, got.Tags)
	require.NotNil(t, got.Rating)
	assert.Equal(t, 8, *got.Rating)
	assert.Equal(t, "Action", got.Category)
	assert.NotNil(t, got.EditedAt)
}

func TestImportBatch_InsertNormalizesRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	opened := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	res, err := f.engine.ImportBatch(ctx, []models.Entry{{
		ID:       500,
		Title:    "Blame!",
		Category: "  Sci-Fi ",
		Tags:     []string{"cyberpunk", "cyberpunk"},
		DataType: " ",
		OpenedAt: &opened,
		EditedAt: &opened,
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, []string{"Sci-Fi"}, res.CategoriesCreated)

	all := f.all(t)
	require.Len(t, all, 1)
	got := all[0]
	assert.NotEqual(t, int64(500), got.ID)
	assert.Equal(t, "Sci-Fi", got.Category)
	assert.Equal(t, models.DataTypeLib, got.DataType)
	assert.Equal(t, []string{"cyberpunk"}, got.Tags)
	assert.NotNil(t, got.CreatedAt)
	assert.Nil(t, got.OpenedAt)
	assert.Nil(t, got.EditedAt)

	names, err := f.registry.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"All", "Sci-Fi"}, names)
}

func TestImportBatch_Idempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	batch := []models.Entry{
		{Title: "Akira", Tags: []string{"classic"}, Rating: models.IntPtr(9), Category: "Sci-Fi"},
		{Title: "Notes", Description: "v1", DataType: models.DataTypeMD},
		{Slug: "gits", Title: "Ghost in the Shell", Characters: []models.Character{{Name: "Motoko"}}},
	}

	first, err := f.engine.ImportBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 3, first.Inserted)
	before := f.all(t)

	second, err := f.engine.ImportBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 3, second.Merged)
	assert.Zero(t, second.Inserted)
	assert.Zero(t, second.Archived)
	assert.Empty(t, second.CategoriesCreated)

	after := f.all(t)
	require.Len(t, after, len(before))
	for i := range before {
		b, a := before[i], after[i]
		assert.Equal(t, b.ID, a.ID)
		assert.Equal(t, b.Title, a.Title)
		assert.Equal(t, b.Tags, a.Tags)
		assert.Equal(t, b.Rating, a.Rating)
		assert.Equal(t, b.Category, a.Category)
		assert.Equal(t, b.Characters, a.Characters)
		assert.Equal(t, b.Description, a.Description)
		assert.Equal(t, b.DataType, a.DataType)
		assert.Equal(t, b.CreatedAt, a.CreatedAt)
	}
}

func TestImportBatch_UnionNeverShrinks(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.entries.Add(ctx, models.Entry{
		Title:  "Berserk",
		Tags:   []string{"dark", "fantasy"},
		Badges: []string{"favorite"},
		Characters: []models.Character{
			{Name: "Guts", Role: "lead"},
			{Name: "Casca", Role: "support"},
		},
		Rows: []models.ChapterRow{
			{ChapterSE: "1", Description: "old"},
			{ChapterSE: "2", Description: "two"},
		},
		Description: "keep me",
	})
	require.NoError(t, err)

	_, err = f.engine.ImportBatch(ctx, []models.Entry{{
		Title:       "BERSERK",
		Tags:        []string{"fantasy", "seinen"},
		Characters:  []models.Character{{Name: "Guts", Role: "black swordsman"}, {Name: "Griffith"}},
		Rows:        []models.ChapterRow{{ChapterSE: "1", Description: "new"}, {ChapterSE: "3"}},
		Description: "   ",
	}})
	require.NoError(t, err)

	all := f.all(t)
	require.Len(t, all, 1)
	got := all[0]
	assert.Equal(t, "Berserk", got.Title, "title stays with the existing record")
	assert.Equal(t, []string{"dark", "fantasy", "seinen"}, got.Tags)
	assert.Equal(t, []string{"favorite"}, got.Badges)
	assert.Equal(t, "keep me", got.Description)

	require.Len(t, got.Characters, 3)
	assert.Equal(t, "Guts", got.Characters[0].Name)
	assert.Equal(t, "black swordsman", got.Characters[0].Role)
	assert.Equal(t, "Casca", got.Characters[1].Name)
	assert.Equal(t, "Griffith", got.Characters[2].Name)

	require.Len(t, got.Rows, 3)
	assert.Equal(t, "new", got.Rows[0].Description)
	assert.Equal(t, "2", got.Rows[1].ChapterSE)
	assert.Equal(t, "3", got.Rows[2].ChapterSE)
}

func TestImportBatch_ArchiveFork(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	origID, err := f.entries.Add(ctx, models.Entry{
		Slug:        "notes-1",
		Title:       "Notes",
		Description: "old text",
		DataType:    models.DataTypeMD,
		Category:    models.AllCategory,
	})
	require.NoError(t, err)

	res, err := f.engine.ImportBatch(ctx, []models.Entry{{
		Slug:        "notes-1",
		Title:       "Notes",
		Description: "new text",
		DataType:    models.DataTypeMD,
	}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Archived)

	all := f.all(t)
	require.Len(t, all, 2)

	orig, err := f.entries.GetByID(ctx, origID)
	require.NoError(t, err)
	assert.Equal(t, models.DataTypeArchive, orig.DataType)
	assert.Equal(t, "old text", orig.Description)

	live := all[0]
	assert.NotEqual(t, origID, live.ID)
	assert.Equal(t, models.DataTypeLib, live.DataType)
	assert.Equal(t, "new text", live.Description)

	// the next import matches the live record, not the archived one
	res, err = f.engine.ImportBatch(ctx, []models.Entry{{Slug: "notes-1", Title: "Notes", Tags: []string{"x"}}})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Merged)

	got, err := f.entries.GetByID(ctx, live.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, got.Tags)
}

func TestImportBatch_ArchivedRecordRevived(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.entries.Add(ctx, models.Entry{Title: "Old", DataType: models.DataTypeArchive})
	require.NoError(t, err)

	_, err = f.engine.ImportBatch(ctx, []models.Entry{{Title: "Old", DataType: models.DataTypeJSON}})
	require.NoError(t, err)

	got, err := f.entries.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, models.DataTypeLib, got.DataType)
}

func TestImportBatch_IntraBatchDedup(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	res, err := f.engine.ImportBatch(ctx, []models.Entry{
		{Title: "Monster", Tags: []string{"a"}},
		{Title: "monster!", Tags: []string{"b"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 1, res.Merged)

	all := f.all(t)
	require.Len(t, all, 1)
	assert.Equal(t, []string{"a", "b"}, all[0].Tags)
}

func TestImportBatch_CategoryEnsuredOncePerBatch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	counter := &countingEnsurer{next: f.registry}
	eng := NewEngine(f.entries, counter, database.NewTxManager(f.entries.DB))

	res, err := eng.ImportBatch(ctx, []models.Entry{
		{Title: "A", Category: "Drama"},
		{Title: "B", Category: "Drama"},
		{Title: "C", Category: models.AllCategory},
		{Title: "D"},
	})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Inserted)
	assert.Equal(t, []string{"Drama"}, res.CategoriesCreated)
	assert.Equal(t, 1, counter.calls)
}

func TestImportBatch_MergePrecedence(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	id, err := f.entries.Add(ctx, models.Entry{Title: "Pluto", Rating: models.IntPtr(0)})
	require.NoError(t, err)

	_, err = f.engine.ImportBatch(ctx, []models.Entry{{
		Title:         "Pluto",
		Rating:        models.IntPtr(7),
		CoverImageURL: models.StringPtr("https://img/pluto.jpg"),
		Category:      "Mystery",
		Description:   "robots",
	}})
	require.NoError(t, err)

	got, err := f.entries.GetByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, 7, *got.Rating, "falsy existing rating yields to incoming")
	assert.Equal(t, "https://img/pluto.jpg", *got.CoverImageURL)
	assert.Equal(t, models.AllCategory, got.Category, "existing category wins")
	assert.Equal(t, "robots", got.Description)
}

func TestMerge_DescriptionTrimmed(t *testing.T) {
	existing := models.Entry{Title: "Pluto", Description: "old"}

	got := merge(existing, models.Entry{Title: "Pluto", Description: "  robots \n"})
	assert.Equal(t, "robots", got.Description)

	got = merge(existing, models.Entry{Title: "Pluto", Description: " \t "})
	assert.Equal(t, "old", got.Description)
}

func TestImportBatch_FailureIsolation(t *testing.T) {
	ctx := context.Background()
	store := &fakeStore{failTitle: "Broken"}
	eng := NewEngine(store, noopEnsurer{}, passThroughTx{})

	res, err := eng.ImportBatch(ctx, []models.Entry{
		{Title: "One"},
		{Title: "Broken"},
		{Title: "Two"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Inserted)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, 1, res.Failures[0].Index)
	assert.Equal(t, "Broken", res.Failures[0].Title)
	assert.ErrorIs(t, res.Err(), errBoom)
	assert.Len(t, store.added, 2)
}

func TestImportBatch_FailedRecordRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	store := failingStore{Repo: f.entries, fail: "Lose"}
	eng := NewEngine(store, f.registry, database.NewTxManager(f.entries.DB))
	res, err := eng.ImportBatch(ctx, []models.Entry{
		{Title: "Keep", Category: "Good"},
		{Title: "Lose", Category: "Bad"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, []string{"Good"}, res.CategoriesCreated)

	all := f.all(t)
	require.Len(t, all, 1)
	assert.Equal(t, "Keep", all[0].Title)

	names, err := f.registry.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"All", "Good"}, names, "category created by the failed record is rolled back")
}

func TestImportBatch_LoadFailureFailsBatch(t *testing.T) {
	eng := NewEngine(&fakeStore{getAllErr: errBoom}, noopEnsurer{}, passThroughTx{})
	_, err := eng.ImportBatch(context.Background(), []models.Entry{{Title: "x"}})
	assert.ErrorIs(t, err, errBoom)
}

func TestImportBatch_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	store := &fakeStore{onAdd: func(int) { cancel() }}
	eng := NewEngine(store, noopEnsurer{}, passThroughTx{})

	res, err := eng.ImportBatch(ctx, []models.Entry{{Title: "a"}, {Title: "b"}, {Title: "c"}})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, res.Inserted)
	assert.Len(t, store.added, 1)
}

var errBoom = errors.New("boom")

type fakeStore struct {
	getAllErr error
	failTitle string
	onAdd     func(n int)
	added     []models.Entry
	nextID    int64
}

func (s *fakeStore) GetAll(context.Context) ([]models.Entry, error) {
	if s.getAllErr != nil {
		return nil, s.getAllErr
	}
	return nil, nil
}

func (s *fakeStore) Add(_ context.Context, e models.Entry) (int64, error) {
	if e.Title == s.failTitle {
		return 0, errBoom
	}
	s.nextID++
	e.ID = s.nextID
	s.added = append(s.added, e)
	if s.onAdd != nil {
		s.onAdd(len(s.added))
	}
	return e.ID, nil
}

func (s *fakeStore) Update(context.Context, int64, models.Entry) error {
	return nil
}

type noopEnsurer struct{}

func (noopEnsurer) Ensure(context.Context, string) (bool, error) { return false, nil }

type countingEnsurer struct {
	next  CategoryEnsurer
	calls int
}

func (c *countingEnsurer) Ensure(ctx context.Context, name string) (bool, error) {
	c.calls++
	return c.next.Ensure(ctx, name)
}

type failingStore struct {
	*entry.Repo
	fail string
}

func (s failingStore) Add(ctx context.Context, e models.Entry) (int64, error) {
	if e.Title == s.fail {
		return 0, errBoom
	}
	return s.Repo.Add(ctx, e)
}

type passThroughTx struct{}

func (passThroughTx) ExecTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
