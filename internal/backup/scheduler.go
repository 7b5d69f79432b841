package backup

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// FileName is the backup written into the configured directory.
const FileName = "lib-autobackup.json"

// DefaultTimes are the times of day a backup fires when none are configured.
var DefaultTimes = []string{"00:00", "12:00"}

// Exporter writes the full JSON export of the collection.
type Exporter interface {
	JSON(ctx context.Context, w io.Writer) error
}

// TimeOfDay is an hour and minute in the scheduler's clock location.
type TimeOfDay struct {
	Hour   int
	Minute int
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// ParseTimes parses "HH:MM" specs, sorted and deduplicated.
func ParseTimes(specs []string) ([]TimeOfDay, error) {
	if len(specs) == 0 {
		specs = DefaultTimes
	}
	seen := make(map[TimeOfDay]bool, len(specs))
	out := make([]TimeOfDay, 0, len(specs))
	for _, s := range specs {
		t, err := time.Parse("15:04", s)
		if err != nil {
			return nil, fmt.Errorf("backup time %q: want HH:MM", s)
		}
		tod := TimeOfDay{Hour: t.Hour(), Minute: t.Minute()}
		if seen[tod] {
			continue
		}
		seen[tod] = true
		out = append(out, tod)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Hour != out[j].Hour {
			return out[i].Hour < out[j].Hour
		}
		return out[i].Minute < out[j].Minute
	})
	return out, nil
}

// NextRun returns the first scheduled time strictly after now.
func NextRun(now time.Time, times []TimeOfDay) time.Time {
	var next time.Time
	for _, t := range times {
		c := time.Date(now.Year(), now.Month(), now.Day(), t.Hour, t.Minute, 0, 0, now.Location())
		if !c.After(now) {
			c = c.AddDate(0, 0, 1)
		}
		if next.IsZero() || c.Before(next) {
			next = c
		}
	}
	return next
}

// CheckWritable verifies dir accepts new files by creating and removing a
// probe file.
func CheckWritable(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create backup dir: %w", err)
	}
	probe := filepath.Join(dir, ".write-probe-"+uuid.NewString())
	f, err := os.OpenFile(probe, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return fmt.Errorf("backup dir not writable: %w", err)
	}
	_ = f.Close()
	return os.Remove(probe)
}

// Scheduler writes FileName at fixed times of day. After a failed attempt
// the directory is probed for write access before the next export runs.
type Scheduler struct {
	Dir    string
	Times  []TimeOfDay
	Export Exporter
	Log    *slog.Logger
	Now    func() time.Time
	Probe  func(dir string) error

	mu         sync.Mutex
	needsProbe bool
}

func NewScheduler(dir string, times []TimeOfDay, exp Exporter, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		Dir:    dir,
		Times:  times,
		Export: exp,
		Log:    logger,
		Now:    time.Now,
		Probe:  CheckWritable,
	}
}

// Run fires backups until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if len(s.Times) == 0 {
		return errors.New("backup: no times configured")
	}
	for {
		next := NextRun(s.Now(), s.Times)
		s.Log.Info("next backup scheduled", "at", next.Format(time.RFC3339))

		timer := time.NewTimer(next.Sub(s.Now()))
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil
		case <-timer.C:
		}
		s.Attempt(ctx)
	}
}

// Attempt runs one scheduled backup, logging instead of returning errors.
func (s *Scheduler) Attempt(ctx context.Context) {
	s.mu.Lock()
	probe := s.needsProbe
	s.mu.Unlock()

	if probe {
		if err := s.Probe(s.Dir); err != nil {
			s.Log.Warn("backup skipped: directory still not writable", "dir", s.Dir, "error", err)
			return
		}
		s.setNeedsProbe(false)
	}

	path, err := s.RunOnce(ctx)
	if err != nil {
		s.Log.Error("backup failed", "dir", s.Dir, "error", err)
		s.setNeedsProbe(true)
		return
	}
	s.Log.Info("backup written", "path", path)
}

// NeedsProbe reports whether the last attempt failed.
func (s *Scheduler) NeedsProbe() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.needsProbe
}

func (s *Scheduler) setNeedsProbe(v bool) {
	s.mu.Lock()
	s.needsProbe = v
	s.mu.Unlock()
}

// RunOnce writes the backup now. The file is replaced atomically, so a
// failed run leaves the previous backup intact.
func (s *Scheduler) RunOnce(ctx context.Context) (string, error) {
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	final := filepath.Join(s.Dir, FileName)
	tmp := filepath.Join(s.Dir, "."+FileName+"."+uuid.NewString()+".tmp")

	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return "", fmt.Errorf("create temp backup: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()

	if err := s.Export.JSON(ctx, f); err != nil {
		return "", fmt.Errorf("export: %w", err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("sync temp backup: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close temp backup: %w", err)
	}
	if err := os.Rename(tmp, final); err != nil {
		return "", fmt.Errorf("replace backup: %w", err)
	}
	committed = true
	return final, nil
}
