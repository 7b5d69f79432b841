package database

import (
	"errors"
	"fmt"

	"github.com/gofrs/flock"
)

// ErrLocked is returned when another process already holds the writer lock.
var ErrLocked = errors.New("catalog is locked by another writer")

// WriterLock serializes writers across processes sharing one database file.
// The server holds it for its lifetime; mutating CLI commands hold it for
// the duration of the command.
type WriterLock struct {
	lock *flock.Flock
}

func NewWriterLock(cfg Config) *WriterLock {
	return &WriterLock{lock: flock.New(cfg.Path + ".lock")}
}

// TryAcquire takes the lock without blocking.
func (l *WriterLock) TryAcquire() error {
	if err := EnsureDataDir(Config{Path: l.lock.Path()}); err != nil {
		return fmt.Errorf("ensure lock dir: %w", err)
	}
	ok, err := l.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire writer lock: %w", err)
	}
	if !ok {
		return ErrLocked
	}
	return nil
}

func (l *WriterLock) Release() error {
	return l.lock.Unlock()
}

func (l *WriterLock) Path() string {
	return l.lock.Path()
}
