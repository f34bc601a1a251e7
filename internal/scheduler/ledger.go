package scheduler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Ledger remembers the calendar dates each job has fired on, so that a job
// fires at most once per day even across restarts.
// Implemented by FileLedger, redis.FiredLedger and database.FiredLedger.
type Ledger interface {
	// Fired reports whether job was claimed for date (YYYY-MM-DD)
	Fired(ctx context.Context, job, date string) (bool, error)
	// Claim records job as fired for date; false when already claimed
	Claim(ctx context.Context, job, date string) (bool, error)
	// LastFired returns the latest claimed date, "" if never
	LastFired(ctx context.Context, job string) (string, error)
}

// FileLedger keeps job -> last fired date in a small JSON file
type FileLedger struct {
	path string
	mu   sync.Mutex
}

// NewFileLedger creates a ledger backed by path; the file is created on first claim
func NewFileLedger(path string) *FileLedger {
	return &FileLedger{path: path}
}

func (l *FileLedger) load() (map[string]string, error) {
	data, err := os.ReadFile(l.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	fired := make(map[string]string)
	if err := json.Unmarshal(data, &fired); err != nil {
		return nil, fmt.Errorf("parse ledger %s: %w", l.path, err)
	}
	return fired, nil
}

func (l *FileLedger) store(fired map[string]string) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	data, err := json.MarshalIndent(fired, "", "  ")
	if err != nil {
		return err
	}
	tmp := l.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write ledger: %w", err)
	}
	return os.Rename(tmp, l.path)
}

// Fired implements Ledger
func (l *FileLedger) Fired(ctx context.Context, job, date string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fired, err := l.load()
	if err != nil {
		return false, err
	}
	return fired[job] == date, nil
}

// Claim implements Ledger
func (l *FileLedger) Claim(ctx context.Context, job, date string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fired, err := l.load()
	if err != nil {
		return false, err
	}
	if fired[job] == date {
		return false, nil
	}

	fired[job] = date
	if err := l.store(fired); err != nil {
		return false, err
	}
	return true, nil
}

// LastFired implements Ledger
func (l *FileLedger) LastFired(ctx context.Context, job string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	fired, err := l.load()
	if err != nil {
		return "", err
	}
	return fired[job], nil
}

// MemoryLedger is a process-local Ledger, used by tests and one-shot commands
type MemoryLedger struct {
	mu    sync.Mutex
	fired map[string]string
}

// NewMemoryLedger creates an empty in-memory ledger
func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{fired: make(map[string]string)}
}

// Fired implements Ledger
func (l *MemoryLedger) Fired(ctx context.Context, job, date string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fired[job] == date, nil
}

// Claim implements Ledger
func (l *MemoryLedger) Claim(ctx context.Context, job, date string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fired[job] == date {
		return false, nil
	}
	l.fired[job] = date
	return true, nil
}

// LastFired implements Ledger
func (l *MemoryLedger) LastFired(ctx context.Context, job string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fired[job], nil
}
