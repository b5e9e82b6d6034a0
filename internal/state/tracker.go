package state

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ledger names for the durable work sets.
const (
	SetProcessedWords = "processed_words"
	SetCommittedSlugs = "committed_slugs"
)

const failuresFile = "failed_attempts.jsonl"

// Failure is one recorded failed attempt, kept for operator review.
type Failure struct {
	ID        string    `json:"id"`
	Slug      string    `json:"slug"`
	Stage     string    `json:"stage"`
	Error     string    `json:"error"`
	Timestamp time.Time `json:"ts"`
}

// Tracker maintains the three append-only ledgers that make the pipeline
// resumable: processed words, committed slugs, and failed attempts. All sets
// are loaded into memory on open; every mutation is appended and fsynced
// before the call returns, so a crash loses at most the in-flight clip.
type Tracker struct {
	dir string

	mu       sync.Mutex
	sets     map[string]map[string]struct{}
	handles  map[string]*os.File
	failures []Failure
	failOut  *os.File
}

// Open loads (or creates) the ledgers under dir.
func Open(dir string) (*Tracker, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("state: ensure dir: %w", err)
	}

	t := &Tracker{
		dir:     dir,
		sets:    make(map[string]map[string]struct{}, 2),
		handles: make(map[string]*os.File, 2),
	}

	for _, set := range []string{SetProcessedWords, SetCommittedSlugs} {
		if err := t.openSet(set); err != nil {
			t.Close()
			return nil, err
		}
	}
	if err := t.openFailures(); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

func (t *Tracker) openSet(set string) error {
	path := filepath.Join(t.dir, set+".log")
	members := make(map[string]struct{})

	if file, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line != "" {
				members[line] = struct{}{}
			}
		}
		scanErr := scanner.Err()
		file.Close()
		if scanErr != nil {
			return fmt.Errorf("state: read %s: %w", set, scanErr)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("state: open %s: %w", set, err)
	}

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("state: open %s for append: %w", set, err)
	}

	t.sets[set] = members
	t.handles[set] = out
	return nil
}

func (t *Tracker) openFailures() error {
	path := filepath.Join(t.dir, failuresFile)

	if file, err := os.Open(path); err == nil {
		scanner := bufio.NewScanner(file)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var failure Failure
			if err := json.Unmarshal([]byte(line), &failure); err != nil {
				// A torn trailing line from a crash is expected; skip it.
				continue
			}
			t.failures = append(t.failures, failure)
		}
		scanErr := scanner.Err()
		file.Close()
		if scanErr != nil {
			return fmt.Errorf("state: read failures: %w", scanErr)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("state: open failures: %w", err)
	}

	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("state: open failures for append: %w", err)
	}
	t.failOut = out
	return nil
}

// IsDone reports whether id is already recorded in set.
func (t *Tracker) IsDone(set, id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	members, ok := t.sets[set]
	if !ok {
		return false
	}
	_, done := members[id]
	return done
}

// MarkDone records id in set. Calling it for an already-recorded id is a
// no-op; the ledger only ever grows.
func (t *Tracker) MarkDone(set, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return fmt.Errorf("state: empty id for set %s", set)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	members, ok := t.sets[set]
	if !ok {
		return fmt.Errorf("state: unknown set %s", set)
	}
	if _, done := members[id]; done {
		return nil
	}

	handle := t.handles[set]
	if _, err := handle.WriteString(id + "\n"); err != nil {
		return fmt.Errorf("state: append %s: %w", set, err)
	}
	if err := handle.Sync(); err != nil {
		return fmt.Errorf("state: sync %s: %w", set, err)
	}
	members[id] = struct{}{}
	return nil
}

// Count returns the number of entries recorded in set.
func (t *Tracker) Count(set string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sets[set])
}

// RecordFailure appends a failed attempt to the failures ledger.
func (t *Tracker) RecordFailure(slug, stage string, cause error) error {
	message := ""
	if cause != nil {
		message = cause.Error()
	}
	failure := Failure{
		ID:        uuid.NewString(),
		Slug:      slug,
		Stage:     stage,
		Error:     message,
		Timestamp: time.Now().UTC(),
	}

	data, err := json.Marshal(failure)
	if err != nil {
		return fmt.Errorf("state: encode failure: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.failOut == nil {
		return errors.New("state: tracker closed")
	}
	if _, err := t.failOut.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("state: append failure: %w", err)
	}
	if err := t.failOut.Sync(); err != nil {
		return fmt.Errorf("state: sync failures: %w", err)
	}
	t.failures = append(t.failures, failure)
	return nil
}

// Failures returns a copy of all recorded failed attempts, oldest first.
func (t *Tracker) Failures() []Failure {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Failure, len(t.failures))
	copy(out, t.failures)
	return out
}

// Close releases the ledger file handles.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	var firstErr error
	for name, handle := range t.handles {
		if err := handle.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("state: close %s: %w", name, err)
		}
	}
	t.handles = map[string]*os.File{}
	if t.failOut != nil {
		if err := t.failOut.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("state: close failures: %w", err)
		}
		t.failOut = nil
	}
	return firstErr
}
