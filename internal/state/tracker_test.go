package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestTrackerMarkDoneIsIdempotent(t *testing.T) {
	tracker, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer tracker.Close()

	if tracker.IsDone(SetProcessedWords, "abandon") {
		t.Fatal("IsDone() = true before any mark")
	}
	for i := 0; i < 3; i++ {
		if err := tracker.MarkDone(SetProcessedWords, "abandon"); err != nil {
			t.Fatalf("MarkDone() attempt %d error = %v", i, err)
		}
	}
	if !tracker.IsDone(SetProcessedWords, "abandon") {
		t.Fatal("IsDone() = false after mark")
	}
	if got := tracker.Count(SetProcessedWords); got != 1 {
		t.Fatalf("Count() = %d, want 1", got)
	}
}

func TestTrackerReloadsFromDisk(t *testing.T) {
	dir := t.TempDir()

	tracker, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := tracker.MarkDone(SetProcessedWords, "abandon"); err != nil {
		t.Fatalf("MarkDone() error = %v", err)
	}
	if err := tracker.MarkDone(SetCommittedSlugs, "clip-a1"); err != nil {
		t.Fatalf("MarkDone() error = %v", err)
	}
	if err := tracker.RecordFailure("clip-b2", "download", errors.New("size ceiling exceeded")); err != nil {
		t.Fatalf("RecordFailure() error = %v", err)
	}
	if err := tracker.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer reopened.Close()

	if !reopened.IsDone(SetProcessedWords, "abandon") {
		t.Error("processed word lost across reopen")
	}
	if !reopened.IsDone(SetCommittedSlugs, "clip-a1") {
		t.Error("committed slug lost across reopen")
	}
	failures := reopened.Failures()
	if len(failures) != 1 {
		t.Fatalf("Failures() count = %d, want 1", len(failures))
	}
	if failures[0].Slug != "clip-b2" || failures[0].Stage != "download" {
		t.Errorf("failure = %+v, want slug clip-b2 stage download", failures[0])
	}
	if failures[0].ID == "" || failures[0].Timestamp.IsZero() {
		t.Errorf("failure missing id or timestamp: %+v", failures[0])
	}
}

func TestTrackerSkipsTornFailureLine(t *testing.T) {
	dir := t.TempDir()
	content := `{"id":"x","slug":"clip-a1","stage":"speech","error":"timeout","ts":"2026-01-02T03:04:05Z"}` + "\n" + `{"slug":"clip-b2","sta`
	if err := os.WriteFile(filepath.Join(dir, failuresFile), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	tracker, err := Open(dir)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer tracker.Close()

	failures := tracker.Failures()
	if len(failures) != 1 {
		t.Fatalf("Failures() count = %d, want 1 (torn line skipped)", len(failures))
	}
	if failures[0].Slug != "clip-a1" {
		t.Errorf("failure slug = %s, want clip-a1", failures[0].Slug)
	}
}

func TestTrackerRejectsUnknownSetAndEmptyID(t *testing.T) {
	tracker, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer tracker.Close()

	if err := tracker.MarkDone("bogus", "x"); err == nil {
		t.Error("MarkDone() on unknown set succeeded")
	}
	if err := tracker.MarkDone(SetProcessedWords, "  "); err == nil {
		t.Error("MarkDone() with blank id succeeded")
	}
}

func TestAcquireLockBlocksSecondHolder(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.lock")

	first, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock() error = %v", err)
	}
	defer first.Release()

	if _, err := AcquireLock(path); err == nil {
		t.Fatal("second AcquireLock() succeeded while lock held")
	}

	first.Release()
	second, err := AcquireLock(path)
	if err != nil {
		t.Fatalf("AcquireLock() after release error = %v", err)
	}
	second.Release()
}
