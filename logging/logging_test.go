package logging

import (
	"os"
	"path/filepath"
	"testing"
)

func TestRotateKeepsOneBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")

	w, err := NewRotatingWriter(path, 64)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer w.Close()

	line := []byte("0123456789012345678901234567890123456789\n")
	if _, err := w.Write(line); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if _, err := w.Write(line); err != nil {
		t.Fatalf("second write: %v", err)
	}

	backup, err := os.ReadFile(path + ".1")
	if err != nil {
		t.Fatalf("expected backup after crossing the size cap: %v", err)
	}
	if len(backup) != 2*len(line) {
		t.Fatalf("backup holds %d bytes, want %d", len(backup), 2*len(line))
	}

	if _, err := w.Write(line); err != nil {
		t.Fatalf("write after rotation: %v", err)
	}
	fresh, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read fresh file: %v", err)
	}
	if len(fresh) != len(line) {
		t.Fatalf("fresh file holds %d bytes, want %d", len(fresh), len(line))
	}
}

func TestExistingSizeCountsTowardCap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "daemon.log")
	if err := os.WriteFile(path, make([]byte, 100), 0644); err != nil {
		t.Fatalf("seed file: %v", err)
	}

	w, err := NewRotatingWriter(path, 64)
	if err != nil {
		t.Fatalf("NewRotatingWriter: %v", err)
	}
	defer w.Close()

	if _, err := w.Write([]byte("x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("oversized carryover should rotate on first write: %v", err)
	}
}
