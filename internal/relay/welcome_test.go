package relay

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWelcomeSetCaptureFreezeReload(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "welcome_media.json")
	w := NewWelcomeSet(path)
	if !w.Capturing() {
		t.Fatalf("Capturing() = false on fresh set, want true")
	}

	w.Append(11)
	w.Append(12)
	w.Append(13)
	if err := w.Freeze(); err != nil {
		t.Fatalf("Freeze() error = %v", err)
	}
	if w.Capturing() {
		t.Fatalf("Capturing() = true after freeze, want false")
	}

	// Appends after freeze are dropped.
	w.Append(99)
	if got := w.IDs(); len(got) != 3 || got[0] != 11 || got[1] != 12 || got[2] != 13 {
		t.Fatalf("IDs() after freeze = %v, want [11 12 13]", got)
	}

	reloaded := NewWelcomeSet(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reloaded.Capturing() {
		t.Fatalf("Capturing() = true after reload of frozen set, want false")
	}
	if got := reloaded.IDs(); len(got) != 3 || got[0] != 11 {
		t.Fatalf("IDs() after reload = %v, want [11 12 13]", got)
	}
}

func TestWelcomeSetFreezeWritesOnce(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "welcome_media.json")
	w := NewWelcomeSet(path)
	w.Append(11)
	if err := w.Freeze(); err != nil {
		t.Fatalf("Freeze() error = %v", err)
	}
	first, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}

	if err := w.Freeze(); err != nil {
		t.Fatalf("second Freeze() error = %v", err)
	}
	second, err := os.Stat(path)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	if !first.ModTime().Equal(second.ModTime()) || first.Size() != second.Size() {
		t.Fatalf("second Freeze() rewrote the file")
	}
}

func TestWelcomeSetEmptyFreeze(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "welcome_media.json")
	w := NewWelcomeSet(path)
	if err := w.Freeze(); err != nil {
		t.Fatalf("Freeze() error = %v", err)
	}

	reloaded := NewWelcomeSet(path)
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if reloaded.Capturing() {
		t.Fatalf("empty frozen set should still load as frozen")
	}
	if got := reloaded.IDs(); len(got) != 0 {
		t.Fatalf("IDs() = %v, want empty", got)
	}
}
