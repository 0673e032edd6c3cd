package relay

import (
	"fmt"
	"sync"

	"github.com/Saipa12/TgZamirBor/internal/fsstore"
)

// WelcomeSet is the one-time-captured ordered list of welcome media message
// ids. While unfrozen it accumulates group photo message ids; the sentinel
// freezes it and writes the file exactly once. Frozen state is read-only.
type WelcomeSet struct {
	mu     sync.Mutex
	ids    []int64
	frozen bool

	path string
}

type welcomeState struct {
	PhotoIDs []int64 `json:"photo_ids"`
}

func NewWelcomeSet(path string) *WelcomeSet {
	return &WelcomeSet{path: path}
}

// Load reads the persisted set if present; an existing file means capture
// already completed in an earlier run.
func (w *WelcomeSet) Load() error {
	var state welcomeState
	found, err := fsstore.ReadJSON(w.path, &state)
	if err != nil {
		return fmt.Errorf("load welcome media: %w", err)
	}
	if !found {
		return nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	w.ids = append([]int64(nil), state.PhotoIDs...)
	w.frozen = true
	return nil
}

// Capturing reports whether the set still accepts media.
func (w *WelcomeSet) Capturing() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.frozen
}

// Append records one media message id. Appends after freeze are dropped.
func (w *WelcomeSet) Append(messageID int64) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.frozen {
		return
	}
	w.ids = append(w.ids, messageID)
}

// Freeze persists the captured set and stops further capture. Freezing an
// already frozen set is a no-op.
func (w *WelcomeSet) Freeze() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.frozen {
		return nil
	}
	state := welcomeState{PhotoIDs: append([]int64(nil), w.ids...)}
	if state.PhotoIDs == nil {
		state.PhotoIDs = []int64{}
	}
	if err := fsstore.WriteJSONAtomic(w.path, state, fsstore.FileOptions{}); err != nil {
		return fmt.Errorf("save welcome media: %w", err)
	}
	w.frozen = true
	return nil
}

// IDs returns the captured media ids in original order.
func (w *WelcomeSet) IDs() []int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]int64(nil), w.ids...)
}
