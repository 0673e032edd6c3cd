package relay

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/Saipa12/TgZamirBor/internal/fsstore"
)

func TestResolveCreatesTopicOnce(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()
	reg := NewTopicRegistry(filepath.Join(t.TempDir(), "topics.json"), -100200, transport)

	first, created, err := reg.Resolve(context.Background(), "Ann Lee", 555)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if !created {
		t.Fatalf("Resolve() created = false on first contact, want true")
	}

	second, created, err := reg.Resolve(context.Background(), "Ann Lee", 555)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if created {
		t.Fatalf("Resolve() created = true on second call, want false")
	}
	if first != second {
		t.Fatalf("Resolve() returned %d then %d, want same id", first, second)
	}
	if len(transport.topics) != 1 {
		t.Fatalf("topic creation calls = %d, want 1", len(transport.topics))
	}

	chatID, ok := reg.ChatFor(first)
	if !ok || chatID != 555 {
		t.Fatalf("ChatFor(%d) = %d, %v, want 555, true", first, chatID, ok)
	}
}

func TestResolveConcurrentFirstMessages(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()
	reg := NewTopicRegistry(filepath.Join(t.TempDir(), "topics.json"), -100200, transport)

	const n = 8
	ids := make([]int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id, _, err := reg.Resolve(context.Background(), "Ann Lee", 555)
			if err != nil {
				t.Errorf("Resolve() error = %v", err)
				return
			}
			ids[i] = id
		}(i)
	}
	wg.Wait()

	if len(transport.topics) != 1 {
		t.Fatalf("topic creation calls = %d, want 1", len(transport.topics))
	}
	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("concurrent Resolve() ids diverge: %v", ids)
		}
	}
}

func TestResolveCreateFailureLeavesNoEntry(t *testing.T) {
	t.Parallel()

	transport := newFakeTransport()
	transport.createErr = errTransport("rate limited")
	path := filepath.Join(t.TempDir(), "topics.json")
	reg := NewTopicRegistry(path, -100200, transport)

	if _, _, err := reg.Resolve(context.Background(), "Ann Lee", 555); err == nil {
		t.Fatalf("Resolve() expected error")
	}
	if fsstore.Exists(path) {
		t.Fatalf("topic state should not be persisted after a failed create")
	}

	transport.createErr = nil
	if _, created, err := reg.Resolve(context.Background(), "Ann Lee", 555); err != nil || !created {
		t.Fatalf("Resolve() after failure = created %v, err %v; want true, nil", created, err)
	}
}

func TestTopicRegistryRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "topics.json")
	transport := newFakeTransport()
	reg := NewTopicRegistry(path, -100200, transport)

	id, _, err := reg.Resolve(context.Background(), "Ann Lee", 555)
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}

	reloaded := NewTopicRegistry(path, -100200, newFakeTransport())
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	got, created, err := reloaded.Resolve(context.Background(), "Ann Lee", 555)
	if err != nil {
		t.Fatalf("Resolve() after reload error = %v", err)
	}
	if created {
		t.Fatalf("Resolve() after reload created a new topic")
	}
	if got != id {
		t.Fatalf("Resolve() after reload = %d, want %d", got, id)
	}
	if chatID, ok := reloaded.ChatFor(id); !ok || chatID != 555 {
		t.Fatalf("ChatFor(%d) after reload = %d, %v, want 555, true", id, chatID, ok)
	}
}

func TestTopicRegistryLoadMalformedFails(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "topics.json")
	if err := os.WriteFile(path, []byte("{broken"), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	reg := NewTopicRegistry(path, -100200, newFakeTransport())
	if err := reg.Load(); !errors.Is(err, fsstore.ErrDecodeFailed) {
		t.Fatalf("Load() error = %v, want ErrDecodeFailed", err)
	}
}
