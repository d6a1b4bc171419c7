package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"
)

type recorder struct {
	mu    sync.Mutex
	paths []string
}

func (r *recorder) record(path string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.paths = append(r.paths, path)
}

func (r *recorder) get() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.paths))
	copy(out, r.paths)
	return out
}

func (r *recorder) waitFor(t *testing.T, n int, timeout time.Duration) []string {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if got := r.get(); len(got) >= n {
			return got
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d callbacks, got %v", n, r.get())
	return nil
}

func startWatcher(t *testing.T, inbox string, rec *recorder) *Watcher {
	t.Helper()
	w := NewWatcher(inbox, rec.record, zap.NewNop())
	w.debounce = 50 * time.Millisecond
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("failed to start watcher: %v", err)
	}
	t.Cleanup(w.Stop)
	return w
}

func TestWatcher_NewJSONFile(t *testing.T) {
	inbox := t.TempDir()
	rec := &recorder{}
	startWatcher(t, inbox, rec)

	path := filepath.Join(inbox, "record.json")
	if err := os.WriteFile(path, []byte(`{"id_atencion": 1}`), 0644); err != nil {
		t.Fatal(err)
	}

	got := rec.waitFor(t, 1, 3*time.Second)
	if got[0] != path {
		t.Errorf("callback path = %q, want %q", got[0], path)
	}
}

func TestWatcher_IgnoresNonJSON(t *testing.T) {
	inbox := t.TempDir()
	rec := &recorder{}
	startWatcher(t, inbox, rec)

	if err := os.WriteFile(filepath.Join(inbox, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	time.Sleep(300 * time.Millisecond)
	if got := rec.get(); len(got) != 0 {
		t.Errorf("non-JSON file triggered callbacks: %v", got)
	}
}

func TestWatcher_DebouncesWrites(t *testing.T) {
	inbox := t.TempDir()
	rec := &recorder{}
	startWatcher(t, inbox, rec)

	path := filepath.Join(inbox, "record.json")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	// Several quick writes simulate a file being copied in.
	for i := 0; i < 5; i++ {
		if _, err := f.WriteString(`{"id_atencion": 1}`); err != nil {
			t.Fatal(err)
		}
		if err := f.Sync(); err != nil {
			t.Fatal(err)
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}

	rec.waitFor(t, 1, 3*time.Second)
	time.Sleep(300 * time.Millisecond)
	if got := rec.get(); len(got) != 1 {
		t.Errorf("got %d callbacks, want 1 after debounce", len(got))
	}
}

func TestWatcher_StopCancelsPending(t *testing.T) {
	inbox := t.TempDir()
	rec := &recorder{}
	w := NewWatcher(inbox, rec.record, zap.NewNop())
	w.debounce = 200 * time.Millisecond
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(inbox, "record.json")
	if err := os.WriteFile(path, []byte(`{}`), 0644); err != nil {
		t.Fatal(err)
	}
	// Give fsnotify time to deliver the event, then stop inside the debounce window.
	time.Sleep(50 * time.Millisecond)
	w.Stop()

	time.Sleep(400 * time.Millisecond)
	if got := rec.get(); len(got) != 0 {
		t.Errorf("stopped watcher still fired callbacks: %v", got)
	}
}

func TestWatcher_MissingInbox(t *testing.T) {
	w := NewWatcher(filepath.Join(t.TempDir(), "nope"), func(string) {}, zap.NewNop())
	if err := w.Start(context.Background()); err == nil {
		t.Error("expected error for missing inbox directory")
		w.Stop()
	}
}
