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

// collector records handled paths for assertions.
type collector struct {
	mu    sync.Mutex
	paths []string
}

func (c *collector) handle(_ context.Context, path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paths = append(c.paths, path)
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.paths...)
}

// waitFor polls until cond returns true or the deadline passes.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return cond()
}

func TestWatcher_HandlesCreatedFile(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}

	w, err := New(dir, []string{"*.csv"}, c.handle, zap.NewNop(), WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "orders_2024.csv")
	if err := os.WriteFile(path, []byte("order_id,quantity\n"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if !waitFor(t, 3*time.Second, func() bool { return len(c.snapshot()) == 1 }) {
		t.Fatalf("handler was not called, got %v", c.snapshot())
	}
	if got := c.snapshot()[0]; got != path {
		t.Errorf("handled %q, want %q", got, path)
	}

	stats := w.Stats()
	if stats.FilesSeen != 1 || stats.FilesHandled != 1 {
		t.Errorf("stats = %+v, want 1 seen / 1 handled", stats)
	}
}

func TestWatcher_IgnoresNonMatchingFiles(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}

	w, err := New(dir, []string{"*.csv"}, c.handle, zap.NewNop(), WithDebounce(50*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	if waitFor(t, 500*time.Millisecond, func() bool { return len(c.snapshot()) > 0 }) {
		t.Errorf("handler was called for non-matching file: %v", c.snapshot())
	}
}

func TestWatcher_DebouncesRepeatedWrites(t *testing.T) {
	dir := t.TempDir()
	c := &collector{}

	w, err := New(dir, []string{"*.csv"}, c.handle, zap.NewNop(), WithDebounce(200*time.Millisecond))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "customers.csv")
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create file: %v", err)
	}
	// Simulate a slow upload with several write bursts.
	for i := 0; i < 3; i++ {
		if _, err := f.WriteString("row\n"); err != nil {
			t.Fatalf("failed to write: %v", err)
		}
		_ = f.Sync()
		time.Sleep(50 * time.Millisecond)
	}
	f.Close()

	if !waitFor(t, 3*time.Second, func() bool { return len(c.snapshot()) >= 1 }) {
		t.Fatalf("handler was not called")
	}

	// The bursts settle into a single handler call.
	time.Sleep(300 * time.Millisecond)
	if got := len(c.snapshot()); got != 1 {
		t.Errorf("handler called %d times, want 1", got)
	}
}

func TestWatcher_CreatesMissingDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "drops", "order")
	c := &collector{}

	w, err := New(dir, []string{"*.csv"}, c.handle, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	w.Stop()

	if _, err := os.Stat(dir); err != nil {
		t.Errorf("watch directory was not created: %v", err)
	}
}

func TestWatcher_StopAfterFailedStart(t *testing.T) {
	// A regular file where the watch directory should be makes
	// Start fail before the event loop launches.
	blocker := filepath.Join(t.TempDir(), "block")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}

	w, err := New(filepath.Join(blocker, "order"), []string{"*.csv"}, func(context.Context, string) {}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := w.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded, want error")
	}

	done := make(chan struct{})
	go func() {
		w.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop blocked after failed Start")
	}
}

func TestWatcher_StopIsIdempotent(t *testing.T) {
	w, err := New(t.TempDir(), []string{"*.csv"}, func(context.Context, string) {}, zap.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	w.Stop()
	w.Stop()
}
