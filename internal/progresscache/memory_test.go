package progresscache

import (
	"context"
	"testing"
)

func TestMemory_MissReadsAsZero(t *testing.T) {
	m := NewMemory()
	ms, err := m.GetWatchedTime(context.Background(), "watcher-1", "session-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ms != 0 {
		t.Fatalf("expected 0 for missing entry, got %d", ms)
	}
}

func TestMemory_LastWriteWins(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	if err := m.SetWatchedTime(ctx, "watcher-1", "session-1", 1000); err != nil {
		t.Fatalf("set: %v", err)
	}
	if err := m.SetWatchedTime(ctx, "watcher-1", "session-1", 500); err != nil {
		t.Fatalf("set: %v", err)
	}

	ms, _ := m.GetWatchedTime(ctx, "watcher-1", "session-1")
	if ms != 500 {
		t.Fatalf("expected 500 after overwrite, got %d", ms)
	}
}

func TestMemory_KeysAreScopedPerSession(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()
	_ = m.SetWatchedTime(ctx, "watcher-1", "session-1", 100)
	_ = m.SetWatchedTime(ctx, "watcher-1", "session-2", 200)
	_ = m.SetWatchedTime(ctx, "watcher-2", "session-1", 300)

	if ms, _ := m.GetWatchedTime(ctx, "watcher-1", "session-1"); ms != 100 {
		t.Fatalf("watcher-1/session-1: got %d", ms)
	}
	if ms, _ := m.GetWatchedTime(ctx, "watcher-1", "session-2"); ms != 200 {
		t.Fatalf("watcher-1/session-2: got %d", ms)
	}
	if ms, _ := m.GetWatchedTime(ctx, "watcher-2", "session-1"); ms != 300 {
		t.Fatalf("watcher-2/session-1: got %d", ms)
	}
}
