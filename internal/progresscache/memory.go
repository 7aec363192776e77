package progresscache

import (
	"context"
	"sync"
)

// Memory is an in-process Store for tests and local runs.
type Memory struct {
	mu    sync.RWMutex
	times map[string]int64
}

func NewMemory() *Memory {
	return &Memory{times: make(map[string]int64)}
}

func (m *Memory) SetWatchedTime(_ context.Context, watcherID, watchSessionID string, watchedTimeMs int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.times[watchedTimeKey(watcherID, watchSessionID)] = watchedTimeMs
	return nil
}

func (m *Memory) GetWatchedTime(_ context.Context, watcherID, watchSessionID string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.times[watchedTimeKey(watcherID, watchSessionID)], nil
}
