package ledger

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemoryStore is an in-process Store used by tests and local runs. WithTx
// holds the store lock for the whole transaction, so transactions are
// serialized; mutations land on a copy and are swapped in only on commit.
type MemoryStore struct {
	mu         sync.Mutex
	sessions   map[string]WatchSession
	seasons    map[string]WatchedSeason
	episodes   map[string]WatchedEpisode
	watchLater map[string]WatchLaterSeason
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions:   make(map[string]WatchSession),
		seasons:    make(map[string]WatchedSeason),
		episodes:   make(map[string]WatchedEpisode),
		watchLater: make(map[string]WatchLaterSeason),
	}
}

func memKey(parts ...string) string {
	key := parts[0]
	for _, p := range parts[1:] {
		key += "\x00" + p
	}
	return key
}

func cloneMap[V any](src map[string]V) map[string]V {
	dst := make(map[string]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (s *MemoryStore) WithTx(_ context.Context, fn func(tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		sessions: cloneMap(s.sessions),
		seasons:  cloneMap(s.seasons),
		episodes: cloneMap(s.episodes),
	}
	if err := fn(tx); err != nil {
		return err
	}
	s.sessions = tx.sessions
	s.seasons = tx.seasons
	s.episodes = tx.episodes
	return nil
}

func (s *MemoryStore) GetSession(_ context.Context, watcherID, watchSessionID string) (WatchSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.sessions[memKey(watcherID, watchSessionID)]
	if !ok {
		return WatchSession{}, fmt.Errorf("%w: watch session %s", ErrNotFound, watchSessionID)
	}
	return row, nil
}

func (s *MemoryStore) ListSessions(_ context.Context, watcherID string, beforeMs int64, limit int) ([]WatchSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []WatchSession
	for _, row := range s.sessions {
		if row.WatcherID == watcherID && row.UpdatedTimeMs < beforeMs {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedTimeMs != out[j].UpdatedTimeMs {
			return out[i].UpdatedTimeMs > out[j].UpdatedTimeMs
		}
		return out[i].WatchSessionID > out[j].WatchSessionID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) ListSessionsBySeason(_ context.Context, watcherID, seasonID string, beforeMs int64, limit int) ([]WatchSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []WatchSession
	for _, row := range s.sessions {
		if row.WatcherID == watcherID && row.SeasonID == seasonID && row.UpdatedTimeMs < beforeMs {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedTimeMs != out[j].UpdatedTimeMs {
			return out[i].UpdatedTimeMs > out[j].UpdatedTimeMs
		}
		return out[i].WatchSessionID > out[j].WatchSessionID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GetWatchedSeason(_ context.Context, watcherID, seasonID string) (WatchedSeason, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.seasons[memKey(watcherID, seasonID)]
	if !ok {
		return WatchedSeason{}, fmt.Errorf("%w: watched season %s", ErrNotFound, seasonID)
	}
	return row, nil
}

func (s *MemoryStore) ListWatchedSeasons(_ context.Context, watcherID string, beforeMs int64, limit int) ([]WatchedSeason, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []WatchedSeason
	for _, row := range s.seasons {
		if row.WatcherID == watcherID && row.UpdatedTimeMs < beforeMs {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedTimeMs != out[j].UpdatedTimeMs {
			return out[i].UpdatedTimeMs > out[j].UpdatedTimeMs
		}
		return out[i].SeasonID > out[j].SeasonID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) GetWatchedEpisode(_ context.Context, watcherID, seasonID, episodeID string) (WatchedEpisode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.episodes[memKey(watcherID, seasonID, episodeID)]
	if !ok {
		return WatchedEpisode{}, fmt.Errorf("%w: watched episode %s", ErrNotFound, episodeID)
	}
	return row, nil
}

func (s *MemoryStore) ListWatchedEpisodes(_ context.Context, watcherID string, beforeMs int64, limit int) ([]WatchedEpisode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []WatchedEpisode
	for _, row := range s.episodes {
		if row.WatcherID == watcherID && row.UpdatedTimeMs < beforeMs {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].UpdatedTimeMs != out[j].UpdatedTimeMs {
			return out[i].UpdatedTimeMs > out[j].UpdatedTimeMs
		}
		if out[i].SeasonID != out[j].SeasonID {
			return out[i].SeasonID > out[j].SeasonID
		}
		return out[i].EpisodeID > out[j].EpisodeID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) UpsertWatchLater(_ context.Context, row WatchLaterSeason) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.watchLater[memKey(row.WatcherID, row.SeasonID)] = row
	return nil
}

func (s *MemoryStore) DeleteWatchLater(_ context.Context, watcherID, seasonID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchLater, memKey(watcherID, seasonID))
	return nil
}

func (s *MemoryStore) GetWatchLater(_ context.Context, watcherID, seasonID string) (WatchLaterSeason, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.watchLater[memKey(watcherID, seasonID)]
	if !ok {
		return WatchLaterSeason{}, fmt.Errorf("%w: watch later %s", ErrNotFound, seasonID)
	}
	return row, nil
}

func (s *MemoryStore) ListWatchLater(_ context.Context, watcherID string, beforeMs int64, limit int) ([]WatchLaterSeason, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []WatchLaterSeason
	for _, row := range s.watchLater {
		if row.WatcherID == watcherID && row.AddedTimeMs < beforeMs {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AddedTimeMs != out[j].AddedTimeMs {
			return out[i].AddedTimeMs > out[j].AddedTimeMs
		}
		return out[i].SeasonID > out[j].SeasonID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// memTx mutates cloned maps; MemoryStore.WithTx swaps them in on commit.
type memTx struct {
	sessions map[string]WatchSession
	seasons  map[string]WatchedSeason
	episodes map[string]WatchedEpisode
}

func (t *memTx) GetSession(_ context.Context, watcherID, watchSessionID string) (WatchSession, error) {
	row, ok := t.sessions[memKey(watcherID, watchSessionID)]
	if !ok {
		return WatchSession{}, fmt.Errorf("%w: watch session %s", ErrNotFound, watchSessionID)
	}
	return row, nil
}

func (t *memTx) InsertSession(_ context.Context, row WatchSession) error {
	key := memKey(row.WatcherID, row.WatchSessionID)
	if _, ok := t.sessions[key]; ok {
		return fmt.Errorf("%w: watch session %s", ErrConflict, row.WatchSessionID)
	}
	t.sessions[key] = row
	return nil
}

func (t *memTx) UpdateSessionProgress(_ context.Context, watcherID, watchSessionID string, watchTimeMs, updatedTimeMs int64) error {
	key := memKey(watcherID, watchSessionID)
	row, ok := t.sessions[key]
	if !ok {
		return fmt.Errorf("%w: watch session %s", ErrNotFound, watchSessionID)
	}
	row.WatchTimeMs = watchTimeMs
	row.UpdatedTimeMs = updatedTimeMs
	t.sessions[key] = row
	return nil
}

func (t *memTx) GetWatchedSeason(_ context.Context, watcherID, seasonID string) (WatchedSeason, error) {
	row, ok := t.seasons[memKey(watcherID, seasonID)]
	if !ok {
		return WatchedSeason{}, fmt.Errorf("%w: watched season %s", ErrNotFound, seasonID)
	}
	return row, nil
}

func (t *memTx) InsertWatchedSeason(_ context.Context, row WatchedSeason) error {
	key := memKey(row.WatcherID, row.SeasonID)
	if _, ok := t.seasons[key]; ok {
		return fmt.Errorf("%w: watched season %s", ErrConflict, row.SeasonID)
	}
	t.seasons[key] = row
	return nil
}

func (t *memTx) UpdateWatchedSeason(_ context.Context, row WatchedSeason) error {
	key := memKey(row.WatcherID, row.SeasonID)
	if _, ok := t.seasons[key]; !ok {
		return fmt.Errorf("%w: watched season %s", ErrNotFound, row.SeasonID)
	}
	t.seasons[key] = row
	return nil
}

func (t *memTx) GetWatchedEpisode(_ context.Context, watcherID, seasonID, episodeID string) (WatchedEpisode, error) {
	row, ok := t.episodes[memKey(watcherID, seasonID, episodeID)]
	if !ok {
		return WatchedEpisode{}, fmt.Errorf("%w: watched episode %s", ErrNotFound, episodeID)
	}
	return row, nil
}

func (t *memTx) InsertWatchedEpisode(_ context.Context, row WatchedEpisode) error {
	key := memKey(row.WatcherID, row.SeasonID, row.EpisodeID)
	if _, ok := t.episodes[key]; ok {
		return fmt.Errorf("%w: watched episode %s", ErrConflict, row.EpisodeID)
	}
	t.episodes[key] = row
	return nil
}

func (t *memTx) UpdateWatchedEpisode(_ context.Context, row WatchedEpisode) error {
	key := memKey(row.WatcherID, row.SeasonID, row.EpisodeID)
	if _, ok := t.episodes[key]; !ok {
		return fmt.Errorf("%w: watched episode %s", ErrNotFound, row.EpisodeID)
	}
	t.episodes[key] = row
	return nil
}

// Interface checks.
var (
	_ Store = (*MemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
	_ Tx    = (*memTx)(nil)
	_ Tx    = pgTx{}
)
