// Package progresscache holds the current playback offset per watch
// session in a low-latency key-value store, decoupled from the
// transactional ledger. Entries may be momentarily stale or missing
// relative to the ledger; a miss reads as 0.
package progresscache

import "context"

// Store is the hot-path watched-time store.
type Store interface {
	// SetWatchedTime records the current playback offset for a session.
	// Unconditional last-write-wins.
	SetWatchedTime(ctx context.Context, watcherID, watchSessionID string, watchedTimeMs int64) error
	// GetWatchedTime returns the recorded offset, or 0 when no entry
	// exists. A miss is not an error.
	GetWatchedTime(ctx context.Context, watcherID, watchSessionID string) (int64, error)
}
