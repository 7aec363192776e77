package ledger

import (
	"context"
	"errors"
)

var (
	// ErrNotFound covers both rows that do not exist and rows that exist
	// but belong to a different watcher or episode; callers cannot tell
	// the two apart.
	ErrNotFound = errors.New("not found")
	// ErrConflict is a store-level commit conflict (concurrent writer or
	// duplicate key). Safe to retry the whole call.
	ErrConflict = errors.New("conflict")
	// ErrInvalidArgument is a required field missing or malformed,
	// detected before any store access.
	ErrInvalidArgument = errors.New("invalid argument")
)

func isNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

// Store is the transactional ledger store. All list scans are ordered by
// the relevant timestamp descending, bounded by an exclusive beforeMs, and
// capped at limit rows.
type Store interface {
	// WithTx runs fn inside one atomic transaction. If fn returns an
	// error the transaction is rolled back and nothing is persisted.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	GetSession(ctx context.Context, watcherID, watchSessionID string) (WatchSession, error)
	ListSessions(ctx context.Context, watcherID string, beforeMs int64, limit int) ([]WatchSession, error)
	ListSessionsBySeason(ctx context.Context, watcherID, seasonID string, beforeMs int64, limit int) ([]WatchSession, error)

	GetWatchedSeason(ctx context.Context, watcherID, seasonID string) (WatchedSeason, error)
	ListWatchedSeasons(ctx context.Context, watcherID string, beforeMs int64, limit int) ([]WatchedSeason, error)
	GetWatchedEpisode(ctx context.Context, watcherID, seasonID, episodeID string) (WatchedEpisode, error)
	ListWatchedEpisodes(ctx context.Context, watcherID string, beforeMs int64, limit int) ([]WatchedEpisode, error)

	UpsertWatchLater(ctx context.Context, row WatchLaterSeason) error
	DeleteWatchLater(ctx context.Context, watcherID, seasonID string) error
	GetWatchLater(ctx context.Context, watcherID, seasonID string) (WatchLaterSeason, error)
	ListWatchLater(ctx context.Context, watcherID string, beforeMs int64, limit int) ([]WatchLaterSeason, error)
}

// Tx is the transaction-scoped view used by RecordProgress. Reads observe
// earlier writes in the same transaction.
type Tx interface {
	GetSession(ctx context.Context, watcherID, watchSessionID string) (WatchSession, error)
	InsertSession(ctx context.Context, row WatchSession) error
	UpdateSessionProgress(ctx context.Context, watcherID, watchSessionID string, watchTimeMs, updatedTimeMs int64) error

	GetWatchedSeason(ctx context.Context, watcherID, seasonID string) (WatchedSeason, error)
	InsertWatchedSeason(ctx context.Context, row WatchedSeason) error
	UpdateWatchedSeason(ctx context.Context, row WatchedSeason) error

	GetWatchedEpisode(ctx context.Context, watcherID, seasonID, episodeID string) (WatchedEpisode, error)
	InsertWatchedEpisode(ctx context.Context, row WatchedEpisode) error
	UpdateWatchedEpisode(ctx context.Context, row WatchedEpisode) error
}
