// Package ledger is the watch-progress ledger: it records playback-report
// sessions, maintains the derived latest-season and latest-episode
// pointers, and keeps the hot-path watched-time cache in step with them.
package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/phading-dev/play-activity-service/internal/progresscache"
)

// Ledger orchestrates the transactional store and the progress cache.
// Time always comes from the caller and ids from the injected generator,
// so the transactional logic stays deterministic under test.
type Ledger struct {
	store   Store
	watched progresscache.Store
	log     *zap.Logger
	newID   func() string
}

func New(store Store, watched progresscache.Store, log *zap.Logger) *Ledger {
	if log == nil {
		log = zap.NewNop()
	}
	return &Ledger{
		store:   store,
		watched: watched,
		log:     log,
		newID:   uuid.NewString,
	}
}

// RecordProgressParams is one playback-progress report.
// An empty WatchSessionID starts a new session.
type RecordProgressParams struct {
	WatcherID      string
	SeasonID       string
	EpisodeID      string
	WatchSessionID string
	WatchTimeMs    int64
	NowMs          int64
}

func (p RecordProgressParams) validate() error {
	if p.WatcherID == "" {
		return fmt.Errorf("%w: watcherId is required", ErrInvalidArgument)
	}
	if p.SeasonID == "" {
		return fmt.Errorf("%w: seasonId is required", ErrInvalidArgument)
	}
	if p.EpisodeID == "" {
		return fmt.Errorf("%w: episodeId is required", ErrInvalidArgument)
	}
	if p.WatchTimeMs < 0 {
		return fmt.Errorf("%w: watchTimeMs must be >= 0", ErrInvalidArgument)
	}
	if p.NowMs <= 0 {
		return fmt.Errorf("%w: nowMs must be positive", ErrInvalidArgument)
	}
	return nil
}

// RecordProgress applies one report and returns the session id the caller
// should carry on subsequent reports.
//
// New-session path: inside one transaction, insert the session row and
// move both latest pointers to it; creating a session counts as the most
// recent action, but a pointer never moves backwards in time. Existing
// session: refresh the session row only; pointers track "last switched
// to", not "last nudged forward". In both paths the watched-time cache is
// written after the transaction commits, never as part of it.
func (l *Ledger) RecordProgress(ctx context.Context, p RecordProgressParams) (string, error) {
	if err := p.validate(); err != nil {
		return "", err
	}

	watchSessionID := p.WatchSessionID
	if watchSessionID == "" {
		watchSessionID = l.newID()
		err := l.store.WithTx(ctx, func(tx Tx) error {
			if err := tx.InsertSession(ctx, WatchSession{
				WatcherID:      p.WatcherID,
				WatchSessionID: watchSessionID,
				SeasonID:       p.SeasonID,
				EpisodeID:      p.EpisodeID,
				WatchTimeMs:    p.WatchTimeMs,
				UpdatedTimeMs:  p.NowMs,
			}); err != nil {
				return err
			}
			if err := l.moveSeasonPointer(ctx, tx, p, watchSessionID); err != nil {
				return err
			}
			return l.moveEpisodePointer(ctx, tx, p, watchSessionID)
		})
		if err != nil {
			return "", err
		}
	} else {
		err := l.store.WithTx(ctx, func(tx Tx) error {
			existing, err := tx.GetSession(ctx, p.WatcherID, watchSessionID)
			if err != nil {
				return err
			}
			if existing.SeasonID != p.SeasonID || existing.EpisodeID != p.EpisodeID {
				// Surfaced as not-found so callers cannot probe sessions
				// recorded under other episodes.
				return fmt.Errorf("%w: watch session %s does not match season %s episode %s",
					ErrNotFound, watchSessionID, p.SeasonID, p.EpisodeID)
			}
			return tx.UpdateSessionProgress(ctx, p.WatcherID, watchSessionID, p.WatchTimeMs, p.NowMs)
		})
		if err != nil {
			return "", err
		}
	}

	if err := l.watched.SetWatchedTime(ctx, p.WatcherID, watchSessionID, p.WatchTimeMs); err != nil {
		// The ledger row is already committed, so the caller must still
		// receive the session id or its retry would open a duplicate
		// session. A stale cache entry reads as an older offset until the
		// next report for this session overwrites it.
		l.log.Warn("watched time cache write failed",
			zap.String("watcher_id", p.WatcherID),
			zap.String("watch_session_id", watchSessionID),
			zap.Error(err))
	}
	return watchSessionID, nil
}

func (l *Ledger) moveSeasonPointer(ctx context.Context, tx Tx, p RecordProgressParams, watchSessionID string) error {
	current, err := tx.GetWatchedSeason(ctx, p.WatcherID, p.SeasonID)
	if err != nil {
		if isNotFound(err) {
			return tx.InsertWatchedSeason(ctx, WatchedSeason{
				WatcherID:            p.WatcherID,
				SeasonID:             p.SeasonID,
				LatestEpisodeID:      p.EpisodeID,
				LatestWatchSessionID: watchSessionID,
				UpdatedTimeMs:        p.NowMs,
			})
		}
		return err
	}
	if current.UpdatedTimeMs > p.NowMs {
		// A later report already moved the pointer; never regress it.
		return nil
	}
	current.LatestEpisodeID = p.EpisodeID
	current.LatestWatchSessionID = watchSessionID
	current.UpdatedTimeMs = p.NowMs
	return tx.UpdateWatchedSeason(ctx, current)
}

func (l *Ledger) moveEpisodePointer(ctx context.Context, tx Tx, p RecordProgressParams, watchSessionID string) error {
	current, err := tx.GetWatchedEpisode(ctx, p.WatcherID, p.SeasonID, p.EpisodeID)
	if err != nil {
		if isNotFound(err) {
			return tx.InsertWatchedEpisode(ctx, WatchedEpisode{
				WatcherID:            p.WatcherID,
				SeasonID:             p.SeasonID,
				EpisodeID:            p.EpisodeID,
				LatestWatchSessionID: watchSessionID,
				UpdatedTimeMs:        p.NowMs,
			})
		}
		return err
	}
	if current.UpdatedTimeMs > p.NowMs {
		return nil
	}
	current.LatestWatchSessionID = watchSessionID
	current.UpdatedTimeMs = p.NowMs
	return tx.UpdateWatchedEpisode(ctx, current)
}

// AddToWatchLater bookmarks a season. Adding an existing bookmark only
// refreshes its added time.
func (l *Ledger) AddToWatchLater(ctx context.Context, watcherID, seasonID string, nowMs int64) error {
	if watcherID == "" {
		return fmt.Errorf("%w: watcherId is required", ErrInvalidArgument)
	}
	if seasonID == "" {
		return fmt.Errorf("%w: seasonId is required", ErrInvalidArgument)
	}
	if nowMs <= 0 {
		return fmt.Errorf("%w: nowMs must be positive", ErrInvalidArgument)
	}
	return l.store.UpsertWatchLater(ctx, WatchLaterSeason{
		WatcherID:   watcherID,
		SeasonID:    seasonID,
		AddedTimeMs: nowMs,
	})
}

// DeleteFromWatchLater removes a bookmark. Removing an absent bookmark is
// a no-op.
func (l *Ledger) DeleteFromWatchLater(ctx context.Context, watcherID, seasonID string) error {
	if watcherID == "" {
		return fmt.Errorf("%w: watcherId is required", ErrInvalidArgument)
	}
	if seasonID == "" {
		return fmt.Errorf("%w: seasonId is required", ErrInvalidArgument)
	}
	return l.store.DeleteWatchLater(ctx, watcherID, seasonID)
}

// CheckInWatchLater reports whether a season is bookmarked.
func (l *Ledger) CheckInWatchLater(ctx context.Context, watcherID, seasonID string) (bool, error) {
	if watcherID == "" {
		return false, fmt.Errorf("%w: watcherId is required", ErrInvalidArgument)
	}
	if seasonID == "" {
		return false, fmt.Errorf("%w: seasonId is required", ErrInvalidArgument)
	}
	_, err := l.store.GetWatchLater(ctx, watcherID, seasonID)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
