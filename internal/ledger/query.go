package ledger

import (
	"context"
	"fmt"
)

// ContinueEpisode is the in-progress episode of a season.
type ContinueEpisode struct {
	EpisodeID      string
	ContinueTimeMs int64
}

// LatestWatchedEpisode resolves the season pointer plus the cached offset
// of its session.
type LatestWatchedEpisode struct {
	EpisodeID     string
	WatchedTimeMs int64
}

// RecentSeason is one row of the recently-watched view.
type RecentSeason struct {
	SeasonID            string
	LatestEpisodeID     string
	LatestWatchedTimeMs int64
	UpdatedTimeMs       int64
}

// SessionEntry is one row of the watch-session history.
type SessionEntry struct {
	WatchSessionID string
	SeasonID       string
	EpisodeID      string
	WatchedTimeMs  int64
	UpdatedTimeMs  int64
}

// EpisodeEntry is one row of the watched-episode history.
type EpisodeEntry struct {
	SeasonID      string
	EpisodeID     string
	WatchedTimeMs int64
	UpdatedTimeMs int64
}

// WatchLaterEntry is one row of the watch-later list.
type WatchLaterEntry struct {
	SeasonID    string
	AddedTimeMs int64
}

func validateListArgs(watcherID string, cursorMs int64, limit int) error {
	if watcherID == "" {
		return fmt.Errorf("%w: watcherId is required", ErrInvalidArgument)
	}
	if cursorMs <= 0 {
		return fmt.Errorf("%w: cursor must be positive", ErrInvalidArgument)
	}
	if limit <= 0 {
		return fmt.Errorf("%w: limit must be positive", ErrInvalidArgument)
	}
	return nil
}

// nextCursor implements the shared pagination policy: a cursor is handed
// back only when the page is full, so a short page always means
// end-of-list. The cursor is the last row's own timestamp and the scan
// bound is exclusive, which keeps boundary ties from repeating.
func nextCursor(returned, limit int, lastMs int64) int64 {
	if returned == limit {
		return lastMs
	}
	return 0
}

// GetContinueEpisode returns the most recently touched episode of a
// season, with its progress, before nowMs. found is false when the season
// was never watched.
func (l *Ledger) GetContinueEpisode(ctx context.Context, watcherID, seasonID string, nowMs int64) (ContinueEpisode, bool, error) {
	if watcherID == "" {
		return ContinueEpisode{}, false, fmt.Errorf("%w: watcherId is required", ErrInvalidArgument)
	}
	if seasonID == "" {
		return ContinueEpisode{}, false, fmt.Errorf("%w: seasonId is required", ErrInvalidArgument)
	}
	if nowMs <= 0 {
		return ContinueEpisode{}, false, fmt.Errorf("%w: nowMs must be positive", ErrInvalidArgument)
	}
	rows, err := l.store.ListSessionsBySeason(ctx, watcherID, seasonID, nowMs, 1)
	if err != nil {
		return ContinueEpisode{}, false, err
	}
	if len(rows) == 0 {
		return ContinueEpisode{}, false, nil
	}
	return ContinueEpisode{
		EpisodeID:      rows[0].EpisodeID,
		ContinueTimeMs: rows[0].WatchTimeMs,
	}, true, nil
}

// GetLatestWatchedEpisode returns the latest episode pointer of a season
// and the cached watched time of its session. found is false when no
// pointer exists; a missing cache entry reads as 0.
func (l *Ledger) GetLatestWatchedEpisode(ctx context.Context, watcherID, seasonID string) (LatestWatchedEpisode, bool, error) {
	if watcherID == "" {
		return LatestWatchedEpisode{}, false, fmt.Errorf("%w: watcherId is required", ErrInvalidArgument)
	}
	if seasonID == "" {
		return LatestWatchedEpisode{}, false, fmt.Errorf("%w: seasonId is required", ErrInvalidArgument)
	}
	season, err := l.store.GetWatchedSeason(ctx, watcherID, seasonID)
	if err != nil {
		if isNotFound(err) {
			return LatestWatchedEpisode{}, false, nil
		}
		return LatestWatchedEpisode{}, false, err
	}
	ms, err := l.watched.GetWatchedTime(ctx, watcherID, season.LatestWatchSessionID)
	if err != nil {
		return LatestWatchedEpisode{}, false, err
	}
	return LatestWatchedEpisode{EpisodeID: season.LatestEpisodeID, WatchedTimeMs: ms}, true, nil
}

// GetLatestWatchedTimeOfEpisode returns the cached watched time of an
// episode's latest session. found distinguishes "never watched" from
// "watched but no cached offset yet" (which reads as 0).
func (l *Ledger) GetLatestWatchedTimeOfEpisode(ctx context.Context, watcherID, seasonID, episodeID string) (int64, bool, error) {
	if watcherID == "" {
		return 0, false, fmt.Errorf("%w: watcherId is required", ErrInvalidArgument)
	}
	if seasonID == "" {
		return 0, false, fmt.Errorf("%w: seasonId is required", ErrInvalidArgument)
	}
	if episodeID == "" {
		return 0, false, fmt.Errorf("%w: episodeId is required", ErrInvalidArgument)
	}
	episode, err := l.store.GetWatchedEpisode(ctx, watcherID, seasonID, episodeID)
	if err != nil {
		if isNotFound(err) {
			return 0, false, nil
		}
		return 0, false, err
	}
	ms, err := l.watched.GetWatchedTime(ctx, watcherID, episode.LatestWatchSessionID)
	if err != nil {
		return 0, false, err
	}
	return ms, true, nil
}

// ListRecentlyWatchedSeasons pages through the season pointers, newest
// first. cursorMs is an exclusive upper bound; pass the caller's now for
// the first page. The returned cursor is 0 at end-of-list.
func (l *Ledger) ListRecentlyWatchedSeasons(ctx context.Context, watcherID string, cursorMs int64, limit int) ([]RecentSeason, int64, error) {
	if err := validateListArgs(watcherID, cursorMs, limit); err != nil {
		return nil, 0, err
	}
	rows, err := l.store.ListWatchedSeasons(ctx, watcherID, cursorMs, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]RecentSeason, 0, len(rows))
	for _, row := range rows {
		ms, err := l.watched.GetWatchedTime(ctx, watcherID, row.LatestWatchSessionID)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, RecentSeason{
			SeasonID:            row.SeasonID,
			LatestEpisodeID:     row.LatestEpisodeID,
			LatestWatchedTimeMs: ms,
			UpdatedTimeMs:       row.UpdatedTimeMs,
		})
	}
	var last int64
	if len(rows) > 0 {
		last = rows[len(rows)-1].UpdatedTimeMs
	}
	return out, nextCursor(len(rows), limit, last), nil
}

// ListWatchSessions pages through the raw session history, newest first.
func (l *Ledger) ListWatchSessions(ctx context.Context, watcherID string, cursorMs int64, limit int) ([]SessionEntry, int64, error) {
	if err := validateListArgs(watcherID, cursorMs, limit); err != nil {
		return nil, 0, err
	}
	rows, err := l.store.ListSessions(ctx, watcherID, cursorMs, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]SessionEntry, 0, len(rows))
	for _, row := range rows {
		ms, err := l.watched.GetWatchedTime(ctx, watcherID, row.WatchSessionID)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, SessionEntry{
			WatchSessionID: row.WatchSessionID,
			SeasonID:       row.SeasonID,
			EpisodeID:      row.EpisodeID,
			WatchedTimeMs:  ms,
			UpdatedTimeMs:  row.UpdatedTimeMs,
		})
	}
	var last int64
	if len(rows) > 0 {
		last = rows[len(rows)-1].UpdatedTimeMs
	}
	return out, nextCursor(len(rows), limit, last), nil
}

// ListWatchedEpisodes pages through the episode pointers, newest first.
func (l *Ledger) ListWatchedEpisodes(ctx context.Context, watcherID string, cursorMs int64, limit int) ([]EpisodeEntry, int64, error) {
	if err := validateListArgs(watcherID, cursorMs, limit); err != nil {
		return nil, 0, err
	}
	rows, err := l.store.ListWatchedEpisodes(ctx, watcherID, cursorMs, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]EpisodeEntry, 0, len(rows))
	for _, row := range rows {
		ms, err := l.watched.GetWatchedTime(ctx, watcherID, row.LatestWatchSessionID)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, EpisodeEntry{
			SeasonID:      row.SeasonID,
			EpisodeID:     row.EpisodeID,
			WatchedTimeMs: ms,
			UpdatedTimeMs: row.UpdatedTimeMs,
		})
	}
	var last int64
	if len(rows) > 0 {
		last = rows[len(rows)-1].UpdatedTimeMs
	}
	return out, nextCursor(len(rows), limit, last), nil
}

// ListWatchLaterSeasons pages through the watch-later bookmarks, newest
// first by added time.
func (l *Ledger) ListWatchLaterSeasons(ctx context.Context, watcherID string, cursorMs int64, limit int) ([]WatchLaterEntry, int64, error) {
	if err := validateListArgs(watcherID, cursorMs, limit); err != nil {
		return nil, 0, err
	}
	rows, err := l.store.ListWatchLater(ctx, watcherID, cursorMs, limit)
	if err != nil {
		return nil, 0, err
	}
	out := make([]WatchLaterEntry, 0, len(rows))
	for _, row := range rows {
		out = append(out, WatchLaterEntry{SeasonID: row.SeasonID, AddedTimeMs: row.AddedTimeMs})
	}
	var last int64
	if len(rows) > 0 {
		last = rows[len(rows)-1].AddedTimeMs
	}
	return out, nextCursor(len(rows), limit, last), nil
}
