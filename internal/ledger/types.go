package ledger

// WatchSession is one playback-report stream: created on the first report
// without a session id, then refreshed in place by follow-up reports
// carrying the same id. At most one live row per session id.
type WatchSession struct {
	WatcherID      string
	WatchSessionID string
	SeasonID       string
	EpisodeID      string
	WatchTimeMs    int64
	UpdatedTimeMs  int64
}

// WatchedSeason is the per-(watcher, season) pointer to the most recently
// started session in that season.
type WatchedSeason struct {
	WatcherID            string
	SeasonID             string
	LatestEpisodeID      string
	LatestWatchSessionID string
	UpdatedTimeMs        int64
}

// WatchedEpisode is the per-(watcher, season, episode) pointer to the most
// recently started session for that episode.
type WatchedEpisode struct {
	WatcherID            string
	SeasonID             string
	EpisodeID            string
	LatestWatchSessionID string
	UpdatedTimeMs        int64
}

// WatchLaterSeason is an explicit bookmark, independent of playback.
type WatchLaterSeason struct {
	WatcherID   string
	SeasonID    string
	AddedTimeMs int64
}
