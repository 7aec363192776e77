package handlers

import (
	"net/http"
	"strconv"

	"github.com/phading-dev/play-activity-service/internal/platform/api"
	"github.com/phading-dev/play-activity-service/internal/platform/httpserver"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

type recentSeasonItem struct {
	SeasonID            string `json:"season_id"`
	LatestEpisodeID     string `json:"latest_episode_id"`
	LatestWatchedTimeMs int64  `json:"latest_watched_time_ms"`
	UpdatedTimeMs       int64  `json:"updated_time_ms"`
}

type recentSeasonsResponse struct {
	Seasons      []recentSeasonItem `json:"seasons"`
	NextCursorMs int64              `json:"next_cursor_ms,omitempty"`
}

type sessionItem struct {
	WatchSessionID string `json:"watch_session_id"`
	SeasonID       string `json:"season_id"`
	EpisodeID      string `json:"episode_id"`
	WatchedTimeMs  int64  `json:"watched_time_ms"`
	UpdatedTimeMs  int64  `json:"updated_time_ms"`
}

type sessionsResponse struct {
	Sessions     []sessionItem `json:"sessions"`
	NextCursorMs int64         `json:"next_cursor_ms,omitempty"`
}

type episodeItem struct {
	SeasonID      string `json:"season_id"`
	EpisodeID     string `json:"episode_id"`
	WatchedTimeMs int64  `json:"watched_time_ms"`
	UpdatedTimeMs int64  `json:"updated_time_ms"`
}

type episodesResponse struct {
	Episodes     []episodeItem `json:"episodes"`
	NextCursorMs int64         `json:"next_cursor_ms,omitempty"`
}

// listArgs reads cursor_ms and limit query params. The cursor defaults
// to the current clock, so the first page starts from the newest rows.
func listArgs(d Deps, r *http.Request) (cursorMs int64, limit int, err error) {
	cursorMs = d.Now()
	if c := r.URL.Query().Get("cursor_ms"); c != "" {
		cursorMs, err = strconv.ParseInt(c, 10, 64)
		if err != nil {
			return 0, 0, err
		}
	}
	limit = defaultListLimit
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, perr := strconv.Atoi(l); perr == nil && parsed > 0 && parsed <= maxListLimit {
			limit = parsed
		}
	}
	return cursorMs, limit, nil
}

// ListRecentSeasons handles GET /v1/watched/seasons
func ListRecentSeasons(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		watcher, ok := watcherID(d, w, r)
		if !ok {
			return
		}
		rid := httpserver.RequestIDFromContext(r.Context())
		cursorMs, limit, err := listArgs(d, r)
		if err != nil {
			api.BadRequest(w, "INVALID_CURSOR", "cursor_ms must be an integer", rid, nil)
			return
		}

		rows, next, err := d.Ledger.ListRecentlyWatchedSeasons(r.Context(), watcher, cursorMs, limit)
		if err != nil {
			writeLedgerError(d, w, r, err)
			return
		}
		resp := recentSeasonsResponse{Seasons: make([]recentSeasonItem, 0, len(rows)), NextCursorMs: next}
		for _, s := range rows {
			resp.Seasons = append(resp.Seasons, recentSeasonItem{
				SeasonID:            s.SeasonID,
				LatestEpisodeID:     s.LatestEpisodeID,
				LatestWatchedTimeMs: s.LatestWatchedTimeMs,
				UpdatedTimeMs:       s.UpdatedTimeMs,
			})
		}
		api.WriteJSON(w, http.StatusOK, resp)
	}
}

// ListSessions handles GET /v1/watched/sessions
func ListSessions(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		watcher, ok := watcherID(d, w, r)
		if !ok {
			return
		}
		rid := httpserver.RequestIDFromContext(r.Context())
		cursorMs, limit, err := listArgs(d, r)
		if err != nil {
			api.BadRequest(w, "INVALID_CURSOR", "cursor_ms must be an integer", rid, nil)
			return
		}

		rows, next, err := d.Ledger.ListWatchSessions(r.Context(), watcher, cursorMs, limit)
		if err != nil {
			writeLedgerError(d, w, r, err)
			return
		}
		resp := sessionsResponse{Sessions: make([]sessionItem, 0, len(rows)), NextCursorMs: next}
		for _, s := range rows {
			resp.Sessions = append(resp.Sessions, sessionItem{
				WatchSessionID: s.WatchSessionID,
				SeasonID:       s.SeasonID,
				EpisodeID:      s.EpisodeID,
				WatchedTimeMs:  s.WatchedTimeMs,
				UpdatedTimeMs:  s.UpdatedTimeMs,
			})
		}
		api.WriteJSON(w, http.StatusOK, resp)
	}
}

// ListWatchedEpisodes handles GET /v1/watched/episodes
func ListWatchedEpisodes(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		watcher, ok := watcherID(d, w, r)
		if !ok {
			return
		}
		rid := httpserver.RequestIDFromContext(r.Context())
		cursorMs, limit, err := listArgs(d, r)
		if err != nil {
			api.BadRequest(w, "INVALID_CURSOR", "cursor_ms must be an integer", rid, nil)
			return
		}

		rows, next, err := d.Ledger.ListWatchedEpisodes(r.Context(), watcher, cursorMs, limit)
		if err != nil {
			writeLedgerError(d, w, r, err)
			return
		}
		resp := episodesResponse{Episodes: make([]episodeItem, 0, len(rows)), NextCursorMs: next}
		for _, e := range rows {
			resp.Episodes = append(resp.Episodes, episodeItem{
				SeasonID:      e.SeasonID,
				EpisodeID:     e.EpisodeID,
				WatchedTimeMs: e.WatchedTimeMs,
				UpdatedTimeMs: e.UpdatedTimeMs,
			})
		}
		api.WriteJSON(w, http.StatusOK, resp)
	}
}
