// Package handlers is the HTTP glue over the watch ledger: decode,
// authorize via the session checker, delegate, map sentinel errors.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/phading-dev/play-activity-service/internal/ledger"
	"github.com/phading-dev/play-activity-service/internal/platform/api"
	"github.com/phading-dev/play-activity-service/internal/platform/httpserver"
	"github.com/phading-dev/play-activity-service/internal/platform/metrics"
	"github.com/phading-dev/play-activity-service/internal/sessions"
)

// Deps carries what every handler needs. Now is injected so tests can
// pin the clock.
type Deps struct {
	Ledger   *ledger.Ledger
	Sessions sessions.Checker
	Log      *zap.Logger
	Now      func() int64
}

type recordProgressRequest struct {
	SeasonID       string `json:"season_id"`
	EpisodeID      string `json:"episode_id"`
	WatchSessionID string `json:"watch_session_id,omitempty"`
	WatchTimeMs    *int64 `json:"watch_time_ms"`
}

type recordProgressResponse struct {
	WatchSessionID string `json:"watch_session_id"`
}

type continueEpisodeResponse struct {
	EpisodeID      string `json:"episode_id,omitempty"`
	ContinueTimeMs *int64 `json:"continue_time_ms,omitempty"`
}

type latestEpisodeResponse struct {
	EpisodeID     string `json:"episode_id,omitempty"`
	WatchedTimeMs *int64 `json:"watched_time_ms,omitempty"`
}

type watchedTimeResponse struct {
	WatchedTimeMs *int64 `json:"watched_time_ms,omitempty"`
}

// watcherID authorizes the request through the session checker and
// returns the account id, or writes the error response itself.
func watcherID(d Deps, w http.ResponseWriter, r *http.Request) (string, bool) {
	rid := httpserver.RequestIDFromContext(r.Context())
	token := strings.TrimSpace(strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer"))
	if token == "" {
		api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
		return "", false
	}
	vs, err := d.Sessions.ExchangeSession(r.Context(), token, sessions.CapabilityMask{CheckCanConsumeShows: true})
	if err != nil {
		api.Unauthorized(w, "UNAUTHORIZED", "authentication required", rid)
		return "", false
	}
	return vs.AccountID, true
}

// writeLedgerError maps ledger sentinels onto the JSON error envelope.
func writeLedgerError(d Deps, w http.ResponseWriter, r *http.Request, err error) {
	rid := httpserver.RequestIDFromContext(r.Context())
	switch {
	case errors.Is(err, ledger.ErrInvalidArgument):
		api.BadRequest(w, "INVALID_ARGUMENT", err.Error(), rid, nil)
	case errors.Is(err, ledger.ErrNotFound):
		api.NotFound(w, "NOT_FOUND", "not found", rid)
	case errors.Is(err, ledger.ErrConflict):
		api.Conflict(w, "CONFLICT", "please retry", rid, nil)
	default:
		d.Log.Error("ledger error", zap.String("request_id", rid), zap.Error(err))
		api.Internal(w, rid)
	}
}

// RecordProgress handles POST /v1/progress
func RecordProgress(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		watcher, ok := watcherID(d, w, r)
		if !ok {
			return
		}
		rid := httpserver.RequestIDFromContext(r.Context())

		var req recordProgressRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
			api.BadRequest(w, "INVALID_JSON", "invalid JSON", rid, nil)
			return
		}
		if req.WatchTimeMs == nil {
			api.BadRequest(w, "MISSING_FIELD", "watch_time_ms is required", rid, nil)
			return
		}

		newSession := req.WatchSessionID == ""
		sessionID, err := d.Ledger.RecordProgress(r.Context(), ledger.RecordProgressParams{
			WatcherID:      watcher,
			SeasonID:       req.SeasonID,
			EpisodeID:      req.EpisodeID,
			WatchSessionID: req.WatchSessionID,
			WatchTimeMs:    *req.WatchTimeMs,
			NowMs:          d.Now(),
		})
		if err != nil {
			metrics.ProgressReports.WithLabelValues("error").Inc()
			writeLedgerError(d, w, r, err)
			return
		}
		metrics.ProgressReports.WithLabelValues("ok").Inc()
		if newSession {
			metrics.SessionsCreated.Inc()
		}
		api.WriteJSON(w, http.StatusOK, recordProgressResponse{WatchSessionID: sessionID})
	}
}

// GetContinueEpisode handles GET /v1/seasons/{season_id}/continue
func GetContinueEpisode(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		watcher, ok := watcherID(d, w, r)
		if !ok {
			return
		}
		seasonID := chi.URLParam(r, "season_id")

		ce, found, err := d.Ledger.GetContinueEpisode(r.Context(), watcher, seasonID, d.Now())
		if err != nil {
			writeLedgerError(d, w, r, err)
			return
		}
		if !found {
			api.WriteJSON(w, http.StatusOK, continueEpisodeResponse{})
			return
		}
		api.WriteJSON(w, http.StatusOK, continueEpisodeResponse{
			EpisodeID:      ce.EpisodeID,
			ContinueTimeMs: &ce.ContinueTimeMs,
		})
	}
}

// GetLatestWatchedEpisode handles GET /v1/seasons/{season_id}/latest-episode
func GetLatestWatchedEpisode(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		watcher, ok := watcherID(d, w, r)
		if !ok {
			return
		}
		seasonID := chi.URLParam(r, "season_id")

		le, found, err := d.Ledger.GetLatestWatchedEpisode(r.Context(), watcher, seasonID)
		if err != nil {
			writeLedgerError(d, w, r, err)
			return
		}
		if !found {
			api.WriteJSON(w, http.StatusOK, latestEpisodeResponse{})
			return
		}
		api.WriteJSON(w, http.StatusOK, latestEpisodeResponse{
			EpisodeID:     le.EpisodeID,
			WatchedTimeMs: &le.WatchedTimeMs,
		})
	}
}

// GetWatchedTimeOfEpisode handles GET /v1/seasons/{season_id}/episodes/{episode_id}/watched-time
func GetWatchedTimeOfEpisode(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		watcher, ok := watcherID(d, w, r)
		if !ok {
			return
		}
		seasonID := chi.URLParam(r, "season_id")
		episodeID := chi.URLParam(r, "episode_id")

		ms, found, err := d.Ledger.GetLatestWatchedTimeOfEpisode(r.Context(), watcher, seasonID, episodeID)
		if err != nil {
			writeLedgerError(d, w, r, err)
			return
		}
		if !found {
			api.WriteJSON(w, http.StatusOK, watchedTimeResponse{})
			return
		}
		api.WriteJSON(w, http.StatusOK, watchedTimeResponse{WatchedTimeMs: &ms})
	}
}
