package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/phading-dev/play-activity-service/internal/platform/api"
	"github.com/phading-dev/play-activity-service/internal/platform/httpserver"
)

type watchLaterItem struct {
	SeasonID    string `json:"season_id"`
	AddedTimeMs int64  `json:"added_time_ms"`
}

type watchLaterListResponse struct {
	Seasons      []watchLaterItem `json:"seasons"`
	NextCursorMs int64            `json:"next_cursor_ms,omitempty"`
}

type watchLaterCheckResponse struct {
	InList bool `json:"in_list"`
}

// AddToWatchLater handles POST /v1/watch-later/{season_id}
func AddToWatchLater(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		watcher, ok := watcherID(d, w, r)
		if !ok {
			return
		}
		seasonID := chi.URLParam(r, "season_id")

		if err := d.Ledger.AddToWatchLater(r.Context(), watcher, seasonID, d.Now()); err != nil {
			writeLedgerError(d, w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// DeleteFromWatchLater handles DELETE /v1/watch-later/{season_id}
func DeleteFromWatchLater(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		watcher, ok := watcherID(d, w, r)
		if !ok {
			return
		}
		seasonID := chi.URLParam(r, "season_id")

		if err := d.Ledger.DeleteFromWatchLater(r.Context(), watcher, seasonID); err != nil {
			writeLedgerError(d, w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// CheckWatchLater handles GET /v1/watch-later/{season_id}
func CheckWatchLater(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		watcher, ok := watcherID(d, w, r)
		if !ok {
			return
		}
		seasonID := chi.URLParam(r, "season_id")

		in, err := d.Ledger.CheckInWatchLater(r.Context(), watcher, seasonID)
		if err != nil {
			writeLedgerError(d, w, r, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, watchLaterCheckResponse{InList: in})
	}
}

// ListWatchLater handles GET /v1/watch-later
func ListWatchLater(d Deps) http.HandlerFunc {
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

		rows, next, err := d.Ledger.ListWatchLaterSeasons(r.Context(), watcher, cursorMs, limit)
		if err != nil {
			writeLedgerError(d, w, r, err)
			return
		}
		resp := watchLaterListResponse{Seasons: make([]watchLaterItem, 0, len(rows)), NextCursorMs: next}
		for _, s := range rows {
			resp.Seasons = append(resp.Seasons, watchLaterItem{SeasonID: s.SeasonID, AddedTimeMs: s.AddedTimeMs})
		}
		api.WriteJSON(w, http.StatusOK, resp)
	}
}
