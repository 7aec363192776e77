package handlers

import (
	"github.com/go-chi/chi/v5"
)

// Mount registers all play-activity routes on the router.
func Mount(r chi.Router, d Deps) {
	r.Route("/v1", func(r chi.Router) {
		r.Post("/progress", RecordProgress(d))

		r.Route("/seasons/{season_id}", func(r chi.Router) {
			r.Get("/continue", GetContinueEpisode(d))
			r.Get("/latest-episode", GetLatestWatchedEpisode(d))
			r.Get("/episodes/{episode_id}/watched-time", GetWatchedTimeOfEpisode(d))
		})

		r.Route("/watched", func(r chi.Router) {
			r.Get("/seasons", ListRecentSeasons(d))
			r.Get("/sessions", ListSessions(d))
			r.Get("/episodes", ListWatchedEpisodes(d))
		})

		r.Route("/watch-later", func(r chi.Router) {
			r.Get("/", ListWatchLater(d))
			r.Post("/{season_id}", AddToWatchLater(d))
			r.Delete("/{season_id}", DeleteFromWatchLater(d))
			r.Get("/{season_id}", CheckWatchLater(d))
		})
	})
}
