package handlers

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"showtracker/api"
	"showtracker/internal/auth"
)

// RouterConfig carries everything NewRouter needs to assemble the surface.
type RouterConfig struct {
	Auth      *AuthHandler
	Shows     *ShowsHandler
	Watchlist *WatchlistHandler
	Watched   *WatchedHandler

	Issuer       *auth.TokenIssuer
	LoginLimiter *api.IPRateLimiter
	Log          *logrus.Logger
}

// NewRouter builds the full route table. Registration and login are public
// but rate limited per IP; everything else under /api requires a bearer
// token, and cache invalidation additionally requires the admin role.
func NewRouter(cfg RouterConfig) *mux.Router {
	r := mux.NewRouter()
	r.Use(api.CORSMiddleware)
	r.Use(api.LoggingMiddleware(cfg.Log))

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	}).Methods(http.MethodGet)

	limited := func(h http.HandlerFunc) http.Handler {
		if cfg.LoginLimiter == nil {
			return h
		}
		return api.RateLimitMiddleware(cfg.LoginLimiter)(h)
	}
	r.Handle("/api/users/register", limited(cfg.Auth.Register)).Methods(http.MethodPost, http.MethodOptions)
	r.Handle("/api/users/login", limited(cfg.Auth.Login)).Methods(http.MethodPost, http.MethodOptions)

	s := r.PathPrefix("/api").Subrouter()
	s.Use(api.AuthMiddleware(cfg.Issuer))

	s.HandleFunc("/users/me", cfg.Auth.Me).Methods(http.MethodGet, http.MethodOptions)
	s.HandleFunc("/users/me", cfg.Auth.UpdateMe).Methods(http.MethodPut)
	s.HandleFunc("/users/me/password", cfg.Auth.ChangePassword).Methods(http.MethodPut, http.MethodOptions)
	s.HandleFunc("/users/me", cfg.Auth.DeleteMe).Methods(http.MethodDelete)

	adminOnly := api.AdminOnlyMiddleware()
	s.Handle("/shows/cache", adminOnly(http.HandlerFunc(cfg.Shows.InvalidateCache))).Methods(http.MethodDelete, http.MethodOptions)

	s.HandleFunc("/shows/top", cfg.Shows.TopShows).Methods(http.MethodGet, http.MethodOptions)
	s.HandleFunc("/shows/search", cfg.Shows.Search).Methods(http.MethodGet, http.MethodOptions)
	s.HandleFunc("/shows/{id:[0-9]+}", cfg.Shows.ShowDetails).Methods(http.MethodGet, http.MethodOptions)
	s.HandleFunc("/shows/{id:[0-9]+}/season/{seasonNumber:[0-9]+}", cfg.Shows.SeasonDetails).Methods(http.MethodGet, http.MethodOptions)
	s.HandleFunc("/shows/{id:[0-9]+}/season/{seasonNumber:[0-9]+}/episode/{episodeNumber:[0-9]+}", cfg.Shows.EpisodeDetails).Methods(http.MethodGet, http.MethodOptions)

	s.HandleFunc("/watchlist", cfg.Watchlist.List).Methods(http.MethodGet, http.MethodOptions)
	s.HandleFunc("/watchlist", cfg.Watchlist.Add).Methods(http.MethodPost)
	s.HandleFunc("/watchlist/{showId:[0-9]+}", cfg.Watchlist.Update).Methods(http.MethodPut, http.MethodOptions)
	s.HandleFunc("/watchlist/{showId:[0-9]+}", cfg.Watchlist.Remove).Methods(http.MethodDelete)

	s.HandleFunc("/watched", cfg.Watched.List).Methods(http.MethodGet, http.MethodOptions)
	s.HandleFunc("/watched", cfg.Watched.Mark).Methods(http.MethodPost)
	s.HandleFunc("/watched/{episodeId:[0-9]+}", cfg.Watched.Update).Methods(http.MethodPut, http.MethodOptions)
	s.HandleFunc("/watched/{episodeId:[0-9]+}", cfg.Watched.Unmark).Methods(http.MethodDelete)

	return r
}
