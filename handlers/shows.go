package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"showtracker/models"
	"showtracker/services/metadata"
)

type metadataService interface {
	GetTopShows(ctx context.Context, language string, page, pageSize int) ([]models.Show, error)
	GetShowDetails(ctx context.Context, showID int64) (*models.Show, error)
	GetSeasonDetails(ctx context.Context, showID int64, seasonNumber int) (*models.Season, error)
	GetEpisodeDetails(ctx context.Context, showID int64, seasonNumber, episodeNumber int) (*models.Episode, error)
	SearchShows(ctx context.Context, query string) ([]models.Show, error)
	InvalidateCache(ctx context.Context, key string) error
}

var _ metadataService = (*metadata.Service)(nil)

// ShowsHandler serves the read-only show metadata endpoints.
type ShowsHandler struct {
	metadata metadataService
	log      *logrus.Logger
}

func NewShowsHandler(metadata metadataService, log *logrus.Logger) *ShowsHandler {
	return &ShowsHandler{metadata: metadata, log: log}
}

func pathInt64(r *http.Request, name string) (int64, bool) {
	v, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	return v, err == nil
}

func pathInt(r *http.Request, name string) (int, bool) {
	v, err := strconv.Atoi(mux.Vars(r)[name])
	return v, err == nil
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func (h *ShowsHandler) TopShows(w http.ResponseWriter, r *http.Request) {
	language := r.URL.Query().Get("language")
	page := queryInt(r, "page", 1)
	pageSize := queryInt(r, "pageSize", 20)

	shows, err := h.metadata.GetTopShows(r.Context(), language, page, pageSize)
	if err != nil {
		serviceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, shows)
}

func (h *ShowsHandler) ShowDetails(w http.ResponseWriter, r *http.Request) {
	showID, ok := pathInt64(r, "id")
	if !ok {
		respondError(w, http.StatusBadRequest, "show id must be numeric")
		return
	}

	show, err := h.metadata.GetShowDetails(r.Context(), showID)
	if err != nil {
		serviceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, show)
}

func (h *ShowsHandler) SeasonDetails(w http.ResponseWriter, r *http.Request) {
	showID, ok := pathInt64(r, "id")
	seasonNumber, ok2 := pathInt(r, "seasonNumber")
	if !ok || !ok2 {
		respondError(w, http.StatusBadRequest, "show id and season number must be numeric")
		return
	}

	season, err := h.metadata.GetSeasonDetails(r.Context(), showID, seasonNumber)
	if err != nil {
		serviceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, season)
}

func (h *ShowsHandler) EpisodeDetails(w http.ResponseWriter, r *http.Request) {
	showID, ok := pathInt64(r, "id")
	seasonNumber, ok2 := pathInt(r, "seasonNumber")
	episodeNumber, ok3 := pathInt(r, "episodeNumber")
	if !ok || !ok2 || !ok3 {
		respondError(w, http.StatusBadRequest, "show id, season and episode numbers must be numeric")
		return
	}

	episode, err := h.metadata.GetEpisodeDetails(r.Context(), showID, seasonNumber, episodeNumber)
	if err != nil {
		serviceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, episode)
}

func (h *ShowsHandler) Search(w http.ResponseWriter, r *http.Request) {
	shows, err := h.metadata.SearchShows(r.Context(), r.URL.Query().Get("query"))
	if err != nil {
		serviceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, shows)
}

// InvalidateCache drops a single cache entry. Admin only, wired behind
// AdminOnlyMiddleware.
func (h *ShowsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	key := r.URL.Query().Get("cacheKey")
	if key == "" {
		respondError(w, http.StatusBadRequest, "cacheKey is required")
		return
	}

	if err := h.metadata.InvalidateCache(r.Context(), key); err != nil {
		serviceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
