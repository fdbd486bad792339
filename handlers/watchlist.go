package handlers

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"showtracker/internal/auth"
	"showtracker/models"
	"showtracker/services/watchlist"
)

type watchlistService interface {
	Add(ctx context.Context, userID, showID int64) (*models.WatchlistItem, error)
	List(ctx context.Context, userID int64) ([]models.WatchlistItem, error)
	UpdateProgress(ctx context.Context, userID, showID int64, episodeID *int64, watched bool) (*models.WatchlistItem, error)
	Remove(ctx context.Context, userID, showID int64) error
}

var _ watchlistService = (*watchlist.Service)(nil)

// WatchlistHandler serves the per-user watchlist endpoints.
type WatchlistHandler struct {
	watchlist watchlistService
	log       *logrus.Logger
}

func NewWatchlistHandler(watchlist watchlistService, log *logrus.Logger) *WatchlistHandler {
	return &WatchlistHandler{watchlist: watchlist, log: log}
}

func (h *WatchlistHandler) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.watchlist.List(r.Context(), auth.GetUserID(r))
	if err != nil {
		serviceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

type addWatchlistRequest struct {
	ShowID int64 `json:"showId"`
}

func (h *WatchlistHandler) Add(w http.ResponseWriter, r *http.Request) {
	var body addWatchlistRequest
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.watchlist.Add(r.Context(), auth.GetUserID(r), body.ShowID)
	if err != nil {
		serviceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, item)
}

type updateWatchlistRequest struct {
	EpisodeID *int64 `json:"episodeId"`
	Watched   bool   `json:"watched"`
}

func (h *WatchlistHandler) Update(w http.ResponseWriter, r *http.Request) {
	showID, ok := pathInt64(r, "showId")
	if !ok {
		respondError(w, http.StatusBadRequest, "show id must be numeric")
		return
	}

	var body updateWatchlistRequest
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	item, err := h.watchlist.UpdateProgress(r.Context(), auth.GetUserID(r), showID, body.EpisodeID, body.Watched)
	if err != nil {
		serviceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, item)
}

func (h *WatchlistHandler) Remove(w http.ResponseWriter, r *http.Request) {
	showID, ok := pathInt64(r, "showId")
	if !ok {
		respondError(w, http.StatusBadRequest, "show id must be numeric")
		return
	}

	if err := h.watchlist.Remove(r.Context(), auth.GetUserID(r), showID); err != nil {
		serviceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
