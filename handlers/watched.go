package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"showtracker/internal/auth"
	"showtracker/models"
	"showtracker/services/watched"
)

type watchedService interface {
	Mark(ctx context.Context, userID, episodeID int64) (*models.WatchedEpisode, error)
	Unmark(ctx context.Context, userID, episodeID int64) error
	List(ctx context.Context, userID int64) ([]models.WatchedEpisode, error)
	UpdateTimestamp(ctx context.Context, userID, episodeID int64, watchedAt time.Time) (*models.WatchedEpisode, error)
}

var _ watchedService = (*watched.Service)(nil)

// WatchedHandler serves the per-user watched-episode endpoints.
type WatchedHandler struct {
	watched watchedService
	log     *logrus.Logger
}

func NewWatchedHandler(watched watchedService, log *logrus.Logger) *WatchedHandler {
	return &WatchedHandler{watched: watched, log: log}
}

func (h *WatchedHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.watched.List(r.Context(), auth.GetUserID(r))
	if err != nil {
		serviceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

type markWatchedRequest struct {
	EpisodeID int64 `json:"episodeId"`
}

func (h *WatchedHandler) Mark(w http.ResponseWriter, r *http.Request) {
	var body markWatchedRequest
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.watched.Mark(r.Context(), auth.GetUserID(r), body.EpisodeID)
	if err != nil {
		serviceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusCreated, record)
}

type updateWatchedRequest struct {
	WatchedAt time.Time `json:"watchedAt"`
}

func (h *WatchedHandler) Update(w http.ResponseWriter, r *http.Request) {
	episodeID, ok := pathInt64(r, "episodeId")
	if !ok {
		respondError(w, http.StatusBadRequest, "episode id must be numeric")
		return
	}

	var body updateWatchedRequest
	if err := decodeJSON(r, &body); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	record, err := h.watched.UpdateTimestamp(r.Context(), auth.GetUserID(r), episodeID, body.WatchedAt)
	if err != nil {
		serviceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusOK, record)
}

func (h *WatchedHandler) Unmark(w http.ResponseWriter, r *http.Request) {
	episodeID, ok := pathInt64(r, "episodeId")
	if !ok {
		respondError(w, http.StatusBadRequest, "episode id must be numeric")
		return
	}

	if err := h.watched.Unmark(r.Context(), auth.GetUserID(r), episodeID); err != nil {
		serviceError(w, h.log, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}
