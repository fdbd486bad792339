// Package handlers is the HTTP surface: request decoding, service calls
// and error-to-status mapping.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sirupsen/logrus"

	"showtracker/services/metadata"
	"showtracker/services/users"
	"showtracker/services/watched"
	"showtracker/services/watchlist"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}

// decodeJSON rejects unknown fields so typos in request bodies fail loudly.
func decodeJSON(r *http.Request, dst interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// errorStatus maps service sentinels onto HTTP status codes. Anything
// unrecognized is a 500.
func errorStatus(err error) int {
	switch {
	case errors.Is(err, users.ErrValidation),
		errors.Is(err, users.ErrWrongPassword):
		return http.StatusBadRequest
	case errors.Is(err, users.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, metadata.ErrNotFound),
		errors.Is(err, users.ErrNotFound),
		errors.Is(err, watched.ErrEpisodeUnknown),
		errors.Is(err, watched.ErrNotWatched),
		errors.Is(err, watchlist.ErrShowUnknown),
		errors.Is(err, watchlist.ErrEpisodeUnknown),
		errors.Is(err, watchlist.ErrNotListed):
		return http.StatusNotFound
	case errors.Is(err, users.ErrUsernameTaken),
		errors.Is(err, users.ErrEmailTaken),
		errors.Is(err, watched.ErrAlreadyWatched),
		errors.Is(err, watchlist.ErrAlreadyListed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// serviceError writes err with its mapped status. Internal errors are
// logged with detail but answered with a generic message.
func serviceError(w http.ResponseWriter, log *logrus.Logger, err error) {
	status := errorStatus(err)
	if status == http.StatusInternalServerError {
		log.WithError(err).Error("request failed")
		respondError(w, status, "internal server error")
		return
	}
	respondError(w, status, err.Error())
}
