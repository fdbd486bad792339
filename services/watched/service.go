// Package watched tracks which episodes a user has seen.
package watched

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"showtracker/internal/database"
	"showtracker/models"
)

var (
	ErrEpisodeUnknown = errors.New("episode not known locally")
	ErrAlreadyWatched = errors.New("episode already marked watched")
	ErrNotWatched     = errors.New("episode not marked watched")
)

// Service guards the watch log behind episode-existence and duplicate
// checks.
type Service struct {
	watched  *database.WatchedEpisodeRepository
	episodes *database.EpisodeRepository
	log      *logrus.Logger
}

// NewService wires the watched-episode service.
func NewService(watched *database.WatchedEpisodeRepository, episodes *database.EpisodeRepository, log *logrus.Logger) *Service {
	return &Service{watched: watched, episodes: episodes, log: log}
}

// Mark records that the user watched the episode. The episode must already
// exist locally, which it does once its details have been viewed.
func (s *Service) Mark(ctx context.Context, userID, episodeID int64) (*models.WatchedEpisode, error) {
	if _, err := s.episodes.GetByID(ctx, episodeID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrEpisodeUnknown
		}
		return nil, fmt.Errorf("look up episode: %w", err)
	}

	record := &models.WatchedEpisode{UserID: userID, EpisodeID: episodeID}
	if err := s.watched.Add(ctx, record); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrAlreadyWatched
		}
		return nil, fmt.Errorf("mark watched: %w", err)
	}

	s.log.WithFields(logrus.Fields{
		"userId":    userID,
		"episodeId": episodeID,
	}).Debug("episode marked watched")
	return record, nil
}

// Unmark removes the watch record.
func (s *Service) Unmark(ctx context.Context, userID, episodeID int64) error {
	if err := s.watched.Remove(ctx, userID, episodeID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotWatched
		}
		return fmt.Errorf("unmark watched: %w", err)
	}
	return nil
}

// List returns the user's watch log, newest first.
func (s *Service) List(ctx context.Context, userID int64) ([]models.WatchedEpisode, error) {
	return s.watched.ListByUser(ctx, userID)
}

// IsWatched reports whether the user has watched the episode.
func (s *Service) IsWatched(ctx context.Context, userID, episodeID int64) (bool, error) {
	return s.watched.IsWatched(ctx, userID, episodeID)
}

// UpdateTimestamp rewrites when the episode was watched. A zero watchedAt
// means now.
func (s *Service) UpdateTimestamp(ctx context.Context, userID, episodeID int64, watchedAt time.Time) (*models.WatchedEpisode, error) {
	record, err := s.watched.Get(ctx, userID, episodeID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotWatched
		}
		return nil, fmt.Errorf("look up watch record: %w", err)
	}

	if watchedAt.IsZero() {
		watchedAt = time.Now().UTC()
	}
	record.WatchedAt = watchedAt
	if err := s.watched.Update(ctx, record); err != nil {
		return nil, fmt.Errorf("update watch record: %w", err)
	}
	return record, nil
}
