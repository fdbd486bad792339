// Package watchlist tracks the shows a user intends to watch and how far
// along they are.
package watchlist

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"showtracker/internal/database"
	"showtracker/models"
)

var (
	ErrShowUnknown    = errors.New("show not known locally")
	ErrEpisodeUnknown = errors.New("episode not known locally")
	ErrAlreadyListed  = errors.New("show already on watchlist")
	ErrNotListed      = errors.New("show not on watchlist")
)

// Service guards the watchlist behind show-existence and duplicate checks.
type Service struct {
	items    *database.WatchlistRepository
	shows    *database.ShowRepository
	episodes *database.EpisodeRepository
	log      *logrus.Logger
}

// NewService wires the watchlist service.
func NewService(items *database.WatchlistRepository, shows *database.ShowRepository, episodes *database.EpisodeRepository, log *logrus.Logger) *Service {
	return &Service{items: items, shows: shows, episodes: episodes, log: log}
}

// Add puts a show on the user's watchlist.
func (s *Service) Add(ctx context.Context, userID, showID int64) (*models.WatchlistItem, error) {
	show, err := s.shows.GetByID(ctx, showID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrShowUnknown
		}
		return nil, fmt.Errorf("look up show: %w", err)
	}

	item := &models.WatchlistItem{UserID: userID, ShowID: showID}
	if err := s.items.Add(ctx, item); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, ErrAlreadyListed
		}
		return nil, fmt.Errorf("add watchlist item: %w", err)
	}
	item.Show = show

	s.log.WithFields(logrus.Fields{
		"userId": userID,
		"showId": showID,
	}).Debug("show added to watchlist")
	return item, nil
}

// List returns the user's watchlist, most recently added first.
func (s *Service) List(ctx context.Context, userID int64) ([]models.WatchlistItem, error) {
	return s.items.ListByUser(ctx, userID)
}

// Get returns one watchlist entry.
func (s *Service) Get(ctx context.Context, userID, showID int64) (*models.WatchlistItem, error) {
	item, err := s.items.Get(ctx, userID, showID)
	if errors.Is(err, database.ErrNotFound) {
		return nil, ErrNotListed
	}
	return item, err
}

// UpdateProgress moves the last-watched pointer and the finished flag. A
// nil episodeID clears the pointer.
func (s *Service) UpdateProgress(ctx context.Context, userID, showID int64, episodeID *int64, watched bool) (*models.WatchlistItem, error) {
	item, err := s.items.Get(ctx, userID, showID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotListed
		}
		return nil, fmt.Errorf("look up watchlist item: %w", err)
	}

	if episodeID != nil {
		if _, err := s.episodes.GetByID(ctx, *episodeID); err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return nil, ErrEpisodeUnknown
			}
			return nil, fmt.Errorf("look up episode: %w", err)
		}
	}

	item.EpisodeID = episodeID
	item.Watched = watched
	if err := s.items.Update(ctx, item); err != nil {
		return nil, fmt.Errorf("update watchlist item: %w", err)
	}
	return item, nil
}

// Remove takes a show off the user's watchlist.
func (s *Service) Remove(ctx context.Context, userID, showID int64) error {
	if err := s.items.Remove(ctx, userID, showID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return ErrNotListed
		}
		return fmt.Errorf("remove watchlist item: %w", err)
	}
	return nil
}
