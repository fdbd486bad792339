package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sourcegraph/conc"

	"showtracker/internal/cache"
	"showtracker/internal/database"
	"showtracker/models"
)

// Cache TTLs, tiered by volatility. The popularity ranking shifts hourly
// while entity details are stable for a day.
const (
	topShowsTTL = time.Hour
	detailsTTL  = 24 * time.Hour
)

const indexTimeout = 30 * time.Second

// Remote is the provider-facing surface of the TMDb client.
type Remote interface {
	GetTopShows(ctx context.Context, language string, page, pageSize int) ([]models.Show, error)
	GetShowDetails(ctx context.Context, showID int64) (*models.Show, error)
	GetSeasonDetails(ctx context.Context, showID int64, seasonNumber int) (*models.Season, error)
	GetEpisodeDetails(ctx context.Context, showID int64, seasonNumber, episodeNumber int) (*models.Episode, error)
	SearchShows(ctx context.Context, query string) ([]models.Show, error)
}

// ShowStore is the persistence surface for shows.
type ShowStore interface {
	Upsert(ctx context.Context, show *models.Show) (*models.Show, error)
	UpsertAll(ctx context.Context, shows []models.Show) error
	GetByTMDbID(ctx context.Context, tmdbID int64) (*models.Show, error)
	TopByPopularity(ctx context.Context, limit int) ([]models.Show, error)
	SearchByName(ctx context.Context, query string) ([]models.Show, error)
}

// SeasonStore is the persistence surface for seasons.
type SeasonStore interface {
	Upsert(ctx context.Context, season *models.Season) (*models.Season, error)
	Get(ctx context.Context, showTMDbID int64, seasonNumber int) (*models.Season, error)
}

// EpisodeStore is the persistence surface for episodes.
type EpisodeStore interface {
	Upsert(ctx context.Context, episode *models.Episode) (*models.Episode, error)
	UpsertAll(ctx context.Context, episodes []models.Episode) error
	Get(ctx context.Context, showTMDbID int64, seasonNumber, episodeNumber int) (*models.Episode, error)
}

// Searcher is the full-text index surface.
type Searcher interface {
	IndexOne(ctx context.Context, show models.Show) error
	IndexMany(ctx context.Context, shows []models.Show) error
	Search(ctx context.Context, query string) ([]models.Show, error)
}

// Service resolves metadata reads through three tiers: the cache first,
// then the remote provider (persisting and re-caching what it returns),
// then the local store when the provider is down.
type Service struct {
	remote   Remote
	shows    ShowStore
	seasons  SeasonStore
	episodes EpisodeStore
	search   Searcher
	cache    cache.Cache
	log      *logrus.Logger

	indexers conc.WaitGroup
}

// NewService wires the metadata service.
func NewService(remote Remote, shows ShowStore, seasons SeasonStore, episodes EpisodeStore, search Searcher, c cache.Cache, log *logrus.Logger) *Service {
	return &Service{
		remote:   remote,
		shows:    shows,
		seasons:  seasons,
		episodes: episodes,
		search:   search,
		cache:    c,
		log:      log,
	}
}

// Close waits for any in-flight background indexing to finish.
func (s *Service) Close() {
	s.indexers.Wait()
}

func topShowsKey(language string, page, pageSize int) string {
	return fmt.Sprintf("TopShows_%s_%d_%d", language, page, pageSize)
}

func showDetailsKey(showID int64) string {
	return fmt.Sprintf("ShowDetails_%d", showID)
}

func seasonDetailsKey(showID int64, seasonNumber int) string {
	return fmt.Sprintf("SeasonDetails_%d_%d", showID, seasonNumber)
}

func episodeDetailsKey(showID int64, seasonNumber, episodeNumber int) string {
	return fmt.Sprintf("EpisodeDetails_%d_%d_%d", showID, seasonNumber, episodeNumber)
}

func isRemoteFailure(err error) bool {
	return errors.Is(err, ErrRemoteUnavailable) || errors.Is(err, ErrRemoteDecode)
}

// resolve is the shared read path. Cache hits short-circuit. Remote results
// are persisted before they are cached so the fallback tier always has the
// freshest data the provider ever gave us. Only remote failures trigger the
// fallback; persistence errors are real faults and propagate.
func resolve[T any](ctx context.Context, s *Service, key string, ttl time.Duration,
	fetch func(context.Context) (T, error),
	persist func(context.Context, T) (T, error),
	fallback func(context.Context) (T, error),
) (T, error) {
	var zero T

	if raw, err := s.cache.Get(ctx, key); err == nil {
		var cached T
		if err := json.Unmarshal(raw, &cached); err == nil {
			s.log.WithField("cacheKey", key).Debug("metadata cache hit")
			return cached, nil
		}
		s.log.WithField("cacheKey", key).Warn("dropping undecodable cache entry")
		if err := s.cache.Remove(ctx, key); err != nil {
			s.log.WithError(err).WithField("cacheKey", key).Warn("failed to drop cache entry")
		}
	}

	fetched, err := fetch(ctx)
	if err != nil {
		if isRemoteFailure(err) {
			s.log.WithError(err).WithField("cacheKey", key).Warn("remote fetch failed, serving from local store")
			return fallback(ctx)
		}
		return zero, err
	}

	stored, err := persist(ctx, fetched)
	if err != nil {
		return zero, fmt.Errorf("persist fetched metadata: %w", err)
	}

	if raw, err := json.Marshal(stored); err == nil {
		if err := s.cache.Set(ctx, key, raw, ttl); err != nil {
			s.log.WithError(err).WithField("cacheKey", key).Warn("failed to cache metadata")
		}
	}
	return stored, nil
}

// GetTopShows returns a page of the popularity ranking. When the provider
// is unreachable it serves the best-known ranking from the local store,
// which may be empty.
func (s *Service) GetTopShows(ctx context.Context, language string, page, pageSize int) ([]models.Show, error) {
	if language == "" {
		language = defaultLanguage
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	return resolve(ctx, s, topShowsKey(language, page, pageSize), topShowsTTL,
		func(ctx context.Context) ([]models.Show, error) {
			return s.remote.GetTopShows(ctx, language, page, pageSize)
		},
		func(ctx context.Context, shows []models.Show) ([]models.Show, error) {
			if err := s.shows.UpsertAll(ctx, shows); err != nil {
				return nil, err
			}
			return shows, nil
		},
		func(ctx context.Context) ([]models.Show, error) {
			return s.shows.TopByPopularity(ctx, pageSize)
		},
	)
}

// GetShowDetails returns one show with its season summaries.
func (s *Service) GetShowDetails(ctx context.Context, showID int64) (*models.Show, error) {
	return resolve(ctx, s, showDetailsKey(showID), detailsTTL,
		func(ctx context.Context) (*models.Show, error) {
			return s.remote.GetShowDetails(ctx, showID)
		},
		func(ctx context.Context, show *models.Show) (*models.Show, error) {
			if _, err := s.shows.Upsert(ctx, show); err != nil {
				return nil, err
			}
			for i := range show.Seasons {
				if _, err := s.seasons.Upsert(ctx, &show.Seasons[i]); err != nil {
					return nil, err
				}
			}
			return s.shows.GetByTMDbID(ctx, show.TMDbID)
		},
		func(ctx context.Context) (*models.Show, error) {
			show, err := s.shows.GetByTMDbID(ctx, showID)
			if errors.Is(err, database.ErrNotFound) {
				return nil, ErrNotFound
			}
			return show, err
		},
	)
}

// GetSeasonDetails returns one season with its episode list.
func (s *Service) GetSeasonDetails(ctx context.Context, showID int64, seasonNumber int) (*models.Season, error) {
	return resolve(ctx, s, seasonDetailsKey(showID, seasonNumber), detailsTTL,
		func(ctx context.Context) (*models.Season, error) {
			return s.remote.GetSeasonDetails(ctx, showID, seasonNumber)
		},
		func(ctx context.Context, season *models.Season) (*models.Season, error) {
			if _, err := s.seasons.Upsert(ctx, season); err != nil {
				return nil, err
			}
			if len(season.Episodes) > 0 {
				if err := s.episodes.UpsertAll(ctx, season.Episodes); err != nil {
					return nil, err
				}
			}
			return s.seasons.Get(ctx, showID, seasonNumber)
		},
		func(ctx context.Context) (*models.Season, error) {
			season, err := s.seasons.Get(ctx, showID, seasonNumber)
			if errors.Is(err, database.ErrNotFound) {
				return nil, ErrNotFound
			}
			return season, err
		},
	)
}

// GetEpisodeDetails returns one episode together with its owning show.
func (s *Service) GetEpisodeDetails(ctx context.Context, showID int64, seasonNumber, episodeNumber int) (*models.Episode, error) {
	return resolve(ctx, s, episodeDetailsKey(showID, seasonNumber, episodeNumber), detailsTTL,
		func(ctx context.Context) (*models.Episode, error) {
			return s.remote.GetEpisodeDetails(ctx, showID, seasonNumber, episodeNumber)
		},
		func(ctx context.Context, episode *models.Episode) (*models.Episode, error) {
			if episode.Show != nil {
				if _, err := s.shows.Upsert(ctx, episode.Show); err != nil {
					return nil, err
				}
			}
			stored, err := s.episodes.Upsert(ctx, episode)
			if err != nil {
				return nil, err
			}
			return s.episodes.Get(ctx, stored.ShowTMDbID, stored.SeasonNumber, stored.EpisodeNumber)
		},
		func(ctx context.Context) (*models.Episode, error) {
			episode, err := s.episodes.Get(ctx, showID, seasonNumber, episodeNumber)
			if errors.Is(err, database.ErrNotFound) {
				return nil, ErrNotFound
			}
			return episode, err
		},
	)
}

// SearchShows tries the local full-text index first, then the provider,
// then a plain name match against the store. Provider results are indexed
// in the background so the next identical search is answered locally.
func (s *Service) SearchShows(ctx context.Context, query string) ([]models.Show, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return []models.Show{}, nil
	}

	local, err := s.search.Search(ctx, query)
	if err != nil {
		s.log.WithError(err).WithField("query", query).Warn("search index query failed")
	} else if len(local) > 0 {
		return local, nil
	}

	remote, err := s.remote.SearchShows(ctx, query)
	if err != nil {
		s.log.WithError(err).WithField("query", query).Warn("remote search failed, serving from local store")
		return s.shows.SearchByName(ctx, query)
	}
	if len(remote) == 0 {
		return s.shows.SearchByName(ctx, query)
	}

	s.indexAsync(remote)
	return remote, nil
}

func (s *Service) indexAsync(shows []models.Show) {
	s.indexers.Go(func() {
		ctx, cancel := context.WithTimeout(context.Background(), indexTimeout)
		defer cancel()
		if err := s.search.IndexMany(ctx, shows); err != nil {
			s.log.WithError(err).Warn("background indexing failed")
		}
	})
}

// InvalidateCache drops one cache entry. Asking for a key that is not
// cached is a logged no-op.
func (s *Service) InvalidateCache(ctx context.Context, key string) error {
	if _, err := s.cache.Get(ctx, key); errors.Is(err, cache.ErrMiss) {
		s.log.WithField("cacheKey", key).Info("invalidate requested for key that is not cached")
		return nil
	}
	if err := s.cache.Remove(ctx, key); err != nil {
		return fmt.Errorf("invalidate %s: %w", key, err)
	}
	s.log.WithField("cacheKey", key).Info("cache entry invalidated")
	return nil
}
