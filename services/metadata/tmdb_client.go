// Package metadata orchestrates show metadata reads across the cache, the
// remote TMDb provider, and the local store, in that order.
package metadata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	retry "github.com/avast/retry-go/v4"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"showtracker/models"
)

var (
	// ErrNotFound means no tier (remote or local) could produce the entity.
	ErrNotFound = errors.New("metadata not found")
	// ErrRemoteUnavailable covers transport failures, non-2xx responses and
	// an open circuit breaker.
	ErrRemoteUnavailable = errors.New("remote metadata provider unavailable")
	// ErrRemoteDecode means the provider answered but the payload was not
	// usable.
	ErrRemoteDecode = errors.New("malformed remote metadata payload")
)

const (
	defaultRequestsPerSecond = 10
	defaultRetryAttempts     = 3
	defaultRetryBaseDelay    = 2 * time.Second
	defaultBreakerFailures   = 5
	defaultBreakerCooldown   = 30 * time.Second
	defaultHTTPTimeout       = 30 * time.Second

	defaultLanguage = "en-US"
	maxPageSize     = 20
)

// ClientConfig carries everything the TMDb client needs. Zero values fall
// back to production defaults, which lets tests tighten the retry and
// breaker windows.
type ClientConfig struct {
	BaseURL           string
	APIKey            string
	RequestsPerSecond int
	RetryAttempts     uint
	RetryBaseDelay    time.Duration
	BreakerFailures   uint32
	BreakerCooldown   time.Duration
	HTTPClient        *http.Client
	Logger            *logrus.Logger
}

// Client talks to the TMDb v3 API. Every request flows through the shared
// rate limiter, then a bounded retry loop, then the circuit breaker.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	log        *logrus.Logger

	retryAttempts  uint
	retryBaseDelay time.Duration
}

// NewClient builds a TMDb client from cfg, filling in defaults for any
// unset knobs.
func NewClient(cfg ClientConfig) *Client {
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = defaultRequestsPerSecond
	}
	if cfg.RetryAttempts == 0 {
		cfg.RetryAttempts = defaultRetryAttempts
	}
	if cfg.RetryBaseDelay == 0 {
		cfg.RetryBaseDelay = defaultRetryBaseDelay
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = defaultBreakerFailures
	}
	if cfg.BreakerCooldown == 0 {
		cfg.BreakerCooldown = defaultBreakerCooldown
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "tmdb",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// A missing entity is a valid answer from a healthy provider.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNotFound)
		},
		OnStateChange: func(_ string, from, to gobreaker.State) {
			cfg.Logger.WithFields(logrus.Fields{
				"from": from.String(),
				"to":   to.String(),
			}).Warn("tmdb circuit breaker state changed")
		},
	})

	return &Client{
		baseURL:        strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:         cfg.APIKey,
		httpClient:     cfg.HTTPClient,
		limiter:        rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.RequestsPerSecond),
		breaker:        breaker,
		log:            cfg.Logger,
		retryAttempts:  cfg.RetryAttempts,
		retryBaseDelay: cfg.RetryBaseDelay,
	}
}

// remoteError wraps a single failed attempt so the retry predicate can see
// the HTTP status. It always matches ErrRemoteUnavailable.
type remoteError struct {
	status int
	cause  error
}

func (e *remoteError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("remote request failed: %v", e.cause)
	}
	return fmt.Sprintf("remote returned status %d", e.status)
}

func (e *remoteError) Unwrap() []error {
	if e.cause != nil {
		return []error{ErrRemoteUnavailable, e.cause}
	}
	return []error{ErrRemoteUnavailable}
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var re *remoteError
	if errors.As(err, &re) {
		return re.status == 0 || re.status == http.StatusTooManyRequests || re.status >= 500
	}
	return false
}

// getJSON performs a rate-limited, retried GET against path and decodes the
// body into out. Retries use exponential backoff on the base delay and only
// fire for transient failures.
func (c *Client) getJSON(ctx context.Context, path string, params url.Values, out interface{}) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set("api_key", c.apiKey)
	endpoint := fmt.Sprintf("%s/%s?%s", c.baseURL, path, params.Encode())

	err := retry.Do(
		func() error { return c.doOnce(ctx, endpoint, out) },
		retry.Context(ctx),
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryBaseDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.RetryIf(isRetryable),
		retry.OnRetry(func(n uint, err error) {
			c.log.WithError(err).WithFields(logrus.Fields{
				"attempt": n + 1,
				"path":    path,
			}).Warn("retrying tmdb request")
		}),
	)
	if err != nil {
		return fmt.Errorf("tmdb %s: %w", path, err)
	}
	return nil
}

func (c *Client) doOnce(ctx context.Context, endpoint string, out interface{}) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, &remoteError{cause: err}
		}
		defer resp.Body.Close()

		if resp.StatusCode == http.StatusNotFound {
			io.Copy(io.Discard, resp.Body)
			return nil, ErrNotFound
		}
		if resp.StatusCode != http.StatusOK {
			io.Copy(io.Discard, resp.Body)
			return nil, &remoteError{status: resp.StatusCode}
		}
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return nil, fmt.Errorf("decode response: %w", ErrRemoteDecode)
		}
		return nil, nil
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("circuit open: %w", ErrRemoteUnavailable)
	}
	return err
}

// Wire payloads, named after the provider's JSON shapes.

type tmdbShowPage struct {
	Page    int        `json:"page"`
	Results []tmdbShow `json:"results"`
}

type tmdbShow struct {
	ID           int64   `json:"id"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	FirstAirDate string  `json:"first_air_date"`
	Popularity   float64 `json:"popularity"`
	PosterPath   string  `json:"poster_path"`
}

type tmdbShowDetails struct {
	tmdbShow
	Status           string        `json:"status"`
	Type             string        `json:"type"`
	NumberOfEpisodes int           `json:"number_of_episodes"`
	NumberOfSeasons  int           `json:"number_of_seasons"`
	Seasons          []tmdbSeason `json:"seasons"`
	LastEpisodeToAir *tmdbEpisode `json:"last_episode_to_air"`
	NextEpisodeToAir *tmdbEpisode `json:"next_episode_to_air"`
}

type tmdbSeason struct {
	ID           int64         `json:"id"`
	Name         string        `json:"name"`
	Overview     string        `json:"overview"`
	AirDate      string        `json:"air_date"`
	PosterPath   string        `json:"poster_path"`
	SeasonNumber int           `json:"season_number"`
	EpisodeCount int           `json:"episode_count"`
	Episodes     []tmdbEpisode `json:"episodes"`
}

type tmdbEpisode struct {
	ID            int64  `json:"id"`
	Name          string `json:"name"`
	Overview      string `json:"overview"`
	AirDate       string `json:"air_date"`
	Runtime       int    `json:"runtime"`
	SeasonNumber  int    `json:"season_number"`
	EpisodeNumber int    `json:"episode_number"`
	StillPath     string `json:"still_path"`
}

// parseAirDate is deliberately permissive. The provider sometimes sends
// empty or partial dates and those become the zero time, not an error.
func parseAirDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func (s tmdbShow) toModel() models.Show {
	return models.Show{
		TMDbID:       s.ID,
		Name:         s.Name,
		Overview:     s.Overview,
		FirstAirDate: parseAirDate(s.FirstAirDate),
		Popularity:   s.Popularity,
		PosterPath:   s.PosterPath,
	}
}

func (e tmdbEpisode) toRef() *models.EpisodeRef {
	return &models.EpisodeRef{
		Name:          e.Name,
		SeasonNumber:  e.SeasonNumber,
		EpisodeNumber: e.EpisodeNumber,
		AirDate:       parseAirDate(e.AirDate),
	}
}

func (e tmdbEpisode) toModel(showTMDbID int64) models.Episode {
	return models.Episode{
		TMDbID:        e.ID,
		ShowTMDbID:    showTMDbID,
		SeasonNumber:  e.SeasonNumber,
		EpisodeNumber: e.EpisodeNumber,
		Name:          e.Name,
		AirDate:       parseAirDate(e.AirDate),
		Runtime:       e.Runtime,
		Overview:      e.Overview,
		StillPath:     e.StillPath,
	}
}

func (s tmdbSeason) toModel(showTMDbID int64) models.Season {
	season := models.Season{
		TMDbID:       s.ID,
		ShowTMDbID:   showTMDbID,
		Name:         s.Name,
		AirDate:      parseAirDate(s.AirDate),
		SeasonNumber: s.SeasonNumber,
		EpisodeCount: s.EpisodeCount,
		Overview:     s.Overview,
		PosterPath:   s.PosterPath,
	}
	if len(s.Episodes) > 0 {
		season.Episodes = make([]models.Episode, 0, len(s.Episodes))
		for _, e := range s.Episodes {
			season.Episodes = append(season.Episodes, e.toModel(showTMDbID))
		}
		season.EpisodeCount = len(season.Episodes)
	}
	return season
}

// GetTopShows fetches a page of the provider's popularity ranking. The
// provider serves fixed 20-item pages, so the result is trimmed when a
// smaller pageSize is asked for.
func (c *Client) GetTopShows(ctx context.Context, language string, page, pageSize int) ([]models.Show, error) {
	if language == "" {
		language = defaultLanguage
	}
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	params := url.Values{}
	params.Set("language", language)
	params.Set("page", fmt.Sprintf("%d", page))

	var payload tmdbShowPage
	if err := c.getJSON(ctx, "tv/popular", params, &payload); err != nil {
		return nil, err
	}

	shows := make([]models.Show, 0, pageSize)
	for _, s := range payload.Results {
		if len(shows) == pageSize {
			break
		}
		shows = append(shows, s.toModel())
	}
	return shows, nil
}

// GetShowDetails fetches a show with its season summaries and last/next
// episode pointers.
func (c *Client) GetShowDetails(ctx context.Context, showID int64) (*models.Show, error) {
	var payload tmdbShowDetails
	if err := c.getJSON(ctx, fmt.Sprintf("tv/%d", showID), nil, &payload); err != nil {
		return nil, err
	}

	show := payload.toModel()
	show.Status = payload.Status
	show.Type = payload.Type
	show.EpisodeCount = payload.NumberOfEpisodes
	show.SeasonCount = payload.NumberOfSeasons
	if payload.LastEpisodeToAir != nil {
		show.LastEpisodeAired = payload.LastEpisodeToAir.toRef()
	}
	if payload.NextEpisodeToAir != nil {
		show.NextEpisodeToAir = payload.NextEpisodeToAir.toRef()
	}
	if len(payload.Seasons) > 0 {
		show.Seasons = make([]models.Season, 0, len(payload.Seasons))
		for _, s := range payload.Seasons {
			show.Seasons = append(show.Seasons, s.toModel(showID))
		}
	}
	return &show, nil
}

// GetSeasonDetails fetches one season with its full episode list.
func (c *Client) GetSeasonDetails(ctx context.Context, showID int64, seasonNumber int) (*models.Season, error) {
	var payload tmdbSeason
	path := fmt.Sprintf("tv/%d/season/%d", showID, seasonNumber)
	if err := c.getJSON(ctx, path, nil, &payload); err != nil {
		return nil, err
	}
	season := payload.toModel(showID)
	if season.SeasonNumber == 0 && seasonNumber != 0 {
		season.SeasonNumber = seasonNumber
	}
	return &season, nil
}

// GetEpisodeDetails fetches one episode and joins in the owning show, which
// the episode endpoint does not include.
func (c *Client) GetEpisodeDetails(ctx context.Context, showID int64, seasonNumber, episodeNumber int) (*models.Episode, error) {
	var payload tmdbEpisode
	path := fmt.Sprintf("tv/%d/season/%d/episode/%d", showID, seasonNumber, episodeNumber)
	if err := c.getJSON(ctx, path, nil, &payload); err != nil {
		return nil, err
	}

	episode := payload.toModel(showID)

	show, err := c.GetShowDetails(ctx, showID)
	if err != nil {
		return nil, err
	}
	episode.Show = show
	return &episode, nil
}

// SearchShows queries the provider's show search.
func (c *Client) SearchShows(ctx context.Context, query string) ([]models.Show, error) {
	params := url.Values{}
	params.Set("query", query)

	var payload tmdbShowPage
	if err := c.getJSON(ctx, "search/tv", params, &payload); err != nil {
		return nil, err
	}

	shows := make([]models.Show, 0, len(payload.Results))
	for _, s := range payload.Results {
		shows = append(shows, s.toModel())
	}
	return shows, nil
}
