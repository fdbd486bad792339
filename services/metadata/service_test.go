package metadata

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"showtracker/internal/cache"
	"showtracker/internal/database"
	"showtracker/internal/search"
	"showtracker/models"
)

// fakeRemote scripts provider responses and counts calls so tests can
// assert which tier served a read.
type fakeRemote struct {
	shows   []models.Show
	show    *models.Show
	season  *models.Season
	episode *models.Episode
	err     error
	calls   int
}

func (f *fakeRemote) GetTopShows(context.Context, string, int, int) ([]models.Show, error) {
	f.calls++
	return f.shows, f.err
}

func (f *fakeRemote) GetShowDetails(context.Context, int64) (*models.Show, error) {
	f.calls++
	return f.show, f.err
}

func (f *fakeRemote) GetSeasonDetails(context.Context, int64, int) (*models.Season, error) {
	f.calls++
	return f.season, f.err
}

func (f *fakeRemote) GetEpisodeDetails(context.Context, int64, int, int) (*models.Episode, error) {
	f.calls++
	return f.episode, f.err
}

func (f *fakeRemote) SearchShows(context.Context, string) ([]models.Show, error) {
	f.calls++
	return f.shows, f.err
}

type testEnv struct {
	svc    *Service
	remote *fakeRemote
	shows  *database.ShowRepository
	index  *search.Index
}

func setupService(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.NewDB(database.Config{Path: filepath.Join(t.TempDir(), "test.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	idx, err := search.New("", testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { idx.Close() })

	mem := cache.NewMemory()
	t.Cleanup(mem.Close)

	remote := &fakeRemote{}
	conn := db.Connection()
	shows := database.NewShowRepository(conn)
	svc := NewService(
		remote,
		shows,
		database.NewSeasonRepository(conn),
		database.NewEpisodeRepository(conn),
		idx,
		mem,
		testLogger(),
	)
	t.Cleanup(svc.Close)

	return &testEnv{svc: svc, remote: remote, shows: shows, index: idx}
}

func sampleShow(tmdbID int64, name string, popularity float64) models.Show {
	return models.Show{
		TMDbID:       tmdbID,
		Name:         name,
		Overview:     "about " + name,
		FirstAirDate: time.Date(2019, 3, 1, 0, 0, 0, 0, time.UTC),
		Popularity:   popularity,
		PosterPath:   "/p.jpg",
	}
}

func TestGetTopShowsPersistsAndCaches(t *testing.T) {
	env := setupService(t)
	env.remote.shows = []models.Show{
		sampleShow(1, "Alpha", 90),
		sampleShow(2, "Beta", 80),
	}

	first, err := env.svc.GetTopShows(t.Context(), "en-US", 1, 20)
	require.NoError(t, err)
	require.Len(t, first, 2)
	assert.Equal(t, 1, env.remote.calls)

	// Second identical read must come from the cache.
	second, err := env.svc.GetTopShows(t.Context(), "en-US", 1, 20)
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, 1, env.remote.calls)

	// And the rows landed in the store for the fallback tier.
	stored, err := env.shows.TopByPopularity(t.Context(), 20)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestGetTopShowsFallsBackToStore(t *testing.T) {
	env := setupService(t)

	_, err := env.shows.Upsert(t.Context(), &models.Show{TMDbID: 1, Name: "Seeded", Popularity: 50})
	require.NoError(t, err)

	env.remote.err = ErrRemoteUnavailable
	shows, err := env.svc.GetTopShows(t.Context(), "en-US", 1, 20)
	require.NoError(t, err)
	require.Len(t, shows, 1)
	assert.Equal(t, "Seeded", shows[0].Name)
}

func TestGetTopShowsFallbackMayBeEmpty(t *testing.T) {
	env := setupService(t)
	env.remote.err = ErrRemoteUnavailable

	shows, err := env.svc.GetTopShows(t.Context(), "en-US", 1, 20)
	require.NoError(t, err)
	assert.Empty(t, shows)
}

func TestGetShowDetailsPersistsSeasonsAndRefs(t *testing.T) {
	env := setupService(t)
	remote := sampleShow(1396, "Breaking Bad", 95)
	remote.Status = "Ended"
	remote.SeasonCount = 1
	remote.LastEpisodeAired = &models.EpisodeRef{Name: "Felina", SeasonNumber: 5, EpisodeNumber: 16}
	remote.Seasons = []models.Season{
		{TMDbID: 3572, ShowTMDbID: 1396, Name: "Season 1", SeasonNumber: 1, EpisodeCount: 7},
	}
	env.remote.show = &remote

	show, err := env.svc.GetShowDetails(t.Context(), 1396)
	require.NoError(t, err)
	assert.NotZero(t, show.ID)
	assert.Equal(t, "Ended", show.Status)
	require.Len(t, show.Seasons, 1)
	require.NotNil(t, show.LastEpisodeAired)
	assert.Equal(t, "Felina", show.LastEpisodeAired.Name)

	// Cached on the way out.
	_, err = env.svc.GetShowDetails(t.Context(), 1396)
	require.NoError(t, err)
	assert.Equal(t, 1, env.remote.calls)
}

func TestGetShowDetailsMissEverywhere(t *testing.T) {
	env := setupService(t)
	env.remote.err = ErrRemoteUnavailable

	_, err := env.svc.GetShowDetails(t.Context(), 42)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestGetShowDetailsRemoteNotFoundPropagates(t *testing.T) {
	env := setupService(t)
	env.remote.err = ErrNotFound

	_, err := env.svc.GetShowDetails(t.Context(), 42)
	require.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 1, env.remote.calls)
}

func TestGetSeasonDetailsPersistsEpisodes(t *testing.T) {
	env := setupService(t)
	env.remote.season = &models.Season{
		TMDbID:       3572,
		ShowTMDbID:   1396,
		Name:         "Season 1",
		SeasonNumber: 1,
		Episodes: []models.Episode{
			{TMDbID: 62085, ShowTMDbID: 1396, SeasonNumber: 1, EpisodeNumber: 1, Name: "Pilot"},
			{TMDbID: 62086, ShowTMDbID: 1396, SeasonNumber: 1, EpisodeNumber: 2, Name: "Cat's in the Bag..."},
		},
	}

	season, err := env.svc.GetSeasonDetails(t.Context(), 1396, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, season.EpisodeCount)
	require.Len(t, season.Episodes, 2)
	assert.Equal(t, "Pilot", season.Episodes[0].Name)
}

func TestGetSeasonDetailsFallsBackToStore(t *testing.T) {
	env := setupService(t)
	env.remote.season = &models.Season{
		TMDbID: 3572, ShowTMDbID: 1396, Name: "Season 1", SeasonNumber: 1,
		Episodes: []models.Episode{
			{TMDbID: 62085, ShowTMDbID: 1396, SeasonNumber: 1, EpisodeNumber: 1, Name: "Pilot"},
		},
	}

	// Warm the store, then break the remote and expire the cache entry.
	_, err := env.svc.GetSeasonDetails(t.Context(), 1396, 1)
	require.NoError(t, err)
	require.NoError(t, env.svc.InvalidateCache(t.Context(), seasonDetailsKey(1396, 1)))
	env.remote.err = ErrRemoteUnavailable

	season, err := env.svc.GetSeasonDetails(t.Context(), 1396, 1)
	require.NoError(t, err)
	assert.Equal(t, "Season 1", season.Name)
	require.Len(t, season.Episodes, 1)
}

func TestGetEpisodeDetailsStoresOwningShow(t *testing.T) {
	env := setupService(t)
	show := sampleShow(1396, "Breaking Bad", 95)
	env.remote.episode = &models.Episode{
		TMDbID:        62161,
		ShowTMDbID:    1396,
		SeasonNumber:  5,
		EpisodeNumber: 16,
		Name:          "Felina",
		Show:          &show,
	}

	episode, err := env.svc.GetEpisodeDetails(t.Context(), 1396, 5, 16)
	require.NoError(t, err)
	assert.Equal(t, "Felina", episode.Name)
	require.NotNil(t, episode.Show)
	assert.Equal(t, "Breaking Bad", episode.Show.Name)

	// The join target was persisted, not just echoed.
	stored, err := env.shows.GetByTMDbID(t.Context(), 1396)
	require.NoError(t, err)
	assert.Equal(t, "Breaking Bad", stored.Name)
}

func TestSearchShowsPrefersLocalIndex(t *testing.T) {
	env := setupService(t)
	require.NoError(t, env.index.IndexOne(t.Context(), sampleShow(1, "Severance", 80)))

	results, err := env.svc.SearchShows(t.Context(), "severance")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Severance", results[0].Name)
	assert.Equal(t, 0, env.remote.calls)
}

func TestSearchShowsIndexesRemoteResults(t *testing.T) {
	env := setupService(t)
	env.remote.shows = []models.Show{sampleShow(1, "The Wire", 85)}

	results, err := env.svc.SearchShows(t.Context(), "wire")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, 1, env.remote.calls)

	// Indexing runs in the background; wait for it, then the same query
	// must be answered locally.
	env.svc.Close()
	again, err := env.svc.SearchShows(t.Context(), "wire")
	require.NoError(t, err)
	require.Len(t, again, 1)
	assert.Equal(t, 1, env.remote.calls)
}

func TestSearchShowsFallsBackToNameMatch(t *testing.T) {
	env := setupService(t)
	_, err := env.shows.Upsert(t.Context(), &models.Show{TMDbID: 9, Name: "Twin Peaks", Popularity: 70})
	require.NoError(t, err)
	env.remote.err = ErrRemoteUnavailable

	results, err := env.svc.SearchShows(t.Context(), "peaks")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Twin Peaks", results[0].Name)
}

func TestSearchShowsEmptyQuery(t *testing.T) {
	env := setupService(t)

	results, err := env.svc.SearchShows(t.Context(), "   ")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 0, env.remote.calls)
}

func TestInvalidateCacheUnknownKeyIsNoOp(t *testing.T) {
	env := setupService(t)
	require.NoError(t, env.svc.InvalidateCache(t.Context(), "ShowDetails_12345"))
}
