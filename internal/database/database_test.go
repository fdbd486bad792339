package database

import (
	"path/filepath"
	"testing"
	"time"

	"showtracker/models"
)

// setupTestDB creates a throwaway sqlite database with migrations applied.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := NewDB(Config{Path: dbPath})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testShow(tmdbID int64, name string, popularity float64) models.Show {
	return models.Show{
		TMDbID:       tmdbID,
		Name:         name,
		Overview:     "overview of " + name,
		FirstAirDate: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		Popularity:   popularity,
		PosterPath:   "/poster.jpg",
	}
}

func testEpisode(showTMDbID int64, season, episode int) models.Episode {
	return models.Episode{
		TMDbID:        showTMDbID*1000 + int64(season*100+episode),
		ShowTMDbID:    showTMDbID,
		SeasonNumber:  season,
		EpisodeNumber: episode,
		Name:          "Episode",
		AirDate:       time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC),
		Runtime:       42,
	}
}

func createTestUser(t *testing.T, repo *UserRepository, username, email string) *models.User {
	t.Helper()
	user := &models.User{
		Username:      username,
		Email:         email,
		PasswordHash:  "$2a$10$fakehash",
		PreferredName: username,
	}
	if err := repo.Create(t.Context(), user); err != nil {
		t.Fatalf("failed to create user %q: %v", username, err)
	}
	return user
}
