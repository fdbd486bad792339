package database

import (
	"errors"
	"testing"

	"showtracker/models"
)

func TestShowUpsertInsert(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShowRepository(db.Connection())

	show := testShow(100, "Breaking Bad", 90.5)
	stored, err := repo.Upsert(t.Context(), &show)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if stored.ID == 0 {
		t.Fatal("expected local id to be assigned")
	}
	if stored.TMDbID != 100 {
		t.Fatalf("expected tmdb id 100, got %d", stored.TMDbID)
	}
	if stored.CreatedAt.IsZero() || stored.UpdatedAt.IsZero() {
		t.Fatal("expected timestamps to be set")
	}
}

func TestShowUpsertIsIdempotent(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShowRepository(db.Connection())

	show := testShow(100, "Breaking Bad", 90.5)
	first, err := repo.Upsert(t.Context(), &show)
	if err != nil {
		t.Fatalf("first upsert failed: %v", err)
	}

	// Second ingestion of the same remote show updates, never duplicates.
	updated := testShow(100, "Breaking Bad (remastered)", 95.0)
	second, err := repo.Upsert(t.Context(), &updated)
	if err != nil {
		t.Fatalf("second upsert failed: %v", err)
	}

	if second.ID != first.ID {
		t.Fatalf("expected same row, got ids %d and %d", first.ID, second.ID)
	}
	if second.Name != "Breaking Bad (remastered)" {
		t.Fatalf("expected content update, got name %q", second.Name)
	}
	if second.Popularity != 95.0 {
		t.Fatalf("expected popularity update, got %f", second.Popularity)
	}

	var count int
	if err := db.Connection().Get(&count, `SELECT COUNT(*) FROM shows WHERE tmdb_id = 100`); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 row, got %d", count)
	}
}

func TestShowUpsertKeepsEpisodeRefs(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShowRepository(db.Connection())

	show := testShow(100, "Severance", 80)
	show.LastEpisodeAired = &models.EpisodeRef{Name: "Finale", SeasonNumber: 2, EpisodeNumber: 10}
	show.NextEpisodeToAir = &models.EpisodeRef{Name: "Premiere", SeasonNumber: 3, EpisodeNumber: 1}

	stored, err := repo.Upsert(t.Context(), &show)
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if stored.LastEpisodeAired == nil || stored.LastEpisodeAired.Name != "Finale" {
		t.Fatalf("expected last episode ref to round-trip, got %+v", stored.LastEpisodeAired)
	}
	if stored.NextEpisodeToAir == nil || stored.NextEpisodeToAir.SeasonNumber != 3 {
		t.Fatalf("expected next episode ref to round-trip, got %+v", stored.NextEpisodeToAir)
	}
}

func TestShowTopByPopularity(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShowRepository(db.Connection())

	for _, s := range []models.Show{
		testShow(1, "Low", 10),
		testShow(2, "High", 99),
		testShow(3, "Mid", 50),
	} {
		if _, err := repo.Upsert(t.Context(), &s); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	top, err := repo.TopByPopularity(t.Context(), 2)
	if err != nil {
		t.Fatalf("top shows failed: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 shows, got %d", len(top))
	}
	if top[0].Name != "High" || top[1].Name != "Mid" {
		t.Fatalf("expected descending popularity order, got %q, %q", top[0].Name, top[1].Name)
	}
}

func TestShowTopByPopularityEmpty(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShowRepository(db.Connection())

	top, err := repo.TopByPopularity(t.Context(), 20)
	if err != nil {
		t.Fatalf("top shows on empty table failed: %v", err)
	}
	if len(top) != 0 {
		t.Fatalf("expected empty result, got %d rows", len(top))
	}
}

func TestShowGetByTMDbIDLoadsSeasons(t *testing.T) {
	db := setupTestDB(t)
	shows := NewShowRepository(db.Connection())
	seasons := NewSeasonRepository(db.Connection())

	show := testShow(100, "The Wire", 70)
	if _, err := shows.Upsert(t.Context(), &show); err != nil {
		t.Fatalf("upsert show failed: %v", err)
	}
	for n := 1; n <= 2; n++ {
		season := models.Season{TMDbID: int64(n), ShowTMDbID: 100, SeasonNumber: n, Name: "Season"}
		if _, err := seasons.Upsert(t.Context(), &season); err != nil {
			t.Fatalf("upsert season failed: %v", err)
		}
	}

	got, err := shows.GetByTMDbID(t.Context(), 100)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(got.Seasons) != 2 {
		t.Fatalf("expected 2 seasons eagerly loaded, got %d", len(got.Seasons))
	}
	if got.Seasons[0].SeasonNumber != 1 {
		t.Fatalf("expected seasons ordered by number, got %d first", got.Seasons[0].SeasonNumber)
	}
}

func TestShowGetByTMDbIDNotFound(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShowRepository(db.Connection())

	if _, err := repo.GetByTMDbID(t.Context(), 404); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestShowSearchByName(t *testing.T) {
	db := setupTestDB(t)
	repo := NewShowRepository(db.Connection())

	for _, s := range []models.Show{
		testShow(1, "Breaking Bad", 90),
		testShow(2, "Better Call Saul", 80),
		testShow(3, "The Office", 70),
	} {
		if _, err := repo.Upsert(t.Context(), &s); err != nil {
			t.Fatalf("upsert failed: %v", err)
		}
	}

	results, err := repo.SearchByName(t.Context(), "B")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(results))
	}

	none, err := repo.SearchByName(t.Context(), "Zzz")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected no matches, got %d", len(none))
	}
}
