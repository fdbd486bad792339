package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"showtracker/models"
)

// SeasonRepository persists seasons keyed by (show TMDb id, season number).
type SeasonRepository struct {
	db *sqlx.DB
}

func NewSeasonRepository(db *sqlx.DB) *SeasonRepository {
	return &SeasonRepository{db: db}
}

const seasonUpsertQuery = `
INSERT INTO seasons (tmdb_id, show_tmdb_id, name, air_date, season_number,
                     episode_count, overview, poster_path, created_at, updated_at)
VALUES (:tmdb_id, :show_tmdb_id, :name, :air_date, :season_number,
        :episode_count, :overview, :poster_path, :created_at, :updated_at)
ON CONFLICT (show_tmdb_id, season_number) DO UPDATE SET
    tmdb_id = excluded.tmdb_id,
    name = excluded.name,
    air_date = excluded.air_date,
    episode_count = excluded.episode_count,
    overview = excluded.overview,
    poster_path = excluded.poster_path,
    updated_at = excluded.updated_at`

// Upsert writes the season. EpisodeCount is always recomputed from the
// episode collection carried on the season, keeping the denormalized count
// consistent with the last write.
func (r *SeasonRepository) Upsert(ctx context.Context, season *models.Season) (*models.Season, error) {
	now := time.Now().UTC()
	row := *season
	if len(row.Episodes) > 0 {
		row.EpisodeCount = len(row.Episodes)
	}
	row.CreatedAt = now
	row.UpdatedAt = now

	if _, err := r.db.NamedExecContext(ctx, seasonUpsertQuery, row); err != nil {
		return nil, fmt.Errorf("upsert season %d/%d: %w", season.ShowTMDbID, season.SeasonNumber, translateErr(err))
	}
	return r.Get(ctx, season.ShowTMDbID, season.SeasonNumber)
}

// Get returns the season with its episodes eagerly loaded.
func (r *SeasonRepository) Get(ctx context.Context, showTMDbID int64, seasonNumber int) (*models.Season, error) {
	var season models.Season
	err := r.db.GetContext(ctx, &season,
		`SELECT * FROM seasons WHERE show_tmdb_id = ? AND season_number = ?`, showTMDbID, seasonNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get season %d/%d: %w", showTMDbID, seasonNumber, err)
	}

	if err := r.db.SelectContext(ctx, &season.Episodes,
		`SELECT * FROM episodes WHERE show_tmdb_id = ? AND season_number = ? ORDER BY episode_number`,
		showTMDbID, seasonNumber); err != nil {
		return nil, fmt.Errorf("get episodes for season %d/%d: %w", showTMDbID, seasonNumber, err)
	}
	return &season, nil
}

// ListForShow returns all seasons of a show ordered by season number.
func (r *SeasonRepository) ListForShow(ctx context.Context, showTMDbID int64) ([]models.Season, error) {
	seasons := []models.Season{}
	if err := r.db.SelectContext(ctx, &seasons,
		`SELECT * FROM seasons WHERE show_tmdb_id = ? ORDER BY season_number`, showTMDbID); err != nil {
		return nil, fmt.Errorf("list seasons for show %d: %w", showTMDbID, err)
	}
	return seasons, nil
}
