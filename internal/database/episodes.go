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

// EpisodeRepository persists episodes keyed by
// (show TMDb id, season number, episode number).
type EpisodeRepository struct {
	db *sqlx.DB
}

func NewEpisodeRepository(db *sqlx.DB) *EpisodeRepository {
	return &EpisodeRepository{db: db}
}

const episodeUpsertQuery = `
INSERT INTO episodes (tmdb_id, show_tmdb_id, season_number, episode_number, name,
                      air_date, runtime, overview, still_path, created_at, updated_at)
VALUES (:tmdb_id, :show_tmdb_id, :season_number, :episode_number, :name,
        :air_date, :runtime, :overview, :still_path, :created_at, :updated_at)
ON CONFLICT (show_tmdb_id, season_number, episode_number) DO UPDATE SET
    tmdb_id = excluded.tmdb_id,
    name = excluded.name,
    air_date = excluded.air_date,
    runtime = excluded.runtime,
    overview = excluded.overview,
    still_path = excluded.still_path,
    updated_at = excluded.updated_at`

// Upsert writes the episode, updating the existing row when the natural key
// matches. The stored row is returned.
func (r *EpisodeRepository) Upsert(ctx context.Context, episode *models.Episode) (*models.Episode, error) {
	now := time.Now().UTC()
	row := *episode
	row.CreatedAt = now
	row.UpdatedAt = now

	if _, err := r.db.NamedExecContext(ctx, episodeUpsertQuery, row); err != nil {
		return nil, fmt.Errorf("upsert episode %d/%d/%d: %w",
			episode.ShowTMDbID, episode.SeasonNumber, episode.EpisodeNumber, translateErr(err))
	}
	return r.Get(ctx, episode.ShowTMDbID, episode.SeasonNumber, episode.EpisodeNumber)
}

// UpsertAll upserts a batch of episodes inside one transaction.
func (r *EpisodeRepository) UpsertAll(ctx context.Context, episodes []models.Episode) error {
	if len(episodes) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin episode batch: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i := range episodes {
		row := episodes[i]
		row.CreatedAt = now
		row.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, episodeUpsertQuery, row); err != nil {
			return fmt.Errorf("upsert episode %d/%d/%d: %w",
				row.ShowTMDbID, row.SeasonNumber, row.EpisodeNumber, translateErr(err))
		}
	}
	return tx.Commit()
}

// Get returns the episode with its owning show attached when present.
func (r *EpisodeRepository) Get(ctx context.Context, showTMDbID int64, seasonNumber, episodeNumber int) (*models.Episode, error) {
	var episode models.Episode
	err := r.db.GetContext(ctx, &episode,
		`SELECT * FROM episodes WHERE show_tmdb_id = ? AND season_number = ? AND episode_number = ?`,
		showTMDbID, seasonNumber, episodeNumber)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get episode %d/%d/%d: %w", showTMDbID, seasonNumber, episodeNumber, err)
	}

	var show showRow
	err = r.db.GetContext(ctx, &show, `SELECT * FROM shows WHERE tmdb_id = ?`, showTMDbID)
	if err == nil {
		model := show.toModel()
		episode.Show = &model
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get show for episode %d: %w", showTMDbID, err)
	}
	return &episode, nil
}

// GetByID returns the episode by its local row id.
func (r *EpisodeRepository) GetByID(ctx context.Context, id int64) (*models.Episode, error) {
	var episode models.Episode
	err := r.db.GetContext(ctx, &episode, `SELECT * FROM episodes WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get episode row %d: %w", id, err)
	}
	return &episode, nil
}
