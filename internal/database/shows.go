package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"showtracker/models"
)

// ShowRepository persists shows keyed by their TMDb id. A second upsert of
// the same remote show updates the existing row instead of duplicating it.
type ShowRepository struct {
	db *sqlx.DB
}

func NewShowRepository(db *sqlx.DB) *ShowRepository {
	return &ShowRepository{db: db}
}

// showRow adds the JSON-encoded episode pointer columns to the model.
type showRow struct {
	models.Show
	LastEpisode sql.NullString `db:"last_episode"`
	NextEpisode sql.NullString `db:"next_episode"`
}

func (r showRow) toModel() models.Show {
	show := r.Show
	show.LastEpisodeAired = decodeEpisodeRef(r.LastEpisode)
	show.NextEpisodeToAir = decodeEpisodeRef(r.NextEpisode)
	return show
}

func decodeEpisodeRef(col sql.NullString) *models.EpisodeRef {
	if !col.Valid || col.String == "" {
		return nil
	}
	var ref models.EpisodeRef
	if err := json.Unmarshal([]byte(col.String), &ref); err != nil {
		return nil
	}
	return &ref
}

func encodeEpisodeRef(ref *models.EpisodeRef) sql.NullString {
	if ref == nil {
		return sql.NullString{}
	}
	raw, err := json.Marshal(ref)
	if err != nil {
		return sql.NullString{}
	}
	return sql.NullString{String: string(raw), Valid: true}
}

const showUpsertQuery = `
INSERT INTO shows (tmdb_id, name, overview, first_air_date, popularity, poster_path,
                   status, show_type, episode_count, season_count, last_episode, next_episode,
                   created_at, updated_at)
VALUES (:tmdb_id, :name, :overview, :first_air_date, :popularity, :poster_path,
        :status, :show_type, :episode_count, :season_count, :last_episode, :next_episode,
        :created_at, :updated_at)
ON CONFLICT (tmdb_id) DO UPDATE SET
    name = excluded.name,
    overview = excluded.overview,
    first_air_date = excluded.first_air_date,
    popularity = excluded.popularity,
    poster_path = excluded.poster_path,
    status = excluded.status,
    show_type = excluded.show_type,
    episode_count = excluded.episode_count,
    season_count = excluded.season_count,
    last_episode = excluded.last_episode,
    next_episode = excluded.next_episode,
    updated_at = excluded.updated_at`

// Upsert inserts the show or, when a row with the same TMDb id exists,
// updates its content fields. The stored row is returned with local id and
// timestamps filled in.
func (r *ShowRepository) Upsert(ctx context.Context, show *models.Show) (*models.Show, error) {
	now := time.Now().UTC()
	row := showRow{
		Show:        *show,
		LastEpisode: encodeEpisodeRef(show.LastEpisodeAired),
		NextEpisode: encodeEpisodeRef(show.NextEpisodeToAir),
	}
	row.CreatedAt = now
	row.UpdatedAt = now

	if _, err := r.db.NamedExecContext(ctx, showUpsertQuery, row); err != nil {
		return nil, fmt.Errorf("upsert show %d: %w", show.TMDbID, translateErr(err))
	}
	return r.GetByTMDbID(ctx, show.TMDbID)
}

// UpsertAll upserts a batch of shows inside one transaction.
func (r *ShowRepository) UpsertAll(ctx context.Context, shows []models.Show) error {
	if len(shows) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert batch: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	for i := range shows {
		row := showRow{
			Show:        shows[i],
			LastEpisode: encodeEpisodeRef(shows[i].LastEpisodeAired),
			NextEpisode: encodeEpisodeRef(shows[i].NextEpisodeToAir),
		}
		row.CreatedAt = now
		row.UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, showUpsertQuery, row); err != nil {
			return fmt.Errorf("upsert show %d: %w", shows[i].TMDbID, translateErr(err))
		}
	}
	return tx.Commit()
}

// GetByTMDbID returns the show with its seasons eagerly loaded.
func (r *ShowRepository) GetByTMDbID(ctx context.Context, tmdbID int64) (*models.Show, error) {
	var row showRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM shows WHERE tmdb_id = ?`, tmdbID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get show %d: %w", tmdbID, err)
	}

	show := row.toModel()
	if err := r.db.SelectContext(ctx, &show.Seasons,
		`SELECT * FROM seasons WHERE show_tmdb_id = ? ORDER BY season_number`, tmdbID); err != nil {
		return nil, fmt.Errorf("get seasons for show %d: %w", tmdbID, err)
	}
	return &show, nil
}

// GetByID returns the show by its local row id, without children.
func (r *ShowRepository) GetByID(ctx context.Context, id int64) (*models.Show, error) {
	var row showRow
	err := r.db.GetContext(ctx, &row, `SELECT * FROM shows WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get show row %d: %w", id, err)
	}
	show := row.toModel()
	return &show, nil
}

// TopByPopularity returns up to limit shows ordered by descending popularity.
// An empty table yields an empty slice, not an error.
func (r *ShowRepository) TopByPopularity(ctx context.Context, limit int) ([]models.Show, error) {
	var rows []showRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM shows ORDER BY popularity DESC LIMIT ?`, limit); err != nil {
		return nil, fmt.Errorf("top shows: %w", err)
	}
	shows := make([]models.Show, 0, len(rows))
	for _, row := range rows {
		shows = append(shows, row.toModel())
	}
	return shows, nil
}

// SearchByName does a case-insensitive substring match on show names.
func (r *ShowRepository) SearchByName(ctx context.Context, query string) ([]models.Show, error) {
	var rows []showRow
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT * FROM shows WHERE name LIKE ? ORDER BY popularity DESC`, "%"+query+"%"); err != nil {
		return nil, fmt.Errorf("search shows %q: %w", query, err)
	}
	shows := make([]models.Show, 0, len(rows))
	for _, row := range rows {
		shows = append(shows, row.toModel())
	}
	return shows, nil
}
