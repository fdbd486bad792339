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

// WatchedEpisodeRepository persists the (user, episode) watch log.
type WatchedEpisodeRepository struct {
	db *sqlx.DB
}

func NewWatchedEpisodeRepository(db *sqlx.DB) *WatchedEpisodeRepository {
	return &WatchedEpisodeRepository{db: db}
}

// Add inserts the watch record. A second record for the same
// (user, episode) pair yields ErrDuplicate from the unique index.
func (r *WatchedEpisodeRepository) Add(ctx context.Context, watched *models.WatchedEpisode) error {
	now := time.Now().UTC()
	watched.CreatedAt = now
	watched.UpdatedAt = now
	if watched.WatchedAt.IsZero() {
		watched.WatchedAt = now
	}

	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO watched_episodes (user_id, episode_id, watched_at, created_at, updated_at)
		VALUES (:user_id, :episode_id, :watched_at, :created_at, :updated_at)`, watched)
	if err != nil {
		return fmt.Errorf("add watched episode %d for user %d: %w",
			watched.EpisodeID, watched.UserID, translateErr(err))
	}
	watched.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("add watched episode: %w", err)
	}
	return nil
}

// Get returns the watch record for (user, episode).
func (r *WatchedEpisodeRepository) Get(ctx context.Context, userID, episodeID int64) (*models.WatchedEpisode, error) {
	var watched models.WatchedEpisode
	err := r.db.GetContext(ctx, &watched,
		`SELECT * FROM watched_episodes WHERE user_id = ? AND episode_id = ?`, userID, episodeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get watched episode %d for user %d: %w", episodeID, userID, err)
	}
	return &watched, nil
}

// IsWatched reports whether the user has marked the episode watched.
func (r *WatchedEpisodeRepository) IsWatched(ctx context.Context, userID, episodeID int64) (bool, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM watched_episodes WHERE user_id = ? AND episode_id = ?`, userID, episodeID); err != nil {
		return false, fmt.Errorf("is watched %d for user %d: %w", episodeID, userID, err)
	}
	return count > 0, nil
}

// ListByUser returns the user's watch log, newest first, with episodes
// eagerly attached.
func (r *WatchedEpisodeRepository) ListByUser(ctx context.Context, userID int64) ([]models.WatchedEpisode, error) {
	watched := []models.WatchedEpisode{}
	if err := r.db.SelectContext(ctx, &watched,
		`SELECT * FROM watched_episodes WHERE user_id = ? ORDER BY watched_at DESC`, userID); err != nil {
		return nil, fmt.Errorf("list watched for user %d: %w", userID, err)
	}
	for i := range watched {
		var episode models.Episode
		err := r.db.GetContext(ctx, &episode, `SELECT * FROM episodes WHERE id = ?`, watched[i].EpisodeID)
		if err == nil {
			watched[i].Episode = &episode
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("load episode %d: %w", watched[i].EpisodeID, err)
		}
	}
	return watched, nil
}

// Update rewrites the watched timestamp of an existing record.
func (r *WatchedEpisodeRepository) Update(ctx context.Context, watched *models.WatchedEpisode) error {
	watched.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE watched_episodes SET watched_at = :watched_at, updated_at = :updated_at
		WHERE user_id = :user_id AND episode_id = :episode_id`, watched)
	if err != nil {
		return fmt.Errorf("update watched episode %d for user %d: %w", watched.EpisodeID, watched.UserID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update watched episode: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Remove deletes the watch record.
func (r *WatchedEpisodeRepository) Remove(ctx context.Context, userID, episodeID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM watched_episodes WHERE user_id = ? AND episode_id = ?`, userID, episodeID)
	if err != nil {
		return fmt.Errorf("remove watched episode %d for user %d: %w", episodeID, userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove watched episode: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}
