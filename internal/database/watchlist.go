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

// WatchlistRepository persists the (user, show) watchlist.
type WatchlistRepository struct {
	db *sqlx.DB
}

func NewWatchlistRepository(db *sqlx.DB) *WatchlistRepository {
	return &WatchlistRepository{db: db}
}

// Add inserts the watchlist item. A show already on the user's list yields
// ErrDuplicate.
func (r *WatchlistRepository) Add(ctx context.Context, item *models.WatchlistItem) error {
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	if item.AddedAt.IsZero() {
		item.AddedAt = now
	}

	res, err := r.db.NamedExecContext(ctx, `
		INSERT INTO watchlist_items (user_id, show_id, episode_id, watched, added_at, created_at, updated_at)
		VALUES (:user_id, :show_id, :episode_id, :watched, :added_at, :created_at, :updated_at)`, item)
	if err != nil {
		return fmt.Errorf("add watchlist item show %d for user %d: %w",
			item.ShowID, item.UserID, translateErr(err))
	}
	item.ID, err = res.LastInsertId()
	if err != nil {
		return fmt.Errorf("add watchlist item: %w", err)
	}
	return nil
}

// Get returns the watchlist item for (user, show) with the show attached.
func (r *WatchlistRepository) Get(ctx context.Context, userID, showID int64) (*models.WatchlistItem, error) {
	var item models.WatchlistItem
	err := r.db.GetContext(ctx, &item,
		`SELECT * FROM watchlist_items WHERE user_id = ? AND show_id = ?`, userID, showID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get watchlist item show %d for user %d: %w", showID, userID, err)
	}
	if err := r.attachShow(ctx, &item); err != nil {
		return nil, err
	}
	return &item, nil
}

// ListByUser returns the user's watchlist, most recently added first.
func (r *WatchlistRepository) ListByUser(ctx context.Context, userID int64) ([]models.WatchlistItem, error) {
	items := []models.WatchlistItem{}
	if err := r.db.SelectContext(ctx, &items,
		`SELECT * FROM watchlist_items WHERE user_id = ? ORDER BY added_at DESC`, userID); err != nil {
		return nil, fmt.Errorf("list watchlist for user %d: %w", userID, err)
	}
	for i := range items {
		if err := r.attachShow(ctx, &items[i]); err != nil {
			return nil, err
		}
	}
	return items, nil
}

// Update rewrites the last-watched episode pointer and watched flag.
func (r *WatchlistRepository) Update(ctx context.Context, item *models.WatchlistItem) error {
	item.UpdatedAt = time.Now().UTC()
	res, err := r.db.NamedExecContext(ctx, `
		UPDATE watchlist_items SET episode_id = :episode_id, watched = :watched, updated_at = :updated_at
		WHERE user_id = :user_id AND show_id = :show_id`, item)
	if err != nil {
		return fmt.Errorf("update watchlist item show %d for user %d: %w", item.ShowID, item.UserID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update watchlist item: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// Remove deletes the watchlist item.
func (r *WatchlistRepository) Remove(ctx context.Context, userID, showID int64) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM watchlist_items WHERE user_id = ? AND show_id = ?`, userID, showID)
	if err != nil {
		return fmt.Errorf("remove watchlist item show %d for user %d: %w", showID, userID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("remove watchlist item: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *WatchlistRepository) attachShow(ctx context.Context, item *models.WatchlistItem) error {
	var show showRow
	err := r.db.GetContext(ctx, &show, `SELECT * FROM shows WHERE id = ?`, item.ShowID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load show %d: %w", item.ShowID, err)
	}
	model := show.toModel()
	item.Show = &model
	return nil
}
