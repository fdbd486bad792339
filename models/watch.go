package models

import "time"

// WatchedEpisode records that a user watched an episode. One row per
// (user, episode) pair; marking the same episode twice is a conflict.
type WatchedEpisode struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"userId" db:"user_id"`
	EpisodeID int64     `json:"episodeId" db:"episode_id"`
	WatchedAt time.Time `json:"watchedAt" db:"watched_at"`

	Episode *Episode `json:"episode,omitempty" db:"-"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// WatchlistItem tracks a show a user intends to watch, with an optional
// pointer to the most recently watched episode. One row per (user, show).
type WatchlistItem struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"userId" db:"user_id"`
	ShowID    int64     `json:"showId" db:"show_id"`
	EpisodeID *int64    `json:"episodeId,omitempty" db:"episode_id"`
	Watched   bool      `json:"watched" db:"watched"`
	AddedAt   time.Time `json:"addedAt" db:"added_at"`

	Show *Show `json:"show,omitempty" db:"-"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
