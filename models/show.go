package models

import "time"

// Show is a TV show as tracked locally. TMDbID is the remote identifier and
// never changes once a row exists; ID is the local auto-assigned key.
type Show struct {
	ID           int64     `json:"id" db:"id"`
	TMDbID       int64     `json:"tmdbId" db:"tmdb_id"`
	Name         string    `json:"name" db:"name"`
	Overview     string    `json:"overview" db:"overview"`
	FirstAirDate time.Time `json:"firstAirDate" db:"first_air_date"`
	Popularity   float64   `json:"popularity" db:"popularity"`
	PosterPath   string    `json:"posterPath" db:"poster_path"`
	Status       string    `json:"status,omitempty" db:"status"`
	Type         string    `json:"type,omitempty" db:"show_type"`
	EpisodeCount int       `json:"episodeCount" db:"episode_count"`
	SeasonCount  int       `json:"seasonCount" db:"season_count"`

	// Pointers to the most recently aired and next scheduled episodes,
	// straight from the remote provider. Nil when unknown.
	LastEpisodeAired *EpisodeRef `json:"lastEpisodeAired,omitempty" db:"-"`
	NextEpisodeToAir *EpisodeRef `json:"nextEpisodeToAir,omitempty" db:"-"`

	Seasons []Season `json:"seasons,omitempty" db:"-"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// EpisodeRef is a lightweight pointer to an episode, used for the
// last-aired/next-to-air fields on Show.
type EpisodeRef struct {
	Name          string    `json:"name"`
	SeasonNumber  int       `json:"seasonNumber"`
	EpisodeNumber int       `json:"episodeNumber"`
	AirDate       time.Time `json:"airDate"`
}

// Season belongs to a show. The natural key is (show TMDb id, season number).
// EpisodeCount is recomputed from len(Episodes) whenever the season is written.
type Season struct {
	ID            int64     `json:"id" db:"id"`
	TMDbID        int64     `json:"tmdbId" db:"tmdb_id"`
	ShowTMDbID    int64     `json:"showTmdbId" db:"show_tmdb_id"`
	Name          string    `json:"name" db:"name"`
	AirDate       time.Time `json:"airDate" db:"air_date"`
	SeasonNumber  int       `json:"seasonNumber" db:"season_number"`
	EpisodeCount  int       `json:"episodeCount" db:"episode_count"`
	Overview      string    `json:"overview" db:"overview"`
	PosterPath    string    `json:"posterPath" db:"poster_path"`

	Episodes []Episode `json:"episodes,omitempty" db:"-"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// Episode natural key is (show TMDb id, season number, episode number).
type Episode struct {
	ID            int64     `json:"id" db:"id"`
	TMDbID        int64     `json:"tmdbId" db:"tmdb_id"`
	ShowTMDbID    int64     `json:"showTmdbId" db:"show_tmdb_id"`
	SeasonNumber  int       `json:"seasonNumber" db:"season_number"`
	EpisodeNumber int       `json:"episodeNumber" db:"episode_number"`
	Name          string    `json:"name" db:"name"`
	AirDate       time.Time `json:"airDate" db:"air_date"`
	Runtime       int       `json:"runtime" db:"runtime"`
	Overview      string    `json:"overview" db:"overview"`
	StillPath     string    `json:"stillPath" db:"still_path"`

	// Denormalized owning show, populated on detail lookups.
	Show *Show `json:"show,omitempty" db:"-"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}
