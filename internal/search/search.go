// Package search is the full-text lookup over show metadata, consulted by
// the orchestration layer before falling back to remote provider search.
package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	bleve "github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/sirupsen/logrus"

	"showtracker/models"
)

// Weights for field boosting: a hit on the name should always outrank a hit
// on the overview.
const (
	boostName      = 3.0
	boostNameFuzzy = 2.0
	boostOverview  = 1.0
)

const defaultLimit = 20

// Index is the bleve-backed search adapter.
type Index struct {
	idx bleve.Index
	log *logrus.Logger
}

// document is what we store per show. Fields are stored so hits can be
// turned back into Show values without a database round trip.
type document struct {
	TMDbID       string  `json:"tmdb_id"`
	Name         string  `json:"name"`
	Overview     string  `json:"overview"`
	FirstAirDate string  `json:"first_air_date"`
	Popularity   float64 `json:"popularity"`
	PosterPath   string  `json:"poster_path"`
}

// New opens (or creates) the index at path. An empty path builds an
// in-memory index, used by tests and small deployments.
func New(path string, log *logrus.Logger) (*Index, error) {
	var idx bleve.Index
	var err error

	if path == "" {
		idx, err = bleve.NewMemOnly(buildIndexMapping())
	} else {
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, buildIndexMapping())
		}
	}
	if err != nil {
		return nil, fmt.Errorf("open search index: %w", err)
	}
	return &Index{idx: idx, log: log}, nil
}

func buildIndexMapping() mapping.IndexMapping {
	m := bleve.NewIndexMapping()

	doc := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Analyzer = "en"
	text.Store = true
	text.Index = true

	keyword := bleve.NewTextFieldMapping()
	keyword.Analyzer = "keyword"
	keyword.Store = true
	keyword.Index = true

	stored := bleve.NewTextFieldMapping()
	stored.Index = false
	stored.Store = true

	numeric := bleve.NewNumericFieldMapping()
	numeric.Store = true

	doc.AddFieldMappingsAt("tmdb_id", keyword)
	doc.AddFieldMappingsAt("name", text)
	doc.AddFieldMappingsAt("overview", text)
	doc.AddFieldMappingsAt("first_air_date", stored)
	doc.AddFieldMappingsAt("poster_path", stored)
	doc.AddFieldMappingsAt("popularity", numeric)

	m.DefaultMapping = doc
	return m
}

// IndexOne upserts a single show document.
func (s *Index) IndexOne(_ context.Context, show models.Show) error {
	doc := toDocument(show)
	if err := s.idx.Index(doc.TMDbID, doc); err != nil {
		return fmt.Errorf("index show %d: %w", show.TMDbID, err)
	}
	return nil
}

// IndexMany upserts a batch. Individual failures are logged and skipped so
// one bad document does not sink the whole batch.
func (s *Index) IndexMany(_ context.Context, shows []models.Show) error {
	batch := s.idx.NewBatch()
	for _, show := range shows {
		doc := toDocument(show)
		if err := batch.Index(doc.TMDbID, doc); err != nil {
			s.log.WithError(err).WithField("tmdbId", show.TMDbID).Warn("skipping show in index batch")
			continue
		}
	}
	if batch.Size() == 0 {
		return nil
	}
	if err := s.idx.Batch(batch); err != nil {
		return fmt.Errorf("index batch: %w", err)
	}
	return nil
}

// Search runs a fuzzy, boosted query across name and overview. An empty or
// whitespace query returns no results rather than an error.
func (s *Index) Search(_ context.Context, searchTerm string) ([]models.Show, error) {
	searchTerm = strings.ToLower(strings.TrimSpace(searchTerm))
	if searchTerm == "" {
		return []models.Show{}, nil
	}

	nameMatch := bleve.NewMatchQuery(searchTerm)
	nameMatch.SetField("name")
	nameMatch.SetBoost(boostName)

	nameFuzzy := bleve.NewFuzzyQuery(searchTerm)
	nameFuzzy.SetField("name")
	nameFuzzy.SetFuzziness(1)
	nameFuzzy.SetBoost(boostNameFuzzy)

	overviewMatch := bleve.NewMatchQuery(searchTerm)
	overviewMatch.SetField("overview")
	overviewMatch.SetBoost(boostOverview)

	q := bleve.NewDisjunctionQuery(
		query.Query(nameMatch),
		query.Query(nameFuzzy),
		query.Query(overviewMatch),
	)

	req := bleve.NewSearchRequestOptions(q, defaultLimit, 0, false)
	req.Fields = []string{"*"}

	res, err := s.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", searchTerm, err)
	}

	shows := make([]models.Show, 0, len(res.Hits))
	for _, hit := range res.Hits {
		shows = append(shows, fromFields(hit.Fields))
	}
	return shows, nil
}

// Close releases the index.
func (s *Index) Close() error {
	return s.idx.Close()
}

func toDocument(show models.Show) document {
	doc := document{
		TMDbID:     strconv.FormatInt(show.TMDbID, 10),
		Name:       show.Name,
		Overview:   show.Overview,
		Popularity: show.Popularity,
		PosterPath: show.PosterPath,
	}
	if !show.FirstAirDate.IsZero() {
		doc.FirstAirDate = show.FirstAirDate.Format("2006-01-02")
	}
	return doc
}

func fromFields(fields map[string]interface{}) models.Show {
	var show models.Show
	if v, ok := fields["tmdb_id"].(string); ok {
		show.TMDbID, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := fields["name"].(string); ok {
		show.Name = v
	}
	if v, ok := fields["overview"].(string); ok {
		show.Overview = v
	}
	if v, ok := fields["poster_path"].(string); ok {
		show.PosterPath = v
	}
	if v, ok := fields["popularity"].(float64); ok {
		show.Popularity = v
	}
	if v, ok := fields["first_air_date"].(string); ok && v != "" {
		if parsed, err := time.Parse("2006-01-02", v); err == nil {
			show.FirstAirDate = parsed
		}
	}
	return show
}
