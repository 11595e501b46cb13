package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kluhan/kraken/pkg/types"
)

// ErrSeriesNotFound is returned by LoadSeries when id has no row.
var ErrSeriesNotFound = errors.New("sqlitestore: series not found")

// SaveSeries upserts a Series by ID, the setup-series CLI operation's
// persistence step.
func (s *Store) SaveSeries(ctx context.Context, series *types.Series) error {
	data, err := json.Marshal(series)
	if err != nil {
		return fmt.Errorf("sqlitestore: marshal series: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO series (id, name, data) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, data = excluded.data
	`, series.ID, series.Name, string(data))
	if err != nil {
		return fmt.Errorf("sqlitestore: save series: %w", err)
	}
	return nil
}

// LoadSeries loads a Series by ID.
func (s *Store) LoadSeries(ctx context.Context, id string) (*types.Series, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM series WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeriesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: load series: %w", err)
	}
	var series types.Series
	if err := json.Unmarshal([]byte(data), &series); err != nil {
		return nil, fmt.Errorf("sqlitestore: unmarshal series: %w", err)
	}
	return &series, nil
}

// LoadSeriesByName loads a Series by its human-readable name, the form
// the daemon command's <series-id> argument is typically given in.
func (s *Store) LoadSeriesByName(ctx context.Context, name string) (*types.Series, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM series WHERE name = ?`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeriesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: load series by name: %w", err)
	}
	var series types.Series
	if err := json.Unmarshal([]byte(data), &series); err != nil {
		return nil, fmt.Errorf("sqlitestore: unmarshal series: %w", err)
	}
	return &series, nil
}

// SaveCrawl upserts a Crawl by ID, used both when the Scheduler starts
// a new one and when it persists status/counters as the crawl runs.
func (s *Store) SaveCrawl(ctx context.Context, crawl *types.Crawl) error {
	data, err := json.Marshal(crawl)
	if err != nil {
		return fmt.Errorf("sqlitestore: marshal crawl: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO crawls (id, series_id, data) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data
	`, crawl.ID, crawl.SeriesID, string(data))
	if err != nil {
		return fmt.Errorf("sqlitestore: save crawl: %w", err)
	}
	return nil
}

// LoadCrawl loads a Crawl by ID, the lookup the Target Monitor Callback
// uses to resolve a running stage's parent series.
func (s *Store) LoadCrawl(ctx context.Context, id string) (*types.Crawl, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM crawls WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeriesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: load crawl: %w", err)
	}
	var crawl types.Crawl
	if err := json.Unmarshal([]byte(data), &crawl); err != nil {
		return nil, fmt.Errorf("sqlitestore: unmarshal crawl: %w", err)
	}
	return &crawl, nil
}

// LoadLatestCrawl loads the most recently created Crawl for seriesID,
// the row --continue_crawl resumes from.
func (s *Store) LoadLatestCrawl(ctx context.Context, seriesID string) (*types.Crawl, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `
		SELECT data FROM crawls WHERE series_id = ? ORDER BY rowid DESC LIMIT 1
	`, seriesID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSeriesNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: load latest crawl: %w", err)
	}
	var crawl types.Crawl
	if err := json.Unmarshal([]byte(data), &crawl); err != nil {
		return nil, fmt.Errorf("sqlitestore: unmarshal crawl: %w", err)
	}
	return &crawl, nil
}
