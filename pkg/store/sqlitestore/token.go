package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/kluhan/kraken/internal/kerrors"
	"github.com/kluhan/kraken/pkg/types"
)

var crawlCounterColumns = map[string]string{
	"targets_retried":  "targets_retried",
	"targets_failed":   "targets_failed",
	"targets_finished": "targets_finished",
}

// CreateExecutionToken implements scheduler.Store.
func (s *Store) CreateExecutionToken(ctx context.Context, token *types.ExecutionToken) error {
	return s.SaveExecutionToken(ctx, token)
}

// SaveExecutionToken implements scheduler.TokenStore, upserting the
// token's full state.
func (s *Store) SaveExecutionToken(ctx context.Context, token *types.ExecutionToken) error {
	raw, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("sqlitestore: encode execution token: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO execution_tokens (id, data) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data
	`, token.ID, string(raw))
	if err != nil {
		return fmt.Errorf("sqlitestore: save execution token: %w", err)
	}
	return nil
}

// LoadExecutionToken implements scheduler.TokenStore.
func (s *Store) LoadExecutionToken(ctx context.Context, id string) (*types.ExecutionToken, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM execution_tokens WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, kerrors.NewNotFoundError("execution_token:"+id, err)
		}
		return nil, fmt.Errorf("sqlitestore: load execution token: %w", err)
	}
	var token types.ExecutionToken
	if err := json.Unmarshal([]byte(data), &token); err != nil {
		return nil, fmt.Errorf("sqlitestore: decode execution token: %w", err)
	}
	return &token, nil
}

// DeleteExecutionToken implements scheduler.TokenStore, matching the
// REMOVED-on-success contract: a finished token is deleted, not kept
// around in a terminal state.
func (s *Store) DeleteExecutionToken(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM execution_tokens WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlitestore: delete execution token: %w", err)
	}
	return nil
}

// IncrementCrawlCounter implements scheduler.TokenStore, bumping one of
// a crawl's targets_retried/targets_failed/targets_finished counters.
func (s *Store) IncrementCrawlCounter(ctx context.Context, crawlID, field string, delta int64) error {
	column, ok := crawlCounterColumns[field]
	if !ok {
		return fmt.Errorf("sqlitestore: unknown crawl counter field %q", field)
	}
	if err := s.ensureCrawlCounterRow(ctx, crawlID); err != nil {
		return err
	}
	query := fmt.Sprintf(`UPDATE crawl_counters SET %s = %s + ? WHERE crawl_id = ?`, column, column)
	if _, err := s.db.ExecContext(ctx, query, delta, crawlID); err != nil {
		return fmt.Errorf("sqlitestore: increment crawl counter %s: %w", field, err)
	}
	return nil
}

// IncrementCrawlCounters implements scheduler.Store: bumps the crawl's
// submitted counter and additively merges newly-seeded expectations
// into whatever this crawl has already accumulated, using the same
// per-key addition law pipeline/terminator results combine with.
func (s *Store) IncrementCrawlCounters(ctx context.Context, crawlID string, submittedDelta int64, expectations map[string]any) error {
	if err := s.ensureCrawlCounterRow(ctx, crawlID); err != nil {
		return err
	}

	var existingRaw string
	if err := s.db.QueryRowContext(ctx, `SELECT expectations FROM crawl_counters WHERE crawl_id = ?`, crawlID).Scan(&existingRaw); err != nil {
		return fmt.Errorf("sqlitestore: load crawl expectations: %w", err)
	}
	var existing map[string]any
	if err := json.Unmarshal([]byte(existingRaw), &existing); err != nil {
		existing = map[string]any{}
	}
	merged := types.CombineByAddition(existing, expectations)
	mergedRaw, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("sqlitestore: encode crawl expectations: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE crawl_counters SET submitted = submitted + ?, expectations = ? WHERE crawl_id = ?
	`, submittedDelta, string(mergedRaw), crawlID)
	if err != nil {
		return fmt.Errorf("sqlitestore: increment crawl counters: %w", err)
	}
	return nil
}

func (s *Store) ensureCrawlCounterRow(ctx context.Context, crawlID string) error {
	_, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO crawl_counters (crawl_id) VALUES (?)`, crawlID)
	if err != nil {
		return fmt.Errorf("sqlitestore: ensure crawl counter row: %w", err)
	}
	return nil
}
