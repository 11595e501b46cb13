package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kluhan/kraken/internal/kerrors"
	"github.com/kluhan/kraken/pkg/query"
	"github.com/kluhan/kraken/pkg/types"
)

// canonicalKwargsKey encodes kwargs deterministically: encoding/json
// sorts map keys (recursively, for every nested map[string]any) when
// marshalling, so two semantically identical kwargs maps always
// produce byte-identical keys regardless of insertion order.
func canonicalKwargsKey(kwargs map[string]any) (string, error) {
	raw, err := json.Marshal(kwargs)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// Exists implements pipeline.TargetStore.
func (s *Store) Exists(ctx context.Context, kwargs map[string]any) (bool, error) {
	key, err := canonicalKwargsKey(kwargs)
	if err != nil {
		return false, fmt.Errorf("sqlitestore: encode kwargs: %w", err)
	}
	var one int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM targets WHERE kwargs_key = ?`, key).Scan(&one)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("sqlitestore: check target existence: %w", err)
	}
	return true, nil
}

// Insert implements pipeline.TargetStore, enforcing the kwargs
// uniqueness constraint via a UNIQUE index and surfacing a losing race
// as kerrors.UniquenessRaceError rather than a hard failure.
func (s *Store) Insert(ctx context.Context, target *types.Target) error {
	if target.ID == "" {
		target.ID = uuid.NewString()
	}
	key, err := canonicalKwargsKey(target.Kwargs)
	if err != nil {
		return fmt.Errorf("sqlitestore: encode kwargs: %w", err)
	}
	data, err := json.Marshal(target)
	if err != nil {
		return fmt.Errorf("sqlitestore: encode target: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO targets (id, kwargs_key, data, discovered_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(kwargs_key) DO NOTHING
	`, target.ID, key, string(data), target.DiscoveredAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("sqlitestore: insert target: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlitestore: insert target rows affected: %w", err)
	}
	if n == 0 {
		return kerrors.NewUniquenessRaceError(key, fmt.Errorf("target with equivalent kwargs already exists"))
	}
	return nil
}

// MergeTargetTags loads the Target identified by kwargs and adds any
// tag in tags not already present, the setup-targets --upsert_tags
// behaviour for a Target that already exists.
func (s *Store) MergeTargetTags(ctx context.Context, kwargs map[string]any, tags []string) error {
	key, err := canonicalKwargsKey(kwargs)
	if err != nil {
		return fmt.Errorf("sqlitestore: encode kwargs: %w", err)
	}
	var id, data string
	err = s.db.QueryRowContext(ctx, `SELECT id, data FROM targets WHERE kwargs_key = ?`, key).Scan(&id, &data)
	if err != nil {
		if err == sql.ErrNoRows {
			return kerrors.NewNotFoundError("target", fmt.Errorf("no target matches kwargs"))
		}
		return fmt.Errorf("sqlitestore: load target by kwargs: %w", err)
	}
	var target types.Target
	if err := json.Unmarshal([]byte(data), &target); err != nil {
		return fmt.Errorf("sqlitestore: decode target: %w", err)
	}
	existing := map[string]bool{}
	for _, t := range target.Tags {
		existing[t] = true
	}
	changed := false
	for _, t := range tags {
		if !existing[t] {
			target.Tags = append(target.Tags, t)
			existing[t] = true
			changed = true
		}
	}
	if !changed {
		return nil
	}
	return s.saveTarget(ctx, &target)
}

// UpdateTargetStatistics implements callback.Store: the Target Monitor
// Callback's write, folding one Stage's finished progress into the
// Target's statistics[seriesID][stageName] bundle and appending
// processed[seriesID], grounded on
// target_monitor_callback.py's field-by-field update map. The store
// favours load-modify-save here over hand-built atomic operators,
// matching MarkTargetQueued's established precedent.
func (s *Store) UpdateTargetStatistics(ctx context.Context, targetID, seriesID, stageName string, progress types.StageResult, at time.Time) error {
	target, err := s.loadTargetByID(ctx, targetID)
	if err != nil {
		return err
	}

	if target.Statistics == nil {
		target.Statistics = map[string]map[string]types.Statistic{}
	}
	if target.Statistics[seriesID] == nil {
		target.Statistics[seriesID] = map[string]types.Statistic{}
	}
	stat := target.Statistics[seriesID][stageName]

	stat.Cost = progress.Cost
	stat.Gain = progress.Gain
	stat.CostHistory = append(stat.CostHistory, types.HistoricValue{Value: progress.Cost, Timestamp: at})
	stat.GainHistory = append(stat.GainHistory, types.HistoricValue{Value: progress.Gain, Timestamp: at})

	metrics := map[string]int{}
	for _, pr := range progress.PipelineResults {
		if pr.Weight != nil {
			stat.Weight = *pr.Weight
			stat.WeightHistory = append(stat.WeightHistory, types.HistoricValue{Value: *pr.Weight, Timestamp: at})
		}
		for name, v := range pr.Metrics {
			if n, ok := toInt(v); ok {
				metrics[name] = n
			}
		}
	}
	if len(metrics) > 0 {
		if stat.Metrics == nil {
			stat.Metrics = map[string]int{}
		}
		if stat.MetricsHistory == nil {
			stat.MetricsHistory = map[string][]types.HistoricValue{}
		}
		for name, v := range metrics {
			stat.Metrics[name] = v
			stat.MetricsHistory[name] = append(stat.MetricsHistory[name], types.HistoricValue{Value: v, Timestamp: at})
		}
	}

	result, err := stageResultToMap(progress)
	if err != nil {
		return fmt.Errorf("sqlitestore: encode stage result: %w", err)
	}
	stat.Result = result
	stat.ResultHistory = append(stat.ResultHistory, types.HistoricValue{Value: result, Timestamp: at})

	target.Statistics[seriesID][stageName] = stat
	if target.Processed == nil {
		target.Processed = map[string][]time.Time{}
	}
	target.Processed[seriesID] = append(target.Processed[seriesID], at)

	return s.saveTarget(ctx, target)
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	default:
		return 0, false
	}
}

func stageResultToMap(progress types.StageResult) (map[string]any, error) {
	raw, err := json.Marshal(progress)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarkTargetQueued implements scheduler.Store, appending at to the
// Target's Queued[seriesID] sequence.
func (s *Store) MarkTargetQueued(ctx context.Context, seriesID, targetID string, at time.Time) error {
	target, err := s.loadTargetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target.Queued == nil {
		target.Queued = map[string][]time.Time{}
	}
	target.Queued[seriesID] = append(target.Queued[seriesID], at)
	return s.saveTarget(ctx, target)
}

func (s *Store) loadTargetByID(ctx context.Context, id string) (*types.Target, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM targets WHERE id = ?`, id).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, kerrors.NewNotFoundError("target:"+id, err)
		}
		return nil, fmt.Errorf("sqlitestore: load target: %w", err)
	}
	var target types.Target
	if err := json.Unmarshal([]byte(data), &target); err != nil {
		return nil, fmt.Errorf("sqlitestore: decode target: %w", err)
	}
	return &target, nil
}

func (s *Store) saveTarget(ctx context.Context, target *types.Target) error {
	key, err := canonicalKwargsKey(target.Kwargs)
	if err != nil {
		return fmt.Errorf("sqlitestore: encode kwargs: %w", err)
	}
	data, err := json.Marshal(target)
	if err != nil {
		return fmt.Errorf("sqlitestore: encode target: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		UPDATE targets SET data = ?, kwargs_key = ? WHERE id = ?
	`, string(data), key, target.ID)
	if err != nil {
		return fmt.Errorf("sqlitestore: save target: %w", err)
	}
	return nil
}

// loadAllTargets decodes every stored target. The reference store
// favours a full scan plus in-process filtering (tag globs, weight
// path resolution) over pushing that logic into SQL, since neither
// doublestar matching nor arbitrary JSON-path arithmetic has a clean
// SQLite equivalent to MongoDB's query/$bucket operators.
func (s *Store) loadAllTargets(ctx context.Context) ([]types.Target, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT data FROM targets`)
	if err != nil {
		return nil, fmt.Errorf("sqlitestore: scan targets: %w", err)
	}
	defer rows.Close()

	var out []types.Target
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("sqlitestore: scan target row: %w", err)
		}
		var target types.Target
		if err := json.Unmarshal([]byte(data), &target); err != nil {
			return nil, fmt.Errorf("sqlitestore: decode target row: %w", err)
		}
		out = append(out, target)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlitestore: iterate targets: %w", err)
	}
	return out, nil
}

// FetchUnqueuedBatch implements allocator.StaticSource: targets
// matching tagFilters that either have never been queued for seriesID,
// or whose most recent queued timestamp for it predates since, ordered
// ascending by that timestamp so the oldest backlog drains first.
func (s *Store) FetchUnqueuedBatch(ctx context.Context, seriesID string, since time.Time, tagFilters []string, limit int) ([]types.Target, error) {
	all, err := s.loadAllTargets(ctx)
	if err != nil {
		return nil, err
	}

	type candidate struct {
		target     types.Target
		lastQueued time.Time
	}
	var candidates []candidate
	for _, target := range all {
		if !query.MatchTags(target.Tags, tagFilters) {
			continue
		}
		last, ok := target.LastQueued(seriesID)
		if ok && !last.Before(since) {
			continue
		}
		candidates = append(candidates, candidate{target: target, lastQueued: last})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].lastQueued.Before(candidates[j].lastQueued)
	})

	if limit > 0 && len(candidates) > limit {
		candidates = candidates[:limit]
	}

	out := make([]types.Target, len(candidates))
	for i, c := range candidates {
		out[i] = c.target
	}
	return out, nil
}
