package sqlitestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
)

// Get implements historic.Store. It returns found=false rather than an
// error when no document is stored under key, the contract
// historic.Save relies on to distinguish "first observation" from a
// store failure.
func (s *Store) Get(ctx context.Context, key string) (json.RawMessage, bool, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM historic_documents WHERE key = ?`, key).Scan(&data)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("sqlitestore: get historic document: %w", err)
	}
	return json.RawMessage(data), true, nil
}

// Put implements historic.Store, upserting the full encoded document
// (payload + history) under key.
func (s *Store) Put(ctx context.Context, key string, raw json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO historic_documents (key, data) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET data = excluded.data
	`, key, string(raw))
	if err != nil {
		return fmt.Errorf("sqlitestore: put historic document: %w", err)
	}
	return nil
}
