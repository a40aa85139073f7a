package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/quadra-systems/hlquad/pkg/types"
)

// schema mirrors the teacher's two-table split: one row per bot's durable
// config, one row per bot's last-observed runtime state, grounded on
// AlejandroRuiz99-polybot/internal/adapters/storage/sqlite.go.
const schema = `
CREATE TABLE IF NOT EXISTS bot_configs (
	bot_id       TEXT PRIMARY KEY,
	config_json  TEXT    NOT NULL,
	updated_at   DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS bot_runtime_state (
	bot_id       TEXT PRIMARY KEY REFERENCES bot_configs(bot_id),
	state        TEXT    NOT NULL,
	status_json  TEXT    NOT NULL,
	updated_at   DATETIME NOT NULL
);
`

// Store persists bot configuration and last-known runtime state to a
// single-writer sqlite database (pure Go driver, no cgo).
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the sqlite database at path and applies the
// schema. WAL mode is enabled so concurrent readers never block the single
// writer.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("registry.OpenStore: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(`PRAGMA journal_mode=WAL;`); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry.OpenStore: enable WAL: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("registry.OpenStore: apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error { return s.db.Close() }

// UpsertConfig writes cfg, inserting or replacing the existing row for its
// bot_id.
func (s *Store) UpsertConfig(ctx context.Context, cfg types.BotConfig) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("registry.UpsertConfig: marshal: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bot_configs (bot_id, config_json, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(bot_id) DO UPDATE SET
			config_json = excluded.config_json,
			updated_at  = excluded.updated_at
	`, cfg.BotID, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("registry.UpsertConfig: exec: %w", err)
	}
	return nil
}

// RemoveConfig deletes a bot's config and runtime-state rows.
func (s *Store) RemoveConfig(ctx context.Context, botID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bot_runtime_state WHERE bot_id = ?`, botID); err != nil {
		return fmt.Errorf("registry.RemoveConfig: delete runtime state: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM bot_configs WHERE bot_id = ?`, botID); err != nil {
		return fmt.Errorf("registry.RemoveConfig: delete config: %w", err)
	}
	return nil
}

// LoadAllConfigs returns every persisted bot config, for restoring a fleet
// after a process restart.
func (s *Store) LoadAllConfigs(ctx context.Context) ([]types.BotConfig, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT config_json FROM bot_configs`)
	if err != nil {
		return nil, fmt.Errorf("registry.LoadAllConfigs: query: %w", err)
	}
	defer rows.Close()

	var out []types.BotConfig
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("registry.LoadAllConfigs: scan: %w", err)
		}
		var cfg types.BotConfig
		if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
			return nil, fmt.Errorf("registry.LoadAllConfigs: unmarshal %s: %w", raw, err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

// SaveRuntimeState upserts a bot's last-observed status, for display
// continuity across restarts even though the engine itself does not persist
// mid-run state (SPEC_FULL Non-goals).
func (s *Store) SaveRuntimeState(ctx context.Context, status types.EnhancedBotStatus) error {
	payload, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("registry.SaveRuntimeState: marshal: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO bot_runtime_state (bot_id, state, status_json, updated_at) VALUES (?, ?, ?, ?)
		ON CONFLICT(bot_id) DO UPDATE SET
			state       = excluded.state,
			status_json = excluded.status_json,
			updated_at  = excluded.updated_at
	`, status.BotID, string(status.State), string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("registry.SaveRuntimeState: exec: %w", err)
	}
	return nil
}
