package storage

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jwebster45206/rule-horror/pkg/storage"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SQLiteStorage keeps save slots in a single SQLite file.
type SQLiteStorage struct {
	sqlDB  *sql.DB
	logger *slog.Logger
}

// Ensure SQLiteStorage implements Storage interface
var _ storage.Storage = (*SQLiteStorage)(nil)

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// OpenSQLite opens (creating if needed) the slot database at path.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLiteStorage, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	cleanPath := filepath.Clean(path)
	if dir := filepath.Dir(cleanPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}

	dsn := cleanPath + "?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=5000&_synchronous=NORMAL"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.ExecContext(ctx, schemaSQL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	logger.Info("SQLite slot store opened", "path", cleanPath)
	return &SQLiteStorage{sqlDB: sqlDB, logger: logger}, nil
}

func (s *SQLiteStorage) Ping(ctx context.Context) error {
	if err := s.sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("sqlite ping failed: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *SQLiteStorage) SaveSlot(ctx context.Context, slot *storage.SaveSlot) error {
	data, err := storage.EncodeSlot(slot)
	if err != nil {
		return err
	}
	info := slot.Info()

	_, err = s.sqlDB.ExecContext(
		ctx,
		`INSERT INTO save_slots (session_key, slot_name, saved_at, active, scene, payload)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (session_key, slot_name) DO UPDATE SET
		   saved_at = excluded.saved_at,
		   active = excluded.active,
		   scene = excluded.scene,
		   payload = excluded.payload`,
		slot.Key,
		slot.Name,
		toMillis(slot.SavedAt),
		info.Active,
		info.Scene,
		data,
	)
	if err != nil {
		s.logger.Error("Failed to save slot", "session_key", slot.Key, "slot", slot.Name, "error", err)
		return fmt.Errorf("failed to save slot: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) LoadSlot(ctx context.Context, key, name string) (*storage.SaveSlot, error) {
	var data []byte
	err := s.sqlDB.QueryRowContext(
		ctx,
		`SELECT payload FROM save_slots WHERE session_key = ? AND slot_name = ?`,
		key, name,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load slot: %w", err)
	}
	return storage.DecodeSlot(data)
}

func (s *SQLiteStorage) DeleteSlot(ctx context.Context, key, name string) error {
	_, err := s.sqlDB.ExecContext(ctx, `DELETE FROM save_slots WHERE session_key = ? AND slot_name = ?`, key, name)
	if err != nil {
		return fmt.Errorf("failed to delete slot: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) ListSlots(ctx context.Context, key string) ([]storage.SlotInfo, error) {
	rows, err := s.sqlDB.QueryContext(
		ctx,
		`SELECT slot_name, saved_at, active, scene FROM save_slots
		 WHERE session_key = ? ORDER BY slot_name`,
		key,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	defer rows.Close()

	var infos []storage.SlotInfo
	for rows.Next() {
		var (
			info    storage.SlotInfo
			savedAt int64
		)
		if err := rows.Scan(&info.Name, &savedAt, &info.Active, &info.Scene); err != nil {
			return nil, fmt.Errorf("failed to scan slot: %w", err)
		}
		info.SavedAt = fromMillis(savedAt)
		infos = append(infos, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list slots: %w", err)
	}
	return infos, nil
}

func (s *SQLiteStorage) DeleteAllSlots(ctx context.Context, key string) (int, error) {
	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM save_slots WHERE session_key = ?`, key)
	if err != nil {
		return 0, fmt.Errorf("failed to purge slots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to purge slots: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStorage) ListKeys(ctx context.Context) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT DISTINCT session_key FROM save_slots ORDER BY session_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to list session keys: %w", err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("failed to scan session key: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// PutRaw writes an undecoded payload directly, for corruption checks.
func (s *SQLiteStorage) PutRaw(ctx context.Context, key, name string, payload []byte) error {
	_, err := s.sqlDB.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO save_slots (session_key, slot_name, saved_at, active, scene, payload)
		 VALUES (?, ?, ?, 0, '', ?)`,
		key, name, toMillis(time.Now()), payload,
	)
	return err
}
