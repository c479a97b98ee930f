// Package sqlite persists player profiles, dialogue history and story flags.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"SourceAcademyGame/internal/game"
	"SourceAcademyGame/internal/storage/sqlite/migrations"
)

// ErrPlayerNotFound is returned when no profile exists for a player id.
var ErrPlayerNotFound = errors.New("sqlite: player not found")

const migrationTable = "schema_migrations"

// Store persists game state in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies embedded migrations. ":memory:"
// opens a private in-memory database.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := ":memory:"
	if path != ":memory:" {
		dsn = filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	}
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise get its own empty database.
		sqlDB.SetMaxOpenConns(1)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// UpsertPlayer creates or renames a player profile.
func (s *Store) UpsertPlayer(ctx context.Context, id, displayName string) error {
	id = strings.TrimSpace(id)
	displayName = strings.TrimSpace(displayName)
	if id == "" {
		return fmt.Errorf("player id is required")
	}
	if displayName == "" {
		return fmt.Errorf("display name is required")
	}
	now := toMillis(time.Now())
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO players (id, display_name, created_at, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET display_name = excluded.display_name, updated_at = excluded.updated_at`,
		id, displayName, now, now)
	if err != nil {
		return fmt.Errorf("upsert player %s: %w", id, err)
	}
	return nil
}

// DisplayName returns the stored name for a player.
func (s *Store) DisplayName(ctx context.Context, id string) (string, error) {
	var name string
	err := s.sqlDB.QueryRowContext(ctx, `SELECT display_name FROM players WHERE id = ?`, id).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: %s", ErrPlayerNotFound, id)
	}
	if err != nil {
		return "", fmt.Errorf("get player %s: %w", id, err)
	}
	return name, nil
}

// RecordPlayback stores a finished dialogue session.
func (s *Store) RecordPlayback(ctx context.Context, rec game.PlaybackRecord) error {
	if rec.SessionID == "" {
		return fmt.Errorf("session id is required")
	}
	finished := rec.FinishedAt
	if finished.IsZero() {
		finished = time.Now()
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO dialogue_history (session_id, player_id, dialogue_id, lines, outcome, finished_at)
VALUES (?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.PlayerID, rec.DialogueID, rec.Lines, rec.Outcome, toMillis(finished))
	if err != nil {
		return fmt.Errorf("record playback %s: %w", rec.SessionID, err)
	}
	return nil
}

// ListPlayback returns a player's sessions, newest first.
func (s *Store) ListPlayback(ctx context.Context, playerID string, limit int) ([]game.PlaybackRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT session_id, player_id, dialogue_id, lines, outcome, finished_at
FROM dialogue_history WHERE player_id = ?
ORDER BY finished_at DESC, session_id DESC LIMIT ?`, playerID, limit)
	if err != nil {
		return nil, fmt.Errorf("list playback: %w", err)
	}
	defer rows.Close()

	var out []game.PlaybackRecord
	for rows.Next() {
		var rec game.PlaybackRecord
		var finished int64
		if err := rows.Scan(&rec.SessionID, &rec.PlayerID, &rec.DialogueID, &rec.Lines, &rec.Outcome, &finished); err != nil {
			return nil, fmt.Errorf("scan playback: %w", err)
		}
		rec.FinishedAt = fromMillis(finished)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SetFlag records a story flag; setting it again is a no-op.
func (s *Store) SetFlag(ctx context.Context, playerID, flag string) error {
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT OR IGNORE INTO story_flags (player_id, flag, set_at) VALUES (?, ?, ?)`,
		playerID, flag, toMillis(time.Now()))
	if err != nil {
		return fmt.Errorf("set flag %s: %w", flag, err)
	}
	return nil
}

// Flags returns a player's flags in sorted order.
func (s *Store) Flags(ctx context.Context, playerID string) ([]string, error) {
	rows, err := s.sqlDB.QueryContext(ctx, `SELECT flag FROM story_flags WHERE player_id = ? ORDER BY flag`, playerID)
	if err != nil {
		return nil, fmt.Errorf("list flags: %w", err)
	}
	defer rows.Close()
	var flags []string
	for rows.Next() {
		var flag string
		if err := rows.Scan(&flag); err != nil {
			return nil, fmt.Errorf("scan flag: %w", err)
		}
		flags = append(flags, flag)
	}
	return flags, rows.Err()
}

// applyMigrations executes embedded migrations at most once per file.
func applyMigrations(sqlDB *sql.DB, migrationFS fs.FS) error {
	entries, err := fs.ReadDir(migrationFS, ".")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var sqlFiles []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			sqlFiles = append(sqlFiles, entry.Name())
		}
	}
	sort.Strings(sqlFiles)

	if _, err := sqlDB.Exec(fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
    name TEXT PRIMARY KEY,
    applied_at INTEGER NOT NULL
);`, migrationTable)); err != nil {
		return fmt.Errorf("ensure migration table: %w", err)
	}

	for _, file := range sqlFiles {
		var found int
		err := sqlDB.QueryRow("SELECT 1 FROM "+migrationTable+" WHERE name = ?", file).Scan(&found)
		if err == nil {
			continue
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("check migration %s: %w", file, err)
		}

		content, err := fs.ReadFile(migrationFS, file)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", file, err)
		}
		upSQL := extractUpMigration(string(content))
		if strings.TrimSpace(upSQL) == "" {
			continue
		}

		tx, err := sqlDB.Begin()
		if err != nil {
			return fmt.Errorf("begin migration transaction %s: %w", file, err)
		}
		if _, err := tx.Exec(upSQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("exec migration %s: %w", file, err)
		}
		if _, err := tx.Exec(
			"INSERT OR IGNORE INTO "+migrationTable+" (name, applied_at) VALUES (?, ?)",
			file, toMillis(time.Now()),
		); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", file, err)
		}
	}
	return nil
}

// extractUpMigration returns the SQL in the -- +migrate Up section.
func extractUpMigration(content string) string {
	upIdx := strings.Index(content, "-- +migrate Up")
	if upIdx == -1 {
		return content
	}
	downIdx := strings.Index(content, "-- +migrate Down")
	if downIdx == -1 {
		return content[upIdx+len("-- +migrate Up"):]
	}
	return content[upIdx+len("-- +migrate Up") : downIdx]
}
