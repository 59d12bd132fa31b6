package sys

import (
	"context"
	"database/sql"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/mattn/go-sqlite3"
)

// --- Phase 2: Database Connection & Lifecycle ---

// Database is the bot's sqlite store: key/value bot state and the track
// metadata cache.
type Database struct {
	db *sql.DB
}

func InitDatabase(ctx context.Context, dataSourceName string) (*Database, error) {
	// The driver registers itself via its init() function
	_ = sqlite3.SQLiteDriver{}

	db, err := sql.Open("sqlite3", dataSourceName)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(5)

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA cache_size=-2000;",
	}

	initCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, p := range pragmas {
		if _, err := db.ExecContext(initCtx, p); err != nil {
			_ = db.Close()
			return nil, errors.Wrapf(err, MsgDatabasePragmaError, p)
		}
	}

	tx, err := db.BeginTx(initCtx, nil)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	defer tx.Rollback()

	tableQueries := []string{
		`CREATE TABLE IF NOT EXISTS bot_config (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS track_metadata (
			url TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			duration_ms INTEGER DEFAULT 0,
			resolved_url TEXT,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, q := range tableQueries {
		if _, err := tx.ExecContext(initCtx, q); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, MsgDatabaseTableError)
		}
	}

	if err := tx.Commit(); err != nil {
		_ = db.Close()
		return nil, err
	}

	LogDatabase(MsgDatabaseInitSuccess)
	return &Database{db: db}, nil
}

func (d *Database) Close() error {
	if d == nil || d.db == nil {
		return nil
	}
	return d.db.Close()
}

// --- Phase 3: Infrastructure & Bot Persistence ---

// GetBotConfig returns "" for unknown keys.
func (d *Database) GetBotConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := d.db.QueryRowContext(ctx, "SELECT value FROM bot_config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (d *Database) SetBotConfig(ctx context.Context, key, value string) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO bot_config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, key, value)
	return err
}

const volumeKey = "volume_percent"

// LoadVolume returns the last saved volume, or fallback if none was saved.
func (d *Database) LoadVolume(ctx context.Context, fallback int) int {
	raw, err := d.GetBotConfig(ctx, volumeKey)
	if err != nil || raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return fallback
	}
	return v
}

func (d *Database) SaveVolume(ctx context.Context, percent int) error {
	return d.SetBotConfig(ctx, volumeKey, strconv.Itoa(percent))
}

// --- Phase 4: Track Metadata Cache ---

type TrackMetadata struct {
	URL         string
	Title       string
	Duration    time.Duration
	ResolvedURL string
}

// GetTrackMetadata reports false when url has not been cached.
func (d *Database) GetTrackMetadata(ctx context.Context, url string) (TrackMetadata, bool, error) {
	md := TrackMetadata{URL: url}
	var ms int64
	var resolved sql.NullString
	err := d.db.QueryRowContext(ctx,
		"SELECT title, duration_ms, resolved_url FROM track_metadata WHERE url = ?", url,
	).Scan(&md.Title, &ms, &resolved)
	if errors.Is(err, sql.ErrNoRows) {
		return TrackMetadata{}, false, nil
	}
	if err != nil {
		return TrackMetadata{}, false, err
	}
	md.Duration = time.Duration(ms) * time.Millisecond
	md.ResolvedURL = resolved.String
	return md, true, nil
}

func (d *Database) PutTrackMetadata(ctx context.Context, md TrackMetadata) error {
	_, err := d.db.ExecContext(ctx, `
		INSERT INTO track_metadata (url, title, duration_ms, resolved_url) VALUES (?, ?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			title = excluded.title,
			duration_ms = excluded.duration_ms,
			resolved_url = excluded.resolved_url,
			updated_at = CURRENT_TIMESTAMP
	`, md.URL, md.Title, md.Duration.Milliseconds(), md.ResolvedURL)
	return err
}
