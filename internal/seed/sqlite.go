package seed

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists handoff records locally. It is the backend used
// when no remote key-value credentials are configured, and keeps the
// same contract: bounded TTL, at-most-once retrieval.
//
// Unlike the remote backend, Take here is atomic: the read and the
// delete happen in one transaction, so a token can never be consumed
// twice even by concurrent readers.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens (creating if needed) the handoff database at dbPath.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// WAL mode keeps Put and Take from blocking each other.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS handoff_records (
		key TEXT PRIMARY KEY,
		payload TEXT NOT NULL,
		expires_at INTEGER NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_handoff_expires ON handoff_records(expires_at);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, rec Record, ttl time.Duration) (string, time.Duration, error) {
	if err := rec.validate(); err != nil {
		return "", 0, err
	}
	ttl = ClampTTL(ttl)

	payload, err := json.Marshal(rec)
	if err != nil {
		return "", 0, fmt.Errorf("encode record: %w", err)
	}

	token := newToken()
	now := time.Now()
	query := `INSERT INTO handoff_records (key, payload, expires_at, created_at) VALUES (?, ?, ?, ?)`
	_, err = s.db.ExecContext(ctx, query, keyPrefix+token, string(payload), now.Add(ttl).Unix(), now.Unix())
	if err != nil {
		return "", 0, fmt.Errorf("%w: insert record: %v", ErrBackendUnavailable, err)
	}
	return token, ttl, nil
}

// Take implements Store.
func (s *SQLiteStore) Take(ctx context.Context, token string) (Record, error) {
	key := keyPrefix + token

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Record{}, fmt.Errorf("%w: begin tx: %v", ErrBackendUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	var payload string
	var expiresAt int64
	row := tx.QueryRowContext(ctx, `SELECT payload, expires_at FROM handoff_records WHERE key = ?`, key)
	if err := row.Scan(&payload, &expiresAt); err != nil {
		if err == sql.ErrNoRows {
			return Record{}, ErrNotFound
		}
		return Record{}, fmt.Errorf("%w: scan record: %v", ErrBackendUnavailable, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM handoff_records WHERE key = ?`, key); err != nil {
		return Record{}, fmt.Errorf("%w: delete record: %v", ErrBackendUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return Record{}, fmt.Errorf("%w: commit: %v", ErrBackendUnavailable, err)
	}

	// Expired rows still on disk are invisible; the sweeper removes
	// them eventually.
	if time.Now().Unix() >= expiresAt {
		return Record{}, ErrNotFound
	}

	var rec Record
	if err := json.Unmarshal([]byte(payload), &rec); err != nil || rec.U == "" || rec.A == "" {
		return Record{}, ErrInvalidPayload
	}
	return rec, nil
}

// sweepExpired deletes records past their expiry. Returns rows removed.
func (s *SQLiteStore) sweepExpired(ctx context.Context) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM handoff_records WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("sweep expired records: %w", err)
	}
	return result.RowsAffected()
}

// StartSweeper launches a background loop that periodically removes
// expired records until ctx is cancelled.
func (s *SQLiteStore) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				n, err := s.sweepExpired(ctx)
				if err != nil {
					if isSQLiteBusy(err) {
						slog.Debug("seed sweeper: database busy, will retry next tick")
						continue
					}
					slog.Warn("seed sweeper failed", "error", err)
					continue
				}
				if n > 0 {
					slog.Debug("seed sweeper removed expired records", "count", n)
				}
			}
		}
	}()
}

// isSQLiteBusy reports whether err is a SQLite concurrency error that
// warrants a retry rather than a warning.
func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
