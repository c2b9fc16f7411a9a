// Package store persists published reports, settings and the admin secret.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"           // Postgres driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"tripreport/internal/core"
)

const (
	settingsKey   = "current_settings"
	authSecretKey = "auth_secret"
)

var (
	// ErrNotFound is returned when a report id does not exist.
	ErrNotFound = errors.New("report not found")
	// ErrExists is returned by Create when the report id is taken.
	ErrExists = errors.New("report already exists")
)

// Repository is the persistence boundary used by the CLI and the server.
type Repository interface {
	Save(ctx context.Context, r core.PublishedReport) error
	Create(ctx context.Context, r core.PublishedReport) error
	Delete(ctx context.Context, id string) error
	LoadAll(ctx context.Context) ([]core.PublishedReport, error)
	Get(ctx context.Context, id string) (*core.PublishedReport, error)
	SaveSettings(ctx context.Context, s core.ContextSettings) error
	LoadSettings(ctx context.Context) (*core.ContextSettings, error)
	SaveAuthSecret(ctx context.Context, secret string) error
	LoadAuthSecret(ctx context.Context) (string, bool, error)
	Ping(ctx context.Context) error
	Close() error
}

// Store keeps reports as JSON documents in SQLite or Postgres.
type Store struct {
	db     *sql.DB
	driver string
}

var _ Repository = (*Store)(nil)

// Open connects to driver ("sqlite3" or "postgres") and creates the tables.
// For SQLite, dsn is a file path whose directory is created if needed.
func Open(ctx context.Context, driver, dsn string) (*Store, error) {
	switch driver {
	case "sqlite3":
		if dir := filepath.Dir(dsn); dsn != ":memory:" && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create data directory: %w", err)
			}
		}
	case "postgres":
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if driver == "postgres" {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	} else {
		// SQLite allows one writer at a time.
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &Store{db: db, driver: driver}
	if err := s.initialize(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return s, nil
}

// initialize creates the necessary tables
func (s *Store) initialize(ctx context.Context) error {
	reportsTable := `
	CREATE TABLE IF NOT EXISTS reports (
		id TEXT PRIMARY KEY,
		publish_date BIGINT NOT NULL,
		doc TEXT NOT NULL
	);`

	kvTable := `
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);`

	for _, table := range []string{reportsTable, kvTable} {
		if _, err := s.db.ExecContext(ctx, table); err != nil {
			return fmt.Errorf("failed to create table: %w", err)
		}
	}
	return nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind rewrites ? placeholders as $1, $2... for Postgres.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Save stores a published report, replacing one with the same id.
func (s *Store) Save(ctx context.Context, r core.PublishedReport) error {
	if r.ID == "" {
		return errors.New("report id is required")
	}
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	query := s.rebind(`
	INSERT INTO reports (id, publish_date, doc) VALUES (?, ?, ?)
	ON CONFLICT (id) DO UPDATE SET publish_date = excluded.publish_date, doc = excluded.doc`)
	if _, err := s.db.ExecContext(ctx, query, r.ID, r.PublishDate, string(doc)); err != nil {
		return fmt.Errorf("failed to save report %s: %w", r.ID, err)
	}
	return nil
}

// Create inserts a new report and returns ErrExists when the id is taken,
// leaving the stored report as it was.
func (s *Store) Create(ctx context.Context, r core.PublishedReport) error {
	if r.ID == "" {
		return errors.New("report id is required")
	}
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	query := s.rebind(`
	INSERT INTO reports (id, publish_date, doc) VALUES (?, ?, ?)
	ON CONFLICT (id) DO NOTHING`)
	res, err := s.db.ExecContext(ctx, query, r.ID, r.PublishDate, string(doc))
	if err != nil {
		return fmt.Errorf("failed to create report %s: %w", r.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to create report %s: %w", r.ID, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrExists, r.ID)
	}
	return nil
}

// Delete removes a report. Deleting an unknown id returns ErrNotFound.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM reports WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("failed to delete report %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// LoadAll returns every report, newest publish date first.
func (s *Store) LoadAll(ctx context.Context) ([]core.PublishedReport, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT doc FROM reports ORDER BY publish_date DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	var reports []core.PublishedReport
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		var r core.PublishedReport
		if err := json.Unmarshal([]byte(doc), &r); err != nil {
			return nil, fmt.Errorf("failed to decode report: %w", err)
		}
		reports = append(reports, r)
	}
	return reports, rows.Err()
}

// Get returns one report or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (*core.PublishedReport, error) {
	var doc string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT doc FROM reports WHERE id = ?`), id).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load report %s: %w", id, err)
	}
	var r core.PublishedReport
	if err := json.Unmarshal([]byte(doc), &r); err != nil {
		return nil, fmt.Errorf("failed to decode report %s: %w", id, err)
	}
	return &r, nil
}

func (s *Store) put(ctx context.Context, key, value string) error {
	query := s.rebind(`
	INSERT INTO kv (key, value) VALUES (?, ?)
	ON CONFLICT (key) DO UPDATE SET value = excluded.value`)
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (s *Store) get(ctx context.Context, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT value FROM kv WHERE key = ?`), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to load %s: %w", key, err)
	}
	return value, true, nil
}

// SaveSettings stores the context settings.
func (s *Store) SaveSettings(ctx context.Context, settings core.ContextSettings) error {
	b, err := json.Marshal(settings)
	if err != nil {
		return fmt.Errorf("failed to encode settings: %w", err)
	}
	return s.put(ctx, settingsKey, string(b))
}

// LoadSettings returns the stored settings, or nil when none were saved.
func (s *Store) LoadSettings(ctx context.Context) (*core.ContextSettings, error) {
	value, ok, err := s.get(ctx, settingsKey)
	if err != nil || !ok {
		return nil, err
	}
	var settings core.ContextSettings
	if err := json.Unmarshal([]byte(value), &settings); err != nil {
		return nil, fmt.Errorf("failed to decode settings: %w", err)
	}
	return &settings, nil
}

// SaveAuthSecret stores the admin one-time-password secret.
func (s *Store) SaveAuthSecret(ctx context.Context, secret string) error {
	return s.put(ctx, authSecretKey, secret)
}

// LoadAuthSecret returns the stored secret and whether one exists.
func (s *Store) LoadAuthSecret(ctx context.Context) (string, bool, error) {
	return s.get(ctx, authSecretKey)
}
