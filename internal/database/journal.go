package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/segmentio/ksuid"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/sitemirror/internal/model"
)

// FileName is the journal database file inside its directory.
const FileName = "sitemirror.db"

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// JournalDB stores runs and download outcomes in SQLite.
type JournalDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures JournalDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the journal in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*JournalDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	jdb := &JournalDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := jdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return jdb, nil
}

// Path returns the database file path.
func (jdb *JournalDB) Path() string {
	return jdb.dbPath
}

// Close closes the database connection.
func (jdb *JournalDB) Close() error {
	return jdb.db.Close()
}

func (jdb *JournalDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed_url TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		pages_processed INTEGER DEFAULT 0,
		total_enqueued INTEGER DEFAULT 0,
		files_downloaded INTEGER DEFAULT 0,
		files_skipped INTEGER DEFAULT 0,
		files_failed INTEGER DEFAULT 0,
		bytes_downloaded INTEGER DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS downloads (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL REFERENCES runs(id),
		url TEXT NOT NULL,
		path TEXT NOT NULL,
		bytes INTEGER DEFAULT 0,
		status TEXT NOT NULL,
		error TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_downloads_run ON downloads(run_id);
	CREATE INDEX IF NOT EXISTS idx_downloads_url ON downloads(url);
	`

	_, err := jdb.db.ExecContext(context.Background(), schema)
	return err
}

// NewRunID returns a new time-sortable run identifier.
func NewRunID() string {
	return ksuid.New().String()
}

// StartRun inserts a run row. stats must carry RunID, SeedURL and StartedAt.
func (jdb *JournalDB) StartRun(ctx context.Context, stats model.RunStats) error {
	query := `INSERT INTO runs (id, seed_url, started_at) VALUES (?, ?, ?)`
	if _, err := jdb.db.ExecContext(ctx, query, stats.RunID, stats.SeedURL, formatTimestamp(stats.StartedAt)); err != nil {
		return fmt.Errorf("failed to start run %s: %w", stats.RunID, err)
	}
	return nil
}

// FinishRun stores the final counters of a run.
func (jdb *JournalDB) FinishRun(ctx context.Context, stats model.RunStats) error {
	query := `
	UPDATE runs SET
		finished_at = ?,
		pages_processed = ?,
		total_enqueued = ?,
		files_downloaded = ?,
		files_skipped = ?,
		files_failed = ?,
		bytes_downloaded = ?
	WHERE id = ?`

	res, err := jdb.db.ExecContext(ctx, query,
		formatTimestamp(stats.FinishedAt),
		stats.PagesProcessed,
		stats.TotalEnqueued,
		stats.FilesDownloaded,
		stats.FilesSkipped,
		stats.FilesFailed,
		stats.BytesDownloaded,
		stats.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", stats.RunID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, stats.RunID)
	}
	return nil
}

// RecordDownload appends one download outcome.
func (jdb *JournalDB) RecordDownload(ctx context.Context, rec model.DownloadRecord) error {
	query := `
	INSERT INTO downloads (run_id, url, path, bytes, status, error, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := jdb.db.ExecContext(ctx, query,
		rec.RunID, rec.URL, rec.Path, rec.Bytes, string(rec.Status), rec.Error, formatTimestamp(createdAt))
	if err != nil {
		return fmt.Errorf("failed to record download of %s: %w", rec.URL, err)
	}
	return nil
}

const runColumns = `id, seed_url, started_at, finished_at, pages_processed, total_enqueued,
	files_downloaded, files_skipped, files_failed, bytes_downloaded`

// ListRuns returns the most recent runs first. A non-positive limit returns
// every run.
func (jdb *JournalDB) ListRuns(ctx context.Context, limit int) ([]model.RunStats, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := jdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []model.RunStats
	for rows.Next() {
		stats, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, stats)
	}
	return runs, rows.Err()
}

// GetRun returns one run by ID.
func (jdb *JournalDB) GetRun(ctx context.Context, runID string) (*model.RunStats, error) {
	row := jdb.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)
	stats, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Downloads returns the download outcomes of a run in insertion order.
func (jdb *JournalDB) Downloads(ctx context.Context, runID string) ([]model.DownloadRecord, error) {
	query := `
	SELECT run_id, url, path, bytes, status, COALESCE(error, ''), created_at
	FROM downloads
	WHERE run_id = ?
	ORDER BY id ASC`

	rows, err := jdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query downloads: %w", err)
	}
	defer rows.Close()

	var records []model.DownloadRecord
	for rows.Next() {
		var (
			rec       model.DownloadRecord
			status    string
			createdAt string
		)
		if err := rows.Scan(&rec.RunID, &rec.URL, &rec.Path, &rec.Bytes, &status, &rec.Error, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan download: %w", err)
		}
		rec.Status = model.DownloadStatus(status)
		rec.CreatedAt = parseTimestamp(createdAt)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (model.RunStats, error) {
	var (
		stats      model.RunStats
		startedAt  string
		finishedAt sql.NullString
	)
	err := row.Scan(
		&stats.RunID,
		&stats.SeedURL,
		&startedAt,
		&finishedAt,
		&stats.PagesProcessed,
		&stats.TotalEnqueued,
		&stats.FilesDownloaded,
		&stats.FilesSkipped,
		&stats.FilesFailed,
		&stats.BytesDownloaded,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return stats, err
		}
		return stats, fmt.Errorf("failed to scan run: %w", err)
	}
	stats.StartedAt = parseTimestamp(startedAt)
	if finishedAt.Valid {
		stats.FinishedAt = parseTimestamp(finishedAt.String)
	}
	return stats, nil
}

// timestampFormats lists the formats parseTimestamp accepts.
var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05.999",
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp returns the zero time when no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
