package journal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/notesync/notesync/internal/models"

	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteJournal implements Journal using modernc.org/sqlite (pure Go, no CGO).
type SQLiteJournal struct {
	db *sql.DB
}

// NewSQLiteJournal opens (or creates) the journal database at the given path.
func NewSQLiteJournal(dbPath string) (*SQLiteJournal, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}

	// SQLite only supports one concurrent writer. Limiting to a single
	// connection serializes all access through Go's connection pool.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}

	return &SQLiteJournal{db: db}, nil
}

// newULID generates a new ULID string.
func newULID() string {
	entropy := rand.New(rand.NewSource(time.Now().UnixNano()))
	return ulid.MustNew(ulid.Timestamp(time.Now()), ulid.Monotonic(entropy, 0)).String()
}

// Migrate runs all embedded SQL migration files in order.
func (j *SQLiteJournal) Migrate(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename TEXT PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}

	sort.Slice(entries, func(i, k int) bool {
		return entries[i].Name() < entries[k].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var count int
		err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", name).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %s: %w", name, err)
		}
		if count > 0 {
			continue
		}

		data, err := migrationsFS.ReadFile("migrations/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := j.db.ExecContext(ctx, string(data)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
		if _, err := j.db.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", name); err != nil {
			return fmt.Errorf("record migration %s: %w", name, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (j *SQLiteJournal) Close() error {
	return j.db.Close()
}

// --- Commits ---

func (j *SQLiteJournal) RecordCommit(ctx context.Context, rec *models.CommitRecord) error {
	if rec.ID == "" {
		rec.ID = newULID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO commits (id, path, commit_hash, message, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, rec.Path, rec.CommitHash, rec.Message, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record commit: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) ListCommits(ctx context.Context, limit int) ([]*models.CommitRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, path, commit_hash, message, created_at FROM commits ORDER BY created_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}
	defer rows.Close()

	var recs []*models.CommitRecord
	for rows.Next() {
		rec := &models.CommitRecord{}
		if err := rows.Scan(&rec.ID, &rec.Path, &rec.CommitHash, &rec.Message, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan commit: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// --- Sync jobs ---

func (j *SQLiteJournal) RecordSyncJob(ctx context.Context, job *models.SyncJob) error {
	if job.ID == "" {
		job.ID = newULID()
	}

	_, err := j.db.ExecContext(ctx,
		`INSERT INTO sync_jobs (id, kind, exit_code, started_at, finished_at) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET exit_code = excluded.exit_code, finished_at = excluded.finished_at`,
		job.ID, string(job.Kind), job.ExitCode, job.StartedAt, job.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("record sync job: %w", err)
	}
	return nil
}

func (j *SQLiteJournal) ListSyncJobs(ctx context.Context, limit int) ([]*models.SyncJob, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, kind, exit_code, started_at, finished_at FROM sync_jobs ORDER BY started_at DESC, id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sync jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.SyncJob
	for rows.Next() {
		job := &models.SyncJob{}
		var kind string
		if err := rows.Scan(&job.ID, &kind, &job.ExitCode, &job.StartedAt, &job.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan sync job: %w", err)
		}
		job.Kind = models.JobKind(kind)
		jobs = append(jobs, job)
	}
	return jobs, rows.Err()
}
