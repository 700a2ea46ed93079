package journal

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/echolot-labs/echolot/internal/config"
	"github.com/echolot-labs/echolot/internal/pipeline"
)

// Entry is one journaled request. The journal records outcomes and
// timings only; audio bytes and transcript text are never written.
type Entry struct {
	ID           int64     `json:"id"`
	Outcome      string    `json:"outcome"`
	Extension    string    `json:"extension"`
	SizeBytes    int64     `json:"size_bytes"`
	ConversionMS int64     `json:"conversion_ms"`
	ASRMS        int64     `json:"asr_ms"`
	KeywordMS    int64     `json:"keyword_ms"`
	TotalMS      int64     `json:"total_ms"`
	KeywordCount int       `json:"keyword_count"`
	CreatedAt    time.Time `json:"created_at"`
}

// Summary aggregates the journal for the stats endpoint.
type Summary struct {
	Total     int64            `json:"total"`
	ByOutcome map[string]int64 `json:"by_outcome"`
}

// Journal is a SQLite-backed request log with retention pruning. A
// disabled journal is a valid no-op instance.
type Journal struct {
	db    *sql.DB
	cfg   config.JournalConfig
	log   *slog.Logger
	clock func() time.Time
}

// Open initializes the journal according to config.
func Open(ctx context.Context, cfg config.JournalConfig, log *slog.Logger) (*Journal, error) {
	log = log.With(slog.String("component", "journal"))
	if !cfg.Enabled {
		return &Journal{cfg: cfg, log: log, clock: time.Now}, nil
	}

	dir := filepath.Dir(cfg.Path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)", cfg.Path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	j := &Journal{db: db, cfg: cfg, log: log, clock: time.Now}

	if err := j.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}

	if cfg.VacuumOnStart {
		if _, err := db.ExecContext(ctx, "VACUUM"); err != nil {
			log.Warn("journal vacuum failed", slog.String("error", err.Error()))
		}
	}

	if err := j.Prune(ctx); err != nil {
		log.Warn("journal prune on start failed", slog.String("error", err.Error()))
	}

	return j, nil
}

func (j *Journal) initSchema(ctx context.Context) error {
	ddl := `
CREATE TABLE IF NOT EXISTS requests (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    outcome TEXT NOT NULL,
    extension TEXT,
    size_bytes INTEGER,
    conversion_ms INTEGER,
    asr_ms INTEGER,
    keyword_ms INTEGER,
    total_ms INTEGER,
    keyword_count INTEGER,
    created_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_requests_created ON requests(created_at);
`
	_, err := j.db.ExecContext(ctx, ddl)
	return err
}

// Close releases underlying resources.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record implements pipeline.Recorder.
func (j *Journal) Record(ctx context.Context, rec pipeline.RequestRecord) error {
	if j.db == nil {
		return nil
	}
	_, err := j.db.ExecContext(ctx,
		`INSERT INTO requests(outcome, extension, size_bytes, conversion_ms, asr_ms, keyword_ms, total_ms, keyword_count, created_at)
		 VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Outcome, rec.Extension, rec.SizeBytes,
		rec.Timings.Conversion.Milliseconds(), rec.Timings.ASR.Milliseconds(),
		rec.Timings.Keyword.Milliseconds(), rec.Timings.Total.Milliseconds(),
		rec.KeywordCount, j.clock().UTC())
	return err
}

// Recent returns up to limit entries, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if j.db == nil {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx,
		`SELECT id, outcome, extension, size_bytes, conversion_ms, asr_ms, keyword_ms, total_ms, keyword_count, created_at
		 FROM requests ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var created string
		if err := rows.Scan(&e.ID, &e.Outcome, &e.Extension, &e.SizeBytes,
			&e.ConversionMS, &e.ASRMS, &e.KeywordMS, &e.TotalMS, &e.KeywordCount, &created); err != nil {
			return nil, err
		}
		if ts, err := time.Parse(time.RFC3339Nano, created); err == nil {
			e.CreatedAt = ts
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Summarize aggregates counts per outcome.
func (j *Journal) Summarize(ctx context.Context) (Summary, error) {
	sum := Summary{ByOutcome: make(map[string]int64)}
	if j.db == nil {
		return sum, nil
	}
	rows, err := j.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM requests GROUP BY outcome`)
	if err != nil {
		return sum, err
	}
	defer rows.Close()

	for rows.Next() {
		var outcome string
		var count int64
		if err := rows.Scan(&outcome, &count); err != nil {
			return sum, err
		}
		sum.ByOutcome[outcome] = count
		sum.Total += count
	}
	return sum, rows.Err()
}

// Prune applies the configured retention.
func (j *Journal) Prune(ctx context.Context) error {
	if j.db == nil {
		return nil
	}
	if j.cfg.RetentionDays > 0 {
		cutoff := j.clock().Add(-time.Duration(j.cfg.RetentionDays) * 24 * time.Hour)
		if _, err := j.db.ExecContext(ctx, `DELETE FROM requests WHERE created_at < ?`, cutoff.UTC()); err != nil {
			return err
		}
	}
	if j.cfg.MaxRequests > 0 {
		_, err := j.db.ExecContext(ctx, `DELETE FROM requests WHERE id IN (
			SELECT id FROM requests ORDER BY created_at DESC, id DESC LIMIT -1 OFFSET ?
		)`, j.cfg.MaxRequests)
		if err != nil {
			return err
		}
	}
	return nil
}
