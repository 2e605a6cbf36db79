package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/maastricht-university/claimlens/schema"
)

// Ledger records one row per finished run in a local SQLite file.
type Ledger struct {
	db *sql.DB
}

// RunRow is one ledger entry.
type RunRow struct {
	RunID          string
	InputPath      string
	GeneratedAt    time.Time
	ChunkCount     int
	StatementCount int
	FailedChunks   int
	OutputPath     string
}

func OpenLedger(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	const ddl = `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		input_path TEXT NOT NULL,
		generated_at DATETIME NOT NULL,
		chunk_count INTEGER NOT NULL,
		statement_count INTEGER NOT NULL,
		failed_chunks INTEGER NOT NULL,
		output_path TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_generated_at ON runs(generated_at);
	`
	if _, err := db.Exec(ddl); err != nil {
		db.Close()
		return nil, fmt.Errorf("create ledger table: %w", err)
	}
	return &Ledger{db: db}, nil
}

func (l *Ledger) Save(ctx context.Context, doc *schema.RunDocument, path string) error {
	_, err := l.db.ExecContext(ctx, `
	INSERT INTO runs (run_id, input_path, generated_at, chunk_count, statement_count, failed_chunks, output_path)
	VALUES (?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(run_id) DO UPDATE SET output_path = excluded.output_path
	`, doc.RunID, doc.InputFile, doc.GeneratedAt.UTC(), doc.Chunking.ChunkCount,
		len(doc.StatementAnalyses), doc.FailedChunks(), path)
	if err != nil {
		return fmt.Errorf("ledger insert %s: %w", doc.RunID, err)
	}
	return nil
}

// List returns the most recent runs first.
func (l *Ledger) List(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := l.db.QueryContext(ctx, `
	SELECT run_id, input_path, generated_at, chunk_count, statement_count, failed_chunks, output_path
	FROM runs ORDER BY generated_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.RunID, &r.InputPath, &r.GeneratedAt, &r.ChunkCount,
			&r.StatementCount, &r.FailedChunks, &r.OutputPath); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (l *Ledger) Close() error { return l.db.Close() }
