package results

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/driftlab/revdrift/internal/analysis"
	"github.com/driftlab/revdrift/pkg/shingle"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS similarity_samples (
    doc TEXT NOT NULL,
    w INTEGER NOT NULL,
    lambda TEXT NOT NULL,
    version INTEGER NOT NULL,
    jaccard REAL NOT NULL,
    PRIMARY KEY (doc, w, lambda, version)
);
`

// SQLiteRepository stores samples in a local SQLite file, the default
// backend for single-machine runs.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLite opens (or creates) the database at path and applies the
// schema.
func OpenSQLite(path string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create results dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) SaveSamples(ctx context.Context, samples []analysis.Sample) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR IGNORE INTO similarity_samples(doc, w, lambda, version, jaccard) VALUES(?,?,?,?,?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range samples {
		if _, err := stmt.ExecContext(ctx, s.Doc, s.W, s.Budget.Label(), s.Version, s.Jaccard); err != nil {
			return fmt.Errorf("insert sample %s w=%d λ=%s C-%d: %w", s.Doc, s.W, s.Budget.Label(), s.Version, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func (r *SQLiteRepository) LoadSamples(ctx context.Context, w int, budget shingle.Budget) ([]analysis.Sample, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT doc, version, jaccard FROM similarity_samples WHERE w = ? AND lambda = ? ORDER BY doc, version`,
		w, budget.Label())
	if err != nil {
		return nil, fmt.Errorf("query samples: %w", err)
	}
	defer rows.Close()

	var samples []analysis.Sample
	for rows.Next() {
		s := analysis.Sample{W: w, Budget: budget}
		if err := rows.Scan(&s.Doc, &s.Version, &s.Jaccard); err != nil {
			return nil, fmt.Errorf("scan sample: %w", err)
		}
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}

func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}
