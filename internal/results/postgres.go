package results

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/driftlab/revdrift/internal/analysis"
	"github.com/driftlab/revdrift/pkg/shingle"
)

// PostgresRepository stores samples in Postgres for setups where several
// machines share one grid run.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to connStr, verifies the connection, and applies
// the schema.
func OpenPostgres(connStr string) (*PostgresRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("create postgres pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	schema := `
		CREATE TABLE IF NOT EXISTS similarity_samples (
		    doc TEXT NOT NULL,
		    w INTEGER NOT NULL,
		    lambda TEXT NOT NULL,
		    version INTEGER NOT NULL,
		    jaccard DOUBLE PRECISION NOT NULL,
		    PRIMARY KEY (doc, w, lambda, version)
		)`
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &PostgresRepository{pool: pool}, nil
}

func (r *PostgresRepository) SaveSamples(ctx context.Context, samples []analysis.Sample) error {
	// ON CONFLICT DO NOTHING: first write wins, recomputed samples are
	// byte-identical anyway.
	batch := &pgx.Batch{}
	for _, s := range samples {
		batch.Queue(
			`INSERT INTO similarity_samples (doc, w, lambda, version, jaccard)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (doc, w, lambda, version) DO NOTHING`,
			s.Doc, s.W, s.Budget.Label(), s.Version, s.Jaccard,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range samples {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("insert sample batch: %w", err)
		}
	}
	return nil
}

func (r *PostgresRepository) LoadSamples(ctx context.Context, w int, budget shingle.Budget) ([]analysis.Sample, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT doc, version, jaccard FROM similarity_samples
		 WHERE w = $1 AND lambda = $2 ORDER BY doc, version`,
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
	if err := rows.Err(); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("iterate samples: %w", err)
	}
	return samples, nil
}

func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}
