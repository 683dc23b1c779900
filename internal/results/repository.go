// Package results persists similarity samples. CSV files per (w, λ) are
// the interchange artifact downstream tooling reads; a SQL repository
// (SQLite by default, Postgres for shared setups) mirrors them for
// querying across the whole grid.
package results

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"github.com/driftlab/revdrift/internal/analysis"
	"github.com/driftlab/revdrift/pkg/shingle"
)

// Repository stores similarity samples keyed by (doc, w, lambda, version).
// Writes are first-write-wins: a recomputed sample for an existing key is
// ignored since samples are deterministic functions of the inputs.
type Repository interface {
	SaveSamples(ctx context.Context, samples []analysis.Sample) error
	LoadSamples(ctx context.Context, w int, budget shingle.Budget) ([]analysis.Sample, error)
	Close() error
}

// WriteCSV writes one (w, λ) slice of samples in the jaccard CSV layout:
// columns doc, w, lambda, version, jaccard.
func WriteCSV(path string, samples []analysis.Sample) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create jaccard dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create jaccard csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"doc", "w", "lambda", "version", "jaccard"}); err != nil {
		return err
	}
	for _, s := range samples {
		row := []string{
			s.Doc,
			strconv.Itoa(s.W),
			s.Budget.Label(),
			strconv.Itoa(s.Version),
			fmt.Sprintf("%.6f", s.Jaccard),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// ReadCSV parses a jaccard CSV written by WriteCSV. A missing file returns
// ok=false so callers can decide whether to regenerate.
func ReadCSV(path string) (samples []analysis.Sample, ok bool, err error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("open jaccard csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	rows, err := r.ReadAll()
	if err != nil {
		return nil, false, fmt.Errorf("read jaccard csv %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, true, nil
	}

	for i, row := range rows[1:] {
		if len(row) != 5 {
			return nil, false, fmt.Errorf("jaccard csv %s row %d: want 5 columns, got %d", path, i+2, len(row))
		}
		w, err := strconv.Atoi(row[1])
		if err != nil {
			return nil, false, fmt.Errorf("jaccard csv %s row %d: bad w %q", path, i+2, row[1])
		}
		budget, err := shingle.ParseBudget(row[2])
		if err != nil {
			return nil, false, fmt.Errorf("jaccard csv %s row %d: %w", path, i+2, err)
		}
		version, err := strconv.Atoi(row[3])
		if err != nil {
			return nil, false, fmt.Errorf("jaccard csv %s row %d: bad version %q", path, i+2, row[3])
		}
		j, err := strconv.ParseFloat(row[4], 64)
		if err != nil {
			return nil, false, fmt.Errorf("jaccard csv %s row %d: bad jaccard %q", path, i+2, row[4])
		}
		samples = append(samples, analysis.Sample{
			Doc:     row[0],
			W:       w,
			Budget:  budget,
			Version: version,
			Jaccard: j,
		})
	}
	return samples, true, nil
}
