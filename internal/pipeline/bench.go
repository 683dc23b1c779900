package pipeline

import (
	"context"
	"encoding/csv"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/driftlab/revdrift/internal/analysis"
	"github.com/driftlab/revdrift/pkg/shingle"
)

// BenchResult is the timing aggregate for one (w, λ) configuration.
type BenchResult struct {
	W      int
	Budget shingle.Budget
	Runs   []float64 // seconds, measured runs only
	Mean   float64
	Std    float64 // population stddev
	Min    float64
	Max    float64
}

// Bench times full-corpus shingle generation per (w, λ) cell: one warmup
// run plus measured runs, each recomputing fingerprints from scratch (the
// point is the cost of generation at that budget, so the truncate-from-inf
// shortcut is deliberately not used here).
func (g *Generator) Bench(ctx context.Context, measured int) ([]BenchResult, error) {
	if measured <= 0 {
		measured = 3
	}

	var results []BenchResult
	for _, w := range g.cfg.Grid.Windows {
		for _, b := range g.cfg.Grid.Budgets {
			log.Printf("[RUN] Timing w=%d, λ=%s", w, b.Label())

			runs := make([]float64, 0, measured)
			for run := 0; run <= measured; run++ {
				warmup := run == 0
				start := time.Now()
				if err := g.GenerateOne(ctx, w, b); err != nil {
					return nil, fmt.Errorf("timed generation w=%d λ=%s: %w", w, b.Label(), err)
				}
				elapsed := time.Since(start).Seconds()
				if !warmup {
					runs = append(runs, elapsed)
				}
			}

			r := BenchResult{W: w, Budget: b, Runs: runs}
			r.Min, r.Max = runs[0], runs[0]
			for _, v := range runs {
				r.Mean += v
				if v < r.Min {
					r.Min = v
				}
				if v > r.Max {
					r.Max = v
				}
			}
			r.Mean /= float64(len(runs))
			for _, v := range runs {
				r.Std += (v - r.Mean) * (v - r.Mean)
			}
			r.Std = math.Sqrt(r.Std / float64(len(runs)))

			log.Printf("[RESULT] w=%d, λ=%s -> mean=%.2fs (std=%.2f, min=%.2f, max=%.2f)",
				w, b.Label(), r.Mean, r.Std, r.Min, r.Max)
			results = append(results, r)
		}
	}
	return results, nil
}

// WriteBenchCSV writes timing rows: w, lambda, one column per measured
// run, then mean/std/min/max.
func WriteBenchCSV(path string, results []BenchResult) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create bench csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"w", "lambda"}
	runCols := 0
	if len(results) > 0 {
		runCols = len(results[0].Runs)
	}
	for i := 1; i <= runCols; i++ {
		header = append(header, fmt.Sprintf("run%d", i))
	}
	header = append(header, "mean", "std", "min", "max")
	if err := w.Write(header); err != nil {
		return err
	}

	for _, r := range results {
		row := []string{strconv.Itoa(r.W), r.Budget.Label()}
		for _, v := range r.Runs {
			row = append(row, fmt.Sprintf("%.4f", v))
		}
		row = append(row,
			fmt.Sprintf("%.4f", r.Mean),
			fmt.Sprintf("%.4f", r.Std),
			fmt.Sprintf("%.4f", r.Min),
			fmt.Sprintf("%.4f", r.Max),
		)
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

// TimingSeries converts bench results into the plotter's input.
func TimingSeries(results []BenchResult) []analysis.TimingSeries {
	out := make([]analysis.TimingSeries, len(results))
	for i, r := range results {
		out[i] = analysis.TimingSeries{W: r.W, Lambda: r.Budget.Label(), Mean: r.Mean, Std: r.Std}
	}
	return out
}
