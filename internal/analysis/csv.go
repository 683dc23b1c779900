package analysis

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
)

// WriteSummaryCSV writes one MAE row per finite grid cell, in grid order:
// columns w, lambda, mae_vs_infty. Undefined aggregates render as NaN so
// the reporting layer can show "insufficient data" instead of dropping the
// row.
func WriteSummaryCSV(path string, report *Report, grid Grid) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create summary csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"w", "lambda", "mae_vs_infty"}); err != nil {
		return err
	}
	for _, win := range grid.Windows {
		for _, b := range grid.FiniteBudgets() {
			stat := report.Stats[ConfigKey{W: win, Lambda: b.Label()}]
			mae := "NaN"
			if !math.IsNaN(stat.MAE) {
				mae = strconv.FormatFloat(stat.MAE, 'f', 6, 64)
			}
			if err := w.Write([]string{strconv.Itoa(win), b.Label(), mae}); err != nil {
				return err
			}
		}
	}
	w.Flush()
	return w.Error()
}

// WriteDetailedCSV merges every similarity sample into one CSV: columns
// doc, w, lambda, version, jaccard. Rows are sorted for reproducible diffs.
func WriteDetailedCSV(path string, samples []Sample) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create results dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create detailed csv: %w", err)
	}
	defer f.Close()

	sorted := make([]Sample, len(samples))
	copy(sorted, samples)
	sort.Slice(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Doc != b.Doc {
			return a.Doc < b.Doc
		}
		if a.W != b.W {
			return a.W < b.W
		}
		if a.Budget.Label() != b.Budget.Label() {
			if a.Budget.IsUnbounded != b.Budget.IsUnbounded {
				return b.Budget.IsUnbounded
			}
			return a.Budget.K < b.Budget.K
		}
		return a.Version < b.Version
	})

	w := csv.NewWriter(f)
	if err := w.Write([]string{"doc", "w", "lambda", "version", "jaccard"}); err != nil {
		return err
	}
	for _, s := range sorted {
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
