package analysis

import (
	"encoding/csv"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/driftlab/revdrift/pkg/shingle"
)

func testGrid(t *testing.T) Grid {
	t.Helper()
	grid, err := NewGrid(
		[]int{25, 50},
		[]shingle.Budget{shingle.Finite(8), shingle.Finite(16), shingle.Unbounded},
	)
	if err != nil {
		t.Fatalf("NewGrid failed: %v", err)
	}
	return grid
}

func TestNewGrid(t *testing.T) {
	t.Run("canonical order", func(t *testing.T) {
		grid, err := NewGrid([]int{50, 25}, []shingle.Budget{
			shingle.Finite(64), shingle.Unbounded, shingle.Finite(8),
		})
		if err != nil {
			t.Fatalf("NewGrid failed: %v", err)
		}
		if grid.Windows[0] != 25 || grid.Windows[1] != 50 {
			t.Errorf("windows not ascending: %v", grid.Windows)
		}
		labels := []string{}
		for _, b := range grid.Budgets {
			labels = append(labels, b.Label())
		}
		want := []string{"8", "64", "inf"}
		for i := range want {
			if labels[i] != want[i] {
				t.Errorf("budget order = %v, want %v", labels, want)
			}
		}
	})

	t.Run("baseline added when absent", func(t *testing.T) {
		grid, err := NewGrid([]int{25}, []shingle.Budget{shingle.Finite(8)})
		if err != nil {
			t.Fatalf("NewGrid failed: %v", err)
		}
		last := grid.Budgets[len(grid.Budgets)-1]
		if !last.IsUnbounded {
			t.Error("grid must end with the unbounded baseline")
		}
	})

	t.Run("rejects bad parameters", func(t *testing.T) {
		if _, err := NewGrid(nil, []shingle.Budget{shingle.Unbounded}); err == nil {
			t.Error("expected error for empty windows")
		}
		if _, err := NewGrid([]int{0}, []shingle.Budget{shingle.Unbounded}); err == nil {
			t.Error("expected error for zero window")
		}
		if _, err := NewGrid([]int{25}, []shingle.Budget{{K: -1}}); err == nil {
			t.Error("expected error for negative budget")
		}
	})
}

func TestAggregateMAE(t *testing.T) {
	grid := testGrid(t)

	// Spec scenario: at w=25 the budget-8 sample diverges from the
	// baseline by |0.230769 - 0.428571|.
	samples := []Sample{
		{Doc: "Miami_FL", W: 25, Budget: shingle.Unbounded, Version: 5, Jaccard: 60.0 / 140.0},
		{Doc: "Miami_FL", W: 25, Budget: shingle.Finite(8), Version: 5, Jaccard: 3.0 / 13.0},
		{Doc: "Miami_FL", W: 25, Budget: shingle.Finite(16), Version: 5, Jaccard: 0.40},

		// A second doc only has the baseline at λ=16, doubling the λ=8
		// pair count but not λ=16's.
		{Doc: "Detroit_MI", W: 25, Budget: shingle.Unbounded, Version: 3, Jaccard: 0.5},
		{Doc: "Detroit_MI", W: 25, Budget: shingle.Finite(8), Version: 3, Jaccard: 0.3},
	}

	report := AggregateMAE(samples, grid)

	stat8 := report.Stats[ConfigKey{W: 25, Lambda: "8"}]
	wantMAE8 := (math.Abs(3.0/13.0-60.0/140.0) + 0.2) / 2
	if math.Abs(stat8.MAE-wantMAE8) > 1e-9 {
		t.Errorf("MAE(25, 8) = %v, want %v", stat8.MAE, wantMAE8)
	}
	if stat8.Pairs != 2 {
		t.Errorf("Pairs(25, 8) = %d, want 2", stat8.Pairs)
	}

	stat16 := report.Stats[ConfigKey{W: 25, Lambda: "16"}]
	wantMAE16 := math.Abs(0.40 - 60.0/140.0)
	if math.Abs(stat16.MAE-wantMAE16) > 1e-9 {
		t.Errorf("MAE(25, 16) = %v, want %v", stat16.MAE, wantMAE16)
	}

	// λ=16 has the smaller MAE and must win w=25.
	if best, ok := report.BestBudget[25]; !ok || best.K != 16 {
		t.Errorf("BestBudget[25] = %v, want 16", best)
	}
	if !report.Stats[ConfigKey{W: 25, Lambda: "16"}].Best {
		t.Error("winning stat not flagged Best")
	}
	if report.Stats[ConfigKey{W: 25, Lambda: "8"}].Best {
		t.Error("losing stat flagged Best")
	}
}

func TestAggregateMAEUndefined(t *testing.T) {
	grid := testGrid(t)

	// w=50 has no samples at all: every finite cell is NaN and no best
	// budget is selected, which is a warning condition, not an error.
	samples := []Sample{
		{Doc: "Miami_FL", W: 25, Budget: shingle.Unbounded, Version: 3, Jaccard: 0.9},
		{Doc: "Miami_FL", W: 25, Budget: shingle.Finite(8), Version: 3, Jaccard: 0.8},
	}
	report := AggregateMAE(samples, grid)

	stat := report.Stats[ConfigKey{W: 50, Lambda: "8"}]
	if !math.IsNaN(stat.MAE) {
		t.Errorf("MAE(50, 8) = %v, want NaN", stat.MAE)
	}
	if stat.Pairs != 0 {
		t.Errorf("Pairs(50, 8) = %d, want 0", stat.Pairs)
	}
	if _, ok := report.BestBudget[50]; ok {
		t.Error("w=50 must not report a best budget")
	}
	if _, ok := report.BestBudget[25]; !ok {
		t.Error("w=25 should still report a best budget")
	}
}

func TestAggregateMAETieBreak(t *testing.T) {
	grid := testGrid(t)

	// Both budgets have identical MAE; the first in ascending grid order
	// (λ=8) wins.
	samples := []Sample{
		{Doc: "A_AA", W: 25, Budget: shingle.Unbounded, Version: 3, Jaccard: 0.5},
		{Doc: "A_AA", W: 25, Budget: shingle.Finite(8), Version: 3, Jaccard: 0.4},
		{Doc: "A_AA", W: 25, Budget: shingle.Finite(16), Version: 3, Jaccard: 0.6},
	}
	report := AggregateMAE(samples, grid)

	if best := report.BestBudget[25]; best.K != 8 {
		t.Errorf("tie should go to first grid budget, got %v", best)
	}
}

// The baseline never competes against itself: no ∞ cell may appear in the
// stats, and missing baselines exclude pairs instead of comparing λ to λ.
func TestAggregateMAEBaselineExcluded(t *testing.T) {
	grid := testGrid(t)
	samples := []Sample{
		{Doc: "A_AA", W: 25, Budget: shingle.Finite(8), Version: 3, Jaccard: 0.4},
	}
	report := AggregateMAE(samples, grid)

	if _, ok := report.Stats[ConfigKey{W: 25, Lambda: "inf"}]; ok {
		t.Error("baseline must not appear as a competing configuration")
	}
	stat := report.Stats[ConfigKey{W: 25, Lambda: "8"}]
	if !math.IsNaN(stat.MAE) {
		t.Errorf("λ sample without a baseline must not contribute, got MAE %v", stat.MAE)
	}
}

func TestWriteSummaryCSV(t *testing.T) {
	grid := testGrid(t)
	samples := []Sample{
		{Doc: "Miami_FL", W: 25, Budget: shingle.Unbounded, Version: 3, Jaccard: 0.9},
		{Doc: "Miami_FL", W: 25, Budget: shingle.Finite(8), Version: 3, Jaccard: 0.7},
	}
	report := AggregateMAE(samples, grid)

	path := filepath.Join(t.TempDir(), "summary.csv")
	if err := WriteSummaryCSV(path, report, grid); err != nil {
		t.Fatalf("WriteSummaryCSV failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}

	// Header + 2 windows x 2 finite budgets.
	if len(rows) != 5 {
		t.Fatalf("got %d rows, want 5", len(rows))
	}
	if rows[0][0] != "w" || rows[0][1] != "lambda" || rows[0][2] != "mae_vs_infty" {
		t.Errorf("unexpected header %v", rows[0])
	}
	if rows[1][0] != "25" || rows[1][1] != "8" || rows[1][2] != "0.200000" {
		t.Errorf("unexpected first row %v", rows[1])
	}
	if rows[2][2] != "NaN" {
		t.Errorf("undefined cell should render NaN, got %q", rows[2][2])
	}
}

func TestWriteDetailedCSV(t *testing.T) {
	samples := []Sample{
		{Doc: "B_BB", W: 25, Budget: shingle.Unbounded, Version: 6, Jaccard: 0.25},
		{Doc: "A_AA", W: 25, Budget: shingle.Finite(8), Version: 3, Jaccard: 1.0 / 3.0},
	}

	path := filepath.Join(t.TempDir(), "detailed.csv")
	if err := WriteDetailedCSV(path, samples); err != nil {
		t.Fatalf("WriteDetailedCSV failed: %v", err)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}

	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}
	// Sorted by doc first.
	if rows[1][0] != "A_AA" || rows[2][0] != "B_BB" {
		t.Errorf("rows not sorted by doc: %v", rows)
	}
	if rows[1][4] != "0.333333" {
		t.Errorf("jaccard not %%.6f formatted: %q", rows[1][4])
	}
}

func TestPlotterWritesDataAndScripts(t *testing.T) {
	dir := t.TempDir()
	grid := testGrid(t)
	samples := []Sample{
		{Doc: "Miami_FL", W: 25, Budget: shingle.Unbounded, Version: 3, Jaccard: 0.9},
		{Doc: "Miami_FL", W: 25, Budget: shingle.Finite(8), Version: 3, Jaccard: 0.7},
	}

	p := NewPlotter(dir)
	if err := p.PlotSimilarityCurves(samples, grid); err != nil {
		t.Fatalf("PlotSimilarityCurves failed: %v", err)
	}
	if err := p.PlotMAE(AggregateMAE(samples, grid), grid); err != nil {
		t.Fatalf("PlotMAE failed: %v", err)
	}
	if err := p.PlotTimings([]TimingSeries{{W: 25, Lambda: "8", Mean: 1.5}}); err != nil {
		t.Fatalf("PlotTimings failed: %v", err)
	}

	for _, name := range []string{
		"similarity_doc-Miami_FL_w-25.json",
		"plot_similarity_doc-Miami_FL_w-25.py",
		"mae_vs_lambda.json",
		"plot_mae_vs_lambda.py",
		"shingling_time.json",
		"plot_shingling_time.py",
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}
}
