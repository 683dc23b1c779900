// Package analysis aggregates Jaccard similarity samples across the
// (window, budget) grid and quantifies how well each finite budget
// approximates the unbounded baseline.
package analysis

import (
	"fmt"
	"math"
	"sort"

	"github.com/driftlab/revdrift/pkg/shingle"
)

// Sample is one Jaccard(C-0, C-v) measurement at a grid configuration.
type Sample struct {
	Doc     string
	W       int
	Budget  shingle.Budget
	Version int
	Jaccard float64
}

// Grid is the immutable parameter grid for one run. Budgets always end
// with the unbounded baseline; finite budgets are kept in ascending order,
// which is also the tie-break order for best-budget selection.
type Grid struct {
	Windows []int
	Budgets []shingle.Budget
}

// NewGrid validates windows and budgets and canonicalizes the iteration
// order. The unbounded baseline is appended when absent since every MAE is
// measured against it.
func NewGrid(windows []int, budgets []shingle.Budget) (Grid, error) {
	if len(windows) == 0 {
		return Grid{}, fmt.Errorf("%w: at least one window size is required", shingle.ErrInvalidParameter)
	}
	for _, w := range windows {
		if w <= 0 {
			return Grid{}, fmt.Errorf("%w: window size must be positive, got %d", shingle.ErrInvalidParameter, w)
		}
	}

	var finite []shingle.Budget
	for _, b := range budgets {
		if err := b.Validate(); err != nil {
			return Grid{}, err
		}
		if b.IsUnbounded {
			continue // the baseline is re-appended below
		}
		finite = append(finite, b)
	}
	sort.Slice(finite, func(i, j int) bool { return finite[i].K < finite[j].K })

	ws := make([]int, len(windows))
	copy(ws, windows)
	sort.Ints(ws)

	return Grid{Windows: ws, Budgets: append(finite, shingle.Unbounded)}, nil
}

// FiniteBudgets returns the grid's budgets without the baseline.
func (g Grid) FiniteBudgets() []shingle.Budget {
	var out []shingle.Budget
	for _, b := range g.Budgets {
		if !b.IsUnbounded {
			out = append(out, b)
		}
	}
	return out
}

// ConfigKey addresses one (window, budget) cell of the grid.
type ConfigKey struct {
	W      int
	Lambda string // budget label, "inf" for the baseline
}

// ConfigStat is the aggregate for one grid cell.
type ConfigStat struct {
	W      int
	Budget shingle.Budget
	// MAE is the mean of |J_λ − J_∞| over comparable (doc, version)
	// pairs, or NaN when no pair had both samples.
	MAE float64
	// Pairs counts the comparable (doc, version) pairs behind MAE.
	Pairs int
	// Best marks the winning finite budget for this window size.
	Best bool
}

// Report is the aggregation result over the whole grid.
type Report struct {
	Stats map[ConfigKey]ConfigStat
	// BestBudget maps window size to the winning finite budget. Windows
	// where no finite budget produced a defined MAE are absent.
	BestBudget map[int]shingle.Budget
}

// maeAccumulator keys running error sums by grid cell so samples can be
// streamed through without materializing per-pair rows.
type maeAccumulator struct {
	sum   float64
	count int
}

// AggregateMAE computes MAE(w, λ) for every finite budget in the grid and
// selects the best budget per window size. The baseline never competes:
// comparing ∞ to itself is identically zero and would always win.
func AggregateMAE(samples []Sample, grid Grid) *Report {
	// Baseline similarity per (w, doc, version).
	type pairKey struct {
		w       int
		doc     string
		version int
	}
	baseline := make(map[pairKey]float64)
	for _, s := range samples {
		if s.Budget.IsUnbounded {
			baseline[pairKey{s.W, s.Doc, s.Version}] = s.Jaccard
		}
	}

	acc := make(map[ConfigKey]*maeAccumulator)
	for _, s := range samples {
		if s.Budget.IsUnbounded {
			continue
		}
		base, ok := baseline[pairKey{s.W, s.Doc, s.Version}]
		if !ok {
			continue // no ∞ sample for this pair, not comparable
		}
		key := ConfigKey{W: s.W, Lambda: s.Budget.Label()}
		a := acc[key]
		if a == nil {
			a = &maeAccumulator{}
			acc[key] = a
		}
		a.sum += math.Abs(s.Jaccard - base)
		a.count++
	}

	report := &Report{
		Stats:      make(map[ConfigKey]ConfigStat),
		BestBudget: make(map[int]shingle.Budget),
	}

	for _, w := range grid.Windows {
		bestMAE := math.Inf(1)
		var best shingle.Budget
		haveBest := false

		for _, b := range grid.FiniteBudgets() {
			key := ConfigKey{W: w, Lambda: b.Label()}
			stat := ConfigStat{W: w, Budget: b, MAE: math.NaN()}
			if a, ok := acc[key]; ok && a.count > 0 {
				stat.MAE = a.sum / float64(a.count)
				stat.Pairs = a.count
				// Strict < keeps the first budget in grid order on ties.
				if stat.MAE < bestMAE {
					bestMAE = stat.MAE
					best = b
					haveBest = true
				}
			}
			report.Stats[key] = stat
		}

		if haveBest {
			report.BestBudget[w] = best
			key := ConfigKey{W: w, Lambda: best.Label()}
			stat := report.Stats[key]
			stat.Best = true
			report.Stats[key] = stat
		}
	}

	return report
}
