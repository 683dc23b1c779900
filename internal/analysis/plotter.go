package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Plotter renders similarity and timing figures. Go writes the JSON data
// next to a matplotlib script so figures can be regenerated or restyled
// without rerunning the pipeline.
type Plotter struct {
	outputDir string
}

// NewPlotter creates a plotter writing into outputDir.
func NewPlotter(outputDir string) *Plotter {
	return &Plotter{outputDir: outputDir}
}

type curvePoint struct {
	Version int     `json:"version"`
	Jaccard float64 `json:"jaccard"`
}

// safeName makes a document id usable in an artifact file name.
func safeName(s string) string {
	r := strings.NewReplacer("/", "-", "\\", "-", " ", "_")
	return r.Replace(s)
}

// PlotSimilarityCurves emits one figure per (document, window): version on
// X, Jaccard(C-0, C-v) on Y, one line per budget with the ∞ baseline drawn
// last.
func (p *Plotter) PlotSimilarityCurves(samples []Sample, grid Grid) error {
	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}

	// doc -> w -> lambda -> points
	series := make(map[string]map[int]map[string][]curvePoint)
	for _, s := range samples {
		if series[s.Doc] == nil {
			series[s.Doc] = make(map[int]map[string][]curvePoint)
		}
		if series[s.Doc][s.W] == nil {
			series[s.Doc][s.W] = make(map[string][]curvePoint)
		}
		lam := s.Budget.Label()
		series[s.Doc][s.W][lam] = append(series[s.Doc][s.W][lam], curvePoint{s.Version, s.Jaccard})
	}

	var lambdaOrder []string
	for _, b := range grid.Budgets {
		lambdaOrder = append(lambdaOrder, b.Label())
	}

	for doc, byW := range series {
		for w, byLambda := range byW {
			for _, pts := range byLambda {
				sort.Slice(pts, func(i, j int) bool { return pts[i].Version < pts[j].Version })
			}

			data := map[string]interface{}{
				"doc":          doc,
				"w":            w,
				"lambda_order": lambdaOrder,
				"series":       byLambda,
			}
			base := fmt.Sprintf("similarity_doc-%s_w-%d", safeName(doc), w)
			if err := p.writeDataAndScript(base, data, similarityScript); err != nil {
				return err
			}
		}
	}
	return nil
}

// PlotMAE emits the per-window MAE-vs-budget figure from a report.
func (p *Plotter) PlotMAE(report *Report, grid Grid) error {
	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}

	type maePoint struct {
		Lambda string  `json:"lambda"`
		MAE    float64 `json:"mae"`
	}
	data := make(map[string][]maePoint)
	for _, w := range grid.Windows {
		pts := []maePoint{}
		for _, b := range grid.FiniteBudgets() {
			stat := report.Stats[ConfigKey{W: w, Lambda: b.Label()}]
			if math.IsNaN(stat.MAE) {
				continue // undefined aggregate, nothing to draw
			}
			pts = append(pts, maePoint{Lambda: b.Label(), MAE: stat.MAE})
		}
		data[fmt.Sprintf("w=%d", w)] = pts
	}

	return p.writeDataAndScript("mae_vs_lambda", data, maeScript)
}

// TimingSeries is one (w, λ) timing aggregate for PlotTimings.
type TimingSeries struct {
	W      int     `json:"w"`
	Lambda string  `json:"lambda"`
	Mean   float64 `json:"mean"`
	Std    float64 `json:"std"`
}

// PlotTimings emits the shingling-time-vs-budget figure.
func (p *Plotter) PlotTimings(series []TimingSeries) error {
	if err := os.MkdirAll(p.outputDir, 0755); err != nil {
		return fmt.Errorf("create plot dir: %w", err)
	}
	return p.writeDataAndScript("shingling_time", series, timingScript)
}

func (p *Plotter) writeDataAndScript(base string, data interface{}, script string) error {
	raw, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s data: %w", base, err)
	}
	dataPath := filepath.Join(p.outputDir, base+".json")
	if err := os.WriteFile(dataPath, raw, 0644); err != nil {
		return fmt.Errorf("write %s: %w", dataPath, err)
	}

	rendered := strings.ReplaceAll(script, "{{BASE}}", base)
	scriptPath := filepath.Join(p.outputDir, "plot_"+base+".py")
	if err := os.WriteFile(scriptPath, []byte(rendered), 0755); err != nil {
		return fmt.Errorf("write %s: %w", scriptPath, err)
	}
	return nil
}

const similarityScript = `#!/usr/bin/env python3
import matplotlib.pyplot as plt
import json

with open('{{BASE}}.json', 'r') as f:
    data = json.load(f)

plt.figure(figsize=(9, 6))

for lam in data['lambda_order']:
    pts = data['series'].get(lam)
    if not pts:
        continue
    xs = [p['version'] for p in pts]
    ys = [p['jaccard'] for p in pts]
    label = u'∞' if lam == 'inf' else f'λ={lam}'
    plt.plot(xs, ys, marker='o', linewidth=2, label=label)

plt.title(f"Jaccard vs Version (doc={data['doc']}, w={data['w']})")
plt.xlabel('Version (C-v)')
plt.ylabel('Jaccard similarity with C-0')
plt.grid(True, linestyle='--', alpha=0.5)
plt.legend(title=u'λ', frameon=True)
plt.tight_layout()
plt.savefig('{{BASE}}.png', dpi=150)
print('Saved {{BASE}}.png')
`

const maeScript = `#!/usr/bin/env python3
import matplotlib.pyplot as plt
import json

with open('{{BASE}}.json', 'r') as f:
    data = json.load(f)

plt.figure(figsize=(8, 6))

for w, pts in sorted(data.items()):
    xs = [p['lambda'] for p in pts]
    ys = [p['mae'] for p in pts]
    plt.plot(xs, ys, marker='o', linewidth=2, label=w)

plt.xlabel(u'λ value')
plt.ylabel(u'MAE |J_λ - J_∞|')
plt.title(u'Approximation error vs λ')
plt.legend()
plt.grid(True, linestyle='--', alpha=0.6)
plt.tight_layout()
plt.savefig('{{BASE}}.png', dpi=150)
print('Saved {{BASE}}.png')
`

const timingScript = `#!/usr/bin/env python3
import matplotlib.pyplot as plt
import json
from collections import defaultdict

with open('{{BASE}}.json', 'r') as f:
    rows = json.load(f)

by_w = defaultdict(list)
for r in rows:
    by_w[r['w']].append(r)

plt.figure(figsize=(8, 6))
for w, vals in sorted(by_w.items()):
    xs = [(u'∞' if v['lambda'] == 'inf' else v['lambda']) for v in vals]
    ys = [v['mean'] for v in vals]
    plt.plot(xs, ys, marker='o', label=f'w={w}')
    for x, y in zip(xs, ys):
        plt.text(x, y, f'{y:.2f}', ha='center', va='bottom', fontsize=8)

plt.xlabel(u'λ value')
plt.ylabel('Time (s)')
plt.title(u'Shingling time vs λ')
plt.legend()
plt.grid(True, linestyle='--', alpha=0.6)
plt.tight_layout()
plt.savefig('{{BASE}}.png', dpi=150)
print('Saved {{BASE}}.png')
`
