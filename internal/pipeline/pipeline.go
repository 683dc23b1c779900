// Package pipeline orchestrates shingle generation and similarity
// computation across the parameter grid. Fingerprinting jobs are
// independent per (document, version, window), so they fan out over a
// worker pool; each job computes the full shingle set once and derives
// every finite budget from it by prefix truncation.
package pipeline

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/driftlab/revdrift/internal/analysis"
	"github.com/driftlab/revdrift/internal/corpus"
	"github.com/driftlab/revdrift/internal/metrics"
	"github.com/driftlab/revdrift/internal/store"
	"github.com/driftlab/revdrift/pkg/otel"
	"github.com/driftlab/revdrift/pkg/shingle"
)

// Config wires a Generator.
type Config struct {
	DumpsRoot string
	Store     store.Store
	Grid      analysis.Grid
	// Workers bounds the fingerprinting pool. Defaults to 4.
	Workers int
	// SkipExisting makes reruns resume: jobs whose artifacts all exist
	// are skipped, which is safe because artifacts are deterministic.
	SkipExisting bool
	Metrics      *metrics.Metrics
}

// Generator runs fingerprinting jobs over the corpus.
type Generator struct {
	cfg Config
}

// NewGenerator validates the config.
func NewGenerator(cfg Config) (*Generator, error) {
	if cfg.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	return &Generator{cfg: cfg}, nil
}

type job struct {
	doc     string
	version int
	w       int
}

// GenerateAll computes shingle sets for every (document, version, window)
// in the corpus and every budget in the grid. The full set is computed
// once per job; finite budgets are truncation, not recomputation.
func (g *Generator) GenerateAll(ctx context.Context) error {
	docs, err := corpus.Discover(g.cfg.DumpsRoot)
	if err != nil {
		return err
	}

	var jobs []job
	for _, doc := range corpus.Documents(docs) {
		for _, v := range docs[doc] {
			for _, w := range g.cfg.Grid.Windows {
				jobs = append(jobs, job{doc: doc, version: v, w: w})
			}
		}
	}
	log.Printf("[INFO] Generating shingles: %d jobs across %d documents", len(jobs), len(docs))

	return g.run(ctx, jobs, g.cfg.Grid.Budgets)
}

// GenerateOne computes shingle sets for a single (w, budget)
// configuration across the corpus, recomputing fingerprints rather than
// deriving from lam-inf. The timing mode depends on this doing the full
// work per budget.
func (g *Generator) GenerateOne(ctx context.Context, w int, budget shingle.Budget) error {
	if err := budget.Validate(); err != nil {
		return err
	}
	docs, err := corpus.Discover(g.cfg.DumpsRoot)
	if err != nil {
		return err
	}

	var jobs []job
	for _, doc := range corpus.Documents(docs) {
		for _, v := range docs[doc] {
			jobs = append(jobs, job{doc: doc, version: v, w: w})
		}
	}
	return g.run(ctx, jobs, []shingle.Budget{budget})
}

// run fans jobs out over the worker pool. The first failure cancels the
// remaining jobs; artifacts already written stay valid for the next run.
func (g *Generator) run(ctx context.Context, jobs []job, budgets []shingle.Budget) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobCh := make(chan job)
	errCh := make(chan error, g.cfg.Workers)

	var wg sync.WaitGroup
	for i := 0; i < g.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobCh {
				if err := g.process(ctx, j, budgets); err != nil {
					select {
					case errCh <- err:
					default:
					}
					cancel()
					return
				}
			}
		}()
	}

feed:
	for _, j := range jobs {
		select {
		case jobCh <- j:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobCh)
	wg.Wait()

	select {
	case err := <-errCh:
		return err
	default:
	}
	return ctx.Err()
}

// process executes one fingerprinting job.
func (g *Generator) process(ctx context.Context, j job, budgets []shingle.Budget) error {
	ctx, span := otel.StartSpan(ctx, "pipeline.shingle_job")
	defer span.End()
	start := time.Now()

	if g.cfg.SkipExisting {
		all := true
		for _, b := range budgets {
			key := store.Key{Doc: j.doc, Version: j.version, W: j.w, Budget: b}
			ok, err := g.cfg.Store.Has(ctx, key)
			if err != nil {
				return err
			}
			if !ok {
				all = false
				break
			}
		}
		if all {
			if g.cfg.Metrics != nil {
				g.cfg.Metrics.ShingleJobsSkipped.Inc()
			}
			return nil
		}
	}

	text, err := corpus.ReadDump(g.cfg.DumpsRoot, j.doc, j.version)
	if err != nil {
		return err
	}

	fps, err := shingle.Fingerprints(shingle.Tokenize(text), j.w)
	if err != nil {
		return err
	}
	full, err := shingle.Set(fps, shingle.Unbounded)
	if err != nil {
		return err
	}

	for _, b := range budgets {
		set, err := shingle.Truncate(full, b)
		if err != nil {
			return err
		}
		key := store.Key{Doc: j.doc, Version: j.version, W: j.w, Budget: b}
		if err := g.cfg.Store.Put(ctx, key, set); err != nil {
			return err
		}
		if g.cfg.Metrics != nil {
			g.cfg.Metrics.SetsWritten.WithLabelValues(b.Label()).Inc()
		}
	}

	if g.cfg.Metrics != nil {
		g.cfg.Metrics.ShingleJobs.Inc()
		g.cfg.Metrics.JobDuration.Observe(time.Since(start).Seconds())
	}
	return nil
}
