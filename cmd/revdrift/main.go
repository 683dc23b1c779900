package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/driftlab/revdrift/internal/analysis"
	"github.com/driftlab/revdrift/internal/corpus"
	"github.com/driftlab/revdrift/internal/fetch"
	"github.com/driftlab/revdrift/internal/metrics"
	"github.com/driftlab/revdrift/internal/pipeline"
	"github.com/driftlab/revdrift/internal/results"
	"github.com/driftlab/revdrift/internal/store"
	"github.com/driftlab/revdrift/pkg/otel"
	"github.com/driftlab/revdrift/pkg/shingle"
)

var (
	// Global flags
	dataDir    string
	windowsArg string
	lambdasArg string
	workers    int

	// Process-wide state, set up once in the root PersistentPreRunE.
	grid analysis.Grid
	met  *metrics.Metrics
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "revdrift",
		Short: "Revision similarity decay study over shingled document dumps",
		Long: `revdrift measures how Jaccard similarity between a document's current
revision and its past revisions degrades when shingle sets are truncated
to a budget λ, across a grid of window sizes w and budgets.

Data lives under --data-dir:
  dumps/     plain-text revision dumps per document
  shingles/  fingerprint sets per (document, version, w, λ)
  jaccard/   per-configuration similarity CSVs
  results/   aggregates, timings, sample databases
  plots/     plot data and render scripts`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			var err error
			grid, err = parseGrid(windowsArg, lambdasArg)
			if err != nil {
				return err
			}
			met = metrics.New()
			if addr := getEnv("METRICS_ADDR", ""); addr != "" {
				metrics.Serve(addr)
			}
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "data", "Root directory for dumps and derived artifacts")
	rootCmd.PersistentFlags().StringVar(&windowsArg, "windows", "25,50", "Comma-separated shingle window sizes")
	rootCmd.PersistentFlags().StringVar(&lambdasArg, "lambdas", "8,16,32,64,inf", "Comma-separated shingle budgets (use 'inf' for the unbounded baseline)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 4, "Fingerprinting worker pool size")

	rootCmd.AddCommand(fetchCmd())
	rootCmd.AddCommand(generateCmd())
	rootCmd.AddCommand(shingleCmd())
	rootCmd.AddCommand(jaccardCmd())
	rootCmd.AddCommand(analyzeCmd())
	rootCmd.AddCommand(plotCmd())
	rootCmd.AddCommand(benchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// fetchCmd downloads revision history for one document.
func fetchCmd() *cobra.Command {
	var rps float64
	cmd := &cobra.Command{
		Use:   "fetch <doc-id> <page-title>",
		Short: "Download a document's revision dumps from the MediaWiki API",
		Long: `Downloads the revision history of a wiki page and writes plain-text
dumps under dumps/<doc-id>/. Versions are sampled at the comparison
stride; existing dumps are kept, so interrupted fetches resume.

Example:
  revdrift fetch Miami_FL "Miami, Florida"`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := withOtel(cmd.Context())
			defer stop()

			opts := []fetch.Option{
				fetch.WithRateLimit(rps, 4),
				fetch.WithMetrics(met),
			}
			if api := getEnv("WIKI_API", ""); api != "" {
				opts = append(opts, fetch.WithAPI(api))
			}
			client := fetch.NewClient(opts...)
			dumper := fetch.NewDumper(client)
			return dumper.Download(ctx, args[0], args[1], dumpsDir())
		},
	}
	cmd.Flags().Float64Var(&rps, "rate", 2, "API request rate limit (requests per second)")
	return cmd
}

// generateCmd fills the shingle store for the whole grid.
func generateCmd() *cobra.Command {
	var resume bool
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Compute shingle sets for every (document, version, w, λ) cell",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := withOtel(cmd.Context())
			defer stop()

			st, err := newStore()
			if err != nil {
				return err
			}
			defer st.Close()

			gen, err := pipeline.NewGenerator(pipeline.Config{
				DumpsRoot:    dumpsDir(),
				Store:        st,
				Grid:         grid,
				Workers:      workers,
				SkipExisting: resume,
				Metrics:      met,
			})
			if err != nil {
				return err
			}
			return gen.GenerateAll(ctx)
		},
	}
	cmd.Flags().BoolVar(&resume, "resume", false, "Skip (document, version, w) jobs whose artifacts all exist")
	return cmd
}

// shingleCmd computes a single grid cell, mainly useful for backfills.
func shingleCmd() *cobra.Command {
	var wFlag int
	var lambdaFlag string
	cmd := &cobra.Command{
		Use:   "shingle",
		Short: "Compute shingle sets for a single (w, λ) configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := withOtel(cmd.Context())
			defer stop()

			budget, err := shingle.ParseBudget(lambdaFlag)
			if err != nil {
				return err
			}
			st, err := newStore()
			if err != nil {
				return err
			}
			defer st.Close()

			gen, err := pipeline.NewGenerator(pipeline.Config{
				DumpsRoot: dumpsDir(),
				Store:     st,
				Grid:      grid,
				Workers:   workers,
				Metrics:   met,
			})
			if err != nil {
				return err
			}
			return gen.GenerateOne(ctx, wFlag, budget)
		},
	}
	cmd.Flags().IntVar(&wFlag, "w", 25, "Shingle window size")
	cmd.Flags().StringVar(&lambdaFlag, "lambda", "inf", "Shingle budget ('inf' for unbounded)")
	return cmd
}

// jaccardCmd computes similarity samples for every grid cell and persists
// them as CSVs plus the configured results backend.
func jaccardCmd() *cobra.Command {
	var regenerate bool
	cmd := &cobra.Command{
		Use:   "jaccard",
		Short: "Compute Jaccard(C-0, C-v) samples for every grid cell",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := withOtel(cmd.Context())
			defer stop()

			st, err := newStore()
			if err != nil {
				return err
			}
			defer st.Close()

			repo, err := newRepository()
			if err != nil {
				return err
			}
			defer repo.Close()

			gen, err := pipeline.NewGenerator(pipeline.Config{
				DumpsRoot: dumpsDir(),
				Store:     st,
				Grid:      grid,
				Workers:   workers,
				Metrics:   met,
			})
			if err != nil {
				return err
			}

			for _, w := range grid.Windows {
				for _, b := range grid.Budgets {
					samples, err := computeCell(ctx, st, gen, w, b, regenerate)
					if err != nil {
						return err
					}
					path := corpus.JaccardCSVPath(jaccardDir(), w, b)
					if err := results.WriteCSV(path, samples); err != nil {
						return err
					}
					if err := repo.SaveSamples(ctx, samples); err != nil {
						return err
					}
					log.Printf("[INFO] w=%d λ=%s: %d samples -> %s", w, b.Label(), len(samples), path)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "Regenerate missing shingle artifacts instead of failing")
	return cmd
}

// computeCell computes one cell's samples, optionally backfilling missing
// shingle artifacts with a single regeneration pass.
func computeCell(ctx context.Context, st store.Store, gen *pipeline.Generator, w int, b shingle.Budget, regenerate bool) ([]analysis.Sample, error) {
	samples, err := pipeline.ComputeJaccard(ctx, dumpsDir(), st, w, b, met)
	if err == nil || !regenerate {
		return samples, err
	}
	if !store.IsMissing(err) {
		return nil, err
	}
	log.Printf("[WARN] w=%d λ=%s: %v; regenerating", w, b.Label(), err)
	if err := gen.GenerateOne(ctx, w, b); err != nil {
		return nil, err
	}
	return pipeline.ComputeJaccard(ctx, dumpsDir(), st, w, b, met)
}

// analyzeCmd aggregates the per-cell CSVs into MAE(w, λ) and the winning
// budget per window size.
func analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Aggregate similarity samples into MAE vs the unbounded baseline",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := withOtel(cmd.Context())
			defer stop()

			samples, err := ensureSamples(ctx)
			if err != nil {
				return err
			}

			report := analysis.AggregateMAE(samples, grid)
			summaryPath := filepath.Join(resultsDir(), "mae_summary.csv")
			if err := analysis.WriteSummaryCSV(summaryPath, report, grid); err != nil {
				return err
			}
			detailedPath := filepath.Join(resultsDir(), "samples_detailed.csv")
			if err := analysis.WriteDetailedCSV(detailedPath, samples); err != nil {
				return err
			}

			for _, w := range grid.Windows {
				if best, ok := report.BestBudget[w]; ok {
					stat := report.Stats[analysis.ConfigKey{W: w, Lambda: best.Label()}]
					log.Printf("[RESULT] w=%d: best λ=%s (MAE=%.6f over %d pairs)", w, best.Label(), stat.MAE, stat.Pairs)
				} else {
					log.Printf("[WARN] w=%d: no finite budget produced a defined MAE", w)
				}
			}
			log.Printf("[INFO] Summary written to %s", summaryPath)
			return nil
		},
	}
	return cmd
}

// plotCmd renders plot data and matplotlib scripts for the loaded samples.
func plotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Write similarity-curve and MAE plot data plus render scripts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := withOtel(cmd.Context())
			defer stop()

			samples, err := ensureSamples(ctx)
			if err != nil {
				return err
			}
			report := analysis.AggregateMAE(samples, grid)

			plotter := analysis.NewPlotter(plotsDir())
			if err := plotter.PlotSimilarityCurves(samples, grid); err != nil {
				return err
			}
			if err := plotter.PlotMAE(report, grid); err != nil {
				return err
			}
			log.Printf("[INFO] Plot data and scripts written to %s", plotsDir())
			return nil
		},
	}
	return cmd
}

// benchCmd times full-corpus generation per grid cell.
func benchCmd() *cobra.Command {
	var runs int
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Time shingle generation per (w, λ) configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := withOtel(cmd.Context())
			defer stop()

			st, err := newStore()
			if err != nil {
				return err
			}
			defer st.Close()

			gen, err := pipeline.NewGenerator(pipeline.Config{
				DumpsRoot: dumpsDir(),
				Store:     st,
				Grid:      grid,
				Workers:   workers,
				Metrics:   met,
			})
			if err != nil {
				return err
			}

			benchResults, err := gen.Bench(ctx, runs)
			if err != nil {
				return err
			}
			csvPath := filepath.Join(resultsDir(), "timings.csv")
			if err := pipeline.WriteBenchCSV(csvPath, benchResults); err != nil {
				return err
			}
			plotter := analysis.NewPlotter(plotsDir())
			if err := plotter.PlotTimings(pipeline.TimingSeries(benchResults)); err != nil {
				return err
			}
			log.Printf("[INFO] Timings written to %s", csvPath)
			return nil
		},
	}
	cmd.Flags().IntVar(&runs, "runs", 3, "Measured runs per configuration (plus one warmup)")
	return cmd
}

// ensureSamples loads every grid cell's samples, preferring the results
// backend, then the per-cell CSVs written by 'jaccard', and finally
// computing the cell from the corpus (regenerating shingles as needed).
func ensureSamples(ctx context.Context) ([]analysis.Sample, error) {
	repo, err := newRepository()
	if err != nil {
		return nil, err
	}
	defer repo.Close()

	st, err := newStore()
	if err != nil {
		return nil, err
	}
	defer st.Close()

	gen, err := pipeline.NewGenerator(pipeline.Config{
		DumpsRoot: dumpsDir(),
		Store:     st,
		Grid:      grid,
		Workers:   workers,
		Metrics:   met,
	})
	if err != nil {
		return nil, err
	}

	var all []analysis.Sample
	for _, w := range grid.Windows {
		for _, b := range grid.Budgets {
			samples, err := repo.LoadSamples(ctx, w, b)
			if err != nil {
				return nil, err
			}
			if len(samples) == 0 {
				var ok bool
				samples, ok, err = results.ReadCSV(corpus.JaccardCSVPath(jaccardDir(), w, b))
				if err != nil {
					return nil, err
				}
				if !ok {
					log.Printf("[INFO] w=%d λ=%s: no stored samples; computing", w, b.Label())
					samples, err = computeCell(ctx, st, gen, w, b, true)
					if err != nil {
						return nil, err
					}
					if err := results.WriteCSV(corpus.JaccardCSVPath(jaccardDir(), w, b), samples); err != nil {
						return nil, err
					}
					if err := repo.SaveSamples(ctx, samples); err != nil {
						return nil, err
					}
				}
			}
			all = append(all, samples...)
		}
	}
	return all, nil
}

// newStore builds the shingle store: filesystem artifacts fronted by an
// optional Redis cache when SHINGLE_CACHE=redis.
func newStore() (store.Store, error) {
	cacheSize, err := strconv.Atoi(getEnv("SHINGLE_CACHE_SIZE", "256"))
	if err != nil {
		return nil, fmt.Errorf("invalid SHINGLE_CACHE_SIZE: %w", err)
	}
	fs, err := store.NewFSStore(shinglesDir(), cacheSize, met)
	if err != nil {
		return nil, err
	}

	switch backend := getEnv("SHINGLE_CACHE", "none"); backend {
	case "none", "":
		return fs, nil
	case "redis":
		db, err := strconv.Atoi(getEnv("REDIS_DB", "0"))
		if err != nil {
			return nil, fmt.Errorf("invalid REDIS_DB: %w", err)
		}
		return store.NewRedisStore(
			getEnv("REDIS_ADDR", "localhost:6379"),
			getEnv("REDIS_PASSWORD", ""),
			db, fs, 0)
	default:
		return nil, fmt.Errorf("unknown SHINGLE_CACHE backend %q", backend)
	}
}

// newRepository builds the results backend from RESULTS_BACKEND.
func newRepository() (results.Repository, error) {
	switch backend := getEnv("RESULTS_BACKEND", "sqlite"); backend {
	case "sqlite", "":
		return results.OpenSQLite(filepath.Join(resultsDir(), "samples.db"))
	case "postgres":
		conn := getEnv("POSTGRES_CONN", "")
		if conn == "" {
			return nil, fmt.Errorf("RESULTS_BACKEND=postgres requires POSTGRES_CONN")
		}
		return results.OpenPostgres(conn)
	default:
		return nil, fmt.Errorf("unknown RESULTS_BACKEND %q", backend)
	}
}

// withOtel installs the tracer provider when OTEL_ENDPOINT is set. The
// returned stop function flushes spans; without an endpoint it is a no-op.
func withOtel(ctx context.Context) (context.Context, func()) {
	endpoint := getEnv("OTEL_ENDPOINT", "")
	if endpoint == "" {
		return ctx, func() {}
	}
	cfg := otel.DefaultConfig()
	cfg.CollectorEndpoint = endpoint
	tp, err := otel.InitTracer(ctx, cfg)
	if err != nil {
		log.Printf("[WARN] Tracing disabled: %v", err)
		return ctx, func() {}
	}
	return ctx, func() {
		if err := otel.Shutdown(context.Background(), tp); err != nil {
			log.Printf("[WARN] Tracer shutdown: %v", err)
		}
	}
}

func parseGrid(windowsArg, lambdasArg string) (analysis.Grid, error) {
	var windows []int
	for _, s := range strings.Split(windowsArg, ",") {
		w, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return analysis.Grid{}, fmt.Errorf("invalid window size %q: %w", s, err)
		}
		windows = append(windows, w)
	}
	var budgets []shingle.Budget
	for _, s := range strings.Split(lambdasArg, ",") {
		b, err := shingle.ParseBudget(strings.TrimSpace(s))
		if err != nil {
			return analysis.Grid{}, err
		}
		budgets = append(budgets, b)
	}
	return analysis.NewGrid(windows, budgets)
}

func dumpsDir() string    { return filepath.Join(dataDir, "dumps") }
func shinglesDir() string { return filepath.Join(dataDir, "shingles") }
func jaccardDir() string  { return filepath.Join(dataDir, "jaccard") }
func resultsDir() string  { return filepath.Join(dataDir, "results") }
func plotsDir() string    { return filepath.Join(dataDir, "plots") }

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
