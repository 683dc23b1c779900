package pipeline

import (
	"context"
	"log"

	"github.com/driftlab/revdrift/internal/analysis"
	"github.com/driftlab/revdrift/internal/corpus"
	"github.com/driftlab/revdrift/internal/metrics"
	"github.com/driftlab/revdrift/internal/store"
	"github.com/driftlab/revdrift/pkg/otel"
	"github.com/driftlab/revdrift/pkg/shingle"
)

// ComputeJaccard produces Jaccard(C-0, C-v) samples for one (w, budget)
// configuration over every document in the corpus. Documents without a
// version 0 or without target versions are skipped with a warning. A
// missing shingle artifact surfaces as *store.MissingError; regeneration
// is the caller's decision.
func ComputeJaccard(ctx context.Context, dumpsRoot string, st store.Store, w int, budget shingle.Budget, m *metrics.Metrics) ([]analysis.Sample, error) {
	ctx, span := otel.StartSpan(ctx, "pipeline.compute_jaccard")
	defer span.End()

	if err := budget.Validate(); err != nil {
		return nil, err
	}

	docs, err := corpus.Discover(dumpsRoot)
	if err != nil {
		return nil, err
	}

	var samples []analysis.Sample
	for _, doc := range corpus.Documents(docs) {
		versions := docs[doc]
		hasZero := false
		for _, v := range versions {
			if v == 0 {
				hasZero = true
				break
			}
		}
		if !hasZero {
			log.Printf("[WARN] %s: missing C-0, skipping document", doc)
			continue
		}

		targets := corpus.TargetVersions(versions)
		if len(targets) == 0 {
			log.Printf("[WARN] %s: no target versions, skipping document", doc)
			continue
		}

		current, err := st.Get(ctx, store.Key{Doc: doc, Version: 0, W: w, Budget: budget})
		if err != nil {
			return nil, err
		}

		for _, v := range targets {
			past, err := st.Get(ctx, store.Key{Doc: doc, Version: v, W: w, Budget: budget})
			if err != nil {
				return nil, err
			}
			samples = append(samples, analysis.Sample{
				Doc:     doc,
				W:       w,
				Budget:  budget,
				Version: v,
				Jaccard: shingle.Jaccard(current, past),
			})
			if m != nil {
				m.SamplesComputed.Inc()
			}
		}
	}
	return samples, nil
}
