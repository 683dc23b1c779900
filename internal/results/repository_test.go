package results

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/driftlab/revdrift/internal/analysis"
	"github.com/driftlab/revdrift/pkg/shingle"
)

func sampleFixture() []analysis.Sample {
	return []analysis.Sample{
		{Doc: "Miami_FL", W: 25, Budget: shingle.Unbounded, Version: 3, Jaccard: 0.874321},
		{Doc: "Miami_FL", W: 25, Budget: shingle.Unbounded, Version: 6, Jaccard: 0.801234},
		{Doc: "Detroit_MI", W: 25, Budget: shingle.Unbounded, Version: 3, Jaccard: 0.912345},
	}
}

func TestCSVRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "25", "w-25_lam-inf.csv")
	fixture := sampleFixture()

	if err := WriteCSV(path, fixture); err != nil {
		t.Fatalf("WriteCSV failed: %v", err)
	}

	samples, ok, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("ReadCSV failed: %v", err)
	}
	if !ok {
		t.Fatal("ReadCSV reported missing file")
	}
	if len(samples) != len(fixture) {
		t.Fatalf("got %d samples, want %d", len(samples), len(fixture))
	}
	for i, s := range samples {
		want := fixture[i]
		if s.Doc != want.Doc || s.W != want.W || s.Version != want.Version {
			t.Errorf("sample %d = %+v, want %+v", i, s, want)
		}
		if !s.Budget.IsUnbounded {
			t.Errorf("sample %d lost unbounded budget", i)
		}
		// %.6f formatting bounds the round-trip error.
		if diff := s.Jaccard - want.Jaccard; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("sample %d jaccard = %v, want %v", i, s.Jaccard, want.Jaccard)
		}
	}
}

func TestReadCSVMissing(t *testing.T) {
	_, ok, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if ok {
		t.Error("missing file reported ok=true")
	}
}

func TestSQLiteRepository(t *testing.T) {
	repo, err := OpenSQLite(filepath.Join(t.TempDir(), "results.db"))
	if err != nil {
		t.Fatalf("OpenSQLite failed: %v", err)
	}
	defer repo.Close()

	ctx := context.Background()
	if err := repo.SaveSamples(ctx, sampleFixture()); err != nil {
		t.Fatalf("SaveSamples failed: %v", err)
	}

	// Saving again must be idempotent (first write wins).
	if err := repo.SaveSamples(ctx, sampleFixture()); err != nil {
		t.Fatalf("second SaveSamples failed: %v", err)
	}

	samples, err := repo.LoadSamples(ctx, 25, shingle.Unbounded)
	if err != nil {
		t.Fatalf("LoadSamples failed: %v", err)
	}
	if len(samples) != 3 {
		t.Fatalf("got %d samples, want 3", len(samples))
	}

	// Ordered by doc then version.
	if samples[0].Doc != "Detroit_MI" {
		t.Errorf("first sample doc = %s, want Detroit_MI", samples[0].Doc)
	}
	if samples[1].Version != 3 || samples[2].Version != 6 {
		t.Errorf("Miami versions out of order: %d, %d", samples[1].Version, samples[2].Version)
	}

	// No samples at an unseen configuration.
	empty, err := repo.LoadSamples(ctx, 50, shingle.Finite(8))
	if err != nil {
		t.Fatalf("LoadSamples for empty config failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected no samples, got %d", len(empty))
	}
}
