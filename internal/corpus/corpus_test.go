package corpus

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/driftlab/revdrift/pkg/shingle"
)

func TestParseDumpName(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		doc     string
		version int
		ok      bool
	}{
		{"simple", "Miami_FL_C-0.txt", "Miami_FL", 0, true},
		{"hyphenated name", "New-York-City_NY_C-42.txt", "New-York-City_NY", 42, true},
		{"no version suffix", "Miami_FL.txt", "", 0, false},
		{"wrong extension", "Miami_FL_C-3.csv", "", 0, false},
		{"not a dump", "notes.txt", "", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, v, ok := ParseDumpName(tt.file)
			if ok != tt.ok {
				t.Fatalf("ParseDumpName(%q) ok = %v, want %v", tt.file, ok, tt.ok)
			}
			if ok && (doc != tt.doc || v != tt.version) {
				t.Errorf("ParseDumpName(%q) = (%s, %d)", tt.file, doc, v)
			}
		})
	}
}

func TestPaths(t *testing.T) {
	got := ShinglePath("shingles", "Miami_FL", 25, shingle.Finite(32), 3)
	want := filepath.Join("shingles", "Miami_FL", "25", "lam-32", "C-3.txt")
	if got != want {
		t.Errorf("ShinglePath = %s, want %s", got, want)
	}

	got = ShinglePath("shingles", "Miami_FL", 50, shingle.Unbounded, 0)
	want = filepath.Join("shingles", "Miami_FL", "50", "lam-inf", "C-0.txt")
	if got != want {
		t.Errorf("ShinglePath = %s, want %s", got, want)
	}

	got = JaccardCSVPath("jaccard", 25, shingle.Unbounded)
	want = filepath.Join("jaccard", "25", "w-25_lam-inf.csv")
	if got != want {
		t.Errorf("JaccardCSVPath = %s, want %s", got, want)
	}
}

func TestTargetVersions(t *testing.T) {
	versions := []int{0, 1, 3, 5, 6, 9, 147, 150, 153}
	got := TargetVersions(versions)
	want := []int{3, 6, 9, 147}
	if len(got) != len(want) {
		t.Fatalf("TargetVersions = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("TargetVersions[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()

	writeDump := func(doc string, version int, text string) {
		dir := filepath.Join(root, doc)
		if err := os.MkdirAll(dir, 0755); err != nil {
			t.Fatal(err)
		}
		path := DumpPath(root, doc, version)
		if err := os.WriteFile(path, []byte(text), 0644); err != nil {
			t.Fatal(err)
		}
	}

	writeDump("Miami_FL", 0, "current text")
	writeDump("Miami_FL", 6, "older text")
	writeDump("Miami_FL", 3, "old text")
	writeDump("Detroit_MI", 0, "motor city")

	// Noise that must be skipped.
	if err := os.MkdirAll(filepath.Join(root, "not-a-doc"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "Miami_FL", "README.md"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	docs, err := Discover(root)
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}

	if len(docs) != 2 {
		t.Fatalf("discovered %d docs, want 2", len(docs))
	}

	miami := docs["Miami_FL"]
	if len(miami) != 3 || miami[0] != 0 || miami[1] != 3 || miami[2] != 6 {
		t.Errorf("Miami_FL versions = %v, want [0 3 6]", miami)
	}

	ids := Documents(docs)
	if ids[0] != "Detroit_MI" || ids[1] != "Miami_FL" {
		t.Errorf("Documents = %v, want sorted order", ids)
	}

	text, err := ReadDump(root, "Miami_FL", 3)
	if err != nil {
		t.Fatalf("ReadDump failed: %v", err)
	}
	if text != "old text" {
		t.Errorf("ReadDump = %q", text)
	}
}

func TestDiscoverEmpty(t *testing.T) {
	if _, err := Discover(t.TempDir()); err == nil {
		t.Error("expected error for empty dumps root")
	}
}
