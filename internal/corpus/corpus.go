// Package corpus describes the on-disk layout of the revision study:
// plain-text dumps per (document, version), shingle artifacts per
// (document, version, window, budget), and Jaccard CSVs per (window,
// budget). All derived artifacts are recomputable from the dumps.
package corpus

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/driftlab/revdrift/pkg/shingle"
)

const (
	// VersionStep and MaxVersion bound the versions compared against
	// version 0: v ∈ {3, 6, ..., 147}.
	VersionStep = 3
	MaxVersion  = 147
)

var (
	// Document directories are named <Name>_<two-letter tag>,
	// e.g. Miami_FL.
	docDirRE = regexp.MustCompile(`^(.+?)_(\w{2})$`)
	// Dump files are named <Doc_ID>_C-<version>.txt.
	dumpFileRE = regexp.MustCompile(`^(.+?)_(\w{2})_C-(\d+)\.txt$`)
)

// DumpPath returns dumps/<doc>/<doc>_C-<version>.txt under root.
func DumpPath(root, doc string, version int) string {
	return filepath.Join(root, doc, fmt.Sprintf("%s_C-%d.txt", doc, version))
}

// ShinglePath returns shingles/<doc>/<w>/lam-<label>/C-<version>.txt
// under root.
func ShinglePath(root, doc string, w int, budget shingle.Budget, version int) string {
	return filepath.Join(root, doc, strconv.Itoa(w), "lam-"+budget.Label(), fmt.Sprintf("C-%d.txt", version))
}

// JaccardCSVPath returns jaccard/<w>/w-<w>_lam-<label>.csv under root.
func JaccardCSVPath(root string, w int, budget shingle.Budget) string {
	return filepath.Join(root, strconv.Itoa(w), fmt.Sprintf("w-%d_lam-%s.csv", w, budget.Label()))
}

// ParseDumpName extracts the document id and version from a dump file
// name. The second return is false when the name does not match the
// schema.
func ParseDumpName(name string) (doc string, version int, ok bool) {
	m := dumpFileRE.FindStringSubmatch(name)
	if m == nil {
		return "", 0, false
	}
	v, err := strconv.Atoi(m[3])
	if err != nil {
		return "", 0, false
	}
	return m[1] + "_" + m[2], v, true
}

// Discover walks the dumps root and returns each document's sorted,
// de-duplicated version list. Directories and files that do not match the
// naming schema are skipped silently; an empty result is an error because
// every downstream stage needs at least one document.
func Discover(dumpsRoot string) (map[string][]int, error) {
	entries, err := os.ReadDir(dumpsRoot)
	if err != nil {
		return nil, fmt.Errorf("read dumps root: %w", err)
	}

	docs := make(map[string][]int)
	for _, e := range entries {
		if !e.IsDir() || !docDirRE.MatchString(e.Name()) {
			continue
		}
		files, err := os.ReadDir(filepath.Join(dumpsRoot, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read document dir %s: %w", e.Name(), err)
		}

		seen := make(map[int]bool)
		var versions []int
		for _, f := range files {
			if f.IsDir() {
				continue
			}
			_, v, ok := ParseDumpName(f.Name())
			if !ok || seen[v] {
				continue
			}
			seen[v] = true
			versions = append(versions, v)
		}
		if len(versions) > 0 {
			sort.Ints(versions)
			docs[e.Name()] = versions
		}
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("no document/version files found under %s", dumpsRoot)
	}
	return docs, nil
}

// Documents returns the discovered document ids in sorted order.
func Documents(docs map[string][]int) []string {
	out := make([]string, 0, len(docs))
	for d := range docs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// TargetVersions filters a version list down to the versions compared
// against version 0: nonzero multiples of VersionStep up to MaxVersion.
func TargetVersions(versions []int) []int {
	var out []int
	for _, v := range versions {
		if v != 0 && v%VersionStep == 0 && v <= MaxVersion {
			out = append(out, v)
		}
	}
	return out
}

// ReadDump loads one version's dump text.
func ReadDump(root, doc string, version int) (string, error) {
	data, err := os.ReadFile(DumpPath(root, doc, version))
	if err != nil {
		return "", fmt.Errorf("read dump %s C-%d: %w", doc, version, err)
	}
	return string(data), nil
}
