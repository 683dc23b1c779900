package shingle

import (
	"bufio"
	"io"
	"sort"
	"strings"
)

// Set canonicalizes a fingerprint sequence into a shingle set: sorted
// ascending by integer magnitude, then truncated to the budget. The input
// slice is not modified.
//
// Because a finite budget keeps a prefix of the full ascending sort, budgets
// are monotonic: k₁ < k₂ implies Set(k₁) ⊆ Set(k₂) ⊆ Set(∞).
func Set(fps []Fingerprint, budget Budget) ([]Fingerprint, error) {
	if err := budget.Validate(); err != nil {
		return nil, err
	}
	sorted := make([]Fingerprint, len(fps))
	copy(sorted, fps)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Compare(sorted[j]) < 0
	})
	return Truncate(sorted, budget)
}

// Truncate applies a budget to an already-sorted full shingle set. This is
// the cheap path for deriving every finite budget from one lam-inf
// computation instead of re-fingerprinting per budget.
func Truncate(full []Fingerprint, budget Budget) ([]Fingerprint, error) {
	if err := budget.Validate(); err != nil {
		return nil, err
	}
	if budget.IsUnbounded || budget.K >= len(full) {
		return full, nil
	}
	return full[:budget.K], nil
}

// Jaccard computes |A∩B| / |A∪B| over the two fingerprint sequences with
// duplicates collapsed. Two empty sets are declared identical (1.0); one
// empty set against a nonempty one is fully dissimilar (0.0). Downstream
// aggregation relies on the result always being a defined value in [0, 1].
func Jaccard(a, b []Fingerprint) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	setA := make(map[Fingerprint]struct{}, len(a))
	for _, f := range a {
		setA[f] = struct{}{}
	}

	intersection := 0
	union := len(setA)
	seenB := make(map[Fingerprint]struct{}, len(b))
	for _, f := range b {
		if _, dup := seenB[f]; dup {
			continue
		}
		seenB[f] = struct{}{}
		if _, ok := setA[f]; ok {
			intersection++
		} else {
			union++
		}
	}

	return float64(intersection) / float64(union)
}

// WriteSet renders a shingle set in the persisted artifact format: one
// lowercase-hex fingerprint per line, file order matching set order. An
// empty set writes nothing, producing an empty file.
func WriteSet(w io.Writer, set []Fingerprint) error {
	bw := bufio.NewWriter(w)
	for _, f := range set {
		if _, err := bw.WriteString(f.Hex()); err != nil {
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// ReadSet parses the WriteSet format. Blank lines are skipped and the
// result is re-sorted by magnitude, so hand-edited or concatenated files
// still load into canonical order. An empty file is an empty set.
func ReadSet(r io.Reader) ([]Fingerprint, error) {
	var set []Fingerprint
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		f, err := ParseFingerprint(line)
		if err != nil {
			return nil, err
		}
		set = append(set, f)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	sort.Slice(set, func(i, j int) bool {
		return set[i].Compare(set[j]) < 0
	})
	return set, nil
}
