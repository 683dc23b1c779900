package shingle

import (
	"fmt"
	"strconv"
	"strings"
)

// Budget caps the number of shingles retained per document version. The
// zero value is not valid; construct budgets with Finite or use Unbounded.
type Budget struct {
	// K is the retention cap. Ignored when IsUnbounded is set.
	K int
	// IsUnbounded marks the λ = ∞ baseline, which retains the full set.
	IsUnbounded bool
}

// Unbounded is the λ = ∞ baseline budget.
var Unbounded = Budget{IsUnbounded: true}

// Finite returns a budget retaining the k numerically smallest shingles.
func Finite(k int) Budget {
	return Budget{K: k}
}

// ParseBudget accepts a positive integer or one of "inf", "infty",
// "infinite" (case-insensitive) for the unbounded baseline.
func ParseBudget(s string) (Budget, error) {
	switch strings.ToLower(s) {
	case "inf", "infty", "infinite":
		return Unbounded, nil
	}
	k, err := strconv.Atoi(s)
	if err != nil {
		return Budget{}, fmt.Errorf("%w: budget %q is not a positive integer or 'inf'", ErrInvalidParameter, s)
	}
	b := Finite(k)
	if err := b.Validate(); err != nil {
		return Budget{}, err
	}
	return b, nil
}

// Validate rejects non-positive finite budgets.
func (b Budget) Validate() error {
	if !b.IsUnbounded && b.K <= 0 {
		return fmt.Errorf("%w: budget must be positive or unbounded, got %d", ErrInvalidParameter, b.K)
	}
	return nil
}

// Label is the filesystem and CSV token for the budget: "inf" for the
// baseline, the decimal cap otherwise.
func (b Budget) Label() string {
	if b.IsUnbounded {
		return "inf"
	}
	return strconv.Itoa(b.K)
}

func (b Budget) String() string {
	if b.IsUnbounded {
		return "∞"
	}
	return strconv.Itoa(b.K)
}
