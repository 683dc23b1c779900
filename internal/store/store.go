// Package store persists shingle set artifacts. The filesystem layout from
// internal/corpus is the source of truth; Redis can be layered in front of
// it as a read-through cache for grid runs that revisit the same sets.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/driftlab/revdrift/pkg/shingle"
)

// Key identifies one shingle set artifact.
type Key struct {
	Doc     string
	Version int
	W       int
	Budget  shingle.Budget
}

func (k Key) String() string {
	return fmt.Sprintf("%s w=%d λ=%s C-%d", k.Doc, k.W, k.Budget.Label(), k.Version)
}

// MissingError reports an absent upstream artifact with enough context for
// the orchestration layer to regenerate it. The store never regenerates
// shingles itself.
type MissingError struct {
	Key Key
}

func (e *MissingError) Error() string {
	return fmt.Sprintf(
		"shingles not generated for %s, w=%d, λ=%s, version C-%d; populate them with 'revdrift generate'",
		e.Key.Doc, e.Key.W, e.Key.Budget.Label(), e.Key.Version,
	)
}

// IsMissing reports whether err wraps a *MissingError.
func IsMissing(err error) bool {
	var missing *MissingError
	return errors.As(err, &missing)
}

// Store reads and writes shingle set artifacts.
type Store interface {
	// Get loads a shingle set in canonical ascending order. An absent
	// artifact is a *MissingError; an empty artifact is an empty set.
	Get(ctx context.Context, key Key) ([]shingle.Fingerprint, error)

	// Has reports whether the artifact exists without decoding it.
	Has(ctx context.Context, key Key) (bool, error)

	// Put persists a shingle set, replacing any previous artifact.
	Put(ctx context.Context, key Key, set []shingle.Fingerprint) error

	// Close releases resources.
	Close() error
}
