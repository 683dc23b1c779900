// Package shingle implements window fingerprinting and set similarity for
// document version comparison. A shingle is the 128-bit digest of one
// fixed-size window of consecutive tokens; the digests of all windows of a
// document version, sorted by numeric magnitude, form its shingle set.
//
// The wire framing of the digest input (4-byte big-endian length prefix
// followed by the raw UTF-8 payload, per token) and the hash function are
// part of the persisted artifact contract: changing either invalidates
// previously stored fingerprint files.
package shingle

import (
	"bytes"
	"crypto/md5"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInvalidParameter reports a non-positive window size or budget.
// Callers should fail fast; retrying with the same input cannot succeed.
var ErrInvalidParameter = errors.New("invalid parameter")

// Fingerprint is a 128-bit window digest. The canonical ordering is by the
// value's unsigned integer magnitude, which for a fixed-width big-endian
// digest is plain byte order.
type Fingerprint [md5.Size]byte

// Compare orders fingerprints by integer magnitude. It returns -1, 0, or 1.
func (f Fingerprint) Compare(other Fingerprint) int {
	return bytes.Compare(f[:], other[:])
}

// Hex renders the fingerprint as 32 lowercase hex characters, the form used
// in persisted shingle files.
func (f Fingerprint) Hex() string {
	return hex.EncodeToString(f[:])
}

// ParseFingerprint decodes the lowercase-hex form produced by Hex.
func ParseFingerprint(s string) (Fingerprint, error) {
	var f Fingerprint
	if len(s) != 2*md5.Size {
		return f, fmt.Errorf("fingerprint %q: want %d hex chars, got %d", s, 2*md5.Size, len(s))
	}
	if _, err := hex.Decode(f[:], []byte(s)); err != nil {
		return f, fmt.Errorf("fingerprint %q: %w", s, err)
	}
	return f, nil
}

// Fingerprints hashes every contiguous window of w consecutive tokens,
// in source order. Each token is fed to the accumulator as a 4-byte
// big-endian byte-length prefix followed by its UTF-8 bytes; the prefix
// keeps distinct token splits like ["ab","c"] and ["a","bc"] from
// colliding.
//
// A token count smaller than w yields an empty sequence, not an error.
func Fingerprints(tokens []string, w int) ([]Fingerprint, error) {
	if w <= 0 {
		return nil, fmt.Errorf("%w: window size must be positive, got %d", ErrInvalidParameter, w)
	}
	if len(tokens) < w {
		return nil, nil
	}

	out := make([]Fingerprint, 0, len(tokens)-w+1)
	var prefix [4]byte
	for i := 0; i+w <= len(tokens); i++ {
		h := md5.New()
		for _, tok := range tokens[i : i+w] {
			binary.BigEndian.PutUint32(prefix[:], uint32(len(tok)))
			h.Write(prefix[:])
			h.Write([]byte(tok))
		}
		var f Fingerprint
		h.Sum(f[:0])
		out = append(out, f)
	}
	return out, nil
}
