// Package canonical provides deterministic JSON serialization for hashing
// day-ledger records. Two structurally equal records (same keys and values,
// any internal ordering) always encode to identical bytes: object keys are
// sorted at every nesting level, whitespace is stripped, HTML escaping is
// disabled, and number formatting follows RFC 8785.
package canonical

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/gowebpki/jcs"
)

// EncodingError is returned when a value cannot be represented in canonical
// form, e.g. a NaN or infinite float, a channel, or a cyclic structure.
type EncodingError struct {
	Err error
}

func (e *EncodingError) Error() string {
	return fmt.Sprintf("canonical: value not representable: %v", e.Err)
}

func (e *EncodingError) Unwrap() error { return e.Err }

// Encode returns the RFC 8785 canonical JSON bytes of v.
func Encode(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, &EncodingError{Err: err}
	}
	out, err := jcs.Transform(raw)
	if err != nil {
		return nil, &EncodingError{Err: err}
	}
	return out, nil
}

// EncodeString returns the canonical form as a string.
func EncodeString(v interface{}) (string, error) {
	b, err := Encode(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Hash returns the SHA-256 hex digest of the canonical JSON form of v.
// This is the leaf-hash function for all day-ledger records.
func Hash(v interface{}) (string, error) {
	b, err := Encode(v)
	if err != nil {
		return "", err
	}
	return HashBytes(b), nil
}

// HashBytes computes the SHA-256 hash of raw bytes and returns it hex-encoded.
func HashBytes(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

// HashText hashes the UTF-8 bytes of s.
func HashText(s string) string {
	return HashBytes([]byte(s))
}
