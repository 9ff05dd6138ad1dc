// Package merkle builds the day-root digest over an ordered list of leaf
// hashes. Interior nodes hash the **text** concatenation of the two child hex
// digests (not their raw bytes); an odd node count duplicates the last node.
// This convention must not change: externally recorded day roots are only
// verifiable against it.
package merkle

import (
	"strings"

	"github.com/kaizencycle/hive-ledger/pkg/canonical"
)

// MethodID identifies the root computation method on persisted DayRoot
// records.
const MethodID = "pairwise-merkle-sha256(hex-concat)"

// EmptyRoot is the defined root of an empty leaf set: SHA-256 of the empty
// byte string.
const EmptyRoot = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"

// Leaf computes the leaf hash of a record: SHA-256 over its canonical JSON
// bytes.
func Leaf(record interface{}) (string, error) {
	return canonical.Hash(record)
}

// Root computes the Merkle root of an ordered list of hex digests.
//
// Leaf order is significant. Callers pass leaves in the fixed day order:
// seed first, then sweeps in submission order, then seal.
//
// An empty list yields EmptyRoot; a single leaf is returned unchanged.
func Root(leaves []string) string {
	if len(leaves) == 0 {
		return EmptyRoot
	}
	layer := make([]string, len(leaves))
	for i, l := range leaves {
		layer[i] = strings.ToLower(l)
	}
	for len(layer) > 1 {
		next := make([]string, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			left := layer[i]
			right := left // duplicate last on odd count
			if i+1 < len(layer) {
				right = layer[i+1]
			}
			next = append(next, nodeHash(left, right))
		}
		layer = next
	}
	return layer[0]
}

func nodeHash(left, right string) string {
	return canonical.HashText(left + right)
}
