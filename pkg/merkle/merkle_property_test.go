package merkle_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/kaizencycle/hive-ledger/pkg/canonical"
	"github.com/kaizencycle/hive-ledger/pkg/merkle"
)

// TestRootProperties checks, over random leaf sets, that root computation is
// deterministic and that every inclusion proof verifies against the root.
func TestRootProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	genLeaves := gen.SliceOf(gen.AnyString()).Map(func(items []string) []string {
		leaves := make([]string, len(items))
		for i, s := range items {
			leaves[i] = canonical.HashText(s)
		}
		return leaves
	})

	properties.Property("root is deterministic", prop.ForAll(
		func(leaves []string) bool {
			return merkle.Root(leaves) == merkle.Root(leaves)
		},
		genLeaves,
	))

	properties.Property("every leaf has a verifying proof", prop.ForAll(
		func(leaves []string) bool {
			root := merkle.Root(leaves)
			for idx := range leaves {
				proof, ok := merkle.BuildProof(leaves, idx)
				if !ok || !merkle.VerifyProof(proof, root) {
					return false
				}
			}
			return true
		},
		genLeaves,
	))

	properties.TestingRun(t)
}
