package merkle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kaizencycle/hive-ledger/pkg/canonical"
)

func leaf(t *testing.T, s string) string {
	t.Helper()
	return canonical.HashText(s)
}

func TestRootEmpty(t *testing.T) {
	assert.Equal(t, EmptyRoot, Root(nil))
	assert.Equal(t, EmptyRoot, Root([]string{}))
}

func TestRootSingleLeaf(t *testing.T) {
	h := leaf(t, "only")
	assert.Equal(t, h, Root([]string{h}))
}

func TestRootTwoLeaves(t *testing.T) {
	a, b := leaf(t, "a"), leaf(t, "b")
	// Interior nodes hash the text concatenation of the hex digests.
	assert.Equal(t, canonical.HashText(a+b), Root([]string{a, b}))
}

func TestRootOddCountDuplicatesLast(t *testing.T) {
	a, b, c := leaf(t, "a"), leaf(t, "b"), leaf(t, "c")
	n1 := canonical.HashText(a + b)
	n2 := canonical.HashText(c + c)
	assert.Equal(t, canonical.HashText(n1+n2), Root([]string{a, b, c}))
}

func TestRootOrderSignificant(t *testing.T) {
	a, b := leaf(t, "a"), leaf(t, "b")
	assert.NotEqual(t, Root([]string{a, b}), Root([]string{b, a}))
}

func TestRootCaseInsensitiveInput(t *testing.T) {
	a, b := leaf(t, "a"), leaf(t, "b")
	upper := []string{"ABCDEF" + a[6:], b}
	lower := []string{"abcdef" + a[6:], b}
	assert.Equal(t, Root(lower), Root(upper))
}

func TestBuildProofVerifies(t *testing.T) {
	leaves := []string{leaf(t, "seed"), leaf(t, "s1"), leaf(t, "s2"), leaf(t, "s3"), leaf(t, "seal")}
	root := Root(leaves)
	for idx := range leaves {
		proof, ok := BuildProof(leaves, idx)
		require.True(t, ok)
		assert.Equal(t, root, proof.Root)
		assert.True(t, VerifyProof(proof, root), "proof for leaf %d", idx)
	}
}

func TestBuildProofOutOfRange(t *testing.T) {
	leaves := []string{leaf(t, "x")}
	_, ok := BuildProof(leaves, -1)
	assert.False(t, ok)
	_, ok = BuildProof(leaves, 1)
	assert.False(t, ok)
}

func TestVerifyProofRejectsTamper(t *testing.T) {
	leaves := []string{leaf(t, "a"), leaf(t, "b"), leaf(t, "c")}
	root := Root(leaves)

	proof, ok := BuildProof(leaves, 1)
	require.True(t, ok)

	tampered := proof
	tampered.LeafHash = leaf(t, "evil")
	assert.False(t, VerifyProof(tampered, root))

	wrongRoot := leaf(t, "other-root")
	assert.False(t, VerifyProof(proof, wrongRoot))
}

func TestLeafIsCanonicalHash(t *testing.T) {
	record := map[string]interface{}{"type": "sweep", "note": "n"}
	want, err := canonical.Hash(record)
	require.NoError(t, err)
	got, err := Leaf(record)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
