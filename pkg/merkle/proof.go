package merkle

import "strings"

// InclusionProof lets an external verifier check that a single record hash is
// covered by a published day root without seeing the rest of the day.
type InclusionProof struct {
	LeafHash  string      `json:"leaf_hash"`
	Root      string      `json:"root"`
	ProofPath []ProofStep `json:"proof_path"`
}

// ProofStep is one level of the path from leaf to root. Side says which side
// the sibling sits on: "L" means sibling-left, current-right.
type ProofStep struct {
	Side        string `json:"side"`
	SiblingHash string `json:"sibling_hash"`
}

// BuildProof constructs the inclusion proof for the leaf at index idx.
// Returns false if idx is out of range.
func BuildProof(leaves []string, idx int) (InclusionProof, bool) {
	if idx < 0 || idx >= len(leaves) {
		return InclusionProof{}, false
	}
	layer := make([]string, len(leaves))
	for i, l := range leaves {
		layer[i] = strings.ToLower(l)
	}

	proof := InclusionProof{LeafHash: layer[idx], Root: Root(leaves)}
	pos := idx
	for len(layer) > 1 {
		sibling := pos ^ 1
		if sibling >= len(layer) {
			sibling = pos // odd count: paired with itself
		}
		side := "R"
		if sibling < pos {
			side = "L"
		}
		proof.ProofPath = append(proof.ProofPath, ProofStep{
			Side:        side,
			SiblingHash: layer[sibling],
		})

		next := make([]string, 0, (len(layer)+1)/2)
		for i := 0; i < len(layer); i += 2 {
			left := layer[i]
			right := left
			if i+1 < len(layer) {
				right = layer[i+1]
			}
			next = append(next, nodeHash(left, right))
		}
		layer = next
		pos /= 2
	}
	return proof, true
}

// VerifyProof replays the proof path with the same hex-concat convention as
// Root and compares the result to the expected root.
func VerifyProof(proof InclusionProof, expectedRoot string) bool {
	if expectedRoot != "" && !strings.EqualFold(proof.Root, expectedRoot) {
		return false
	}
	current := strings.ToLower(proof.LeafHash)
	for _, step := range proof.ProofPath {
		sibling := strings.ToLower(step.SiblingHash)
		if step.Side == "L" {
			current = nodeHash(sibling, current)
		} else {
			current = nodeHash(current, sibling)
		}
	}
	return strings.EqualFold(current, proof.Root)
}
