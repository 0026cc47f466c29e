// Package commitment provides a lightweight append-only Merkle accumulator
// used by peerstore to publish a tamper-evident root alongside a locally
// held element set. It is independent of the reconciliation algebra in
// package ibf: set reconciliation tells two peers what differs, a Merkle
// root lets either side prove what a set looked like at a point in time
// without the other peer having to trust it outright.
package commitment

import (
	"crypto/sha256"
	"errors"
)

// Hash is a 32-byte digest, either a leaf hash or an internal node hash.
type Hash [32]byte

// Tree is a sparse frontier accumulator: O(log n) memory, O(log n) time per
// append. frontier[i] holds the hash of a complete subtree of size 2^i, if
// one is currently pending; appending combines and carries the same way
// binary addition does.
type Tree struct {
	count    uint64
	frontier []Hash
}

// New returns an empty accumulator.
func New() *Tree {
	return &Tree{frontier: make([]Hash, 0, 32)}
}

// Append folds leaf into the accumulator and returns the new root.
func (t *Tree) Append(leaf []byte) Hash {
	h := Hash(sha256.Sum256(leaf))
	idx := 0
	for {
		if idx >= len(t.frontier) {
			t.frontier = append(t.frontier, h)
			break
		}
		if isEmptySlot(t.frontier[idx]) {
			t.frontier[idx] = h
			break
		}
		combined := combine(t.frontier[idx], h)
		t.frontier[idx] = Hash{}
		h = combined
		idx++
	}
	t.count++
	return t.Root()
}

// Count returns the number of leaves appended so far.
func (t *Tree) Count() uint64 { return t.count }

// Root recomputes the current accumulator root from its frontier: the
// non-empty peaks, folded low-to-high with the lowest-index peak seeding the
// accumulator directly rather than being combined against a vacuous zero
// hash, so a single-peak tree's root is exactly that peak's hash (the
// property VerifyProof relies on).
func (t *Tree) Root() Hash {
	var acc Hash
	seeded := false
	for i := range t.frontier {
		if isEmptySlot(t.frontier[i]) {
			continue
		}
		if !seeded {
			acc = t.frontier[i]
			seeded = true
			continue
		}
		acc = combine(t.frontier[i], acc)
	}
	return acc
}

func isEmptySlot(h Hash) bool {
	var zero Hash
	return h == zero
}

func combine(left, right Hash) Hash {
	var buf [64]byte
	copy(buf[:32], left[:])
	copy(buf[32:], right[:])
	return Hash(sha256.Sum256(buf[:]))
}

// VerifyProof checks a Merkle inclusion proof for leaf at index against
// root, folding sibling hashes up the tree according to index's bit
// pattern.
func VerifyProof(leaf []byte, index int, proof []Hash, root Hash) bool {
	current := Hash(sha256.Sum256(leaf))
	for i, sibling := range proof {
		if (index>>i)&1 == 0 {
			current = combine(current, sibling)
		} else {
			current = combine(sibling, current)
		}
	}
	return current == root
}

// GenerateProof returns the Merkle proof for the leaf at the given index.
// Not yet implemented: doing so without retaining full leaf history would
// require rebuilding from the frontier representation, which this
// accumulator intentionally doesn't keep.
func (t *Tree) GenerateProof(_ uint64) ([]Hash, error) {
	return nil, errors.New("commitment: proof generation requires retained leaf history, not implemented")
}
