package ibf

import "github.com/swarmguard/setrecon/hashing"

// DefaultHashCount is the number of distinct hash positions (k) an IBF
// indexes each element into when not specified explicitly, per the
// construction's reference parameterization.
const DefaultHashCount = 3

// IBF is a fixed-length array of Cells plus the two shape scalars (m, k)
// that determine how elements are indexed into it. Two IBFs can only be
// subtracted or compared if their shapes match exactly.
type IBF[T Element[T]] struct {
	cells []Cell[T]
	m     int
	k     int
}

// New builds an empty IBF with m buckets and the default hash count.
func New[T Element[T]](m int) *IBF[T] {
	return NewWithHashCount[T](m, DefaultHashCount)
}

// NewWithHashCount builds an empty IBF with m buckets and k hash positions
// per element. Both m and k are immutable for the lifetime of the IBF and
// MUST be shared verbatim between two peers that intend to reconcile.
func NewWithHashCount[T Element[T]](m, k int) *IBF[T] {
	return &IBF[T]{cells: make([]Cell[T], m), m: m, k: k}
}

// FromCells reconstructs an IBF from an already-populated cell slice, used
// by wire decoders. k must match the number of hash positions the cells
// were originally encoded with; the caller is responsible for that
// invariant since the cells alone don't carry it.
func FromCells[T Element[T]](cells []Cell[T], k int) *IBF[T] {
	return &IBF[T]{cells: cells, m: len(cells), k: k}
}

// M returns the bucket count.
func (f *IBF[T]) M() int { return f.m }

// K returns the hash count.
func (f *IBF[T]) K() int { return f.k }

// CellAt returns a copy of the cell at index i, for serialization and
// diagnostics.
func (f *IBF[T]) CellAt(i int) Cell[T] { return f.cells[i] }

// index computes idx(e, i) = H_idx(e, i) mod m.
func (f *IBF[T]) index(e T, i int) int {
	return int(hashing.Idx(e.Bytes(), uint64(i)) % uint64(f.m))
}

// Encode folds element e into the k buckets it hashes to. If two of the k
// positions collide for this element, both encodes land on the same cell
// and XOR away to nothing but for the signed count, which is the behavior
// the construction tolerates rather than avoids (deduplicating the index
// list would leave cell sums in a state both peers can no longer agree
// on, since it'd depend on how many hash positions happened to collide).
func (f *IBF[T]) Encode(e T) {
	for i := 0; i < f.k; i++ {
		f.cells[f.index(e, i)].Encode(e)
	}
}

// Subtract returns a new IBF, of the same shape, whose cell j is
// self.cells[j] - other.cells[j]. Neither operand is mutated. Fails with
// ErrShapeMismatch if the two IBFs were not built with the same m and k.
func (f *IBF[T]) Subtract(other *IBF[T]) (*IBF[T], error) {
	if f.m != other.m || f.k != other.k {
		return nil, ErrShapeMismatch
	}
	cells := make([]Cell[T], f.m)
	for i := range cells {
		cells[i] = f.cells[i].Sub(other.cells[i])
	}
	return &IBF[T]{cells: cells, m: f.m, k: f.k}, nil
}

// addAll sums another same-shaped IBF's cells into f in place. It underlies
// BuildParallel: independently built partial IBFs over disjoint element
// subsets sum, cell-wise, to the same IBF a sequential Encode pass over the
// full set would produce, since Encode only ever adds a contribution to a
// bucket.
func (f *IBF[T]) addAll(other *IBF[T]) {
	for i := range f.cells {
		f.cells[i] = f.cells[i].Add(other.cells[i])
	}
}

// Decode runs the peeling decoder to completion, consuming f (its cells are
// mutated as elements are extracted; a caller that still needs the original
// should Subtract into a fresh IBF first or keep its own copy upstream).
//
// Algorithm: repeatedly find any pure cell, record the Side it decodes to,
// then remove that element's contribution from every one of the k cells it
// was encoded into (which includes canceling the pure cell against itself).
// Each step removes one recovered element's contribution from all k of its
// cells, so the loop runs at most |S_A △ S_B| times. If the loop runs out of pure cells while
// residue remains, decoding is reported as a total failure — a partial
// result would mean undetected elements remain, which the caller has no way
// to tell apart from "encoded and decoded correctly."
func (f *IBF[T]) Decode() ([]Side[T], error) {
	var out []Side[T]
	for {
		pureIdx := -1
		for i := range f.cells {
			if f.cells[i].IsPure() {
				pureIdx = i
				break
			}
		}
		if pureIdx == -1 {
			break
		}
		pure := f.cells[pureIdx]
		side, err := pure.Decode()
		if err != nil {
			// Unreachable: pureIdx was just verified pure.
			return nil, err
		}
		out = append(out, side)
		for i := 0; i < f.k; i++ {
			j := f.index(side.Elem, i)
			f.cells[j] = f.cells[j].Sub(pure)
		}
	}
	remaining := 0
	for i := range f.cells {
		if !f.cells[i].IsEmpty() {
			remaining++
		}
	}
	if remaining > 0 {
		return nil, &UndecodableError{Remaining: remaining}
	}
	return out, nil
}
