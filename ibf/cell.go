package ibf

import "github.com/swarmguard/setrecon/hashing"

// Cell is one bucket of an IBF: an XOR sum of the elements encoded into it,
// an XOR sum of their keyed checksums, and a signed count of how many
// encodes (minus decodes) have touched it. Pairs of identical contributions
// XOR away to nothing, which is what makes a cell invertible: once only one
// element's contribution survives, the cell is "pure" and that element can
// be read back out.
type Cell[T Element[T]] struct {
	idSum   T
	hashSum hashing.U128
	count   int32
}

// CellFromParts reconstructs a Cell from its three invariant fields, used by
// wire decoders. It does not validate the fields are internally consistent
// (e.g. that hashSum actually matches idSum) since a non-pure cell is a
// perfectly ordinary intermediate state.
func CellFromParts[T Element[T]](idSum T, hashSum hashing.U128, count int32) Cell[T] {
	return Cell[T]{idSum: idSum, hashSum: hashSum, count: count}
}

// IDSum returns the cell's running XOR of encoded elements.
func (c Cell[T]) IDSum() T { return c.idSum }

// HashSum returns the cell's running XOR of H_elem(e) over encoded elements.
func (c Cell[T]) HashSum() hashing.U128 { return c.hashSum }

// Count returns the cell's signed multiplicity.
func (c Cell[T]) Count() int32 { return c.count }

// Encode folds element e into the cell: XOR its value and checksum in, and
// increment the count. Encoding the same element into a cell twice cancels
// both fields back to their prior values, which is exactly how duplicate
// hash-index collisions are tolerated at the IBF level.
func (c *Cell[T]) Encode(e T) {
	c.idSum = c.idSum.Xor(e)
	c.hashSum = c.hashSum.Xor(hashing.Elem(e.Bytes()))
	c.count++
}

// IsPure reports whether the cell currently holds the contribution of
// exactly one element: |count| == 1 and the checksum matches H_elem of the
// surviving id_sum. The checksum guards against a cell that merely has
// |count| == 1 by coincidence after several elements' contributions
// happened to cancel.
func (c Cell[T]) IsPure() bool {
	return (c.count == 1 || c.count == -1) && c.hashSum == hashing.Elem(c.idSum.Bytes())
}

// IsEmpty reports whether the cell holds no residual contribution at all.
// All three fields must be checked: count == 0 alone is insufficient once
// cancellations have happened, since id_sum/hash_sum could in principle
// still carry residue from a bug elsewhere (and checking all three costs
// nothing).
func (c Cell[T]) IsEmpty() bool {
	var zero T
	return c.count == 0 && c.hashSum.IsZero() && c.idSum == zero
}

// Decode extracts the Side held by a pure cell. Called on a non-pure cell it
// returns errImpureCell; the peeling loop only ever calls it after IsPure
// returns true, so that error never surfaces from IBF.Decode.
func (c Cell[T]) Decode() (Side[T], error) {
	if !c.IsPure() {
		return Side[T]{}, errImpureCell
	}
	if c.count == 1 {
		return Left(c.idSum), nil
	}
	return Right(c.idSum), nil
}

// Add combines two cells: XOR on the sums (XOR is its own inverse so this
// works the same whichever cell role each played), arithmetic addition on
// the count. Used to sum independently built partial IBFs (see
// BuildParallel) back into a single shape-compatible IBF.
func (c Cell[T]) Add(rhs Cell[T]) Cell[T] {
	return Cell[T]{
		idSum:   c.idSum.Xor(rhs.idSum),
		hashSum: c.hashSum.Xor(rhs.hashSum),
		count:   c.count + rhs.count,
	}
}

// Sub combines two cells the other direction: same XOR on the sums,
// arithmetic subtraction on the count. This is what IBF.Subtract applies
// cell-wise, and what the peeling decoder applies to remove a recovered
// element's contribution from the other buckets it touched.
func (c Cell[T]) Sub(rhs Cell[T]) Cell[T] {
	return Cell[T]{
		idSum:   c.idSum.Xor(rhs.idSum),
		hashSum: c.hashSum.Xor(rhs.hashSum),
		count:   c.count - rhs.count,
	}
}
