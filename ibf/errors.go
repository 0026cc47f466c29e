package ibf

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned when two IBFs or two strata estimators being
// subtracted/compared were not built with identical parameters (m, k, or L).
// It indicates caller error: peers must agree on shape out of band before
// reconciling.
var ErrShapeMismatch = errors.New("ibf: shape mismatch")

// errImpureCell signals that Cell.Decode was called on a cell that is not
// pure. The peeling decoder only ever calls Decode on cells it has already
// verified pure, so IBF.Decode never returns this error; only a direct call
// of Cell.Decode on a non-pure cell does.
var errImpureCell = errors.New("ibf: impure cell")

// UndecodableError is returned by IBF.Decode when peeling stalls with
// non-empty residue: the IBF was undersized for the actual symmetric
// difference. Remaining is the number of cells that were still non-empty
// when peeling gave up, a cheap signal for how much bigger the retry should
// be.
type UndecodableError struct {
	Remaining int
}

func (e *UndecodableError) Error() string {
	return fmt.Sprintf("ibf: undecodable: %d cell(s) remain non-empty after peeling", e.Remaining)
}
