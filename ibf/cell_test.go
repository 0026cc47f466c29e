package ibf

import "testing"

func TestCellRoundTripSingleElement(t *testing.T) {
	var c Cell[Element128]
	c.Encode(ElementFromUint64(1))
	if !c.IsPure() {
		t.Fatalf("expected cell to be pure after single encode")
	}
	side, err := c.Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := Left(ElementFromUint64(1))
	if side != want {
		t.Fatalf("decode = %v, want %v", side, want)
	}
}

func TestCellSubtract(t *testing.T) {
	var b1, b2 Cell[Element128]
	b1.Encode(ElementFromUint64(2))
	b1.Encode(ElementFromUint64(2))
	b2.Encode(ElementFromUint64(1))

	left := b1.Sub(b2)
	side, err := left.Decode()
	if err != nil {
		t.Fatalf("decode b1-b2: %v", err)
	}
	if want := Left(ElementFromUint64(1)); side != want {
		t.Fatalf("b1-b2 decode = %v, want %v", side, want)
	}

	right := b2.Sub(b1)
	side, err = right.Decode()
	if err != nil {
		t.Fatalf("decode b2-b1: %v", err)
	}
	if want := Right(ElementFromUint64(1)); side != want {
		t.Fatalf("b2-b1 decode = %v, want %v", side, want)
	}
}

func TestCellImpure(t *testing.T) {
	var c Cell[Element128]
	c.Encode(ElementFromUint64(1))
	c.Encode(ElementFromUint64(2))
	if c.IsPure() {
		t.Fatalf("two distinct elements should not leave the cell pure")
	}
}

func TestCellImpureDisjointSubtraction(t *testing.T) {
	var b1, b2 Cell[Element128]
	b1.Encode(ElementFromUint64(1))
	b1.Encode(ElementFromUint64(2))
	b2.Encode(ElementFromUint64(3))
	if d := b1.Sub(b2); d.IsPure() {
		t.Fatalf("subtracting disjoint impure cells should not be pure")
	}
}

func TestCellIsEmptyChecksAllFields(t *testing.T) {
	var c Cell[Element128]
	if !c.IsEmpty() {
		t.Fatalf("zero-value cell should be empty")
	}
	c.Encode(ElementFromUint64(7))
	c.Encode(ElementFromUint64(7))
	// Two identical encodes cancel id_sum and hash_sum but leave count == 2.
	if c.IsEmpty() {
		t.Fatalf("count alone should not report empty once non-zero")
	}
}

func TestCellPuritySoundness(t *testing.T) {
	var c Cell[Element128]
	c.Encode(ElementFromUint64(42))
	c.Encode(ElementFromUint64(43))
	var other Cell[Element128]
	other.Encode(ElementFromUint64(43))
	c = c.Sub(other) // removes 43 again, leaving only 42 with count 1
	if !c.IsPure() {
		t.Fatalf("expected cell to settle pure after cancellation")
	}
	if _, err := c.Decode(); err != nil {
		t.Fatalf("IsPure implied Decode should succeed: %v", err)
	}
}

func TestCellAddIsInverseOfSub(t *testing.T) {
	var a, b Cell[Element128]
	a.Encode(ElementFromUint64(100))
	b.Encode(ElementFromUint64(200))

	diff := a.Sub(b)
	restored := diff.Add(b)
	if restored != a {
		t.Fatalf("a - b + b = %v, want %v", restored, a)
	}
}
