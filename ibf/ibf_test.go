package ibf

import (
	"sort"
	"testing"
)

func sides(t *testing.T, got []Side[Element128]) []string {
	t.Helper()
	out := make([]string, len(got))
	for i, s := range got {
		out[i] = s.String()
	}
	sort.Strings(out)
	return out
}

func encodeAll(f *IBF[Element128], vals ...uint64) {
	for _, v := range vals {
		f.Encode(ElementFromUint64(v))
	}
}

// E1 from the reconciliation properties: A = {10,20,30}, B = {10,33,42},
// m = 20, k = 3 decodes to {Left(20), Left(30), Right(33), Right(42)}.
func TestDecodeLiteralScenarioE1(t *testing.T) {
	left := New[Element128](20)
	right := New[Element128](20)
	encodeAll(left, 10, 20, 30)
	encodeAll(right, 10, 33, 42)

	diff, err := left.Subtract(right)
	if err != nil {
		t.Fatalf("subtract: %v", err)
	}
	got, err := diff.Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	want := []string{
		Left(ElementFromUint64(20)).String(),
		Left(ElementFromUint64(30)).String(),
		Right(ElementFromUint64(33)).String(),
		Right(ElementFromUint64(42)).String(),
	}
	sort.Strings(want)
	if gotStrs := sides(t, got); !equalStrs(gotStrs, want) {
		t.Fatalf("decode = %v, want %v", gotStrs, want)
	}
}

// E2: identical sets subtract and decode to the empty set, exactly,
// regardless of m.
func TestDecodeLiteralScenarioE2Identity(t *testing.T) {
	left := New[Element128](50)
	right := New[Element128](50)
	for i := uint64(1); i <= 1000; i++ {
		left.Encode(ElementFromUint64(i))
		right.Encode(ElementFromUint64(i))
	}
	diff, err := left.Subtract(right)
	if err != nil {
		t.Fatalf("subtract: %v", err)
	}
	got, err := diff.Decode()
	if err != nil {
		t.Fatalf("decode identical sets should always succeed: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty diff, got %v", got)
	}
}

// E3: one-sided difference against an empty set.
func TestDecodeLiteralScenarioE3(t *testing.T) {
	left := New[Element128](10)
	right := New[Element128](10)
	encodeAll(left, 1, 2)

	diff, err := left.Subtract(right)
	if err != nil {
		t.Fatalf("subtract: %v", err)
	}
	got, err := diff.Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{Left(ElementFromUint64(1)).String(), Left(ElementFromUint64(2)).String()}
	sort.Strings(want)
	if gotStrs := sides(t, got); !equalStrs(gotStrs, want) {
		t.Fatalf("decode = %v, want %v", gotStrs, want)
	}
}

// E5: an undersized IBF for the actual symmetric difference must fail
// cleanly, not silently partial-decode.
func TestDecodeLiteralScenarioE5Undecodable(t *testing.T) {
	left := New[Element128](10)
	right := New[Element128](10)
	for i := uint64(0); i < 100; i++ {
		left.Encode(ElementFromUint64(i))
	}
	for i := uint64(1000); i < 1100; i++ {
		right.Encode(ElementFromUint64(i))
	}
	diff, err := left.Subtract(right)
	if err != nil {
		t.Fatalf("subtract: %v", err)
	}
	if _, err := diff.Decode(); err == nil {
		t.Fatalf("expected Undecodable for a badly undersized IBF")
	} else if _, ok := err.(*UndecodableError); !ok {
		t.Fatalf("expected *UndecodableError, got %T: %v", err, err)
	}
}

// E6: shape mismatch must be surfaced, not silently tolerated.
func TestSubtractShapeMismatch(t *testing.T) {
	a := New[Element128](10)
	b := New[Element128](20)
	if _, err := a.Subtract(b); err != ErrShapeMismatch {
		t.Fatalf("expected ErrShapeMismatch, got %v", err)
	}

	c := NewWithHashCount[Element128](10, 3)
	d := NewWithHashCount[Element128](10, 4)
	if _, err := c.Subtract(d); err != ErrShapeMismatch {
		t.Fatalf("expected ErrShapeMismatch for differing k, got %v", err)
	}
}

func TestEncodeCommutesUnderPermutation(t *testing.T) {
	a := New[Element128](30)
	b := New[Element128](30)
	encodeAll(a, 5, 9, 14, 2, 77)
	encodeAll(b, 77, 2, 14, 9, 5)

	empty := New[Element128](30)
	diffA, err := a.Subtract(empty)
	if err != nil {
		t.Fatalf("subtract: %v", err)
	}
	diffB, err := b.Subtract(empty)
	if err != nil {
		t.Fatalf("subtract: %v", err)
	}
	gotA, err := diffA.Decode()
	if err != nil {
		t.Fatalf("decode a: %v", err)
	}
	gotB, err := diffB.Decode()
	if err != nil {
		t.Fatalf("decode b: %v", err)
	}
	if !equalStrs(sides(t, gotA), sides(t, gotB)) {
		t.Fatalf("encode order changed the decoded set: %v vs %v", gotA, gotB)
	}
}

func TestDecodeToleratesHashIndexCollisions(t *testing.T) {
	// A tiny IBF with k=3 all but guarantees some element hashes to the
	// same bucket twice; that must still decode correctly rather than
	// corrupt the cell.
	f := New[Element128](3)
	encodeAll(f, 1)
	got, err := f.Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	want := []string{Left(ElementFromUint64(1)).String()}
	if !equalStrs(sides(t, got), want) {
		t.Fatalf("decode = %v, want %v", got, want)
	}
}

func equalStrs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func BenchmarkEncodeDecode(b *testing.B) {
	for i := 0; i < b.N; i++ {
		f := New[Element128](200)
		for v := uint64(0); v < 50; v++ {
			f.Encode(ElementFromUint64(v))
		}
		empty := New[Element128](200)
		diff, err := f.Subtract(empty)
		if err != nil {
			b.Fatal(err)
		}
		if _, err := diff.Decode(); err != nil {
			b.Fatal(err)
		}
	}
}
