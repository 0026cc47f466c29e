package ibf

import "testing"

func TestBuildParallelMatchesSequential(t *testing.T) {
	elems := make([]Element128, 0, 200)
	for i := uint64(0); i < 200; i++ {
		elems = append(elems, ElementFromUint64(i))
	}

	sequential := New[Element128](400)
	for _, e := range elems {
		sequential.Encode(e)
	}

	parallel := BuildParallel[Element128](400, DefaultHashCount, 8, elems)

	empty := New[Element128](400)
	seqDiff, err := sequential.Subtract(empty)
	if err != nil {
		t.Fatalf("subtract: %v", err)
	}
	parDiff, err := parallel.Subtract(empty)
	if err != nil {
		t.Fatalf("subtract: %v", err)
	}

	seqSet, err := seqDiff.Decode()
	if err != nil {
		t.Fatalf("decode sequential: %v", err)
	}
	parSet, err := parDiff.Decode()
	if err != nil {
		t.Fatalf("decode parallel: %v", err)
	}

	if !equalStrs(sides(t, seqSet), sides(t, parSet)) {
		t.Fatalf("parallel build diverged from sequential build")
	}
}

func TestBuildParallelEmptyInput(t *testing.T) {
	f := BuildParallel[Element128](50, DefaultHashCount, 4, nil)
	got, err := f.Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty IBF to decode to nothing, got %v", got)
	}
}

func TestBuildParallelMoreWorkersThanElements(t *testing.T) {
	elems := []Element128{ElementFromUint64(1), ElementFromUint64(2)}
	f := BuildParallel[Element128](20, DefaultHashCount, 16, elems)
	got, err := f.Decode()
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 elements decoded, got %d: %v", len(got), got)
	}
}
