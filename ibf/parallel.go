package ibf

import "sync"

// BuildParallel constructs an IBF with the given shape by sharding elems
// across workers goroutines, each accumulating an independent IBF before the
// shards are summed cell-wise into the result. It is a direct reworking of
// the blockchain store's fibonacci-checkpoint sync pipeline's
// producer/worker pattern, adapted to a computation that happens to be
// embarrassingly parallel for a different reason: IBF encoding is additive
// per cell, so partitioning the input set and summing the partial results is
// exact, not approximate.
//
// The library's core algebra has no internal concurrency of its own (per
// design, peeling is fast and serial-friendly); this helper exists for
// callers encoding very large element sets where the sharding pays for
// itself.
func BuildParallel[T Element[T]](m, k, workers int, elems []T) *IBF[T] {
	if len(elems) == 0 {
		return NewWithHashCount[T](m, k)
	}
	if workers < 1 {
		workers = 1
	}
	if workers > len(elems) {
		workers = len(elems)
	}

	shardSize := (len(elems) + workers - 1) / workers
	shards := make([]*IBF[T], workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		lo := w * shardSize
		hi := lo + shardSize
		if lo > len(elems) {
			lo = len(elems)
		}
		if hi > len(elems) {
			hi = len(elems)
		}
		wg.Add(1)
		go func(idx, lo, hi int) {
			defer wg.Done()
			shard := NewWithHashCount[T](m, k)
			for _, e := range elems[lo:hi] {
				shard.Encode(e)
			}
			shards[idx] = shard
		}(w, lo, hi)
	}
	wg.Wait()

	out := NewWithHashCount[T](m, k)
	for _, shard := range shards {
		out.addAll(shard)
	}
	return out
}
