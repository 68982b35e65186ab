package assemble

import (
	"fmt"
	"math"
	"sync"

	"dbgasm/vertex"
)

// Erode repeatedly removes every present tip vertex whose coverage is below
// the erosion threshold, until a full pass removes zero.
// Grounded on constructdbg.go's tip-removal loop in SmfyDBG and on the
// `erode:`-labeled convergence loop in abyss-paired-dbg.cc. Each pass
// follows a parallel-read, serialized-remove model: workers scan their
// share of the snapshot for candidates, then a single goroutine performs
// the actual RemoveVertex/Cleanup barrier.
func Erode(ctx *Context) (removed int, err error) {
	if math.IsInf(ctx.Config.Erode, 1) {
		return 0, nil
	}
	threshold := ctx.erosionThreshold()
	total := 0
	for {
		if ctx.Cancel.Cancelled() {
			return total, CancelledError{}
		}
		n := erodeOnePass(ctx.Store, threshold, ctx.Workers)
		total += n
		if n == 0 {
			break
		}
	}
	// The source re-confirms convergence with an assertion that a pass
	// immediately following the converged loop removes zero. Kept here as a panic rather than silently re-looping,
	// so a violation surfaces instead of masking a convergence bug.
	if n := erodeOnePass(ctx.Store, threshold, ctx.Workers); n != 0 {
		panic(fmt.Sprintf("assemble: erode did not converge, %d additional removals after convergence", n))
	}
	ctx.Telemetry.Record(telemetryEvent("erode", map[string]any{"removed": total}))
	return total, nil
}

func erodeOnePass(s *vertex.Store, threshold uint32, workers int) int {
	entries := s.Iterate()
	if len(entries) == 0 {
		return 0
	}
	candidates := scanParallel(entries, workers, func(e vertex.Entry) bool {
		return e.Rec.IsTip() && e.Rec.Coverage() < threshold
	})
	for _, r := range candidates {
		vertex.RemoveVertex(s, r)
	}
	s.Cleanup()
	return len(candidates)
}

// scanParallel partitions entries across workers goroutines, applying pred
// to each and collecting the entries for which it returns true: a private
// removal set per worker, merged under a barrier. The merge itself (the for
// loop that appends worker-local slices) runs back on the caller's
// goroutine, so no locking is needed for the merge.
func scanParallel(entries []vertex.Entry, workers int, pred func(vertex.Entry) bool) []*vertex.Record {
	if workers < 1 {
		workers = 1
	}
	chunk := (len(entries) + workers - 1) / workers
	results := make([][]*vertex.Record, workers)
	var wg sync.WaitGroup
	wi := 0
	for start := 0; start < len(entries); start += chunk {
		end := start + chunk
		if end > len(entries) {
			end = len(entries)
		}
		wg.Add(1)
		go func(idx int, part []vertex.Entry) {
			defer wg.Done()
			var local []*vertex.Record
			for _, e := range part {
				if pred(e) {
					local = append(local, e.Rec)
				}
			}
			results[idx] = local
		}(wi, entries[start:end])
		wi++
	}
	wg.Wait()
	var out []*vertex.Record
	for _, r := range results {
		out = append(out, r...)
	}
	return out
}

// ErodeStranded is the per-strand variant: a tip is eroded only if its
// orientation-specific multiplicity (not the fwd+rev sum) falls below
// ctx.Config.ErodeStrand.
func ErodeStranded(ctx *Context) (removed int, err error) {
	if ctx.Config.ErodeStrand <= 0 {
		return 0, nil
	}
	threshold := uint32(ctx.Config.ErodeStrand)
	total := 0
	for {
		if ctx.Cancel.Cancelled() {
			return total, CancelledError{}
		}
		n := erodeStrandedOnePass(ctx.Store, threshold, ctx.Workers)
		total += n
		if n == 0 {
			break
		}
	}
	return total, nil
}

func erodeStrandedOnePass(s *vertex.Store, threshold uint32, workers int) int {
	entries := s.Iterate()
	if len(entries) == 0 {
		return 0
	}
	candidates := scanParallel(entries, workers, func(e vertex.Entry) bool {
		if !e.Rec.IsTip() {
			return false
		}
		fwd, rev := e.Rec.Multiplicity()
		return fwd < threshold || rev < threshold
	})
	for _, r := range candidates {
		vertex.RemoveVertex(s, r)
	}
	s.Cleanup()
	return len(candidates)
}
