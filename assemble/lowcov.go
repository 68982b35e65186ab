package assemble

import (
	"dbgasm/kmer"
	"dbgasm/vertex"
)

// LowCoverageFilter removes every vertex on a non-ambiguous maximal path
// whose mean multiplicity falls below ctx.Thresholds.Contig.
// Grounded on constructdbg.go's per-node in/out-degree scan in SmfyDBG
// and removeLowCoverageContigs/markAmbiguous. Returns (removed,
// didFilter): didFilter is false when the cutoff is disabled (<= 0),
// letting the scheduler know a filter round did not actually run.
func LowCoverageFilter(ctx *Context) (removed int, didFilter bool, err error) {
	if ctx.Thresholds.Contig <= 0 {
		return 0, false, nil
	}
	if ctx.Cancel.Cancelled() {
		return 0, true, CancelledError{}
	}
	s := ctx.Store

	// Pass 1: mark every ambiguous vertex as a split point. The path walks
	// below stop at ambiguous vertices by checking IsAmbiguous directly,
	// not by reading this mark.
	for _, e := range s.Iterate() {
		if e.Rec.IsAmbiguous() {
			e.Rec.SetFlag(vertex.FlagSeen)
		}
	}

	// Pass 2: walk each non-ambiguous maximal path exactly once.
	visited := make(map[string]bool)
	count := 0
	for _, e := range s.Iterate() {
		key := e.Kmer.Key()
		if visited[key] || e.Rec.IsAmbiguous() {
			continue
		}
		path := maximalNonAmbiguousPath(s, e.Rec, visited)
		if len(path) == 0 {
			continue
		}
		if meanCoverage(path) < ctx.Thresholds.Contig {
			for _, v := range path {
				vertex.RemoveVertex(s, v)
				count++
			}
		}
	}

	for _, e := range s.Iterate() {
		e.Rec.ClearFlag(vertex.FlagSeen)
	}
	s.Cleanup()
	ctx.Telemetry.Record(telemetryEvent("lowcov", map[string]any{"removed": count}))
	return count, true, nil
}

func meanCoverage(path []*vertex.Record) float64 {
	if len(path) == 0 {
		return 0
	}
	var sum uint64
	for _, v := range path {
		sum += uint64(v.Coverage())
	}
	return float64(sum) / float64(len(path))
}

// maximalNonAmbiguousPath extends outward from start in both directions
// while the next vertex is present, not ambiguous, and not already visited,
// marking every member in visited as it goes.
func maximalNonAmbiguousPath(s *vertex.Store, start *vertex.Record, visited map[string]bool) []*vertex.Record {
	path := []*vertex.Record{start}
	visited[start.Kmer.Key()] = true

	extend := func(dir kmer.Direction, prepend bool) {
		cur := start
		for {
			if cur.OutDegree(dir) != 1 {
				return
			}
			next := soleNeighbor(s, cur, dir)
			if next == nil || next.IsAmbiguous() {
				return
			}
			key := next.Kmer.Key()
			if visited[key] {
				return
			}
			visited[key] = true
			if prepend {
				path = append([]*vertex.Record{next}, path...)
			} else {
				path = append(path, next)
			}
			cur = next
		}
	}
	extend(kmer.Sense, false)
	extend(kmer.Antisense, true)
	return path
}
