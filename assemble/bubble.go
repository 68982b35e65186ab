package assemble

import (
	"dbgasm/kmer"
	"dbgasm/vertex"
)

// Bubble is one popped-bubble record emitted to the caller-provided sink.
type Bubble struct {
	Source, Sink     string
	KeptSeq, DropSeq string
	KeptLen, DropLen int
}

// BubbleSink accepts Bubble records as they are popped.
type BubbleSink interface {
	Record(Bubble)
}

// branch is one walked path from a shared source vertex, recorded while
// searching for a sibling branch that rejoins at the same sink.
type branch struct {
	base    byte // the out-edge taken from the source
	path    []*vertex.Record
	first   kmer.Kmer // path[0]'s orientation as actually reached from source
	meetKey string
}

// PopBubbles finds pairs of internally disjoint simple paths of length <=
// ctx.BubbleLen() sharing a source and a sink, keeps the higher
// mean-coverage branch, and tombstones the other. Grounded on
// constructdbg.go's GetBubblePathArr/GetNextPathArr: a cumulative-length
// bounded dual-branch walk with a lexicographic tie-break.
func PopBubbles(ctx *Context, sink BubbleSink) (popped int, err error) {
	bound := ctx.BubbleLen()
	if bound <= 0 {
		return 0, nil
	}
	s := ctx.Store
	count := 0
	for _, e := range s.Iterate() {
		if ctx.Cancel.Cancelled() {
			return count, CancelledError{}
		}
		if !e.Rec.IsAmbiguous() {
			continue
		}
		for _, dir := range [2]kmer.Direction{kmer.Sense, kmer.Antisense} {
			if e.Rec.OutDegree(dir) < 2 {
				continue
			}
			if popBubblesFrom(s, e.Rec, dir, bound, sink) {
				count++
			}
		}
	}
	ctx.Telemetry.Record(telemetryEvent("bubble", map[string]any{"popped": count}))
	return count, nil
}

// popBubblesFrom walks every branch out of source in dir up to bound
// vertices, groups branches that meet at a common vertex, and resolves the
// first such pair found. Returns true if a bubble was popped.
func popBubblesFrom(s *vertex.Store, source *vertex.Record, dir kmer.Direction, bound int, sink BubbleSink) bool {
	bits := source.OutBitset(dir)
	var branches []branch
	for base := byte(0); base < kmer.BaseTypeNum; base++ {
		if bits&(1<<base) == 0 {
			continue
		}
		b, ok := walkBranch(s, source, dir, base, bound)
		if !ok {
			// re-entered itself or exceeded the bound before meeting a
			// sink: not a poppable bubble.
			continue
		}
		branches = append(branches, b)
	}
	if len(branches) < 2 {
		return false
	}
	byMeet := make(map[string][]branch)
	for _, b := range branches {
		byMeet[b.meetKey] = append(byMeet[b.meetKey], b)
	}
	for _, group := range byMeet {
		if len(group) < 2 {
			continue
		}
		resolveBubble(s, source, dir, group[0], group[1], sink)
		return true
	}
	return false
}

// walkBranch follows the single-predecessor chain starting with base until
// it reaches a vertex with in-degree > 1 in dir's opposing direction (a
// sink candidate) or exceeds bound. ok is false if the branch re-enters
// itself (revisits a vertex) or runs past bound first.
func walkBranch(s *vertex.Store, source *vertex.Record, dir kmer.Direction, base byte, bound int) (branch, bool) {
	var cand kmer.Kmer
	if dir == kmer.Sense {
		cand = source.Kmer.ShiftLeft(base)
	} else {
		cand = source.Kmer.ShiftRight(base)
	}
	canon, _ := cand.Canonical()
	first, ok := s.Get(canon)
	if !ok {
		return branch{}, false
	}

	visited := map[string]bool{source.Kmer.Key(): true}
	path := []*vertex.Record{first}
	visited[first.Kmer.Key()] = true
	cur := first
	back := oppositeDir(dir)

	for step := 1; step < bound; step++ {
		if cur.OutDegree(back) > 1 {
			// sink reached: branch up to and including cur.
			return branch{base: base, path: path, first: cand, meetKey: cur.Kmer.Key()}, true
		}
		if cur.OutDegree(dir) != 1 {
			return branch{}, false
		}
		next := soleNeighbor(s, cur, dir)
		if next == nil {
			return branch{}, false
		}
		if visited[next.Kmer.Key()] {
			return branch{}, false
		}
		visited[next.Kmer.Key()] = true
		path = append(path, next)
		cur = next
	}
	if cur.OutDegree(back) > 1 {
		return branch{base: base, path: path, first: cand, meetKey: cur.Kmer.Key()}, true
	}
	return branch{}, false
}

func resolveBubble(s *vertex.Store, source *vertex.Record, dir kmer.Direction, a, b branch, sink BubbleSink) {
	kept, dropped := a, b
	switch {
	case meanCoverage(a.path) > meanCoverage(b.path):
		kept, dropped = a, b
	case meanCoverage(b.path) > meanCoverage(a.path):
		kept, dropped = b, a
	default:
		// tie: keep the lexicographically smaller interior sequence.
		if pathSequence(dropped) < pathSequence(kept) {
			kept, dropped = dropped, kept
		}
	}

	source.SetEdgeBit(dir, dropped.base, false)
	// Tombstone every interior vertex of the dropped branch except the
	// shared sink, which the kept branch still needs. RemoveVertex clears
	// the edge bits of any neighbor that pointed at each removed vertex,
	// including the sink's back-reference.
	sinkKey := dropped.meetKey
	for _, v := range dropped.path {
		if v.Kmer.Key() == sinkKey {
			continue
		}
		vertex.RemoveVertex(s, v)
	}

	if sink != nil {
		sink.Record(Bubble{
			Source:  source.Kmer.Decode(),
			Sink:    dropped.path[len(dropped.path)-1].Kmer.Decode(),
			KeptSeq: pathSequence(kept),
			DropSeq: pathSequence(dropped),
			KeptLen: len(kept.path),
			DropLen: len(dropped.path),
		})
	}
}

func pathSequence(b branch) string {
	return reconstructSequence(b.first, b.path)
}
