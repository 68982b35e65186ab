package assemble

import (
	"fmt"

	"dbgasm/kmer"
	"dbgasm/vertex"
)

// Contig is one emitted contig: id, sequence, length, and coverage.
type Contig struct {
	ID       string
	Sequence string
	Length   int
	Coverage uint64
}

// ContigSink accepts Contig records; an implementer wires a FASTA
// serialization on top (one header line `>id len coverage`, wrapped
// sequence).
type ContigSink interface {
	Record(Contig)
}

// ErrAssemblyEmpty is returned by Walk when zero contigs were assembled.
var ErrAssemblyEmpty = fmt.Errorf("assemble: zero contigs assembled")

// Walk is the final pass. Preconditions: adjacency is current
// and ambiguous vertices are marked (PopBubbles/LowCoverageFilter having
// already run). A contig is the maximal path starting at any non-visited
// vertex, extending in both directions while the next vertex is present,
// unvisited, and unambiguously reachable (single predecessor and single
// successor along the walk); an ambiguous vertex terminates the walk before
// being consumed. Grounded on AssemblyAlgorithms::assemble and
// constructdbg.go's ambiguous-node marking (SetProcessFlag-equivalent
// fields on DBGNode).
func Walk(ctx *Context, sink ContigSink) (count int, err error) {
	s := ctx.Store
	visited := make(map[string]bool)
	n := 0
	for _, e := range s.Iterate() {
		if ctx.Cancel.Cancelled() {
			return n, CancelledError{}
		}
		key := e.Kmer.Key()
		if visited[key] {
			continue
		}
		path := walkContig(s, e.Rec, visited)
		n++
		contig := Contig{
			ID:       fmt.Sprintf("contig%d", n),
			Sequence: assembleSequence(path),
			Length:   len(path),
			Coverage: sumCoverage(path),
		}
		if sink != nil {
			sink.Record(contig)
		}
	}
	ctx.Telemetry.Record(telemetryEvent("walk", map[string]any{"contigs": n}))
	if n == 0 {
		return 0, ErrAssemblyEmpty
	}
	return n, nil
}

// walkContig extends from start in both directions while the next vertex
// is present, unvisited, and reachable via a single predecessor/successor
// pair (i.e. neither endpoint of the step is ambiguous). An ambiguous
// vertex is never added to the path — the walk stops one vertex short of
// it, leaving it to be shared by whichever other contigs reach it via its
// other branches.
func walkContig(s *vertex.Store, start *vertex.Record, visited map[string]bool) []*vertex.Record {
	path := []*vertex.Record{start}
	visited[start.Kmer.Key()] = true

	if start.IsAmbiguous() {
		return path
	}

	extend := func(dir kmer.Direction, prepend bool) {
		cur := start
		for {
			if cur.IsAmbiguous() || cur.OutDegree(dir) != 1 {
				return
			}
			next := soleNeighbor(s, cur, dir)
			if next == nil {
				return
			}
			key := next.Kmer.Key()
			if visited[key] {
				return
			}
			if next.IsAmbiguous() {
				// The ambiguous vertex terminates the walk before being
				// consumed; it remains unvisited for other contigs.
				return
			}
			// Require a single predecessor too: next must point back at
			// cur uniquely in the opposite direction.
			if next.OutDegree(oppositeDir(dir)) != 1 {
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

func sumCoverage(path []*vertex.Record) uint64 {
	var sum uint64
	for _, v := range path {
		sum += uint64(v.Coverage())
	}
	return sum
}

// assembleSequence reconstructs the contig's sequence by overlapping
// consecutive k-mers by k-1 bases. Each vertex stores only its canonical
// k-mer, which may be the reverse complement of the orientation the walk
// actually traversed, so the path's starting orientation is arbitrary (one
// contig's sequence and its reverse complement are equally valid) and every
// subsequent vertex's orientation is resolved by whichever of it or its
// reverse complement overlaps the accumulated suffix (see
// reconstructSequence).
func assembleSequence(path []*vertex.Record) string {
	if len(path) == 0 {
		return ""
	}
	return reconstructSequence(path[0].Kmer, path)
}

// reconstructSequence builds a contig/branch sequence from a path of
// vertices given the already-resolved orientation of path[0] (first). Each
// subsequent vertex contributes its last base in whichever orientation (its
// stored canonical form or that form's reverse complement) overlaps the
// accumulated suffix by k-1 bases — exactly the ambiguity introduced by the
// store keying on canonical k-mers rather than the walk's own orientation.
func reconstructSequence(first kmer.Kmer, path []*vertex.Record) string {
	k := first.K()
	out := []byte(first.Decode())
	for i := 1; i < len(path); i++ {
		suffix := string(out[len(out)-(k-1):])
		fwd := path[i].Kmer.Decode()
		if fwd[:k-1] == suffix {
			out = append(out, fwd[k-1])
			continue
		}
		rc := path[i].Kmer.ReverseComplement().Decode()
		if rc[:k-1] == suffix {
			out = append(out, rc[k-1])
			continue
		}
		// A valid walk always overlaps in one of the two orientations;
		// this is reached only if an earlier phase left adjacency
		// inconsistent with the store, which is a programming error, not
		// a data error. Fall back to the canonical form to keep output
		// deterministic rather than panicking mid-walk.
		out = append(out, fwd[k-1])
	}
	return string(out)
}
