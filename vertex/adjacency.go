package vertex

import (
	"runtime"
	"sync"

	"dbgasm/kmer"
)

// BuildAdjacency populates every present vertex's out[Sense]/out[Antisense]
// bitsets from vertex existence: for each present v and each of
// the 8 possible neighbors (4 outgoing bases x 2 directions), look up the
// canonical form of the candidate and set the bit if it exists.
//
// Grounded on constructdbg.go's paraGenerateDBGEdges/GetEdges sweep over
// candidate bases per node, generalized from an edge-centric unitig graph
// back to a one-bit-per-base vertex adjacency model. Runs with `workers`
// goroutines partitioning the vertex snapshot for a parallel read-modify
// pass: each worker only ever writes its own vertex's edges field, so
// there is no cross-goroutine contention to serialize.
func BuildAdjacency(s *Store, workers int) {
	if workers < 1 {
		workers = 1
	}
	entries := s.Iterate()
	if len(entries) == 0 {
		return
	}
	chunk := (len(entries) + workers - 1) / workers
	var wg sync.WaitGroup
	for start := 0; start < len(entries); start += chunk {
		end := start + chunk
		if end > len(entries) {
			end = len(entries)
		}
		wg.Add(1)
		go func(part []Entry) {
			defer wg.Done()
			for _, e := range part {
				buildOneVertex(s, e.Rec)
			}
		}(entries[start:end])
	}
	wg.Wait()
}

func buildOneVertex(s *Store, r *Record) {
	for _, dir := range [2]kmer.Direction{kmer.Sense, kmer.Antisense} {
		for _, cand := range r.Kmer.Neighbors(dir) {
			canon, _ := cand.Kmer.Canonical()
			if v, ok := s.Get(canon); ok && v.Present() {
				r.SetEdgeBit(dir, cand.Base, true)
			}
		}
	}
}

// DefaultWorkers returns a sensible worker count for adjacency/removal
// phases, sizing the goroutine pool off runtime.NumCPU the way
// constructcf.go's ConcurrentConstructCF does.
func DefaultWorkers() int {
	n := runtime.NumCPU()
	if n < 1 {
		return 1
	}
	return n
}

// RemoveVertex tombstones v and clears the edge bit(s) in its neighbors
// that pointed at it before it is removed. Because two canonical
// vertices can be related by either strand, the bit to clear is found by
// brute-force symmetry check across the neighbor's own 8 candidates rather
// than by a closed-form inverse-shift (see DESIGN.md open-question note),
// which keeps correctness independent of which strand happened to be
// canonical for either vertex.
func RemoveVertex(s *Store, v *Record) {
	for _, dir := range [2]kmer.Direction{kmer.Sense, kmer.Antisense} {
		bits := v.OutBitset(dir)
		for base := byte(0); base < kmer.BaseTypeNum; base++ {
			if bits&(1<<base) == 0 {
				continue
			}
			var cand kmer.Kmer
			if dir == kmer.Sense {
				cand = v.Kmer.ShiftLeft(base)
			} else {
				cand = v.Kmer.ShiftRight(base)
			}
			canon, _ := cand.Canonical()
			neighbor, ok := s.Get(canon)
			if !ok {
				continue
			}
			clearBitsPointingTo(neighbor, v.Kmer)
		}
	}
	s.Remove(v.Kmer)
}

func clearBitsPointingTo(neighbor *Record, target kmer.Kmer) {
	for _, dir := range [2]kmer.Direction{kmer.Sense, kmer.Antisense} {
		bits := neighbor.OutBitset(dir)
		for base := byte(0); base < kmer.BaseTypeNum; base++ {
			if bits&(1<<base) == 0 {
				continue
			}
			var cand kmer.Kmer
			if dir == kmer.Sense {
				cand = neighbor.Kmer.ShiftLeft(base)
			} else {
				cand = neighbor.Kmer.ShiftRight(base)
			}
			canon, _ := cand.Canonical()
			if canon.Equal(target) {
				neighbor.SetEdgeBit(dir, base, false)
			}
		}
	}
}
