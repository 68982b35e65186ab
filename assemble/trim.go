package assemble

import (
	"sync"

	"github.com/bits-and-blooms/bitset"

	"dbgasm/kmer"
	"dbgasm/vertex"
)

// Trim removes branches shorter than ctx.Config.trimLen() that terminate in
// a dead end. Grounded on constructdbg.go's tip-walk-and-mark loop in
// SmfyDBG. Repeats until a full pass marks zero additional vertices.
func Trim(ctx *Context) (removed int, err error) {
	l := ctx.Config.trimLen()
	total := 0
	for {
		if ctx.Cancel.Cancelled() {
			return total, CancelledError{}
		}
		n := trimOnePass(ctx.Store, l, ctx.Workers)
		total += n
		if n == 0 {
			break
		}
	}
	ctx.Telemetry.Record(telemetryEvent("trim", map[string]any{"removed": total}))
	return total, nil
}

func trimOnePass(s *vertex.Store, l int, workers int) int {
	entries := s.Iterate()
	if len(entries) == 0 {
		return 0
	}
	if workers < 1 {
		workers = 1
	}
	chunk := (len(entries) + workers - 1) / workers
	branches := make([][][]*vertex.Record, workers)
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
			var local [][]*vertex.Record
			for _, e := range part {
				if !e.Rec.IsTip() {
					continue
				}
				if branch := walkFromTip(s, e.Rec, l); branch != nil {
					local = append(local, branch)
				}
			}
			branches[idx] = local
		}(wi, entries[start:end])
		wi++
	}
	wg.Wait()

	// Snapshot-local index lets the cross-branch dedup below run as bit
	// tests/sets against a dense bitset.BitSet rather than a string-keyed
	// map, since entries (and so the walked branches drawn from it) is
	// fixed for the duration of this pass.
	index := make(map[string]uint, len(entries))
	for i, e := range entries {
		index[e.Kmer.Key()] = uint(i)
	}
	seen := bitset.New(uint(len(entries)))
	count := 0
	for _, group := range branches {
		for _, branch := range group {
			for _, v := range branch {
				key := v.Kmer.Key()
				bit, ok := index[key]
				if ok {
					if seen.Test(bit) {
						continue
					}
					seen.Set(bit)
				}
				vertex.RemoveVertex(s, v)
				count++
			}
		}
	}
	s.Cleanup()
	return count
}

// walkFromTip walks inward from a tip vertex along its unique adjacency
// until a branch point (out-degree > 1 in the direction of entry) is
// reached or l steps are consumed. Returns the walked vertices (including
// the tip) if the walk terminated at a branch within l steps — a
// removable short branch — or nil if it ran out of steps first (a branch
// too long to trim) or hit another tip (an isolated short fragment, left
// alone by this phase; erosion handles those by coverage instead).
func walkFromTip(s *vertex.Store, tip *vertex.Record, l int) []*vertex.Record {
	// Walk from whichever direction is the dead end, inward along the
	// opposite direction's single neighbor.
	var walkDir kmer.Direction
	switch {
	case tip.IsDeadEnd(kmer.Sense):
		walkDir = kmer.Antisense
	case tip.IsDeadEnd(kmer.Antisense):
		walkDir = kmer.Sense
	default:
		return nil
	}

	walked := []*vertex.Record{tip}
	cur := tip
	for step := 0; step < l; step++ {
		if cur.OutDegree(walkDir) == 0 {
			// Ran into another dead end before finding a branch: this is
			// an isolated short fragment, not a trimmable branch off a
			// larger graph.
			return nil
		}
		if cur.OutDegree(walkDir) > 1 {
			return walked
		}
		next := soleNeighbor(s, cur, walkDir)
		if next == nil {
			return nil
		}
		if next.OutDegree(oppositeDir(walkDir)) > 1 {
			// Reached a branch point from the other side: terminate here
			// without consuming the branch vertex itself.
			return walked
		}
		walked = append(walked, next)
		cur = next
	}
	return nil
}

func oppositeDir(d kmer.Direction) kmer.Direction {
	if d == kmer.Sense {
		return kmer.Antisense
	}
	return kmer.Sense
}

// soleNeighbor returns cur's single neighbor in dir, assuming OutDegree(dir)
// == 1; nil if the bitset and store disagree (programming error elsewhere).
func soleNeighbor(s *vertex.Store, cur *vertex.Record, dir kmer.Direction) *vertex.Record {
	bits := cur.OutBitset(dir)
	for base := byte(0); base < kmer.BaseTypeNum; base++ {
		if bits&(1<<base) == 0 {
			continue
		}
		var cand kmer.Kmer
		if dir == kmer.Sense {
			cand = cur.Kmer.ShiftLeft(base)
		} else {
			cand = cur.Kmer.ShiftRight(base)
		}
		canon, _ := cand.Canonical()
		if v, ok := s.Get(canon); ok {
			return v
		}
		return nil
	}
	return nil
}
