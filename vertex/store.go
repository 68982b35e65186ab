// Package vertex implements the vertex store: a concurrent
// hash map from canonical k-mer to vertex record, generalized from the
// teacher's constructdbg.go DBGNode/nodeMap (itself keyed on a fixed-size
// uint64 array, `map[[NODEMAP_KEY_LEN]uint64]DBGNode`, and built
// concurrently through a `*sync.Map` in constructNodeMap/CollectAddedDBGNode)
// and cross-checked against original_source's SequenceCollectionHash
// (setDeletedKey/shrink/cleanup).
package vertex

import (
	"sync"
	"sync/atomic"

	"dbgasm/kmer"
)

// Flag is one bit of the per-vertex flag word.
type Flag uint32

const (
	// FlagSeen is local to a single contig walk.
	FlagSeen Flag = 1 << iota
	// FlagDeleted marks a tombstoned vertex (present == false).
	FlagDeleted
	// FlagMarkSense marks an ambiguous join in the sense direction.
	FlagMarkSense
	// FlagMarkAntisense marks an ambiguous join in the antisense direction.
	FlagMarkAntisense
)

// Record is one vertex. The store is its exclusive owner — callers borrow *Record for the duration of one phase and
// must not retain it across phases.
type Record struct {
	Kmer kmer.Kmer

	fwd, rev uint32 // multiplicity pair, atomic access only
	edges    uint32 // low nibble = out[Sense], next nibble = out[Antisense]
	flags    uint32
}

// Multiplicity returns (fwd, rev); their sum is vertex coverage.
func (r *Record) Multiplicity() (fwd, rev uint32) {
	return atomic.LoadUint32(&r.fwd), atomic.LoadUint32(&r.rev)
}

// Coverage returns fwd+rev.
func (r *Record) Coverage() uint32 {
	fwd, rev := r.Multiplicity()
	return fwd + rev
}

func edgeShift(dir kmer.Direction) uint {
	if dir == kmer.Antisense {
		return 4
	}
	return 0
}

// OutBitset returns the 4-bit adjacency bitset for direction dir.
func (r *Record) OutBitset(dir kmer.Direction) uint8 {
	return uint8((atomic.LoadUint32(&r.edges) >> edgeShift(dir)) & 0xF)
}

// OutDegree returns popcount(out[dir]).
func (r *Record) OutDegree(dir kmer.Direction) int {
	b := r.OutBitset(dir)
	n := 0
	for b != 0 {
		n += int(b & 1)
		b >>= 1
	}
	return n
}

// IsDeadEnd reports out-degree zero in dir.
func (r *Record) IsDeadEnd(dir kmer.Direction) bool { return r.OutDegree(dir) == 0 }

// IsTip reports dead-end in at least one direction.
func (r *Record) IsTip() bool {
	return r.IsDeadEnd(kmer.Sense) || r.IsDeadEnd(kmer.Antisense)
}

// IsAmbiguous reports out-degree > 1 in at least one direction.
func (r *Record) IsAmbiguous() bool {
	return r.OutDegree(kmer.Sense) > 1 || r.OutDegree(kmer.Antisense) > 1
}

func (r *Record) SetEdgeBit(dir kmer.Direction, base byte, present bool) {
	shift := edgeShift(dir)
	mask := uint32(1) << (shift + uint(base&0x3))
	for {
		old := atomic.LoadUint32(&r.edges)
		var nw uint32
		if present {
			nw = old | mask
		} else {
			nw = old &^ mask
		}
		if old == nw || atomic.CompareAndSwapUint32(&r.edges, old, nw) {
			return
		}
	}
}

func (r *Record) hasFlag(f Flag) bool {
	return atomic.LoadUint32(&r.flags)&uint32(f) != 0
}

func (r *Record) SetFlag(f Flag) {
	for {
		old := atomic.LoadUint32(&r.flags)
		nw := old | uint32(f)
		if old == nw || atomic.CompareAndSwapUint32(&r.flags, old, nw) {
			return
		}
	}
}

func (r *Record) ClearFlag(f Flag) {
	for {
		old := atomic.LoadUint32(&r.flags)
		nw := old &^ uint32(f)
		if old == nw || atomic.CompareAndSwapUint32(&r.flags, old, nw) {
			return
		}
	}
}

// Present reports whether the vertex has not been tombstoned.
func (r *Record) Present() bool { return !r.hasFlag(FlagDeleted) }

// Store is a concurrent hash map from canonical k-mer to vertex record. It
// supports concurrent Add during load, concurrent read/Mark during phases,
// and a serialized Remove/Cleanup barrier.
type Store struct {
	m             sync.Map // string (kmer.Key()) -> *Record
	liveCount     int64
	deletedKeySet bool
}

// New creates an empty store.
func New() *Store { return &Store{} }

// SetDeletedKey mirrors the ABySS sparsehash-derived API
// (SequenceCollectionHash::setDeletedKey) that reserves a sentinel key in
// an open-addressing table before the first erase. Go's map implementation
// needs no such sentinel; this is kept as a no-op gate so callers that
// follow the conventional load->setDeletedKey->cleanup ordering still
// compile and behave. Cleanup does not check whether it was called.
func (s *Store) SetDeletedKey() { s.deletedKeySet = true }

// Add inserts km (in any orientation) or increments the multiplicity of
// its canonical form's corresponding orientation slot. Safe for concurrent
// use on the same or different keys.
func (s *Store) Add(km kmer.Kmer) *Record {
	canon, isCanonical := km.Canonical()
	key := canon.Key()
	v, loaded := s.m.Load(key)
	if !loaded {
		rec := &Record{Kmer: canon}
		actual, existed := s.m.LoadOrStore(key, rec)
		if !existed {
			atomic.AddInt64(&s.liveCount, 1)
		}
		v = actual
	}
	rec := v.(*Record)
	if isCanonical {
		atomic.AddUint32(&rec.fwd, 1)
	} else {
		atomic.AddUint32(&rec.rev, 1)
	}
	return rec
}

// Get returns the record for km's canonical form, or ok=false if absent
// or tombstoned.
func (s *Store) Get(km kmer.Kmer) (rec *Record, ok bool) {
	canon, _ := km.Canonical()
	v, loaded := s.m.Load(canon.Key())
	if !loaded {
		return nil, false
	}
	r := v.(*Record)
	if !r.Present() {
		return nil, false
	}
	return r, true
}

// Mark sets flag f on km's vertex, if present.
func (s *Store) Mark(km kmer.Kmer, f Flag) {
	if r, ok := s.Get(km); ok {
		r.SetFlag(f)
	}
}

// Unmark clears flag f on km's vertex, if present.
func (s *Store) Unmark(km kmer.Kmer, f Flag) {
	if r, ok := s.Get(km); ok {
		r.ClearFlag(f)
	}
}

// IsMarked reports whether km's vertex has flag f set.
func (s *Store) IsMarked(km kmer.Kmer, f Flag) bool {
	r, ok := s.Get(km)
	return ok && r.hasFlag(f)
}

// SetEdge sets or clears the bit for base in direction dir on km's vertex
//. It is a no-op if km is absent.
func (s *Store) SetEdge(km kmer.Kmer, dir kmer.Direction, base byte, present bool) {
	if r, ok := s.Get(km); ok {
		r.SetEdgeBit(dir, base, present)
	}
}

// Remove tombstones km's vertex: the slot is reclaimable by Cleanup but
// not yet removed.
func (s *Store) Remove(km kmer.Kmer) {
	canon, _ := km.Canonical()
	v, loaded := s.m.Load(canon.Key())
	if !loaded {
		return
	}
	r := v.(*Record)
	if !r.hasFlag(FlagDeleted) {
		r.SetFlag(FlagDeleted)
		atomic.AddInt64(&s.liveCount, -1)
	}
}

// Cleanup compacts tombstones, physically deleting them from the
// underlying map. It is synchronous and non-suspending and must
// run with no concurrent Add/Get/Mark/Remove in flight — callers
// serialize it behind a barrier as part of a parallel-read,
// serialized-remove scheduling model.
func (s *Store) Cleanup() (removed int) {
	var dead []string
	s.m.Range(func(k, v any) bool {
		if v.(*Record).hasFlag(FlagDeleted) {
			dead = append(dead, k.(string))
		}
		return true
	})
	for _, k := range dead {
		s.m.Delete(k)
	}
	return len(dead)
}

// Size returns the number of present (non-tombstoned) vertices.
func (s *Store) Size() int {
	n := atomic.LoadInt64(&s.liveCount)
	if n < 0 {
		return 0
	}
	return int(n)
}

// Empty reports Size() == 0.
func (s *Store) Empty() bool { return s.Size() == 0 }

// Entry pairs a vertex's canonical k-mer with its record, returned by
// Iterate.
type Entry struct {
	Kmer kmer.Kmer
	Rec  *Record
}

// Iterate returns a snapshot of all present vertices. Cleanup invalidates
// any snapshot taken before it ran: retake it after a barrier if a phase
// needs to resume iterating.
func (s *Store) Iterate() []Entry {
	var out []Entry
	s.m.Range(func(k, v any) bool {
		r := v.(*Record)
		if r.Present() {
			out = append(out, Entry{Kmer: r.Kmer, Rec: r})
		}
		return true
	})
	return out
}
