// Package cuckoofilter is a fixed-size probabilistic counting filter used
// as the load-phase k-mer frequency pre-filter: a k-mer is only promoted
// into the vertex store once its observed count clears MinKmerFreq,
// avoiding one vertex-store slot per sequencing-error singleton.
//
// Adapted from cuckoofilter.go's bucketized cuckoo filter (fingerprint+count
// packed into a uint16, xxhash-driven bucket index and alternate index,
// random-walk eviction on collision), generalized off a fixed global kmer
// length and reimplemented with sync/atomic in place of its original cgo
// compare-and-swap shim.
package cuckoofilter

import (
	"math/bits"
	"math/rand"
	"sync/atomic"

	"github.com/cespare/xxhash"
)

const (
	// NumFpBits is the number of bits of each slot spent on the fingerprint.
	NumFpBits = 13
	// NumCBits is the number of bits of each slot spent on the count.
	NumCBits = 16 - NumFpBits
	// MaxCount is the saturating count ceiling a single slot can record.
	MaxCount = (1 << NumCBits) - 1
	fpMask   = (1 << NumFpBits) - 1
)

// BucketSize is the number of slots per bucket.
const BucketSize = 4

// MaxKickCount bounds the cuckoo-kick eviction walk before Add gives up.
const MaxKickCount = 500

type bucket [BucketSize]uint32

// Filter is a fixed-size cuckoo filter mapping byte-string keys (typically
// a canonical k-mer's packed byte form) to a saturating occurrence count.
type Filter struct {
	buckets   []bucket
	bucketPow uint
	count     uint64
}

func upperPow2(x uint64) uint64 {
	if x < BucketSize {
		return BucketSize
	}
	return 1 << bits.Len64(x-1)
}

// New allocates a filter sized to hold at least maxKeys distinct entries
// before its load factor degrades eviction performance.
func New(maxKeys uint64) *Filter {
	numBuckets := upperPow2(maxKeys) / BucketSize
	if numBuckets == 0 {
		numBuckets = 1
	}
	return &Filter{
		buckets:   make([]bucket, numBuckets),
		bucketPow: uint(bits.TrailingZeros64(numBuckets)),
	}
}

// Count returns the number of distinct keys inserted.
func (f *Filter) Count() uint64 { return atomic.LoadUint64(&f.count) }

func splitSlot(slot uint32) (fp uint16, cnt uint32) {
	return uint16(slot >> NumCBits), slot & (1<<NumCBits - 1)
}

func makeSlot(fp uint16, cnt uint32) uint32 {
	return uint32(fp)<<NumCBits | cnt
}

func fingerprintAndIndex(key []byte, bucketPow uint) (idx uint64, fp uint16) {
	h := xxhash.Sum64(key)
	fp = uint16(h&fpMask) | 1 // never zero: zero marks an empty slot
	m := 64 - NumFpBits - bucketPow
	idx = (h >> (m + NumFpBits)) ^ (((h >> NumFpBits) & (1<<m - 1)) << ((bucketPow - m) >> 1))
	idx &= 1<<bucketPow - 1
	return idx, fp
}

func altIndex(idx uint64, fp uint16, bucketPow uint) uint64 {
	return (idx ^ uint64(fp)) & (1<<bucketPow - 1)
}

func (b *bucket) find(fp uint16) (slotIdx int, cnt uint32) {
	for i, slot := range b {
		f, c := splitSlot(slot)
		if f == fp {
			return i, c
		}
	}
	return -1, 0
}

func (b *bucket) insertEmpty(slot uint32) bool {
	for i := range b {
		addr := &b[i]
		for {
			old := atomic.LoadUint32(addr)
			if old != 0 {
				break
			}
			if atomic.CompareAndSwapUint32(addr, old, slot) {
				return true
			}
		}
	}
	return false
}

// incr bumps the slot at (bucket, slotIdx)'s count, saturating at
// MaxCount, and is safe under concurrent callers touching the same slot.
func (f *Filter) incr(bktIdx uint64, slotIdx int) {
	addr := &f.buckets[bktIdx][slotIdx]
	for {
		old := atomic.LoadUint32(addr)
		fp, cnt := splitSlot(old)
		if cnt >= MaxCount {
			return
		}
		if atomic.CompareAndSwapUint32(addr, old, makeSlot(fp, cnt+1)) {
			return
		}
	}
}

// Add records one observation of key, returning the count observed prior
// to this call (0 if key was not present).
func (f *Filter) Add(key []byte) (priorCount uint32) {
	idx, fp := fingerprintAndIndex(key, f.bucketPow)
	if j, c := f.buckets[idx].find(fp); j >= 0 {
		f.incr(idx, j)
		return c
	}
	alt := altIndex(idx, fp, f.bucketPow)
	if j, c := f.buckets[alt].find(fp); j >= 0 {
		f.incr(alt, j)
		return c
	}

	slot := makeSlot(fp, 1)
	if f.buckets[idx].insertEmpty(slot) {
		atomic.AddUint64(&f.count, 1)
		return 0
	}
	if f.buckets[alt].insertEmpty(slot) {
		atomic.AddUint64(&f.count, 1)
		return 0
	}
	if f.kickInsert(idx, slot) {
		atomic.AddUint64(&f.count, 1)
	}
	return 0
}

// kickInsert performs the random-walk cuckoo eviction used by Add when
// both candidate buckets are full.
func (f *Filter) kickInsert(idx uint64, slot uint32) bool {
	for i := 0; i < MaxKickCount; i++ {
		j := rand.Intn(BucketSize)
		addr := &f.buckets[idx][j]
		evicted := atomic.SwapUint32(addr, slot)
		fp, _ := splitSlot(evicted)
		idx = altIndex(idx, fp, f.bucketPow)
		if f.buckets[idx].insertEmpty(evicted) {
			return true
		}
		slot = evicted
	}
	return false
}

// Lookup returns the recorded count for key, or (0, false) if absent.
func (f *Filter) Lookup(key []byte) (uint32, bool) {
	idx, fp := fingerprintAndIndex(key, f.bucketPow)
	if j, c := f.buckets[idx].find(fp); j >= 0 {
		return c, true
	}
	alt := altIndex(idx, fp, f.bucketPow)
	if j, c := f.buckets[alt].find(fp); j >= 0 {
		return c, true
	}
	return 0, false
}
