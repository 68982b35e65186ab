// Package load builds a vertex.Store from read sequences, gating rare
// k-mers behind a cuckoofilter count the way ConcurrentConstructCF gates
// writes into .uniqkmerseq.zst by MinKmerFreq in constructcf.go.
package load

import (
	"fmt"

	"dbgasm/cuckoofilter"
	"dbgasm/kmer"
	"dbgasm/seqio"
	"dbgasm/vertex"
)

// Options configures a Load run.
type Options struct {
	K int
	// MinKmerFreq is the minimum occurrence count a k-mer must clear
	// before it is promoted into the vertex store; <= 1 disables
	// filtering (every k-mer is kept on first sight).
	MinKmerFreq int
	// FilterSize sizes the cuckoofilter's bucket table; it is rounded up
	// to the next power of two internally. Zero falls back to a default
	// of 1<<24 (about 16.7 million) distinct k-mers.
	FilterSize uint64
}

// Stats summarizes one Load run.
type Stats struct {
	ReadsProcessed int
	KmersObserved  int
	// KmersSkipped counts windows containing a base outside A/C/G/T: these
	// are silently dropped rather than treated as an assembly error, but
	// the count is still reported.
	KmersSkipped  int
	KmersPromoted int
}

func (o Options) filterSize() uint64 {
	if o.FilterSize > 0 {
		return o.FilterSize
	}
	return 1 << 24
}

func (o Options) minFreq() uint32 {
	if o.MinKmerFreq < 1 {
		return 1
	}
	return uint32(o.MinKmerFreq)
}

// Load runs a two-pass cuckoofilter-gated load: open is called once per
// pass to (re)open the read source, since a frequency-gated promotion
// decision for a k-mer's first occurrence can only be made after every
// occurrence in the input has been counted. The first pass only tallies
// counts into the filter; the second promotes every k-mer whose filter
// count has cleared MinKmerFreq into the vertex store.
func Load(open func() (seqio.SequenceSource, error), opt Options) (*vertex.Store, Stats, error) {
	var stats Stats
	filter := cuckoofilter.New(opt.filterSize())

	if err := eachKmer(open, opt.K, &stats, func(km kmer.Kmer) {
		canon, _ := km.Canonical()
		filter.Add([]byte(canon.Key()))
	}); err != nil {
		return nil, stats, fmt.Errorf("load: frequency pass: %w", err)
	}

	store := vertex.New()
	minFreq := opt.minFreq()
	var promoPass Stats
	if err := eachKmer(open, opt.K, &promoPass, func(km kmer.Kmer) {
		canon, _ := km.Canonical()
		if cnt, ok := filter.Lookup([]byte(canon.Key())); ok && cnt >= minFreq {
			store.Add(km)
			stats.KmersPromoted++
		}
	}); err != nil {
		return nil, stats, fmt.Errorf("load: promotion pass: %w", err)
	}
	return store, stats, nil
}

// eachKmer drives one full pass over the read source, sliding a k-mer
// window over every read and invoking onKmer for each syntactically valid
// k-mer. Invalid k-mers (containing a base outside A/C/G/T) are skipped
// rather than treated as an assembly error.
func eachKmer(open func() (seqio.SequenceSource, error), k int, stats *Stats, onKmer func(kmer.Kmer)) error {
	src, err := open()
	if err != nil {
		return err
	}
	defer src.Close()

	for {
		r, ok, err := src.Next()
		if err != nil {
			return fmt.Errorf("reading source: %w", err)
		}
		if !ok {
			break
		}
		stats.ReadsProcessed++
		kmers, skipped := windowKmers(r.Sequence, k)
		stats.KmersSkipped += skipped
		for _, km := range kmers {
			stats.KmersObserved++
			onKmer(km)
		}
	}
	return nil
}

// windowKmers slides a length-k window across seq, skipping windows that
// contain a non-ACGT base; skipped counts how many were dropped.
func windowKmers(seq string, k int) (out []kmer.Kmer, skipped int) {
	if len(seq) < k {
		return nil, 0
	}
	out = make([]kmer.Kmer, 0, len(seq)-k+1)
	for i := 0; i+k <= len(seq); i++ {
		km, err := kmer.Encode(seq[i : i+k])
		if err != nil {
			skipped++
			continue
		}
		out = append(out, km)
	}
	return out, skipped
}
