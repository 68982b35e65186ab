// Package coverage builds the k-mer multiplicity histogram and derives the
// two process-wide thresholds consumed by the eroder and the low-coverage
// filter.
package coverage

import "dbgasm/vertex"

// Histogram is a multiplicity -> vertex-count table, dense from 0 up to the
// observed maximum.
type Histogram struct {
	counts []uint64
}

// Build scans every present vertex in s and tallies Coverage() into a
// histogram, grounded on constructcf.go's frequency-tallying sweep in
// ParaConstructCF, generalized from a cuckoo-filter occupancy scan to a
// store-wide pass, and cross-checked against
// AssemblyAlgorithms::coverageHistogram.
func Build(s *vertex.Store) *Histogram {
	h := &Histogram{}
	for _, e := range s.Iterate() {
		h.observe(e.Rec.Coverage())
	}
	return h
}

func (h *Histogram) observe(mult uint32) {
	m := int(mult)
	if m >= len(h.counts) {
		grown := make([]uint64, m+1)
		copy(grown, h.counts)
		h.counts = grown
	}
	h.counts[m]++
}

// At returns the count of vertices with multiplicity exactly m.
func (h *Histogram) At(m int) uint64 {
	if m < 0 || m >= len(h.counts) {
		return 0
	}
	return h.counts[m]
}

// Max returns the largest multiplicity with a nonzero count, or -1 if the
// histogram is empty.
func (h *Histogram) Max() int {
	for m := len(h.counts) - 1; m >= 0; m-- {
		if h.counts[m] != 0 {
			return m
		}
	}
	return -1
}

// noiseMode returns the multiplicity with the single largest count among
// multiplicities >= 1 (multiplicity 0 never occurs for a present vertex, but
// is skipped defensively). Sequencing-error k-mers dominate the low end of
// the histogram, so this is the mode of the noise distribution the erosion
// threshold must sit above.
func (h *Histogram) noiseMode() int {
	mode, best := 1, uint64(0)
	for m := 1; m < len(h.counts); m++ {
		if h.counts[m] > best {
			best, mode = h.counts[m], m
		}
	}
	return mode
}

// ErosionThreshold returns the lowest local minimum of H strictly to the
// right of the noise mode: the first m > mode where
// H[m] <= H[m-1] and H[m] <= H[m+1]. If no such point is found before the
// histogram's tail, the max observed multiplicity + 1 is returned, which
// erodes nothing (a flat or monotonically rising tail has no error/signal
// boundary to find).
func (h *Histogram) ErosionThreshold() uint32 {
	mode := h.noiseMode()
	maxM := h.Max()
	if maxM <= mode {
		return uint32(mode + 1)
	}
	for m := mode + 1; m < maxM; m++ {
		if h.At(m) <= h.At(m-1) && h.At(m) <= h.At(m+1) {
			return uint32(m)
		}
	}
	return uint32(maxM + 1)
}

// Thresholds bundles the two values derived once per assembly and then held
// read-only.
type Thresholds struct {
	Erosion uint32
	Contig  float64
}

// Derive computes Thresholds for a histogram, given the configured contig
// mean-coverage cutoff.
func Derive(h *Histogram, configuredContigCutoff float64) Thresholds {
	return Thresholds{
		Erosion: h.ErosionThreshold(),
		Contig:  configuredContigCutoff,
	}
}
