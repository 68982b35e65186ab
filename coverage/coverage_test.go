package coverage

import "testing"

func buildHist(counts map[int]uint64) *Histogram {
	h := &Histogram{}
	max := 0
	for m := range counts {
		if m > max {
			max = m
		}
	}
	for m := 0; m <= max; m++ {
		for i := uint64(0); i < counts[m]; i++ {
			h.observe(uint32(m))
		}
	}
	return h
}

func TestErosionThresholdFindsLocalMinimumRightOfNoise(t *testing.T) {
	// noise mode at 2 (count 100), dips at 5 (count 1), rises again to a
	// real-coverage peak at 8.
	h := buildHist(map[int]uint64{
		1: 40,
		2: 100,
		3: 50,
		4: 10,
		5: 1,
		6: 5,
		7: 20,
		8: 30,
	})
	got := h.ErosionThreshold()
	if got != 5 {
		t.Fatalf("ErosionThreshold() = %d, want 5", got)
	}
}

func TestErosionThresholdNoMinimumFallsBackAboveMax(t *testing.T) {
	h := buildHist(map[int]uint64{1: 5, 2: 10, 3: 20})
	got := h.ErosionThreshold()
	if got != uint32(h.Max()+1) {
		t.Fatalf("ErosionThreshold() = %d, want max+1 = %d", got, h.Max()+1)
	}
}

func TestHistogramAtOutOfRange(t *testing.T) {
	h := &Histogram{}
	if h.At(-1) != 0 || h.At(100) != 0 {
		t.Fatalf("At() on empty/out-of-range histogram should be 0")
	}
}

func TestMaxEmptyHistogram(t *testing.T) {
	h := &Histogram{}
	if h.Max() != -1 {
		t.Fatalf("Max() on empty histogram = %d, want -1", h.Max())
	}
}

func TestDeriveCarriesConfiguredContigCutoff(t *testing.T) {
	h := buildHist(map[int]uint64{1: 1, 2: 1})
	th := Derive(h, 10.5)
	if th.Contig != 10.5 {
		t.Fatalf("Derive().Contig = %v, want 10.5", th.Contig)
	}
}
