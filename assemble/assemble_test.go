package assemble

import (
	"math"
	"testing"

	"dbgasm/coverage"
	"dbgasm/kmer"
	"dbgasm/vertex"
)

// loadReads builds a vertex store from reads, the way the loader would:
// one Add per k-length window, followed by an adjacency build.
func loadReads(t *testing.T, reads []string, k int) *vertex.Store {
	t.Helper()
	s := vertex.New()
	for _, r := range reads {
		for i := 0; i+k <= len(r); i++ {
			km, err := kmer.Encode(r[i : i+k])
			if err != nil {
				t.Fatalf("Encode(%q): %v", r[i:i+k], err)
			}
			s.Add(km)
		}
	}
	vertex.BuildAdjacency(s, 2)
	return s
}

func newTestContext(s *vertex.Store, cfg Config) *Context {
	hist := coverage.Build(s)
	return NewContext(s, cfg, hist, nil, 2)
}

type collectingContigSink struct {
	contigs []Contig
}

func (c *collectingContigSink) Record(ct Contig) { c.contigs = append(c.contigs, ct) }

type collectingBubbleSink struct {
	bubbles []Bubble
}

func (c *collectingBubbleSink) Record(b Bubble) { c.bubbles = append(c.bubbles, b) }

func TestErodeIdempotent(t *testing.T) {
	// AAAAAA / AAAAAC, k=4: AAAC is a low-coverage tip that should erode.
	s := loadReads(t, []string{"AAAAAA", "AAAAAC"}, 4)
	ctx := newTestContext(s, Config{K: 4, Erode: 2})

	if _, err := Erode(ctx); err != nil {
		t.Fatalf("first Erode: %v", err)
	}
	second, err := Erode(ctx)
	if err != nil {
		t.Fatalf("second Erode: %v", err)
	}
	if second != 0 {
		t.Fatalf("erode is not idempotent: second run removed %d", second)
	}
}

func TestTrimConvergence(t *testing.T) {
	s := loadReads(t, []string{"AAAAAAAAAA", "AAAAAAAAAC"}, 4)
	ctx := newTestContext(s, Config{K: 4, TrimLen: 4})

	if _, err := Trim(ctx); err != nil {
		t.Fatalf("first Trim: %v", err)
	}
	second, err := Trim(ctx)
	if err != nil {
		t.Fatalf("second Trim: %v", err)
	}
	if second != 0 {
		t.Fatalf("trim did not converge: second run removed %d", second)
	}
}

func TestEroderDisabledByInfiniteThreshold(t *testing.T) {
	s := loadReads(t, []string{"AAAAAA", "AAAAAC"}, 4)
	ctx := newTestContext(s, Config{K: 4, Erode: math.Inf(1)})

	before := s.Size()
	removed, err := Erode(ctx)
	if err != nil {
		t.Fatalf("Erode: %v", err)
	}
	if removed != 0 || s.Size() != before {
		t.Fatalf("infinite erode threshold should disable the phase, removed=%d", removed)
	}
}

func TestWalkTrivialSingleRead(t *testing.T) {
	read := "ACGTTCGAACGG"
	k := 4
	s := loadReads(t, []string{read}, k)
	ctx := newTestContext(s, Config{K: k})

	contigSink := &collectingContigSink{}
	count, err := Walk(ctx, contigSink)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if count == 0 {
		t.Fatalf("expected at least one contig")
	}
	for _, c := range contigSink.contigs {
		if len(c.Sequence) != c.Length+k-1 {
			t.Errorf("contig %s: sequence length %d inconsistent with vertex-count length %d at k=%d",
				c.ID, len(c.Sequence), c.Length, k)
		}
	}
}

func TestContigCoverageSumInvariant(t *testing.T) {
	s := loadReads(t, []string{"ACGTTCGAACGGTTAA", "ACGTTCGAACGGTTAA"}, 4)
	ctx := newTestContext(s, Config{K: 4})

	var storeSum uint64
	for _, e := range s.Iterate() {
		storeSum += uint64(e.Rec.Coverage())
	}

	contigSink := &collectingContigSink{}
	if _, err := Walk(ctx, contigSink); err != nil {
		t.Fatalf("Walk: %v", err)
	}
	var contigSum uint64
	for _, c := range contigSink.contigs {
		contigSum += c.Coverage
	}
	if contigSum != storeSum {
		t.Fatalf("contig coverage sum %d != surviving vertex multiplicity sum %d", contigSum, storeSum)
	}
}

func TestWalkEmptyStoreIsFatal(t *testing.T) {
	s := vertex.New()
	ctx := newTestContext(s, Config{K: 4})
	_, err := Walk(ctx, nil)
	if err != ErrAssemblyEmpty {
		t.Fatalf("Walk on empty store: got err=%v, want ErrAssemblyEmpty", err)
	}
}

func TestWalkAllAmbiguousEmitsOnePerVertex(t *testing.T) {
	// Build a synthetic graph by hand: every possible 4-mer is present, so
	// every vertex has all four neighbors in both directions (a complete
	// tangle), and the walker must terminate at every vertex immediately.
	s := vertex.New()
	var kmers []string
	for i := 0; i < 256; i++ {
		kmers = append(kmers, string([]byte{"ACGT"[i>>6&3], "ACGT"[i>>4&3], "ACGT"[i>>2&3], "ACGT"[i&3]}))
	}
	for _, ks := range kmers {
		km, err := kmer.Encode(ks)
		if err != nil {
			t.Fatalf("Encode: %v", err)
		}
		s.Add(km)
	}
	vertex.BuildAdjacency(s, 1)

	ambiguous := 0
	for _, e := range s.Iterate() {
		if e.Rec.IsAmbiguous() {
			ambiguous++
		}
	}
	if ambiguous == 0 {
		t.Skip("synthetic kmer set did not produce an ambiguous graph; adjust fixture")
	}

	ctx := newTestContext(s, Config{K: 4})
	sink := &collectingContigSink{}
	count, err := Walk(ctx, sink)
	if err != nil {
		t.Fatalf("Walk: %v", err)
	}
	if count != s.Size() {
		t.Fatalf("expected one contig per vertex in an all-ambiguous graph, got %d contigs for %d vertices", count, s.Size())
	}
}

func TestLowCoverageFilterDisabledWhenCutoffNonPositive(t *testing.T) {
	s := loadReads(t, []string{"ACGTTCGAACGG"}, 4)
	ctx := newTestContext(s, Config{K: 4, Coverage: 0})
	removed, didFilter, err := LowCoverageFilter(ctx)
	if err != nil {
		t.Fatalf("LowCoverageFilter: %v", err)
	}
	if didFilter || removed != 0 {
		t.Fatalf("filter should be a no-op when Coverage <= 0")
	}
}

func TestBubblePoppingKeepsHigherCoverageBranch(t *testing.T) {
	// Two k=5 branches diverge from a shared source (GCGTA, base A vs T)
	// and rejoin at a shared sink (GGAAC) five steps later. The 'A' branch
	// is read three times, the 'T' branch once, so popping should keep the
	// 'A' branch and drop the 'T' branch.
	reads := []string{
		"GCGTAAGGAAC", "GCGTAAGGAAC", "GCGTAAGGAAC", // higher coverage
		"GCGTATGGAAC", // lower coverage
	}
	s := loadReads(t, reads, 5)
	bound := 8
	ctx := newTestContext(s, Config{K: 5, BubbleLen: &bound})

	bubbleSink := &collectingBubbleSink{}
	popped, err := PopBubbles(ctx, bubbleSink)
	if err != nil {
		t.Fatalf("PopBubbles: %v", err)
	}
	if popped != 1 {
		t.Fatalf("popped = %d, want 1", popped)
	}
	if len(bubbleSink.bubbles) != 1 {
		t.Fatalf("sink recorded %d bubbles, want 1", len(bubbleSink.bubbles))
	}

	keptBranch, err := kmer.Encode("CGTAA")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	droppedBranch, err := kmer.Encode("CGTAT")
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if _, ok := s.Get(keptBranch); !ok {
		t.Fatalf("higher-coverage branch vertex CGTAA was removed, should have been kept")
	}
	if _, ok := s.Get(droppedBranch); ok {
		t.Fatalf("lower-coverage branch vertex CGTAT is still present, should have been dropped")
	}
}

func TestSchedulerRunProducesContigs(t *testing.T) {
	s := loadReads(t, []string{"ACGTTCGAACGGTTAA"}, 4)
	ctx := newTestContext(s, Config{K: 4})
	contigSink := &collectingContigSink{}
	bubbleSink := &collectingBubbleSink{}

	res, err := Run(ctx, bubbleSink, contigSink)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Contigs == 0 {
		t.Fatalf("expected at least one contig from Run")
	}
}
