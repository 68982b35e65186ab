package load

import (
	"testing"

	"dbgasm/seqio"
)

type sliceSource struct {
	reads []seqio.Read
	i     int
}

func (s *sliceSource) Next() (seqio.Read, bool, error) {
	if s.i >= len(s.reads) {
		return seqio.Read{}, false, nil
	}
	r := s.reads[s.i]
	s.i++
	return r, true, nil
}

func (s *sliceSource) Close() error { return nil }

func openReads(reads []seqio.Read) func() (seqio.SequenceSource, error) {
	return func() (seqio.SequenceSource, error) {
		return &sliceSource{reads: reads}, nil
	}
}

func TestLoadPromotesOnlyFrequentKmers(t *testing.T) {
	reads := []seqio.Read{
		{ID: "r1", Sequence: "ACGTACGTACGT"},
		{ID: "r2", Sequence: "ACGTACGTACGT"},
		{ID: "r3", Sequence: "TTTTTTTTTTTT"}, // low-complexity, occurs once
	}
	store, stats, err := Load(openReads(reads), Options{K: 5, MinKmerFreq: 2})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if stats.ReadsProcessed != 3 {
		t.Fatalf("ReadsProcessed = %d, want 3", stats.ReadsProcessed)
	}
	if store.Empty() {
		t.Fatalf("expected some k-mers promoted, store is empty")
	}
	for _, e := range store.Iterate() {
		fwd, rev := e.Rec.Multiplicity()
		if fwd+rev < 2 {
			t.Fatalf("vertex %s promoted with multiplicity %d < MinKmerFreq", e.Kmer.Decode(), fwd+rev)
		}
	}
}

func TestLoadSkipsInvalidBases(t *testing.T) {
	reads := []seqio.Read{{ID: "r1", Sequence: "ACGTNACGT"}}
	_, stats, err := Load(openReads(reads), Options{K: 4, MinKmerFreq: 1})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	// windows: ACGT, CGTN(invalid), GTNA(invalid), TNAC(invalid), NACG(invalid), ACGT
	// -> 2 valid windows, 4 skipped, out of 6
	if stats.KmersObserved != 2 {
		t.Fatalf("KmersObserved = %d, want 2", stats.KmersObserved)
	}
	if stats.KmersSkipped != 4 {
		t.Fatalf("KmersSkipped = %d, want 4", stats.KmersSkipped)
	}
}

func TestLoadEmptySourceYieldsEmptyStore(t *testing.T) {
	store, stats, err := Load(openReads(nil), Options{K: 5, MinKmerFreq: 1})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !store.Empty() {
		t.Fatalf("expected empty store")
	}
	if stats.ReadsProcessed != 0 {
		t.Fatalf("ReadsProcessed = %d, want 0", stats.ReadsProcessed)
	}
}
