package seqio

import (
	"io"
	"os"

	"github.com/biogo/hts/bam"
	"github.com/biogo/hts/sam"
)

// BamSource reads aligned reads from a BAM file, skipping unmapped
// records. Grounded on bam.go's `bam.NewReader`, `sam.Record`,
// `r.Flags&sam.Unmapped` usage.
type BamSource struct {
	f *os.File
	r *bam.Reader
}

// OpenBam opens path for BAM reading with the given decompression
// concurrency, mirroring bam.go's `bam.NewReader(fp, numCPU/5+1)`.
func OpenBam(path string, workers int) (*BamSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	if workers < 1 {
		workers = 1
	}
	r, err := bam.NewReader(f, workers)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &BamSource{f: f, r: r}, nil
}

// Next implements SequenceSource, skipping unmapped records the way
// GetSamRecord does.
func (s *BamSource) Next() (Read, bool, error) {
	for {
		rec, err := s.r.Read()
		if err == io.EOF {
			return Read{}, false, nil
		}
		if err != nil {
			return Read{}, false, err
		}
		if rec.Flags&sam.Unmapped != 0 {
			continue
		}
		return Read{ID: rec.Name, Sequence: string(rec.Seq.Expand()), Quality: rec.Qual}, true, nil
	}
}

// Close implements SequenceSource.
func (s *BamSource) Close() error {
	s.r.Close()
	return s.f.Close()
}
