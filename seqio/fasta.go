package seqio

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
)

// FastaSource reads (id, sequence) reads from a FASTA stream. Grounded on
// constructdbg/mapDBG.go's `fasta.NewReader(infile,
// linear.NewSeq("", nil, alphabet.DNA))`.
type FastaSource struct {
	rc io.ReadCloser
	r  *fasta.Reader
}

// OpenFasta opens path for FASTA reading.
func OpenFasta(path string) (*FastaSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return newFastaSource(f), nil
}

// newFastaSource wraps any readable stream (a plain file, or a
// decompressing reader as used by OpenBrotliFasta/OpenZstdFasta) in the
// same fasta.Reader constructdbg/mapDBG.go builds over a plain file.
func newFastaSource(rc io.ReadCloser) *FastaSource {
	r := fasta.NewReader(rc, linear.NewSeq("", nil, alphabet.DNA))
	return &FastaSource{rc: rc, r: r}
}

// Next implements SequenceSource.
func (s *FastaSource) Next() (Read, bool, error) {
	seq, err := s.r.Read()
	if err == io.EOF {
		return Read{}, false, nil
	}
	if err != nil {
		return Read{}, false, err
	}
	lin, ok := seq.(*linear.Seq)
	if !ok {
		return Read{}, false, fmt.Errorf("seqio: unexpected sequence type %T from fasta.Reader", seq)
	}
	return Read{ID: lin.Name(), Sequence: lin.Seq.String()}, true, nil
}

// Close implements SequenceSource.
func (s *FastaSource) Close() error { return s.rc.Close() }

// FastaContigSink writes contigs as FASTA, one header line `>id len
// coverage` followed by a wrapped sequence body.
type FastaContigSink struct {
	f    *os.File
	w    *bufio.Writer
	Wrap int
}

// NewFastaContigSink creates (truncating) path for FASTA contig output.
func NewFastaContigSink(path string) (*FastaContigSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return &FastaContigSink{f: f, w: bufio.NewWriter(f), Wrap: 60}, nil
}

// Record implements ContigSink.
func (s *FastaContigSink) Record(id, sequence string, coverage uint64) {
	fmt.Fprintf(s.w, ">%s %d %d\n", id, len(sequence), coverage)
	wrap := s.Wrap
	if wrap <= 0 {
		wrap = len(sequence)
		if wrap == 0 {
			wrap = 1
		}
	}
	for i := 0; i < len(sequence); i += wrap {
		end := i + wrap
		if end > len(sequence) {
			end = len(sequence)
		}
		s.w.WriteString(sequence[i:end])
		s.w.WriteByte('\n')
	}
}

// Close implements ContigSink.
func (s *FastaContigSink) Close() error {
	if err := s.w.Flush(); err != nil {
		return err
	}
	return s.f.Close()
}
