package seqio

import (
	"io"
	"os"

	"github.com/google/brotli/go/cbrotli"
	"github.com/klauspost/compress/zstd"
)

// brReadCloser adapts a cbrotli.Reader (which has no Close of its own)
// plus the underlying file to io.ReadCloser.
type brReadCloser struct {
	io.Reader
	f *os.File
}

func (b *brReadCloser) Close() error { return b.f.Close() }

// OpenBrotliFasta opens a `.fa.br`-style brotli-compressed FASTA file for
// transparent reading, decompressing through cbrotli before handing the
// stream to the same FASTA parser OpenFasta uses. Grounded on the
// teacher's WriteBr/ReadBrFile2 (constructcf.go).
func OpenBrotliFasta(path string) (*FastaSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	br := cbrotli.NewReader(f)
	return newFastaSource(&brReadCloser{Reader: br, f: f}), nil
}

// zstdReadCloser adapts a zstd.Decoder to io.ReadCloser, closing both the
// decoder and the underlying file.
type zstdReadCloser struct {
	d *zstd.Decoder
	f *os.File
}

func (z *zstdReadCloser) Read(p []byte) (int, error) { return z.d.Read(p) }
func (z *zstdReadCloser) Close() error {
	z.d.Close()
	return z.f.Close()
}

// OpenZstdFasta opens a `.fa.zst`-style zstd-compressed FASTA file for
// transparent reading. Grounded on constructcf.go/tools.go's
// WriteZstd/ReadZstdFile: `zstd.NewReader(fp,
// zstd.WithDecoderConcurrency(1))`.
func OpenZstdFasta(path string) (*FastaSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
	if err != nil {
		f.Close()
		return nil, err
	}
	return newFastaSource(&zstdReadCloser{d: zr, f: f}), nil
}
