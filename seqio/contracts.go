// Package seqio holds the external-interface contracts and
// concrete adapters for them. The core assembly engine in the assemble
// package never imports this package: these are the named contracts
// external collaborators implement, plus the adapters this module ships
// for the formats its own CLI tooling reads and writes.
package seqio

// Read is one (id, sequence, optional qualities) tuple yielded by a
// SequenceSource.
type Read struct {
	ID       string
	Sequence string
	Quality  []byte // nil if the source has no quality scores
}

// SequenceSource yields reads; the core never parses a file format
// directly. Grounded on the channel-based read producers in
// constructcf.go's fastq/fasta goroutines feeding `chan []byte` and
// bam.go's GetSamRecord feeding `chan []sam.Record`, collapsed to a
// single pull-based Next method since the core's loader is itself the
// consumer driving the pace.
type SequenceSource interface {
	// Next returns the next read, or ok=false once the source is
	// exhausted. err is non-nil only for an I/O failure.
	Next() (r Read, ok bool, err error)
	// Close releases the underlying resource.
	Close() error
}

// ContigSink accepts finished contigs as (id, sequence, coverage) records,
// serialized however the implementation sees fit (FASTA by default).
type ContigSink interface {
	Record(id, sequence string, coverage uint64)
	Close() error
}

// BubbleSink accepts paired-path bubble records.
type BubbleSink interface {
	Record(source, sink, keptSeq, dropSeq string)
	Close() error
}

// GraphSink writes the post-cleaning graph, one node per vertex and one
// directed edge per adjacency bit.
type GraphSink interface {
	AddNode(id string, label string)
	AddEdge(fromID, toID string, label string)
	Flush() error
}

// AFGSink accepts AMOS-style assembly graph records. Present only as a
// named contract: no implementation in this module performs long-read
// scaffolding or read-to-graph mapping (see DESIGN.md "Dropped / not-wired
// dependencies" for why deconstructdbg/mapDBG/findPath are not ported as
// deep implementations).
type AFGSink interface {
	RecordContig(id, sequence string)
	RecordRead(readID, contigID string, offset int)
	Close() error
}

// ReadMerger merges overlapping paired-end reads into a single sequence
// before k-mer loading. A named contract only, for the same reason as
// AFGSink: paired-end scaffolding and read merging are out of this
// module's scope.
type ReadMerger interface {
	Merge(a, b Read) (merged Read, ok bool)
}
