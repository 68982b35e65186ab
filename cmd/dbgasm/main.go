package main

import (
	"bufio"
	"fmt"
	"log"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"
	"runtime/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/jwaldrip/odin/cli"

	"dbgasm/assemble"
	"dbgasm/coverage"
	"dbgasm/kmer"
	"dbgasm/load"
	"dbgasm/seqio"
	"dbgasm/telemetry"
	"dbgasm/vertex"
)

const defaultKmer = 61

var app = cli.New("1.0.0", "De Bruijn graph short-read assembler", func(c cli.Command) {})

func init() {
	go func() {
		log.Println(http.ListenAndServe("localhost:6090", nil))
	}()
	app.DefineStringFlag("p", "./out/asm", "prefix of the output files")
	app.DefineIntFlag("K", defaultKmer, "kmer length, must be odd")
	app.DefineIntFlag("t", runtime.NumCPU(), "number of CPUs used")
	app.DefineStringFlag("cpuprofile", "", "write cpu profile to file")

	build := app.DefineSubCommand("build", "load reads, clean the de Bruijn graph and emit contigs", Build)
	{
		build.DefineStringFlag("reads", "", "comma-separated input read file list")
		build.DefineStringFlag("format", "fa", "input format: fa|fq|bam|fa.br|fa.zst")
		build.DefineIntFlag("MinKmerFreq", 3, "min k-mer occurrence count before promotion into the graph")
		build.DefineInt64Flag("S", 1<<24, "cuckoofilter size, in distinct k-mers")
		build.DefineFloat64Flag("erode", 0, "erosion coverage threshold override; 0 derives from the histogram, +Inf disables erosion")
		build.DefineFloat64Flag("erodeStrand", 0, "per-strand erosion threshold; <= 0 disables the per-strand erosion phase")
		build.DefineFloat64Flag("coverage", 0, "mean-coverage cutoff for the low-coverage filter; <= 0 disables it")
		build.DefineIntFlag("trimLen", 0, "trimmer length bound; 0 defaults to K")
		build.DefineIntFlag("bubbleLen", -1, "bubble popper length bound; negative (default) applies 3*K, 0 disables")
		build.DefineBoolFlag("dot", false, "also write the post-cleaning graph as prefix+'.dot'")
	}

	sweep := app.DefineSubCommand("sweep", "run build across a list of kmer lengths and report the best assembly", Sweep)
	{
		sweep.DefineStringFlag("reads", "", "comma-separated input read file list")
		sweep.DefineStringFlag("format", "fa", "input format: fa|fq|bam|fa.br|fa.zst")
		sweep.DefineStringFlag("Ks", strconv.Itoa(defaultKmer), "comma-separated kmer lengths to sweep")
		sweep.DefineIntFlag("MinKmerFreq", 3, "min k-mer occurrence count before promotion into the graph")
		sweep.DefineInt64Flag("S", 1<<24, "cuckoofilter size, in distinct k-mers")
		sweep.DefineFloat64Flag("coverage", 0, "mean-coverage cutoff for the low-coverage filter; <= 0 disables it")
	}
}

func main() {
	app.Start()
}

// buildOptions is the subset of build's flags needed by both Build and
// Sweep's per-k invocation.
type buildOptions struct {
	prefix      string
	k           int
	workers     int
	reads       []string
	format      string
	minKmerFreq int
	filterSize  uint64
	erode       float64
	erodeStrand float64
	coverage    float64
	trimLen     int
	bubbleLen   *int
	dot         bool
}

func checkGlobalArgs(c cli.Command) (prefix string, k, workers int) {
	prefix = c.Flag("p").String()
	if prefix == "" {
		log.Fatalf("[checkGlobalArgs] args 'p' not set\n")
	}
	var ok bool
	k, ok = c.Flag("K").Get().(int)
	if !ok {
		log.Fatalf("[checkGlobalArgs] args 'K': %v set error\n", c.Flag("K").String())
	}
	if k%2 != 1 {
		log.Fatalf("[checkGlobalArgs] the argument 'K':%d must be odd\n", k)
	}
	workers, ok = c.Flag("t").Get().(int)
	if !ok || workers < 1 {
		workers = 1
	}
	return prefix, k, workers
}

func checkArgsBuild(c cli.Command) buildOptions {
	prefix, k, workers := checkGlobalArgs(c.Parent())
	var opt buildOptions
	opt.prefix, opt.k, opt.workers = prefix, k, workers

	readsFlag := c.Flag("reads").String()
	if readsFlag == "" {
		log.Fatalf("[checkArgsBuild] args 'reads' not set\n")
	}
	opt.reads = strings.Split(readsFlag, ",")
	opt.format = c.Flag("format").String()

	minFreq, ok := c.Flag("MinKmerFreq").Get().(int)
	if !ok || minFreq < 1 {
		log.Fatalf("[checkArgsBuild] the argument 'MinKmerFreq': %v must be >= 1\n", c.Flag("MinKmerFreq"))
	}
	opt.minKmerFreq = minFreq

	sz, ok := c.Flag("S").Get().(int64)
	if !ok || sz < 1024 {
		log.Fatalf("[checkArgsBuild] the argument 'S': %v must be >= 1024\n", c.Flag("S"))
	}
	opt.filterSize = uint64(sz)

	opt.erode, ok = c.Flag("erode").Get().(float64)
	if !ok {
		log.Fatalf("[checkArgsBuild] argument 'erode': %v set error\n", c.Flag("erode"))
	}
	opt.erodeStrand, ok = c.Flag("erodeStrand").Get().(float64)
	if !ok {
		log.Fatalf("[checkArgsBuild] argument 'erodeStrand': %v set error\n", c.Flag("erodeStrand"))
	}
	opt.coverage, ok = c.Flag("coverage").Get().(float64)
	if !ok {
		log.Fatalf("[checkArgsBuild] argument 'coverage': %v set error\n", c.Flag("coverage"))
	}
	opt.trimLen, ok = c.Flag("trimLen").Get().(int)
	if !ok {
		log.Fatalf("[checkArgsBuild] argument 'trimLen': %v set error\n", c.Flag("trimLen"))
	}
	bubbleLen, ok := c.Flag("bubbleLen").Get().(int)
	if !ok {
		log.Fatalf("[checkArgsBuild] argument 'bubbleLen': %v set error\n", c.Flag("bubbleLen"))
	}
	if bubbleLen >= 0 {
		opt.bubbleLen = &bubbleLen
	}
	opt.dot, ok = c.Flag("dot").Get().(bool)
	if !ok {
		log.Fatalf("[checkArgsBuild] argument 'dot': %v set error\n", c.Flag("dot"))
	}
	return opt
}

// openSource opens one input file according to format, producing a fresh
// seqio.SequenceSource each call so load.Load can run its two passes.
func openSource(path, format string) (seqio.SequenceSource, error) {
	switch format {
	case "fa", "fasta", "fq", "fastq":
		return seqio.OpenFasta(path)
	case "fa.br":
		return seqio.OpenBrotliFasta(path)
	case "fa.zst":
		return seqio.OpenZstdFasta(path)
	case "bam":
		return seqio.OpenBam(path, 1)
	default:
		return nil, fmt.Errorf("openSource: unrecognized format %q", format)
	}
}

// multiSource chains several input files behind one seqio.SequenceSource.
type multiSource struct {
	paths  []string
	format string
	idx    int
	cur    seqio.SequenceSource
}

func openMulti(paths []string, format string) func() (seqio.SequenceSource, error) {
	return func() (seqio.SequenceSource, error) {
		return &multiSource{paths: paths, format: format}, nil
	}
}

func (m *multiSource) Next() (seqio.Read, bool, error) {
	for {
		if m.cur == nil {
			if m.idx >= len(m.paths) {
				return seqio.Read{}, false, nil
			}
			src, err := openSource(m.paths[m.idx], m.format)
			if err != nil {
				return seqio.Read{}, false, err
			}
			m.idx++
			m.cur = src
		}
		r, ok, err := m.cur.Next()
		if err != nil {
			return seqio.Read{}, false, err
		}
		if ok {
			return r, true, nil
		}
		m.cur.Close()
		m.cur = nil
	}
}

func (m *multiSource) Close() error {
	if m.cur != nil {
		return m.cur.Close()
	}
	return nil
}

// contigSinkAdapter adapts a seqio.ContigSink to assemble.ContigSink.
type contigSinkAdapter struct {
	sink seqio.ContigSink
	n    int
}

func (a *contigSinkAdapter) Record(c assemble.Contig) {
	a.n++
	a.sink.Record(fmt.Sprintf("contig%d", a.n), c.Sequence, c.Coverage)
}

// bubbleSinkAdapter adapts a seqio.BubbleSink to assemble.BubbleSink.
type bubbleSinkAdapter struct {
	sink seqio.BubbleSink
}

func (a *bubbleSinkAdapter) Record(b assemble.Bubble) {
	a.sink.Record(b.Source, b.Sink, b.KeptSeq, b.DropSeq)
}

// runBuild executes the load -> clean -> walk pipeline described by opt,
// writing contigs (and, if requested, a DOT graph) under opt.prefix.
// Grounded on constructcf.go/constructdbg.go's CCF->CDBG->Smfy progression
// in ga.go, collapsed into a single in-process pipeline since this module's
// vertex store replaces the intermediate node/edge files those subcommands
// pass between each other.
func runBuild(opt buildOptions) (assemble.Result, error) {
	t0 := time.Now()
	store, stats, err := load.Load(openMulti(opt.reads, opt.format), load.Options{
		K:           opt.k,
		MinKmerFreq: opt.minKmerFreq,
		FilterSize:  opt.filterSize,
	})
	if err != nil {
		return assemble.Result{}, fmt.Errorf("runBuild: load: %w", err)
	}
	fmt.Printf("[runBuild] loaded %d reads, %d k-mers observed (%d skipped non-ACGT), %d promoted, %d vertices, took %v\n",
		stats.ReadsProcessed, stats.KmersObserved, stats.KmersSkipped, stats.KmersPromoted, store.Size(), time.Since(t0))
	if store.Empty() {
		return assemble.Result{}, fmt.Errorf("runBuild: no k-mers cleared MinKmerFreq=%d, nothing to assemble", opt.minKmerFreq)
	}

	vertex.BuildAdjacency(store, opt.workers)
	hist := coverage.Build(store)

	telemetryPath := opt.prefix + ".telemetry.jsonl"
	sink, err := telemetry.NewJSONLSink(telemetryPath)
	if err != nil {
		return assemble.Result{}, fmt.Errorf("runBuild: opening telemetry sink: %w", err)
	}
	defer sink.Close()

	ctx := assemble.NewContext(store, assemble.Config{
		K:           opt.k,
		Erode:       opt.erode,
		ErodeStrand: opt.erodeStrand,
		Coverage:    opt.coverage,
		TrimLen:     opt.trimLen,
		BubbleLen:   opt.bubbleLen,
	}, hist, sink, opt.workers)

	contigFasta, err := seqio.NewFastaContigSink(opt.prefix + ".contigs.fa")
	if err != nil {
		return assemble.Result{}, fmt.Errorf("runBuild: opening contig output: %w", err)
	}
	defer contigFasta.Close()

	bubbleFile, err := os.Create(opt.prefix + ".bubbles.tsv")
	if err != nil {
		return assemble.Result{}, fmt.Errorf("runBuild: opening bubble output: %w", err)
	}
	defer bubbleFile.Close()
	bubbleSink := &tsvBubbleSink{f: bubbleFile}

	res, err := assemble.Run(ctx, &bubbleSinkAdapter{sink: bubbleSink}, &contigSinkAdapter{sink: contigFasta})
	if err != nil {
		return res, fmt.Errorf("runBuild: assemble.Run: %w", err)
	}

	if opt.dot {
		if err := writeDotGraph(store, opt.prefix+".dot"); err != nil {
			return res, fmt.Errorf("runBuild: writing dot graph: %w", err)
		}
	}

	fmt.Printf("[runBuild] eroded:%d trimmed:%d lowcov:%d bubbles:%d contigs:%d snr:%.2f took %v\n",
		res.Eroded, res.Trimmed, res.LowCov, res.Bubbles, res.Contigs, res.SNR, time.Since(t0))
	return res, nil
}

// writeDotGraph emits one node per present vertex and one directed edge
// per adjacency bit, using each vertex's decoded k-mer as its node ID.
func writeDotGraph(s *vertex.Store, path string) error {
	dot := seqio.NewDotGraphSink(path)
	entries := s.Iterate()
	for _, e := range entries {
		dot.AddNode(e.Kmer.Decode(), "")
	}
	for _, e := range entries {
		for _, dir := range [2]kmer.Direction{kmer.Sense, kmer.Antisense} {
			bits := e.Rec.OutBitset(dir)
			for base := byte(0); base < kmer.BaseTypeNum; base++ {
				if bits&(1<<base) == 0 {
					continue
				}
				var cand kmer.Kmer
				if dir == kmer.Sense {
					cand = e.Kmer.ShiftLeft(base)
				} else {
					cand = e.Kmer.ShiftRight(base)
				}
				canon, _ := cand.Canonical()
				dot.AddEdge(e.Kmer.Decode(), canon.Decode(), string(kmer.DecodeBase(base)))
			}
		}
	}
	return dot.Flush()
}

// tsvBubbleSink implements seqio.BubbleSink as tab-separated rows.
type tsvBubbleSink struct {
	f *os.File
}

func (s *tsvBubbleSink) Record(source, sink, keptSeq, dropSeq string) {
	fmt.Fprintf(s.f, "%s\t%s\t%s\t%s\n", source, sink, keptSeq, dropSeq)
}

func (s *tsvBubbleSink) Close() error { return s.f.Close() }

// Build is the "build" subcommand entry point.
func Build(c cli.Command) {
	opt := checkArgsBuild(c)
	if profile := c.Parent().Flag("cpuprofile").String(); profile != "" {
		f, err := os.Create(profile)
		if err != nil {
			log.Fatalf("[Build] open cpuprofile file: %v failed\n", profile)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}
	if _, err := runBuild(opt); err != nil {
		log.Fatalf("[Build] %v\n", err)
	}
}

// Sweep runs runBuild once per configured k, under a per-k prefix, and
// reports which k produced the largest total assembled length. Mirrors the
// ccf -> cdbg -> smfy subcommand progression in ga.go collapsed into one
// loop over k values, since this module holds the whole pipeline
// in-process rather than staging intermediate files between steps.
func Sweep(c cli.Command) {
	prefix, _, workers := checkGlobalArgs(c.Parent())
	readsFlag := c.Flag("reads").String()
	if readsFlag == "" {
		log.Fatalf("[Sweep] args 'reads' not set\n")
	}
	reads := strings.Split(readsFlag, ",")
	format := c.Flag("format").String()

	ksFlag := c.Flag("Ks").String()
	var ks []int
	for _, s := range strings.Split(ksFlag, ",") {
		v, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			log.Fatalf("[Sweep] invalid kmer length %q in 'Ks'\n", s)
		}
		ks = append(ks, v)
	}
	minFreq, ok := c.Flag("MinKmerFreq").Get().(int)
	if !ok {
		log.Fatalf("[Sweep] argument 'MinKmerFreq': %v set error\n", c.Flag("MinKmerFreq"))
	}
	sz, ok := c.Flag("S").Get().(int64)
	if !ok {
		log.Fatalf("[Sweep] argument 'S': %v set error\n", c.Flag("S"))
	}
	cov, ok := c.Flag("coverage").Get().(float64)
	if !ok {
		log.Fatalf("[Sweep] argument 'coverage': %v set error\n", c.Flag("coverage"))
	}

	type run struct {
		k        int
		res      assemble.Result
		totalLen int
	}
	var best *run
	for _, k := range ks {
		if k%2 != 1 {
			fmt.Printf("[Sweep] skipping even k=%d\n", k)
			continue
		}
		kprefix := fmt.Sprintf("%s_K%d", prefix, k)
		res, err := runBuild(buildOptions{
			prefix:      kprefix,
			k:           k,
			workers:     workers,
			reads:       reads,
			format:      format,
			minKmerFreq: minFreq,
			filterSize:  uint64(sz),
			erode:       0,
			erodeStrand: 0,
			coverage:    cov,
			trimLen:     0,
			bubbleLen:   nil,
			dot:         false,
		})
		if err != nil {
			fmt.Printf("[Sweep] k=%d failed: %v\n", k, err)
			continue
		}
		totalLen := totalContigLength(kprefix + ".contigs.fa")
		fmt.Printf("[Sweep] k=%d contigs=%d totalLen=%d snr=%.2f\n", k, res.Contigs, totalLen, res.SNR)
		if best == nil || totalLen > best.totalLen {
			best = &run{k: k, res: res, totalLen: totalLen}
		}
	}
	if best == nil {
		log.Fatalf("[Sweep] every k in %v failed\n", ks)
	}
	fmt.Printf("[Sweep] best assembly at k=%d: contigs=%d totalLen=%d\n", best.k, best.res.Contigs, best.totalLen)
}

// totalContigLength sums the length field out of a FASTA written by
// seqio.FastaContigSink (`>id len coverage` header lines).
func totalContigLength(path string) int {
	f, err := os.Open(path)
	if err != nil {
		return 0
	}
	defer f.Close()
	sum := 0
	scan := bufio.NewScanner(f)
	for scan.Scan() {
		line := scan.Text()
		if len(line) == 0 || line[0] != '>' {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		if n, err := strconv.Atoi(fields[1]); err == nil {
			sum += n
		}
	}
	return sum
}
