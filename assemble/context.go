// Package assemble implements the graph-cleaning phases and contig walk:
// eroder, trimmer, low-coverage filter, bubble popper, phase scheduler,
// and final contig extraction.
package assemble

import (
	"math"
	"sync/atomic"

	"dbgasm/coverage"
	"dbgasm/telemetry"
	"dbgasm/vertex"
)

// Config holds the process-wide, read-only-after-setup assembly
// parameters. Thresholds not explicitly set by the caller fall back to
// their documented defaults via NewContext.
type Config struct {
	K int

	// Erode is the erosion coverage threshold override; zero means "derive
	// from the histogram". math.Inf(1) disables erosion
	// entirely.
	Erode float64
	// ErodeStrand is the per-strand erosion threshold for the independent
	// ErodeStranded phase; <= 0 disables that phase. It does not affect
	// Erode's own combined-coverage threshold.
	ErodeStrand float64

	// Coverage is the mean-coverage cutoff for the low-coverage filter;
	// <= 0 disables it.
	Coverage float64

	// TrimLen is the trimmer's length bound; 0 means "default to K".
	TrimLen int
	// BubbleLen is the bubble popper's length bound. <= 0 disables bubble
	// popping entirely, matching abyss-paired-dbg.cc's `if (opt::bubbleLen
	// > 0) popBubbles(g)`. BubbleLen is a pointer so NewContext can tell
	// "left unset" (nil, defaults to 3*K) apart from an explicit 0 or
	// negative value (disabled) - the struct's int zero value can't carry
	// both meanings.
	BubbleLen *int
}

func (c Config) trimLen() int {
	if c.TrimLen > 0 {
		return c.TrimLen
	}
	return c.K
}

// CancelToken is a cooperative cancellation flag checked between phases and
// between tip-scans within a phase. Cancellation elsewhere in this
// codebase is ad hoc channel closes rather than context.Context, so this
// mirrors that in a minimal atomic-bool form.
type CancelToken struct {
	flag int32
}

// Cancel requests cancellation. Safe to call from any goroutine.
func (c *CancelToken) Cancel() { atomic.StoreInt32(&c.flag, 1) }

// Cancelled reports whether Cancel has been called.
func (c *CancelToken) Cancelled() bool { return atomic.LoadInt32(&c.flag) != 0 }

// CancelledError is returned by phases that observe a cancelled token
// mid-pass: the store is left in a consistent but partially processed
// state and the caller must discard it.
type CancelledError struct{}

func (CancelledError) Error() string { return "assemble: cancelled" }

// Context threads the store, derived thresholds, configuration and a
// telemetry sink through every phase, replacing a dependency on
// process-wide globals and an optional statistics database.
type Context struct {
	Store      *vertex.Store
	Config     Config
	Thresholds coverage.Thresholds
	Telemetry  telemetry.Sink
	Cancel     *CancelToken
	Workers    int

	bubbleLen int
}

// BubbleLen returns the resolved bubble-popper length bound: <= 0 means
// bubble popping is disabled.
func (c *Context) BubbleLen() int { return c.bubbleLen }

// NewContext derives thresholds from hist (unless Config.Erode overrides
// them) and fills in the BubbleLen/TrimLen defaults.
func NewContext(s *vertex.Store, cfg Config, hist *coverage.Histogram, sink telemetry.Sink, workers int) *Context {
	if sink == nil {
		sink = telemetry.NoopSink{}
	}
	if workers < 1 {
		workers = 1
	}
	th := coverage.Derive(hist, cfg.Coverage)
	if cfg.Erode > 0 && !math.IsInf(cfg.Erode, 1) {
		th.Erosion = uint32(cfg.Erode)
	}
	bubbleLen := 3 * cfg.K
	if cfg.BubbleLen != nil {
		bubbleLen = *cfg.BubbleLen
	}
	return &Context{
		Store:      s,
		Config:     cfg,
		Thresholds: th,
		Telemetry:  sink,
		Cancel:     &CancelToken{},
		Workers:    workers,
		bubbleLen:  bubbleLen,
	}
}

// erosionThreshold returns the effective combined-coverage vertex
// multiplicity floor below which a tip is eroded by Erode. The
// per-strand check is a separate phase (ErodeStranded), not an override
// of this threshold.
func (c *Context) erosionThreshold() uint32 {
	return c.Thresholds.Erosion
}

// snr computes the signal-to-noise summary line value:
// 10*log10(surviving/removed). When nothing was removed the ratio is
// unbounded and +Inf is returned.
func snr(surviving, removed int) float64 {
	if removed <= 0 {
		return math.Inf(1)
	}
	return 10 * math.Log10(float64(surviving)/float64(removed))
}
