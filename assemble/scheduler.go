package assemble

// Result summarizes one full run of the phase scheduler.
type Result struct {
	Eroded  int
	Trimmed int
	LowCov  int
	Bubbles int
	Contigs int
	SNR     float64
}

// Run drives the phase control flow: erode -> erode (per-strand) -> trim
// -> [low-coverage filter; re-enter erode once] -> bubble popping -> walk.
// Mirrors ABySS running its combined-coverage and per-strand erosion
// checks as two independent passes rather than one substituting for the
// other. Implemented as a loop with an explicit "filter happened this
// round" flag in place of a `goto erode`.
func Run(ctx *Context, bubbles BubbleSink, contigs ContigSink) (Result, error) {
	var res Result
	startSize := ctx.Store.Size()

	for {
		eroded, err := Erode(ctx)
		if err != nil {
			return res, err
		}
		res.Eroded += eroded

		strandEroded, err := ErodeStranded(ctx)
		if err != nil {
			return res, err
		}
		res.Eroded += strandEroded

		trimmed, err := Trim(ctx)
		if err != nil {
			return res, err
		}
		res.Trimmed += trimmed

		filtered, didFilter, err := LowCoverageFilter(ctx)
		if err != nil {
			return res, err
		}
		res.LowCov += filtered
		if !didFilter {
			break
		}
		if filtered == 0 {
			break
		}
		// A filter round removed vertices: re-enter erosion once, then
		// fall through to bubble popping only once the filter stops
		// finding anything.
	}

	popped, err := PopBubbles(ctx, bubbles)
	if err != nil {
		return res, err
	}
	res.Bubbles = popped

	count, err := Walk(ctx, contigs)
	res.Contigs = count
	removed := startSize - ctx.Store.Size()
	res.SNR = snr(ctx.Store.Size(), removed)
	if err != nil {
		return res, err
	}
	return res, nil
}
