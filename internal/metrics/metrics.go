// Package metrics accumulates the end-of-run figures spec.md §4.6 and §8
// define: CPU utilisation, average weighted turnaround, average wait, and
// the population standard deviation of weighted turnaround. The shape
// mirrors the teacher's accumulate-then-report Metrics/GetMetrics split
// (internal counters fed incrementally by the run, a single Report() call
// at the end), generalized from throughput counters to the scheduler's
// own figures.
package metrics

import "math"

// Accumulator collects per-tick and per-completion samples as the
// scheduler runs.
type Accumulator struct {
	runningTicks int
	finalTick    int
	waits        []int
	wtas         []float64
}

// New returns an empty accumulator.
func New() *Accumulator {
	return &Accumulator{}
}

// RecordTick registers one tick during which some job was running, per
// §4.6 "CPU utilisation = Σ running / final tick".
func (a *Accumulator) RecordTick() {
	a.runningTicks++
}

// RecordFinalTick updates the run's final tick value — the denominator
// of CPU utilisation. Safe to call repeatedly; only the last value
// sticks.
func (a *Accumulator) RecordFinalTick(tick int) {
	a.finalTick = tick
}

// RecordCompletion registers a finished job's wait time and weighted
// turnaround, per §4.6 "average WTA; average wait".
func (a *Accumulator) RecordCompletion(wait int, wta float64) {
	a.waits = append(a.waits, wait)
	a.wtas = append(a.wtas, wta)
}

// Report is the end-of-run snapshot written to scheduler.perf.
type Report struct {
	CPUUtilization float64
	AverageWTA     float64
	AverageWait    float64
	StdDevWTA      float64
	Completed      int
}

// Report computes the final figures. Calling it before any job has
// completed yields a zero-valued report rather than dividing by zero.
func (a *Accumulator) Report() Report {
	n := len(a.wtas)
	if n == 0 {
		return Report{}
	}

	var sumWait int
	for _, w := range a.waits {
		sumWait += w
	}
	var sumWTA float64
	for _, w := range a.wtas {
		sumWTA += w
	}
	mean := sumWTA / float64(n)

	var sumSq float64
	for _, w := range a.wtas {
		d := w - mean
		sumSq += d * d
	}
	// Population standard deviation (÷N, not N−1) — spec.md §9 decides
	// this explicitly rather than leaving it to convention.
	stddev := math.Sqrt(sumSq / float64(n))

	var util float64
	if a.finalTick > 0 {
		util = float64(a.runningTicks) / float64(a.finalTick)
	}

	return Report{
		CPUUtilization: util,
		AverageWTA:     mean,
		AverageWait:    float64(sumWait) / float64(n),
		StdDevWTA:      stddev,
		Completed:      n,
	}
}
