package workload

import (
	"context"
	"sort"
	"time"

	"github.com/go-foundations/scheduler-sim/internal/clock"
)

// Producer stands in for the external collaborator that, per spec.md §6,
// "sends one message per job at the logical tick of its arrival and emits
// an 'arrivals available' notification. When the workload is exhausted it
// emits 'workload exhausted'." It is the concrete, in-process replacement
// for the original's IPC message queue (§9 "Replace [signal-driven
// notifications] with a single-consumer notification channel").
type Producer struct {
	clock    clock.Clock
	arrivals []Arrival
	out      chan Arrival
}

// NewProducer builds a producer that will deliver arrivals at their
// recorded arrival tick, as observed through clk. Workload records need not
// be sorted by arrival (spec.md §6); a stable sort here establishes the
// strictly non-decreasing tick order Drain/Run rely on, preserving file
// order among same-tick records (spec.md §5 "arrival order ... is the
// order in which the producer delivered them").
func NewProducer(clk clock.Clock, arrivals []Arrival) *Producer {
	sorted := make([]Arrival, len(arrivals))
	copy(sorted, arrivals)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Arrival < sorted[j].Arrival })
	return &Producer{clock: clk, arrivals: sorted, out: make(chan Arrival, len(arrivals)+1)}
}

// Arrivals returns the channel the scheduler drains on every loop
// iteration. It is closed once every record has been sent — the stand-in
// for spec.md's "workload exhausted" notification.
func (p *Producer) Arrivals() <-chan Arrival {
	return p.out
}

// Drain synchronously returns every pending arrival whose tick is <= now,
// removing them from the pending set, and reports whether every arrival
// has now been delivered. It is the batch-mode counterpart to Run plus
// Arrivals: a scheduler driving its own logical clock calls Drain
// in-line, once per loop iteration, instead of racing a separate
// goroutine against its own unthrottled clock advance — there is no
// "producer hasn't caught up yet" window to worry about when delivery
// happens on the same goroutine that reads the clock.
func (p *Producer) Drain(now int) (due []Arrival, exhausted bool) {
	i := 0
	for i < len(p.arrivals) && p.arrivals[i].Arrival <= now {
		i++
	}
	due = p.arrivals[:i]
	p.arrivals = p.arrivals[i:]
	return due, len(p.arrivals) == 0
}

// Run blocks, delivering each arrival once the clock reaches its tick, in
// file order for ties (spec.md §5 "arrival order of jobs with the same
// arrival tick is the order in which the producer delivered them"). It
// returns when ctx is cancelled or every arrival has been sent.
func (p *Producer) Run(ctx context.Context) error {
	defer close(p.out)

	remaining := p.arrivals
	for len(remaining) > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		now := p.clock.Now()
		i := 0
		for i < len(remaining) && remaining[i].Arrival <= now {
			select {
			case p.out <- remaining[i]:
			case <-ctx.Done():
				return ctx.Err()
			}
			i++
		}
		remaining = remaining[i:]
		if i == 0 && len(remaining) > 0 {
			// Nothing was ready this pass; avoid busy-spinning while we
			// wait for the clock to advance to the next arrival.
			select {
			case <-time.After(time.Millisecond):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}
