// Package policy implements the scheduler's pluggable dispatch policies:
// HPF (non-preemptive highest-priority-first), SRTN (preemptive
// shortest-remaining-time-next), and RR (round robin). Each policy owns
// the concrete shape of the ready structure (a Fibonacci heap for HPF/SRTN,
// a FIFO for RR) behind the Policy interface, the way the teacher's
// strategies.Strategy interface lets workerpool.Run() stay agnostic of how
// a given DistributionStrategy actually moves jobs between workers.
package policy

import (
	"github.com/go-foundations/scheduler-sim/internal/fibheap"
	"github.com/go-foundations/scheduler-sim/internal/job"
	"github.com/go-foundations/scheduler-sim/internal/queue"
)

// Kind identifies which scheduling policy is in effect, mirroring the
// numeric codes spec.md §6 assigns on the command line (1=HPF, 2=SRTN,
// 3=RR).
type Kind int

const (
	HPF Kind = iota + 1
	SRTN
	RR
)

// String renders the kind for logs and CLI help.
func (k Kind) String() string {
	switch k {
	case HPF:
		return "hpf"
	case SRTN:
		return "srtn"
	case RR:
		return "rr"
	default:
		return "unknown"
	}
}

// ParseKind accepts both the numeric codes from spec.md §6 and their name
// aliases, the way SPEC_FULL.md's CLI contract extends the original.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "1", "hpf", "HPF":
		return HPF, true
	case "2", "srtn", "SRTN":
		return SRTN, true
	case "3", "rr", "RR":
		return RR, true
	default:
		return 0, false
	}
}

// Ready is the minimal surface the scheduler needs from whichever concrete
// ready structure (heap or queue) the active policy owns: peek the current
// head and learn how many jobs are waiting.
type Ready interface {
	// Head returns the job that should be running right now, without
	// removing it.
	Head() (*job.Job, bool)
	// Size returns the number of ready jobs.
	Size() int
}

// Policy drives one scheduling discipline: it owns the concrete ready
// structure, knows how to admit a newly staged or unblocked job into it,
// how to remove the currently running job on completion, and how to
// advance its per-tick accounting (§4.4.2).
type Policy interface {
	// Name returns the policy's human-readable name.
	Name() string
	// Kind returns the policy's command-line code.
	Kind() Kind
	// Ready exposes the read-only head/size surface.
	Ready() Ready
	// Admit inserts a newly admitted job using the policy's key.
	Admit(j *job.Job)
	// RemoveHead pops the current head. The scheduler's completion path
	// uses RemoveJob instead.
	RemoveHead() (*job.Job, bool)
	// RemoveJob removes a specific job from the ready structure by
	// identity and reports whether it was found. RR searches its whole
	// FIFO: its quantum-expiry rotation can move the running job off the
	// head one iteration before the scheduler's next dispatch notices
	// (spec.md §4.4.2: "a context switch will be emitted on the next
	// iteration"), so completion cannot assume the running job is still
	// at the head. HPF and SRTN only extract their minimum and report
	// whether it was target; a non-matching minimum is removed all the same.
	RemoveJob(target *job.Job) bool
	// Tick advances the running job's per-tick accounting (§4.4.2). now is
	// the current clock tick; quantum/curRemaining are only meaningful for
	// RR and are passed by pointer so the policy can mutate curRemaining in
	// place.
	Tick(now int, quantum int, curRemaining *int)
	// Snapshot produces a heap-ordered copy of the ready structure keyed by
	// keyFn, for the observability adapter (§4.5). It never mutates the
	// source.
	Snapshot(keyFn func(*job.Job) int) []*job.Job
}

// hpfPolicy is non-preemptive highest-priority-first: the running job is
// pinned to key 0 so it remains head until it completes (§4.4.2).
type hpfPolicy struct {
	heap *fibheap.Heap[*job.Job]
}

// NewHPF constructs the HPF policy, keyed by job priority (lower value =
// higher priority).
func NewHPF() Policy {
	return &hpfPolicy{heap: fibheap.New[*job.Job]()}
}

func (p *hpfPolicy) Name() string { return "Highest Priority First" }
func (p *hpfPolicy) Kind() Kind   { return HPF }

func (p *hpfPolicy) Ready() Ready { return heapReady{p.heap} }

func (p *hpfPolicy) Admit(j *job.Job) {
	p.heap.Insert(j, j.Priority)
}

func (p *hpfPolicy) RemoveHead() (*job.Job, bool) {
	return p.heap.ExtractMin()
}

func (p *hpfPolicy) RemoveJob(target *job.Job) bool {
	j, ok := p.heap.ExtractMin()
	return ok && j.SpawnID == target.SpawnID
}

func (p *hpfPolicy) Tick(now int, quantum int, curRemaining *int) {
	if p.heap.Size() == 0 {
		return
	}
	p.heap.DecreaseMinKey(0)
}

func (p *hpfPolicy) Snapshot(keyFn func(*job.Job) int) []*job.Job {
	return drainCopy(p.heap, keyFn)
}

// srtnPolicy is preemptive shortest-remaining-time-next: the running job's
// key (its remaining burst) is decremented by one every tick, so a freshly
// admitted job with a smaller total burst naturally becomes the new head
// the next time the scheduler peeks ready (§4.4.2).
type srtnPolicy struct {
	heap *fibheap.Heap[*job.Job]
}

// NewSRTN constructs the SRTN policy, keyed by remaining burst.
func NewSRTN() Policy {
	return &srtnPolicy{heap: fibheap.New[*job.Job]()}
}

func (p *srtnPolicy) Name() string { return "Shortest Remaining Time Next" }
func (p *srtnPolicy) Kind() Kind   { return SRTN }

func (p *srtnPolicy) Ready() Ready { return heapReady{p.heap} }

func (p *srtnPolicy) Admit(j *job.Job) {
	p.heap.Insert(j, j.Total)
}

func (p *srtnPolicy) RemoveHead() (*job.Job, bool) {
	return p.heap.ExtractMin()
}

func (p *srtnPolicy) RemoveJob(target *job.Job) bool {
	j, ok := p.heap.ExtractMin()
	return ok && j.SpawnID == target.SpawnID
}

func (p *srtnPolicy) Tick(now int, quantum int, curRemaining *int) {
	if p.heap.Size() == 0 {
		return
	}
	key, _ := p.heap.MinKey()
	p.heap.DecreaseMinKey(key - 1)
}

func (p *srtnPolicy) Snapshot(keyFn func(*job.Job) int) []*job.Job {
	return drainCopy(p.heap, keyFn)
}

// rrPolicy is round robin: the ready structure is a plain FIFO, and a
// running job that exhausts its quantum is rotated to the tail (§4.4.2).
type rrPolicy struct {
	q *queue.Queue[*job.Job]
}

// NewRR constructs the round-robin policy.
func NewRR() Policy {
	return &rrPolicy{q: queue.New[*job.Job]()}
}

func (p *rrPolicy) Name() string { return "Round Robin" }
func (p *rrPolicy) Kind() Kind   { return RR }

func (p *rrPolicy) Ready() Ready { return queueReady{p.q} }

func (p *rrPolicy) Admit(j *job.Job) {
	p.q.PushTail(j)
}

func (p *rrPolicy) RemoveHead() (*job.Job, bool) {
	return p.q.PopHead()
}

// RemoveJob finds target wherever it sits in the FIFO — not necessarily
// at the head, since a quantum-expiry rotation may have moved it to the
// tail in the same tick it finished — and removes it.
func (p *rrPolicy) RemoveJob(target *job.Job) bool {
	found := false
	p.q.FilterInPlace(func(cand *job.Job) bool {
		return cand.SpawnID == target.SpawnID
	}, func(*job.Job) {
		found = true
	})
	return found
}

// Tick decrements the remaining quantum; when it reaches zero, the head job
// is rotated to the tail and *curRemaining is reset to quantum. The pointer
// is the scheduler's own curr_quantum (spec.md §4.4), which the scheduler
// also resets on every RR context switch.
func (p *rrPolicy) Tick(now int, quantum int, curRemaining *int) {
	if p.q.IsEmpty() {
		return
	}
	*curRemaining--
	if *curRemaining <= 0 {
		j, ok := p.q.PopHead()
		if ok {
			p.q.PushTail(j)
		}
		*curRemaining = quantum
	}
}

func (p *rrPolicy) Snapshot(keyFn func(*job.Job) int) []*job.Job {
	cp := queue.New[*job.Job]()
	p.q.CopyInto(cp)
	items := cp.ToSlice()
	h := fibheap.New[*job.Job]()
	for _, j := range items {
		h.Insert(j, keyFn(j))
	}
	var out []*job.Job
	for h.Size() > 0 {
		v, _ := h.ExtractMin()
		out = append(out, v)
	}
	return out
}

// heapReady adapts *fibheap.Heap[*job.Job] to the Ready interface.
type heapReady struct {
	h *fibheap.Heap[*job.Job]
}

func (r heapReady) Head() (*job.Job, bool) { return r.h.Min() }
func (r heapReady) Size() int              { return r.h.Size() }

// queueReady adapts *queue.Queue[*job.Job] to the Ready interface.
type queueReady struct {
	q *queue.Queue[*job.Job]
}

func (r queueReady) Head() (*job.Job, bool) { return r.q.PeekHead() }
func (r queueReady) Size() int              { return r.q.Size() }

// drainCopy builds an observability snapshot from a heap-backed ready
// structure without disturbing the source, per spec.md §4.5: allocate a
// fresh heap keyed by keyFn, copy every element in, then drain it in
// sorted order.
func drainCopy(src *fibheap.Heap[*job.Job], keyFn func(*job.Job) int) []*job.Job {
	dst := fibheap.New[*job.Job]()
	src.CopyInto(dst, keyFn)
	var out []*job.Job
	for dst.Size() > 0 {
		v, _ := dst.ExtractMin()
		out = append(out, v)
	}
	return out
}

// Factory selects a Policy implementation from a Kind, the way the
// teacher's strategies.StrategyFactory.CreateStrategy selects a Strategy
// from a DistributionStrategy tag.
type Factory struct{}

// NewFactory constructs a policy factory.
func NewFactory() Factory { return Factory{} }

// Create returns a fresh Policy for kind, defaulting to RR for an unknown
// kind the same way the teacher's factory falls back to RoundRobinStrategy.
func (Factory) Create(kind Kind) Policy {
	switch kind {
	case HPF:
		return NewHPF()
	case SRTN:
		return NewSRTN()
	case RR:
		return NewRR()
	default:
		return NewRR()
	}
}
