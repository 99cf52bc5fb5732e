// Package scheduler drives the per-tick control loop: intake from the
// workload producer, memory admission through the buddy allocator,
// dispatch against the active policy's ready structure, context
// switching, and completion bookkeeping. It is the generalization of the
// teacher's WorkerPool.Run() dispatch loop — "distribute jobs to N
// workers" becomes "drive exactly one job at a time through a
// policy-ordered ready structure" — and follows the same config/metrics/
// mutex shape, single-threaded instead of fanned out across goroutines.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/go-foundations/scheduler-sim/internal/buddy"
	"github.com/go-foundations/scheduler-sim/internal/eventlog"
	"github.com/go-foundations/scheduler-sim/internal/job"
	"github.com/go-foundations/scheduler-sim/internal/metrics"
	"github.com/go-foundations/scheduler-sim/internal/policy"
	"github.com/go-foundations/scheduler-sim/internal/queue"
	"github.com/go-foundations/scheduler-sim/internal/workload"
)

// Fault is a structural invariant violation — the Go-native realization
// of the original's fatal assertion path (no recovery, per spec.md §7).
// The caller is expected to flush logs and exit rather than continue.
type Fault struct {
	Invariant string
	Detail    string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("scheduler: invariant %q violated: %s", f.Invariant, f.Detail)
}

// Clock is the narrow capability the scheduler needs from internal/clock;
// kept local so this package doesn't force a concrete clock choice on
// its callers.
type Clock interface {
	Now() int
}

// advancer is implemented by clock.Logical: in batch mode the scheduler
// itself decides when a tick elapses, rather than waiting on a real
// time.Ticker.
type advancer interface {
	Advance() int
}

// Config holds the run-time parameters the scheduler core needs; the
// policy, quantum, and arena size come straight from internal/config.
type Config struct {
	PolicyKind policy.Kind
	Quantum    int
	ArenaSize  int
}

// Scheduler is the control loop plus all the state spec.md §4.4 assigns
// it: the policy, the staging/block queues, the buddy arena, and the
// running job.
type Scheduler struct {
	clock  Clock
	policy policy.Policy
	quantum int
	currQuantum int

	arena   *buddy.Tree
	staging *queue.Queue[*job.Job]
	block   *queue.Queue[*job.Job]

	running       *job.Job
	endOfWorkload bool

	metrics *metrics.Accumulator
	log     *eventlog.Logger

	mu       sync.RWMutex
	lastTick int
}

// New constructs a scheduler core bound to clk, logging through lg.
func New(clk Clock, cfg Config, lg *eventlog.Logger) *Scheduler {
	return &Scheduler{
		clock:       clk,
		policy:      policy.NewFactory().Create(cfg.PolicyKind),
		quantum:     cfg.Quantum,
		currQuantum: cfg.Quantum,
		arena:       buddy.NewTree(cfg.ArenaSize),
		staging:     queue.New[*job.Job](),
		block:       queue.New[*job.Job](),
		metrics:     metrics.New(),
		log:         lg,
		lastTick:    -1,
	}
}

// Run launches the producer alongside the control loop under one
// cancellation scope, the way the teacher's Run() coordinates worker
// goroutines with a sync.WaitGroup — upgraded to errgroup so the first
// error (from either side) cancels the other and is returned.
func (s *Scheduler) Run(ctx context.Context, producer *workload.Producer) error {
	if _, batch := s.clock.(advancer); batch {
		// Batch mode: the scheduler itself decides when a tick elapses
		// (no real time.Ticker driving it), so intake is pulled
		// in-line, synchronously, from the same goroutine that reads
		// and advances the clock — there is no second goroutine to
		// race against an unthrottled clock advance.
		return s.loopBatch(ctx, producer)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return producer.Run(gctx)
	})
	g.Go(func() error {
		return s.loopLive(gctx, producer.Arrivals())
	})
	return g.Wait()
}

// loopBatch drives the control loop with a deterministic logical clock,
// pulling arrivals synchronously via producer.Drain instead of through a
// channel, so tick progression and intake can never race each other.
func (s *Scheduler) loopBatch(ctx context.Context, producer *workload.Producer) error {
	for {
		select {
		case <-ctx.Done():
			return s.shutdown(ctx.Err())
		default:
		}

		now := s.clock.Now()
		due, exhausted := producer.Drain(now)
		s.stage(due)
		if exhausted {
			s.endOfWorkload = true
		}

		if err := s.tick(now); err != nil {
			return s.shutdown(err)
		}

		if s.terminated() {
			return s.shutdown(nil)
		}

		s.clock.(advancer).Advance()
	}
}

// loopLive drives the control loop against a real-time clock, pulling
// arrivals non-blocking from the producer's channel at the top of every
// iteration (spec.md §5 "drained at the top of the next loop iteration").
func (s *Scheduler) loopLive(ctx context.Context, arrivals <-chan workload.Arrival) error {
	for {
		select {
		case <-ctx.Done():
			return s.shutdown(ctx.Err())
		default:
		}

		if err := s.intake(arrivals); err != nil {
			return err
		}

		now := s.clock.Now()

		if err := s.tick(now); err != nil {
			return s.shutdown(err)
		}

		if s.terminated() {
			return s.shutdown(nil)
		}

		select {
		case <-time.After(time.Millisecond):
		case <-ctx.Done():
			return s.shutdown(ctx.Err())
		}
	}
}

// tick runs one iteration's worth of work at the given clock value:
// completion check, admission, dispatch, and (at most once per distinct
// tick value) the policy tick and the CPU-busy tick count, per spec.md
// §4.4 steps 1-3.
func (s *Scheduler) tick(now int) error {
	// Completion is checked before this tick's admission/dispatch so a
	// `finished` record always precedes the `started`/`resumed` of
	// whoever takes over the CPU in the same tick (spec.md §5 ordering
	// guarantee).
	if err := s.checkCompletion(now); err != nil {
		return err
	}

	if err := s.admitStaged(); err != nil {
		return err
	}

	if err := s.dispatch(now); err != nil {
		return err
	}

	if now != s.lastTick {
		s.mu.Lock()
		if s.policy.Kind() == policy.SRTN && s.running != nil {
			// SRTN decrements only the minimum's key, so the running job
			// must be ready's head here.
			if head, ok := s.policy.Ready().Head(); !ok || head.SpawnID != s.running.SpawnID {
				s.mu.Unlock()
				return &Fault{Invariant: "srtn-running-is-min", Detail: "running job is not the head of ready before decrement"}
			}
		}
		s.policy.Tick(now, s.quantum, &s.currQuantum)
		s.mu.Unlock()
		s.lastTick = now

		if s.running != nil {
			s.metrics.RecordTick()
		}
	}
	s.metrics.RecordFinalTick(now)
	return nil
}

// stage builds a fresh staged job for each due arrival, per spec.md §4.4
// "Intake": first-start = -1, wait = 0, last-stop = arrival.
func (s *Scheduler) stage(due []workload.Arrival) {
	if len(due) == 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range due {
		j := job.New(a.ID, a.Arrival, a.Runtime, a.Priority, a.MemSize)
		j.AssignSpawnID()
		s.staging.PushTail(j)
	}
}

// intake drains the producer channel non-blocking and stages each
// arrival; the live-mode counterpart to stage, used when arrivals come
// in asynchronously over a channel rather than via a synchronous Drain.
func (s *Scheduler) intake(arrivals <-chan workload.Arrival) error {
	for {
		select {
		case a, ok := <-arrivals:
			if !ok {
				s.endOfWorkload = true
				return nil
			}
			j := job.New(a.ID, a.Arrival, a.Runtime, a.Priority, a.MemSize)
			j.AssignSpawnID()
			s.mu.Lock()
			s.staging.PushTail(j)
			s.mu.Unlock()
		default:
			return nil
		}
	}
}

// admitStaged is per-tick-loop step 1 (spec.md §4.4): every staged job is
// offered to the buddy allocator; success promotes it to READY in the
// policy's ready structure, failure demotes it to BLOCKED in the block
// queue. A zero memory footprint (the workload file's optional field,
// absent ⇒ 0) never touches the allocator at all.
func (s *Scheduler) admitStaged() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.staging.FilterInPlace(func(*job.Job) bool { return true }, func(j *job.Job) {
		if j.MemSize <= 0 {
			j.State = job.Ready
			s.policy.Admit(j)
			return
		}
		region, err := s.arena.Allocate(j.MemSize)
		if err != nil {
			j.State = job.Blocked
			s.block.PushTail(j)
			return
		}
		j.Mem = region
		j.State = job.Ready
		s.policy.Admit(j)
	})
	return nil
}

// dispatch is per-tick-loop step 2: peek the ready head and perform a
// context switch if the running job (by spawn id) differs from it.
func (s *Scheduler) dispatch(now int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	candidate, hasCandidate := s.policy.Ready().Head()
	runningIsNone := s.running == nil
	candIsNone := !hasCandidate

	needSwitch := runningIsNone != candIsNone
	if !needSwitch && !runningIsNone && !candIsNone {
		needSwitch = s.running.SpawnID != candidate.SpawnID
	}
	if !needSwitch {
		return nil
	}

	return s.contextSwitch(now, candidate, hasCandidate)
}

// contextSwitch implements spec.md §4.4.1. Outgoing and incoming are
// each optional: either side may be none.
func (s *Scheduler) contextSwitch(now int, incoming *job.Job, hasIncoming bool) error {
	outgoing := s.running

	if outgoing != nil {
		outgoing.LastStop = now
		outgoing.State = job.Ready
		s.log.Event(eventlog.Record{
			Tick:       now,
			JobID:      outgoing.WorkloadID,
			Transition: eventlog.Stopped,
			Arrival:    outgoing.Arrival,
			Total:      outgoing.Total,
			Remaining:  outgoing.Remaining(now),
			Wait:       outgoing.Wait,
		})
	}

	if hasIncoming {
		incoming.Wait += now - incoming.LastStop
		transition := eventlog.Resumed
		if incoming.FirstStart == -1 {
			incoming.FirstStart = now
			transition = eventlog.Started
		}
		incoming.State = job.Running
		s.log.Event(eventlog.Record{
			Tick:       now,
			JobID:      incoming.WorkloadID,
			Transition: transition,
			Arrival:    incoming.Arrival,
			Total:      incoming.Total,
			Remaining:  incoming.Remaining(now),
			Wait:       incoming.Wait,
		})
		s.running = incoming
	} else {
		s.running = nil
	}

	if s.policy.Kind() == policy.RR {
		s.currQuantum = s.quantum
	}
	return nil
}

// checkCompletion detects a running job whose burst has been fully
// consumed as of now and runs the completion routine of spec.md §4.4.3.
func (s *Scheduler) checkCompletion(now int) error {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	if running == nil || running.Remaining(now) > 0 {
		return nil
	}
	return s.complete(now)
}

// complete implements spec.md §4.4.3, steps 1-7.
func (s *Scheduler) complete(now int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running == nil {
		return &Fault{Invariant: "completion-identity", Detail: "completion detected with no running job"}
	}
	finished := s.running
	if ok := s.policy.RemoveJob(finished); !ok {
		return &Fault{Invariant: "completion-pop", Detail: "running job not found in ready structure"}
	}

	ta := finished.TurnAround(now)
	wta := finished.WeightedTurnAround(now)
	finished.State = job.Finished

	s.log.Event(eventlog.Record{
		Tick:       now,
		JobID:      finished.WorkloadID,
		Transition: eventlog.Finished,
		Arrival:    finished.Arrival,
		Total:      finished.Total,
		Remaining:  0,
		Wait:       finished.Wait,
		TA:         ta,
		WTA:        wta,
	})
	s.metrics.RecordCompletion(finished.Wait, wta)

	freedBudget := 0
	if finished.Mem != nil {
		if region, ok := finished.Mem.(*buddy.Region); ok {
			freedBudget = buddy.Free(region)
		}
	}
	finished.Mem = nil
	s.running = nil

	// Admission sweep of the block queue, head-first, per spec.md
	// §4.4.3 step 6. The local budget is only an upper bound; a failed
	// allocation (despite budget headroom) just leaves the job in
	// place for the next sweep.
	budget := freedBudget
	s.block.FilterInPlace(func(bj *job.Job) bool {
		if bj.MemSize > budget {
			return false
		}
		region, err := s.arena.Allocate(bj.MemSize)
		if err != nil {
			return false
		}
		bj.Mem = region
		budget -= region.Size()
		return true
	}, func(bj *job.Job) {
		bj.State = job.Ready
		s.policy.Admit(bj)
	})

	return nil
}

// terminated is per-tick-loop step 4 (spec.md §4.4).
func (s *Scheduler) terminated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.endOfWorkload &&
		s.running == nil &&
		s.staging.IsEmpty() &&
		s.block.IsEmpty() &&
		s.policy.Ready().Size() == 0
}

// shutdown flushes and closes the event log, then returns cause unchanged,
// or nil when cause is nil or context.Canceled. A nil result is a normal
// termination (spec.md §7 "exit code 0").
func (s *Scheduler) shutdown(cause error) error {
	s.log.Infof("scheduler shutting down")
	if err := s.log.Close(); err != nil {
		return fmt.Errorf("scheduler: close event log: %w", err)
	}
	if cause != nil && !errors.Is(cause, context.Canceled) {
		return cause
	}
	return nil
}

// Report returns the end-of-run metrics accumulated so far.
func (s *Scheduler) Report() metrics.Report {
	return s.metrics.Report()
}

// Snapshot exposes the ready structure through the observability adapter
// contract (spec.md §4.5), guarded by the same mutex the loop uses so a
// concurrent reader never observes a half-mutated structure.
func (s *Scheduler) Snapshot(keyFn func(*job.Job) int) []*job.Job {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.policy.Snapshot(keyFn)
}
