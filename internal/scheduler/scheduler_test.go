package scheduler

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/go-foundations/scheduler-sim/internal/clock"
	"github.com/go-foundations/scheduler-sim/internal/eventlog"
	"github.com/go-foundations/scheduler-sim/internal/policy"
	"github.com/go-foundations/scheduler-sim/internal/workload"
)

type SchedulerTestSuite struct {
	suite.Suite
}

func TestSchedulerTestSuite(t *testing.T) {
	suite.Run(t, new(SchedulerTestSuite))
}

func (ts *SchedulerTestSuite) newLogger() (*eventlog.Logger, string) {
	path := filepath.Join(ts.T().TempDir(), "scheduler.log")
	lg, err := eventlog.New(path)
	ts.Require().NoError(err)
	return lg, path
}

func (ts *SchedulerTestSuite) TestHPFThreeJobScenario() {
	lg, path := ts.newLogger()
	clk := clock.NewLogical()
	s := New(clk, Config{PolicyKind: policy.HPF, ArenaSize: 1024}, lg)

	arrivals := []workload.Arrival{
		{ID: 1, Arrival: 0, Runtime: 5, Priority: 3, MemSize: 64},
		{ID: 2, Arrival: 1, Runtime: 3, Priority: 1, MemSize: 64},
		{ID: 3, Arrival: 2, Runtime: 2, Priority: 2, MemSize: 64},
	}
	producer := workload.NewProducer(clk, arrivals)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ts.Require().NoError(s.Run(ctx, producer))

	data, err := os.ReadFile(path)
	ts.Require().NoError(err)
	text := string(data)

	ts.Contains(text, "At time 5 process 1 finished arr 0 total 5 remain 0 wait 0 TA 5 WTA 1.00")
	ts.Contains(text, "At time 8 process 2 finished arr 1 total 3 remain 0 wait 4 TA 7 WTA 2.33")
	ts.Contains(text, "At time 10 process 3 finished arr 2 total 2 remain 0 wait 6 TA 8 WTA 4.00")

	report := s.Report()
	ts.Equal(3, report.Completed)
}

func (ts *SchedulerTestSuite) TestRRQuantumRotation() {
	lg, path := ts.newLogger()
	clk := clock.NewLogical()
	s := New(clk, Config{PolicyKind: policy.RR, Quantum: 2}, lg)

	arrivals := []workload.Arrival{
		{ID: 1, Arrival: 0, Runtime: 4},
		{ID: 2, Arrival: 0, Runtime: 3},
		{ID: 3, Arrival: 0, Runtime: 2},
	}
	producer := workload.NewProducer(clk, arrivals)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ts.Require().NoError(s.Run(ctx, producer))

	data, err := os.ReadFile(path)
	ts.Require().NoError(err)
	text := string(data)

	// Job 3's burst exactly fills one quantum, so it finishes on its
	// first slice; jobs 1 and 2 then keep rotating in FIFO order, each
	// taking another full or partial slice until their own bursts are
	// exhausted — job 1 (burst 4) needs a full second 2-tick slice and
	// finishes first, job 2 (burst 3) only needs one more tick and
	// finishes a tick later.
	ts.Contains(text, "At time 6 process 3 finished")
	ts.Contains(text, "At time 8 process 1 finished")
	ts.Contains(text, "At time 9 process 2 finished")
	ts.Equal(3, s.Report().Completed)
}

func (ts *SchedulerTestSuite) TestSRTNPreemption() {
	lg, path := ts.newLogger()
	clk := clock.NewLogical()
	s := New(clk, Config{PolicyKind: policy.SRTN, ArenaSize: 256}, lg)

	arrivals := []workload.Arrival{
		{ID: 1, Arrival: 0, Runtime: 7, MemSize: 64},
		{ID: 2, Arrival: 2, Runtime: 2, MemSize: 64},
	}
	producer := workload.NewProducer(clk, arrivals)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ts.Require().NoError(s.Run(ctx, producer))

	data, err := os.ReadFile(path)
	ts.Require().NoError(err)
	text := string(data)

	ts.Contains(text, "At time 2 process 1 stopped arr 0 total 7 remain 5 wait 0")
	ts.Contains(text, "At time 2 process 2 started arr 2 total 2 remain 2 wait 0")
	ts.Contains(text, "At time 4 process 2 finished arr 2 total 2 remain 0 wait 0 TA 2 WTA 1.00")
	ts.Contains(text, "At time 4 process 1 resumed arr 0 total 7 remain 5 wait 2")
	// Job 1 ran ticks 0-1 before preemption (2 ticks) and needs 5 more
	// after resuming at tick 4 (ticks 4-8), so the next completion check
	// — at tick 9 — is the first where Remaining reaches 0: TA = 9,
	// WTA = 9/7 ≈ 1.29. This is one tick later than spec.md's scenario
	// narration ("finishes at tick 8"), the same kind of off-by-one in
	// the prose relative to the literal per-tick formula already found
	// in the round-robin scenario; this implementation follows the
	// formula.
	ts.Contains(text, "At time 9 process 1 finished arr 0 total 7 remain 0 wait 2 TA 9 WTA 1.29")
	ts.Equal(2, s.Report().Completed)
}

func (ts *SchedulerTestSuite) TestMemoryBlockingAndAdmission() {
	lg, path := ts.newLogger()
	clk := clock.NewLogical()
	s := New(clk, Config{PolicyKind: policy.RR, Quantum: 10, ArenaSize: 256}, lg)

	arrivals := []workload.Arrival{
		{ID: 1, Arrival: 0, Runtime: 5, MemSize: 200},
		{ID: 2, Arrival: 0, Runtime: 5, MemSize: 100},
	}
	producer := workload.NewProducer(clk, arrivals)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ts.Require().NoError(s.Run(ctx, producer))

	data, err := os.ReadFile(path)
	ts.Require().NoError(err)
	text := string(data)

	ts.Contains(text, "At time 5 process 1 finished")
	ts.Contains(text, "At time 10 process 2 finished")
	ts.Equal(2, s.Report().Completed)
}

func (ts *SchedulerTestSuite) TestConservationAllArrivalsAreAccountedFor() {
	lg, _ := ts.newLogger()
	clk := clock.NewLogical()
	s := New(clk, Config{PolicyKind: policy.RR, Quantum: 1}, lg)

	arrivals := []workload.Arrival{
		{ID: 1, Arrival: 0, Runtime: 3},
		{ID: 2, Arrival: 2, Runtime: 1},
		{ID: 3, Arrival: 5, Runtime: 4},
	}
	producer := workload.NewProducer(clk, arrivals)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ts.Require().NoError(s.Run(ctx, producer))

	ts.Equal(len(arrivals), s.Report().Completed)
	ts.True(s.arena.IsEmpty())
}

func (ts *SchedulerTestSuite) TestEventLogOrderingFinishedBeforeNextStarted() {
	lg, path := ts.newLogger()
	clk := clock.NewLogical()
	s := New(clk, Config{PolicyKind: policy.HPF, ArenaSize: 64}, lg)

	arrivals := []workload.Arrival{
		{ID: 1, Arrival: 0, Runtime: 2, Priority: 1},
		{ID: 2, Arrival: 0, Runtime: 2, Priority: 2},
	}
	producer := workload.NewProducer(clk, arrivals)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ts.Require().NoError(s.Run(ctx, producer))

	data, err := os.ReadFile(path)
	ts.Require().NoError(err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")

	finishedIdx, startedIdx := -1, -1
	for i, l := range lines {
		if strings.Contains(l, "process 1 finished") {
			finishedIdx = i
		}
		if strings.Contains(l, "process 2 started") {
			startedIdx = i
		}
	}
	ts.Require().NotEqual(-1, finishedIdx)
	ts.Require().NotEqual(-1, startedIdx)
	ts.Less(finishedIdx, startedIdx)
}
