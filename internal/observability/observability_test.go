package observability

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/go-foundations/scheduler-sim/internal/job"
)

type ObservabilityTestSuite struct {
	suite.Suite
}

func TestObservabilityTestSuite(t *testing.T) {
	suite.Run(t, new(ObservabilityTestSuite))
}

// fakeSource stands in for *scheduler.Scheduler: it just returns whatever
// slice was last handed to it, in keyFn order by the caller's choosing so
// the test controls ordering directly.
type fakeSource struct {
	jobs []*job.Job
}

func (f *fakeSource) Snapshot(keyFn func(*job.Job) int) []*job.Job {
	return f.jobs
}

func newTestJob(id, arrival, total, priority int) *job.Job {
	j := job.New(id, arrival, total, priority, 0)
	j.State = job.Ready
	return j
}

func (ts *ObservabilityTestSuite) TestAdapterProjectsEntriesAtGivenTick() {
	src := &fakeSource{jobs: []*job.Job{
		newTestJob(1, 0, 5, 2),
		newTestJob(2, 1, 3, 1),
	}}
	now := 4
	a := NewAdapter(src, func() int { return now }, func(j *job.Job) int { return j.Priority })

	snap := a.Snapshot()
	ts.Equal(4, snap.Tick)
	ts.Require().Len(snap.Entries, 2)
	ts.Equal(1, snap.Entries[0].JobID)
	ts.Equal("READY", snap.Entries[0].State)
	ts.Equal(5-4, snap.Entries[0].Remaining)
}

func (ts *ObservabilityTestSuite) TestAdapterEmptySourceYieldsEmptySnapshot() {
	src := &fakeSource{}
	a := NewAdapter(src, func() int { return 0 }, func(j *job.Job) int { return 0 })
	snap := a.Snapshot()
	ts.Equal(0, snap.Tick)
	ts.Empty(snap.Entries)
}

func (ts *ObservabilityTestSuite) TestWatcherEmitsAnInitialSnapshotImmediately() {
	src := &fakeSource{jobs: []*job.Job{newTestJob(1, 0, 5, 0)}}
	a := NewAdapter(src, func() int { return 0 }, func(j *job.Job) int { return 0 })
	w := NewWatcher(a, time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	ch := w.Watch(ctx)
	select {
	case snap, ok := <-ch:
		ts.Require().True(ok)
		ts.Len(snap.Entries, 1)
	case <-time.After(500 * time.Millisecond):
		ts.Fail("expected an initial snapshot")
	}
}

func (ts *ObservabilityTestSuite) TestWatcherClosesChannelWhenContextCancelled() {
	src := &fakeSource{}
	a := NewAdapter(src, func() int { return 0 }, func(j *job.Job) int { return 0 })
	w := NewWatcher(a, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	ch := w.Watch(ctx)
	<-ch // drain the initial snapshot
	cancel()

	select {
	case _, ok := <-ch:
		ts.False(ok)
	case <-time.After(time.Second):
		ts.Fail("channel was never closed")
	}
}
