package eventlog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
)

type EventLogTestSuite struct {
	suite.Suite
}

func TestEventLogTestSuite(t *testing.T) {
	suite.Run(t, new(EventLogTestSuite))
}

func (ts *EventLogTestSuite) newLogger() (*Logger, string) {
	path := filepath.Join(ts.T().TempDir(), "scheduler.log")
	lg, err := New(path)
	ts.Require().NoError(err)
	return lg, path
}

func (ts *EventLogTestSuite) readFile(path string) string {
	data, err := os.ReadFile(path)
	ts.Require().NoError(err)
	return string(data)
}

func (ts *EventLogTestSuite) TestStartedEventMatchesLiteralFormat() {
	lg, path := ts.newLogger()
	lg.Event(Record{Tick: 0, JobID: 1, Transition: Started, Arrival: 0, Total: 5, Remaining: 5, Wait: 0})
	ts.Require().NoError(lg.Close())

	ts.Contains(ts.readFile(path), "At time 0 process 1 started arr 0 total 5 remain 5 wait 0")
}

func (ts *EventLogTestSuite) TestFinishedEventAppendsTAAndWTA() {
	lg, path := ts.newLogger()
	lg.Event(Record{Tick: 5, JobID: 1, Transition: Finished, Arrival: 0, Total: 5, Remaining: 0, Wait: 0, TA: 5, WTA: 1.0})
	ts.Require().NoError(lg.Close())

	ts.Contains(ts.readFile(path), "At time 5 process 1 finished arr 0 total 5 remain 0 wait 0 TA 5 WTA 1.00")
}

func (ts *EventLogTestSuite) TestStoppedAndResumedOmitTAAndWTA() {
	lg, path := ts.newLogger()
	lg.Event(Record{Tick: 2, JobID: 1, Transition: Stopped, Arrival: 0, Total: 7, Remaining: 5, Wait: 0})
	lg.Event(Record{Tick: 4, JobID: 1, Transition: Resumed, Arrival: 0, Total: 7, Remaining: 5, Wait: 2})
	ts.Require().NoError(lg.Close())

	text := ts.readFile(path)
	ts.NotContains(text, "TA")
	ts.NotContains(text, "WTA")
}

func (ts *EventLogTestSuite) TestEventLinesAppendInOrder() {
	lg, path := ts.newLogger()
	lg.Event(Record{Tick: 0, JobID: 1, Transition: Started})
	lg.Event(Record{Tick: 1, JobID: 2, Transition: Started})
	ts.Require().NoError(lg.Close())

	lines := strings.Split(strings.TrimSpace(ts.readFile(path)), "\n")
	ts.Require().Len(lines, 2)
	ts.Contains(lines[0], "process 1")
	ts.Contains(lines[1], "process 2")
}

func (ts *EventLogTestSuite) TestOperationalLoggingDoesNotTouchEventFile() {
	lg, path := ts.newLogger()
	lg.Infof("scheduler starting: policy=%s", "rr")
	lg.Warnf("job %d blocked", 3)
	ts.Require().NoError(lg.Close())

	ts.Empty(strings.TrimSpace(ts.readFile(path)))
}

func (ts *EventLogTestSuite) TestNewFailsOnUnwritableDirectory() {
	_, err := New(filepath.Join(ts.T().TempDir(), "nonexistent", "scheduler.log"))
	ts.Error(err)
}
