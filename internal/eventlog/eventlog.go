// Package eventlog writes the scheduler's per-transition event log and
// end-of-run performance file, per spec.md §4.6. The event log uses
// github.com/rs/zerolog's ConsoleWriter with its structural parts (time,
// level) excluded, so each record is exactly the plain-text line spec.md
// mandates; a second, ordinary zerolog.Logger reports operational
// messages (admission failures, dropped jobs, startup/shutdown) to stderr
// in the usual structured form.
package eventlog

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"
)

// Transition names the kind of per-tick event being recorded.
type Transition string

const (
	Started  Transition = "started"
	Resumed  Transition = "resumed"
	Stopped  Transition = "stopped"
	Finished Transition = "finished"
)

// Record is one event-log line's worth of data (spec.md §4.6).
type Record struct {
	Tick       int
	JobID      int
	Transition Transition
	Arrival    int
	Total      int
	Remaining  int
	Wait       int
	TA         int     // only meaningful for Finished
	WTA        float64 // only meaningful for Finished
}

// Logger owns the event-log file and the operational logger.
type Logger struct {
	events *zerolog.Logger
	ops    zerolog.Logger
	file   *os.File
}

// New truncates (or creates) logPath for a fresh run's event log and wires
// up an operational logger writing structured records to stderr, per
// spec.md §6 "truncated at start of a run".
func New(logPath string) (*Logger, error) {
	f, err := os.Create(logPath)
	if err != nil {
		return nil, fmt.Errorf("eventlog: create %s: %w", logPath, err)
	}

	cw := zerolog.ConsoleWriter{
		Out:          f,
		NoColor:      true,
		PartsExclude: []string{zerolog.TimestampFieldName, zerolog.LevelFieldName},
		FormatMessage: func(i interface{}) string {
			if i == nil {
				return ""
			}
			return fmt.Sprintf("%v", i)
		},
	}
	events := zerolog.New(cw).With().Logger()

	ops := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: false}).
		With().Timestamp().Logger()

	return &Logger{events: &events, ops: ops, file: f}, nil
}

// Event writes one per-transition line in spec.md §4.6's exact format:
//
//	At time <t> process <id> <event> arr <a> total <r> remain <rem> wait <w>
//
// with a trailing "TA <ta> WTA <wta>" for Finished events.
func (l *Logger) Event(r Record) {
	line := fmt.Sprintf("At time %d process %d %s arr %d total %d remain %d wait %d",
		r.Tick, r.JobID, r.Transition, r.Arrival, r.Total, r.Remaining, r.Wait)
	if r.Transition == Finished {
		line += fmt.Sprintf(" TA %d WTA %.2f", r.TA, r.WTA)
	}
	l.events.Log().Msg(line)
}

// Infof reports an operational message (admission failures, startup,
// shutdown) — never part of the event-log file, always to stderr.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.ops.Info().Msg(fmt.Sprintf(format, args...))
}

// Warnf reports an operational warning (e.g. a job dropped because its
// driver could not be spawned — spec.md §7 "external collaborator
// failure").
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.ops.Warn().Msg(fmt.Sprintf(format, args...))
}

// Errorf reports an operational error.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.ops.Error().Msg(fmt.Sprintf(format, args...))
}

// Close flushes and closes the event-log file, per spec.md §4.6 "Files
// are flushed on normal termination and on cleanup-signal."
func (l *Logger) Close() error {
	if err := l.file.Sync(); err != nil {
		_ = l.file.Close()
		return fmt.Errorf("eventlog: sync: %w", err)
	}
	return l.file.Close()
}
