// Package job defines the process control block that carries state through
// the scheduler: arrival, burst, priority, memory footprint, lifecycle
// counters, and the buddy-allocator handle backing its admission.
package job

import (
	"github.com/google/uuid"
)

// State tags the lifecycle position of a Job.
type State int

const (
	// Staged means the job has arrived from the producer but has not yet
	// been offered to the buddy allocator.
	Staged State = iota
	// Blocked means the job could not obtain memory and is waiting in the
	// block queue.
	Blocked
	// Ready means the job is admitted and sitting in the ready structure.
	Ready
	// Running means the job is the one the CPU is currently executing.
	Running
	// Finished means the job has completed and released its resources.
	Finished
)

// String renders the state tag the way the observability snapshot and
// tests show it.
func (s State) String() string {
	switch s {
	case Staged:
		return "STAGED"
	case Blocked:
		return "BLOCKED"
	case Ready:
		return "READY"
	case Running:
		return "RUNNING"
	case Finished:
		return "FINISHED"
	default:
		return "UNKNOWN"
	}
}

// MemHandle is the opaque reference to the buddy region backing a job's
// memory admission. It is implemented by *buddy.Region but job must not
// import buddy (buddy has no reverse dependency on job), so it is kept as
// a narrow interface here.
type MemHandle interface {
	// Size returns the power-of-two byte size of the owning region.
	Size() int
}

// Job is the process control block (PCB) — the one entity that carries
// state through intake, admission, dispatch, and completion.
type Job struct {
	// WorkloadID is the id from the workload file; stable across the run.
	WorkloadID int
	// SpawnID is assigned when the scheduler stages the job at intake,
	// before memory admission, so a blocked job carries one too. It is
	// unique per run.
	SpawnID uuid.UUID

	Arrival  int
	Total    int
	Priority int
	MemSize  int

	FirstStart int // -1 until first dispatch
	LastStop   int
	Wait       int

	State State
	Mem   MemHandle
}

// New creates a freshly staged job with the lifecycle defaults spec.md §4.4
// "Intake" requires: first-start = -1, wait = 0, last-stop = arrival.
func New(workloadID, arrival, total, priority, memSize int) *Job {
	return &Job{
		WorkloadID: workloadID,
		Arrival:    arrival,
		Total:      total,
		Priority:   priority,
		MemSize:    memSize,
		FirstStart: -1,
		LastStop:   arrival,
		Wait:       0,
		State:      Staged,
	}
}

// AssignSpawnID stamps a fresh spawn id; the scheduler calls it when it
// stages the job.
func (j *Job) AssignSpawnID() {
	j.SpawnID = uuid.New()
}

// Remaining computes the remaining burst at tick now, per spec.md §4.4.1:
// remaining = total - (now - arrival - wait).
func (j *Job) Remaining(now int) int {
	return j.Total - (now - j.Arrival - j.Wait)
}

// TurnAround computes TA = now - arrival.
func (j *Job) TurnAround(now int) int {
	return now - j.Arrival
}

// WeightedTurnAround computes WTA = TA / total, or 0 if total is 0.
func (j *Job) WeightedTurnAround(now int) float64 {
	if j.Total == 0 {
		return 0
	}
	return float64(j.TurnAround(now)) / float64(j.Total)
}
