// Package config holds the scheduler's run configuration: the chosen
// policy, time quantum, memory arena size, workload source, and the
// optional IPC rendezvous key spec.md §6 mentions ("a shared identifier
// (numeric key) is used to rendezvous on the clock and message queue").
// Defaults mirror the teacher's DefaultConfig() pattern.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"

	"github.com/go-foundations/scheduler-sim/internal/policy"
)

// Env holds the values spec.md §6 allows to be sourced from the
// environment, overlaid onto Config after flag parsing.
type Env struct {
	IPCKey int `envconfig:"SCHED_IPC_KEY" default:"0"`
}

// Config is the scheduler's run configuration.
type Config struct {
	Policy      policy.Kind
	Quantum     int
	ArenaSize   int
	WorkloadPath string
	LogPath     string
	PerfPath    string
	IPCKey      int
}

// Default returns sensible defaults: RR with a quantum of 2, a 1024-byte
// arena, and the canonical log/perf file names from spec.md §6.
func Default() Config {
	return Config{
		Policy:    policy.RR,
		Quantum:   2,
		ArenaSize: 1024,
		LogPath:   "scheduler.log",
		PerfPath:  "scheduler.perf",
	}
}

// LoadEnv overlays environment variables onto cfg, per SPEC_FULL.md's
// AMBIENT STACK configuration section.
func LoadEnv(cfg *Config) error {
	var env Env
	if err := envconfig.Process("", &env); err != nil {
		return fmt.Errorf("config: load env: %w", err)
	}
	cfg.IPCKey = env.IPCKey
	return nil
}

// Validate checks the invariants the CLI must enforce before starting a
// run (spec.md §6 "quantum is a positive integer" for RR, §7 argument
// error).
func (c Config) Validate() error {
	if c.Policy == policy.RR && c.Quantum <= 0 {
		return fmt.Errorf("config: quantum must be positive for round robin, got %d", c.Quantum)
	}
	if c.ArenaSize <= 0 {
		return fmt.Errorf("config: arena size must be positive, got %d", c.ArenaSize)
	}
	if c.WorkloadPath == "" {
		return fmt.Errorf("config: workload path is required")
	}
	return nil
}
