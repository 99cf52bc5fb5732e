package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/go-foundations/scheduler-sim/internal/clock"
	"github.com/go-foundations/scheduler-sim/internal/config"
	"github.com/go-foundations/scheduler-sim/internal/eventlog"
	"github.com/go-foundations/scheduler-sim/internal/job"
	"github.com/go-foundations/scheduler-sim/internal/observability"
	"github.com/go-foundations/scheduler-sim/internal/policy"
	"github.com/go-foundations/scheduler-sim/internal/scheduler"
	"github.com/go-foundations/scheduler-sim/internal/workload"
)

var (
	flagPolicy    string
	flagQuantum   int
	flagWorkload  string
	flagArena     int
	flagLive      bool
	flagWatchAddr string
	flagWatchKey  string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a scheduling simulation against a workload file",
	RunE:  runE,
}

func init() {
	runCmd.Flags().StringVar(&flagPolicy, "policy", "rr", "scheduling policy: hpf|srtn|rr (or 1|2|3)")
	runCmd.Flags().IntVar(&flagQuantum, "quantum", 2, "time quantum for round robin (ignored for hpf/srtn)")
	runCmd.Flags().StringVar(&flagWorkload, "workload", "", "path to the workload file (required)")
	runCmd.Flags().IntVar(&flagArena, "arena", 1024, "buddy allocator arena size in bytes")
	runCmd.Flags().BoolVar(&flagLive, "live", false, "drive the run against a real-time clock instead of a logical one")
	runCmd.Flags().StringVar(&flagWatchAddr, "watch-addr", "", "if set, serve a live ready-queue view over WebSocket at this address (e.g. :8080)")
	runCmd.Flags().StringVar(&flagWatchKey, "watch-key", "arrival", "observability sort key: id|arrival|remaining|priority")
}

// watchKeyFn resolves the --watch-key flag into the key function the
// observability adapter re-orders the ready structure by (spec.md §4.5:
// "sort by 'id', 'arrival', 'remaining', 'priority', ... on every frame").
func watchKeyFn(name string, now func() int) func(*job.Job) int {
	switch name {
	case "id":
		return func(j *job.Job) int { return j.WorkloadID }
	case "remaining":
		return func(j *job.Job) int { return j.Remaining(now()) }
	case "priority":
		return func(j *job.Job) int { return j.Priority }
	default:
		return func(j *job.Job) int { return j.Arrival }
	}
}

func runE(cmd *cobra.Command, args []string) error {
	kind, ok := policy.ParseKind(flagPolicy)
	if !ok {
		return fmt.Errorf("argument error: unknown policy %q (want hpf|srtn|rr or 1|2|3)", flagPolicy)
	}

	cfg := config.Default()
	cfg.Policy = kind
	cfg.Quantum = flagQuantum
	cfg.ArenaSize = flagArena
	cfg.WorkloadPath = flagWorkload
	if err := config.LoadEnv(&cfg); err != nil {
		return fmt.Errorf("argument error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("argument error: %w", err)
	}

	arrivals, err := workload.ParseFile(cfg.WorkloadPath)
	if err != nil {
		return fmt.Errorf("I/O error: %w", err)
	}

	lg, err := eventlog.New(cfg.LogPath)
	if err != nil {
		return fmt.Errorf("I/O error: %w", err)
	}
	lg.Infof("scheduler starting: policy=%s quantum=%d arena=%d ipc_key=%d", kind, cfg.Quantum, cfg.ArenaSize, cfg.IPCKey)

	var clk scheduler.Clock
	if flagLive {
		t := clock.NewTicker(10 * time.Millisecond)
		defer t.Stop()
		clk = t
	} else {
		clk = clock.NewLogical()
	}

	sched := scheduler.New(clk, scheduler.Config{
		PolicyKind: cfg.Policy,
		Quantum:    cfg.Quantum,
		ArenaSize:  cfg.ArenaSize,
	}, lg)

	producer := workload.NewProducer(clk, arrivals)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		cancel()
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		// Cancel the shared scope once the simulation itself is done (not
		// just on error) so the observability server below, if running,
		// shuts down instead of blocking the process forever.
		defer cancel()
		return sched.Run(gctx, producer)
	})

	if flagWatchAddr != "" {
		adapter := observability.NewAdapter(sched, clk.Now, watchKeyFn(flagWatchKey, clk.Now))
		watcher := observability.NewWatcher(adapter, 250*time.Millisecond)
		srv := observability.NewServer(watcher)

		mux := http.NewServeMux()
		mux.HandleFunc("/ws", srv.HandleWebSocket)
		httpSrv := &http.Server{Addr: flagWatchAddr, Handler: mux}

		lg.Infof("observability server listening on %s/ws (key=%s)", flagWatchAddr, flagWatchKey)
		g.Go(func() error {
			<-gctx.Done()
			return httpSrv.Shutdown(context.Background())
		})
		g.Go(func() error {
			err := httpSrv.ListenAndServe()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
	}

	runErr := g.Wait()

	var fault *scheduler.Fault
	if errors.As(runErr, &fault) {
		fmt.Fprintln(os.Stderr, fault.Error())
		os.Exit(2)
	}
	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("I/O error: %w", runErr)
	}

	if err := writePerf(cfg.PerfPath, sched.Report()); err != nil {
		return fmt.Errorf("I/O error: %w", err)
	}
	return nil
}
