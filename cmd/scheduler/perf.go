package main

import (
	"fmt"
	"os"

	"github.com/go-foundations/scheduler-sim/internal/metrics"
)

// writePerf renders report into scheduler.perf's exact four-line format
// (spec.md §6): CPU utilization as a percentage, the other three as plain
// numbers, all to two decimal places.
func writePerf(path string, report metrics.Report) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("perf: create %s: %w", path, err)
	}
	defer f.Close()

	_, err = fmt.Fprintf(f,
		"CPU utilization = %.2f%%\nAvg WTA = %.2f\nAvg Waiting = %.2f\nSTD WTA = %.2f\n",
		report.CPUUtilization*100,
		report.AverageWTA,
		report.AverageWait,
		report.StdDevWTA,
	)
	if err != nil {
		return fmt.Errorf("perf: write %s: %w", path, err)
	}
	return nil
}
