// Command scheduler is the CLI entry point for the scheduling simulator,
// the one runnable surface over internal/scheduler the way the teacher
// ships a runnable main over its worker pool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "Process scheduler simulator",
	Long:  `Drives a workload through a pluggable scheduling policy over a buddy-allocator memory model, emitting an event log and end-of-run metrics.`,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
