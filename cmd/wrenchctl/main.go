// Command wrenchctl is an example simulator driver: it builds a small
// workflow, lowers it to StandardJobs, submits them through a JobManager
// to a BareMetalComputeService, and drains the resulting events until the
// run is done. It is the one "WMS driver" wired end to end against this
// module, in the cobra-based cmd/ layout warren's binaries use.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wrenchsim/wrench/internal/wlog"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "wrenchctl",
	Short: "wrenchctl drives example simulation runs against this module",
	Long: `wrenchctl is a reference WMS driver for the simulator: it builds a
small workflow, submits it through the job manager, and prints the
resulting execution events as they occur.`,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "path to a YAML config file (falls back to WRENCH_* env vars and defaults)")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error; default info); the config file's logging section is not applied")
	rootCmd.PersistentFlags().Bool("log-json", false, "emit JSON log output instead of console output; the config file's logging section is not applied")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(visualizeCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	if level == "" {
		level = "info"
	}
	wlog.Init(wlog.Config{Level: wlog.Level(level), JSON: jsonOut})
}
