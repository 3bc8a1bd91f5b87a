package cmd

import (
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/uber-go/tally/v4"

	"github.com/cloudlet-sim/cloudlet-sim/sim/report"
	"github.com/cloudlet-sim/cloudlet-sim/sim/scenario"
	"github.com/cloudlet-sim/cloudlet-sim/sim/trace"
)

var (
	// CLI flags for the run command
	scenarioPath string  // Path to a scenario YAML file
	builtinName  string  // Built-in scenario used when no file is given
	seed         int64   // Overrides the scenario seed when set
	horizon      float64 // Overrides the scenario horizon when set (simulated seconds)
	logLevel     string  // Log verbosity level
	traceLevel   string  // Overrides the scenario trace level when set
	outputFormat string  // Report format: table or json
	showMetrics  bool    // Print the metrics snapshot after the report
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "cloudlet-sim",
	Short: "Discrete-event simulator for cloud datacenters, VMs and cloudlets",
}

// runCmd executes a scenario and prints the report
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a simulation scenario",
	Run: func(cmd *cobra.Command, args []string) {
		setLogLevel()

		spec, err := loadSpec()
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		applyOverrides(cmd, spec)
		if !report.IsValidFormat(outputFormat) {
			logrus.Fatalf("Invalid output format: %s (valid: %s, %s)", outputFormat, report.FormatTable, report.FormatJSON)
		}

		var opts scenario.Options
		var closer io.Closer
		if showMetrics {
			opts.Metrics, closer = tally.NewRootScope(tally.ScopeOptions{Prefix: "cloudlet_sim", Separator: "."}, 0)
		}

		run, err := scenario.Build(spec, opts)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		logrus.Infof("Starting scenario %q with %d datacenters, %d brokers, horizon=%v, seed=%d",
			spec.Name, len(spec.Datacenters), len(spec.Brokers), spec.Horizon, spec.Seed)

		wallStart := time.Now()
		if err := run.Execute(); err != nil {
			logrus.Fatalf("Simulation failed: %v", err)
		}
		logrus.Infof("Simulation complete in %s", time.Since(wallStart))

		if err := report.New(run.Sim, run.Brokers).Write(os.Stdout, outputFormat); err != nil {
			logrus.Fatalf("Writing report: %v", err)
		}
		if showMetrics {
			printMetrics(os.Stdout, opts.Metrics)
			if err := closer.Close(); err != nil {
				logrus.Warnf("closing metrics scope: %v", err)
			}
		}
	},
}

// validateCmd checks a scenario file without running it
var validateCmd = &cobra.Command{
	Use:   "validate <scenario.yaml>",
	Short: "Validate a scenario file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		setLogLevel()
		spec, err := scenario.Load(args[0])
		if err != nil {
			return err
		}
		if err := spec.Validate(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%d datacenters, %d brokers)\n", args[0], len(spec.Datacenters), len(spec.Brokers))
		return nil
	},
}

// listCmd prints the built-in scenarios
var listCmd = &cobra.Command{
	Use:   "builtins",
	Short: "List built-in scenarios",
	Run: func(cmd *cobra.Command, args []string) {
		for _, name := range scenario.BuiltinNames() {
			fmt.Fprintln(cmd.OutOrStdout(), name)
		}
	},
}

func setLogLevel() {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", logLevel)
	}
	logrus.SetLevel(level)
}

func loadSpec() (*scenario.Spec, error) {
	if scenarioPath != "" {
		return scenario.Load(scenarioPath)
	}
	return scenario.Builtin(builtinName, seed)
}

// applyOverrides copies explicitly set flags over the scenario values.
func applyOverrides(cmd *cobra.Command, spec *scenario.Spec) {
	if cmd.Flags().Changed("seed") {
		spec.Seed = seed
	}
	if cmd.Flags().Changed("horizon") {
		spec.Horizon = horizon
	}
	if cmd.Flags().Changed("trace") {
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s (valid: none, decisions, events)", traceLevel)
		}
		spec.Trace = traceLevel
	}
}

// printMetrics writes counters and gauges from scope, sorted by name.
// Scopes that cannot snapshot are skipped.
func printMetrics(w io.Writer, scope tally.Scope) {
	snap, ok := scope.(tally.TestScope)
	if !ok {
		return
	}
	s := snap.Snapshot()
	var lines []string
	for key, c := range s.Counters() {
		lines = append(lines, fmt.Sprintf("%-60s %d", key, c.Value()))
	}
	for key, g := range s.Gauges() {
		lines = append(lines, fmt.Sprintf("%-60s %.2f", key, g.Value()))
	}
	sort.Strings(lines)
	fmt.Fprintln(w, "=== Metrics ===")
	for _, l := range lines {
		fmt.Fprintln(w, l)
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	runCmd.Flags().StringVar(&scenarioPath, "scenario", "", "Path to a scenario YAML file")
	runCmd.Flags().StringVar(&builtinName, "builtin", "same-mips", "Built-in scenario to run when --scenario is not given")
	runCmd.Flags().Int64Var(&seed, "seed", 42, "Seed for stochastic utilization models")
	runCmd.Flags().Float64Var(&horizon, "horizon", 0, "Simulation horizon in simulated seconds (0 = unlimited)")
	runCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")
	runCmd.Flags().StringVar(&traceLevel, "trace", "none", "Trace level (none, decisions, events)")
	runCmd.Flags().StringVar(&outputFormat, "output", report.FormatTable, "Report format (table, json)")
	runCmd.Flags().BoolVar(&showMetrics, "metrics", false, "Print the metrics snapshot after the report")

	validateCmd.Flags().StringVar(&logLevel, "log", "error", "Log level (trace, debug, info, warn, error, fatal, panic)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
}
