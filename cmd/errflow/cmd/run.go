package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ib-77/errflow/internal/scenario"
	"github.com/ib-77/errflow/pkg/flow/engine"
	"github.com/ib-77/errflow/pkg/flow/sink"
)

var (
	scenarioFile string
	showMetrics  bool
	runTimeout   time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run scenarios from a YAML file",
	Long: `Runs every scenario of a YAML file through one engine. Failures that no
handler claims are captured by the global sink and marked in the report.`,
	Example: `  errflow run -f scenarios.yaml
  errflow run -f scenarios.yaml --output json --metrics`,
	RunE: func(cmd *cobra.Command, args []string) error {
		scenarios, err := scenario.Load(scenarioFile)
		if err != nil {
			return err
		}
		return execute(cmd, scenarios)
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&scenarioFile, "file", "f", "", "scenario file (required)")
	runCmd.Flags().BoolVar(&showMetrics, "metrics", false, "print engine metrics after the report")
	runCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Second, "cancel pending async scenarios after this long")
	_ = runCmd.MarkFlagRequired("file")
}

// execute runs scenarios against the process-wide sink and prints the report.
func execute(cmd *cobra.Command, scenarios []scenario.Scenario) error {
	logger := newLogger()
	registry := prometheus.NewRegistry()

	runner, err := scenario.NewRunner(logger, sink.Default(),
		engine.WithRegisterer(registry),
	)
	if err != nil {
		return fmt.Errorf("failed to set up runner: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	timeout := runTimeout
	if !cmd.Flags().Changed("timeout") && viper.IsSet("timeout") {
		timeout = viper.GetDuration("timeout")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rows, runErr := runner.RunAll(ctx, scenarios)
	if runErr != nil && !errors.Is(runErr, context.DeadlineExceeded) && !errors.Is(runErr, context.Canceled) {
		return runErr
	}

	if err := scenario.Render(cmd.OutOrStdout(), rows, outputFormat); err != nil {
		return err
	}
	if runErr != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "\nStopped early: %v\n", runErr)
	}

	if showMetrics || viper.GetBool("metrics") {
		return writeMetrics(cmd, registry)
	}
	return nil
}

func writeMetrics(cmd *cobra.Command, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out)
	encoder := expfmt.NewEncoder(out, expfmt.FmtText)
	for _, mf := range families {
		if err := encoder.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
