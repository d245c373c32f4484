package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ib-77/errflow/internal/scenario"
)

var listOnly bool

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run the built-in scenarios, one per error-handling mechanism",
	RunE: func(cmd *cobra.Command, args []string) error {
		scenarios := scenario.Builtin()
		if listOnly {
			for _, sc := range scenarios {
				fmt.Fprintf(cmd.OutOrStdout(), "%-22s %-5s %s\n", sc.Name, sc.Mode, sc.Description)
			}
			return nil
		}
		return execute(cmd, scenarios)
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)

	demoCmd.Flags().BoolVar(&listOnly, "list", false, "list the built-in scenarios without running them")
	demoCmd.Flags().BoolVar(&showMetrics, "metrics", false, "print engine metrics after the report")
	demoCmd.Flags().DurationVar(&runTimeout, "timeout", 30*time.Second, "cancel pending async scenarios after this long")
}
