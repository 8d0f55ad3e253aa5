package main

import (
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/rmax-ai/sqlperf/pkg/client"
)

const defaultEndpoint = "http://127.0.0.1:8091"

// newRootCmd builds the command tree. Each call returns a fresh tree so
// tests can execute commands in isolation.
func newRootCmd() *cobra.Command {
	var endpoint string
	var noColor bool

	root := &cobra.Command{
		Use:     "sqlperf",
		Short:   "Run slow vs optimized SQL performance scenarios",
		Version: Version,
		Long: `sqlperf talks to a running sqlperf-d daemon and runs paired
performance scenarios against its database, printing the elapsed time
and captured query plan of each variant.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	root.PersistentFlags().StringVar(&endpoint, "endpoint", envOr("SQLPERF_ENDPOINT", defaultEndpoint), "sqlperf-d base URL")
	root.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")

	newClient := func() *client.Client {
		return client.NewClient(endpoint)
	}

	root.AddCommand(newRunCmd(newClient))
	root.AddCommand(newCompareCmd(newClient))
	root.AddCommand(newScenariosCmd(newClient))
	root.AddCommand(newScaleCmd(newClient))
	root.AddCommand(newMCPCmd(&endpoint))

	return root
}
