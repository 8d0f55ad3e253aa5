package main

import (
	"fmt"
	"os"
	"sort"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rmax-ai/sqlperf/pkg/client"
	"github.com/rmax-ai/sqlperf/pkg/mcp"
)

type clientFactory func() *client.Client

func newRunCmd(newClient clientFactory) *cobra.Command {
	var variant string

	cmd := &cobra.Command{
		Use:   "run SCENARIO",
		Short: "Run one variant of a scenario",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := newClient().Run(cmd.Context(), args[0], variant)
			if err != nil {
				return err
			}
			printRun(cmd.OutOrStdout(), res)
			return nil
		},
	}
	cmd.Flags().StringVarP(&variant, "variant", "v", "slow", "variant to run: slow|optimized")
	return cmd
}

func newCompareCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "compare SCENARIO",
		Short: "Run the slow then the optimized variant and report the speedup",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmp, err := newClient().Compare(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			printComparison(cmd.OutOrStdout(), cmp)
			return nil
		},
	}
}

func newScenariosCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "scenarios",
		Short: "List the scenarios the daemon can run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := newClient().Scenarios(cmd.Context())
			if err != nil {
				return err
			}
			sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
			printScenarios(cmd.OutOrStdout(), list)
			return nil
		},
	}
}

func newScaleCmd(newClient clientFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "scale ROWS",
		Short: "Estimate table scan and index scan cost at a given row count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rows, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || rows <= 0 {
				return fmt.Errorf("invalid row count %q: must be a positive integer", args[0])
			}
			est, err := newClient().Scale(cmd.Context(), rows)
			if err != nil {
				return err
			}
			printScale(cmd.OutOrStdout(), est)
			return nil
		},
	}
}

func newMCPCmd(endpoint *string) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the Model Context Protocol on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return mcp.NewServer(*endpoint).Serve()
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
