package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"github.com/rmax-ai/sqlperf/pkg/client"
)

var (
	labelColor   = color.New(color.FgBlue, color.Bold)
	slowColor    = color.New(color.FgRed, color.Bold)
	fastColor    = color.New(color.FgGreen, color.Bold)
	planColor    = color.New(color.FgWhite)
	speedupColor = color.New(color.FgMagenta, color.Bold)
)

func variantColor(variant string) *color.Color {
	if variant == "slow" {
		return slowColor
	}
	return fastColor
}

func printRun(w io.Writer, res client.RunResult) {
	fmt.Fprintf(w, "%s %s\n", labelColor.Sprint(res.ScenarioID), variantColor(res.Variant).Sprint(res.Variant))
	fmt.Fprintf(w, "  time:    %d ms\n", res.TimeMs)
	fmt.Fprintf(w, "  insight: %s\n", res.Insight)
	fmt.Fprintln(w, "  plan:")
	for _, line := range strings.Split(res.Plan, "\n") {
		fmt.Fprintf(w, "    %s\n", planColor.Sprint(line))
	}
}

func printComparison(w io.Writer, cmp client.Comparison) {
	printRun(w, cmp.Slow)
	fmt.Fprintln(w)
	printRun(w, cmp.Optimized)
	fmt.Fprintln(w)
	if cmp.Speedup > 0 {
		fmt.Fprintf(w, "speedup: %s\n", speedupColor.Sprintf("%.1fx", cmp.Speedup))
	} else {
		fmt.Fprintln(w, "speedup: n/a (optimized run took 0 ms)")
	}
}

func printScenarios(w io.Writer, list []client.Scenario) {
	for _, s := range list {
		fmt.Fprintf(w, "%s  %s (%s)\n", labelColor.Sprint(s.ID), s.Label, s.Kind)
		for _, v := range []string{"slow", "optimized"} {
			if desc, ok := s.Descriptions[v]; ok {
				fmt.Fprintf(w, "    %s: %s\n", variantColor(v).Sprint(v), desc)
			}
		}
		printBullets(w, "why slow", slowColor, s.Explanation.Slow)
		printBullets(w, "why fast", fastColor, s.Explanation.Optimized)
	}
}

func printBullets(w io.Writer, heading string, c *color.Color, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(w, "    %s:\n", c.Sprint(heading))
	for _, item := range items {
		fmt.Fprintf(w, "      - %s\n", item)
	}
}

func printScale(w io.Writer, est client.ScaleEstimate) {
	fmt.Fprintf(w, "rows:       %d\n", est.Rows)
	fmt.Fprintf(w, "table scan: ~%s\n", slowColor.Sprintf("%d ms", est.TableScanMillis))
	fmt.Fprintf(w, "index scan: ~%s\n", fastColor.Sprintf("%d ms", est.IndexScanMillis))
}
