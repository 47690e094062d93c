package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/showroom/internal/version"
	"github.com/GoCodeAlone/showroom/plan"
)

var runsLimit int

// plansCmd prints the effective follow-up plans
var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Show the follow-up plan for each segment",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		plans, err := cfg.FollowUpPlans()
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		for _, seg := range plan.Segments {
			fmt.Fprintf(w, "%s\n", seg)
			steps := plans.Sorted(seg)
			if len(steps) == 0 {
				fmt.Fprintln(w, "  (no steps)")
			}
			for _, st := range steps {
				fmt.Fprintf(w, "  day %-4d %s\n", st.DayOffset, st.Description)
			}
		}
		return nil
	},
}

// runsCmd lists recent batches
var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Show recent follow-up batches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		runs, err := a.runs.List(ctx, runsLimit)
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(runs) == 0 {
			fmt.Fprintln(w, "no runs")
			return nil
		}
		fmt.Fprintf(w, "%-10s %-9s %-20s %7s %7s %5s %8s  %s\n",
			"DATE", "TRIGGER", "STARTED", "CLIENTS", "CREATED", "DUPS", "FAILURES", "STATUS")
		fmt.Fprintln(w, strings.Repeat("-", 90))
		for _, r := range runs {
			status := "ok"
			switch {
			case r.FinishedAt == nil:
				status = "running"
			case r.Error != "":
				status = "failed: " + r.Error
			}
			fmt.Fprintf(w, "%-10s %-9s %-20s %7d %7d %5d %8d  %s\n",
				r.RunDate, r.Trigger, r.StartedAt.Local().Format("2006-01-02 15:04:05"),
				r.Clients, r.Created, r.Duplicates, r.Failures, status)
		}
		return nil
	},
}

// versionCmd prints build information
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version.String())
	},
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "number of runs to show")
}
