package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cloud.google.com/go/civil"
	"github.com/spf13/cobra"

	"github.com/GoCodeAlone/showroom/followup"
	"github.com/GoCodeAlone/showroom/runlog"
)

var (
	runDate  string
	runForce bool
)

// runCmd runs the batch once
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Generate today's follow-up tasks",
	Long: `Runs the follow-up batch once. A batch that already completed today is
skipped unless --force is given. --date replays the batch as of another day.`,
	Args: cobra.NoArgs,
	RunE: runBatch,
}

func init() {
	runCmd.Flags().StringVar(&runDate, "date", "", "run as of this date (YYYY-MM-DD) instead of today")
	runCmd.Flags().BoolVar(&runForce, "force", false, "run even if a batch already completed for the date")
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

func runBatch(cmd *cobra.Command, _ []string) error {
	ctx, stop := signalContext(cmd.Context())
	defer stop()

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	day := a.gen.Today()
	if runDate != "" {
		if day, err = civil.ParseDate(runDate); err != nil {
			return fmt.Errorf("invalid --date %q: %w", runDate, err)
		}
	}

	report, ran, err := a.gate.RunFor(ctx, day, runlog.TriggerManual, runForce)
	if report != nil {
		printReport(cmd.OutOrStdout(), report)
	}
	if err != nil {
		return err
	}
	if !ran {
		fmt.Fprintf(cmd.OutOrStdout(), "follow-ups for %s already generated; use --force to run again\n", day)
	}
	return nil
}

func printReport(w io.Writer, r *followup.Report) {
	fmt.Fprintf(w, "%s: %d clients, %d created, %d duplicates, %d skipped sales, %d failures\n",
		r.Date, r.Clients, r.Created, r.Duplicates, r.SkippedSales, len(r.Failures))
	if len(r.Tasks) > 0 {
		fmt.Fprintf(w, "\n%-36s %-36s %s\n", "TASK", "CLIENT", "DESCRIPTION")
		fmt.Fprintln(w, strings.Repeat("-", 110))
		for _, t := range r.Tasks {
			fmt.Fprintf(w, "%-36s %-36s %s\n", t.ID, t.ClientID, t.Description)
		}
	}
	if len(r.Failures) > 0 {
		fmt.Fprintln(w, "\nfailures:")
		for _, f := range r.Failures {
			fmt.Fprintf(w, "  %s: %v\n", f.ClientID, f.Err)
		}
	}
}
