package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/contract-review/internal/monitoring"
)

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Review and postback health checks",
}

var monitorCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Collect metrics once, evaluate alerts and send them to the webhook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		hours, _ := cmd.Flags().GetInt("lookback")
		mc := cfg.Monitoring
		if hours > 0 {
			mc.LookbackWindowHours = hours
		}

		checker := monitoring.NewChecker(monitoring.NewCollector(st, nil), monitoring.NewAlerter(mc), mc)
		snap, alerts, err := checker.CheckOnce(ctx)
		if err != nil {
			return err
		}
		formatHealth(os.Stdout, snap, alerts)
		return nil
	},
}

func formatHealth(w io.Writer, snap *monitoring.MetricsSnapshot, alerts []monitoring.Alert) {
	fmt.Fprintf(w, "Window:    last %dh\n", snap.LookbackHours)
	fmt.Fprintf(w, "Reviews:   %d total, %d completed, %d in progress\n",
		snap.ReviewsTotal, snap.ReviewsCompleted, snap.ReviewsInProgress)
	fmt.Fprintf(w, "Postbacks: %d total, %d ok, %d failed, %d skipped (fail rate %.1f%%)\n",
		snap.PostbackTotal, snap.PostbackSucceeded, snap.PostbackFailed, snap.PostbackSkipped, snap.PostbackFailRate*100)
	if len(snap.OpenBreakers) > 0 {
		fmt.Fprintf(w, "Breakers:  open for %s\n", strings.Join(snap.OpenBreakers, ", "))
	}
	if len(alerts) == 0 {
		fmt.Fprintln(w, "No alerts.")
		return
	}
	for _, a := range alerts {
		fmt.Fprintf(w, "ALERT [%s] %s: %s\n", a.Severity, a.Type, a.Message)
	}
}

func init() {
	monitorCheckCmd.Flags().Int("lookback", 0, "lookback window in hours (default from config)")
	monitorCmd.AddCommand(monitorCheckCmd)
	rootCmd.AddCommand(monitorCmd)
}
