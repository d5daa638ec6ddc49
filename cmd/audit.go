package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/contract-review/internal/query"
)

var auditCmd = &cobra.Command{
	Use:   "audit <document-id>",
	Short: "Show a document's review history and check it against stored corrections",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		view, err := env.Query.Audit(ctx, args[0])
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(view); err != nil {
				return eris.Wrap(err, "audit: encode")
			}
		} else {
			formatAudit(os.Stdout, view)
		}

		if len(view.Discrepancies) > 0 {
			return eris.Errorf("audit: %d discrepancies between the log and stored corrections", len(view.Discrepancies))
		}
		return nil
	},
}

func formatAudit(w io.Writer, view *query.AuditView) {
	if len(view.Sessions) == 0 {
		fmt.Fprintln(w, "No reviews recorded.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "REVIEWED AT\tREVIEWER\tVERSION\tKEY\tOLD\tNEW\n")
	for _, s := range view.Sessions {
		for _, c := range s.Changes {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
				c.ReviewedAt.Format("2006-01-02 15:04"),
				c.ReviewedBy,
				c.TargetVersionID,
				c.Key,
				orDash(c.OldCorrectedValue),
				orDash(c.NewCorrectedValue),
			)
		}
	}
	tw.Flush() //nolint:errcheck

	fmt.Fprintf(w, "\n%d review(s), %d change(s)\n", len(view.Sessions), len(view.Entries))
	for _, d := range view.Discrepancies {
		fmt.Fprintf(w, "MISMATCH %s %s: %s\n", d.Version, d.Key, d.Reason)
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func init() {
	auditCmd.Flags().Bool("json", false, "print the audit view as JSON")
	rootCmd.AddCommand(auditCmd)
}
