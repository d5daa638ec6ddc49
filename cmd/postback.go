package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/contract-review/internal/model"
	"github.com/sells-group/contract-review/internal/store"
	sfpkg "github.com/sells-group/contract-review/pkg/salesforce"
)

var postbackCmd = &cobra.Command{
	Use:   "postback",
	Short: "Inspect downstream review notifications",
}

// -- postback list --

var postbackListCmd = &cobra.Command{
	Use:   "list [document-id]",
	Short: "List logged postback attempts",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		limit, _ := cmd.Flags().GetInt("limit")
		filter := store.PostbackFilter{Limit: limit}
		if len(args) == 1 {
			filter.DocumentID = args[0]
		}
		logs, err := st.ListPostbackLogs(ctx, filter)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			fmt.Fprintln(os.Stderr, "No postbacks found.")
			return nil
		}
		formatPostbacks(os.Stdout, logs)
		return nil
	},
}

func formatPostbacks(w io.Writer, logs []model.PostbackLog) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "CREATED\tDOCUMENT\tVERSION\tTARGET\tRESULT\tSTATUS\tATTEMPTS\tERROR\n")
	for _, l := range logs {
		result := "failed"
		switch {
		case l.Skipped:
			result = "skipped"
		case l.Success:
			result = "ok"
		}
		status := "-"
		if l.StatusCode != nil {
			status = fmt.Sprintf("%d", *l.StatusCode)
		}
		errMsg := l.Error
		if len(errMsg) > 60 {
			errMsg = errMsg[:57] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			l.CreatedAt.Format("2006-01-02 15:04"),
			l.DocumentID,
			l.VersionID,
			l.Target,
			result,
			status,
			l.Attempts,
			orDash(errMsg),
		)
	}
	tw.Flush() //nolint:errcheck
}

// -- postback remote --

var postbackRemoteCmd = &cobra.Command{
	Use:   "remote <document-id>",
	Short: "List review records written to Salesforce for a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sf, err := initSalesforce()
		if err != nil {
			return err
		}
		records, err := sfpkg.FindReviewRecords(ctx, sf, cfg.Postback.SObject, args[0])
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Fprintln(os.Stderr, "No review records found.")
			return nil
		}
		formatReviewRecords(os.Stdout, records)
		return nil
	},
}

func formatReviewRecords(w io.Writer, records []sfpkg.ReviewRecord) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "ID\tREVIEWED AT\tVERSION\tREVIEWER\tUPDATED\n")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\n", r.ID, r.ReviewedAt, r.VersionID, r.Reviewer, r.UpdatedCount)
	}
	tw.Flush() //nolint:errcheck
}

// -- postback verify --

var postbackVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check that the Salesforce review object accepts every review field",
	RunE: func(cmd *cobra.Command, _ []string) error {
		sf, err := initSalesforce()
		if err != nil {
			return err
		}
		if err := sfpkg.CheckReviewObject(cmd.Context(), sf, cfg.Postback.SObject); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "%s accepts review records.\n", cfg.Postback.SObject)
		return nil
	},
}

func init() {
	postbackListCmd.Flags().Int("limit", 50, "maximum rows to show")
	postbackCmd.AddCommand(postbackListCmd, postbackRemoteCmd, postbackVerifyCmd)
	rootCmd.AddCommand(postbackCmd)
}
