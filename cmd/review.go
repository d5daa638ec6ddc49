package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sells-group/contract-review/internal/apperr"
	"github.com/sells-group/contract-review/internal/model"
	"github.com/sells-group/contract-review/internal/review"
)

var reviewCmd = &cobra.Command{
	Use:   "review <document-id>",
	Short: "Submit corrections to a document's latest version",
	Long:  "Applies key=value corrections to the latest version in one transaction and queues the configured postback. An empty value clears a correction.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		sets, _ := cmd.Flags().GetStringArray("set")
		corrections, err := parseCorrections(sets)
		if err != nil {
			return err
		}
		reviewer, _ := cmd.Flags().GetString("reviewer")
		status, _ := cmd.Flags().GetString("status")

		env, err := initEnv(ctx, true)
		if err != nil {
			return err
		}
		defer env.Close()

		out, err := env.Recorder.Submit(ctx, review.Submission{
			DocumentID:  args[0],
			Corrections: corrections,
			Reviewer:    reviewer,
			Status:      model.DocumentStatus(status),
		})
		if err != nil {
			return err
		}
		formatOutcome(os.Stdout, out)
		return nil
	},
}

// parseCorrections turns repeated key=value flags into a map. The last
// value for a repeated key wins.
func parseCorrections(sets []string) (map[string]string, error) {
	out := make(map[string]string, len(sets))
	for _, s := range sets {
		key, value, ok := strings.Cut(s, "=")
		if !ok || strings.TrimSpace(key) == "" {
			return nil, apperr.Invalid("set", fmt.Sprintf("%q is not key=value", s))
		}
		out[strings.TrimSpace(key)] = value
	}
	return out, nil
}

func formatOutcome(w io.Writer, out *review.Outcome) {
	fmt.Fprintf(w, "Review %s applied to v%d (%s)\n", out.SessionID, out.VersionNumber, out.VersionID)
	if len(out.UpdatedKeys) == 0 {
		fmt.Fprintln(w, "No fields changed.")
		return
	}
	fmt.Fprintf(w, "Updated %d field(s): %s\n", len(out.UpdatedKeys), strings.Join(out.UpdatedKeys, ", "))
}

func init() {
	reviewCmd.Flags().StringArray("set", nil, "correction as key=value (repeatable)")
	reviewCmd.Flags().String("reviewer", "cli", "reviewer identity")
	reviewCmd.Flags().String("status", "", "document status to set (default from config)")
	rootCmd.AddCommand(reviewCmd)
}
