package main

import (
	"fmt"
	"io"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var attributionCmd = &cobra.Command{
	Use:   "attribution <document-id>",
	Short: "Show the version each field last changed in",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		env, err := initEnv(ctx, false)
		if err != nil {
			return err
		}
		defer env.Close()

		upTo, _ := cmd.Flags().GetInt("up-to")
		if upTo == 0 {
			latest, err := env.Store.GetLatestVersion(ctx, args[0])
			if err != nil {
				return err
			}
			upTo = latest.VersionNumber
		}

		changed, err := env.Engine.Compute(ctx, args[0], upTo)
		if err != nil {
			return err
		}
		if len(changed) == 0 {
			fmt.Fprintln(os.Stderr, "No fields found.")
			return nil
		}
		formatAttribution(os.Stdout, changed, upTo)
		return nil
	},
}

// formatAttribution prints key -> version, sorted by key.
func formatAttribution(w io.Writer, changed map[string]int, upTo int) {
	keys := make([]string, 0, len(changed))
	for k := range changed {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "KEY\tCHANGED IN\n")
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\tv%d\n", k, changed[k])
	}
	tw.Flush() //nolint:errcheck
	fmt.Fprintf(w, "\nattributed up to v%d\n", upTo)
}

func init() {
	attributionCmd.Flags().Int("up-to", 0, "upper-bound version number (default latest)")
	rootCmd.AddCommand(attributionCmd)
}
