package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/contract-review/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed [fixture.yaml]",
	Short: "Load contract fixtures into the store",
	Long:  "Imports documents, versions and extracted fields from a YAML fixture. With --sample, loads the built-in thirteen-version doc-001.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		sample, _ := cmd.Flags().GetBool("sample")

		var fixture *seed.Fixture
		switch {
		case sample:
			fixture = seed.Sample()
		case len(args) == 1:
			f, err := seed.Load(args[0])
			if err != nil {
				return err
			}
			fixture = f
		default:
			return eris.New("seed: pass a fixture path or --sample")
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		n, err := seed.Import(ctx, st, fixture)
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Imported %d document(s).\n", n)
		return nil
	},
}

func init() {
	seedCmd.Flags().Bool("sample", false, "load the built-in sample document")
	rootCmd.AddCommand(seedCmd)
}
