package main

import (
	"github.com/spf13/cobra"

	"github.com/sells-group/isolysis/internal/store"
)

var (
	analysesLimit   int
	analysesOffset  int
	analysesOutPath string
)

var analysesCmd = &cobra.Command{
	Use:   "analyses",
	Short: "List stored spatial analyses",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		records, err := st.ListAnalyses(ctx, store.ListFilter{
			Limit:  analysesLimit,
			Offset: analysesOffset,
		})
		if err != nil {
			return err
		}
		return writeOutput(analysesOutPath, records)
	},
}

var analysesGetCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Fetch one stored analysis by ID",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		rec, err := st.GetAnalysis(ctx, args[0])
		if err != nil {
			return err
		}
		return writeOutput(analysesOutPath, rec)
	},
}

func init() {
	analysesCmd.PersistentFlags().StringVarP(&analysesOutPath, "out", "o", "", "output file (default stdout)")
	analysesCmd.Flags().IntVar(&analysesLimit, "limit", 0, "max records to return (default 50)")
	analysesCmd.Flags().IntVar(&analysesOffset, "offset", 0, "records to skip")
	analysesCmd.AddCommand(analysesGetCmd)
	rootCmd.AddCommand(analysesCmd)
}
