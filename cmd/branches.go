package cmd

import (
	"github.com/spf13/cobra"
)

var branchesCmd = &cobra.Command{
	Use:   "branches CODE [CODE...]",
	Short: "List branches offered by colleges",
	Long: `List the branches offered across the given college codes, as JSON.

Examples:
  cetcompare branches 6006 3012`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		b, cleanup := backend()
		defer cleanup()

		branches, err := b.Branches(cmd.Context(), args)
		if err != nil {
			HandleError(err, "Failed to load branches")
		}
		printJSON(branches)
	},
}

func init() {
	rootCmd.AddCommand(branchesCmd)
}
