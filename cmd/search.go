package cmd

import (
	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search for colleges",
	Long: `Search for colleges by name or city. An empty query lists colleges
in name order. Results are returned as JSON.

Examples:
  cetcompare search pune
  cetcompare search --limit 5 "college of engineering"
  cetcompare search --local vjti`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		query := ""
		if len(args) == 1 {
			query = args[0]
		}

		b, cleanup := backend()
		defer cleanup()

		colleges, err := b.SearchColleges(cmd.Context(), query)
		if err != nil {
			HandleError(err, "Failed to search colleges")
		}
		if searchLimit > 0 && len(colleges) > searchLimit {
			colleges = colleges[:searchLimit]
		}
		printJSON(colleges)
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", 100, "Maximum number of results")
	rootCmd.AddCommand(searchCmd)
}
