package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"cetcompare/internal/compare"
)

var (
	compareBranch   string
	compareCategory string
	compareMetric   string
	compareChart    bool
	chartWidth      int
)

var compareCmd = &cobra.Command{
	Use:   "compare CODE CODE [CODE]",
	Short: "Compare cutoff trends of 2 or 3 colleges",
	Long: `Compare the closing cutoffs of two or three colleges for one branch
across admission years. Without --branch the first branch offered by the
selected colleges is used. Output is JSON unless --chart is given.

Examples:
  cetcompare compare 6006 3012 --branch CS
  cetcompare compare 6006 3012 6271 --branch IT --category OBC --metric rank
  cetcompare compare 6006 3012 --chart`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		category, err := compare.ParseCategory(compareCategory)
		if err != nil {
			HandleError(err, "Invalid category")
		}
		metric, err := compare.ParseMetric(compareMetric)
		if err != nil {
			HandleError(err, "Invalid metric")
		}

		b, cleanup := backend()
		defer cleanup()

		ctx := cmd.Context()
		session := compare.NewSession(b, compare.WithLogger(log))
		for _, code := range args {
			compare.Run(ctx, session.SelectCollege(compare.College{Code: code}))
			if msg := session.Snapshot().Message; msg != "" {
				HandleError(errors.New(msg), "Invalid selection")
			}
		}

		st := session.Snapshot()
		if compareBranch != "" {
			session.SetBranch(compareBranch)
		} else if st.Error != "" {
			HandleError(errors.New(st.Error), "Failed to resolve branches")
		}
		session.SetCategory(category)
		session.SetMetric(metric)

		compare.Run(ctx, session.Compare())
		st = session.Snapshot()
		if st.Message != "" {
			HandleError(errors.New(st.Message), "Invalid selection")
		}
		if st.Error != "" {
			HandleError(errors.New(st.Error), "Comparison failed")
		}

		if compareChart {
			fmt.Println(RenderComparison(st.Result, st.SelectedCodes(), chartWidth))
			return
		}
		printJSON(st.Result)
	},
}

func init() {
	compareCmd.Flags().StringVarP(&compareBranch, "branch", "b", "", "Branch code (default: first branch offered)")
	compareCmd.Flags().StringVar(&compareCategory, "category", "OPEN", "Seat category: OPEN, OBC, SC, ST, EWS, TFWS")
	compareCmd.Flags().StringVarP(&compareMetric, "metric", "m", "percentile", "Metric: percentile or rank")
	compareCmd.Flags().BoolVar(&compareChart, "chart", false, "Print a terminal chart instead of JSON")
	compareCmd.Flags().IntVar(&chartWidth, "width", 80, "Chart width in columns")
	rootCmd.AddCommand(compareCmd)
}
