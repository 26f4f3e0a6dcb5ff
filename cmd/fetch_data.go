package cmd

import (
	"errors"

	"github.com/spf13/cobra"
)

var (
	fetchYes bool
	fetchURL string
)

var fetchDataCmd = &cobra.Command{
	Use:   "fetch-data",
	Short: "Download missing yearly cutoff CSVs",
	Long: `Download the yearly cutoff files (2021.csv to 2025.csv) missing from
<data-dir>/cutoff_trends. The source is data_url from the config, CET_DATA_URL,
or --url. A URL containing {year} is used as a template, otherwise
<url>/<year>.csv is fetched. Zip URLs are unpacked.

Examples:
  cetcompare fetch-data --url https://example.org/cet/cutoffs
  cetcompare fetch-data --yes --url "https://example.org/cet/{year}.zip"`,
	Run: func(cmd *cobra.Command, args []string) {
		if cmd.Flags().Changed("url") {
			cfg.DataURL = fetchURL
		}
		if cfg.DataURL == "" {
			HandleError(errors.New("no data URL configured"), "Set data_url, CET_DATA_URL or --url")
		}
		if err := FetchData(cmd.Context(), cfg, fetchYes); err != nil {
			HandleError(err, "Failed to fetch cutoff data")
		}
	},
}

func init() {
	fetchDataCmd.Flags().BoolVarP(&fetchYes, "yes", "y", false, "Download without asking")
	fetchDataCmd.Flags().StringVar(&fetchURL, "url", "", "Base URL or {year} template for the cutoff CSVs")
	rootCmd.AddCommand(fetchDataCmd)
}
