package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var queryString string

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the database (DuckDB SQL)",
	Long: `Execute the requested QUERY against the local DuckDB database.
The query can be any valid DuckDB SQL query, including SELECT, DESCRIBE, SHOW TABLES, etc.

Examples:
  cetcompare query --sql "SELECT * FROM cutoffs LIMIT 5"
  cetcompare query --sql "SELECT year, COUNT(*) AS rows FROM cutoffs GROUP BY year"
  cetcompare query --sql "SHOW TABLES"`,
	Run: func(cmd *cobra.Command, args []string) {
		if queryString == "" {
			HandleError(fmt.Errorf("query is required"), "Missing query parameter")
		}

		db, cleanup, err := InitDB(cfg)
		if err != nil {
			HandleError(err, "Failed to initialize database")
		}
		defer cleanup()

		rows, err := db.ExecuteQuery(queryString)
		if err != nil {
			HandleError(err, "Failed to execute query")
		}
		printJSON(rows)
	},
}

func init() {
	queryCmd.Flags().StringVarP(&queryString, "sql", "q", "", "SQL query to execute (required)")
	_ = queryCmd.MarkFlagRequired("sql")
	rootCmd.AddCommand(queryCmd)
}
