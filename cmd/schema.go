package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// SchemaOutput represents the schema information for a table
type SchemaOutput struct {
	TableName   string       `json:"table_name"`
	ColumnCount int          `json:"column_count"`
	Columns     []ColumnInfo `json:"columns"`
}

// ColumnInfo represents information about a single column
type ColumnInfo struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable string `json:"nullable"`
}

// schemaTables are the tables the application creates.
var schemaTables = []string{"cutoffs", "chat_history"}

var schemaCmd = &cobra.Command{
	Use:   "schema",
	Short: "Retrieve a summary of the DuckDB database schema",
	Long: `Retrieve a summary of the local DuckDB database schema.
This command returns the columns of the cutoffs and chat_history tables.

Examples:
  cetcompare schema`,
	Run: func(cmd *cobra.Command, args []string) {
		db, cleanup, err := InitDB(cfg)
		if err != nil {
			HandleError(err, "Failed to initialize database")
		}
		defer cleanup()

		schemas := make([]SchemaOutput, 0, len(schemaTables))
		for _, table := range schemaTables {
			schema, err := getTableSchema(db, table)
			if err != nil {
				// Skip tables that don't exist
				continue
			}
			schemas = append(schemas, schema)
		}
		printJSON(schemas)
	},
}

// getTableSchema converts DESCRIBE output into a SchemaOutput.
func getTableSchema(db StoreInterface, tableName string) (SchemaOutput, error) {
	rows, err := db.TableSchema(tableName)
	if err != nil {
		return SchemaOutput{}, fmt.Errorf("failed to get schema for table %s: %w", tableName, err)
	}

	schema := SchemaOutput{
		TableName: tableName,
		Columns:   []ColumnInfo{},
	}
	for _, row := range rows {
		schema.Columns = append(schema.Columns, ColumnInfo{
			Name:     fmt.Sprint(row["column_name"]),
			Type:     fmt.Sprint(row["column_type"]),
			Nullable: fmt.Sprint(row["null"]),
		})
	}
	schema.ColumnCount = len(schema.Columns)
	return schema, nil
}

func init() {
	rootCmd.AddCommand(schemaCmd)
}
