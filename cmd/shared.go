package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"cetcompare/internal/api"
	"cetcompare/internal/compare"
	"cetcompare/internal/config"
)

// StoreInterface is the local cutoff database used by query and schema.
type StoreInterface interface {
	ExecuteQuery(query string) ([]map[string]interface{}, error)
	TableSchema(table string) ([]map[string]interface{}, error)
	Close() error
}

// These variables will be set by main package
var (
	SetupLogger      func(dataDir, level string) (*zap.Logger, error)
	LaunchTUI        func(ctx context.Context, cfg *config.Config, local bool) error
	InitDB           func(cfg *config.Config) (StoreInterface, func(), error)
	NewBackend       func(cfg *config.Config, local bool) (compare.Backend, func(), error)
	StartServer      func(ctx context.Context, cfg *config.Config) error
	FetchData        func(ctx context.Context, cfg *config.Config, assumeYes bool) error
	AskAssistant     func(ctx context.Context, cfg *config.Config, question string) (reply, service string, err error)
	RenderComparison func(result *compare.ComparisonResult, order []string, width int) string
)

// HandleError prints error and exits
func HandleError(err error, message string) {
	if log != nil {
		log.Error(message, zap.Error(err))
	}
	fmt.Fprintf(os.Stderr, "Error: %s: %v\n", message, err)
	os.Exit(1)
}

func printJSON(v interface{}) {
	output, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		HandleError(err, "Failed to encode JSON")
	}
	fmt.Println(string(output))
}

// newAPIClient builds a backend client from the loaded configuration.
func newAPIClient() *api.Client {
	client, err := api.NewClient(api.Config{
		APIURL:     cfg.Client.APIURL,
		CompareURL: cfg.Client.CompareURL,
		Timeout:    cfg.Client.Timeout,
	}, log)
	if err != nil {
		HandleError(err, "Invalid backend URL")
	}
	return client
}

// backend returns the comparison backend, local or remote, or exits.
func backend() (compare.Backend, func()) {
	b, cleanup, err := NewBackend(cfg, useLocal)
	if err != nil {
		HandleError(err, "Failed to initialize backend")
	}
	return b, cleanup
}
