package cmd

import (
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"cetcompare/internal/api"
)

// StatusOutput is the combined backend status.
type StatusOutput struct {
	APIURL       string             `json:"api_url"`
	Health       *api.Health        `json:"health,omitempty"`
	HealthError  string             `json:"health_error,omitempty"`
	Compare      *api.CompareHealth `json:"compare,omitempty"`
	CompareError string             `json:"compare_error,omitempty"`
	Chat         *api.ChatStatus    `json:"chat,omitempty"`
	ChatError    string             `json:"chat_error,omitempty"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check the backend, comparison data and assistant",
	Long: `Probe the backend health, the comparison service and the assistant
in parallel and print the combined result as JSON.

Examples:
  cetcompare status
  cetcompare status --api-url http://cet.internal:5000/api`,
	Run: func(cmd *cobra.Command, args []string) {
		client := newAPIClient()
		out := StatusOutput{APIURL: cfg.Client.APIURL}

		// Each probe records its own failure; the group never cancels.
		var g errgroup.Group
		g.Go(func() error {
			h, err := client.Health(cmd.Context())
			if err != nil {
				out.HealthError = err.Error()
			}
			out.Health = h
			return nil
		})
		g.Go(func() error {
			h, err := client.CompareHealth(cmd.Context())
			if err != nil {
				out.CompareError = err.Error()
			}
			out.Compare = h
			return nil
		})
		g.Go(func() error {
			s, err := client.ChatStatus(cmd.Context())
			if err != nil {
				out.ChatError = err.Error()
			}
			out.Chat = s
			return nil
		})
		_ = g.Wait()

		printJSON(out)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
