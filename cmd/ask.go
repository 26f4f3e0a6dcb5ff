package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask the admissions assistant directly, without the backend",
	Long: `Ask a question and print the answer from the configured assistant
provider. The provider is chosen from chat.provider: Gemini when
GEMINI_API_KEY is set, Anthropic when ANTHROPIC_API_KEY is set, and canned
replies otherwise.

Example:
  cetcompare ask "What is the difference between closing rank and percentile?"`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		question := strings.Join(args, " ")

		reply, service, err := AskAssistant(cmd.Context(), cfg, question)
		if err != nil {
			HandleError(err, "Failed to generate response")
		}
		log.Debug("Assistant replied", zap.String("service", service))
		fmt.Println(reply)
	},
}

func init() {
	rootCmd.AddCommand(askCmd)
}
