package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"cetcompare/internal/chat"
)

var chatCmd = &cobra.Command{
	Use:   "chat [message]",
	Short: "Talk to the admissions assistant through the backend",
	Long: `Send a message to the backend assistant and print the reply. Without a
message, read questions from standard input until EOF or "exit", keeping
the conversation history between questions.

Examples:
  cetcompare chat "Which colleges in Pune are best for Computer Engineering?"
  cetcompare chat`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()
		widget := chat.NewWidget(newAPIClient(), log)

		status := widget.CheckStatus(ctx)
		fmt.Fprintf(os.Stderr, "Assistant: %s\n", status.Label())

		if len(args) == 1 {
			reply, err := widget.Send(ctx, args[0])
			fmt.Println(reply.Text)
			if err != nil {
				os.Exit(1)
			}
			return
		}

		scanner := bufio.NewScanner(os.Stdin)
		fmt.Fprint(os.Stderr, "> ")
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			switch line {
			case "":
			case "exit", "quit":
				return
			case "/clear":
				if err := widget.Clear(ctx); err != nil {
					fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
				}
			default:
				reply, _ := widget.Send(ctx, line)
				fmt.Println(reply.Text)
				fmt.Println()
			}
			fmt.Fprint(os.Stderr, "> ")
		}
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
}
