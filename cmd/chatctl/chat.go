package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"ai-concierge/internal/app"
	"ai-concierge/internal/conversation"
	"ai-concierge/internal/trace"
)

var (
	chatUser      string
	chatShowTrace bool
)

var (
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("62")).
			Bold(true)

	replyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("212"))

	usageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive conversation",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cfg, nil)
		if err != nil {
			return err
		}
		defer a.Close()
		return runChat(cmd.Context(), a.Orchestrator, cmd.InOrStdin(), cmd.OutOrStdout(), chatUser, chatShowTrace)
	},
}

func init() {
	chatCmd.Flags().StringVarP(&chatUser, "user", "u", "cli", "user id of the conversation")
	chatCmd.Flags().BoolVar(&chatShowTrace, "trace", false, "print the trace returned with each reply")
}

// runChat reads one message per line until EOF or "/quit".
func runChat(ctx context.Context, o *conversation.Orchestrator, in io.Reader, out io.Writer, userID string, showTrace bool) error {
	if ctx == nil {
		ctx = context.Background()
	}
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, promptStyle.Render(userID+"> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "/quit" {
			return nil
		}

		result, err := o.HandleTurn(ctx, userID, line, trace.NewTraceID())
		if err != nil {
			fmt.Fprintln(out, errorStyle.Render(result.Text))
			continue
		}
		fmt.Fprintln(out, replyStyle.Render(result.Text))
		fmt.Fprintln(out, usageStyle.Render(fmt.Sprintf("tokens: prompt=%d completion=%d total=%d",
			result.Usage.PromptTokens, result.Usage.CompletionTokens, result.Usage.TotalTokens)))
		if showTrace {
			for _, e := range result.Trace {
				fmt.Fprintln(out, usageStyle.Render(formatEntry(e)))
			}
		}
	}
}

func formatEntry(e trace.Entry) string {
	s := "  - " + e.Step
	if e.Reason != "" {
		s += ": " + e.Reason
	}
	if e.Error != "" {
		s += " (error: " + e.Error + ")"
	}
	return s
}
