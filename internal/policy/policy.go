// Package policy chooses the reply text sent back for a completed turn.
package policy

import "strings"

type Tag string

const (
	TagClarifyingQuestion Tag = "clarifying_question"
	TagEarlyHelp          Tag = "early_help"
	TagPassThrough        Tag = "pass_through"
)

// EarlyHelpMaxTurns is the largest history length (system message included,
// assistant reply not yet appended) that still counts as an early turn.
const EarlyHelpMaxTurns = 4

const (
	HelpWelcome        = "Welcome! I'm here to help. Could you tell me a bit more about what you need assistance with?"
	ProductHelpWelcome = "Welcome! I'd be happy to help you find the right product. What kind of product are you looking for, and do you have any preferences?"
)

// Reason is the human readable trace annotation for t.
func (t Tag) Reason() string {
	switch t {
	case TagClarifyingQuestion:
		return "Model asked a clarifying question"
	case TagEarlyHelp:
		return "Early help request answered with welcome guidance"
	default:
		return "Model response passed through"
	}
}

// Select returns the final reply for assistantText. turnCount is the history
// length after the user message was appended.
func Select(assistantText, userMessage string, turnCount int) (string, Tag) {
	reply := strings.ToLower(assistantText)
	if strings.Contains(reply, "clarify") || strings.Contains(reply, "ambiguous") {
		return assistantText, TagClarifyingQuestion
	}

	msg := strings.ToLower(userMessage)
	if strings.Contains(msg, "help") && turnCount <= EarlyHelpMaxTurns {
		if strings.Contains(msg, "product") {
			return ProductHelpWelcome, TagEarlyHelp
		}
		return HelpWelcome, TagEarlyHelp
	}

	return assistantText, TagPassThrough
}
