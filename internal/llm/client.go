package llm

import (
	"context"
	"fmt"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string
	Content string
}

type Response struct {
	Content          string
	Model            string
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Client is the boundary to an external chat completion service.
// Implementations perform no retries; any error is terminal for the turn.
type Client interface {
	Generate(ctx context.Context, messages []Message) (Response, error)
}

// CompletionFailure is returned by every Client when the upstream call fails.
type CompletionFailure struct {
	Message string
	Err     error
}

func (e *CompletionFailure) Error() string { return e.Message }

func (e *CompletionFailure) Unwrap() error { return e.Err }

func newFailure(err error, format string, args ...any) *CompletionFailure {
	msg := fmt.Sprintf(format, args...)
	if err != nil {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return &CompletionFailure{Message: msg, Err: err}
}
