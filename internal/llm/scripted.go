package llm

import (
	"context"
	"fmt"
	"sync"
)

const ScriptedModel = "scripted"

// ScriptedClient is an offline Client. Replies are produced by Reply (or an
// echo of the last user message) and failures are injected only through the
// explicit FailAtHistoryLen / FailAlways / Err settings.
type ScriptedClient struct {
	Reply            func(messages []Message) string
	FailAtHistoryLen int
	FailAlways       bool
	Err              error

	mu    sync.Mutex
	calls [][]Message
}

var _ Client = (*ScriptedClient)(nil)

func NewScripted(failAtHistoryLen int) *ScriptedClient {
	return &ScriptedClient{FailAtHistoryLen: failAtHistoryLen}
}

func (s *ScriptedClient) Model() string { return ScriptedModel }

func (s *ScriptedClient) Generate(ctx context.Context, messages []Message) (Response, error) {
	snapshot := make([]Message, len(messages))
	copy(snapshot, messages)
	s.mu.Lock()
	s.calls = append(s.calls, snapshot)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return Response{}, newFailure(err, "scripted completion aborted")
	}
	if s.shouldFail(len(messages)) {
		if s.Err != nil {
			return Response{}, newFailure(s.Err, "scripted completion failed")
		}
		return Response{}, newFailure(nil, "Simulated completion failure")
	}

	content := s.reply(messages)
	prompt := estimateTokens(messages)
	completion := len(content) / 4
	return Response{
		Content:          content,
		Model:            ScriptedModel,
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}, nil
}

// Calls returns copies of the histories passed to Generate, in call order.
func (s *ScriptedClient) Calls() [][]Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]Message, len(s.calls))
	copy(out, s.calls)
	return out
}

func (s *ScriptedClient) shouldFail(historyLen int) bool {
	if s.FailAlways {
		return true
	}
	return s.FailAtHistoryLen > 0 && historyLen == s.FailAtHistoryLen
}

func (s *ScriptedClient) reply(messages []Message) string {
	if s.Reply != nil {
		return s.Reply(messages)
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == RoleUser {
			return fmt.Sprintf("You said: %q", messages[i].Content)
		}
	}
	return "Hello! How can I assist you today?"
}

func estimateTokens(messages []Message) int {
	total := 0
	for _, m := range messages {
		total += len(m.Content)/4 + 1
	}
	return total
}
