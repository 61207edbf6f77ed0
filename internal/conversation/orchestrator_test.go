package conversation

import (
	"context"
	"errors"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-concierge/internal/llm"
	"ai-concierge/internal/policy"
	"ai-concierge/internal/session"
	"ai-concierge/internal/storage"
	"ai-concierge/internal/trace"
)

type memSink struct {
	mu     sync.Mutex
	events []storage.Event
}

func (m *memSink) AppendEvent(ev storage.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *memSink) LoadEvents() ([]storage.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.Event(nil), m.events...), nil
}

func (m *memSink) Close() error { return nil }

func (m *memSink) steps(traceID string) []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for _, ev := range m.events {
		if ev.TraceID == traceID {
			out = append(out, ev.Step)
		}
	}
	return out
}

type panicGateway struct{}

func (panicGateway) Generate(context.Context, []llm.Message) (llm.Response, error) {
	panic("nil pointer in backend")
}

type ctxGateway struct{ err error }

func (g *ctxGateway) Generate(ctx context.Context, _ []llm.Message) (llm.Response, error) {
	g.err = ctx.Err()
	return llm.Response{Content: "ok", Model: "m", PromptTokens: 1, CompletionTokens: 1}, nil
}

func newTestOrchestrator(t *testing.T, gw llm.Client) (*Orchestrator, *memSink) {
	t.Helper()
	sink := &memSink{}
	rec := trace.NewRecorder(sink, log.New(io.Discard, "", 0))
	return New(session.NewStore(), gw, rec, time.Second), sink
}

func indexOf(steps []string, step string) int {
	for i, s := range steps {
		if s == step {
			return i
		}
	}
	return -1
}

func TestHandleTurn_FirstMessageCreatesSession(t *testing.T) {
	gw := llm.NewScripted(0)
	o, sink := newTestOrchestrator(t, gw)

	res, err := o.HandleTurn(context.Background(), "u1", "hello", "t1")
	require.NoError(t, err)

	assert.Equal(t, `You said: "hello"`, res.Text)
	assert.Greater(t, res.Usage.TotalTokens, 0)
	assert.Equal(t, res.Usage.PromptTokens+res.Usage.CompletionTokens, res.Usage.TotalTokens)
	require.Len(t, res.Trace, 2)
	assert.Equal(t, StepModelCalled, res.Trace[0].Step)
	assert.Equal(t, StepAssistantResponseGenerated, res.Trace[1].Step)
	assert.Equal(t, policy.TagPassThrough.Reason(), res.Trace[1].Reason)

	calls := gw.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 2)
	assert.Equal(t, llm.RoleSystem, calls[0][0].Role)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "hello"}, calls[0][1])

	sess, ok := o.Store().Get("u1")
	require.True(t, ok)
	hist := sess.History()
	require.Len(t, hist, 3)
	assert.Equal(t, llm.RoleAssistant, hist[2].Role)
	assert.Equal(t, res.Text, hist[2].Content)

	steps := sink.steps("t1")
	order := []string{StepRequestReceived, StepNewSession, StepUserMessageAdded, StepCallingModel, StepTokenUsage}
	last := -1
	for _, s := range order {
		i := indexOf(steps, s)
		require.NotEqual(t, -1, i, "missing step %s in %v", s, steps)
		assert.Greater(t, i, last, "step %s out of order in %v", s, steps)
		last = i
	}
}

func TestHandleTurn_SecondMessageReusesSession(t *testing.T) {
	o, sink := newTestOrchestrator(t, llm.NewScripted(0))
	_, err := o.HandleTurn(context.Background(), "u1", "hello", "t1")
	require.NoError(t, err)
	_, err = o.HandleTurn(context.Background(), "u1", "again", "t2")
	require.NoError(t, err)

	assert.Contains(t, sink.steps("t2"), StepExistingSession)
	assert.NotContains(t, sink.steps("t2"), StepNewSession)
	sess, _ := o.Store().Get("u1")
	assert.Equal(t, 5, sess.Len())
}

func TestHandleTurn_ValidationFailure(t *testing.T) {
	for _, tc := range []struct{ user, msg string }{{"", "hi"}, {"u1", ""}, {"", ""}} {
		gw := llm.NewScripted(0)
		o, sink := newTestOrchestrator(t, gw)

		res, err := o.HandleTurn(context.Background(), tc.user, tc.msg, "t1")
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)

		assert.Equal(t, ValidationText, res.Text)
		assert.Equal(t, []trace.Entry{{Step: StepInputValidationFailed, Reason: ValidationReason}}, res.Trace)
		assert.Equal(t, Usage{}, res.Usage)
		assert.Empty(t, gw.Calls())
		assert.Equal(t, 0, o.Store().Stats().Sessions)
		assert.Equal(t, []string{StepRequestReceived, StepInputValidationFailed}, sink.steps("t1"))
	}
}

func TestHandleTurn_CompletionFailureKeepsHistoryConsistent(t *testing.T) {
	gw := &llm.ScriptedClient{FailAtHistoryLen: 4}
	o, sink := newTestOrchestrator(t, gw)

	_, err := o.HandleTurn(context.Background(), "u1", "first", "t1")
	require.NoError(t, err)
	sess, _ := o.Store().Get("u1")
	require.Equal(t, 3, sess.Len())

	res, err := o.HandleTurn(context.Background(), "u1", "second", "t2")
	require.NoError(t, err)

	assert.Equal(t, "I encountered an issue while processing your request: Simulated completion failure. Please try again.", res.Text)
	assert.Equal(t, Usage{}, res.Usage)
	require.Len(t, res.Trace, 1)
	assert.Equal(t, StepCompletionFailed, res.Trace[0].Step)
	assert.Equal(t, "Simulated completion failure", res.Trace[0].Error)

	// only the user message was added
	hist := sess.History()
	require.Len(t, hist, 4)
	assert.Equal(t, llm.Message{Role: llm.RoleUser, Content: "second"}, hist[3])

	steps := sink.steps("t2")
	assert.Contains(t, steps, StepCompletionFailed)
	assert.NotContains(t, steps, StepAssistantMessageAdded)
	assert.NotContains(t, steps, StepTokenUsage)
}

func TestHandleTurn_GatewayErrorMessageEmbedded(t *testing.T) {
	gw := &llm.ScriptedClient{FailAlways: true, Err: errors.New("503 service unavailable")}
	o, _ := newTestOrchestrator(t, gw)

	res, err := o.HandleTurn(context.Background(), "u1", "hello", "t1")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "503 service unavailable")
	assert.Contains(t, res.Text, "Please try again.")
}

func TestHandleTurn_PanicTakesFailurePath(t *testing.T) {
	o, _ := newTestOrchestrator(t, panicGateway{})

	res, err := o.HandleTurn(context.Background(), "u1", "hello", "t1")
	require.NoError(t, err)
	assert.Contains(t, res.Text, "internal error: nil pointer in backend")
	assert.Equal(t, Usage{}, res.Usage)
	sess, _ := o.Store().Get("u1")
	assert.Equal(t, 2, sess.Len())
}

func TestHandleTurn_EarlyHelpPolicy(t *testing.T) {
	o, _ := newTestOrchestrator(t, llm.NewScripted(0))

	res, err := o.HandleTurn(context.Background(), "u1", "help me find a product", "t1")
	require.NoError(t, err)
	assert.Equal(t, policy.ProductHelpWelcome, res.Text)
	assert.Equal(t, policy.TagEarlyHelp.Reason(), res.Trace[1].Reason)

	sess, _ := o.Store().Get("u1")
	assert.Equal(t, policy.ProductHelpWelcome, sess.History()[2].Content)

	// history is 4 long after the second user message: still early
	res, err = o.HandleTurn(context.Background(), "u1", "I need help", "t2")
	require.NoError(t, err)
	assert.Equal(t, policy.HelpWelcome, res.Text)

	// history is 6 long: past the threshold
	res, err = o.HandleTurn(context.Background(), "u1", "I need help", "t3")
	require.NoError(t, err)
	assert.Equal(t, `You said: "I need help"`, res.Text)
}

func TestHandleTurn_ClarifyingReplyPassesThrough(t *testing.T) {
	gw := &llm.ScriptedClient{Reply: func([]llm.Message) string { return "Could you clarify your request?" }}
	o, _ := newTestOrchestrator(t, gw)

	res, err := o.HandleTurn(context.Background(), "u1", "I need help with a product", "t1")
	require.NoError(t, err)
	assert.Equal(t, "Could you clarify your request?", res.Text)
	assert.Equal(t, policy.TagClarifyingQuestion.Reason(), res.Trace[1].Reason)
}

func TestHandleTurn_CallerCancellationDoesNotAbortCompletion(t *testing.T) {
	gw := &ctxGateway{}
	o, _ := newTestOrchestrator(t, gw)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := o.HandleTurn(ctx, "u1", "hello", "t1")
	require.NoError(t, err)
	assert.NoError(t, gw.err)
	assert.Equal(t, "ok", res.Text)
	assert.Equal(t, Usage{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2}, res.Usage)
}

func TestHandleTurn_ConcurrentSameUserKeepsRoleAlternation(t *testing.T) {
	gw := &llm.ScriptedClient{Reply: func(msgs []llm.Message) string {
		time.Sleep(2 * time.Millisecond)
		return "reply to " + msgs[len(msgs)-1].Content
	}}
	o, _ := newTestOrchestrator(t, gw)

	const n = 20
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := o.HandleTurn(context.Background(), "same", "msg", trace.NewTraceID())
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	sess, _ := o.Store().Get("same")
	hist := sess.History()
	require.Len(t, hist, 1+2*n)
	assert.Equal(t, llm.RoleSystem, hist[0].Role)
	for i := 1; i < len(hist); i += 2 {
		assert.Equal(t, llm.RoleUser, hist[i].Role, "index %d", i)
		assert.Equal(t, llm.RoleAssistant, hist[i+1].Role, "index %d", i+1)
	}
	// each gateway call saw a history ending with its own user turn
	for _, call := range gw.Calls() {
		assert.Equal(t, llm.RoleUser, call[len(call)-1].Role)
		assert.Equal(t, 0, len(call)%2)
	}
}

func TestHandleTurn_DifferentUsersAreIndependent(t *testing.T) {
	release := make(chan struct{})
	gw := &llm.ScriptedClient{Reply: func(msgs []llm.Message) string {
		if msgs[len(msgs)-1].Content == "slow" {
			<-release
		}
		return "done"
	}}
	o, _ := newTestOrchestrator(t, gw)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = o.HandleTurn(context.Background(), "slow-user", "slow", "t1")
	}()

	// a blocked turn for one user must not block another user
	res, err := o.HandleTurn(context.Background(), "fast-user", "fast", "t2")
	require.NoError(t, err)
	assert.Equal(t, "done", res.Text)

	close(release)
	<-done
}
