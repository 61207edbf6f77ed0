// Package conversation runs a single chat turn end to end: input validation,
// session bookkeeping, the completion call, reply selection and the fallback
// used when anything in the call path fails.
package conversation

import (
	"context"
	"fmt"
	"time"

	"ai-concierge/internal/llm"
	"ai-concierge/internal/policy"
	"ai-concierge/internal/session"
	"ai-concierge/internal/trace"
)

// Diagnostic and caller-visible trace steps.
const (
	StepRequestReceived            = "request_received"
	StepInputValidationFailed      = "input_validation_failed"
	StepNewSession                 = "new_session_created"
	StepExistingSession            = "existing_session_loaded"
	StepUserMessageAdded           = "user_message_added_to_history"
	StepCallingModel               = "calling_openai_model"
	StepCompletionFailed           = "openai_api_failure"
	StepTokenUsage                 = "token_usage_recorded"
	StepPolicyApplied              = "response_policy_applied"
	StepAssistantMessageAdded      = "assistant_message_added_to_history"
	StepResponseReady              = "response_ready"
	StepModelCalled                = "openai_model_called"
	StepAssistantResponseGenerated = "assistant_response_generated"
)

type Orchestrator struct {
	store    *session.Store
	gateway  llm.Client
	recorder *trace.Recorder
	timeout  time.Duration
}

// New wires an orchestrator. timeout bounds each completion call; zero
// leaves it to the gateway.
func New(store *session.Store, gateway llm.Client, recorder *trace.Recorder, timeout time.Duration) *Orchestrator {
	return &Orchestrator{
		store:    store,
		gateway:  gateway,
		recorder: recorder,
		timeout:  timeout,
	}
}

func (o *Orchestrator) Store() *session.Store { return o.store }

// HandleTurn services one message. The returned result is always populated;
// err is a *ValidationError when userID or message is empty and nil
// otherwise, including when the completion failed.
func (o *Orchestrator) HandleTurn(ctx context.Context, userID, message, traceID string) (TurnResult, error) {
	o.recorder.Record(traceID, StepRequestReceived, map[string]any{
		"user_id":        userID,
		"message_length": len(message),
	})

	if userID == "" || message == "" {
		o.recorder.Record(traceID, StepInputValidationFailed, map[string]any{
			"user_id": userID,
			"reason":  ValidationReason,
		})
		return validationResult(), &ValidationError{Reason: ValidationReason}
	}

	sess, created := o.store.GetOrCreate(userID)
	if created {
		o.recorder.Record(traceID, StepNewSession, map[string]any{"user_id": userID})
	} else {
		o.recorder.Record(traceID, StepExistingSession, map[string]any{"user_id": userID})
	}

	// One turn per user at a time: the user append, the call and the
	// assistant append must not interleave with another request.
	sess.Lock()
	defer sess.Unlock()

	sess.AppendUser(message)
	history := sess.History()
	o.recorder.Record(traceID, StepUserMessageAdded, map[string]any{
		"user_id":        userID,
		"history_length": len(history),
	})

	o.recorder.Record(traceID, StepCallingModel, map[string]any{
		"user_id":        userID,
		"model":          llm.ModelName(o.gateway),
		"history_length": len(history),
	})
	resp, text, tag, err := o.complete(ctx, history, message)
	if err != nil {
		o.recorder.Record(traceID, StepCompletionFailed, map[string]any{
			"user_id": userID,
			"error":   err.Error(),
		})
		result := failureResult(err)
		o.recorder.Record(traceID, StepResponseReady, map[string]any{"user_id": userID, "outcome": "failed"})
		return result, nil
	}

	usage := Usage{
		PromptTokens:     resp.PromptTokens,
		CompletionTokens: resp.CompletionTokens,
		TotalTokens:      resp.PromptTokens + resp.CompletionTokens,
	}
	o.recorder.Record(traceID, StepTokenUsage, map[string]any{
		"user_id":           userID,
		"model":             resp.Model,
		"prompt_tokens":     usage.PromptTokens,
		"completion_tokens": usage.CompletionTokens,
		"total_tokens":      usage.TotalTokens,
	})
	o.recorder.Record(traceID, StepPolicyApplied, map[string]any{
		"user_id": userID,
		"policy":  string(tag),
	})

	sess.AppendAssistant(text)
	o.recorder.Record(traceID, StepAssistantMessageAdded, map[string]any{
		"user_id":        userID,
		"history_length": len(history) + 1,
	})

	result := TurnResult{
		Text: text,
		Trace: []trace.Entry{
			{Step: StepModelCalled, Metadata: map[string]any{"model": resp.Model}},
			{Step: StepAssistantResponseGenerated, Reason: tag.Reason(), Metadata: map[string]any{"policy": string(tag)}},
		},
		Usage: usage,
	}
	o.recorder.Record(traceID, StepResponseReady, map[string]any{"user_id": userID, "outcome": "succeeded"})
	return result, nil
}

// complete calls the gateway and applies the reply policy. The call is
// detached from caller cancellation so a disconnect does not abort it.
// Panics are converted into errors and take the failure path.
func (o *Orchestrator) complete(ctx context.Context, history []llm.Message, message string) (resp llm.Response, text string, tag policy.Tag, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("internal error: %v", r)
		}
	}()

	callCtx := context.WithoutCancel(ctx)
	if o.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(callCtx, o.timeout)
		defer cancel()
	}

	resp, err = o.gateway.Generate(callCtx, history)
	if err != nil {
		return llm.Response{}, "", "", err
	}
	text, tag = policy.Select(resp.Content, message, len(history))
	return resp, text, tag, nil
}
