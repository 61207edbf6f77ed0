package conversation

import (
	"fmt"

	"ai-concierge/internal/trace"
)

const (
	ValidationText   = "Please provide both 'userId' and 'message' in your request."
	ValidationReason = "Missing userId or message"
	failureTemplate  = "I encountered an issue while processing your request: %s. Please try again."
)

// Usage is the token accounting for one turn. All fields are zero unless a
// completion succeeded.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// TurnResult is the structured response returned for every turn.
type TurnResult struct {
	Text  string        `json:"text"`
	Trace []trace.Entry `json:"trace"`
	Usage Usage         `json:"usage"`
}

// ValidationError reports a missing userId or message.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return "invalid turn request: " + e.Reason }

func validationResult() TurnResult {
	return TurnResult{
		Text:  ValidationText,
		Trace: []trace.Entry{{Step: StepInputValidationFailed, Reason: ValidationReason}},
	}
}

func failureResult(err error) TurnResult {
	return TurnResult{
		Text:  fmt.Sprintf(failureTemplate, err.Error()),
		Trace: []trace.Entry{{Step: StepCompletionFailed, Error: err.Error()}},
	}
}
