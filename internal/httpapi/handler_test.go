package httpapi

import (
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ai-concierge/internal/conversation"
	"ai-concierge/internal/llm"
	"ai-concierge/internal/session"
	"ai-concierge/internal/trace"
)

func newTestHandler(t *testing.T, gw llm.Client) *Handler {
	t.Helper()
	rec := trace.NewRecorder(nil, log.New(io.Discard, "", 0))
	return NewHandler(conversation.New(session.NewStore(), gw, rec, time.Second))
}

func doChat(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, h.Chat(c))
	return rec
}

func TestChat_Success(t *testing.T) {
	h := newTestHandler(t, llm.NewScripted(0))

	rec := doChat(t, h, `{"userId":"u1","message":"hello"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(HeaderTraceID))

	var resp struct {
		Text  string `json:"text"`
		Trace []struct {
			Step   string `json:"step"`
			Reason string `json:"reason"`
		} `json:"trace"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
			TotalTokens      int `json:"total_tokens"`
		} `json:"usage"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, `You said: "hello"`, resp.Text)
	require.Len(t, resp.Trace, 2)
	assert.Equal(t, "openai_model_called", resp.Trace[0].Step)
	assert.Equal(t, "assistant_response_generated", resp.Trace[1].Step)
	assert.Equal(t, resp.Usage.PromptTokens+resp.Usage.CompletionTokens, resp.Usage.TotalTokens)
}

func TestChat_ValidationFailureBody(t *testing.T) {
	want := `{"text":"Please provide both 'userId' and 'message' in your request.","trace":[{"step":"input_validation_failed","reason":"Missing userId or message"}],"usage":{"prompt_tokens":0,"completion_tokens":0,"total_tokens":0}}`
	for _, body := range []string{`{"message":"hi"}`, `{"userId":"u1"}`, `{"userId":"","message":""}`, `not json`} {
		h := newTestHandler(t, llm.NewScripted(0))
		rec := doChat(t, h, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.JSONEq(t, want, rec.Body.String(), body)
	}
}

func TestChat_CompletionFailureIsOK(t *testing.T) {
	h := newTestHandler(t, &llm.ScriptedClient{FailAlways: true})

	rec := doChat(t, h, `{"userId":"u1","message":"hello"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp conversation.TurnResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Text, "Simulated completion failure")
	assert.Equal(t, conversation.Usage{}, resp.Usage)
	require.Len(t, resp.Trace, 1)
	assert.Equal(t, "openai_api_failure", resp.Trace[0].Step)
	assert.Equal(t, "Simulated completion failure", resp.Trace[0].Error)
}

func TestStatsAndHealth(t *testing.T) {
	h := newTestHandler(t, llm.NewScripted(0))
	doChat(t, h, `{"userId":"u1","message":"hello"}`)

	e := echo.New()
	rec := httptest.NewRecorder()
	require.NoError(t, h.Stats(e.NewContext(httptest.NewRequest(http.MethodGet, "/v1/stats", nil), rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"sessions":1,"messages":3}`, rec.Body.String())

	rec = httptest.NewRecorder()
	require.NoError(t, h.Health(e.NewContext(httptest.NewRequest(http.MethodGet, "/health", nil), rec)))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNewServer_RoutesChat(t *testing.T) {
	rec := trace.NewRecorder(nil, log.New(io.Discard, "", 0))
	srv := NewServer(conversation.New(session.NewStore(), llm.NewScripted(0), rec, time.Second))

	req := httptest.NewRequest(http.MethodPost, "/v1/chat", strings.NewReader(`{"userId":"u1","message":"hello"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
