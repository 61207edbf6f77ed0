// Package mcpserver exposes the conversation service as MCP tools.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"ai-concierge/internal/conversation"
	"ai-concierge/internal/trace"
)

// ChatParams are the arguments of the chat tool.
type ChatParams struct {
	UserID  string `json:"user_id" mcp:"identifier of the user whose conversation continues"`
	Message string `json:"message" mcp:"the user's message"`
}

// StatsParams are the arguments of the session_stats tool.
type StatsParams struct{}

type Server struct {
	orchestrator *conversation.Orchestrator
}

func New(orchestrator *conversation.Orchestrator) *Server {
	return &Server{orchestrator: orchestrator}
}

// MCPServer builds the MCP server with all tools registered.
func (s *Server) MCPServer() *mcp.Server {
	server := mcp.NewServer(&mcp.Implementation{
		Name:    "ai-concierge",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "chat",
		Description: "Sends a message in the user's conversation and returns the assistant reply with trace and token usage",
	}, s.Chat)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "session_stats",
		Description: "Reports how many conversations and messages the service currently holds",
	}, s.SessionStats)

	return server
}

// Run serves the tools over stdin/stdout until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	log.Printf("starting MCP server on stdin/stdout")
	return s.MCPServer().Run(ctx, mcp.NewStdioTransport())
}

// Chat implements the chat tool. The first content block is the reply text,
// the second the full JSON turn result.
func (s *Server) Chat(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[ChatParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments
	traceID := trace.NewTraceID()

	result, err := s.orchestrator.HandleTurn(ctx, args.UserID, args.Message, traceID)
	var verr *conversation.ValidationError
	isError := errors.As(err, &verr)

	raw, mErr := json.Marshal(result)
	if mErr != nil {
		return nil, fmt.Errorf("encode turn result: %w", mErr)
	}
	return &mcp.CallToolResultFor[any]{
		IsError: isError,
		Content: []mcp.Content{
			&mcp.TextContent{Text: result.Text},
			&mcp.TextContent{Text: string(raw)},
		},
	}, nil
}

// SessionStats implements the session_stats tool.
func (s *Server) SessionStats(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[StatsParams]) (*mcp.CallToolResultFor[any], error) {
	stats := s.orchestrator.Store().Stats()
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%d conversations, %d messages", stats.Sessions, stats.Messages)},
		},
	}, nil
}
