// Package mcp exposes the conversation engine as an MCP server, so agent
// tooling can drive conversations and review branch suggestions over the
// Model Context Protocol.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/VinayDangodra28/botbuddy"
	"github.com/VinayDangodra28/botbuddy/internal/controller"
	"github.com/VinayDangodra28/botbuddy/internal/flowgraph"
	"github.com/VinayDangodra28/botbuddy/pkg/domain"
	"github.com/VinayDangodra28/botbuddy/pkg/session"
)

// Server wraps the engine and exposes it over MCP.
type Server struct {
	graph     *flowgraph.Store
	ctrl      *controller.Controller
	sessions  *session.Manager
	mcpServer *server.MCPServer
}

// NewServer creates an MCP server over the engine's collaborators.
func NewServer(graph *flowgraph.Store, ctrl *controller.Controller, sessions *session.Manager) *Server {
	s := &Server{
		graph:     graph,
		ctrl:      ctrl,
		sessions:  sessions,
		mcpServer: server.NewMCPServer("botbuddy-mcp", strings.TrimSpace(botbuddy.Version)),
	}
	s.registerTools()
	s.registerResources()
	return s
}

// ServeStdio starts the server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}

// ServeSSE starts the server on the given port using SSE, shutting down
// gracefully when the context is canceled.
func (s *Server) ServeSSE(ctx context.Context, port int) error {
	addr := fmt.Sprintf(":%d", port)
	baseURL := fmt.Sprintf("http://localhost:%d", port)

	sseServer := server.NewSSEServer(s.mcpServer, server.WithBaseURL(baseURL))

	mux := http.NewServeMux()
	mux.Handle("/sse", corsMiddleware(sseServer.SSEHandler()))
	mux.Handle("/message", corsMiddleware(sseServer.MessageHandler()))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info("MCP server listening (SSE)", "address", addr)
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		return nil
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) registerTools() {
	// TOOL: converse
	converseTool := mcp.NewTool("converse",
		mcp.WithDescription("Send a customer utterance to a conversation session and get the agent's reply. Creates the session if it does not exist."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation session ID")),
		mcp.WithString("utterance", mcp.Required(), mcp.Description("The customer's message")),
		mcp.WithOutputSchema[domain.TurnResult](),
	)
	s.mcpServer.AddTool(converseTool, mcp.NewStructuredToolHandler(s.handleConverse))

	// TOOL: open_conversation
	openTool := mcp.NewTool("open_conversation",
		mcp.WithDescription("Open a conversation session and get the agent's opening script."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation session ID")),
		mcp.WithOutputSchema[domain.TurnResult](),
	)
	s.mcpServer.AddTool(openTool, mcp.NewStructuredToolHandler(s.handleOpen))

	// TOOL: get_session
	s.mcpServer.AddTool(mcp.NewTool("get_session",
		mcp.WithDescription("Inspect the state of a conversation session."),
		mcp.WithString("session_id", mcp.Required(), mcp.Description("Conversation session ID")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		sessionID := request.GetString("session_id", "")
		state, err := s.sessions.Load(ctx, sessionID)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("load failed: %v", err)), nil
		}
		jsonBytes, _ := json.Marshal(state)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	// TOOL: get_graph
	s.mcpServer.AddTool(mcp.NewTool("get_graph",
		mcp.WithDescription("Get the full conversation flow definition for introspection."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, _ := json.Marshal(s.graph.Document())
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	// TOOL: audit_graph
	s.mcpServer.AddTool(mcp.NewTool("audit_graph",
		mcp.WithDescription("Validate the flow graph and report unreachable branches, dead ends and cycles."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		report := map[string]any{
			"problems": s.graph.ValidateAll(),
			"audit":    s.graph.Audit(),
		}
		jsonBytes, _ := json.Marshal(report)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	// TOOL: list_suggestions
	s.mcpServer.AddTool(mcp.NewTool("list_suggestions",
		mcp.WithDescription("List pending flow improvement suggestions awaiting review."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, _ := json.Marshal(s.graph.PendingOperations())
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	// TOOL: preview_suggestions
	s.mcpServer.AddTool(mcp.NewTool("preview_suggestions",
		mcp.WithDescription("Preview the effect of applying the pending suggestions without committing them."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jsonBytes, _ := json.Marshal(s.graph.PreviewEffect())
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	// TOOL: apply_suggestions
	s.mcpServer.AddTool(mcp.NewTool("apply_suggestions",
		mcp.WithDescription("Apply pending suggestions to the live flow graph. Omit indices to apply all."),
		mcp.WithString("indices", mcp.Description("JSON array of log indices to apply (optional)")),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var indices []int
		if raw := request.GetString("indices", ""); raw != "" {
			if err := json.Unmarshal([]byte(raw), &indices); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid indices: %v", err)), nil
			}
		}
		result := s.graph.ApplySuggestions(indices)
		jsonBytes, _ := json.Marshal(result)
		return mcp.NewToolResultText(string(jsonBytes)), nil
	})

	// TOOL: clear_suggestions
	s.mcpServer.AddTool(mcp.NewTool("clear_suggestions",
		mcp.WithDescription("Discard all pending suggestions without applying them."),
	), func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		s.graph.ClearSuggestions()
		return mcp.NewToolResultText(`{"cleared":true}`), nil
	})
}

// Handler methods for structured tools

func (s *Server) handleConverse(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (domain.TurnResult, error) {
	sessionID, _ := args["session_id"].(string)
	utterance, _ := args["utterance"].(string)
	if sessionID == "" {
		return domain.TurnResult{}, fmt.Errorf("session_id is required")
	}
	if utterance == "" {
		return domain.TurnResult{}, fmt.Errorf("utterance is required")
	}

	var result *domain.TurnResult
	err := s.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		state, err := s.sessions.Store().Load(ctx, sessionID)
		if err == domain.ErrSessionNotFound {
			state = domain.NewSession(sessionID, s.graph.EntryBranch())
		} else if err != nil {
			return err
		}
		result = s.ctrl.ProcessTurn(ctx, utterance, state)
		return s.sessions.Store().Save(ctx, sessionID, state)
	})
	if err != nil {
		return domain.TurnResult{}, fmt.Errorf("turn failed: %w", err)
	}
	return *result, nil
}

func (s *Server) handleOpen(ctx context.Context, request mcp.CallToolRequest, args map[string]any) (domain.TurnResult, error) {
	sessionID, _ := args["session_id"].(string)
	if sessionID == "" {
		return domain.TurnResult{}, fmt.Errorf("session_id is required")
	}

	var result *domain.TurnResult
	err := s.sessions.WithLock(ctx, sessionID, func(ctx context.Context) error {
		state, err := s.sessions.Store().Load(ctx, sessionID)
		if err == domain.ErrSessionNotFound {
			state = domain.NewSession(sessionID, s.graph.EntryBranch())
		} else if err != nil {
			return err
		}
		result = s.ctrl.Open(state)
		return s.sessions.Store().Save(ctx, sessionID, state)
	})
	if err != nil {
		return domain.TurnResult{}, fmt.Errorf("open failed: %w", err)
	}
	return *result, nil
}

func (s *Server) registerResources() {
	// EXPOSE: botbuddy://graph
	s.mcpServer.AddResource(mcp.NewResource("botbuddy://graph", "Current Flow Definition",
		mcp.WithMIMEType("application/json"),
	), func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		jsonBytes, err := json.Marshal(s.graph.Document())
		if err != nil {
			return nil, fmt.Errorf("failed to marshal flow document: %w", err)
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{
				URI:      "botbuddy://graph",
				MIMEType: "application/json",
				Text:     string(jsonBytes),
			},
		}, nil
	})
}
