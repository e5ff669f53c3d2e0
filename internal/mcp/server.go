// Package mcp exposes the shopping agent as MCP tools. Each MCP session maps
// to one agent conversation; stdio clients share DefaultConversation.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/agent"
	"github.com/AnthonyGillesRudolfo/ucp-shopping-agent/internal/ucp"
)

const (
	ServerName          = "ucp-shopping-agent"
	DefaultConversation = "stdio"
)

type handlerFunc func(context.Context, *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error)

type Server struct {
	server   *mcpsdk.Server
	registry *agent.Registry
	logger   *zap.Logger
	handlers map[string]handlerFunc
}

func NewServer(registry *agent.Registry, version string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if version == "" {
		version = "dev"
	}
	s := &Server{
		server: mcpsdk.NewServer(&mcpsdk.Implementation{
			Name:    ServerName,
			Version: version,
		}, nil),
		registry: registry,
		logger:   logger.Named("mcp"),
		handlers: map[string]handlerFunc{},
	}
	s.registerTools()
	return s
}

// Run serves over stdio until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("serving MCP over stdio")
	return s.server.Run(ctx, &mcpsdk.StdioTransport{})
}

// CallTool invokes a registered handler directly, bypassing any transport.
func (s *Server) CallTool(ctx context.Context, name string, args any) (*mcpsdk.CallToolResult, error) {
	h, ok := s.handlers[name]
	if !ok {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal arguments: %w", err)
	}
	return h(ctx, &mcpsdk.CallToolRequest{
		Params: &mcpsdk.CallToolParamsRaw{Name: name, Arguments: raw},
	})
}

func (s *Server) addTool(name, description string, props map[string]*jsonschema.Schema, required []string, h handlerFunc) {
	if props == nil {
		props = map[string]*jsonschema.Schema{}
	}
	wrapped := func(ctx context.Context, req *mcpsdk.CallToolRequest) (*mcpsdk.CallToolResult, error) {
		res, err := h(ctx, req)
		if err != nil {
			s.logger.Warn("tool failed", zap.String("tool", name), zap.String("kind", string(ucp.KindOf(err))), zap.Error(err))
			return errorResult(name, err)
		}
		return res, nil
	}
	s.handlers[name] = wrapped
	s.server.AddTool(&mcpsdk.Tool{
		Name:        name,
		Description: description,
		InputSchema: &jsonschema.Schema{
			Type:       "object",
			Properties: props,
			Required:   required,
		},
	}, wrapped)
}

// conversation resolves the agent session behind a request.
func (s *Server) conversation(req *mcpsdk.CallToolRequest) (*agent.Session, error) {
	id := DefaultConversation
	if req != nil && req.Session != nil {
		if sid := req.Session.ID(); sid != "" {
			id = sid
		}
	}
	return s.registry.Get(id)
}

func decodeArgs(tool string, req *mcpsdk.CallToolRequest, out any) error {
	if req == nil || req.Params == nil || len(req.Params.Arguments) == 0 {
		return nil
	}
	if err := json.Unmarshal(req.Params.Arguments, out); err != nil {
		return ucp.Validation(tool, "invalid arguments: %v", err)
	}
	return nil
}
