package mcp

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
	"github.com/spetersoncode/codison"
	"github.com/spetersoncode/codison/tool"
)

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	name    string
	version string
	logger  zerolog.Logger
}

// WithName sets the server name reported to MCP clients.
func WithName(name string) ServerOption {
	return func(c *serverConfig) {
		c.name = name
	}
}

// WithVersion sets the server version reported to MCP clients.
func WithVersion(version string) ServerOption {
	return func(c *serverConfig) {
		c.version = version
	}
}

// WithLogger sets the logger used for tool calls.
func WithLogger(l zerolog.Logger) ServerOption {
	return func(c *serverConfig) {
		c.logger = l
	}
}

// NewServer creates an MCP server exposing every tool in registry.
// Calls go through Registry.Execute, so arguments are validated against the
// tool's schema before the handler runs.
func NewServer(registry *tool.Registry, opts ...ServerOption) *server.MCPServer {
	cfg := &serverConfig{
		name:    "codison",
		version: "1.0.0",
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := server.NewMCPServer(
		cfg.name,
		cfg.version,
		server.WithToolCapabilities(true),
	)
	for _, spec := range registry.Specs() {
		s.AddTool(ToMCPTool(spec), newToolHandler(registry, spec.Name, cfg.logger))
	}
	return s
}

func newToolHandler(registry *tool.Registry, name string, logger zerolog.Logger) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args, err := argsMap(req.Params.Arguments)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid arguments: %v", err)), nil
		}

		logger.Debug().Str("tool", name).Msg("mcp tool call")
		out, err := registry.Execute(ctx, codison.ToolCallRequest{Name: name, Args: args})
		if err != nil {
			logger.Warn().Err(err).Str("tool", name).Msg("mcp tool call failed")
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(out), nil
	}
}

// ServeStdio serves registry over stdin/stdout until the input closes.
func ServeStdio(registry *tool.Registry, opts ...ServerOption) error {
	return server.ServeStdio(NewServer(registry, opts...))
}
