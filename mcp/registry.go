package mcp

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spetersoncode/codison"
	"github.com/spetersoncode/codison/tool"
)

// RemoteRegistry holds the tools offered by one MCP server and proxies
// calls to it.
//
// RemoteRegistry is safe for concurrent use. The tool list is cached and
// can be refreshed with Refresh.
type RemoteRegistry struct {
	client *client.Client
	mu     sync.RWMutex
	tools  map[string]codison.ToolSpec
}

// NewRemoteRegistry launches command as a stdio MCP server and lists its tools.
func NewRemoteRegistry(ctx context.Context, command string, env []string, args ...string) (*RemoteRegistry, error) {
	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}
	return newRemoteRegistry(ctx, c)
}

// NewRemoteRegistryFromClient wraps an existing, not yet started client.
func NewRemoteRegistryFromClient(ctx context.Context, c *client.Client) (*RemoteRegistry, error) {
	return newRemoteRegistry(ctx, c)
}

func newRemoteRegistry(ctx context.Context, c *client.Client) (*RemoteRegistry, error) {
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	_, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    "codison",
				Version: "1.0.0",
			},
		},
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize MCP session: %w", err)
	}

	r := &RemoteRegistry{
		client: c,
		tools:  make(map[string]codison.ToolSpec),
	}
	if err := r.Refresh(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}
	return r, nil
}

// Close closes the connection to the MCP server.
func (r *RemoteRegistry) Close() error {
	return r.client.Close()
}

// Refresh fetches the current tool list from the server.
func (r *RemoteRegistry) Refresh(ctx context.Context) error {
	result, err := r.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = make(map[string]codison.ToolSpec, len(result.Tools))
	for _, spec := range FromMCPTools(result.Tools) {
		r.tools[spec.Name] = spec
	}
	return nil
}

// Specs returns the remote tools sorted by name.
func (r *RemoteRegistry) Specs() []codison.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	specs := make([]codison.ToolSpec, 0, len(r.tools))
	for _, spec := range r.tools {
		specs = append(specs, spec)
	}
	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	return specs
}

// Has reports whether the server offers a tool named name.
func (r *RemoteRegistry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Len returns the number of remote tools.
func (r *RemoteRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Execute calls a tool on the server. A result the server flags as an
// error is returned as an error.
func (r *RemoteRegistry) Execute(ctx context.Context, call codison.ToolCallRequest) (string, error) {
	result, err := r.client.CallTool(ctx, ToMCPCallToolRequest(call))
	if err != nil {
		return "", err
	}
	return ResultText(result)
}

// Registrations returns one tool.Registration per remote tool. Each handler
// forwards the call to the server.
func (r *RemoteRegistry) Registrations() []tool.Registration {
	specs := r.Specs()
	regs := make([]tool.Registration, len(specs))
	for i, spec := range specs {
		regs[i] = tool.Registration{Spec: spec, Handler: r.Execute}
	}
	return regs
}

// Attach registers every remote tool in reg. It fails on the first name
// that is already registered.
func (r *RemoteRegistry) Attach(reg *tool.Registry) error {
	for _, rr := range r.Registrations() {
		if err := reg.Register(rr.Spec, rr.Handler); err != nil {
			return err
		}
	}
	return nil
}
