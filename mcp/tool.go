// Package mcp bridges a tool.Registry and the Model Context Protocol.
//
// The bridge works in both directions:
//
//   - NewServer exposes a registry to MCP clients, so an editor or another
//     agent can call codison's builtin tools over stdio.
//   - RemoteRegistry connects to an MCP server and imports its tools into a
//     registry, where the agent calls them like local ones.
//
// # Serving Tools
//
//	reg := tool.NewRegistry().Add(tool.Defaults(tool.Config{WorkingDir: dir})...)
//	if err := mcp.ServeStdio(reg); err != nil {
//	    log.Fatal(err)
//	}
//
// # Importing Remote Tools
//
//	remote, err := mcp.NewRemoteRegistry(ctx, "npx", nil, "-y", "@modelcontextprotocol/server-filesystem", dir)
//	if err != nil {
//	    return err
//	}
//	defer remote.Close()
//
//	if err := remote.Attach(reg); err != nil {
//	    return err
//	}
package mcp

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/spetersoncode/codison"
)

// ToMCPTool converts a ToolSpec to an MCP Tool. The spec's JSON Schema is
// used as the raw input schema.
func ToMCPTool(spec codison.ToolSpec) mcp.Tool {
	return mcp.NewToolWithRawSchema(spec.Name, spec.Description, spec.Parameters)
}

// FromMCPTool converts an MCP Tool to a ToolSpec, preferring its raw schema.
func FromMCPTool(t mcp.Tool) codison.ToolSpec {
	schema := t.RawInputSchema
	if len(schema) == 0 {
		if data, err := json.Marshal(t.InputSchema); err == nil {
			schema = data
		}
	}
	return codison.ToolSpec{
		Name:        t.Name,
		Description: t.Description,
		Parameters:  schema,
	}
}

// FromMCPTools converts a slice of MCP Tools.
func FromMCPTools(tools []mcp.Tool) []codison.ToolSpec {
	specs := make([]codison.ToolSpec, len(tools))
	for i, t := range tools {
		specs[i] = FromMCPTool(t)
	}
	return specs
}

// ToMCPCallToolRequest converts a tool call request to an MCP CallToolRequest.
func ToMCPCallToolRequest(call codison.ToolCallRequest) mcp.CallToolRequest {
	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	return mcp.CallToolRequest{
		Params: mcp.CallToolParams{
			Name:      call.Name,
			Arguments: args,
		},
	}
}

// ResultText joins the text of an MCP CallToolResult. Non-text content and
// structured content are included as JSON. A result flagged IsError is
// returned as an error carrying the same text.
func ResultText(result *mcp.CallToolResult) (string, error) {
	if result == nil {
		return "", errors.New("mcp: empty tool result")
	}

	var parts []string
	for _, c := range result.Content {
		switch content := c.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		default:
			if data, err := json.Marshal(content); err == nil {
				parts = append(parts, string(data))
			}
		}
	}
	if result.StructuredContent != nil {
		if data, err := json.Marshal(result.StructuredContent); err == nil {
			parts = append(parts, string(data))
		}
	}

	text := strings.Join(parts, "\n")
	if result.IsError {
		return "", errors.New(text)
	}
	return text, nil
}

// argsMap normalizes MCP call arguments into an argument map.
func argsMap(raw any) (map[string]any, error) {
	switch v := raw.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		return v, nil
	}
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	var args map[string]any
	if err := json.Unmarshal(data, &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = map[string]any{}
	}
	return args, nil
}
