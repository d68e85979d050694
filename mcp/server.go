package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/spetersoncode/stepflow/workflow"
)

// ServerOption configures a Server.
type ServerOption func(*serverConfig)

type serverConfig struct {
	name         string
	version      string
	descriptions map[string]string
	runOpts      []workflow.Option
	onResult     func(context.Context, *workflow.RunResult)
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

// WithDescription sets the tool description of the named workflow.
func WithDescription(workflowName, description string) ServerOption {
	return func(c *serverConfig) {
		c.descriptions[workflowName] = description
	}
}

// WithRunOptions passes options (logger, listeners, tracer provider) to
// every run started by a tool call.
func WithRunOptions(opts ...workflow.Option) ServerOption {
	return func(c *serverConfig) {
		c.runOpts = append(c.runOpts, opts...)
	}
}

// WithResultHook registers fn to receive the result of every run that got
// past input decoding, e.g. to export it to a sink.
func WithResultHook(fn func(context.Context, *workflow.RunResult)) ServerOption {
	return func(c *serverConfig) {
		c.onResult = fn
	}
}

// NewServer creates an MCP server that exposes every workflow in registry as
// a tool. Workflows registered after the call are not exposed.
//
// Example:
//
//	registry := workflow.NewRegistry()
//	registry.Register(workflow.NewRunner(digest))
//
//	mcpServer := mcp.NewServer(registry,
//	    mcp.WithName("my-workflows"),
//	    mcp.WithVersion("1.0.0"),
//	)
//
//	server.ServeStdio(mcpServer)
func NewServer(registry *workflow.Registry, opts ...ServerOption) *server.MCPServer {
	cfg := &serverConfig{
		name:         "stepflow-mcp-server",
		version:      "1.0.0",
		descriptions: make(map[string]string),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	s := server.NewMCPServer(
		cfg.name,
		cfg.version,
		server.WithToolCapabilities(true),
	)

	for _, name := range registry.Names() {
		runner := registry.Get(name)
		if runner == nil {
			continue
		}
		s.AddTool(ToMCPTool(name, cfg.descriptions[name]), createMCPHandler(runner, cfg))
	}

	return s
}

// createMCPHandler wraps a workflow runner as an MCP tool handler.
func createMCPHandler(runner workflow.Runner, cfg *serverConfig) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var input json.RawMessage
		if v, ok := req.GetArguments()["input"]; ok {
			data, err := json.Marshal(v)
			if err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("failed to marshal input: %v", err)), nil
			}
			input = data
		}

		res, err := runner.Run(ctx, input, cfg.runOpts...)
		if res != nil && cfg.onResult != nil {
			cfg.onResult(ctx, res)
		}
		return ToMCPCallToolResult(res, err), nil
	}
}

// ServeStdio starts an MCP server that communicates over stdin/stdout.
// This is the standard transport for MCP servers invoked as subprocesses.
//
// Example:
//
//	if err := mcp.ServeStdio(registry); err != nil {
//	    log.Fatal(err)
//	}
func ServeStdio(registry *workflow.Registry, opts ...ServerOption) error {
	s := NewServer(registry, opts...)
	return server.ServeStdio(s)
}
