package mcp

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/workflow"
)

// Remote provides access to the workflows exposed by an MCP server.
//
// Remote is safe for concurrent use. The tool list is cached locally
// and can be refreshed with [Remote.Refresh].
type Remote struct {
	client *client.Client
	mu     sync.RWMutex
	tools  map[string]mcp.Tool
}

// NewRemote creates a Remote connected to an MCP server via stdio.
// The command is the path to the MCP server executable, and args are passed to it.
//
// Example:
//
//	remote, err := mcp.NewRemote(ctx, "./stepflow", nil, "mcp")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer remote.Close()
func NewRemote(ctx context.Context, command string, env []string, args ...string) (*Remote, error) {
	c, err := client.NewStdioMCPClient(command, env, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP client: %w", err)
	}

	return NewRemoteFromClient(ctx, c)
}

// NewRemoteSSE creates a Remote connected to an MCP server via SSE.
func NewRemoteSSE(ctx context.Context, baseURL string) (*Remote, error) {
	c, err := client.NewSSEMCPClient(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create SSE MCP client: %w", err)
	}

	return NewRemoteFromClient(ctx, c)
}

// NewRemoteFromClient creates a Remote from an existing MCP client.
// This function starts and initializes the client and fetches its tools.
func NewRemoteFromClient(ctx context.Context, c *client.Client) (*Remote, error) {
	if err := c.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start MCP client: %w", err)
	}

	_, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			Capabilities:    mcp.ClientCapabilities{},
			ClientInfo: mcp.Implementation{
				Name:    "stepflow-mcp-client",
				Version: "1.0.0",
			},
		},
	})
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to initialize MCP session: %w", err)
	}

	r := &Remote{
		client: c,
		tools:  make(map[string]mcp.Tool),
	}

	if err := r.Refresh(ctx); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to list tools: %w", err)
	}

	return r, nil
}

// Close closes the connection to the MCP server.
func (r *Remote) Close() error {
	return r.client.Close()
}

// Refresh fetches the current list of workflows from the MCP server.
func (r *Remote) Refresh(ctx context.Context) error {
	result, err := r.client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.tools = make(map[string]mcp.Tool, len(result.Tools))
	for _, t := range result.Tools {
		r.tools[t.Name] = t
	}

	return nil
}

// Description returns the tool description of the named workflow.
func (r *Remote) Description(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.tools[name]
	return t.Description, ok
}

// Names returns the sorted names of all available workflows.
func (r *Remote) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of available workflows.
func (r *Remote) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Has returns true if the server exposes a workflow with the given name.
func (r *Remote) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Call runs the named workflow on the server. A checkpoint reached remotely
// is returned as a checkpoint error alongside the decoded output.
func (r *Remote) Call(ctx context.Context, name string, input any) (*ToolOutput, error) {
	if !r.Has(name) {
		return nil, fmt.Errorf("%w: %s", workflow.ErrWorkflowNotFound, name)
	}

	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = map[string]any{"input": input}

	result, err := r.client.CallTool(ctx, req)
	if err != nil {
		return nil, stepflow.NewExecutionError("calling remote workflow "+name, err)
	}
	return FromMCPCallToolResult(result)
}

// Step returns a step that runs the named remote workflow. Token usage
// reported by the server is added to the local execution context.
func (r *Remote) Step(name string) workflow.Dynamic {
	return &remoteStep{remote: r, name: name}
}

type remoteStep struct {
	remote *Remote
	name   string
}

func (s *remoteStep) Name() string { return s.name }

func (s *remoteStep) Run(ctx context.Context, ec *stepflow.ExecutionContext, input any) (any, error) {
	out, err := s.remote.Call(ctx, s.name, input)
	if out != nil {
		ec.RecordTokens(out.Metrics.PromptTokens, out.Metrics.CompletionTokens)
	}
	if err != nil {
		return nil, err
	}
	return out.Output, nil
}
