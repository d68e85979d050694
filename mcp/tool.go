// Package mcp provides MCP (Model Context Protocol) integration for stepflow.
//
// MCP is a protocol that enables AI assistants to access external tools and data.
// This package provides bidirectional integration:
//
//   - Server: Expose a [workflow.Registry] as an MCP server. Every registered
//     workflow becomes a tool taking {"input": ...}.
//   - Client: Connect to such a server through [Remote] and use its workflows
//     as steps of a local pipeline.
//
// # Exposing Workflows as an MCP Server
//
//	registry := workflow.NewRegistry()
//	registry.Register(workflow.NewRunner(digest))
//
//	// Serve over stdio (for subprocess-based MCP clients)
//	if err := mcp.ServeStdio(registry); err != nil {
//	    log.Fatal(err)
//	}
//
// # Consuming Remote Workflows
//
//	remote, err := mcp.NewRemote(ctx, "./stepflow", nil, "mcp")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer remote.Close()
//
//	pipeline := workflow.Then(prepare, workflow.Typed[Input, string](remote.Step("digest")))
package mcp

import (
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/spetersoncode/stepflow"
	"github.com/spetersoncode/stepflow/workflow"
)

// inputSchema is the argument schema shared by all workflow tools.
var inputSchema = json.RawMessage(`{"type":"object","properties":{"input":{"description":"Workflow input as JSON"}}}`)

// ToolOutput is the structured content of a workflow tool result.
type ToolOutput struct {
	RunID      string                   `json:"run_id"`
	Output     any                      `json:"output,omitempty"`
	Metrics    stepflow.Metrics         `json:"metrics"`
	Checkpoint *workflow.CheckpointInfo `json:"checkpoint,omitempty"`
}

// ToMCPTool describes the workflow called name as an MCP tool.
func ToMCPTool(name, description string) mcp.Tool {
	if description == "" {
		description = "Run the " + name + " workflow"
	}
	return mcp.NewToolWithRawSchema(name, description, inputSchema)
}

// ToMCPCallToolResult converts a run outcome to an MCP tool result.
// Failures become error results. A checkpoint is reported as structured
// content carrying the checkpoint, not as an error.
func ToMCPCallToolResult(res *workflow.RunResult, err error) *mcp.CallToolResult {
	if err != nil && !stepflow.IsCheckpoint(err) {
		return mcp.NewToolResultError(err.Error())
	}
	if res == nil {
		return mcp.NewToolResultError("workflow produced no result")
	}
	return mcp.NewToolResultStructuredOnly(ToolOutput{
		RunID:      res.RunID,
		Output:     res.Output,
		Metrics:    res.Metrics,
		Checkpoint: res.Checkpoint,
	})
}

// FromMCPCallToolResult decodes a workflow tool result. Error results become
// execution errors; results carrying a checkpoint return the output together
// with a checkpoint error.
func FromMCPCallToolResult(result *mcp.CallToolResult) (*ToolOutput, error) {
	if result == nil {
		return nil, stepflow.NewExecutionError("empty tool result", nil)
	}
	if result.IsError {
		return nil, stepflow.NewExecutionError("remote workflow failed: "+resultText(result), nil)
	}

	var out ToolOutput
	if result.StructuredContent != nil {
		data, err := json.Marshal(result.StructuredContent)
		if err != nil {
			return nil, stepflow.NewJSONError(err)
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, stepflow.NewJSONError(err)
		}
	} else if err := json.Unmarshal([]byte(resultText(result)), &out); err != nil {
		return nil, stepflow.NewJSONError(err)
	}

	if out.Checkpoint != nil {
		return &out, stepflow.NewCheckpointError(out.Checkpoint.StepName, out.Checkpoint.Data)
	}
	return &out, nil
}

// resultText concatenates the text content of result.
func resultText(result *mcp.CallToolResult) string {
	var parts []string
	for _, c := range result.Content {
		switch content := c.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}
