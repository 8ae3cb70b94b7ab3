// Package tools exposes plan operations as named tool calls with JSON-schema
// parameters and human-readable text results.
package tools

import "context"

// ToolDefinition describes a tool and its JSON-schema parameters.
type ToolDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolCall is a request to run one tool.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolResult is the outcome of a tool call. Domain failures are reported in
// Error with a nil Go error; Warnings accompany successful results.
type ToolResult struct {
	CallID   string   `json:"call_id"`
	Content  string   `json:"content,omitempty"`
	Error    string   `json:"error,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// IsError reports whether the call failed.
func (r ToolResult) IsError() bool {
	return r.Error != ""
}

// Executor runs tool calls.
type Executor interface {
	Execute(ctx context.Context, call ToolCall) (ToolResult, error)
	ListTools() []ToolDefinition
}
