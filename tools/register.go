package tools

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Registry routes tool calls to the executor that registered the tool name.
type Registry struct {
	mu        sync.RWMutex
	executors map[string]Executor
}

// NewRegistry creates a registry holding every tool of the given executors.
func NewRegistry(executors ...Executor) (*Registry, error) {
	r := &Registry{executors: make(map[string]Executor)}
	for _, exec := range executors {
		if err := r.Register(exec); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds every tool listed by exec. A tool name can only be registered once.
func (r *Registry) Register(exec Executor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tools := exec.ListTools()
	for _, tool := range tools {
		if _, exists := r.executors[tool.Name]; exists {
			return fmt.Errorf("tool %q already registered", tool.Name)
		}
	}
	for _, tool := range tools {
		r.executors[tool.Name] = exec
	}
	return nil
}

// Execute dispatches call to the executor owning call.Name.
func (r *Registry) Execute(ctx context.Context, call ToolCall) (ToolResult, error) {
	r.mu.RLock()
	exec, ok := r.executors[call.Name]
	r.mu.RUnlock()

	if !ok {
		return ToolResult{
			CallID: call.ID,
			Error:  fmt.Sprintf("unknown tool: %s", call.Name),
		}, fmt.Errorf("unknown tool: %s", call.Name)
	}
	return exec.Execute(ctx, call)
}

// ListTools returns all registered tool definitions sorted by name.
func (r *Registry) ListTools() []ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[Executor]bool)
	var defs []ToolDefinition
	for _, exec := range r.executors {
		if seen[exec] {
			continue
		}
		seen[exec] = true
		defs = append(defs, exec.ListTools()...)
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}
