package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry(t *testing.T) {
	a := &mockExecutor{tools: []ToolDefinition{{Name: "b_tool"}, {Name: "a_tool"}}}
	b := &mockExecutor{
		tools: []ToolDefinition{{Name: "c_tool"}},
		executeFunc: func(ctx context.Context, call ToolCall) (ToolResult, error) {
			return ToolResult{CallID: call.ID, Content: "from b"}, nil
		},
	}

	reg, err := NewRegistry(a, b)
	require.NoError(t, err)

	var names []string
	for _, def := range reg.ListTools() {
		names = append(names, def.Name)
	}
	assert.Equal(t, []string{"a_tool", "b_tool", "c_tool"}, names)

	res, err := reg.Execute(context.Background(), ToolCall{ID: "1", Name: "c_tool"})
	require.NoError(t, err)
	assert.Equal(t, "from b", res.Content)

	res, err = reg.Execute(context.Background(), ToolCall{ID: "2", Name: "a_tool"})
	require.NoError(t, err)
	assert.Equal(t, "ok", res.Content)

	res, err = reg.Execute(context.Background(), ToolCall{ID: "3", Name: "missing"})
	assert.Error(t, err)
	assert.Contains(t, res.Error, "unknown tool")
}

func TestRegistry_DuplicateTool(t *testing.T) {
	a := &mockExecutor{tools: []ToolDefinition{{Name: "same"}}}
	b := &mockExecutor{tools: []ToolDefinition{{Name: "same"}}}

	_, err := NewRegistry(a, b)
	assert.Error(t, err)
}
