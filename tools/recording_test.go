package tools

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

// mockExecutor is a simple mock for testing the RecordingExecutor wrapper.
type mockExecutor struct {
	executeFunc func(ctx context.Context, call ToolCall) (ToolResult, error)
	tools       []ToolDefinition
}

func (m *mockExecutor) Execute(ctx context.Context, call ToolCall) (ToolResult, error) {
	if m.executeFunc != nil {
		return m.executeFunc(ctx, call)
	}
	return ToolResult{CallID: call.ID, Content: "ok"}, nil
}

func (m *mockExecutor) ListTools() []ToolDefinition {
	return m.tools
}

// Verify RecordingExecutor implements Executor
var _ Executor = (*RecordingExecutor)(nil)

func TestRecordingExecutor_PassesThrough(t *testing.T) {
	inner := &mockExecutor{
		executeFunc: func(ctx context.Context, call ToolCall) (ToolResult, error) {
			return ToolResult{
				CallID:  call.ID,
				Content: "result content",
			}, nil
		},
		tools: []ToolDefinition{
			{Name: "test_tool", Description: "test", Parameters: map[string]any{"type": "object"}},
		},
	}

	recorder := NewRecordingExecutor(inner, nil, nil)

	call := ToolCall{
		ID:   "call-123",
		Name: "test_tool",
	}
	result, err := recorder.Execute(context.Background(), call)
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if result.CallID != "call-123" {
		t.Errorf("CallID = %q, want %q", result.CallID, "call-123")
	}
	if result.Content != "result content" {
		t.Errorf("Content = %q, want %q", result.Content, "result content")
	}

	tools := recorder.ListTools()
	if len(tools) != 1 {
		t.Fatalf("ListTools() returned %d tools, want 1", len(tools))
	}
	if tools[0].Name != "test_tool" {
		t.Errorf("Tool name = %q, want %q", tools[0].Name, "test_tool")
	}
}

func TestRecordingExecutor_AssignsCallID(t *testing.T) {
	var seen string
	inner := &mockExecutor{
		executeFunc: func(ctx context.Context, call ToolCall) (ToolResult, error) {
			seen = call.ID
			return ToolResult{Content: "ok"}, nil
		},
	}

	result, err := NewRecordingExecutor(inner, nil, nil).Execute(context.Background(), ToolCall{Name: "x"})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if seen == "" {
		t.Fatal("inner executor saw an empty call ID")
	}
	if result.CallID != seen {
		t.Errorf("CallID = %q, want %q", result.CallID, seen)
	}
}

func TestRecordingExecutor_ErrorPassesThrough(t *testing.T) {
	inner := &mockExecutor{
		executeFunc: func(ctx context.Context, call ToolCall) (ToolResult, error) {
			return ToolResult{
				CallID: call.ID,
				Error:  "tool error",
			}, fmt.Errorf("execution failed")
		},
	}

	recorder := NewRecordingExecutor(inner, nil, nil)

	result, err := recorder.Execute(context.Background(), ToolCall{ID: "call-err", Name: "failing_tool"})
	if err == nil {
		t.Error("Execute() should return error")
	}
	if result.Error != "tool error" {
		t.Errorf("Result.Error = %q, want %q", result.Error, "tool error")
	}
}

func TestRecordingExecutor_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)

	inner := &mockExecutor{
		executeFunc: func(ctx context.Context, call ToolCall) (ToolResult, error) {
			if call.Name == "bad" {
				return ToolResult{Error: "nope"}, nil
			}
			return ToolResult{Content: "ok", Warnings: []string{"w1", "w2"}}, nil
		},
	}
	recorder := NewRecordingExecutor(inner, metrics, nil)

	ctx := context.Background()
	for _, name := range []string{"good", "good", "bad"} {
		if _, err := recorder.Execute(ctx, ToolCall{Name: name}); err != nil {
			t.Fatalf("Execute(%s) error = %v", name, err)
		}
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}

	counts := map[string]float64{}
	var warnings float64
	for _, mf := range families {
		switch mf.GetName() {
		case "semplan_tools_calls_total":
			for _, m := range mf.GetMetric() {
				var tool, status string
				for _, lp := range m.GetLabel() {
					switch lp.GetName() {
					case "tool":
						tool = lp.GetValue()
					case "status":
						status = lp.GetValue()
					}
				}
				counts[tool+"/"+status] = m.GetCounter().GetValue()
			}
		case "semplan_tools_warnings_total":
			for _, m := range mf.GetMetric() {
				warnings += m.GetCounter().GetValue()
			}
		}
	}

	if counts["good/success"] != 2 {
		t.Errorf("good/success = %v, want 2", counts["good/success"])
	}
	if counts["bad/error"] != 1 {
		t.Errorf("bad/error = %v, want 1", counts["bad/error"])
	}
	if warnings != 4 {
		t.Errorf("warnings = %v, want 4", warnings)
	}
}

func TestTruncateJSON(t *testing.T) {
	tests := []struct {
		name   string
		input  map[string]any
		maxLen int
		want   string
	}{
		{
			name:   "nil map",
			input:  nil,
			maxLen: 100,
			want:   "{}",
		},
		{
			name:   "small map",
			input:  map[string]any{"key": "value"},
			maxLen: 100,
			want:   `{"key":"value"}`,
		},
		{
			name:   "truncated",
			input:  map[string]any{"key": "a very long value that should be truncated"},
			maxLen: 20,
			want:   `{"key":"a very long ...`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncateJSON(tt.input, tt.maxLen)
			if got != tt.want {
				t.Errorf("truncateJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}
