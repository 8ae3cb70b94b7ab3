package tools

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// MaxRecordedParamsLength is the max length for serialized parameters in a log record.
const MaxRecordedParamsLength = 1000

// MaxRecordedResultLength is the max length for result content in a log record.
const MaxRecordedResultLength = 2000

// Call statuses used as metric labels.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// RecordingExecutor wraps an Executor, assigns call IDs, and records each
// call as a structured log entry and in Prometheus metrics.
type RecordingExecutor struct {
	inner   Executor
	logger  *slog.Logger
	metrics *Metrics
}

// NewRecordingExecutor wraps an executor with call recording. Metrics may be nil.
func NewRecordingExecutor(inner Executor, metrics *Metrics, logger *slog.Logger) *RecordingExecutor {
	if logger == nil {
		logger = slog.Default()
	}
	return &RecordingExecutor{
		inner:   inner,
		logger:  logger,
		metrics: metrics,
	}
}

// Execute runs the underlying tool executor and records the call.
func (r *RecordingExecutor) Execute(ctx context.Context, call ToolCall) (ToolResult, error) {
	if call.ID == "" {
		call.ID = uuid.New().String()
	}
	startedAt := time.Now()

	result, execErr := r.inner.Execute(ctx, call)
	if result.CallID == "" {
		result.CallID = call.ID
	}

	r.recordCall(call, result, execErr, time.Since(startedAt))
	return result, execErr
}

// ListTools delegates to the inner executor.
func (r *RecordingExecutor) ListTools() []ToolDefinition {
	return r.inner.ListTools()
}

func (r *RecordingExecutor) recordCall(call ToolCall, result ToolResult, execErr error, elapsed time.Duration) {
	status := StatusSuccess
	var errMsg string
	if execErr != nil {
		status = StatusError
		errMsg = execErr.Error()
	} else if result.Error != "" {
		status = StatusError
		errMsg = result.Error
	}

	r.metrics.observe(call.Name, status, elapsed.Seconds(), len(result.Warnings))

	attrs := []any{
		"tool", call.Name,
		"call_id", call.ID,
		"status", status,
		"duration_ms", elapsed.Milliseconds(),
		"params", truncateJSON(call.Arguments, MaxRecordedParamsLength),
	}
	if len(result.Warnings) > 0 {
		attrs = append(attrs, "warnings", len(result.Warnings))
	}
	if errMsg != "" {
		r.logger.Warn("Tool call failed", append(attrs, "error", errMsg)...)
		return
	}
	r.logger.Debug("Tool call completed", append(attrs, "result", truncate(result.Content, MaxRecordedResultLength))...)
}

// truncateJSON marshals a map to JSON and truncates to maxLen.
func truncateJSON(m map[string]any, maxLen int) string {
	if m == nil {
		return "{}"
	}

	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return truncate(string(data), maxLen)
}

func truncate(s string, maxLen int) string {
	if len(s) > maxLen {
		return s[:maxLen] + "..."
	}
	return s
}
