package server

import (
	"context"
	"io"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/semplan/tools"
)

func TestMetricsServer(t *testing.T) {
	reg := prometheus.NewRegistry()
	exec := tools.NewRecordingExecutor(newTestExecutor(t), tools.NewMetrics(reg), nil)

	_, err := exec.Execute(context.Background(), tools.ToolCall{Name: tools.ToolListWorkflows})
	require.NoError(t, err)

	srv := NewMetricsServer("127.0.0.1:0", reg, nil)
	require.NoError(t, srv.Start())
	defer srv.Shutdown(context.Background())

	get := func(path string) string {
		resp, err := http.Get("http://" + srv.Addr() + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return string(body)
	}

	assert.Equal(t, "ok", get("/healthz"))
	assert.Contains(t, get("/metrics"), `semplan_tools_calls_total{status="success",tool="list_workflows"} 1`)
}
