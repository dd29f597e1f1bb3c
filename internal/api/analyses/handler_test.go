package analyses

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/internal/adapters/config"
	"quorum/internal/agents"
	"quorum/internal/analysis"
	"quorum/internal/workflow"
	"quorum/pkg/logger"
)

type echoExecutor struct{}

func (echoExecutor) ExecuteTask(ctx context.Context, agentType agents.AgentType, task agents.TaskType, taskCtx *agents.TaskContext) *agents.TaskResult {
	return &agents.TaskResult{
		TaskID:    taskCtx.TaskID,
		AgentType: agentType,
		Status:    agents.TaskSuccess,
		Result:    map[string]interface{}{"report": "ok"},
	}
}

func newTestServer(t *testing.T) (*httptest.Server, *analysis.Service) {
	t.Helper()

	service := analysis.NewService(workflow.NewEngine(echoExecutor{}), nil, config.AnalysisConfig{
		SelectedAnalysts: []string{"market"},
		ResearchDepth:    1,
		MarketType:       "US",
	})

	mux := http.NewServeMux()
	New(service, logger.Get()).Register(mux)

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, service
}

func submitAnalysis(t *testing.T, server *httptest.Server, body string) string {
	t.Helper()

	resp, err := http.Post(server.URL+"/analyses", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	var payload map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	require.NotEmpty(t, payload["analysis_id"])
	return payload["analysis_id"]
}

func TestHandler_SubmitAndPoll(t *testing.T) {
	server, service := newTestServer(t)

	id := submitAnalysis(t, server, `{"symbol":"AAPL"}`)

	run, ok := service.Get(id)
	require.True(t, ok)
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}

	resp, err := http.Get(server.URL + "/analyses/" + id)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var payload struct {
		Progress struct {
			Status  string `json:"status"`
			Percent int    `json:"percent"`
		} `json:"progress"`
		Result map[string]interface{} `json:"result"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&payload))
	assert.Equal(t, "completed", payload.Progress.Status)
	assert.Equal(t, 100, payload.Progress.Percent)
	require.NotNil(t, payload.Result)
	assert.Equal(t, "AAPL", payload.Result["symbol"])
}

func TestHandler_SubmitValidation(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/analyses", "application/json", strings.NewReader(`{`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Post(server.URL+"/analyses", "application/json", strings.NewReader(`{"symbol":""}`))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandler_UnknownAnalysis(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/analyses/nope")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	req, err := http.NewRequest(http.MethodDelete, server.URL+"/analyses/nope", nil)
	require.NoError(t, err)
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHandler_MethodNotAllowed(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/analyses")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
