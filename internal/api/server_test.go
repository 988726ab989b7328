package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acme/scatter-gather/internal/api/handlers"
	"github.com/acme/scatter-gather/internal/app"
	"github.com/acme/scatter-gather/internal/config"
	"github.com/acme/scatter-gather/pkg/logger"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Aggregator.CallTimeout = 100 * time.Millisecond
	cfg.Backends.Simulated = []config.SimulatedBackendConfig{
		{ID: "A", MaxJitter: 5 * time.Millisecond},
		{ID: "B", FailureRate: 1},
		{ID: "C"},
		{ID: "H", Hang: true},
	}

	container, err := app.New(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Close(context.Background()) })

	return NewServer(cfg.HTTP, handlers.NewHandlerSet(container))
}

type response struct {
	RequestID string `json:"request_id"`
	Policy    string `json:"policy"`
	Result    any    `json:"result"`
	Error     string `json:"error"`
	Outcomes  []struct {
		Caller string `json:"caller"`
		Kind   string `json:"kind"`
	} `json:"outcomes"`
}

func post(t *testing.T, s *Server, path, body string) (int, response) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	res, err := s.App().Test(req, 2000)
	require.NoError(t, err)
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	var out response
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return res.StatusCode, out
}

func TestAggregateFailFast(t *testing.T) {
	s := newTestServer(t)

	code, body := post(t, s, "/api/v1/aggregate/fail-fast", `{"callers":["A","C"],"inputs":["x","z"]}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "A:X C:Z", body.Result)
	assert.NotEmpty(t, body.RequestID)

	code, body = post(t, s, "/api/v1/aggregate/fail-fast", `{"callers":["A","B","C"],"inputs":["x","y","z"]}`)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, body.Error, "simulated failure")
	assert.Nil(t, body.Result)
	require.Len(t, body.Outcomes, 3)
	assert.Equal(t, "failure", body.Outcomes[1].Kind)

	code, _ = post(t, s, "/api/v1/aggregate/fail-fast", `{"callers":["A","H"],"inputs":["x","y"]}`)
	assert.Equal(t, http.StatusGatewayTimeout, code)
}

func TestAggregateAbsorbingPolicies(t *testing.T) {
	s := newTestServer(t)

	code, body := post(t, s, "/api/v1/aggregate/fail-partial", `{"callers":["A","B","C"],"inputs":["x","y","z"]}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"A:X", "C:Z"}, body.Result)

	code, body = post(t, s, "/api/v1/aggregate/fail_soft", `{"callers":["A","B","H"],"inputs":["x","y","z"],"fallback":"NA"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "fail-soft", body.Policy)
	assert.Equal(t, "A:X NA NA", body.Result)

	code, body = post(t, s, "/api/v1/aggregate/completion-order", `{"callers":["A","B","C"],"input":"q"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.ElementsMatch(t, []any{"A:Q", "C:Q"}, body.Result)
}

func TestAggregateRejectsBadRequests(t *testing.T) {
	s := newTestServer(t)

	code, body := post(t, s, "/api/v1/aggregate/fail-soft", `{"callers":["A","C"],"inputs":["x"]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body.Error, "size mismatch")

	code, _ = post(t, s, "/api/v1/aggregate/fail-fast", `{"callers":["A","nope"],"inputs":["x","y"]}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = post(t, s, "/api/v1/aggregate/best-effort", `{"callers":["A"],"inputs":["x"]}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = post(t, s, "/api/v1/aggregate/fail-fast", `{"inputs":["x"]}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t)

	res, err := s.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	_, _ = post(t, s, "/api/v1/aggregate/fail-soft", `{"callers":["A","B"],"inputs":["x","y"],"fallback":"-"}`)

	res, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.NoError(t, err)
	raw, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `scatter_aggregator_call_outcomes_total{kind="failure",policy="fail-soft"} 1`)

	res, err = s.App().Test(httptest.NewRequest(http.MethodGet, "/api/v1/backends", nil))
	require.NoError(t, err)
	var backends struct {
		Backends []string `json:"backends"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&backends))
	assert.Equal(t, []string{"A", "B", "C", "H"}, backends.Backends)
}
