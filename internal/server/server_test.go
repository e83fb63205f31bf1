package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"team-optimizer/internal/catalog"
	"team-optimizer/internal/config"
	"team-optimizer/internal/engine"
	"team-optimizer/internal/metrics"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)
	cfg := config.Default()
	cfg.Search.MaxCombinations = 1e6

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	s := New(engine.New(cat, cfg, engine.WithMetrics(m)), WithMetrics(m, reg))
	t.Cleanup(s.Close)
	return s
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
}

func TestListUnits(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodGet, "/v1/units?costs=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Units []struct {
			Name string `json:"name"`
			Cost int    `json:"cost"`
		} `json:"units"`
	}](t, w)
	require.NotEmpty(t, body.Units)
	for _, u := range body.Units {
		assert.Equal(t, 5, u.Cost, u.Name)
	}

	w = do(t, s, http.MethodGet, "/v1/units?q=zzzz", nil)
	assert.JSONEq(t, `{"units":[]}`, w.Body.String())

	w = do(t, s, http.MethodGet, "/v1/units?costs=one", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "bad_request", decode[ErrorResponse](t, w).Code)
}

func TestListTraits(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodGet, "/v1/traits", nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Thresholds map[string]int `json:"thresholds"`
		Headliners []string       `json:"headliners"`
	}](t, w)
	assert.Equal(t, 3, body.Thresholds["K/DA"])
	assert.Len(t, body.Headliners, len(body.Thresholds))
}

func TestEvaluate(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodPost, "/v1/evaluate", evaluateRequest{Units: []string{"Olaf", "K'Sante"}})
	require.Equal(t, http.StatusOK, w.Code)
	body := decode[struct {
		Count int    `json:"count"`
		Text  string `json:"text"`
	}](t, w)
	assert.Equal(t, 0, body.Count)
	assert.True(t, strings.HasPrefix(body.Text, "Team has 2 Units\n"))

	w = do(t, s, http.MethodPost, "/v1/evaluate", evaluateRequest{Units: []string{"Nobody"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "unknown_unit", decode[ErrorResponse](t, w).Code)
}

func TestSearch(t *testing.T) {
	s := newTestServer(t)
	w := do(t, s, http.MethodPost, "/v1/search", engine.Request{TeamSize: 2, Costs: []int{1}})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode[struct {
		Strategy string `json:"strategy"`
		Count    int    `json:"count"`
		Teams    []any  `json:"teams"`
		Text     string `json:"text"`
	}](t, w)
	assert.Equal(t, config.StrategyExhaustive, body.Strategy)
	assert.NotEmpty(t, body.Teams)
	assert.Contains(t, body.Text, "Teams that Activate")
}

func TestSearchErrors(t *testing.T) {
	s := newTestServer(t)
	cases := []struct {
		req    engine.Request
		status int
		code   string
	}{
		{engine.Request{Strategy: "genetic"}, http.StatusBadRequest, "unknown_strategy"},
		{engine.Request{TeamSize: 13 * 13}, http.StatusBadRequest, "invalid_team_size"},
		{engine.Request{Headliner: "Plumber"}, http.StatusBadRequest, "unknown_trait"},
		{engine.Request{TeamSize: 8}, http.StatusUnprocessableEntity, "search_too_large"},
	}
	for _, tc := range cases {
		w := do(t, s, http.MethodPost, "/v1/search", tc.req)
		assert.Equal(t, tc.status, w.Code, w.Body.String())
		assert.Equal(t, tc.code, decode[ErrorResponse](t, w).Code)
	}

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader("{"))
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobLifecycle(t *testing.T) {
	s := newTestServer(t)

	w := do(t, s, http.MethodPost, "/v1/searches", engine.Request{TeamSize: 2, Costs: []int{1, 2}})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	view := decode[JobView](t, w)
	require.NotEmpty(t, view.ID)
	assert.Equal(t, "/v1/searches/"+view.ID, w.Header().Get("Location"))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err := s.Jobs().Wait(ctx, view.ID)
	require.NoError(t, err)

	w = do(t, s, http.MethodGet, "/v1/searches/"+view.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view = decode[JobView](t, w)
	assert.Equal(t, JobDone, view.Status)
	require.NotNil(t, view.Outcome)
	assert.NotEmpty(t, view.Outcome.Teams)
	assert.NotEmpty(t, view.Text)
}

func TestJobCancel(t *testing.T) {
	s := newTestServer(t)

	// far beyond the sync limit; jobs run it anyway
	w := do(t, s, http.MethodPost, "/v1/searches", engine.Request{TeamSize: 12})
	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	view := decode[JobView](t, w)
	assert.True(t, view.Request.Force)

	w = do(t, s, http.MethodDelete, "/v1/searches/"+view.ID, nil)
	require.Equal(t, http.StatusAccepted, w.Code)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	view, err := s.Jobs().Wait(ctx, view.ID)
	require.NoError(t, err)
	assert.Equal(t, JobCancelled, view.Status)
	assert.Nil(t, view.Outcome)
}

func TestFinishedJobsExpire(t *testing.T) {
	cat, err := catalog.Default()
	require.NoError(t, err)
	cfg := config.Default()
	cfg.Server.JobRetention = 2
	s := New(engine.New(cat, cfg))
	t.Cleanup(s.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	var ids []string
	for range 3 {
		w := do(t, s, http.MethodPost, "/v1/searches", engine.Request{TeamSize: 1, Costs: []int{1}})
		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
		id := decode[JobView](t, w).ID
		_, err := s.Jobs().Wait(ctx, id)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	assert.Equal(t, http.StatusNotFound, do(t, s, http.MethodGet, "/v1/searches/"+ids[0], nil).Code)
	for _, id := range ids[1:] {
		assert.Equal(t, http.StatusOK, do(t, s, http.MethodGet, "/v1/searches/"+id, nil).Code)
	}
}

func TestJobNotFound(t *testing.T) {
	s := newTestServer(t)
	for _, method := range []string{http.MethodGet, http.MethodDelete} {
		w := do(t, s, method, "/v1/searches/missing", nil)
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "not_found", decode[ErrorResponse](t, w).Code)
	}
}

func TestJobRejectsInvalidRequest(t *testing.T) {
	w := do(t, newTestServer(t), http.MethodPost, "/v1/searches", engine.Request{Mandatory: []string{"Nobody"}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t)
	do(t, s, http.MethodPost, "/v1/search", engine.Request{TeamSize: 1})
	w := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "teamopt_searches_total")
}
