package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochiyaki/accountability-market/internal/debate"
	"github.com/mochiyaki/accountability-market/internal/dispatcher"
	"github.com/mochiyaki/accountability-market/internal/model"
	"github.com/mochiyaki/accountability-market/internal/oracle"
	"github.com/mochiyaki/accountability-market/internal/store"
)

// scriptedOracle answers every Ask call with a fixed response, so a
// dispatcher-backed test server can run its background auction
// deterministically without a real reasoning endpoint.
type scriptedOracle struct {
	response string
	ok       bool
}

func (o *scriptedOracle) Ask(_ context.Context, _ []oracle.Message, _ ...oracle.Option) (string, bool) {
	return o.response, o.ok
}

func newTestServer(t *testing.T) (*Server, store.Store) {
	t.Helper()
	s := store.NewMemoryStore()
	oracleClient := &scriptedOracle{response: "looks promising.\n<buy>$50.00</buy>", ok: true}
	d := dispatcher.New(s, debate.New(oracleClient), 3)
	return NewServer(Config{Host: "127.0.0.1", Port: 0, Dispatcher: d, Store: s}), s
}

func doRequest(t *testing.T, srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)
	return rec
}

func TestHandleCreateGoal_Success(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/goals", createGoalRequest{
		Goal:        "ship the feature",
		Measurement: "merged to main",
		Date:        "01/03/2027",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var goal model.Goal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &goal))
	assert.Equal(t, "2027-03-01", goal.TargetDate)
	assert.Equal(t, model.GoalStatusActive, goal.Status)
}

func TestHandleCreateGoal_BadDateIsValidationError(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/goals", createGoalRequest{
		Goal: "goal", Date: "not-a-date",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleCreateGoal_MissingFieldsRejected(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/goals", map[string]string{"measurement": "x"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleListGoals_SortedByID(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, s.SaveGoal(ctx, model.NewGoal(2, "second", "2027-01-01", goalCreatedAt())))
	require.NoError(t, s.SaveGoal(ctx, model.NewGoal(1, "first", "2027-01-01", goalCreatedAt())))

	rec := doRequest(t, srv, http.MethodGet, "/goals", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var goals []*model.Goal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &goals))
	require.Len(t, goals, 2)
	assert.Equal(t, int64(1), goals[0].ID)
	assert.Equal(t, int64(2), goals[1].ID)
}

func TestHandleGetGoal_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/goals/999", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetGoal_MalformedID(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/goals/not-a-number", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleCreateUpdate_RequiresExistingGoal(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/goals/42/updates", createUpdateRequest{
		Content: "progress", Date: "2027-01-01",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCreateUpdate_Success(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.SaveGoal(ctx, model.NewGoal(1, "goal", "2027-01-01", goalCreatedAt())))

	rec := doRequest(t, srv, http.MethodPost, "/goals/1/updates", createUpdateRequest{
		Content: "halfway there", Date: "2027-02-01",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var update model.GoalUpdate
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &update))
	assert.Equal(t, int64(1), update.GoalID)
	assert.Equal(t, "halfway there", update.Content)
}

func TestHandleListUpdates_UnknownGoal(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/goals/7/updates", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleResolveGoal_RejectsUnknownOutcome(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.SaveGoal(ctx, model.NewGoal(1, "goal", "2027-01-01", goalCreatedAt())))

	rec := doRequest(t, srv, http.MethodPatch, "/goals/1/resolve", resolveGoalRequest{Outcome: "maybe"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleResolveGoal_AlreadyResolvedIsBadRequest(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.SaveGoal(ctx, model.NewGoal(1, "goal", "2027-01-01", goalCreatedAt())))

	first := doRequest(t, srv, http.MethodPatch, "/goals/1/resolve", resolveGoalRequest{Outcome: "success"})
	require.Equal(t, http.StatusOK, first.Code)

	second := doRequest(t, srv, http.MethodPatch, "/goals/1/resolve", resolveGoalRequest{Outcome: "failure"})
	assert.Equal(t, http.StatusBadRequest, second.Code)
}

func TestHandleResolveGoal_Success(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.SaveGoal(ctx, model.NewGoal(1, "goal", "2027-01-01", goalCreatedAt())))

	rec := doRequest(t, srv, http.MethodPatch, "/goals/1/resolve", resolveGoalRequest{Outcome: "success"})
	require.Equal(t, http.StatusOK, rec.Code)

	var goal model.Goal
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &goal))
	assert.Equal(t, model.GoalStatusResolved, goal.Status)
	assert.Equal(t, model.OutcomeSuccess, goal.Outcome)
}

func TestHandleMarketAnalysis_InitialAuction(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()
	goal := model.NewGoal(1, "goal", "2027-01-01", goalCreatedAt())
	require.NoError(t, s.SaveGoal(ctx, goal))
	require.NoError(t, s.StoreSpreads(ctx, 1, 0, []*model.AgentSpread{
		{GoalID: 1, UpdateID: 0, AgentID: 9, BuyPrice: floatPtr(40)},
	}))

	rec := doRequest(t, srv, http.MethodGet, "/goals/1/updates/0/market-analysis", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp marketAnalysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.AgentSpreads, 1)
	assert.Equal(t, int64(9), resp.AgentSpreads[0].AgentID)
	assert.Empty(t, resp.UpdateContent, "update_id=0 has no backing update record")
}

func TestHandleMarketAnalysis_UnknownGoal(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/goals/1/updates/0/market-analysis", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleCreateAgent_DefaultsCash(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/agents", createAgentRequest{Name: "Frank"})
	require.Equal(t, http.StatusOK, rec.Code)

	var agent model.Agent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agent))
	assert.Equal(t, "Frank", agent.Name)
	assert.Equal(t, float64(1000), agent.Cash)
}

func TestHandleCreateAgent_ExplicitCash(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodPost, "/agents", createAgentRequest{Name: "Grace", CashBalance: floatPtr(250)})
	require.Equal(t, http.StatusOK, rec.Code)

	var agent model.Agent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agent))
	assert.Equal(t, float64(250), agent.Cash)
}

func TestHandleListAgents_SortedByID(t *testing.T) {
	srv, s := newTestServer(t)
	ctx := context.Background()
	require.NoError(t, s.SaveAgent(ctx, model.NewAgent(2, "Bob", 1000)))
	require.NoError(t, s.SaveAgent(ctx, model.NewAgent(1, "Alice", 1000)))

	rec := doRequest(t, srv, http.MethodGet, "/agents", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var agents []*model.Agent
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &agents))
	require.Len(t, agents, 2)
	assert.Equal(t, "Alice", agents[0].Name)
	assert.Equal(t, "Bob", agents[1].Name)
}

func TestHandleGetAgent_NotFound(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/agents/404", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := doRequest(t, srv, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func floatPtr(f float64) *float64 { return &f }

func goalCreatedAt() time.Time { return time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC) }
