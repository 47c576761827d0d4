package api

import (
	"context"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/mochiyaki/accountability-market/internal/apperr"
	"github.com/mochiyaki/accountability-market/internal/metrics"
	"github.com/mochiyaki/accountability-market/internal/model"
)

type createGoalRequest struct {
	Goal        string `json:"goal" binding:"required"`
	Measurement string `json:"measurement"`
	Date        string `json:"date" binding:"required"`
}

// handleCreateGoal creates a goal and enqueues its initial auction.
func (s *Server) handleCreateGoal(c *gin.Context) {
	var req createGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("malformed request body: %v", err))
		return
	}

	goal, err := s.dispatcher.CreateGoal(c.Request.Context(), req.Goal, req.Measurement, req.Date)
	if err != nil {
		respondError(c, err)
		return
	}
	s.refreshActiveGoalsGauge(c.Request.Context())
	c.JSON(http.StatusOK, goal)
}

// refreshActiveGoalsGauge recomputes the count of unresolved goals. Called
// after goal-count-affecting mutations rather than on a timer, since the
// market is human-paced and a poll loop would be overkill.
func (s *Server) refreshActiveGoalsGauge(ctx context.Context) {
	goals, err := s.store.ListGoals(ctx)
	if err != nil {
		return
	}
	active := 0
	for _, g := range goals {
		if !g.IsResolved() {
			active++
		}
	}
	metrics.ActiveGoals.Set(float64(active))
}

// handleListGoals returns every goal sorted by id.
func (s *Server) handleListGoals(c *gin.Context) {
	goals, err := s.store.ListGoals(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	sort.Slice(goals, func(i, j int) bool { return goals[i].ID < goals[j].ID })
	c.JSON(http.StatusOK, goals)
}

// handleGetGoal returns one goal by id.
func (s *Server) handleGetGoal(c *gin.Context) {
	id, err := pathInt64(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	goal, err := s.store.GetGoal(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, goal)
}

type createUpdateRequest struct {
	Content string `json:"content" binding:"required"`
	Date    string `json:"date" binding:"required"`
}

// handleCreateUpdate records a goal update and enqueues its trading-mode
// auction.
func (s *Server) handleCreateUpdate(c *gin.Context) {
	goalID, err := pathInt64(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req createUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("malformed request body: %v", err))
		return
	}

	update, err := s.dispatcher.CreateUpdate(c.Request.Context(), goalID, req.Content, req.Date)
	if err != nil {
		respondError(c, err)
		return
	}
	s.hub.Broadcast(MessageTypeSpreadUpdate, update)
	c.JSON(http.StatusOK, update)
}

// handleListUpdates returns a goal's updates, newest first.
func (s *Server) handleListUpdates(c *gin.Context) {
	goalID, err := pathInt64(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	if _, err := s.store.GetGoal(c.Request.Context(), goalID); err != nil {
		respondError(c, err)
		return
	}
	updates, err := s.store.ListUpdatesByGoal(c.Request.Context(), goalID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, updates)
}

type resolveGoalRequest struct {
	Outcome string `json:"outcome" binding:"required"`
}

// handleResolveGoal runs resolution synchronously and returns the settled
// goal.
func (s *Server) handleResolveGoal(c *gin.Context) {
	goalID, err := pathInt64(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	var req resolveGoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("malformed request body: %v", err))
		return
	}

	outcome := model.Outcome(req.Outcome)
	if outcome != model.OutcomeSuccess && outcome != model.OutcomeFailure {
		respondError(c, apperr.BadRequest("unknown outcome %q", req.Outcome))
		return
	}

	goal, err := s.dispatcher.ResolveGoal(c.Request.Context(), goalID, outcome)
	if err != nil {
		respondError(c, err)
		return
	}
	s.hub.Broadcast(MessageTypeGoalResolved, goal)
	s.refreshActiveGoalsGauge(c.Request.Context())
	c.JSON(http.StatusOK, goal)
}

type marketAnalysisResponse struct {
	UpdateID       int64                   `json:"update_id"`
	UpdateContent  string                  `json:"update_content"`
	UpdateDate     string                  `json:"update_date"`
	DebateMessages []*model.DebateMessage  `json:"debate_messages"`
	AgentSpreads   []*model.AgentSpread    `json:"agent_spreads"`
	Trades         []*model.Trade          `json:"trades"`
	MarketPrice    *float64                `json:"market_price"`
}

// handleMarketAnalysis assembles the full debate/spread/trade record for a
// single auction event.
func (s *Server) handleMarketAnalysis(c *gin.Context) {
	goalID, err := pathInt64(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	// uid 0 is the goal's initial auction, so zero is accepted here.
	rawUID := c.Param("uid")
	updateID, err := strconv.ParseInt(rawUID, 10, 64)
	if err != nil || updateID < 0 {
		respondError(c, apperr.Validation("malformed uid %q", rawUID))
		return
	}

	goal, err := s.store.GetGoal(c.Request.Context(), goalID)
	if err != nil {
		respondError(c, err)
		return
	}

	resp := marketAnalysisResponse{UpdateID: updateID, MarketPrice: goal.BasePrice}

	if updateID != 0 {
		update, err := s.store.GetUpdate(c.Request.Context(), updateID)
		if err != nil {
			respondError(c, err)
			return
		}
		resp.UpdateContent = update.Content
		resp.UpdateDate = update.ReportDate
	}

	messages, err := s.store.ListDebate(c.Request.Context(), goalID, updateID)
	if err != nil {
		respondError(c, err)
		return
	}
	resp.DebateMessages = messages

	spreads, err := s.store.GetSpreads(c.Request.Context(), goalID, updateID)
	if err != nil {
		respondError(c, err)
		return
	}
	resp.AgentSpreads = spreads

	trades, err := s.store.ListTradesForEvent(c.Request.Context(), goalID, updateID)
	if err != nil {
		respondError(c, err)
		return
	}
	resp.Trades = trades

	c.JSON(http.StatusOK, resp)
}

type createAgentRequest struct {
	Name        string   `json:"name" binding:"required"`
	CashBalance *float64 `json:"cash_balance"`
}

// handleCreateAgent creates an agent with an optional starting cash override.
func (s *Server) handleCreateAgent(c *gin.Context) {
	var req createAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, apperr.Validation("malformed request body: %v", err))
		return
	}
	agent, err := s.dispatcher.CreateAgent(c.Request.Context(), req.Name, req.CashBalance)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, agent)
}

// handleListAgents returns every agent sorted by id.
func (s *Server) handleListAgents(c *gin.Context) {
	agents, err := s.store.ListAgents(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	c.JSON(http.StatusOK, agents)
}

// handleGetAgent returns one agent by id.
func (s *Server) handleGetAgent(c *gin.Context) {
	id, err := pathInt64(c, "id")
	if err != nil {
		respondError(c, err)
		return
	}
	agent, err := s.store.GetAgent(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, agent)
}

// handleServeWS upgrades the connection onto the live market feed hub.
func (s *Server) handleServeWS(c *gin.Context) {
	s.hub.ServeWS(c.Writer, c.Request)
}

// pathInt64 parses a path parameter as a positive integer id, surfacing a
// validation error (not a 500) on malformed input.
func pathInt64(c *gin.Context, name string) (int64, error) {
	raw := c.Param(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, apperr.Validation("malformed %s %q", name, raw)
	}
	return id, nil
}

// respondError maps an apperr-classified error to its HTTP status and body.
func respondError(c *gin.Context, err error) {
	c.JSON(apperr.StatusCode(err), gin.H{"error": err.Error()})
}
