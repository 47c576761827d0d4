package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mochiyaki/accountability-market/internal/config"
)

// setupRoutes configures the HTTP surface: goal and agent CRUD, resolution,
// market analysis, and the live feed WebSocket.
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)
	s.router.GET("/ws", s.handleServeWS)

	goals := s.router.Group("/goals")
	{
		goals.POST("", s.handleCreateGoal)
		goals.GET("", s.handleListGoals)
		goals.GET("/:id", s.handleGetGoal)
		goals.POST("/:id/updates", s.handleCreateUpdate)
		goals.GET("/:id/updates", s.handleListUpdates)
		goals.PATCH("/:id/resolve", s.handleResolveGoal)
		goals.GET("/:id/updates/:uid/market-analysis", s.handleMarketAnalysis)
	}

	agents := s.router.Group("/agents")
	{
		agents.POST("", s.handleCreateAgent)
		agents.GET("", s.handleListAgents)
		agents.GET("/:id", s.handleGetAgent)
	}
}

// handleHealth reports liveness for load balancers and operators.
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"version":   config.Version,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
