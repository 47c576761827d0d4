// Package store defines the persistence gateway the market engine runs
// against: typed CRUD over goals, updates, agents, debate messages,
// spreads, trades, and agent history, plus atomic id allocation.
package store

import (
	"context"

	"github.com/mochiyaki/accountability-market/internal/model"
)

// Namespace identifies an id counter space for NextID.
type Namespace string

const (
	NamespaceGoal   Namespace = "goal"
	NamespaceUpdate Namespace = "update"
	NamespaceAgent  Namespace = "agent"
	NamespaceTrade  Namespace = "trade"
)

// Store is the full persistence contract the market engine consumes. All
// methods return apperr.Store-wrapped errors on I/O failure; GetGoal,
// GetAgent and GetUpdate return apperr.NotFound for a missing record.
type Store interface {
	// NextID atomically increments and returns the next id in namespace.
	NextID(ctx context.Context, ns Namespace) (int64, error)

	GetGoal(ctx context.Context, id int64) (*model.Goal, error)
	SaveGoal(ctx context.Context, g *model.Goal) error
	ListGoals(ctx context.Context) ([]*model.Goal, error)

	GetAgent(ctx context.Context, id int64) (*model.Agent, error)
	SaveAgent(ctx context.Context, a *model.Agent) error
	ListAgents(ctx context.Context) ([]*model.Agent, error)

	GetUpdate(ctx context.Context, id int64) (*model.GoalUpdate, error)
	SaveUpdate(ctx context.Context, u *model.GoalUpdate) error
	// ListUpdatesByGoal returns updates for a goal sorted by creation
	// descending (newest first).
	ListUpdatesByGoal(ctx context.Context, goalID int64) ([]*model.GoalUpdate, error)

	AppendDebateMessage(ctx context.Context, m *model.DebateMessage) error
	// ListDebate returns messages for a single (goal, update) pair in
	// append order.
	ListDebate(ctx context.Context, goalID, updateID int64) ([]*model.DebateMessage, error)

	StoreSpreads(ctx context.Context, goalID, updateID int64, spreads []*model.AgentSpread) error
	GetSpreads(ctx context.Context, goalID, updateID int64) ([]*model.AgentSpread, error)

	AppendTrade(ctx context.Context, t *model.Trade) error
	ListTradesForEvent(ctx context.Context, goalID, updateID int64) ([]*model.Trade, error)
	ListTradesForGoal(ctx context.Context, goalID int64) ([]*model.Trade, error)

	AppendAgentHistory(ctx context.Context, agentID int64, h *model.AgentHistoryEntry) error
	// TailAgentHistory returns the most recent n entries, newest first.
	TailAgentHistory(ctx context.Context, agentID int64, n int) ([]*model.AgentHistoryEntry, error)

	GetTokenSupply(ctx context.Context, goalID int64) (int64, error)
	SetTokenSupply(ctx context.Context, goalID int64, supply int64) error
}
