// Package resolution settles a goal's final outcome: every agent with a
// nonzero position is paid or charged the fixed payout, positions are
// zeroed, and the goal is marked resolved.
package resolution

import (
	"context"

	"github.com/mochiyaki/accountability-market/internal/apperr"
	"github.com/mochiyaki/accountability-market/internal/model"
	"github.com/mochiyaki/accountability-market/internal/store"
)

// Engine resolves goals against the persistence gateway.
type Engine struct {
	store store.Store
}

// New builds a resolution Engine.
func New(s store.Store) *Engine {
	return &Engine{store: s}
}

// Resolve pays out every agent's position on goalID according to outcome,
// zeroes positions, and marks the goal resolved. It rejects an
// already-resolved goal or an unknown outcome.
func (e *Engine) Resolve(ctx context.Context, goalID int64, outcome model.Outcome) (*model.Goal, error) {
	if outcome != model.OutcomeSuccess && outcome != model.OutcomeFailure {
		return nil, apperr.BadRequest("unknown outcome %q", outcome)
	}

	goal, err := e.store.GetGoal(ctx, goalID)
	if err != nil {
		return nil, err
	}
	if goal.IsResolved() {
		return nil, apperr.BadRequest("goal %d is already resolved", goalID)
	}

	agents, err := e.store.ListAgents(ctx)
	if err != nil {
		return nil, apperr.Store(err, "list agents for resolution of goal %d", goalID)
	}

	sign := 1.0
	if outcome == model.OutcomeFailure {
		sign = -1.0
	}

	for _, agent := range agents {
		pos := agent.PositionFor(goalID)
		if pos == 0 {
			continue
		}
		agent.Cash += sign * float64(pos) * model.PayoutAmount
		agent.Holding[goalID] = 0
		if err := e.store.SaveAgent(ctx, agent); err != nil {
			return nil, apperr.Store(err, "settle resolution payout for agent %d", agent.ID)
		}
	}

	goal.Status = model.GoalStatusResolved
	goal.Outcome = outcome
	if err := e.store.SaveGoal(ctx, goal); err != nil {
		return nil, apperr.Store(err, "mark goal %d resolved", goalID)
	}
	return goal, nil
}
