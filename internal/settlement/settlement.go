// Package settlement applies a cleared batch of trades to agent cash and
// holdings, persists the resulting trade records, updates the goal's
// discovered market price, and appends per-agent history.
package settlement

import (
	"context"
	"sync"
	"time"

	"github.com/mochiyaki/accountability-market/internal/apperr"
	"github.com/mochiyaki/accountability-market/internal/model"
	"github.com/mochiyaki/accountability-market/internal/store"
)

// Engine settles trades produced by the matching engine against the
// persistence gateway. It holds one mutex per agent id so that concurrent
// auctions on different goals sharing an agent cannot interleave a single
// agent's load-modify-save sequence.
type Engine struct {
	store store.Store

	locksMu sync.Mutex
	locks   map[int64]*sync.Mutex
}

// New builds a settlement Engine around a persistence gateway.
func New(s store.Store) *Engine {
	return &Engine{store: s, locks: make(map[int64]*sync.Mutex)}
}

func (e *Engine) lockFor(agentID int64) *sync.Mutex {
	e.locksMu.Lock()
	defer e.locksMu.Unlock()
	m, ok := e.locks[agentID]
	if !ok {
		m = &sync.Mutex{}
		e.locks[agentID] = m
	}
	return m
}

// Apply settles every trade in order, allocating a trade id per the
// persistence gateway's monotone counter, then records the discovered
// market price and per-agent history for the event. It returns the fully
// settled trades (with ids and timestamps filled in).
func (e *Engine) Apply(ctx context.Context, goal *model.Goal, updateID int64, trades []*model.Trade, spreads []*model.AgentSpread, now func() time.Time) ([]*model.Trade, error) {
	settled := make([]*model.Trade, 0, len(trades))

	for _, t := range trades {
		id, err := e.store.NextID(ctx, store.NamespaceTrade)
		if err != nil {
			return nil, apperr.Store(err, "allocate trade id")
		}
		t.ID = id
		t.GoalID = goal.ID
		t.UpdateID = updateID
		t.CreatedAt = now()

		if err := e.settleOne(ctx, t); err != nil {
			return nil, err
		}

		if err := e.store.AppendTrade(ctx, t); err != nil {
			return nil, apperr.Store(err, "append trade %d", t.ID)
		}
		settled = append(settled, t)
	}

	marketPrice := meanPrice(settled)
	if marketPrice != nil {
		goal.BasePrice = marketPrice
		if err := e.store.SaveGoal(ctx, goal); err != nil {
			return nil, apperr.Store(err, "save goal %d after settlement", goal.ID)
		}
	}

	for _, s := range spreads {
		entry := &model.AgentHistoryEntry{
			GoalID:                goal.ID,
			UpdateID:              updateID,
			BuyPrice:              s.BuyPrice,
			SellPrice:             s.SellPrice,
			DiscoveredMarketPrice: marketPrice,
			CreatedAt:             now(),
		}
		if err := e.store.AppendAgentHistory(ctx, s.AgentID, entry); err != nil {
			return nil, apperr.Store(err, "append history for agent %d", s.AgentID)
		}
	}

	return settled, nil
}

// settleOne applies one trade's cash/holdings transfer, locking buyer and
// seller in ascending id order to avoid deadlock when an agent trades
// against itself or when two settlements overlap on the same pair.
func (e *Engine) settleOne(ctx context.Context, t *model.Trade) error {
	if t.BuyerID == t.SellerID {
		lock := e.lockFor(t.BuyerID)
		lock.Lock()
		defer lock.Unlock()
		return e.transfer(ctx, t)
	}

	first, second := t.BuyerID, t.SellerID
	if second < first {
		first, second = second, first
	}
	lockFirst, lockSecond := e.lockFor(first), e.lockFor(second)
	lockFirst.Lock()
	defer lockFirst.Unlock()
	lockSecond.Lock()
	defer lockSecond.Unlock()

	return e.transfer(ctx, t)
}

// UpdateAgent runs fn against the agent's current record and saves the
// result, holding the same per-agent lock settleOne uses. Callers outside
// the trade-settlement path (e.g. memo updates after a debate round) use
// this instead of a bare load-modify-save so they cannot interleave with a
// concurrent settlement on the same agent.
func (e *Engine) UpdateAgent(ctx context.Context, agentID int64, fn func(*model.Agent)) error {
	lock := e.lockFor(agentID)
	lock.Lock()
	defer lock.Unlock()

	agent, err := e.store.GetAgent(ctx, agentID)
	if err != nil {
		return err
	}
	fn(agent)
	if err := e.store.SaveAgent(ctx, agent); err != nil {
		return apperr.Store(err, "save agent %d", agent.ID)
	}
	return nil
}

func (e *Engine) transfer(ctx context.Context, t *model.Trade) error {
	buyer, err := e.store.GetAgent(ctx, t.BuyerID)
	if err != nil {
		return apperr.Store(err, "load buyer %d for trade", t.BuyerID)
	}
	var seller *model.Agent
	if t.SellerID == t.BuyerID {
		seller = buyer
	} else {
		seller, err = e.store.GetAgent(ctx, t.SellerID)
		if err != nil {
			return apperr.Store(err, "load seller %d for trade", t.SellerID)
		}
	}

	buyer.Cash -= t.Price * t.Quantity
	if buyer.Holding == nil {
		buyer.Holding = model.Holdings{}
	}
	buyer.Holding[t.GoalID] += int64(t.Quantity)

	seller.Cash += t.Price * t.Quantity
	if seller.Holding == nil {
		seller.Holding = model.Holdings{}
	}
	seller.Holding[t.GoalID] -= int64(t.Quantity)

	if err := e.store.SaveAgent(ctx, buyer); err != nil {
		return apperr.Store(err, "save buyer %d", buyer.ID)
	}
	if seller.ID != buyer.ID {
		if err := e.store.SaveAgent(ctx, seller); err != nil {
			return apperr.Store(err, "save seller %d", seller.ID)
		}
	}
	return nil
}

func meanPrice(trades []*model.Trade) *float64 {
	if len(trades) == 0 {
		return nil
	}
	var sum float64
	for _, t := range trades {
		sum += t.Price
	}
	mean := sum / float64(len(trades))
	return &mean
}
