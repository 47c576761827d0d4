package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mochiyaki/accountability-market/internal/apperr"
	"github.com/mochiyaki/accountability-market/internal/model"
)

// MemoryStore is an in-process Store implementation used by engine-level
// tests that don't need a real Redis instance. It is safe for concurrent
// use.
type MemoryStore struct {
	mu sync.Mutex

	counters map[Namespace]int64

	goals   map[int64]*model.Goal
	agents  map[int64]*model.Agent
	updates map[int64]*model.GoalUpdate

	goalUpdates map[int64][]int64

	debate  map[string][]*model.DebateMessage
	spreads map[string][]*model.AgentSpread

	trades      map[int64]*model.Trade
	goalTrades  map[int64][]int64
	eventTrades map[string][]int64

	history map[int64][]*model.AgentHistoryEntry
	supply  map[int64]int64
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		counters:    make(map[Namespace]int64),
		goals:       make(map[int64]*model.Goal),
		agents:      make(map[int64]*model.Agent),
		updates:     make(map[int64]*model.GoalUpdate),
		goalUpdates: make(map[int64][]int64),
		debate:      make(map[string][]*model.DebateMessage),
		spreads:     make(map[string][]*model.AgentSpread),
		trades:      make(map[int64]*model.Trade),
		goalTrades:  make(map[int64][]int64),
		eventTrades: make(map[string][]int64),
		history:     make(map[int64][]*model.AgentHistoryEntry),
		supply:      make(map[int64]int64),
	}
}

func formatEventKey(goalID, updateID int64) string {
	return fmt.Sprintf("%d:%d", goalID, updateID)
}

func (s *MemoryStore) NextID(_ context.Context, ns Namespace) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counters[ns]++
	return s.counters[ns], nil
}

func (s *MemoryStore) GetGoal(_ context.Context, id int64) (*model.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.goals[id]
	if !ok {
		return nil, apperr.NotFound("goal %d", id)
	}
	cp := *g
	return &cp, nil
}

func (s *MemoryStore) SaveGoal(_ context.Context, g *model.Goal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *g
	s.goals[g.ID] = &cp
	return nil
}

func (s *MemoryStore) ListGoals(_ context.Context) ([]*model.Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Goal, 0, len(s.goals))
	for _, g := range s.goals {
		cp := *g
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetAgent(_ context.Context, id int64) (*model.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, apperr.NotFound("agent %d", id)
	}
	cp := *a
	cp.Holding = a.Holding.Clone()
	return &cp, nil
}

func (s *MemoryStore) SaveAgent(_ context.Context, a *model.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	cp.Holding = a.Holding.Clone()
	s.agents[a.ID] = &cp
	return nil
}

func (s *MemoryStore) ListAgents(_ context.Context) ([]*model.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*model.Agent, 0, len(s.agents))
	for _, a := range s.agents {
		cp := *a
		cp.Holding = a.Holding.Clone()
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemoryStore) GetUpdate(_ context.Context, id int64) (*model.GoalUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.updates[id]
	if !ok {
		return nil, apperr.NotFound("update %d", id)
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) SaveUpdate(_ context.Context, u *model.GoalUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *u
	s.updates[u.ID] = &cp
	s.goalUpdates[u.GoalID] = append(s.goalUpdates[u.GoalID], u.ID)
	return nil
}

func (s *MemoryStore) ListUpdatesByGoal(_ context.Context, goalID int64) ([]*model.GoalUpdate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := s.goalUpdates[goalID]
	out := make([]*model.GoalUpdate, 0, len(ids))
	for _, id := range ids {
		if u, ok := s.updates[id]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) AppendDebateMessage(_ context.Context, m *model.DebateMessage) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := eventKeyExact(m.GoalID, m.UpdateID)
	cp := *m
	s.debate[key] = append(s.debate[key], &cp)
	return nil
}

func (s *MemoryStore) ListDebate(_ context.Context, goalID, updateID int64) ([]*model.DebateMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.DebateMessage(nil), s.debate[eventKeyExact(goalID, updateID)]...), nil
}

func (s *MemoryStore) StoreSpreads(_ context.Context, goalID, updateID int64, spreads []*model.AgentSpread) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.spreads[eventKeyExact(goalID, updateID)] = append([]*model.AgentSpread(nil), spreads...)
	return nil
}

func (s *MemoryStore) GetSpreads(_ context.Context, goalID, updateID int64) ([]*model.AgentSpread, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.AgentSpread(nil), s.spreads[eventKeyExact(goalID, updateID)]...), nil
}

func (s *MemoryStore) AppendTrade(_ context.Context, t *model.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *t
	s.trades[t.ID] = &cp
	s.goalTrades[t.GoalID] = append(s.goalTrades[t.GoalID], t.ID)
	key := eventKeyExact(t.GoalID, t.UpdateID)
	s.eventTrades[key] = append(s.eventTrades[key], t.ID)
	return nil
}

func (s *MemoryStore) ListTradesForEvent(_ context.Context, goalID, updateID int64) ([]*model.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveTrades(s.eventTrades[eventKeyExact(goalID, updateID)]), nil
}

func (s *MemoryStore) ListTradesForGoal(_ context.Context, goalID int64) ([]*model.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resolveTrades(s.goalTrades[goalID]), nil
}

func (s *MemoryStore) resolveTrades(ids []int64) []*model.Trade {
	out := make([]*model.Trade, 0, len(ids))
	for _, id := range ids {
		if t, ok := s.trades[id]; ok {
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) AppendAgentHistory(_ context.Context, agentID int64, h *model.AgentHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *h
	s.history[agentID] = append(s.history[agentID], &cp)
	return nil
}

func (s *MemoryStore) TailAgentHistory(_ context.Context, agentID int64, n int) ([]*model.AgentHistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	all := s.history[agentID]
	if n > len(all) {
		n = len(all)
	}
	out := make([]*model.AgentHistoryEntry, 0, n)
	for i := len(all) - 1; i >= len(all)-n; i-- {
		out = append(out, all[i])
	}
	return out, nil
}

func (s *MemoryStore) GetTokenSupply(_ context.Context, goalID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.supply[goalID], nil
}

func (s *MemoryStore) SetTokenSupply(_ context.Context, goalID int64, supply int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.supply[goalID] = supply
	return nil
}

func eventKeyExact(goalID, updateID int64) string {
	return formatEventKey(goalID, updateID)
}

var _ Store = (*MemoryStore)(nil)
