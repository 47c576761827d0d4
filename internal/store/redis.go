package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/mochiyaki/accountability-market/internal/apperr"
	"github.com/mochiyaki/accountability-market/internal/model"
)

// RedisStore is the production persistence gateway: goals, agents, updates,
// debate transcripts, spreads, trades, and history live as Redis keys in
// the shapes built by the key helpers below.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing Redis client. The caller owns the
// client's lifecycle (construction, pooling, and Close).
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func goalKey(id int64) string          { return fmt.Sprintf("goal:%d", id) }
func updateKey(id int64) string        { return fmt.Sprintf("update:%d", id) }
func agentKey(id int64) string         { return fmt.Sprintf("agent:%d", id) }
func agentHistoryKey(id int64) string  { return fmt.Sprintf("agent:%d:history", id) }
func goalUpdatesKey(goalID int64) string {
	return fmt.Sprintf("goal:%d:updates", goalID)
}
func debateKey(goalID, updateID int64) string {
	return fmt.Sprintf("debate:%d:%d", goalID, updateID)
}
func spreadsKey(goalID, updateID int64) string {
	return fmt.Sprintf("spreads:%d:%d", goalID, updateID)
}
func tradeKey(id int64) string { return fmt.Sprintf("trade:%d", id) }
func goalTradesKey(goalID int64) string {
	return fmt.Sprintf("goal:%d:trades", goalID)
}
func goalUpdateTradesKey(goalID, updateID int64) string {
	return fmt.Sprintf("goal:%d:update:%d:trades", goalID, updateID)
}
func tokenSupplyKey(goalID int64) string {
	return fmt.Sprintf("goal:%d:token_supply", goalID)
}
func idCounterKey(ns Namespace) string { return fmt.Sprintf("%s:id", ns) }

const (
	goalsAllKey  = "goals:all"
	agentsAllKey = "agents:all"
)

func (s *RedisStore) NextID(ctx context.Context, ns Namespace) (int64, error) {
	id, err := s.client.Incr(ctx, idCounterKey(ns)).Result()
	if err != nil {
		return 0, apperr.Store(err, "allocate id in namespace %s", ns)
	}
	return id, nil
}

func (s *RedisStore) GetGoal(ctx context.Context, id int64) (*model.Goal, error) {
	var g model.Goal
	if err := s.getJSON(ctx, goalKey(id), &g); err != nil {
		if err == redis.Nil {
			return nil, apperr.NotFound("goal %d", id)
		}
		return nil, apperr.Store(err, "get goal %d", id)
	}
	return &g, nil
}

func (s *RedisStore) SaveGoal(ctx context.Context, g *model.Goal) error {
	data, err := json.Marshal(g)
	if err != nil {
		return apperr.Store(err, "marshal goal %d", g.ID)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, goalKey(g.ID), data, 0)
	pipe.SAdd(ctx, goalsAllKey, g.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Store(err, "save goal %d", g.ID)
	}
	return nil
}

func (s *RedisStore) ListGoals(ctx context.Context) ([]*model.Goal, error) {
	ids, err := s.client.SMembers(ctx, goalsAllKey).Result()
	if err != nil {
		return nil, apperr.Store(err, "list goal ids")
	}
	goals := make([]*model.Goal, 0, len(ids))
	for _, idStr := range ids {
		var g model.Goal
		if err := s.getJSON(ctx, "goal:"+idStr, &g); err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, apperr.Store(err, "list goals")
		}
		goals = append(goals, &g)
	}
	sort.Slice(goals, func(i, j int) bool { return goals[i].ID < goals[j].ID })
	return goals, nil
}

func (s *RedisStore) GetAgent(ctx context.Context, id int64) (*model.Agent, error) {
	var a model.Agent
	if err := s.getJSON(ctx, agentKey(id), &a); err != nil {
		if err == redis.Nil {
			return nil, apperr.NotFound("agent %d", id)
		}
		return nil, apperr.Store(err, "get agent %d", id)
	}
	return &a, nil
}

func (s *RedisStore) SaveAgent(ctx context.Context, a *model.Agent) error {
	data, err := json.Marshal(a)
	if err != nil {
		return apperr.Store(err, "marshal agent %d", a.ID)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, agentKey(a.ID), data, 0)
	pipe.SAdd(ctx, agentsAllKey, a.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Store(err, "save agent %d", a.ID)
	}
	return nil
}

func (s *RedisStore) ListAgents(ctx context.Context) ([]*model.Agent, error) {
	ids, err := s.client.SMembers(ctx, agentsAllKey).Result()
	if err != nil {
		return nil, apperr.Store(err, "list agent ids")
	}
	agents := make([]*model.Agent, 0, len(ids))
	for _, idStr := range ids {
		var a model.Agent
		if err := s.getJSON(ctx, "agent:"+idStr, &a); err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, apperr.Store(err, "list agents")
		}
		agents = append(agents, &a)
	}
	sort.Slice(agents, func(i, j int) bool { return agents[i].ID < agents[j].ID })
	return agents, nil
}

func (s *RedisStore) GetUpdate(ctx context.Context, id int64) (*model.GoalUpdate, error) {
	var u model.GoalUpdate
	if err := s.getJSON(ctx, updateKey(id), &u); err != nil {
		if err == redis.Nil {
			return nil, apperr.NotFound("update %d", id)
		}
		return nil, apperr.Store(err, "get update %d", id)
	}
	return &u, nil
}

func (s *RedisStore) SaveUpdate(ctx context.Context, u *model.GoalUpdate) error {
	data, err := json.Marshal(u)
	if err != nil {
		return apperr.Store(err, "marshal update %d", u.ID)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, updateKey(u.ID), data, 0)
	pipe.SAdd(ctx, goalUpdatesKey(u.GoalID), u.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Store(err, "save update %d", u.ID)
	}
	return nil
}

func (s *RedisStore) ListUpdatesByGoal(ctx context.Context, goalID int64) ([]*model.GoalUpdate, error) {
	ids, err := s.client.SMembers(ctx, goalUpdatesKey(goalID)).Result()
	if err != nil {
		return nil, apperr.Store(err, "list updates for goal %d", goalID)
	}
	updates := make([]*model.GoalUpdate, 0, len(ids))
	for _, idStr := range ids {
		var u model.GoalUpdate
		if err := s.getJSON(ctx, "update:"+idStr, &u); err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, apperr.Store(err, "list updates for goal %d", goalID)
		}
		updates = append(updates, &u)
	}
	sort.Slice(updates, func(i, j int) bool {
		return updates[i].CreatedAt.After(updates[j].CreatedAt)
	})
	return updates, nil
}

func (s *RedisStore) AppendDebateMessage(ctx context.Context, m *model.DebateMessage) error {
	data, err := json.Marshal(m)
	if err != nil {
		return apperr.Store(err, "marshal debate message for goal %d", m.GoalID)
	}
	if err := s.client.RPush(ctx, debateKey(m.GoalID, m.UpdateID), data).Err(); err != nil {
		return apperr.Store(err, "append debate message for goal %d update %d", m.GoalID, m.UpdateID)
	}
	return nil
}

func (s *RedisStore) ListDebate(ctx context.Context, goalID, updateID int64) ([]*model.DebateMessage, error) {
	raw, err := s.client.LRange(ctx, debateKey(goalID, updateID), 0, -1).Result()
	if err != nil {
		return nil, apperr.Store(err, "list debate for goal %d update %d", goalID, updateID)
	}
	out := make([]*model.DebateMessage, 0, len(raw))
	for _, item := range raw {
		var m model.DebateMessage
		if err := json.Unmarshal([]byte(item), &m); err != nil {
			return nil, apperr.Store(err, "unmarshal debate message for goal %d", goalID)
		}
		out = append(out, &m)
	}
	return out, nil
}

func (s *RedisStore) StoreSpreads(ctx context.Context, goalID, updateID int64, spreads []*model.AgentSpread) error {
	data, err := json.Marshal(spreads)
	if err != nil {
		return apperr.Store(err, "marshal spreads for goal %d update %d", goalID, updateID)
	}
	if err := s.client.Set(ctx, spreadsKey(goalID, updateID), data, 0).Err(); err != nil {
		return apperr.Store(err, "store spreads for goal %d update %d", goalID, updateID)
	}
	return nil
}

func (s *RedisStore) GetSpreads(ctx context.Context, goalID, updateID int64) ([]*model.AgentSpread, error) {
	var spreads []*model.AgentSpread
	if err := s.getJSON(ctx, spreadsKey(goalID, updateID), &spreads); err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, apperr.Store(err, "get spreads for goal %d update %d", goalID, updateID)
	}
	return spreads, nil
}

func (s *RedisStore) AppendTrade(ctx context.Context, t *model.Trade) error {
	data, err := json.Marshal(t)
	if err != nil {
		return apperr.Store(err, "marshal trade %d", t.ID)
	}
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, tradeKey(t.ID), data, 0)
	pipe.SAdd(ctx, goalTradesKey(t.GoalID), t.ID)
	pipe.SAdd(ctx, goalUpdateTradesKey(t.GoalID, t.UpdateID), t.ID)
	if _, err := pipe.Exec(ctx); err != nil {
		return apperr.Store(err, "append trade %d", t.ID)
	}
	return nil
}

func (s *RedisStore) ListTradesForEvent(ctx context.Context, goalID, updateID int64) ([]*model.Trade, error) {
	return s.listTradesBySet(ctx, goalUpdateTradesKey(goalID, updateID))
}

func (s *RedisStore) ListTradesForGoal(ctx context.Context, goalID int64) ([]*model.Trade, error) {
	return s.listTradesBySet(ctx, goalTradesKey(goalID))
}

func (s *RedisStore) listTradesBySet(ctx context.Context, setKey string) ([]*model.Trade, error) {
	ids, err := s.client.SMembers(ctx, setKey).Result()
	if err != nil {
		return nil, apperr.Store(err, "list trades for %s", setKey)
	}
	trades := make([]*model.Trade, 0, len(ids))
	for _, idStr := range ids {
		var t model.Trade
		if err := s.getJSON(ctx, "trade:"+idStr, &t); err != nil {
			if err == redis.Nil {
				continue
			}
			return nil, apperr.Store(err, "list trades for %s", setKey)
		}
		trades = append(trades, &t)
	}
	sort.Slice(trades, func(i, j int) bool { return trades[i].ID < trades[j].ID })
	return trades, nil
}

func (s *RedisStore) AppendAgentHistory(ctx context.Context, agentID int64, h *model.AgentHistoryEntry) error {
	data, err := json.Marshal(h)
	if err != nil {
		return apperr.Store(err, "marshal history entry for agent %d", agentID)
	}
	if err := s.client.RPush(ctx, agentHistoryKey(agentID), data).Err(); err != nil {
		return apperr.Store(err, "append history for agent %d", agentID)
	}
	return nil
}

func (s *RedisStore) TailAgentHistory(ctx context.Context, agentID int64, n int) ([]*model.AgentHistoryEntry, error) {
	if n <= 0 {
		return []*model.AgentHistoryEntry{}, nil // LRANGE -0 -1 would return every entry
	}
	raw, err := s.client.LRange(ctx, agentHistoryKey(agentID), int64(-n), -1).Result()
	if err != nil {
		return nil, apperr.Store(err, "tail history for agent %d", agentID)
	}
	out := make([]*model.AgentHistoryEntry, 0, len(raw))
	for i := len(raw) - 1; i >= 0; i-- {
		var h model.AgentHistoryEntry
		if err := json.Unmarshal([]byte(raw[i]), &h); err != nil {
			return nil, apperr.Store(err, "unmarshal history entry for agent %d", agentID)
		}
		out = append(out, &h)
	}
	return out, nil
}

func (s *RedisStore) GetTokenSupply(ctx context.Context, goalID int64) (int64, error) {
	supply, err := s.client.Get(ctx, tokenSupplyKey(goalID)).Int64()
	if err != nil {
		if err == redis.Nil {
			return 0, nil
		}
		return 0, apperr.Store(err, "get token supply for goal %d", goalID)
	}
	return supply, nil
}

func (s *RedisStore) SetTokenSupply(ctx context.Context, goalID int64, supply int64) error {
	if err := s.client.Set(ctx, tokenSupplyKey(goalID), supply, 0).Err(); err != nil {
		return apperr.Store(err, "set token supply for goal %d", goalID)
	}
	return nil
}

func (s *RedisStore) getJSON(ctx context.Context, key string, dest any) error {
	raw, err := s.client.Get(ctx, key).Result()
	if err != nil {
		return err
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		log.Error().Err(err).Str("key", key).Msg("failed to unmarshal stored record")
		return err
	}
	return nil
}

var _ Store = (*RedisStore)(nil)
