package model

import "time"

// DebateMessage is one agent's reasoning turn for a goal update, captured
// verbatim from the oracle before parsing.
type DebateMessage struct {
	ID        int64     `json:"id"`
	GoalID    int64     `json:"goal_id"`
	UpdateID  int64     `json:"update_id"`
	AgentID   int64     `json:"agent_id"`
	AgentName string    `json:"agent_name"`
	Round     int       `json:"round"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// AgentSpread is the parsed buy/sell intent an agent derived from its
// DebateMessage. A nil BuyPrice or SellPrice means the agent declined that
// side of the market this round. Each spread clears at most once per side
// per auction; quantity per match is always 1.0 token.
type AgentSpread struct {
	GoalID    int64    `json:"goal_id"`
	UpdateID  int64    `json:"update_id"`
	AgentID   int64    `json:"agent_id"`
	AgentName string   `json:"agent_name"`
	Analysis  string   `json:"analysis"`
	BuyPrice  *float64 `json:"buy_price"`
	SellPrice *float64 `json:"sell_price"`
}

// WantsBuy reports whether the spread carries a live buy order.
func (s *AgentSpread) WantsBuy() bool {
	return s.BuyPrice != nil
}

// WantsSell reports whether the spread carries a live sell order.
func (s *AgentSpread) WantsSell() bool {
	return s.SellPrice != nil
}
