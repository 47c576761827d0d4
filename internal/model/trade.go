package model

import "time"

// TradeQuantity is the fixed token quantity settled per matched pair.
const TradeQuantity = 1.0

// Trade is an append-only record of one matched buy/sell pair.
type Trade struct {
	ID         int64     `json:"id"`
	GoalID     int64     `json:"goal_id"`
	UpdateID   int64     `json:"update_id"`
	BuyerID    int64     `json:"buyer_agent_id"`
	SellerID   int64     `json:"seller_agent_id"`
	Price      float64   `json:"price"`
	Quantity   float64   `json:"quantity"`
	CreatedAt  time.Time `json:"created_at"`
}

// AgentHistoryEntry is an append-only per-agent record of one auction's
// outcome for a goal, regardless of whether the agent's spread traded.
type AgentHistoryEntry struct {
	GoalID               int64     `json:"goal_id"`
	UpdateID             int64     `json:"update_id"`
	BuyPrice             *float64  `json:"buy_price"`
	SellPrice            *float64  `json:"sell_price"`
	DiscoveredMarketPrice *float64 `json:"discovered_market_price"`
	CreatedAt            time.Time `json:"created_at"`
}
