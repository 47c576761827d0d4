package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochiyaki/accountability-market/internal/model"
)

func spread(agentID int64, buy, sell *float64) *model.AgentSpread {
	return &model.AgentSpread{AgentID: agentID, BuyPrice: buy, SellPrice: sell}
}

func ptr(v float64) *float64 { return &v }

func TestClear_S1_BasicAuctionWithOverlap(t *testing.T) {
	spreads := []*model.AgentSpread{
		spread(1, ptr(70), ptr(95)), // A
		spread(2, ptr(60), ptr(80)), // B
		spread(3, ptr(50), ptr(65)), // C
	}

	trades := Clear(spreads, 1) // trading mode: no Stage-2 fallback available
	require.Len(t, trades, 1)
	assert.Equal(t, int64(1), trades[0].BuyerID)
	assert.Equal(t, int64(3), trades[0].SellerID)
	assert.Equal(t, 65.0, trades[0].Price)
}

func TestClear_S2_NoOverlapFallbackOnInitialEvent(t *testing.T) {
	spreads := []*model.AgentSpread{
		spread(1, ptr(40), ptr(90)), // A
		spread(2, ptr(30), ptr(80)), // B
		spread(3, ptr(20), ptr(70)), // C
	}

	trades := Clear(spreads, 0) // initial auction event: Stage-2 eligible
	require.Len(t, trades, 1)
	assert.Equal(t, int64(1), trades[0].BuyerID)
	assert.Equal(t, int64(3), trades[0].SellerID)
	assert.Equal(t, 40.0, trades[0].Price)
}

func TestClear_S2_FallbackNotInvokedOnTradingModeEvent(t *testing.T) {
	spreads := []*model.AgentSpread{
		spread(1, ptr(40), ptr(90)),
		spread(2, ptr(30), ptr(80)),
		spread(3, ptr(20), ptr(70)),
	}

	trades := Clear(spreads, 1) // update_id > 0: no fallback even with zero Stage-1 trades
	assert.Empty(t, trades)
}

func TestClear_S4_ClampedBuyStillClearsAtSellPrice(t *testing.T) {
	spreads := []*model.AgentSpread{
		spread(1, ptr(50), nil),  // clamped buyer, no sell quote
		spread(2, nil, ptr(45)),  // seller only
	}

	trades := Clear(spreads, 1)
	require.Len(t, trades, 1)
	assert.Equal(t, 45.0, trades[0].Price, "clears at the sell price, not the buyer's bid")
}

func TestClear_SelfMatchIsNoOpTransferAtSellPrice(t *testing.T) {
	spreads := []*model.AgentSpread{
		spread(1, ptr(80), ptr(60)),
	}

	trades := Clear(spreads, 1)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(1), trades[0].BuyerID)
	assert.Equal(t, int64(1), trades[0].SellerID)
	assert.Equal(t, 60.0, trades[0].Price)
}

func TestClear_EmptySpreadsYieldsNoTrades(t *testing.T) {
	assert.Empty(t, Clear(nil, 0))
}

func TestClear_TieBreakByAgentIDAscending(t *testing.T) {
	spreads := []*model.AgentSpread{
		spread(3, ptr(50), nil),
		spread(1, ptr(50), nil),
		spread(2, nil, ptr(50)),
	}

	trades := Clear(spreads, 1)
	require.Len(t, trades, 1)
	assert.Equal(t, int64(1), trades[0].BuyerID, "equal bids break ties by ascending agent id")
}
