package prompt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochiyaki/accountability-market/internal/model"
)

func TestBuildAuctionPrompt_NoSellTag(t *testing.T) {
	goal := model.NewGoal(1, "ship v2 by year end", "2026-12-31", time.Now())
	agent := model.NewAgent(1, "Alice", 1000)

	msgs := BuildAuctionPrompt(goal, agent, time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))
	require.Len(t, msgs, 2)

	user := msgs[1].Content
	assert.Contains(t, user, "ship v2 by year end")
	assert.Contains(t, user, "2026-06-01")
	assert.Contains(t, user, "<buy>$X.XX</buy>")
	assert.NotContains(t, user, "<sell>")
}

func TestBuildTradingPrompt_IncludesHistoryAndMarketPrice(t *testing.T) {
	price := 42.5
	goal := &model.Goal{ID: 2, Description: "launch the product", TargetDate: "2026-09-01", BasePrice: &price}
	agent := model.NewAgent(1, "Bob", 1000)
	agent.Memo = "progress looks steady"

	updates := []*model.GoalUpdate{
		{ID: 2, GoalID: 2, Content: "beta shipped", ReportDate: "2026-05-01"},
		{ID: 1, GoalID: 2, Content: "kickoff done", ReportDate: "2026-04-01"},
	}
	current := updates[0]

	msgs := BuildTradingPrompt(goal, updates, current, agent)
	require.Len(t, msgs, 2)

	user := msgs[1].Content
	assert.Contains(t, user, "kickoff done")
	assert.Contains(t, user, "beta shipped")
	assert.Contains(t, user, "$42.50")
	assert.Contains(t, user, "progress looks steady")
	assert.Contains(t, user, "<sell>$Y.YY</sell>")
}

func TestBuildPortfolio_LongAndShort(t *testing.T) {
	agent := model.NewAgent(1, "Alice", 500)
	agent.Holding = model.Holdings{1: 3, 2: -2}

	p := BuildPortfolio(agent, 1)
	assert.Equal(t, 500.0, p.Cash)
	assert.Equal(t, 300.0, p.Assets)
	assert.Equal(t, 200.0, p.Liability)
	assert.Equal(t, 600.0, p.NetWorth)
	assert.Equal(t, int64(3), p.Position)
}
