// Package prompt assembles the messages sent to the reasoning oracle for
// each agent, in auction mode (initial price discovery) or trading mode
// (reacting to a goal update).
package prompt

import (
	"fmt"
	"strings"
	"time"

	"github.com/mochiyaki/accountability-market/internal/model"
	"github.com/mochiyaki/accountability-market/internal/oracle"
)

const systemPrompt = `You are a trading agent in a prediction market that trades success tokens on whether a goal will be achieved. Each token pays $100 if the goal succeeds and $0 if it fails. Read the goal, the history provided, and your own portfolio, then state your reasoning briefly and quote a price.`

// Portfolio summarizes an agent's position for prompt inclusion.
type Portfolio struct {
	Cash       float64
	Assets     float64 // mark-to-max value of long positions: sum(tokens*100) over tokens>0
	Liability  float64 // sum(|tokens|*100) over tokens<0
	NetWorth   float64
	Position   int64 // signed position on the goal being priced
}

// BuildPortfolio derives a Portfolio summary from an agent's full holdings.
func BuildPortfolio(agent *model.Agent, goalID int64) Portfolio {
	var assets, liability float64
	for _, qty := range agent.Holding {
		if qty > 0 {
			assets += float64(qty) * model.PayoutAmount
		} else if qty < 0 {
			liability += float64(-qty) * model.PayoutAmount
		}
	}
	return Portfolio{
		Cash:      agent.Cash,
		Assets:    assets,
		Liability: liability,
		NetWorth:  agent.Cash + assets - liability,
		Position:  agent.PositionFor(goalID),
	}
}

func (p Portfolio) String() string {
	return fmt.Sprintf(
		"Cash: $%.2f\nLong position value (mark-to-max): $%.2f\nShort position liability: $%.2f\nNet worth: $%.2f\nCurrent position on this goal: %d tokens",
		p.Cash, p.Assets, p.Liability, p.NetWorth, p.Position,
	)
}

// BuildAuctionPrompt composes the prompt for update_id=0, the goal's
// initial price-discovery event. The agent is asked for an analysis
// paragraph followed by a buy tag only.
func BuildAuctionPrompt(goal *model.Goal, agent *model.Agent, now time.Time) []oracle.Message {
	portfolio := BuildPortfolio(agent, goal.ID)

	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", goal.Description)
	fmt.Fprintf(&b, "Target date: %s\n", goal.TargetDate)
	fmt.Fprintf(&b, "Today: %s\n\n", now.Format("2006-01-02"))
	b.WriteString("This is the goal's initial auction; there is no update history yet.\n\n")
	b.WriteString("Your portfolio:\n")
	b.WriteString(portfolio.String())
	b.WriteString("\n\nWrite a short analysis of whether this goal will succeed, then quote the maximum price in dollars you would pay for one success token. End your response with exactly:\n<buy>$X.XX</buy>")

	return []oracle.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}
}

// BuildTradingPrompt composes the prompt for update_id>0: a user progress
// update arrived. The agent sees the full chronological update history,
// the current market price if known, and its own prior analysis memo, and
// is asked for both a buy and a sell quote.
func BuildTradingPrompt(goal *model.Goal, updates []*model.GoalUpdate, currentUpdate *model.GoalUpdate, agent *model.Agent) []oracle.Message {
	portfolio := BuildPortfolio(agent, goal.ID)

	var b strings.Builder
	fmt.Fprintf(&b, "Goal: %s\n", goal.Description)
	fmt.Fprintf(&b, "Target date: %s\n", goal.TargetDate)
	fmt.Fprintf(&b, "Today: %s\n\n", currentUpdate.ReportDate)

	b.WriteString("Update history (oldest first):\n")
	for i := len(updates) - 1; i >= 0; i-- {
		u := updates[i]
		fmt.Fprintf(&b, "- [%s] %s\n", u.ReportDate, u.Content)
	}
	b.WriteString("\n")

	if goal.BasePrice != nil {
		fmt.Fprintf(&b, "Current market price: $%.2f\n\n", *goal.BasePrice)
	} else {
		b.WriteString("Current market price: not yet discovered\n\n")
	}

	if agent.Memo != "" {
		fmt.Fprintf(&b, "Your prior analysis of this goal:\n%s\n\n", agent.Memo)
	}

	b.WriteString("Your portfolio:\n")
	b.WriteString(portfolio.String())
	b.WriteString("\n\nWrite a short analysis of whether this goal will succeed given the latest update, then quote the maximum price in dollars you would pay for one success token, followed by the minimum price you would accept to sell one. End your response with exactly:\n<buy>$X.XX</buy>\n<sell>$Y.YY</sell>")

	return []oracle.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: b.String()},
	}
}
