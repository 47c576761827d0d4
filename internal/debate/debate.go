// Package debate fans a single auction event out to every participating
// agent in parallel, collecting debate transcripts and parsed spreads.
package debate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mochiyaki/accountability-market/internal/model"
	"github.com/mochiyaki/accountability-market/internal/oracle"
	"github.com/mochiyaki/accountability-market/internal/parse"
	"github.com/mochiyaki/accountability-market/internal/prompt"
)

// Result is the outcome of one agent's debate turn: always a DebateMessage
// if the oracle answered at all, and a Spread only when parsing succeeded.
type Result struct {
	Message *model.DebateMessage
	Spread  *model.AgentSpread
	Memo    string // updated analysis memo, empty if the agent produced none
}

// Orchestrator runs a single concurrent debate round per auction event.
type Orchestrator struct {
	client oracle.Client
}

// New builds an Orchestrator around a reasoning oracle client.
func New(client oracle.Client) *Orchestrator {
	return &Orchestrator{client: client}
}

// Round fans the event out to every agent in parallel and collects the
// resulting debate messages and spreads. Either slice may be shorter than
// len(agents) when an oracle call fails or its response fails to parse;
// debate is tolerant of such partial failure.
//
// updates and currentUpdate are nil in auction mode (updateID == 0).
func (o *Orchestrator) Round(ctx context.Context, goal *model.Goal, updateID int64, updates []*model.GoalUpdate, currentUpdate *model.GoalUpdate, agents []*model.Agent, now time.Time) ([]*model.DebateMessage, []*model.AgentSpread) {
	results := make([]*Result, len(agents))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(agents))

	var mu sync.Mutex
	for i, agent := range agents {
		i, agent := i, agent
		g.Go(func() error {
			res := o.runOne(gctx, goal, updateID, updates, currentUpdate, agent, now)
			mu.Lock()
			results[i] = res
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // runOne never returns an error; oracle failures are tolerated internally

	messages := make([]*model.DebateMessage, 0, len(agents))
	spreads := make([]*model.AgentSpread, 0, len(agents))
	for _, res := range results {
		if res == nil {
			continue
		}
		if res.Message != nil {
			messages = append(messages, res.Message)
		}
		if res.Spread != nil {
			spreads = append(spreads, res.Spread)
		}
	}
	return messages, spreads
}

func (o *Orchestrator) runOne(ctx context.Context, goal *model.Goal, updateID int64, updates []*model.GoalUpdate, currentUpdate *model.GoalUpdate, agent *model.Agent, now time.Time) *Result {
	var messages []oracle.Message
	if updateID == 0 {
		messages = prompt.BuildAuctionPrompt(goal, agent, now)
	} else {
		messages = prompt.BuildTradingPrompt(goal, updates, currentUpdate, agent)
	}

	text, ok := o.client.Ask(ctx, messages)
	if !ok {
		return nil // agent abstains entirely: no message, no spread
	}

	msg := &model.DebateMessage{
		GoalID:    goal.ID,
		UpdateID:  updateID,
		AgentID:   agent.ID,
		AgentName: agent.Name,
		Round:     1,
		Content:   text,
		CreatedAt: now,
	}

	var quote parse.Quote
	var parsed bool
	if updateID == 0 {
		quote, parsed = parse.ParseAuctionResponse(text)
	} else {
		quote, parsed = parse.ParseTradingResponse(text)
	}

	res := &Result{Message: msg}
	if !parsed {
		return res
	}

	buyPrice := parse.ClampBuyPrice(quote.BuyPrice, agent.Cash)
	spread := &model.AgentSpread{
		GoalID:    goal.ID,
		UpdateID:  updateID,
		AgentID:   agent.ID,
		AgentName: agent.Name,
		Analysis:  quote.Analysis,
		BuyPrice:  &buyPrice,
	}
	if quote.HasSell {
		sellPrice := quote.SellPrice
		spread.SellPrice = &sellPrice
	}

	res.Spread = spread
	res.Memo = quote.Analysis
	return res
}
