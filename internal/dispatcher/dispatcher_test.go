package dispatcher

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochiyaki/accountability-market/internal/debate"
	"github.com/mochiyaki/accountability-market/internal/model"
	"github.com/mochiyaki/accountability-market/internal/oracle"
	"github.com/mochiyaki/accountability-market/internal/store"
)

// scriptedOracle returns a fixed response to every agent, regardless of
// prompt content, so a full dispatcher pipeline can run deterministically.
type scriptedOracle struct {
	mu       sync.Mutex
	response string
	ok       bool
	calls    int
}

func (o *scriptedOracle) Ask(_ context.Context, _ []oracle.Message, _ ...oracle.Option) (string, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	return o.response, o.ok
}

func (o *scriptedOracle) callCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

func waitForCondition(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	require.Fail(t, "condition not met before timeout")
}

func TestCreateGoal_SeedsRosterAndRunsInitialAuction(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	oracleClient := &scriptedOracle{response: "I think this will succeed.\n<buy>$55.00</buy>", ok: true}
	d := New(s, debate.New(oracleClient), 3)

	goal, err := d.CreateGoal(ctx, "ship the feature", "merged to main", "01/03/2027")
	require.NoError(t, err)
	assert.Equal(t, "2027-03-01", goal.TargetDate)
	assert.Contains(t, goal.Description, "merged to main")

	waitForCondition(t, time.Second, func() bool {
		agents, _ := s.ListAgents(ctx)
		return len(agents) == 3
	})

	agents, err := s.ListAgents(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 3)
	names := []string{agents[0].Name, agents[1].Name, agents[2].Name}
	assert.ElementsMatch(t, []string{"Alice", "Bob", "Charlie"}, names)

	waitForCondition(t, time.Second, func() bool {
		spreads, _ := s.GetSpreads(ctx, goal.ID, 0)
		return len(spreads) == 3
	})

	// Auction-mode responses never carry a sell tag (ParseAuctionResponse
	// ignores one), so every agent's ask side is empty and neither clearing
	// stage can produce a trade: there is nothing to sell against. The
	// event still records each agent's bid as a spread and history entry.
	spreads, err := s.GetSpreads(ctx, goal.ID, 0)
	require.NoError(t, err)
	require.Len(t, spreads, 3)
	for _, sp := range spreads {
		require.NotNil(t, sp.BuyPrice)
		assert.InDelta(t, 55.0, *sp.BuyPrice, 0.001)
		assert.Nil(t, sp.SellPrice)
	}

	gotGoal, err := s.GetGoal(ctx, goal.ID)
	require.NoError(t, err)
	assert.Nil(t, gotGoal.BasePrice, "no asks means nothing crosses, so no market price is discovered")
}

func TestCreateGoal_RejectsBadDate(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	d := New(s, debate.New(&scriptedOracle{}), 3)

	_, err := d.CreateGoal(ctx, "goal", "measure", "2027-03-01")
	require.Error(t, err)
}

func TestCreateUpdate_RequiresExistingGoal(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	d := New(s, debate.New(&scriptedOracle{}), 3)

	_, err := d.CreateUpdate(ctx, 999, "progress", "2027-01-01")
	require.Error(t, err)
}

func TestRunAuction_EmptySpreadsToleratedWithoutSettlement(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	oracleClient := &scriptedOracle{ok: false}
	d := New(s, debate.New(oracleClient), 2)

	goal, err := d.CreateGoal(ctx, "goal with a silent oracle", "n/a", "01/01/2028")
	require.NoError(t, err)

	waitForCondition(t, time.Second, func() bool {
		return oracleClient.callCount() >= 2
	})
	time.Sleep(20 * time.Millisecond)

	gotGoal, err := s.GetGoal(ctx, goal.ID)
	require.NoError(t, err)
	assert.Nil(t, gotGoal.BasePrice, "no spreads collected means no market price update")
}

func TestResolveGoal_DelegatesToResolutionEngine(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	goal := model.NewGoal(1, "g", "2026-01-01", time.Now())
	require.NoError(t, s.SaveGoal(ctx, goal))

	d := New(s, debate.New(&scriptedOracle{}), 3)
	resolved, err := d.ResolveGoal(ctx, 1, model.OutcomeSuccess)
	require.NoError(t, err)
	assert.Equal(t, model.GoalStatusResolved, resolved.Status)
}

func TestCreateAgent_DefaultsToStartingCash(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	d := New(s, debate.New(&scriptedOracle{}), 3)

	agent, err := d.CreateAgent(ctx, "Frank", nil)
	require.NoError(t, err)
	assert.Equal(t, float64(defaultStartingCash), agent.Cash)
}
