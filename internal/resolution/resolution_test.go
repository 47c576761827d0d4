package resolution

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mochiyaki/accountability-market/internal/apperr"
	"github.com/mochiyaki/accountability-market/internal/model"
	"github.com/mochiyaki/accountability-market/internal/store"
)

func TestResolve_S3_SuccessPayoutConservesCash(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	alice := model.NewAgent(1, "Alice", 860)
	alice.Holding[7] = 2
	bob := model.NewAgent(2, "Bob", 1140)
	bob.Holding[7] = -2
	require.NoError(t, s.SaveAgent(ctx, alice))
	require.NoError(t, s.SaveAgent(ctx, bob))

	goal := model.NewGoal(7, "g", "2026-01-01", time.Now())
	require.NoError(t, s.SaveGoal(ctx, goal))

	engine := New(s)
	resolved, err := engine.Resolve(ctx, 7, model.OutcomeSuccess)
	require.NoError(t, err)
	assert.Equal(t, model.GoalStatusResolved, resolved.Status)
	assert.Equal(t, model.OutcomeSuccess, resolved.Outcome)

	gotAlice, _ := s.GetAgent(ctx, 1)
	gotBob, _ := s.GetAgent(ctx, 2)
	assert.InDelta(t, 1060.0, gotAlice.Cash, 0.001)
	assert.InDelta(t, 940.0, gotBob.Cash, 0.001)
	assert.Zero(t, gotAlice.PositionFor(7))
	assert.Zero(t, gotBob.PositionFor(7))
}

func TestResolve_FailurePaysShorts(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()

	alice := model.NewAgent(1, "Alice", 860)
	alice.Holding[7] = 2
	bob := model.NewAgent(2, "Bob", 1140)
	bob.Holding[7] = -2
	require.NoError(t, s.SaveAgent(ctx, alice))
	require.NoError(t, s.SaveAgent(ctx, bob))

	goal := model.NewGoal(7, "g", "2026-01-01", time.Now())
	require.NoError(t, s.SaveGoal(ctx, goal))

	engine := New(s)
	_, err := engine.Resolve(ctx, 7, model.OutcomeFailure)
	require.NoError(t, err)

	gotAlice, _ := s.GetAgent(ctx, 1)
	gotBob, _ := s.GetAgent(ctx, 2)
	assert.InDelta(t, 660.0, gotAlice.Cash, 0.001)
	assert.InDelta(t, 1340.0, gotBob.Cash, 0.001)
}

func TestResolve_S5_ResolveTwiceRejected(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	goal := model.NewGoal(1, "g", "2026-01-01", time.Now())
	require.NoError(t, s.SaveGoal(ctx, goal))

	engine := New(s)
	_, err := engine.Resolve(ctx, 1, model.OutcomeSuccess)
	require.NoError(t, err)

	_, err = engine.Resolve(ctx, 1, model.OutcomeFailure)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
}

func TestResolve_UnknownGoalNotFound(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	engine := New(s)

	_, err := engine.Resolve(ctx, 404, model.OutcomeSuccess)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestResolve_InvalidOutcomeRejected(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	goal := model.NewGoal(1, "g", "2026-01-01", time.Now())
	require.NoError(t, s.SaveGoal(ctx, goal))

	engine := New(s)
	_, err := engine.Resolve(ctx, 1, model.Outcome("maybe"))
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindBadRequest))
}
