package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mochiyaki/accountability-market/internal/model"
)

func TestMemoryStore_NextIDMonotone(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	var last int64
	for i := 0; i < 5; i++ {
		id, err := s.NextID(ctx, NamespaceGoal)
		require.NoError(t, err)
		require.Greater(t, id, last)
		last = id
	}
}

func TestMemoryStore_UpdatesSortedDescending(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	base := time.Now()
	require.NoError(t, s.SaveUpdate(ctx, &model.GoalUpdate{ID: 1, GoalID: 9, CreatedAt: base}))
	require.NoError(t, s.SaveUpdate(ctx, &model.GoalUpdate{ID: 2, GoalID: 9, CreatedAt: base.Add(time.Minute)}))

	list, err := s.ListUpdatesByGoal(ctx, 9)
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, int64(2), list[0].ID)
}

func TestMemoryStore_AgentCloneIsolation(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	a := model.NewAgent(1, "Alice", 1000)
	require.NoError(t, s.SaveAgent(ctx, a))

	got, err := s.GetAgent(ctx, 1)
	require.NoError(t, err)
	got.Holding[3] = 99

	got2, err := s.GetAgent(ctx, 1)
	require.NoError(t, err)
	require.Zero(t, got2.PositionFor(3))
}
