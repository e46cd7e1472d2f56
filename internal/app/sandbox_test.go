package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spyagency/internal/engine"
)

func TestSeedIsRepeatable(t *testing.T) {
	conn, err := OpenWorkspace(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	e := engine.New(conn, []string{"Abyssinian", "Bengal", "Maine Coon", "Persian", "Siamese"})
	ctx := context.Background()
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 2; i++ {
		sum, err := Seed(ctx, e, now)
		require.NoError(t, err)
		assert.Equal(t, SeedSummary{Agents: 5, Missions: 4, Targets: 8}, sum)
	}

	page, err := e.ListAgents(ctx, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 5, page.Total)

	missions, err := e.ListMissions(ctx)
	require.NoError(t, err)
	require.Len(t, missions, 4)
	byName := map[string]bool{}
	for _, m := range missions {
		byName[m.Name] = m.IsCompleted
	}
	assert.True(t, byName["Operation Mouse Hunt"])
	assert.False(t, byName["Operation Goldfish"])

	free, err := e.ListFreeAgents(ctx)
	require.NoError(t, err)
	var names []string
	for _, a := range free {
		names = append(names, a.Name)
	}
	assert.ElementsMatch(t, []string{"Felix", "Kvas", "Luna"}, names)
}
