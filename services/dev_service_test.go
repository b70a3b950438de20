package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okhomin/bracket-engine/models"
)

func TestSeedDummies(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tournament := env.createOpen(t, 42, "Cup")

	entries, err := env.dev.SeedDummies(ctx, tournament.ID, 4)
	require.NoError(t, err)
	require.Len(t, entries, 4)
	for _, e := range entries {
		assert.True(t, isDummyPlayerID(e.PlayerID), "player %d", e.PlayerID)
	}

	// Dummies mix with real players and reseeding skips existing ones.
	_, err = env.registration.Register(ctx, tournament.ID, 5001)
	require.NoError(t, err)
	more, err := env.dev.SeedDummies(ctx, tournament.ID, 2)
	require.NoError(t, err)
	assert.Len(t, more, 2)

	all, err := env.registration.ListEntries(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Len(t, all, 7)
}

func TestSeedDummiesCountBounds(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tournament := env.createOpen(t, 42, "Cup")
	for _, count := range []int{0, -1, 65} {
		_, err := env.dev.SeedDummies(ctx, tournament.ID, count)
		assert.ErrorIs(t, err, ErrValidationFailed, "count=%d", count)
	}
}

func TestSeedDummiesRequiresRegOpen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tournament, err := env.lifecycle.Create(ctx, 42, "Cup")
	require.NoError(t, err)

	_, err = env.dev.SeedDummies(ctx, tournament.ID, 4)
	assert.ErrorIs(t, err, ErrRegistrationClosed)
}

func TestResolveDummyMatchesPlaysFullBracket(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tournament := env.createOpen(t, 42, "Cup")
	_, err := env.dev.SeedDummies(ctx, tournament.ID, 4)
	require.NoError(t, err)
	_, err = env.lifecycle.CloseRegistration(ctx, tournament.ID)
	require.NoError(t, err)
	_, err = env.lifecycle.Start(ctx, tournament.ID)
	require.NoError(t, err)

	// Two semifinals plus the final that becomes ready along the way.
	resolved, err := env.dev.ResolveDummyMatches(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, resolved)

	completed, err := env.lifecycle.GetByID(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseCompleted, completed.Phase)
	assert.NotNil(t, completed.ChampionEntryID)
	require.NotNil(t, completed.ChampionPlayerID)
	assert.True(t, isDummyPlayerID(*completed.ChampionPlayerID))

	// Nothing left to play.
	resolved, err = env.dev.ResolveDummyMatches(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Zero(t, resolved)
}

func TestResolveDummyMatchesSkipsRealPlayers(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tournament := env.createOpen(t, 42, "Cup")
	_, err := env.registration.Register(ctx, tournament.ID, 5001)
	require.NoError(t, err)
	_, err = env.registration.Register(ctx, tournament.ID, 5002)
	require.NoError(t, err)
	_, err = env.dev.SeedDummies(ctx, tournament.ID, 2)
	require.NoError(t, err)
	_, err = env.lifecycle.CloseRegistration(ctx, tournament.ID)
	require.NoError(t, err)
	_, err = env.lifecycle.Start(ctx, tournament.ID)
	require.NoError(t, err)

	// Seeds 1v4 and 2v3: each semifinal pairs a real player with a dummy,
	// so the simulator has nothing it may decide.
	resolved, err := env.dev.ResolveDummyMatches(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Zero(t, resolved)

	matches, err := env.advancement.ListMatches(ctx, tournament.ID)
	require.NoError(t, err)
	for _, m := range matches[:2] {
		assert.Equal(t, models.MatchStatusReady, m.Status)
	}
}
