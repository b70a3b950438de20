package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okhomin/bracket-engine/models"
)

func TestRegisterOnlyDuringRegOpen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tournament, err := env.lifecycle.Create(ctx, 42, "Cup")
	require.NoError(t, err)

	_, err = env.registration.Register(ctx, tournament.ID, 5001)
	assert.ErrorIs(t, err, ErrRegistrationClosed)

	_, err = env.lifecycle.OpenRegistration(ctx, tournament.ID)
	require.NoError(t, err)

	entry, err := env.registration.Register(ctx, tournament.ID, 5001)
	require.NoError(t, err)
	assert.Equal(t, int64(5001), entry.PlayerID)
	assert.Equal(t, tournament.ID, entry.TournamentID)

	_, err = env.registration.Register(ctx, tournament.ID, 5002)
	require.NoError(t, err)
	_, err = env.lifecycle.CloseRegistration(ctx, tournament.ID)
	require.NoError(t, err)

	_, err = env.registration.Register(ctx, tournament.ID, 5003)
	assert.ErrorIs(t, err, ErrRegistrationClosed)
}

func TestRegisterDuplicatePlayer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tournament := env.createOpen(t, 42, "Cup")
	_, err := env.registration.Register(ctx, tournament.ID, 5001)
	require.NoError(t, err)

	_, err = env.registration.Register(ctx, tournament.ID, 5001)
	assert.ErrorIs(t, err, ErrDuplicateEntry)

	entries, err := env.registration.ListEntries(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestRegisterUnknownTournament(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.registration.Register(context.Background(), 999, 5001)
	assert.ErrorIs(t, err, ErrTournamentNotFound)
}

func TestUnregister(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tournament := env.createOpen(t, 42, "Cup")
	_, err := env.registration.Register(ctx, tournament.ID, 5001)
	require.NoError(t, err)

	require.NoError(t, env.registration.Unregister(ctx, tournament.ID, 5001))

	entries, err := env.registration.ListEntries(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Empty(t, entries)

	// A withdrawn player may come back while registration is still open.
	_, err = env.registration.Register(ctx, tournament.ID, 5001)
	require.NoError(t, err)
}

func TestUnregisterUnknownPlayer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tournament := env.createOpen(t, 42, "Cup")
	err := env.registration.Unregister(ctx, tournament.ID, 5001)
	assert.ErrorIs(t, err, ErrEntryNotFound)
}

func TestUnregisterAfterClose(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tournament := env.createOpen(t, 42, "Cup")
	_, err := env.registration.Register(ctx, tournament.ID, 5001)
	require.NoError(t, err)
	_, err = env.registration.Register(ctx, tournament.ID, 5002)
	require.NoError(t, err)
	_, err = env.lifecycle.CloseRegistration(ctx, tournament.ID)
	require.NoError(t, err)

	err = env.registration.Unregister(ctx, tournament.ID, 5001)
	assert.ErrorIs(t, err, ErrRegistrationClosed)

	// The field stays frozen.
	entries, err := env.registration.ListEntries(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRegistrationPublishesDashboard(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tournament := env.createOpen(t, 42, "Cup")
	before := env.notifier.count(tournament.ID)

	_, err := env.registration.Register(ctx, tournament.ID, 5001)
	require.NoError(t, err)
	assert.Equal(t, before+1, env.notifier.count(tournament.ID))

	// A rejected registration publishes nothing.
	_, err = env.registration.Register(ctx, tournament.ID, 5001)
	require.ErrorIs(t, err, ErrDuplicateEntry)
	assert.Equal(t, before+1, env.notifier.count(tournament.ID))
}

func TestEntrantCountLiveWhileRegOpen(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	tournament := env.createOpen(t, 42, "Cup")
	for _, p := range []int64{5001, 5002, 5003} {
		_, err := env.registration.Register(ctx, tournament.ID, p)
		require.NoError(t, err)
	}

	snapshot, err := env.snapshots.BuildSnapshot(ctx, tournament.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseRegOpen, snapshot.Phase)
	assert.Equal(t, 3, snapshot.EntrantCount)
}
