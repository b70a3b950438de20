package services

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okhomin/bracket-engine/models"
)

func TestReportResultAdvancesWinner(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	started := env.createStarted(t, 42, 4)
	seed1 := env.entryOf(t, started.ID, 1001)
	seed4 := env.entryOf(t, started.ID, 1004)

	semi := env.matchAt(t, started.ID, 1, 0)
	require.Equal(t, models.MatchStatusReady, semi.Status)
	require.True(t, semi.HasEntrant(seed1.ID))
	require.True(t, semi.HasEntrant(seed4.ID))

	resolution, err := env.advancement.ReportResult(ctx, semi.ID, seed4.ID)
	require.NoError(t, err)

	assert.Equal(t, models.MatchStatusCompleted, resolution.CompletedMatch.Status)
	assert.Equal(t, seed4.ID, *resolution.CompletedMatch.WinnerEntryID)
	assert.False(t, resolution.TournamentCompleted)
	// Final still waits on the other semi, so nothing became ready.
	assert.Nil(t, resolution.NextReadyMatch)

	final := env.matchAt(t, started.ID, 2, 0)
	require.NotNil(t, final.Entry1ID)
	assert.Equal(t, seed4.ID, *final.Entry1ID)
	assert.Nil(t, final.Entry2ID)
	assert.Equal(t, models.MatchStatusUnassigned, final.Status)
}

func TestReportResultMakesDownstreamReady(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	started := env.createStarted(t, 42, 4)
	seed1 := env.entryOf(t, started.ID, 1001)
	seed2 := env.entryOf(t, started.ID, 1002)

	semi0 := env.matchAt(t, started.ID, 1, 0)
	semi1 := env.matchAt(t, started.ID, 1, 1)

	_, err := env.advancement.ReportResult(ctx, semi0.ID, seed1.ID)
	require.NoError(t, err)

	resolution, err := env.advancement.ReportResult(ctx, semi1.ID, seed2.ID)
	require.NoError(t, err)
	require.NotNil(t, resolution.NextReadyMatch)
	assert.Equal(t, models.MatchStatusReady, resolution.NextReadyMatch.Status)
	assert.Equal(t, seed1.ID, *resolution.NextReadyMatch.Entry1ID)
	assert.Equal(t, seed2.ID, *resolution.NextReadyMatch.Entry2ID)
}

func TestReportResultFinalCompletesTournament(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	started := env.createStarted(t, 42, 2)
	seed1 := env.entryOf(t, started.ID, 1001)

	final := env.matchAt(t, started.ID, 1, 0)
	resolution, err := env.advancement.ReportResult(ctx, final.ID, seed1.ID)
	require.NoError(t, err)

	assert.True(t, resolution.TournamentCompleted)
	require.NotNil(t, resolution.ChampionEntryID)
	assert.Equal(t, seed1.ID, *resolution.ChampionEntryID)

	completed, err := env.lifecycle.GetByID(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseCompleted, completed.Phase)
	require.NotNil(t, completed.ChampionEntryID)
	assert.Equal(t, seed1.ID, *completed.ChampionEntryID)
	require.NotNil(t, completed.ChampionPlayerID)
	assert.Equal(t, int64(1001), *completed.ChampionPlayerID)
	require.NotNil(t, completed.RunnerUpPlayerID)
	assert.Equal(t, int64(1002), *completed.RunnerUpPlayerID)

	// Terminal: no further reporting on this tournament.
	_, err = env.advancement.ReportResult(ctx, final.ID, seed1.ID)
	assert.ErrorIs(t, err, ErrMatchNotReady)
}

func TestReportResultRetryIsRejected(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	started := env.createStarted(t, 42, 4)
	seed1 := env.entryOf(t, started.ID, 1001)
	seed4 := env.entryOf(t, started.ID, 1004)

	semi := env.matchAt(t, started.ID, 1, 0)
	_, err := env.advancement.ReportResult(ctx, semi.ID, seed1.ID)
	require.NoError(t, err)

	// Retries change nothing, even with a different winner.
	_, err = env.advancement.ReportResult(ctx, semi.ID, seed4.ID)
	assert.ErrorIs(t, err, ErrMatchAlreadyResolved)

	refreshed := env.matchAt(t, started.ID, 1, 0)
	assert.Equal(t, seed1.ID, *refreshed.WinnerEntryID)
	final := env.matchAt(t, started.ID, 2, 0)
	assert.Equal(t, seed1.ID, *final.Entry1ID)
}

func TestReportResultConcurrentReports(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	started := env.createStarted(t, 42, 4)
	seed1 := env.entryOf(t, started.ID, 1001)
	seed4 := env.entryOf(t, started.ID, 1004)
	semi := env.matchAt(t, started.ID, 1, 0)

	winners := []int{seed1.ID, seed4.ID}
	errs := make([]error, len(winners))
	var wg sync.WaitGroup
	for i, w := range winners {
		wg.Add(1)
		go func(i, w int) {
			defer wg.Done()
			_, errs[i] = env.advancement.ReportResult(ctx, semi.ID, w)
		}(i, w)
	}
	wg.Wait()

	// Exactly one reporter wins the claim.
	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			assert.ErrorIs(t, err, ErrMatchAlreadyResolved)
		}
	}
	assert.Equal(t, 1, succeeded)

	refreshed := env.matchAt(t, started.ID, 1, 0)
	assert.Equal(t, models.MatchStatusCompleted, refreshed.Status)
	final := env.matchAt(t, started.ID, 2, 0)
	require.NotNil(t, final.Entry1ID)
	assert.Equal(t, *refreshed.WinnerEntryID, *final.Entry1ID)
}

func TestReportResultValidation(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	started := env.createStarted(t, 42, 4)
	seed1 := env.entryOf(t, started.ID, 1001)

	semi := env.matchAt(t, started.ID, 1, 0)
	final := env.matchAt(t, started.ID, 2, 0)

	_, err := env.advancement.ReportResult(ctx, 999, seed1.ID)
	assert.ErrorIs(t, err, ErrMatchNotFound)

	// A winner who is not in the match.
	_, err = env.advancement.ReportResult(ctx, semi.ID, 999)
	assert.ErrorIs(t, err, ErrInvalidWinner)

	// The final has no entrants yet.
	_, err = env.advancement.ReportResult(ctx, final.ID, seed1.ID)
	assert.ErrorIs(t, err, ErrMatchNotReady)
}

func TestReportResultAfterCancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	started := env.createStarted(t, 42, 4)
	seed1 := env.entryOf(t, started.ID, 1001)
	semi := env.matchAt(t, started.ID, 1, 0)

	_, err := env.lifecycle.Cancel(ctx, started.ID)
	require.NoError(t, err)

	_, err = env.advancement.ReportResult(ctx, semi.ID, seed1.ID)
	assert.ErrorIs(t, err, ErrMatchNotReady)
}

// Five entrants exercise the bye path end to end: three byes resolve at
// generation time and the lone round-1 match feeds a half-filled semifinal.
func TestReportResultWithByes(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	started := env.createStarted(t, 42, 5)
	require.Equal(t, 3, started.Rounds)

	seed1 := env.entryOf(t, started.ID, 1001)
	seed4 := env.entryOf(t, started.ID, 1004)

	bye := env.matchAt(t, started.ID, 1, 0)
	require.Equal(t, models.MatchStatusByeResolved, bye.Status)
	assert.Equal(t, seed1.ID, *bye.WinnerEntryID)

	// Byes are structural and cannot be reported.
	_, err := env.advancement.ReportResult(ctx, bye.ID, seed1.ID)
	assert.ErrorIs(t, err, ErrMatchAlreadyResolved)

	// The semifinal fed by two byes starts out ready.
	semi1 := env.matchAt(t, started.ID, 2, 1)
	assert.Equal(t, models.MatchStatusReady, semi1.Status)

	// Playing the 4v5 match completes the other semifinal's field.
	opener := env.matchAt(t, started.ID, 1, 1)
	require.Equal(t, models.MatchStatusReady, opener.Status)
	resolution, err := env.advancement.ReportResult(ctx, opener.ID, seed4.ID)
	require.NoError(t, err)
	require.NotNil(t, resolution.NextReadyMatch)
	assert.Equal(t, seed1.ID, *resolution.NextReadyMatch.Entry1ID)
	assert.Equal(t, seed4.ID, *resolution.NextReadyMatch.Entry2ID)
}

func TestOverrideResultRewritesDownstreamSlot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	started := env.createStarted(t, 42, 4)
	seed1 := env.entryOf(t, started.ID, 1001)
	seed4 := env.entryOf(t, started.ID, 1004)

	semi := env.matchAt(t, started.ID, 1, 0)
	_, err := env.advancement.ReportResult(ctx, semi.ID, seed1.ID)
	require.NoError(t, err)

	resolution, err := env.advancement.OverrideResult(ctx, semi.ID, seed4.ID)
	require.NoError(t, err)
	assert.Equal(t, seed4.ID, *resolution.CompletedMatch.WinnerEntryID)

	final := env.matchAt(t, started.ID, 2, 0)
	assert.Equal(t, seed4.ID, *final.Entry1ID)
}

func TestOverrideResultAfterDownstreamPlayed(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	started := env.createStarted(t, 42, 4)
	seed1 := env.entryOf(t, started.ID, 1001)
	seed2 := env.entryOf(t, started.ID, 1002)
	seed4 := env.entryOf(t, started.ID, 1004)

	semi0 := env.matchAt(t, started.ID, 1, 0)
	semi1 := env.matchAt(t, started.ID, 1, 1)
	_, err := env.advancement.ReportResult(ctx, semi0.ID, seed1.ID)
	require.NoError(t, err)
	_, err = env.advancement.ReportResult(ctx, semi1.ID, seed2.ID)
	require.NoError(t, err)

	final := env.matchAt(t, started.ID, 2, 0)
	_, err = env.advancement.ReportResult(ctx, final.ID, seed1.ID)
	require.NoError(t, err)

	// The final has been played: the semifinal result is locked in.
	_, err = env.advancement.OverrideResult(ctx, semi0.ID, seed4.ID)
	assert.ErrorIs(t, err, ErrDownstreamAlreadyAdvanced)
}

func TestOverrideResultOnlyCompletedMatches(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	started := env.createStarted(t, 42, 5)
	seed1 := env.entryOf(t, started.ID, 1001)

	// A ready match has no result to correct.
	opener := env.matchAt(t, started.ID, 1, 1)
	_, err := env.advancement.OverrideResult(ctx, opener.ID, *opener.Entry1ID)
	assert.ErrorIs(t, err, ErrMatchNotReady)

	// A bye is structural, not a reported result.
	bye := env.matchAt(t, started.ID, 1, 0)
	_, err = env.advancement.OverrideResult(ctx, bye.ID, seed1.ID)
	assert.ErrorIs(t, err, ErrMatchNotReady)
}

func TestOverrideResultFinalSwapsChampion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	started := env.createStarted(t, 42, 2)
	seed1 := env.entryOf(t, started.ID, 1001)
	seed2 := env.entryOf(t, started.ID, 1002)

	final := env.matchAt(t, started.ID, 1, 0)
	_, err := env.advancement.ReportResult(ctx, final.ID, seed1.ID)
	require.NoError(t, err)

	resolution, err := env.advancement.OverrideResult(ctx, final.ID, seed2.ID)
	require.NoError(t, err)
	assert.True(t, resolution.TournamentCompleted)
	assert.Equal(t, seed2.ID, *resolution.ChampionEntryID)

	fresh, err := env.lifecycle.GetByID(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PhaseCompleted, fresh.Phase)
	assert.Equal(t, seed2.ID, *fresh.ChampionEntryID)
	assert.Equal(t, int64(1002), *fresh.ChampionPlayerID)
	assert.Equal(t, int64(1001), *fresh.RunnerUpPlayerID)
}
