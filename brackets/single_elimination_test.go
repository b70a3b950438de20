package brackets

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/okhomin/bracket-engine/models"
)

func testEntries(n int) []models.Entry {
	entries := make([]models.Entry, n)
	base := time.Now()
	for i := 0; i < n; i++ {
		seed := i + 1
		entries[i] = models.Entry{
			ID:           100 + seed,
			TournamentID: 1,
			PlayerID:     int64(1000 + seed),
			Seed:         &seed,
			CreatedAt:    base.Add(time.Duration(i) * time.Second),
		}
	}
	return entries
}

func generate(t *testing.T, n int) []*models.Match {
	t.Helper()
	gen := NewSingleEliminationGenerator()
	matches, err := gen.Generate(context.Background(), GenerateParams{
		Tournament: &models.Tournament{ID: 1},
		Entries:    testEntries(n),
	})
	require.NoError(t, err)
	return matches
}

func TestSeedPositions(t *testing.T) {
	tests := []struct {
		size     int
		expected []int
	}{
		{1, []int{1}},
		{2, []int{1, 2}},
		{4, []int{1, 4, 2, 3}},
		{8, []int{1, 8, 4, 5, 2, 7, 3, 6}},
		{16, []int{1, 16, 8, 9, 4, 13, 5, 12, 2, 15, 7, 10, 3, 14, 6, 11}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.expected, seedPositions(tt.size), "size %d", tt.size)
	}
}

func TestGenerateRejectsTooFewEntrants(t *testing.T) {
	gen := NewSingleEliminationGenerator()
	for _, n := range []int{0, 1} {
		_, err := gen.Generate(context.Background(), GenerateParams{
			Tournament: &models.Tournament{ID: 1},
			Entries:    testEntries(n),
		})
		assert.ErrorIs(t, err, ErrNotEnoughEntrants, "n=%d", n)
	}
}

func TestGenerateTwoEntrants(t *testing.T) {
	matches := generate(t, 2)
	require.Len(t, matches, 1)

	final := matches[0]
	assert.Equal(t, 1, final.Round)
	assert.Equal(t, 0, final.Slot)
	assert.Equal(t, models.MatchStatusReady, final.Status)
	require.NotNil(t, final.Entry1ID)
	require.NotNil(t, final.Entry2ID)
	assert.Equal(t, 101, *final.Entry1ID)
	assert.Equal(t, 102, *final.Entry2ID)
}

// Five entrants produce a size-8 bracket: the three earliest registrants bye
// into round 2, and the round-2 match fed by two byes starts out ready.
func TestGenerateFiveEntrants(t *testing.T) {
	matches := generate(t, 5)
	require.Len(t, matches, 7)

	byRoundSlot := make(map[string]*models.Match)
	for _, m := range matches {
		byRoundSlot[fmt.Sprintf("%d/%d", m.Round, m.Slot)] = m
	}

	// Round 1: seeds pair 1v8, 4v5, 2v7, 3v6; seeds 6-8 are byes.
	slot0 := byRoundSlot["1/0"]
	require.Equal(t, models.MatchStatusByeResolved, slot0.Status)
	assert.Equal(t, 101, *slot0.Entry1ID)
	assert.True(t, slot0.Bye2)
	assert.Equal(t, 101, *slot0.WinnerEntryID)

	slot1 := byRoundSlot["1/1"]
	require.Equal(t, models.MatchStatusReady, slot1.Status)
	assert.Equal(t, 104, *slot1.Entry1ID)
	assert.Equal(t, 105, *slot1.Entry2ID)

	slot2 := byRoundSlot["1/2"]
	require.Equal(t, models.MatchStatusByeResolved, slot2.Status)
	assert.Equal(t, 102, *slot2.WinnerEntryID)

	slot3 := byRoundSlot["1/3"]
	require.Equal(t, models.MatchStatusByeResolved, slot3.Status)
	assert.Equal(t, 103, *slot3.WinnerEntryID)

	// Round 2 slot 0 holds the seed-1 bye winner and waits on the 4v5 match.
	semi0 := byRoundSlot["2/0"]
	require.NotNil(t, semi0.Entry1ID)
	assert.Equal(t, 101, *semi0.Entry1ID)
	assert.Nil(t, semi0.Entry2ID)
	assert.Equal(t, models.MatchStatusUnassigned, semi0.Status)

	// Round 2 slot 1 was fed by two byes and is immediately playable.
	semi1 := byRoundSlot["2/1"]
	require.Equal(t, models.MatchStatusReady, semi1.Status)
	assert.Equal(t, 102, *semi1.Entry1ID)
	assert.Equal(t, 103, *semi1.Entry2ID)

	final := byRoundSlot["3/0"]
	assert.Equal(t, models.MatchStatusUnassigned, final.Status)
	assert.Nil(t, final.Entry1ID)
	assert.Nil(t, final.Entry2ID)
}

func TestGenerateProperties(t *testing.T) {
	for n := 2; n <= 33; n++ {
		matches := generate(t, n)

		rounds := int(math.Ceil(math.Log2(float64(n))))
		size := 1 << uint(rounds)

		assert.Len(t, matches, size-1, "n=%d", n)

		matchesPerRound := make(map[int]int)
		byeWinners := make(map[int]bool)
		seen := make(map[int]int)
		for _, m := range matches {
			matchesPerRound[m.Round]++
			if m.Round == 1 {
				if m.Entry1ID != nil {
					seen[*m.Entry1ID]++
				}
				if m.Entry2ID != nil {
					seen[*m.Entry2ID]++
				}
				if m.Status == models.MatchStatusByeResolved {
					assert.NotNil(t, m.WinnerEntryID, "n=%d", n)
					byeWinners[*m.WinnerEntryID] = true
					assert.True(t, m.Bye1 != m.Bye2, "n=%d: a bye match has exactly one bye side", n)
				}
			}
		}

		// Each round halves the field.
		for r := 1; r <= rounds; r++ {
			assert.Equal(t, size>>uint(r), matchesPerRound[r], "n=%d round=%d", n, r)
		}

		// Byes go to the earliest registrants, and only to them.
		byes := size - n
		assert.Len(t, byeWinners, byes, "n=%d", n)
		entries := testEntries(n)
		for i := 0; i < byes; i++ {
			assert.True(t, byeWinners[entries[i].ID], "n=%d: entry %d should have a bye", n, entries[i].ID)
		}

		// Every entrant appears exactly once in round 1.
		assert.Len(t, seen, n, "n=%d", n)
		for id, count := range seen {
			assert.Equal(t, 1, count, "n=%d entry=%d", n, id)
		}
	}
}
