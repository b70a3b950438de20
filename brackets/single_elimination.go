package brackets

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/okhomin/bracket-engine/models"
)

var ErrNotEnoughEntrants = errors.New("not enough entrants to generate a single elimination bracket (minimum 2)")

type SingleEliminationGenerator struct {
}

func NewSingleEliminationGenerator() Generator {
	return &SingleEliminationGenerator{}
}

func (g *SingleEliminationGenerator) Name() string {
	return "SingleElimination"
}

// Generate builds every round of the bracket up front. Entries must be in
// registration order; seed s is entries[s-1]. With n entrants the bracket has
// ceil(log2(n)) rounds and 2^rounds positions; virtual seeds beyond n are
// byes, which land on the earliest registrants. Round-1 bye matches are
// created already resolved and their winners propagated into round 2, so the
// caller persists a bracket where every playable match is either ready or
// waiting on a feeder result.
func (g *SingleEliminationGenerator) Generate(ctx context.Context, params GenerateParams) ([]*models.Match, error) {
	entries := params.Entries
	n := len(entries)
	if n < 2 {
		return nil, ErrNotEnoughEntrants
	}

	rounds := int(math.Ceil(math.Log2(float64(n))))
	size := 1 << uint(rounds)

	arena := make([][]*models.Match, rounds+1)
	for r := 1; r <= rounds; r++ {
		matchesInRound := size >> uint(r)
		arena[r] = make([]*models.Match, matchesInRound)
		for slot := 0; slot < matchesInRound; slot++ {
			arena[r][slot] = &models.Match{
				TournamentID: params.Tournament.ID,
				Round:        r,
				Slot:         slot,
				Status:       models.MatchStatusUnassigned,
			}
		}
	}

	positions := seedPositions(size)
	for slot := 0; slot < size/2; slot++ {
		m := arena[1][slot]
		seed1 := positions[2*slot]
		seed2 := positions[2*slot+1]

		if seed1 <= n {
			id := entries[seed1-1].ID
			m.Entry1ID = &id
		} else {
			m.Bye1 = true
		}
		if seed2 <= n {
			id := entries[seed2-1].ID
			m.Entry2ID = &id
		} else {
			m.Bye2 = true
		}

		switch {
		case m.Entry1ID != nil && m.Entry2ID != nil:
			m.Status = models.MatchStatusReady
		case m.Entry1ID != nil && m.Bye2:
			m.Status = models.MatchStatusByeResolved
			m.WinnerEntryID = m.Entry1ID
		case m.Entry2ID != nil && m.Bye1:
			m.Status = models.MatchStatusByeResolved
			m.WinnerEntryID = m.Entry2ID
		default:
			// Seed s meets seed size+1-s, and byes = size-n < n, so two
			// virtual seeds can never share a round-1 match.
			return nil, fmt.Errorf("two byes paired in round 1 slot %d (entrants=%d, size=%d)", slot, n, size)
		}
	}

	// Push bye winners downstream before anything is persisted.
	for r := 1; r < rounds; r++ {
		for _, m := range arena[r] {
			if m.Status != models.MatchStatusByeResolved {
				continue
			}
			next := arena[r+1][m.Slot/2]
			if m.Slot%2 == 0 {
				next.Entry1ID = m.WinnerEntryID
			} else {
				next.Entry2ID = m.WinnerEntryID
			}
			if next.Entry1ID != nil && next.Entry2ID != nil {
				next.Status = models.MatchStatusReady
			}
		}
	}

	all := make([]*models.Match, 0, size-1)
	for r := 1; r <= rounds; r++ {
		all = append(all, arena[r]...)
	}
	return all, nil
}

// seedPositions returns the seeds in bracket-position order for a bracket of
// the given size (a power of two): 1, then 1,2, then 1,4,2,3, then
// 1,8,4,5,2,7,3,6 and so on. Consecutive pairs form the round-1 matches, so
// the top seeds are spread across opposite halves.
func seedPositions(size int) []int {
	positions := []int{1}
	for len(positions) < size {
		mirror := len(positions)*2 + 1
		next := make([]int, 0, len(positions)*2)
		for _, s := range positions {
			next = append(next, s, mirror-s)
		}
		positions = next
	}
	return positions
}
