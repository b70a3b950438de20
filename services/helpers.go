package services

import (
	"math/rand/v2"
	"strings"

	"github.com/okhomin/bracket-engine/models"
)

// Tournament codes avoid 0/O and 1/I so they survive being read aloud.
const (
	codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength   = 8
)

func newTournamentCode() string {
	var b strings.Builder
	b.Grow(codeLength)
	for i := 0; i < codeLength; i++ {
		b.WriteByte(codeAlphabet[rand.IntN(len(codeAlphabet))])
	}
	return b.String()
}

var phaseTransitions = map[models.TournamentPhase][]models.TournamentPhase{
	models.PhaseDraft:      {models.PhaseRegOpen, models.PhaseCancelled},
	models.PhaseRegOpen:    {models.PhaseRegClosed, models.PhaseCancelled},
	models.PhaseRegClosed:  {models.PhaseInProgress, models.PhaseCancelled},
	models.PhaseInProgress: {models.PhaseCompleted, models.PhaseCancelled},
	models.PhaseCompleted:  {models.PhaseArchived},
	models.PhaseCancelled:  {models.PhaseArchived},
	models.PhaseArchived:   {},
}

func canTransition(from, to models.TournamentPhase) bool {
	for _, allowed := range phaseTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Dummy entrants for dev simulation live far above any real chat-platform
// snowflake id.
const dummyPlayerFloor int64 = 9_900_000_000_000_000

func isDummyPlayerID(playerID int64) bool {
	return playerID >= dummyPlayerFloor
}
