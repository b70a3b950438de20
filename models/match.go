package models

import "time"

type MatchStatus string

const (
	MatchStatusUnassigned  MatchStatus = "unassigned"
	MatchStatusReady       MatchStatus = "ready"
	MatchStatusReported    MatchStatus = "reported"
	MatchStatusCompleted   MatchStatus = "completed"
	MatchStatusByeResolved MatchStatus = "bye_resolved"
)

// Match is one cell of the bracket, addressed by (round, slot). Round is
// 1-based, slot is 0-based within the round. A nil entrant with the bye flag
// set is a literal BYE; a nil entrant without it is a pending feeder result.
type Match struct {
	ID            int         `json:"id" db:"id"`
	TournamentID  int         `json:"tournament_id" db:"tournament_id"`
	Round         int         `json:"round" db:"round"`
	Slot          int         `json:"slot" db:"slot"`
	Entry1ID      *int        `json:"entry1_id,omitempty" db:"entry1_id"`
	Entry2ID      *int        `json:"entry2_id,omitempty" db:"entry2_id"`
	Bye1          bool        `json:"bye1" db:"bye1"`
	Bye2          bool        `json:"bye2" db:"bye2"`
	WinnerEntryID *int        `json:"winner_entry_id,omitempty" db:"winner_entry_id"`
	Status        MatchStatus `json:"status" db:"status"`
	CreatedAt     time.Time   `json:"created_at" db:"created_at"`
}

// HasEntrant reports whether entryID occupies one of the match's slots.
func (m *Match) HasEntrant(entryID int) bool {
	if m.Entry1ID != nil && *m.Entry1ID == entryID {
		return true
	}
	if m.Entry2ID != nil && *m.Entry2ID == entryID {
		return true
	}
	return false
}
