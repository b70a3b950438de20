package models

import "time"

// DashboardSnapshot is the full dashboard projection for one tournament:
// everything the guild dashboard renders, rebuilt from scratch after every
// successful mutation.
type DashboardSnapshot struct {
	TournamentID    int             `json:"tournament_id"`
	GuildID         int64           `json:"guild_id"`
	Code            string          `json:"code"`
	Name            string          `json:"name"`
	Phase           TournamentPhase `json:"phase"`
	EntrantCount    int             `json:"entrant_count"`
	Rounds          int             `json:"rounds"`
	Bracket         []RoundView     `json:"bracket,omitempty"`
	AwaitingReport  []MatchView     `json:"awaiting_report,omitempty"`
	ChampionEntryID *int            `json:"champion_entry_id,omitempty"`
	GeneratedAt     time.Time       `json:"generated_at"`
}

type RoundView struct {
	Round   int         `json:"round"`
	Matches []MatchView `json:"matches"`
}

type MatchView struct {
	MatchID       int         `json:"match_id"`
	Round         int         `json:"round"`
	Slot          int         `json:"slot"`
	Entrant1      SlotView    `json:"entrant1"`
	Entrant2      SlotView    `json:"entrant2"`
	WinnerEntryID *int        `json:"winner_entry_id,omitempty"`
	Status        MatchStatus `json:"status"`
}

type SlotView struct {
	EntryID  *int   `json:"entry_id,omitempty"`
	PlayerID *int64 `json:"player_id,omitempty"`
	Seed     *int   `json:"seed,omitempty"`
	Bye      bool   `json:"bye,omitempty"`
}
