package models

import "time"

// TournamentPhase represents the lifecycle phases, matching the ENUM in the DB.
type TournamentPhase string

const (
	PhaseDraft      TournamentPhase = "draft"
	PhaseRegOpen    TournamentPhase = "reg_open"
	PhaseRegClosed  TournamentPhase = "reg_closed"
	PhaseInProgress TournamentPhase = "in_progress"
	PhaseCompleted  TournamentPhase = "completed"
	PhaseCancelled  TournamentPhase = "cancelled"
	PhaseArchived   TournamentPhase = "archived"
)

// Terminal reports whether the phase admits no further play.
// A guild's "active" tournament is its newest non-terminal one.
func (p TournamentPhase) Terminal() bool {
	switch p {
	case PhaseCompleted, PhaseCancelled, PhaseArchived:
		return true
	}
	return false
}

type Tournament struct {
	ID               int             `json:"id" db:"id"`
	GuildID          int64           `json:"guild_id" db:"guild_id"`
	Name             string          `json:"name" db:"name"`
	Code             string          `json:"code" db:"code"`
	Phase            TournamentPhase `json:"phase" db:"phase"`
	EntrantCount     int             `json:"entrant_count" db:"entrant_count"`
	Rounds           int             `json:"rounds" db:"rounds"`
	ChampionEntryID  *int            `json:"champion_entry_id,omitempty" db:"champion_entry_id"`
	ChampionPlayerID *int64          `json:"champion_player_id,omitempty" db:"champion_player_id"`
	RunnerUpPlayerID *int64          `json:"runner_up_player_id,omitempty" db:"runner_up_player_id"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}
