package models

import "time"

// Entry is a player's registration in a tournament. Seed is nil while
// registration is open and frozen to the 1-based registration order when
// registration closes.
type Entry struct {
	ID           int       `json:"id" db:"id"`
	TournamentID int       `json:"tournament_id" db:"tournament_id"`
	PlayerID     int64     `json:"player_id" db:"player_id"`
	Seed         *int      `json:"seed,omitempty" db:"seed"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
