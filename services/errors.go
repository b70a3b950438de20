package services

import "errors"

// Sentinel errors shared across the services and the HTTP error mapping.
var (
	// Not found.
	ErrTournamentNotFound = errors.New("tournament not found")
	ErrEntryNotFound      = errors.New("entry not found")
	ErrMatchNotFound      = errors.New("match not found")

	// Validation.
	ErrValidationFailed = errors.New("validation failed")

	// Lifecycle.
	ErrInvalidPhaseTransition = errors.New("invalid tournament phase transition")
	ErrInsufficientEntrants   = errors.New("at least 2 entrants are required to start")

	// Registration.
	ErrRegistrationClosed = errors.New("tournament registration is not open")
	ErrDuplicateEntry     = errors.New("player is already registered for this tournament")

	// Match advancement.
	ErrMatchNotReady             = errors.New("match is not ready to be reported")
	ErrInvalidWinner             = errors.New("winner is not an entrant of this match")
	ErrMatchAlreadyResolved      = errors.New("match result has already been recorded")
	ErrDownstreamAlreadyAdvanced = errors.New("downstream match has already been played")

	// Admin.
	ErrTournamentNotArchivable = errors.New("only completed or cancelled tournaments can be archived")
	ErrWorkspaceAlreadyGone    = errors.New("guild workspace is already gone")
)
