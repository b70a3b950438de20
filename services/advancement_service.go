package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/okhomin/bracket-engine/models"
	"github.com/okhomin/bracket-engine/repositories"
)

// MatchResolution describes what a recorded result changed: the finished
// match, the downstream match if it just became ready, and whether the
// tournament is over.
type MatchResolution struct {
	CompletedMatch      *models.Match `json:"completed_match"`
	NextReadyMatch      *models.Match `json:"next_ready_match,omitempty"`
	TournamentCompleted bool          `json:"tournament_completed"`
	ChampionEntryID     *int          `json:"champion_entry_id,omitempty"`
}

// AdvancementService records match results and moves winners through the
// bracket. Reporting is idempotent in the retry sense: the first report wins,
// every retry or concurrent duplicate gets ErrMatchAlreadyResolved and
// changes nothing.
type AdvancementService interface {
	ReportResult(ctx context.Context, matchID, winnerEntryID int) (*MatchResolution, error)
	// OverrideResult corrects the winner of a completed match, as long as
	// the downstream match has not been played yet. It rewrites the
	// downstream slot but never cascades further on its own.
	OverrideResult(ctx context.Context, matchID, winnerEntryID int) (*MatchResolution, error)
	ListMatches(ctx context.Context, tournamentID int) ([]models.Match, error)
}

type advancementService struct {
	tournamentRepo repositories.TournamentRepository
	entryRepo      repositories.EntryRepository
	matchRepo      repositories.MatchRepository
	transactor     repositories.Transactor
	snapshots      SnapshotService
	logger         *slog.Logger
}

func NewAdvancementService(
	tournamentRepo repositories.TournamentRepository,
	entryRepo repositories.EntryRepository,
	matchRepo repositories.MatchRepository,
	transactor repositories.Transactor,
	snapshots SnapshotService,
	logger *slog.Logger,
) AdvancementService {
	return &advancementService{
		tournamentRepo: tournamentRepo,
		entryRepo:      entryRepo,
		matchRepo:      matchRepo,
		transactor:     transactor,
		snapshots:      snapshots,
		logger:         logger,
	}
}

func (s *advancementService) ReportResult(ctx context.Context, matchID, winnerEntryID int) (*MatchResolution, error) {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	tournament, err := s.tournamentRepo.GetByID(ctx, match.TournamentID)
	if err != nil {
		return nil, err
	}
	if tournament.Phase != models.PhaseInProgress {
		return nil, fmt.Errorf("%w: tournament is %s", ErrMatchNotReady, tournament.Phase)
	}

	switch match.Status {
	case models.MatchStatusReady:
	case models.MatchStatusUnassigned:
		return nil, fmt.Errorf("%w: entrants are not decided yet", ErrMatchNotReady)
	default:
		return nil, ErrMatchAlreadyResolved
	}
	if !match.HasEntrant(winnerEntryID) {
		return nil, fmt.Errorf("%w: entry %d", ErrInvalidWinner, winnerEntryID)
	}

	isFinal := match.Round == tournament.Rounds

	var next *models.Match
	if !isFinal {
		next, err = s.matchRepo.GetByRoundSlot(ctx, tournament.ID, match.Round+1, match.Slot/2)
		if err != nil {
			return nil, fmt.Errorf("failed to load downstream match: %w", err)
		}
	}

	err = s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		// Optimistic claim: exactly one reporter wins the ready->reported
		// compare-and-set, everyone else resolves to already-recorded.
		if txErr := s.matchRepo.ClaimResult(ctx, exec, matchID, winnerEntryID); txErr != nil {
			if errors.Is(txErr, repositories.ErrMatchStatusConflict) {
				return ErrMatchAlreadyResolved
			}
			return txErr
		}

		if isFinal {
			if txErr := s.tournamentRepo.UpdatePhase(ctx, exec, tournament.ID, models.PhaseInProgress, models.PhaseCompleted); txErr != nil {
				if errors.Is(txErr, repositories.ErrTournamentPhaseConflict) {
					return fmt.Errorf("%w: tournament is no longer in progress", ErrMatchNotReady)
				}
				return txErr
			}
			winner := winnerEntryID
			if txErr := s.tournamentRepo.SetChampion(ctx, exec, tournament.ID, &winner); txErr != nil {
				return txErr
			}
			championID, runnerUpID, txErr := s.trophyPlayers(ctx, match, winnerEntryID)
			if txErr != nil {
				return txErr
			}
			if txErr := s.tournamentRepo.SetTrophies(ctx, exec, tournament.ID, championID, runnerUpID); txErr != nil {
				return txErr
			}
		} else {
			if txErr := s.matchRepo.SetSlotEntrant(ctx, exec, next.ID, match.Slot%2, winnerEntryID); txErr != nil {
				return fmt.Errorf("failed to advance winner to round %d slot %d: %w", next.Round, next.Slot, txErr)
			}
		}

		return s.matchRepo.MarkCompleted(ctx, exec, matchID)
	})
	if err != nil {
		return nil, err
	}

	resolution := &MatchResolution{TournamentCompleted: isFinal}
	resolution.CompletedMatch, err = s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if isFinal {
		winner := winnerEntryID
		resolution.ChampionEntryID = &winner
		s.logger.Info("tournament completed",
			slog.Int("tournament_id", tournament.ID),
			slog.Int("champion_entry_id", winnerEntryID))
	} else {
		refreshed, getErr := s.matchRepo.GetByID(ctx, next.ID)
		if getErr != nil {
			return nil, getErr
		}
		if refreshed.Status == models.MatchStatusReady {
			resolution.NextReadyMatch = refreshed
		}
		s.logger.Info("match result recorded",
			slog.Int("tournament_id", tournament.ID),
			slog.Int("match_id", matchID),
			slog.Int("winner_entry_id", winnerEntryID))
	}

	s.snapshots.Publish(ctx, tournament.ID)
	return resolution, nil
}

func (s *advancementService) OverrideResult(ctx context.Context, matchID, winnerEntryID int) (*MatchResolution, error) {
	match, err := s.getMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	// Byes are structural, not reported results, so they cannot be
	// overridden either.
	if match.Status != models.MatchStatusCompleted {
		return nil, fmt.Errorf("%w: match is %s", ErrMatchNotReady, match.Status)
	}
	if !match.HasEntrant(winnerEntryID) {
		return nil, fmt.Errorf("%w: entry %d", ErrInvalidWinner, winnerEntryID)
	}

	tournament, err := s.tournamentRepo.GetByID(ctx, match.TournamentID)
	if err != nil {
		return nil, err
	}
	isFinal := match.Round == tournament.Rounds

	var next *models.Match
	if !isFinal {
		next, err = s.matchRepo.GetByRoundSlot(ctx, tournament.ID, match.Round+1, match.Slot/2)
		if err != nil {
			return nil, fmt.Errorf("failed to load downstream match: %w", err)
		}
		if next.Status != models.MatchStatusUnassigned && next.Status != models.MatchStatusReady {
			return nil, fmt.Errorf("%w: round %d slot %d is %s",
				ErrDownstreamAlreadyAdvanced, next.Round, next.Slot, next.Status)
		}
	}

	err = s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if txErr := s.matchRepo.SetWinner(ctx, exec, matchID, winnerEntryID); txErr != nil {
			if errors.Is(txErr, repositories.ErrMatchStatusConflict) {
				return fmt.Errorf("%w: match is no longer completed", ErrMatchNotReady)
			}
			return txErr
		}
		if isFinal {
			winner := winnerEntryID
			if txErr := s.tournamentRepo.SetChampion(ctx, exec, tournament.ID, &winner); txErr != nil {
				return txErr
			}
			championID, runnerUpID, txErr := s.trophyPlayers(ctx, match, winnerEntryID)
			if txErr != nil {
				return txErr
			}
			return s.tournamentRepo.SetTrophies(ctx, exec, tournament.ID, championID, runnerUpID)
		}
		if txErr := s.matchRepo.ReplaceSlotEntrant(ctx, exec, next.ID, match.Slot%2, winnerEntryID); txErr != nil {
			if errors.Is(txErr, repositories.ErrMatchStatusConflict) {
				return fmt.Errorf("%w: round %d slot %d", ErrDownstreamAlreadyAdvanced, next.Round, next.Slot)
			}
			return txErr
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("match result overridden",
		slog.Int("tournament_id", tournament.ID),
		slog.Int("match_id", matchID),
		slog.Int("winner_entry_id", winnerEntryID))

	resolution := &MatchResolution{TournamentCompleted: isFinal}
	resolution.CompletedMatch, err = s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if isFinal {
		winner := winnerEntryID
		resolution.ChampionEntryID = &winner
	} else {
		refreshed, getErr := s.matchRepo.GetByID(ctx, next.ID)
		if getErr != nil {
			return nil, getErr
		}
		if refreshed.Status == models.MatchStatusReady {
			resolution.NextReadyMatch = refreshed
		}
	}

	s.snapshots.Publish(ctx, tournament.ID)
	return resolution, nil
}

func (s *advancementService) ListMatches(ctx context.Context, tournamentID int) ([]models.Match, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return s.matchRepo.ListByTournament(ctx, tournamentID)
}

func (s *advancementService) getMatch(ctx context.Context, matchID int) (*models.Match, error) {
	match, err := s.matchRepo.GetByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, repositories.ErrMatchNotFound) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return match, nil
}

// trophyPlayers resolves the champion's and runner-up's player ids from a
// final match and its winner.
func (s *advancementService) trophyPlayers(ctx context.Context, final *models.Match, winnerEntryID int) (*int64, *int64, error) {
	var loserEntryID *int
	if final.Entry1ID != nil && *final.Entry1ID != winnerEntryID {
		loserEntryID = final.Entry1ID
	} else if final.Entry2ID != nil && *final.Entry2ID != winnerEntryID {
		loserEntryID = final.Entry2ID
	}

	winnerEntry, err := s.entryRepo.GetByID(ctx, winnerEntryID)
	if err != nil {
		return nil, nil, err
	}
	championID := winnerEntry.PlayerID

	var runnerUpID *int64
	if loserEntryID != nil {
		loserEntry, err := s.entryRepo.GetByID(ctx, *loserEntryID)
		if err != nil {
			return nil, nil, err
		}
		runnerUpID = &loserEntry.PlayerID
	}
	return &championID, runnerUpID, nil
}
