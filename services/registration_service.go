package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/okhomin/bracket-engine/models"
	"github.com/okhomin/bracket-engine/repositories"
)

// RegistrationService is the entry registry. Both registering and
// unregistering are only possible while the tournament is in reg_open.
type RegistrationService interface {
	Register(ctx context.Context, tournamentID int, playerID int64) (*models.Entry, error)
	Unregister(ctx context.Context, tournamentID int, playerID int64) error
	ListEntries(ctx context.Context, tournamentID int) ([]models.Entry, error)
}

type registrationService struct {
	tournamentRepo repositories.TournamentRepository
	entryRepo      repositories.EntryRepository
	snapshots      SnapshotService
	logger         *slog.Logger
}

func NewRegistrationService(
	tournamentRepo repositories.TournamentRepository,
	entryRepo repositories.EntryRepository,
	snapshots SnapshotService,
	logger *slog.Logger,
) RegistrationService {
	return &registrationService{
		tournamentRepo: tournamentRepo,
		entryRepo:      entryRepo,
		snapshots:      snapshots,
		logger:         logger,
	}
}

func (s *registrationService) Register(ctx context.Context, tournamentID int, playerID int64) (*models.Entry, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	if tournament.Phase != models.PhaseRegOpen {
		return nil, fmt.Errorf("%w: tournament is %s", ErrRegistrationClosed, tournament.Phase)
	}

	entry := &models.Entry{
		TournamentID: tournamentID,
		PlayerID:     playerID,
	}
	if err := s.entryRepo.Create(ctx, nil, entry); err != nil {
		if errors.Is(err, repositories.ErrEntryDuplicate) {
			return nil, ErrDuplicateEntry
		}
		return nil, err
	}

	s.logger.Info("player registered",
		slog.Int("tournament_id", tournamentID),
		slog.Int64("player_id", playerID),
		slog.Int("entry_id", entry.ID))
	s.snapshots.Publish(ctx, tournamentID)
	return entry, nil
}

func (s *registrationService) Unregister(ctx context.Context, tournamentID int, playerID int64) error {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return ErrTournamentNotFound
		}
		return err
	}
	if tournament.Phase != models.PhaseRegOpen {
		return fmt.Errorf("%w: tournament is %s", ErrRegistrationClosed, tournament.Phase)
	}

	if err := s.entryRepo.DeleteByPlayer(ctx, nil, tournamentID, playerID); err != nil {
		if errors.Is(err, repositories.ErrEntryNotFound) {
			return ErrEntryNotFound
		}
		return err
	}

	s.logger.Info("player unregistered",
		slog.Int("tournament_id", tournamentID),
		slog.Int64("player_id", playerID))
	s.snapshots.Publish(ctx, tournamentID)
	return nil
}

func (s *registrationService) ListEntries(ctx context.Context, tournamentID int) ([]models.Entry, error) {
	if _, err := s.tournamentRepo.GetByID(ctx, tournamentID); err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return s.entryRepo.ListByTournament(ctx, tournamentID)
}
