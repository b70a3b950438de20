package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/okhomin/bracket-engine/brackets"
	"github.com/okhomin/bracket-engine/models"
	"github.com/okhomin/bracket-engine/repositories"
)

const codeGenerationAttempts = 5

// LifecycleService drives the tournament phase machine:
// draft -> reg_open -> reg_closed -> in_progress -> completed, with cancel
// reachable from every non-terminal phase. Invalid transitions fail with
// ErrInvalidPhaseTransition and mutate nothing.
type LifecycleService interface {
	Create(ctx context.Context, guildID int64, name string) (*models.Tournament, error)
	OpenRegistration(ctx context.Context, tournamentID int) (*models.Tournament, error)
	CloseRegistration(ctx context.Context, tournamentID int) (*models.Tournament, error)
	Start(ctx context.Context, tournamentID int) (*models.Tournament, error)
	Cancel(ctx context.Context, tournamentID int) (*models.Tournament, error)
	GetByID(ctx context.Context, tournamentID int) (*models.Tournament, error)
	// GetByCodeOrID resolves a reference that is either a numeric id or a
	// tournament code (case-insensitive).
	GetByCodeOrID(ctx context.Context, ref string) (*models.Tournament, error)
	// GetActiveForGuild returns the guild's newest non-terminal tournament.
	// Which tournament is "active" is always derived, never stored.
	GetActiveForGuild(ctx context.Context, guildID int64) (*models.Tournament, error)
	ListForGuild(ctx context.Context, guildID int64) ([]models.Tournament, error)
}

type lifecycleService struct {
	tournamentRepo repositories.TournamentRepository
	entryRepo      repositories.EntryRepository
	matchRepo      repositories.MatchRepository
	transactor     repositories.Transactor
	generator      brackets.Generator
	snapshots      SnapshotService
	logger         *slog.Logger
}

func NewLifecycleService(
	tournamentRepo repositories.TournamentRepository,
	entryRepo repositories.EntryRepository,
	matchRepo repositories.MatchRepository,
	transactor repositories.Transactor,
	generator brackets.Generator,
	snapshots SnapshotService,
	logger *slog.Logger,
) LifecycleService {
	return &lifecycleService{
		tournamentRepo: tournamentRepo,
		entryRepo:      entryRepo,
		matchRepo:      matchRepo,
		transactor:     transactor,
		generator:      generator,
		snapshots:      snapshots,
		logger:         logger,
	}
}

func (s *lifecycleService) Create(ctx context.Context, guildID int64, name string) (*models.Tournament, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("%w: tournament name is required", ErrValidationFailed)
	}

	// A guild may hold several coexisting tournaments; creating a new one
	// never retires or rejects an existing active one. It simply becomes
	// the newest, and therefore the guild's active tournament.
	tournament := &models.Tournament{
		GuildID: guildID,
		Name:    name,
		Phase:   models.PhaseDraft,
	}

	var err error
	for attempt := 0; attempt < codeGenerationAttempts; attempt++ {
		tournament.Code = newTournamentCode()
		err = s.tournamentRepo.Create(ctx, nil, tournament)
		if !errors.Is(err, repositories.ErrTournamentCodeConflict) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create tournament: %w", err)
	}

	s.logger.Info("tournament created",
		slog.Int("tournament_id", tournament.ID),
		slog.Int64("guild_id", guildID),
		slog.String("code", tournament.Code))
	s.snapshots.Publish(ctx, tournament.ID)
	return tournament, nil
}

func (s *lifecycleService) OpenRegistration(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	return s.transition(ctx, tournamentID, models.PhaseRegOpen, nil)
}

func (s *lifecycleService) CloseRegistration(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	return s.transition(ctx, tournamentID, models.PhaseRegClosed, func(exec repositories.SQLExecutor, t *models.Tournament) error {
		// Freeze the field: seeds are the registration order, fixed from
		// here on even if the bracket is generated much later.
		if err := s.entryRepo.AssignSeeds(ctx, exec, t.ID); err != nil {
			return err
		}
		count, err := s.entryRepo.CountByTournament(ctx, t.ID)
		if err != nil {
			return err
		}
		t.EntrantCount = count
		return s.tournamentRepo.SetBracketShape(ctx, exec, t.ID, count, 0)
	})
}

func (s *lifecycleService) Start(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if !canTransition(tournament.Phase, models.PhaseInProgress) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidPhaseTransition, tournament.Phase, models.PhaseInProgress)
	}

	entries, err := s.entryRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if len(entries) < 2 {
		return nil, fmt.Errorf("%w: have %d", ErrInsufficientEntrants, len(entries))
	}

	matches, err := s.generator.Generate(ctx, brackets.GenerateParams{
		Tournament: tournament,
		Entries:    entries,
	})
	if err != nil {
		if errors.Is(err, brackets.ErrNotEnoughEntrants) {
			return nil, fmt.Errorf("%w: have %d", ErrInsufficientEntrants, len(entries))
		}
		return nil, fmt.Errorf("failed to generate bracket for tournament %d: %w", tournamentID, err)
	}
	rounds := matches[len(matches)-1].Round

	// Phase commit and full bracket materialization are one atomic unit: a
	// started tournament always has its complete bracket.
	err = s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if txErr := s.tournamentRepo.UpdatePhase(ctx, exec, tournamentID, tournament.Phase, models.PhaseInProgress); txErr != nil {
			if errors.Is(txErr, repositories.ErrTournamentPhaseConflict) {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidPhaseTransition, tournament.Phase, models.PhaseInProgress)
			}
			return txErr
		}
		if txErr := s.tournamentRepo.SetBracketShape(ctx, exec, tournamentID, len(entries), rounds); txErr != nil {
			return txErr
		}
		for _, m := range matches {
			if txErr := s.matchRepo.Create(ctx, exec, m); txErr != nil {
				return txErr
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tournament started",
		slog.Int("tournament_id", tournamentID),
		slog.Int("entrants", len(entries)),
		slog.Int("rounds", rounds))
	s.snapshots.Publish(ctx, tournamentID)
	return s.GetByID(ctx, tournamentID)
}

func (s *lifecycleService) Cancel(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	return s.transition(ctx, tournamentID, models.PhaseCancelled, nil)
}

// transition performs a single phase move with an optional extra step inside
// the same transaction. The phase update is a compare-and-set: a concurrent
// mover turns the conflict into ErrInvalidPhaseTransition for the loser.
func (s *lifecycleService) transition(
	ctx context.Context,
	tournamentID int,
	to models.TournamentPhase,
	step func(exec repositories.SQLExecutor, t *models.Tournament) error,
) (*models.Tournament, error) {
	tournament, err := s.GetByID(ctx, tournamentID)
	if err != nil {
		return nil, err
	}
	if !canTransition(tournament.Phase, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidPhaseTransition, tournament.Phase, to)
	}

	err = s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if txErr := s.tournamentRepo.UpdatePhase(ctx, exec, tournamentID, tournament.Phase, to); txErr != nil {
			if errors.Is(txErr, repositories.ErrTournamentPhaseConflict) {
				return fmt.Errorf("%w: %s -> %s", ErrInvalidPhaseTransition, tournament.Phase, to)
			}
			return txErr
		}
		if step != nil {
			return step(exec, tournament)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("tournament phase changed",
		slog.Int("tournament_id", tournamentID),
		slog.String("from", string(tournament.Phase)),
		slog.String("to", string(to)))
	s.snapshots.Publish(ctx, tournamentID)
	return s.GetByID(ctx, tournamentID)
}

func (s *lifecycleService) GetByID(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return tournament, nil
}

func (s *lifecycleService) GetByCodeOrID(ctx context.Context, ref string) (*models.Tournament, error) {
	ref = strings.TrimSpace(ref)
	if id, err := strconv.Atoi(ref); err == nil {
		return s.GetByID(ctx, id)
	}
	tournament, err := s.tournamentRepo.GetByCode(ctx, strings.ToUpper(ref))
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return tournament, nil
}

func (s *lifecycleService) GetActiveForGuild(ctx context.Context, guildID int64) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetActiveByGuild(ctx, guildID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return tournament, nil
}

func (s *lifecycleService) ListForGuild(ctx context.Context, guildID int64) ([]models.Tournament, error) {
	return s.tournamentRepo.ListByGuild(ctx, guildID)
}
