package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/okhomin/bracket-engine/models"
	"github.com/okhomin/bracket-engine/repositories"
	"github.com/okhomin/bracket-engine/storage"
)

// GuildWorkspace is the chat-platform collaborator owning the guild's
// channels and dashboard surfaces. Teardown removes them; a workspace that is
// already gone reports ErrWorkspaceAlreadyGone.
type GuildWorkspace interface {
	Teardown(ctx context.Context, guildID int64) error
}

type AdminService interface {
	// FactoryReset wipes every tournament, entry and match of the guild in
	// one all-or-nothing transaction. Resetting a guild with no data is a
	// harmless no-op.
	FactoryReset(ctx context.Context, guildID int64) error
	// Archive finalizes a completed or cancelled tournament: the final
	// snapshot is exported to object storage (when configured), bracket
	// data is deleted, and only the trophy row remains.
	Archive(ctx context.Context, tournamentID int) (*models.Tournament, error)
}

type adminService struct {
	tournamentRepo repositories.TournamentRepository
	entryRepo      repositories.EntryRepository
	matchRepo      repositories.MatchRepository
	transactor     repositories.Transactor
	snapshots      SnapshotService
	uploader       storage.FileUploader
	workspace      GuildWorkspace
	logger         *slog.Logger
}

func NewAdminService(
	tournamentRepo repositories.TournamentRepository,
	entryRepo repositories.EntryRepository,
	matchRepo repositories.MatchRepository,
	transactor repositories.Transactor,
	snapshots SnapshotService,
	uploader storage.FileUploader,
	workspace GuildWorkspace,
	logger *slog.Logger,
) AdminService {
	return &adminService{
		tournamentRepo: tournamentRepo,
		entryRepo:      entryRepo,
		matchRepo:      matchRepo,
		transactor:     transactor,
		snapshots:      snapshots,
		uploader:       uploader,
		workspace:      workspace,
		logger:         logger,
	}
}

func (s *adminService) FactoryReset(ctx context.Context, guildID int64) error {
	var deleted int64
	err := s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if txErr := s.matchRepo.DeleteByGuild(ctx, exec, guildID); txErr != nil {
			return txErr
		}
		if txErr := s.entryRepo.DeleteByGuild(ctx, exec, guildID); txErr != nil {
			return txErr
		}
		var txErr error
		deleted, txErr = s.tournamentRepo.DeleteByGuild(ctx, exec, guildID)
		return txErr
	})
	if err != nil {
		return fmt.Errorf("failed to factory reset guild %d: %w", guildID, err)
	}

	if s.workspace != nil {
		if err := s.workspace.Teardown(ctx, guildID); err != nil {
			if errors.Is(err, ErrWorkspaceAlreadyGone) {
				s.logger.Info("guild workspace already gone", slog.Int64("guild_id", guildID))
			} else {
				// The engine's data is gone either way; a half-torn-down
				// workspace is for the operator to clean up.
				s.logger.Warn("guild workspace teardown failed",
					slog.Int64("guild_id", guildID), slog.Any("error", err))
			}
		}
	}

	s.logger.Info("guild factory reset",
		slog.Int64("guild_id", guildID),
		slog.Int64("tournaments_deleted", deleted))
	return nil
}

func (s *adminService) Archive(ctx context.Context, tournamentID int) (*models.Tournament, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	if tournament.Phase != models.PhaseCompleted && tournament.Phase != models.PhaseCancelled {
		return nil, fmt.Errorf("%w: tournament is %s", ErrTournamentNotArchivable, tournament.Phase)
	}

	// Export first: if the upload fails the tournament stays archivable
	// with all its data intact.
	snapshot, err := s.snapshots.BuildSnapshot(ctx, tournamentID)
	if err != nil {
		return nil, fmt.Errorf("failed to build final snapshot for tournament %d: %w", tournamentID, err)
	}
	var exportKey string
	if s.uploader != nil {
		payload, marshalErr := json.Marshal(snapshot)
		if marshalErr != nil {
			return nil, fmt.Errorf("failed to marshal final snapshot for tournament %d: %w", tournamentID, marshalErr)
		}
		exportKey = fmt.Sprintf("archives/%d/%s.json", tournament.GuildID, tournament.Code)
		if _, upErr := s.uploader.Upload(ctx, exportKey, "application/json", bytes.NewReader(payload)); upErr != nil {
			return nil, fmt.Errorf("failed to export final snapshot for tournament %d: %w", tournamentID, upErr)
		}
		s.logger.Info("final snapshot exported",
			slog.Int("tournament_id", tournamentID), slog.String("key", exportKey))
	}

	err = s.transactor.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		if txErr := s.matchRepo.DeleteByTournament(ctx, exec, tournamentID); txErr != nil {
			return txErr
		}
		// champion_entry_id points at a row being deleted here; the trophy
		// player ids on the tournament row survive the archive.
		if txErr := s.tournamentRepo.SetChampion(ctx, exec, tournamentID, nil); txErr != nil {
			return txErr
		}
		if txErr := s.entryRepo.DeleteByTournament(ctx, exec, tournamentID); txErr != nil {
			return txErr
		}
		if txErr := s.tournamentRepo.UpdatePhase(ctx, exec, tournamentID, tournament.Phase, models.PhaseArchived); txErr != nil {
			if errors.Is(txErr, repositories.ErrTournamentPhaseConflict) {
				return fmt.Errorf("%w: tournament is no longer %s", ErrTournamentNotArchivable, tournament.Phase)
			}
			return txErr
		}
		return nil
	})
	if err != nil {
		// The tournament keeps its data and stays archivable; remove the
		// export so a later retry does not leave an orphaned object behind.
		if exportKey != "" {
			if delErr := s.uploader.Delete(ctx, exportKey); delErr != nil {
				s.logger.Warn("failed to remove orphaned snapshot export",
					slog.Int("tournament_id", tournamentID),
					slog.String("key", exportKey),
					slog.Any("error", delErr))
			}
		}
		return nil, err
	}

	s.logger.Info("tournament archived",
		slog.Int("tournament_id", tournamentID),
		slog.Int64("guild_id", tournament.GuildID))
	s.snapshots.Publish(ctx, tournamentID)
	return s.tournamentRepo.GetByID(ctx, tournamentID)
}
