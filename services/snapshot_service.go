package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okhomin/bracket-engine/models"
	"github.com/okhomin/bracket-engine/repositories"
)

// DashboardNotifier delivers a freshly built snapshot to whoever renders the
// dashboard. The websocket hub implements it.
type DashboardNotifier interface {
	NotifyDashboard(tournamentID int, snapshot *models.DashboardSnapshot) error
}

type SnapshotService interface {
	// BuildSnapshot assembles the full dashboard projection from current
	// state. It never mutates anything: building twice in a row yields the
	// same snapshot (modulo GeneratedAt).
	BuildSnapshot(ctx context.Context, tournamentID int) (*models.DashboardSnapshot, error)
	// Publish builds and delivers a snapshot. Delivery problems are logged
	// and swallowed: a lost dashboard update must never fail or roll back
	// the mutation that triggered it.
	Publish(ctx context.Context, tournamentID int)
}

type snapshotService struct {
	tournamentRepo repositories.TournamentRepository
	entryRepo      repositories.EntryRepository
	matchRepo      repositories.MatchRepository
	notifier       DashboardNotifier
	logger         *slog.Logger
}

func NewSnapshotService(
	tournamentRepo repositories.TournamentRepository,
	entryRepo repositories.EntryRepository,
	matchRepo repositories.MatchRepository,
	notifier DashboardNotifier,
	logger *slog.Logger,
) SnapshotService {
	return &snapshotService{
		tournamentRepo: tournamentRepo,
		entryRepo:      entryRepo,
		matchRepo:      matchRepo,
		notifier:       notifier,
		logger:         logger,
	}
}

func (s *snapshotService) BuildSnapshot(ctx context.Context, tournamentID int) (*models.DashboardSnapshot, error) {
	tournament, err := s.tournamentRepo.GetByID(ctx, tournamentID)
	if err != nil {
		if errors.Is(err, repositories.ErrTournamentNotFound) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}

	var (
		entries []models.Entry
		matches []models.Match
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var fetchErr error
		entries, fetchErr = s.entryRepo.ListByTournament(gCtx, tournamentID)
		return fetchErr
	})
	g.Go(func() error {
		var fetchErr error
		matches, fetchErr = s.matchRepo.ListByTournament(gCtx, tournamentID)
		return fetchErr
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to assemble snapshot for tournament %d: %w", tournamentID, err)
	}

	entriesByID := make(map[int]models.Entry, len(entries))
	for _, e := range entries {
		entriesByID[e.ID] = e
	}

	snapshot := &models.DashboardSnapshot{
		TournamentID:    tournament.ID,
		GuildID:         tournament.GuildID,
		Code:            tournament.Code,
		Name:            tournament.Name,
		Phase:           tournament.Phase,
		EntrantCount:    tournament.EntrantCount,
		Rounds:          tournament.Rounds,
		ChampionEntryID: tournament.ChampionEntryID,
		GeneratedAt:     time.Now().UTC(),
	}
	if tournament.Phase == models.PhaseRegOpen || tournament.Phase == models.PhaseDraft {
		snapshot.EntrantCount = len(entries)
	}

	var currentRound *models.RoundView
	for _, m := range matches {
		view := matchView(&m, entriesByID)

		if currentRound == nil || currentRound.Round != m.Round {
			snapshot.Bracket = append(snapshot.Bracket, models.RoundView{Round: m.Round})
			currentRound = &snapshot.Bracket[len(snapshot.Bracket)-1]
		}
		currentRound.Matches = append(currentRound.Matches, view)

		if m.Status == models.MatchStatusReady {
			snapshot.AwaitingReport = append(snapshot.AwaitingReport, view)
		}
	}

	return snapshot, nil
}

func (s *snapshotService) Publish(ctx context.Context, tournamentID int) {
	snapshot, err := s.BuildSnapshot(ctx, tournamentID)
	if err != nil {
		s.logger.Warn("failed to build dashboard snapshot",
			slog.Int("tournament_id", tournamentID), slog.Any("error", err))
		return
	}
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyDashboard(tournamentID, snapshot); err != nil {
		s.logger.Warn("failed to deliver dashboard snapshot",
			slog.Int("tournament_id", tournamentID), slog.Any("error", err))
	}
}

func matchView(m *models.Match, entriesByID map[int]models.Entry) models.MatchView {
	return models.MatchView{
		MatchID:       m.ID,
		Round:         m.Round,
		Slot:          m.Slot,
		Entrant1:      slotView(m.Entry1ID, m.Bye1, entriesByID),
		Entrant2:      slotView(m.Entry2ID, m.Bye2, entriesByID),
		WinnerEntryID: m.WinnerEntryID,
		Status:        m.Status,
	}
}

func slotView(entryID *int, bye bool, entriesByID map[int]models.Entry) models.SlotView {
	view := models.SlotView{Bye: bye}
	if entryID == nil {
		return view
	}
	view.EntryID = entryID
	if e, ok := entriesByID[*entryID]; ok {
		view.PlayerID = &e.PlayerID
		view.Seed = e.Seed
	}
	return view
}
