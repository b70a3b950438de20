package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/okhomin/bracket-engine/models"
	"github.com/okhomin/bracket-engine/repositories"
)

const maxDummySeed = 64

// DevService fills tournaments with dummy entrants and plays their matches,
// so a full bracket can be exercised without real players. Dummy results go
// through the normal reporting path and obey the same rules.
type DevService interface {
	SeedDummies(ctx context.Context, tournamentID, count int) ([]models.Entry, error)
	// ResolveDummyMatches reports every ready dummy-vs-dummy match,
	// repeating until no new one becomes ready. Returns how many matches
	// were resolved.
	ResolveDummyMatches(ctx context.Context, tournamentID int) (int, error)
}

type devService struct {
	entryRepo    repositories.EntryRepository
	matchRepo    repositories.MatchRepository
	registration RegistrationService
	advancement  AdvancementService
	logger       *slog.Logger
}

func NewDevService(
	entryRepo repositories.EntryRepository,
	matchRepo repositories.MatchRepository,
	registration RegistrationService,
	advancement AdvancementService,
	logger *slog.Logger,
) DevService {
	return &devService{
		entryRepo:    entryRepo,
		matchRepo:    matchRepo,
		registration: registration,
		advancement:  advancement,
		logger:       logger,
	}
}

func (s *devService) SeedDummies(ctx context.Context, tournamentID, count int) ([]models.Entry, error) {
	if count < 1 || count > maxDummySeed {
		return nil, fmt.Errorf("%w: dummy count must be between 1 and %d", ErrValidationFailed, maxDummySeed)
	}

	existing, err := s.entryRepo.CountByTournament(ctx, tournamentID)
	if err != nil {
		return nil, err
	}

	entries := make([]models.Entry, 0, count)
	for i := 0; i < count; i++ {
		// Deterministic per tournament and position, so reseeding after a
		// partial failure just skips the duplicates.
		playerID := dummyPlayerFloor + int64(tournamentID)*10_000 + int64(existing+i)
		entry, regErr := s.registration.Register(ctx, tournamentID, playerID)
		if regErr != nil {
			if errors.Is(regErr, ErrDuplicateEntry) {
				continue
			}
			return nil, regErr
		}
		entries = append(entries, *entry)
	}

	s.logger.Info("dummy entrants seeded",
		slog.Int("tournament_id", tournamentID),
		slog.Int("count", len(entries)))
	return entries, nil
}

func (s *devService) ResolveDummyMatches(ctx context.Context, tournamentID int) (int, error) {
	entries, err := s.entryRepo.ListByTournament(ctx, tournamentID)
	if err != nil {
		return 0, err
	}
	playerByEntry := make(map[int]int64, len(entries))
	for _, e := range entries {
		playerByEntry[e.ID] = e.PlayerID
	}

	resolved := 0
	for {
		matches, listErr := s.matchRepo.ListByTournament(ctx, tournamentID)
		if listErr != nil {
			return resolved, listErr
		}

		progressed := false
		for _, m := range matches {
			if m.Status != models.MatchStatusReady {
				continue
			}
			if !s.isDummyMatch(&m, playerByEntry) {
				continue
			}
			// Lower slot entrant wins, so simulated runs are reproducible.
			if _, repErr := s.advancement.ReportResult(ctx, m.ID, *m.Entry1ID); repErr != nil {
				if errors.Is(repErr, ErrMatchAlreadyResolved) {
					continue
				}
				return resolved, repErr
			}
			resolved++
			progressed = true
		}
		if !progressed {
			break
		}
	}

	s.logger.Info("dummy matches resolved",
		slog.Int("tournament_id", tournamentID),
		slog.Int("resolved", resolved))
	return resolved, nil
}

func (s *devService) isDummyMatch(m *models.Match, playerByEntry map[int]int64) bool {
	if m.Entry1ID == nil || m.Entry2ID == nil {
		return false
	}
	p1, ok1 := playerByEntry[*m.Entry1ID]
	p2, ok2 := playerByEntry[*m.Entry2ID]
	return ok1 && ok2 && isDummyPlayerID(p1) && isDummyPlayerID(p2)
}
