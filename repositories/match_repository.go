package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/okhomin/bracket-engine/models"
)

var (
	ErrMatchNotFound       = errors.New("match not found")
	ErrMatchStatusConflict = errors.New("match status changed concurrently")
)

type MatchRepository interface {
	Create(ctx context.Context, exec SQLExecutor, match *models.Match) error
	GetByID(ctx context.Context, id int) (*models.Match, error)
	GetByRoundSlot(ctx context.Context, tournamentID, round, slot int) (*models.Match, error)
	// ListByTournament returns matches ordered by round, then slot.
	ListByTournament(ctx context.Context, tournamentID int) ([]models.Match, error)
	// ClaimResult records the winner and moves the match ready->reported.
	// A concurrent reporter loses the claim with ErrMatchStatusConflict.
	ClaimResult(ctx context.Context, exec SQLExecutor, id, winnerEntryID int) error
	// MarkCompleted finishes the reported->completed step of a claim.
	MarkCompleted(ctx context.Context, exec SQLExecutor, id int) error
	// SetWinner rewrites the winner of an already completed match.
	SetWinner(ctx context.Context, exec SQLExecutor, id, winnerEntryID int) error
	// SetSlotEntrant fills one slot (0 or 1) of an unassigned match and
	// flips it to ready when the other slot is already occupied, all in a
	// single statement so sibling feeders can never race past each other.
	SetSlotEntrant(ctx context.Context, exec SQLExecutor, id, slot, entryID int) error
	// ReplaceSlotEntrant rewrites a slot of a match that has not been
	// played yet (unassigned or ready).
	ReplaceSlotEntrant(ctx context.Context, exec SQLExecutor, id, slot, entryID int) error
	DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error
	DeleteByGuild(ctx context.Context, exec SQLExecutor, guildID int64) error
}

type postgresMatchRepository struct {
	db *sql.DB
}

func NewPostgresMatchRepository(db *sql.DB) MatchRepository {
	return &postgresMatchRepository{db: db}
}

func (r *postgresMatchRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const matchColumns = `
	id, tournament_id, round, slot, entry1_id, entry2_id, bye1, bye2,
	winner_entry_id, status, created_at`

func scanMatch(row interface{ Scan(dest ...interface{}) error }, m *models.Match) error {
	return row.Scan(
		&m.ID, &m.TournamentID, &m.Round, &m.Slot, &m.Entry1ID, &m.Entry2ID, &m.Bye1, &m.Bye2,
		&m.WinnerEntryID, &m.Status, &m.CreatedAt,
	)
}

func (r *postgresMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO matches (
			tournament_id, round, slot, entry1_id, entry2_id, bye1, bye2,
			winner_entry_id, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		m.TournamentID, m.Round, m.Slot, m.Entry1ID, m.Entry2ID, m.Bye1, m.Bye2,
		m.WinnerEntryID, m.Status,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create match (tournament %d, round %d, slot %d): %w",
			m.TournamentID, m.Round, m.Slot, err)
	}
	return nil
}

func (r *postgresMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + matchColumns + ` FROM matches WHERE id = $1`

	m := &models.Match{}
	err := scanMatch(executor.QueryRowContext(ctx, query, id), m)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) GetByRoundSlot(ctx context.Context, tournamentID, round, slot int) (*models.Match, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + matchColumns + ` FROM matches WHERE tournament_id = $1 AND round = $2 AND slot = $3`

	m := &models.Match{}
	err := scanMatch(executor.QueryRowContext(ctx, query, tournamentID, round, slot), m)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *postgresMatchRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.Match, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + matchColumns + ` FROM matches WHERE tournament_id = $1 ORDER BY round, slot`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]models.Match, 0)
	for rows.Next() {
		var m models.Match
		if scanErr := scanMatch(rows, &m); scanErr != nil {
			return nil, scanErr
		}
		matches = append(matches, m)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

func (r *postgresMatchRepository) ClaimResult(ctx context.Context, exec SQLExecutor, id, winnerEntryID int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET winner_entry_id = $1, status = $2
		WHERE id = $3 AND status = $4`
	result, err := executor.ExecContext(ctx, query,
		winnerEntryID, models.MatchStatusReported, id, models.MatchStatusReady,
	)
	if err != nil {
		return fmt.Errorf("failed to claim result for match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchStatusConflict)
}

func (r *postgresMatchRepository) MarkCompleted(ctx context.Context, exec SQLExecutor, id int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE matches SET status = $1 WHERE id = $2 AND status = $3`
	result, err := executor.ExecContext(ctx, query,
		models.MatchStatusCompleted, id, models.MatchStatusReported,
	)
	if err != nil {
		return fmt.Errorf("failed to complete match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchStatusConflict)
}

func (r *postgresMatchRepository) SetWinner(ctx context.Context, exec SQLExecutor, id, winnerEntryID int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE matches SET winner_entry_id = $1 WHERE id = $2 AND status = $3`
	result, err := executor.ExecContext(ctx, query,
		winnerEntryID, id, models.MatchStatusCompleted,
	)
	if err != nil {
		return fmt.Errorf("failed to set winner for match %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrMatchStatusConflict)
}

func (r *postgresMatchRepository) SetSlotEntrant(ctx context.Context, exec SQLExecutor, id, slot, entryID int) error {
	executor := r.getExecutor(exec)
	// All SET expressions see the pre-update row, so the status check reads
	// the other slot as it was before this fill.
	query := `
		UPDATE matches
		SET entry1_id = CASE WHEN $2 = 0 THEN $3 ELSE entry1_id END,
		    entry2_id = CASE WHEN $2 = 1 THEN $3 ELSE entry2_id END,
		    status = CASE
		        WHEN (CASE WHEN $2 = 0 THEN entry2_id ELSE entry1_id END) IS NOT NULL THEN $4
		        ELSE status
		    END
		WHERE id = $1 AND status = $5`
	result, err := executor.ExecContext(ctx, query,
		id, slot, entryID, models.MatchStatusReady, models.MatchStatusUnassigned,
	)
	if err != nil {
		return fmt.Errorf("failed to fill slot %d of match %d: %w", slot, id, err)
	}
	return checkAffectedRows(result, ErrMatchStatusConflict)
}

func (r *postgresMatchRepository) ReplaceSlotEntrant(ctx context.Context, exec SQLExecutor, id, slot, entryID int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE matches
		SET entry1_id = CASE WHEN $2 = 0 THEN $3 ELSE entry1_id END,
		    entry2_id = CASE WHEN $2 = 1 THEN $3 ELSE entry2_id END
		WHERE id = $1 AND status IN ($4, $5)`
	result, err := executor.ExecContext(ctx, query,
		id, slot, entryID, models.MatchStatusUnassigned, models.MatchStatusReady,
	)
	if err != nil {
		return fmt.Errorf("failed to replace slot %d of match %d: %w", slot, id, err)
	}
	return checkAffectedRows(result, ErrMatchStatusConflict)
}

func (r *postgresMatchRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := r.getExecutor(exec)
	query := `DELETE FROM matches WHERE tournament_id = $1`
	if _, err := executor.ExecContext(ctx, query, tournamentID); err != nil {
		return fmt.Errorf("failed to delete matches for tournament %d: %w", tournamentID, err)
	}
	return nil
}

func (r *postgresMatchRepository) DeleteByGuild(ctx context.Context, exec SQLExecutor, guildID int64) error {
	executor := r.getExecutor(exec)
	query := `
		DELETE FROM matches
		WHERE tournament_id IN (SELECT id FROM tournaments WHERE guild_id = $1)`
	if _, err := executor.ExecContext(ctx, query, guildID); err != nil {
		return fmt.Errorf("failed to delete matches for guild %d: %w", guildID, err)
	}
	return nil
}
