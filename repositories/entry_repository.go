package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/okhomin/bracket-engine/models"
)

var (
	ErrEntryNotFound  = errors.New("entry not found")
	ErrEntryDuplicate = errors.New("player is already registered for this tournament")
)

type EntryRepository interface {
	Create(ctx context.Context, exec SQLExecutor, entry *models.Entry) error
	GetByID(ctx context.Context, id int) (*models.Entry, error)
	GetByPlayer(ctx context.Context, tournamentID int, playerID int64) (*models.Entry, error)
	// ListByTournament returns entries in registration order.
	ListByTournament(ctx context.Context, tournamentID int) ([]models.Entry, error)
	CountByTournament(ctx context.Context, tournamentID int) (int, error)
	// AssignSeeds freezes each entry's seed to its 1-based registration order.
	AssignSeeds(ctx context.Context, exec SQLExecutor, tournamentID int) error
	DeleteByPlayer(ctx context.Context, exec SQLExecutor, tournamentID int, playerID int64) error
	DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error
	DeleteByGuild(ctx context.Context, exec SQLExecutor, guildID int64) error
}

type postgresEntryRepository struct {
	db *sql.DB
}

func NewPostgresEntryRepository(db *sql.DB) EntryRepository {
	return &postgresEntryRepository{db: db}
}

func (r *postgresEntryRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

func (r *postgresEntryRepository) Create(ctx context.Context, exec SQLExecutor, e *models.Entry) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO entries (tournament_id, player_id)
		VALUES ($1, $2)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query, e.TournamentID, e.PlayerID).Scan(&e.ID, &e.CreatedAt)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrEntryDuplicate
		}
		return err
	}
	return nil
}

func (r *postgresEntryRepository) GetByID(ctx context.Context, id int) (*models.Entry, error) {
	executor := r.getExecutor(nil)
	query := `SELECT id, tournament_id, player_id, seed, created_at FROM entries WHERE id = $1`

	e := &models.Entry{}
	err := executor.QueryRowContext(ctx, query, id).Scan(&e.ID, &e.TournamentID, &e.PlayerID, &e.Seed, &e.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *postgresEntryRepository) GetByPlayer(ctx context.Context, tournamentID int, playerID int64) (*models.Entry, error) {
	executor := r.getExecutor(nil)
	query := `
		SELECT id, tournament_id, player_id, seed, created_at
		FROM entries
		WHERE tournament_id = $1 AND player_id = $2`

	e := &models.Entry{}
	err := executor.QueryRowContext(ctx, query, tournamentID, playerID).Scan(
		&e.ID, &e.TournamentID, &e.PlayerID, &e.Seed, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrEntryNotFound
		}
		return nil, err
	}
	return e, nil
}

func (r *postgresEntryRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.Entry, error) {
	executor := r.getExecutor(nil)
	query := `
		SELECT id, tournament_id, player_id, seed, created_at
		FROM entries
		WHERE tournament_id = $1
		ORDER BY created_at, id`

	rows, err := executor.QueryContext(ctx, query, tournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]models.Entry, 0)
	for rows.Next() {
		var e models.Entry
		if scanErr := rows.Scan(&e.ID, &e.TournamentID, &e.PlayerID, &e.Seed, &e.CreatedAt); scanErr != nil {
			return nil, scanErr
		}
		entries = append(entries, e)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func (r *postgresEntryRepository) CountByTournament(ctx context.Context, tournamentID int) (int, error) {
	executor := r.getExecutor(nil)
	query := `SELECT COUNT(*) FROM entries WHERE tournament_id = $1`

	var count int
	if err := executor.QueryRowContext(ctx, query, tournamentID).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

func (r *postgresEntryRepository) AssignSeeds(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := r.getExecutor(exec)
	query := `
		UPDATE entries e
		SET seed = ranked.rn
		FROM (
			SELECT id, ROW_NUMBER() OVER (ORDER BY created_at, id) AS rn
			FROM entries
			WHERE tournament_id = $1
		) ranked
		WHERE e.id = ranked.id`

	if _, err := executor.ExecContext(ctx, query, tournamentID); err != nil {
		return fmt.Errorf("failed to assign seeds for tournament %d: %w", tournamentID, err)
	}
	return nil
}

func (r *postgresEntryRepository) DeleteByPlayer(ctx context.Context, exec SQLExecutor, tournamentID int, playerID int64) error {
	executor := r.getExecutor(exec)
	query := `DELETE FROM entries WHERE tournament_id = $1 AND player_id = $2`
	result, err := executor.ExecContext(ctx, query, tournamentID, playerID)
	if err != nil {
		return err
	}
	return checkAffectedRows(result, ErrEntryNotFound)
}

func (r *postgresEntryRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	executor := r.getExecutor(exec)
	query := `DELETE FROM entries WHERE tournament_id = $1`
	if _, err := executor.ExecContext(ctx, query, tournamentID); err != nil {
		return fmt.Errorf("failed to delete entries for tournament %d: %w", tournamentID, err)
	}
	return nil
}

func (r *postgresEntryRepository) DeleteByGuild(ctx context.Context, exec SQLExecutor, guildID int64) error {
	executor := r.getExecutor(exec)
	query := `
		DELETE FROM entries
		WHERE tournament_id IN (SELECT id FROM tournaments WHERE guild_id = $1)`
	if _, err := executor.ExecContext(ctx, query, guildID); err != nil {
		return fmt.Errorf("failed to delete entries for guild %d: %w", guildID, err)
	}
	return nil
}
