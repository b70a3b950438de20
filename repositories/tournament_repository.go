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
	ErrTournamentNotFound      = errors.New("tournament not found")
	ErrTournamentCodeConflict  = errors.New("tournament code already in use")
	ErrTournamentPhaseConflict = errors.New("tournament phase changed concurrently")
)

type TournamentRepository interface {
	Create(ctx context.Context, exec SQLExecutor, tournament *models.Tournament) error
	GetByID(ctx context.Context, id int) (*models.Tournament, error)
	GetByCode(ctx context.Context, code string) (*models.Tournament, error)
	// GetActiveByGuild returns the guild's newest non-terminal tournament.
	GetActiveByGuild(ctx context.Context, guildID int64) (*models.Tournament, error)
	ListByGuild(ctx context.Context, guildID int64) ([]models.Tournament, error)
	// UpdatePhase moves the tournament from one phase to another and fails
	// with ErrTournamentPhaseConflict if the stored phase is not `from`.
	UpdatePhase(ctx context.Context, exec SQLExecutor, id int, from, to models.TournamentPhase) error
	SetBracketShape(ctx context.Context, exec SQLExecutor, id, entrantCount, rounds int) error
	SetChampion(ctx context.Context, exec SQLExecutor, id int, championEntryID *int) error
	SetTrophies(ctx context.Context, exec SQLExecutor, id int, championPlayerID, runnerUpPlayerID *int64) error
	DeleteByGuild(ctx context.Context, exec SQLExecutor, guildID int64) (int64, error)
}

type postgresTournamentRepository struct {
	db *sql.DB
}

func NewPostgresTournamentRepository(db *sql.DB) TournamentRepository {
	return &postgresTournamentRepository{db: db}
}

func (r *postgresTournamentRepository) getExecutor(exec SQLExecutor) SQLExecutor {
	if exec != nil {
		return exec
	}
	return r.db
}

const tournamentColumns = `
	id, guild_id, name, code, phase, entrant_count, rounds,
	champion_entry_id, champion_player_id, runner_up_player_id, created_at`

func scanTournament(row interface{ Scan(dest ...interface{}) error }, t *models.Tournament) error {
	return row.Scan(
		&t.ID, &t.GuildID, &t.Name, &t.Code, &t.Phase, &t.EntrantCount, &t.Rounds,
		&t.ChampionEntryID, &t.ChampionPlayerID, &t.RunnerUpPlayerID, &t.CreatedAt,
	)
}

func (r *postgresTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	executor := r.getExecutor(exec)
	query := `
		INSERT INTO tournaments (guild_id, name, code, phase, entrant_count, rounds)
		VALUES ($1, $2, $3, $4, 0, 0)
		RETURNING id, created_at`

	err := executor.QueryRowContext(ctx, query,
		t.GuildID, t.Name, t.Code, t.Phase,
	).Scan(&t.ID, &t.CreatedAt)

	return r.handleTournamentError(err)
}

func (r *postgresTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE id = $1`

	t := &models.Tournament{}
	err := scanTournament(executor.QueryRowContext(ctx, query, id), t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) GetByCode(ctx context.Context, code string) (*models.Tournament, error) {
	executor := r.getExecutor(nil)
	query := `SELECT` + tournamentColumns + ` FROM tournaments WHERE code = $1`

	t := &models.Tournament{}
	err := scanTournament(executor.QueryRowContext(ctx, query, code), t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) GetActiveByGuild(ctx context.Context, guildID int64) (*models.Tournament, error) {
	executor := r.getExecutor(nil)
	query := `
		SELECT` + tournamentColumns + `
		FROM tournaments
		WHERE guild_id = $1 AND phase NOT IN ($2, $3, $4)
		ORDER BY created_at DESC, id DESC
		LIMIT 1`

	t := &models.Tournament{}
	err := scanTournament(executor.QueryRowContext(ctx, query,
		guildID, models.PhaseCompleted, models.PhaseCancelled, models.PhaseArchived,
	), t)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTournamentNotFound
		}
		return nil, err
	}
	return t, nil
}

func (r *postgresTournamentRepository) ListByGuild(ctx context.Context, guildID int64) ([]models.Tournament, error) {
	executor := r.getExecutor(nil)
	query := `
		SELECT` + tournamentColumns + `
		FROM tournaments
		WHERE guild_id = $1
		ORDER BY created_at DESC, id DESC`

	rows, err := executor.QueryContext(ctx, query, guildID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tournaments := make([]models.Tournament, 0)
	for rows.Next() {
		var t models.Tournament
		if scanErr := scanTournament(rows, &t); scanErr != nil {
			return nil, scanErr
		}
		tournaments = append(tournaments, t)
	}
	if err = rows.Err(); err != nil {
		return nil, err
	}
	return tournaments, nil
}

func (r *postgresTournamentRepository) UpdatePhase(ctx context.Context, exec SQLExecutor, id int, from, to models.TournamentPhase) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET phase = $1 WHERE id = $2 AND phase = $3`
	result, err := executor.ExecContext(ctx, query, to, id, from)
	if err != nil {
		return r.handleTournamentError(err)
	}
	return checkAffectedRows(result, ErrTournamentPhaseConflict)
}

func (r *postgresTournamentRepository) SetBracketShape(ctx context.Context, exec SQLExecutor, id, entrantCount, rounds int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET entrant_count = $1, rounds = $2 WHERE id = $3`
	result, err := executor.ExecContext(ctx, query, entrantCount, rounds, id)
	if err != nil {
		return fmt.Errorf("failed to set bracket shape for tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) SetChampion(ctx context.Context, exec SQLExecutor, id int, championEntryID *int) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET champion_entry_id = $1 WHERE id = $2`
	result, err := executor.ExecContext(ctx, query, championEntryID, id)
	if err != nil {
		return fmt.Errorf("failed to set champion for tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) SetTrophies(ctx context.Context, exec SQLExecutor, id int, championPlayerID, runnerUpPlayerID *int64) error {
	executor := r.getExecutor(exec)
	query := `UPDATE tournaments SET champion_player_id = $1, runner_up_player_id = $2 WHERE id = $3`
	result, err := executor.ExecContext(ctx, query, championPlayerID, runnerUpPlayerID, id)
	if err != nil {
		return fmt.Errorf("failed to set trophies for tournament %d: %w", id, err)
	}
	return checkAffectedRows(result, ErrTournamentNotFound)
}

func (r *postgresTournamentRepository) DeleteByGuild(ctx context.Context, exec SQLExecutor, guildID int64) (int64, error) {
	executor := r.getExecutor(exec)
	query := `DELETE FROM tournaments WHERE guild_id = $1`
	result, err := executor.ExecContext(ctx, query, guildID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete tournaments for guild %d: %w", guildID, err)
	}
	return result.RowsAffected()
}

func (r *postgresTournamentRepository) handleTournamentError(err error) error {
	if err == nil {
		return nil
	}
	if pqErr, ok := err.(*pq.Error); ok {
		if pqErr.Code == "23505" && pqErr.Constraint == "tournaments_code_key" {
			return ErrTournamentCodeConflict
		}
	}
	return err
}
