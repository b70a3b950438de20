package repositories

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/okhomin/bracket-engine/models"
)

// MemoryStore backs all three repositories with mutex-guarded maps. It is the
// STORAGE_DRIVER=memory implementation used for local development and the
// service tests; it honors the same conditional-update contracts as the
// Postgres repositories, including the compare-and-set conflicts.
type MemoryStore struct {
	mu sync.Mutex
	// txMu fences transactions off from standalone writes: WithinTx holds it
	// exclusively around its snapshot/mutate/restore window, every write
	// outside a transaction holds it shared. A rollback can therefore never
	// erase a write that committed while the transaction was open.
	txMu sync.RWMutex

	tournaments map[int]*models.Tournament
	entries     map[int]*models.Entry
	matches     map[int]*models.Match

	nextTournamentID int
	nextEntryID      int
	nextMatchID      int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		tournaments:      make(map[int]*models.Tournament),
		entries:          make(map[int]*models.Entry),
		matches:          make(map[int]*models.Match),
		nextTournamentID: 1,
		nextEntryID:      1,
		nextMatchID:      1,
	}
}

func (s *MemoryStore) Tournaments() TournamentRepository { return &memoryTournamentRepository{s} }
func (s *MemoryStore) Entries() EntryRepository          { return &memoryEntryRepository{s} }
func (s *MemoryStore) Matches() MatchRepository          { return &memoryMatchRepository{s} }
func (s *MemoryStore) Transactor() Transactor            { return &memoryTransactor{s} }

// memoryExecutor marks repository calls made inside WithinTx. It satisfies
// SQLExecutor so it can travel through the shared repository signatures, but
// it never runs SQL.
type memoryExecutor struct{}

func (memoryExecutor) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, nil
}

func (memoryExecutor) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, nil
}

func (memoryExecutor) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}

// beginWrite keeps a standalone write out of any transaction's
// snapshot/restore window. Writes belonging to the transaction itself carry
// the memoryExecutor marker and already run under the exclusive lock.
func (s *MemoryStore) beginWrite(exec SQLExecutor) {
	if _, inTx := exec.(memoryExecutor); !inTx {
		s.txMu.RLock()
	}
}

func (s *MemoryStore) endWrite(exec SQLExecutor) {
	if _, inTx := exec.(memoryExecutor); !inTx {
		s.txMu.RUnlock()
	}
}

type memorySnapshot struct {
	tournaments map[int]*models.Tournament
	entries     map[int]*models.Entry
	matches     map[int]*models.Match

	nextTournamentID int
	nextEntryID      int
	nextMatchID      int
}

func (s *MemoryStore) snapshot() memorySnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := memorySnapshot{
		tournaments:      make(map[int]*models.Tournament, len(s.tournaments)),
		entries:          make(map[int]*models.Entry, len(s.entries)),
		matches:          make(map[int]*models.Match, len(s.matches)),
		nextTournamentID: s.nextTournamentID,
		nextEntryID:      s.nextEntryID,
		nextMatchID:      s.nextMatchID,
	}
	for id, t := range s.tournaments {
		c := *t
		snap.tournaments[id] = &c
	}
	for id, e := range s.entries {
		c := *e
		snap.entries[id] = &c
	}
	for id, m := range s.matches {
		c := *m
		snap.matches[id] = &c
	}
	return snap
}

func (s *MemoryStore) restore(snap memorySnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tournaments = snap.tournaments
	s.entries = snap.entries
	s.matches = snap.matches
	s.nextTournamentID = snap.nextTournamentID
	s.nextEntryID = snap.nextEntryID
	s.nextMatchID = snap.nextMatchID
}

type memoryTransactor struct {
	store *MemoryStore
}

func (t *memoryTransactor) WithinTx(ctx context.Context, fn func(exec SQLExecutor) error) error {
	t.store.txMu.Lock()
	defer t.store.txMu.Unlock()

	snap := t.store.snapshot()
	if err := fn(memoryExecutor{}); err != nil {
		t.store.restore(snap)
		return err
	}
	return nil
}

// --- tournaments ---

type memoryTournamentRepository struct {
	store *MemoryStore
}

func (r *memoryTournamentRepository) Create(ctx context.Context, exec SQLExecutor, t *models.Tournament) error {
	s := r.store
	s.beginWrite(exec)
	defer s.endWrite(exec)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.tournaments {
		if existing.Code == t.Code {
			return ErrTournamentCodeConflict
		}
	}
	t.ID = s.nextTournamentID
	s.nextTournamentID++
	t.CreatedAt = time.Now()
	c := *t
	s.tournaments[t.ID] = &c
	return nil
}

func (r *memoryTournamentRepository) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tournaments[id]
	if !ok {
		return nil, ErrTournamentNotFound
	}
	c := *t
	return &c, nil
}

func (r *memoryTournamentRepository) GetByCode(ctx context.Context, code string) (*models.Tournament, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, t := range s.tournaments {
		if t.Code == code {
			c := *t
			return &c, nil
		}
	}
	return nil, ErrTournamentNotFound
}

func (r *memoryTournamentRepository) GetActiveByGuild(ctx context.Context, guildID int64) (*models.Tournament, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	var newest *models.Tournament
	for _, t := range s.tournaments {
		if t.GuildID != guildID || t.Phase.Terminal() {
			continue
		}
		if newest == nil || t.CreatedAt.After(newest.CreatedAt) ||
			(t.CreatedAt.Equal(newest.CreatedAt) && t.ID > newest.ID) {
			newest = t
		}
	}
	if newest == nil {
		return nil, ErrTournamentNotFound
	}
	c := *newest
	return &c, nil
}

func (r *memoryTournamentRepository) ListByGuild(ctx context.Context, guildID int64) ([]models.Tournament, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	tournaments := make([]models.Tournament, 0)
	for _, t := range s.tournaments {
		if t.GuildID == guildID {
			tournaments = append(tournaments, *t)
		}
	}
	sort.Slice(tournaments, func(i, j int) bool {
		if !tournaments[i].CreatedAt.Equal(tournaments[j].CreatedAt) {
			return tournaments[i].CreatedAt.After(tournaments[j].CreatedAt)
		}
		return tournaments[i].ID > tournaments[j].ID
	})
	return tournaments, nil
}

func (r *memoryTournamentRepository) UpdatePhase(ctx context.Context, exec SQLExecutor, id int, from, to models.TournamentPhase) error {
	s := r.store
	s.beginWrite(exec)
	defer s.endWrite(exec)
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tournaments[id]
	if !ok || t.Phase != from {
		return ErrTournamentPhaseConflict
	}
	t.Phase = to
	return nil
}

func (r *memoryTournamentRepository) SetBracketShape(ctx context.Context, exec SQLExecutor, id, entrantCount, rounds int) error {
	s := r.store
	s.beginWrite(exec)
	defer s.endWrite(exec)
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tournaments[id]
	if !ok {
		return ErrTournamentNotFound
	}
	t.EntrantCount = entrantCount
	t.Rounds = rounds
	return nil
}

func (r *memoryTournamentRepository) SetChampion(ctx context.Context, exec SQLExecutor, id int, championEntryID *int) error {
	s := r.store
	s.beginWrite(exec)
	defer s.endWrite(exec)
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tournaments[id]
	if !ok {
		return ErrTournamentNotFound
	}
	t.ChampionEntryID = championEntryID
	return nil
}

func (r *memoryTournamentRepository) SetTrophies(ctx context.Context, exec SQLExecutor, id int, championPlayerID, runnerUpPlayerID *int64) error {
	s := r.store
	s.beginWrite(exec)
	defer s.endWrite(exec)
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tournaments[id]
	if !ok {
		return ErrTournamentNotFound
	}
	t.ChampionPlayerID = championPlayerID
	t.RunnerUpPlayerID = runnerUpPlayerID
	return nil
}

func (r *memoryTournamentRepository) DeleteByGuild(ctx context.Context, exec SQLExecutor, guildID int64) (int64, error) {
	s := r.store
	s.beginWrite(exec)
	defer s.endWrite(exec)
	s.mu.Lock()
	defer s.mu.Unlock()

	var deleted int64
	for id, t := range s.tournaments {
		if t.GuildID == guildID {
			delete(s.tournaments, id)
			deleted++
		}
	}
	return deleted, nil
}

// --- entries ---

type memoryEntryRepository struct {
	store *MemoryStore
}

func (r *memoryEntryRepository) Create(ctx context.Context, exec SQLExecutor, e *models.Entry) error {
	s := r.store
	s.beginWrite(exec)
	defer s.endWrite(exec)
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.entries {
		if existing.TournamentID == e.TournamentID && existing.PlayerID == e.PlayerID {
			return ErrEntryDuplicate
		}
	}
	e.ID = s.nextEntryID
	s.nextEntryID++
	e.CreatedAt = time.Now()
	c := *e
	s.entries[e.ID] = &c
	return nil
}

func (r *memoryEntryRepository) GetByID(ctx context.Context, id int) (*models.Entry, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[id]
	if !ok {
		return nil, ErrEntryNotFound
	}
	c := *e
	return &c, nil
}

func (r *memoryEntryRepository) GetByPlayer(ctx context.Context, tournamentID int, playerID int64) (*models.Entry, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.entries {
		if e.TournamentID == tournamentID && e.PlayerID == playerID {
			c := *e
			return &c, nil
		}
	}
	return nil, ErrEntryNotFound
}

func (r *memoryEntryRepository) listLocked(tournamentID int) []*models.Entry {
	entries := make([]*models.Entry, 0)
	for _, e := range r.store.entries {
		if e.TournamentID == tournamentID {
			entries = append(entries, e)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		if !entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].CreatedAt.Before(entries[j].CreatedAt)
		}
		return entries[i].ID < entries[j].ID
	})
	return entries
}

func (r *memoryEntryRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.Entry, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	ordered := r.listLocked(tournamentID)
	entries := make([]models.Entry, 0, len(ordered))
	for _, e := range ordered {
		entries = append(entries, *e)
	}
	return entries, nil
}

func (r *memoryEntryRepository) CountByTournament(ctx context.Context, tournamentID int) (int, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, e := range s.entries {
		if e.TournamentID == tournamentID {
			count++
		}
	}
	return count, nil
}

func (r *memoryEntryRepository) AssignSeeds(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	s := r.store
	s.beginWrite(exec)
	defer s.endWrite(exec)
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, e := range r.listLocked(tournamentID) {
		seed := i + 1
		e.Seed = &seed
	}
	return nil
}

func (r *memoryEntryRepository) DeleteByPlayer(ctx context.Context, exec SQLExecutor, tournamentID int, playerID int64) error {
	s := r.store
	s.beginWrite(exec)
	defer s.endWrite(exec)
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		if e.TournamentID == tournamentID && e.PlayerID == playerID {
			delete(s.entries, id)
			return nil
		}
	}
	return ErrEntryNotFound
}

func (r *memoryEntryRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	s := r.store
	s.beginWrite(exec)
	defer s.endWrite(exec)
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		if e.TournamentID == tournamentID {
			delete(s.entries, id)
		}
	}
	return nil
}

func (r *memoryEntryRepository) DeleteByGuild(ctx context.Context, exec SQLExecutor, guildID int64) error {
	s := r.store
	s.beginWrite(exec)
	defer s.endWrite(exec)
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, e := range s.entries {
		if t, ok := s.tournaments[e.TournamentID]; ok && t.GuildID == guildID {
			delete(s.entries, id)
		}
	}
	return nil
}

// --- matches ---

type memoryMatchRepository struct {
	store *MemoryStore
}

func (r *memoryMatchRepository) Create(ctx context.Context, exec SQLExecutor, m *models.Match) error {
	s := r.store
	s.beginWrite(exec)
	defer s.endWrite(exec)
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = s.nextMatchID
	s.nextMatchID++
	m.CreatedAt = time.Now()
	c := *m
	s.matches[m.ID] = &c
	return nil
}

func (r *memoryMatchRepository) GetByID(ctx context.Context, id int) (*models.Match, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok {
		return nil, ErrMatchNotFound
	}
	c := *m
	return &c, nil
}

func (r *memoryMatchRepository) GetByRoundSlot(ctx context.Context, tournamentID, round, slot int) (*models.Match, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range s.matches {
		if m.TournamentID == tournamentID && m.Round == round && m.Slot == slot {
			c := *m
			return &c, nil
		}
	}
	return nil, ErrMatchNotFound
}

func (r *memoryMatchRepository) ListByTournament(ctx context.Context, tournamentID int) ([]models.Match, error) {
	s := r.store
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := make([]models.Match, 0)
	for _, m := range s.matches {
		if m.TournamentID == tournamentID {
			matches = append(matches, *m)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Round != matches[j].Round {
			return matches[i].Round < matches[j].Round
		}
		return matches[i].Slot < matches[j].Slot
	})
	return matches, nil
}

func (r *memoryMatchRepository) ClaimResult(ctx context.Context, exec SQLExecutor, id, winnerEntryID int) error {
	s := r.store
	s.beginWrite(exec)
	defer s.endWrite(exec)
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok || m.Status != models.MatchStatusReady {
		return ErrMatchStatusConflict
	}
	winner := winnerEntryID
	m.WinnerEntryID = &winner
	m.Status = models.MatchStatusReported
	return nil
}

func (r *memoryMatchRepository) MarkCompleted(ctx context.Context, exec SQLExecutor, id int) error {
	s := r.store
	s.beginWrite(exec)
	defer s.endWrite(exec)
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok || m.Status != models.MatchStatusReported {
		return ErrMatchStatusConflict
	}
	m.Status = models.MatchStatusCompleted
	return nil
}

func (r *memoryMatchRepository) SetWinner(ctx context.Context, exec SQLExecutor, id, winnerEntryID int) error {
	s := r.store
	s.beginWrite(exec)
	defer s.endWrite(exec)
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok || m.Status != models.MatchStatusCompleted {
		return ErrMatchStatusConflict
	}
	winner := winnerEntryID
	m.WinnerEntryID = &winner
	return nil
}

func (r *memoryMatchRepository) SetSlotEntrant(ctx context.Context, exec SQLExecutor, id, slot, entryID int) error {
	s := r.store
	s.beginWrite(exec)
	defer s.endWrite(exec)
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok || m.Status != models.MatchStatusUnassigned {
		return ErrMatchStatusConflict
	}
	entry := entryID
	if slot == 0 {
		m.Entry1ID = &entry
	} else {
		m.Entry2ID = &entry
	}
	if m.Entry1ID != nil && m.Entry2ID != nil {
		m.Status = models.MatchStatusReady
	}
	return nil
}

func (r *memoryMatchRepository) ReplaceSlotEntrant(ctx context.Context, exec SQLExecutor, id, slot, entryID int) error {
	s := r.store
	s.beginWrite(exec)
	defer s.endWrite(exec)
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.matches[id]
	if !ok || (m.Status != models.MatchStatusUnassigned && m.Status != models.MatchStatusReady) {
		return ErrMatchStatusConflict
	}
	entry := entryID
	if slot == 0 {
		m.Entry1ID = &entry
	} else {
		m.Entry2ID = &entry
	}
	return nil
}

func (r *memoryMatchRepository) DeleteByTournament(ctx context.Context, exec SQLExecutor, tournamentID int) error {
	s := r.store
	s.beginWrite(exec)
	defer s.endWrite(exec)
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, m := range s.matches {
		if m.TournamentID == tournamentID {
			delete(s.matches, id)
		}
	}
	return nil
}

func (r *memoryMatchRepository) DeleteByGuild(ctx context.Context, exec SQLExecutor, guildID int64) error {
	s := r.store
	s.beginWrite(exec)
	defer s.endWrite(exec)
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, m := range s.matches {
		if t, ok := s.tournaments[m.TournamentID]; ok && t.GuildID == guildID {
			delete(s.matches, id)
		}
	}
	return nil
}
