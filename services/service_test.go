package services

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/okhomin/bracket-engine/brackets"
	"github.com/okhomin/bracket-engine/models"
	"github.com/okhomin/bracket-engine/repositories"
	"github.com/okhomin/bracket-engine/storage"
)

// recordingNotifier captures published snapshots so tests can assert on
// dashboard sync without a websocket hub.
type recordingNotifier struct {
	mu        sync.Mutex
	published []int
	failWith  error
}

func (n *recordingNotifier) NotifyDashboard(tournamentID int, _ *models.DashboardSnapshot) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.failWith != nil {
		return n.failWith
	}
	n.published = append(n.published, tournamentID)
	return nil
}

func (n *recordingNotifier) count(tournamentID int) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, id := range n.published {
		if id == tournamentID {
			c++
		}
	}
	return c
}

// recordingUploader stands in for the R2 archive exporter.
type recordingUploader struct {
	mu      sync.Mutex
	keys    []string
	deleted []string
}

func (u *recordingUploader) Upload(_ context.Context, key, _ string, reader io.Reader) (*storage.UploadResult, error) {
	var buf bytes.Buffer
	if _, err := buf.ReadFrom(reader); err != nil {
		return nil, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	u.keys = append(u.keys, key)
	return &storage.UploadResult{Key: key}, nil
}

func (u *recordingUploader) Delete(_ context.Context, key string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.deleted = append(u.deleted, key)
	return nil
}

func (u *recordingUploader) GetPublicURL(key string) string { return "https://archive.test/" + key }

type fakeWorkspace struct {
	mu       sync.Mutex
	tornDown []int64
	failWith error
}

func (w *fakeWorkspace) Teardown(_ context.Context, guildID int64) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failWith != nil {
		return w.failWith
	}
	w.tornDown = append(w.tornDown, guildID)
	return nil
}

// failingTransactor refuses every transaction, for exercising the paths that
// clean up after a failed atomic unit.
type failingTransactor struct {
	err error
}

func (f *failingTransactor) WithinTx(_ context.Context, _ func(exec repositories.SQLExecutor) error) error {
	return f.err
}

type testEnv struct {
	store        *repositories.MemoryStore
	tournaments  repositories.TournamentRepository
	entries      repositories.EntryRepository
	matches      repositories.MatchRepository
	notifier     *recordingNotifier
	uploader     *recordingUploader
	workspace    *fakeWorkspace
	logger       *slog.Logger
	snapshots    SnapshotService
	lifecycle    LifecycleService
	registration RegistrationService
	advancement  AdvancementService
	admin        AdminService
	dev          DevService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	store := repositories.NewMemoryStore()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	env := &testEnv{
		store:       store,
		tournaments: store.Tournaments(),
		entries:     store.Entries(),
		matches:     store.Matches(),
		notifier:    &recordingNotifier{},
		uploader:    &recordingUploader{},
		workspace:   &fakeWorkspace{},
		logger:      logger,
	}
	transactor := store.Transactor()

	env.snapshots = NewSnapshotService(env.tournaments, env.entries, env.matches, env.notifier, logger)
	env.lifecycle = NewLifecycleService(
		env.tournaments, env.entries, env.matches, transactor,
		brackets.NewSingleEliminationGenerator(), env.snapshots, logger,
	)
	env.registration = NewRegistrationService(env.tournaments, env.entries, env.snapshots, logger)
	env.advancement = NewAdvancementService(
		env.tournaments, env.entries, env.matches, transactor, env.snapshots, logger,
	)
	env.admin = NewAdminService(
		env.tournaments, env.entries, env.matches, transactor, env.snapshots,
		env.uploader, env.workspace, logger,
	)
	env.dev = NewDevService(env.entries, env.matches, env.registration, env.advancement, logger)
	return env
}

// createOpen creates a tournament and opens registration.
func (env *testEnv) createOpen(t *testing.T, guildID int64, name string) *models.Tournament {
	t.Helper()
	ctx := context.Background()

	tournament, err := env.lifecycle.Create(ctx, guildID, name)
	require.NoError(t, err)
	_, err = env.lifecycle.OpenRegistration(ctx, tournament.ID)
	require.NoError(t, err)
	return tournament
}

// createStarted runs the whole pre-game flow with n players (ids 1001..).
func (env *testEnv) createStarted(t *testing.T, guildID int64, n int) *models.Tournament {
	t.Helper()
	ctx := context.Background()

	tournament := env.createOpen(t, guildID, "Test Cup")
	for i := 0; i < n; i++ {
		_, err := env.registration.Register(ctx, tournament.ID, int64(1001+i))
		require.NoError(t, err)
	}
	_, err := env.lifecycle.CloseRegistration(ctx, tournament.ID)
	require.NoError(t, err)
	started, err := env.lifecycle.Start(ctx, tournament.ID)
	require.NoError(t, err)
	return started
}

// matchAt finds the match at (round, slot).
func (env *testEnv) matchAt(t *testing.T, tournamentID, round, slot int) *models.Match {
	t.Helper()
	m, err := env.matches.GetByRoundSlot(context.Background(), tournamentID, round, slot)
	require.NoError(t, err)
	return m
}

// entryOf finds the player's entry in a tournament.
func (env *testEnv) entryOf(t *testing.T, tournamentID int, playerID int64) *models.Entry {
	t.Helper()
	e, err := env.entries.GetByPlayer(context.Background(), tournamentID, playerID)
	require.NoError(t, err)
	return e
}
