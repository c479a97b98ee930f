package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SourceAcademyGame/internal/game"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "game.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestPlayers(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	_, err := store.DisplayName(ctx, "p1")
	assert.ErrorIs(t, err, ErrPlayerNotFound)

	require.NoError(t, store.UpsertPlayer(ctx, "p1", "Avery"))
	name, err := store.DisplayName(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Avery", name)

	require.NoError(t, store.UpsertPlayer(ctx, "p1", "  Avery B "))
	name, err = store.DisplayName(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Avery B", name)

	assert.Error(t, store.UpsertPlayer(ctx, "", "x"))
	assert.Error(t, store.UpsertPlayer(ctx, "p2", " "))
}

func TestPlaybackHistory(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, store.RecordPlayback(ctx, game.PlaybackRecord{
		SessionID: "s1", PlayerID: "p1", DialogueID: "intro", Lines: 5,
		Outcome: game.OutcomeCompleted, FinishedAt: base,
	}))
	require.NoError(t, store.RecordPlayback(ctx, game.PlaybackRecord{
		SessionID: "s2", PlayerID: "p1", DialogueID: "hint", Lines: 1,
		Outcome: game.OutcomeCancelled, FinishedAt: base.Add(time.Minute),
	}))
	require.NoError(t, store.RecordPlayback(ctx, game.PlaybackRecord{
		SessionID: "s3", PlayerID: "p2", DialogueID: "intro", Outcome: game.OutcomeFailed, FinishedAt: base,
	}))

	recs, err := store.ListPlayback(ctx, "p1", 0)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "s2", recs[0].SessionID)
	assert.Equal(t, "s1", recs[1].SessionID)
	assert.Equal(t, 5, recs[1].Lines)
	assert.True(t, base.Equal(recs[1].FinishedAt))

	// Session ids are unique.
	assert.Error(t, store.RecordPlayback(ctx, game.PlaybackRecord{SessionID: "s1", PlayerID: "p1"}))
	assert.Error(t, store.RecordPlayback(ctx, game.PlaybackRecord{}))
}

func TestFlags(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetFlag(ctx, "p1", "b"))
	require.NoError(t, store.SetFlag(ctx, "p1", "a"))
	require.NoError(t, store.SetFlag(ctx, "p1", "a"))
	require.NoError(t, store.SetFlag(ctx, "p2", "c"))

	flags, err := store.Flags(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, flags)
}

func TestReopenKeepsDataAndSkipsMigrations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "game.db")
	store, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, store.SetFlag(context.Background(), "p1", "x"))
	require.NoError(t, store.Close())

	store, err = Open(path)
	require.NoError(t, err)
	defer store.Close()
	flags, err := store.Flags(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, flags)
}

func TestInMemory(t *testing.T) {
	store, err := Open(":memory:")
	require.NoError(t, err)
	defer store.Close()
	require.NoError(t, store.UpsertPlayer(context.Background(), "p1", "Avery"))
}

func TestExtractUpMigration(t *testing.T) {
	assert.Equal(t, "\nA\n", extractUpMigration("-- +migrate Up\nA\n-- +migrate Down\nB"))
	assert.Equal(t, "plain", extractUpMigration("plain"))
}
