package roledb

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	roletypes "github.com/rolewarden/rolewarden/app/types/rolemessage"
	sharedtypes "github.com/rolewarden/rolewarden/app/types/shared"
)

func testStore(repo Repository) *CachedStore {
	return NewCachedStore(repo, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func doc(guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) *roletypes.RoleMessage {
	return &roletypes.RoleMessage{
		SchemaVersion: roletypes.SchemaVersion,
		GuildID:       guildID,
		ChannelID:     "c1",
		MessageID:     messageID,
		Style:         roletypes.StyleReaction,
		Triggers: map[sharedtypes.TriggerKey]roletypes.Binding{
			"🔴": {RoleID: "r-red", Mode: roletypes.ModeNormal},
		},
	}
}

func TestCachedStore_PutAndRead(t *testing.T) {
	repo := NewFakeRepository()
	store := testStore(repo)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, doc("g1", "m1")))
	require.NoError(t, store.Put(ctx, doc("g1", "m2")))

	msgs, err := store.Guild(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, sharedtypes.MessageID("m1"), msgs[0].MessageID)
	assert.Equal(t, sharedtypes.MessageID("m2"), msgs[1].MessageID)

	got, err := store.Message(ctx, "g1", "m1")
	require.NoError(t, err)
	assert.Equal(t, sharedtypes.MessageID("m1"), got.MessageID)

	_, err = store.Message(ctx, "g1", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCachedStore_ReadsReturnCopies(t *testing.T) {
	store := testStore(NewFakeRepository())
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, doc("g1", "m1")))

	first, err := store.Message(ctx, "g1", "m1")
	require.NoError(t, err)
	first.Triggers["🟢"] = roletypes.Binding{RoleID: "r-green"}

	// Mutating the returned copy must not leak into the store.
	second, err := store.Message(ctx, "g1", "m1")
	require.NoError(t, err)
	assert.NotContains(t, second.Triggers, sharedtypes.TriggerKey("🟢"))
}

func TestCachedStore_LazyLoadFromRepository(t *testing.T) {
	repo := NewFakeRepository()
	repo.Seed(doc("g1", "m1"))
	store := testStore(repo)

	msgs, err := store.Guild(context.Background(), "g1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, sharedtypes.MessageID("m1"), msgs[0].MessageID)
}

func TestCachedStore_MemoryAuthoritativeOnWriteFailure(t *testing.T) {
	repo := NewFakeRepository()
	repoDown := errors.New("connection refused")
	repo.UpsertFunc = func(context.Context, *roletypes.RoleMessage) error { return repoDown }
	store := testStore(repo)
	ctx := context.Background()

	err := store.Put(ctx, doc("g1", "m1"))
	assert.ErrorIs(t, err, repoDown)

	// The document is still served from memory.
	got, err := store.Message(ctx, "g1", "m1")
	require.NoError(t, err)
	assert.Equal(t, sharedtypes.MessageID("m1"), got.MessageID)

	// Flush retries and fails while the repository is down.
	assert.Equal(t, 1, store.Flush(ctx))

	// Repository recovers: flush drains the dirty key.
	repo.UpsertFunc = nil
	assert.Equal(t, 0, store.Flush(ctx))
	assert.NotNil(t, repo.Stored("g1", "m1"))
}

func TestCachedStore_DeleteTombstoneRetried(t *testing.T) {
	repo := NewFakeRepository()
	repo.Seed(doc("g1", "m1"))
	repoDown := errors.New("connection refused")
	repo.DeleteFunc = func(context.Context, sharedtypes.GuildID, sharedtypes.MessageID) error { return repoDown }
	store := testStore(repo)
	ctx := context.Background()

	err := store.Delete(ctx, "g1", "m1")
	assert.ErrorIs(t, err, repoDown)

	// Gone from reads immediately, whatever the repository thinks.
	_, err = store.Message(ctx, "g1", "m1")
	assert.ErrorIs(t, err, ErrNotFound)

	repo.DeleteFunc = nil
	assert.Equal(t, 0, store.Flush(ctx))
	assert.Nil(t, repo.Stored("g1", "m1"))
}

func TestCachedStore_FlushDoesNotSettleOverNewerWrite(t *testing.T) {
	repo := NewFakeRepository()
	store := testStore(repo)
	ctx := context.Background()

	// First write fails, leaving the old document dirty for the flush.
	repoDown := errors.New("connection refused")
	repo.UpsertFunc = func(context.Context, *roletypes.RoleMessage) error { return repoDown }
	old := doc("g1", "m1")
	old.View.Title = "old"
	_ = store.Put(ctx, old)

	flushWriting := make(chan struct{})
	releaseFlush := make(chan struct{})
	var calls int32
	repo.UpsertFunc = func(_ context.Context, msg *roletypes.RoleMessage) error {
		// First call is the flush retrying the old snapshot; park it so a
		// newer Put can land and persist underneath it.
		if atomic.AddInt32(&calls, 1) == 1 {
			close(flushWriting)
			<-releaseFlush
		}
		repo.Seed(msg)
		return nil
	}

	flushed := make(chan int)
	go func() { flushed <- store.Flush(ctx) }()
	<-flushWriting

	newer := doc("g1", "m1")
	newer.View.Title = "new"
	require.NoError(t, store.Put(ctx, newer))
	require.Equal(t, "new", repo.Stored("g1", "m1").View.Title)

	// The flush's stale snapshot lands last and regresses the stored row,
	// but the key must stay queued so the regression is repaired.
	close(releaseFlush)
	assert.Equal(t, 1, <-flushed)

	assert.Equal(t, 0, store.Flush(ctx))
	assert.Equal(t, "new", repo.Stored("g1", "m1").View.Title)

	got, err := store.Message(ctx, "g1", "m1")
	require.NoError(t, err)
	assert.Equal(t, "new", got.View.Title)
}

func TestCachedStore_DeleteNotSettledOverNewerPut(t *testing.T) {
	repo := NewFakeRepository()
	store := testStore(repo)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, doc("g1", "m1")))

	deleteStarted := make(chan struct{})
	releaseDelete := make(chan struct{})
	repo.DeleteFunc = func(_ context.Context, guildID sharedtypes.GuildID, messageID sharedtypes.MessageID) error {
		close(deleteStarted)
		<-releaseDelete
		repo.mu.Lock()
		delete(repo.docs, fakeKey(guildID, messageID))
		repo.mu.Unlock()
		return nil
	}

	deleted := make(chan error)
	go func() { deleted <- store.Delete(ctx, "g1", "m1") }()
	<-deleteStarted

	// Re-create the document while the repository delete is in flight.
	revived := doc("g1", "m1")
	revived.View.Title = "revived"
	require.NoError(t, store.Put(ctx, revived))

	close(releaseDelete)
	require.NoError(t, <-deleted)

	// The stale delete removed the freshly persisted row; the flush puts
	// the surviving document back.
	assert.Equal(t, 0, store.Flush(ctx))
	require.NotNil(t, repo.Stored("g1", "m1"))
	assert.Equal(t, "revived", repo.Stored("g1", "m1").View.Title)
}

func TestCachedStore_DirtyOutranksStored(t *testing.T) {
	repo := NewFakeRepository()
	repo.UpsertFunc = func(context.Context, *roletypes.RoleMessage) error {
		return errors.New("down")
	}
	stale := doc("g1", "m1")
	stale.View.Title = "old title"
	repo.Seed(stale)

	store := testStore(repo)
	ctx := context.Background()

	fresh := doc("g1", "m1")
	fresh.View.Title = "new title"
	_ = store.Put(ctx, fresh)

	// First guild read triggers the lazy load; the unflushed in-memory
	// document must not be clobbered by the stored stale one.
	msgs, err := store.Guild(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "new title", msgs[0].View.Title)
}
