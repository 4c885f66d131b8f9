package store_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenmint/pkg/store"
	"tokenmint/pkg/types"
)

var epoch = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newManager(t *testing.T, path string, clock clockwork.Clock) *store.Manager {
	t.Helper()
	storage, err := store.NewStorage(path)
	require.NoError(t, err)
	m, err := store.NewManager(store.ManagerConfig{
		Storage: storage,
		TTL:     time.Hour,
		Clock:   clock,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return m
}

func TestAcquire(t *testing.T) {
	m := newManager(t, "", clockwork.NewFakeClockAt(epoch))

	rec, err := m.Acquire("key-1", "ref-1", "payer")
	require.NoError(t, err)
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, store.StateProcessing, rec.State)
	assert.Equal(t, epoch.Add(time.Hour), rec.ExpiresAt)

	existing, err := m.Acquire("key-1", "ref-1", "payer")
	assert.ErrorIs(t, err, store.ErrKeyExists)
	require.NotNil(t, existing)
	assert.Equal(t, rec.ID, existing.ID)

	holder, err := m.Acquire("key-2", "ref-1", "payer")
	assert.ErrorIs(t, err, store.ErrReferenceInUse)
	require.NotNil(t, holder)
	assert.Equal(t, "key-1", holder.Key)
}

func TestCompleteAndFail(t *testing.T) {
	m := newManager(t, "", clockwork.NewFakeClockAt(epoch))

	_, err := m.Acquire("ok", "ref-ok", "payer")
	require.NoError(t, err)
	require.NoError(t, m.Complete("ok", &types.MintResult{Mint: "mint-addr", TokenAccount: "ata"}))

	rec, err := m.Get("ok")
	require.NoError(t, err)
	assert.Equal(t, store.StateCompleted, rec.State)
	require.NotNil(t, rec.Result)
	assert.Equal(t, "mint-addr", rec.Result.Mint)

	// Completed records are terminal
	assert.ErrorIs(t, m.Fail("ok", "mint_to", "", errors.New("boom")), store.ErrInvalidTransition)
	assert.ErrorIs(t, m.Release("ok"), store.ErrInvalidTransition)

	_, err = m.Acquire("bad", "ref-bad", "payer")
	require.NoError(t, err)
	require.NoError(t, m.Fail("bad", "mint_to", "mint-addr", errors.New("rpc timeout")))

	rec, err = m.Get("bad")
	require.NoError(t, err)
	assert.Equal(t, store.StateFailed, rec.State)
	assert.Equal(t, "mint_to", rec.FailedStep)
	assert.Equal(t, "rpc timeout", rec.Error)

	// A failed record keeps its payment reference claimed
	_, err = m.Acquire("retry", "ref-bad", "payer")
	assert.ErrorIs(t, err, store.ErrReferenceInUse)
}

func TestRelease(t *testing.T) {
	m := newManager(t, "", clockwork.NewFakeClockAt(epoch))

	_, err := m.Acquire("key", "ref", "payer")
	require.NoError(t, err)
	require.NoError(t, m.Release("key"))

	_, err = m.Get("key")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = m.Acquire("other", "ref", "payer")
	assert.NoError(t, err)

	assert.ErrorIs(t, m.Release("missing"), store.ErrNotFound)
}

func TestExpiry(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	m := newManager(t, "", clock)

	_, err := m.Acquire("key", "ref", "payer")
	require.NoError(t, err)
	require.NoError(t, m.Complete("key", &types.MintResult{Mint: "m"}))

	clock.Advance(59 * time.Minute)
	_, err = m.Get("key")
	require.NoError(t, err)

	clock.Advance(time.Minute)
	_, err = m.Get("key")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, m.List(""))

	// An expired key can be reused
	rec, err := m.Acquire("key", "ref", "payer")
	require.NoError(t, err)
	assert.Equal(t, store.StateProcessing, rec.State)
}

func TestSweep(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	m := newManager(t, "", clock)

	_, err := m.Acquire("old", "ref-old", "payer")
	require.NoError(t, err)
	clock.Advance(30 * time.Minute)
	_, err = m.Acquire("new", "ref-new", "payer")
	require.NoError(t, err)

	clock.Advance(45 * time.Minute)
	removed, err := m.Sweep()
	require.NoError(t, err)
	assert.Equal(t, 1, removed)

	records := m.List("")
	require.Len(t, records, 1)
	assert.Equal(t, "new", records[0].Key)
}

func TestRunSweeper(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	m := newManager(t, "", clock)

	_, err := m.Acquire("key", "ref", "payer")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		m.RunSweeper(ctx, 10*time.Minute)
		close(done)
	}()

	require.NoError(t, clock.BlockUntilContext(ctx, 1))
	clock.Advance(2 * time.Hour)

	assert.Eventually(t, func() bool {
		_, err := m.Get("key")
		return errors.Is(err, store.ErrNotFound) && len(m.List("")) == 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done
}

func TestList(t *testing.T) {
	clock := clockwork.NewFakeClockAt(epoch)
	m := newManager(t, "", clock)

	for _, key := range []string{"a", "b", "c"} {
		_, err := m.Acquire(key, "ref-"+key, "payer")
		require.NoError(t, err)
		clock.Advance(time.Second)
	}
	require.NoError(t, m.Complete("b", &types.MintResult{Mint: "m"}))

	all := m.List("")
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].Key, "newest first")

	completed := m.List(store.StateCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, "b", completed[0].Key)
}

func TestPersistence(t *testing.T) {
	path := filepath.Join(t.TempDir(), "records.json")
	clock := clockwork.NewFakeClockAt(epoch)

	m := newManager(t, path, clock)
	_, err := m.Acquire("key", "ref", "payer")
	require.NoError(t, err)
	require.NoError(t, m.Complete("key", &types.MintResult{Mint: "mint-addr", TokenAccount: "ata"}))

	reopened := newManager(t, path, clock)
	rec, err := reopened.Get("key")
	require.NoError(t, err)
	assert.Equal(t, store.StateCompleted, rec.State)
	assert.Equal(t, "mint-addr", rec.Result.Mint)
	assert.Equal(t, "ref", rec.PaymentReference)
}

func TestAcquire_SaveFailureLeavesNoRecord(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	m := newManager(t, filepath.Join(dir, "records.json"), clockwork.NewFakeClockAt(epoch))

	// A regular file where the directory should be makes every save fail
	require.NoError(t, os.WriteFile(dir, []byte("x"), 0600))

	_, err := m.Acquire("key-1", "ref-1", "payer")
	require.Error(t, err)
	assert.NotErrorIs(t, err, store.ErrKeyExists)

	_, err = m.Get("key-1")
	assert.ErrorIs(t, err, store.ErrNotFound)
	assert.Empty(t, m.List(""))

	require.NoError(t, os.Remove(dir))

	rec, err := m.Acquire("key-1", "ref-1", "payer")
	require.NoError(t, err)
	assert.Equal(t, store.StateProcessing, rec.State)
}

func TestComplete_SaveFailureKeepsProcessing(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	m := newManager(t, filepath.Join(dir, "records.json"), clockwork.NewFakeClockAt(epoch))

	_, err := m.Acquire("key-1", "ref-1", "payer")
	require.NoError(t, err)

	require.NoError(t, os.RemoveAll(dir))
	require.NoError(t, os.WriteFile(dir, []byte("x"), 0600))

	err = m.Complete("key-1", &types.MintResult{Mint: "mint"})
	require.Error(t, err)

	rec, err := m.Get("key-1")
	require.NoError(t, err)
	assert.Equal(t, store.StateProcessing, rec.State)
	assert.Nil(t, rec.Result)
}
