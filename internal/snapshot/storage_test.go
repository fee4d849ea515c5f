package snapshot

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/abgdnv/storefront/internal/commerce"
	sferrors "github.com/abgdnv/storefront/internal/errors"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testStorageContract runs the behavior every backend must share.
func testStorageContract(t *testing.T, st commerce.Storage) {
	t.Helper()
	ctx := context.Background()

	_, err := st.Get(ctx, "session:absent")
	assert.ErrorIs(t, err, sferrors.ErrSnapshotNotFound)

	first := []byte(`{"cart":[],"wishlist":[{"productId":"1","addedAt":"2024-05-10T12:30:00Z"}]}`)
	require.NoError(t, st.Put(ctx, "eclat-store:user:42", first))
	got, err := st.Get(ctx, "eclat-store:user:42")
	require.NoError(t, err)
	assert.JSONEq(t, string(first), string(got))

	second := []byte(`{"cart":[{"productId":"2","size":"M","color":"Black","quantity":1,"price":58}],"wishlist":[]}`)
	require.NoError(t, st.Put(ctx, "eclat-store:user:42", second))
	got, err = st.Get(ctx, "eclat-store:user:42")
	require.NoError(t, err)
	assert.JSONEq(t, string(second), string(got), "last write wins")
}

func TestMemoryStorage(t *testing.T) {
	st := NewMemoryStorage()
	testStorageContract(t, st)

	// stored bytes are not aliased by the caller
	buf := []byte(`{"cart":[],"wishlist":[]}`)
	require.NoError(t, st.Put(context.Background(), "k", buf))
	buf[2] = 'X'
	got, err := st.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, `{"cart":[],"wishlist":[]}`, string(got))
}

func TestFileStorage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshots")
	st, err := NewFileStorage(dir)
	require.NoError(t, err)
	testStorageContract(t, st)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files are cleaned up")
	assert.Equal(t, ".json", filepath.Ext(entries[0].Name()))

	t.Run("Failure - cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		assert.ErrorIs(t, st.Put(ctx, "k", []byte("{}")), context.Canceled)
	})
}

func TestRedisStorage(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	t.Run("Success - contract", func(t *testing.T) {
		testStorageContract(t, NewRedisStorage(client, 0))
	})

	t.Run("Success - ttl expires idle snapshots", func(t *testing.T) {
		// given
		st := NewRedisStorage(client, time.Hour)
		require.NoError(t, st.Put(context.Background(), "session:ttl", []byte("{}")))
		assert.Equal(t, time.Hour, mr.TTL("session:ttl"))
		// when
		mr.FastForward(2 * time.Hour)
		// then
		_, err := st.Get(context.Background(), "session:ttl")
		assert.ErrorIs(t, err, sferrors.ErrSnapshotNotFound)
	})

	t.Run("Failure - server down", func(t *testing.T) {
		// given
		down := miniredis.RunT(t)
		c := redis.NewClient(&redis.Options{Addr: down.Addr(), MaxRetries: -1})
		defer c.Close()
		down.Close()
		st := NewRedisStorage(c, 0)
		// when
		_, err := st.Get(context.Background(), "k")
		// then
		require.Error(t, err)
		assert.NotErrorIs(t, err, sferrors.ErrSnapshotNotFound)
	})
}
