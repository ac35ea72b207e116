package store

import (
	"context"
	"testing"

	"github.com/cockroachdb/pebble"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openPebble(t *testing.T) *pebble.DB {
	t.Helper()
	db, err := pebble.Open(t.TempDir(), &pebble.Options{})
	require.NoError(t, err)
	return db
}

func TestPebbleStore_PutGetOverwrite(t *testing.T) {
	db := openPebble(t)
	defer db.Close()
	s := NewPebbleStore(db)
	ctx := context.Background()

	_, err := s.Get(ctx, "acme", "log_1")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Put(ctx, "acme", "log_1", sampleRecord("first")))
	require.NoError(t, s.Put(ctx, "acme", "log_1", sampleRecord("second")))
	require.NoError(t, s.Put(ctx, "beta", "log_1", sampleRecord("other")))

	got, err := s.Get(ctx, "acme", "log_1")
	require.NoError(t, err)
	assert.Equal(t, sampleRecord("second"), got)

	other, err := s.Get(ctx, "beta", "log_1")
	require.NoError(t, err)
	assert.Equal(t, "other", other.OriginalText)
}

func TestPebbleStore_KeyIsNamespacePath(t *testing.T) {
	db := openPebble(t)
	defer db.Close()
	s := NewPebbleStore(db)

	require.NoError(t, s.Put(context.Background(), "acme", "log_1", sampleRecord("x")))

	value, closer, err := db.Get([]byte("tenants/acme/processed_logs/log_1"))
	require.NoError(t, err)
	assert.Contains(t, string(value), `"tenant_id":"acme"`)
	require.NoError(t, closer.Close())
}

func TestPebbleStore_ClosedDBIsUnavailable(t *testing.T) {
	db := openPebble(t)
	s := NewPebbleStore(db)
	require.NoError(t, db.Close())

	err := s.Put(context.Background(), "acme", "log_1", sampleRecord("x"))
	var storeErr *Error
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, KindUnavailable, storeErr.Kind)

	_, err = s.Get(context.Background(), "acme", "log_1")
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, KindUnavailable, storeErr.Kind)
}
