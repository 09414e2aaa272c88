package index_test

import (
	"context"
	"testing"

	"github.com/iamNilotpal/ignite/internal/hlog"
	"github.com/iamNilotpal/ignite/internal/index"
	"github.com/iamNilotpal/ignite/pkg/errors"
	"github.com/iamNilotpal/ignite/pkg/logger"
	"github.com/stretchr/testify/require"
)

func newIndex(t *testing.T) *index.Index {
	t.Helper()
	idx, err := index.New(context.Background(), &index.Config{
		DataDir: t.TempDir(),
		Logger:  logger.Nop(),
	})
	require.NoError(t, err)
	return idx
}

func TestNewRequiresConfig(t *testing.T) {
	_, err := index.New(context.Background(), nil)
	require.Error(t, err)

	_, err = index.New(context.Background(), &index.Config{DataDir: "", Logger: logger.Nop()})
	require.Error(t, err)

	_, err = index.New(context.Background(), &index.Config{DataDir: t.TempDir(), Logger: nil})
	require.Error(t, err)
}

func TestPutGetDelete(t *testing.T) {
	idx := newIndex(t)

	require.NoError(t, idx.Put("k1", hlog.LogicalAddress(128), 64, 16, 1000))
	ptr, err := idx.Get("k1")
	require.NoError(t, err)
	require.Equal(t, "k1", ptr.Key)
	require.Equal(t, hlog.LogicalAddress(128), ptr.Address)
	require.Equal(t, uint32(64), ptr.EntrySize)
	require.Equal(t, uint32(16), ptr.ValueSize)
	require.Equal(t, int64(1000), ptr.Timestamp)

	require.Equal(t, 1, idx.Len())

	ok, err := idx.Delete("k1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 0, idx.Len())

	ok, err = idx.Delete("k1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestGetMissingKeyReturnsIndexError(t *testing.T) {
	idx := newIndex(t)

	_, err := idx.Get("missing")
	require.Error(t, err)
	require.True(t, errors.IsIndexError(err))
}

func TestPutOverwritesExisting(t *testing.T) {
	idx := newIndex(t)

	require.NoError(t, idx.Put("k", hlog.LogicalAddress(1), 1, 1, 1))
	require.NoError(t, idx.Put("k", hlog.LogicalAddress(2), 2, 2, 2))

	ptr, err := idx.Get("k")
	require.NoError(t, err)
	require.Equal(t, hlog.LogicalAddress(2), ptr.Address)
	require.Equal(t, 1, idx.Len())
}

func TestRangeStopsEarly(t *testing.T) {
	idx := newIndex(t)
	require.NoError(t, idx.Put("a", hlog.LogicalAddress(1), 1, 1, 1))
	require.NoError(t, idx.Put("b", hlog.LogicalAddress(2), 1, 1, 1))
	require.NoError(t, idx.Put("c", hlog.LogicalAddress(3), 1, 1, 1))

	seen := 0
	idx.Range(func(key string, ptr *index.RecordPointer) bool {
		seen++
		return false
	})
	require.Equal(t, 1, seen)
}

func TestCloseRejectsFurtherOperations(t *testing.T) {
	idx := newIndex(t)
	require.NoError(t, idx.Put("k", hlog.LogicalAddress(1), 1, 1, 1))

	require.NoError(t, idx.Close())

	_, err := idx.Get("k")
	require.ErrorIs(t, err, index.ErrIndexClosed)

	err = idx.Put("k2", hlog.LogicalAddress(2), 1, 1, 1)
	require.ErrorIs(t, err, index.ErrIndexClosed)

	_, err = idx.Delete("k")
	require.ErrorIs(t, err, index.ErrIndexClosed)

	require.ErrorIs(t, idx.Close(), index.ErrIndexClosed)
}
