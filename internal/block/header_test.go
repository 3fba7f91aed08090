package block

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
	"github.com/Klingon-tech/klingnet-index/pkg/wire"
)

func TestHeaderStorePutGet(t *testing.T) {
	pdb := storage.NewPrefixDB(storage.NewMemory())
	headers := NewHeaderStore(pdb)

	h := wire.Header{Height: 10, Version: 1, Bits: 0x1d00ffff}
	require.NoError(t, headers.Put(h))
	require.NoError(t, pdb.Commit(h.Height))

	got, err := headers.Get(10)
	require.NoError(t, err)
	assert.Equal(t, h, *got)
}

func TestHeaderStoreGetMissing(t *testing.T) {
	pdb := storage.NewPrefixDB(storage.NewMemory())
	headers := NewHeaderStore(pdb)

	_, err := headers.Get(5)
	assert.True(t, errors.Is(err, ErrHeaderNotFound))
}

func TestHeaderStoreDelete(t *testing.T) {
	pdb := storage.NewPrefixDB(storage.NewMemory())
	headers := NewHeaderStore(pdb)

	h := wire.Header{Height: 3}
	require.NoError(t, headers.Put(h))
	require.NoError(t, pdb.Commit(h.Height))

	require.NoError(t, headers.Delete(3))
	require.NoError(t, pdb.UnsafeCommit())

	_, err := headers.Get(3)
	assert.True(t, errors.Is(err, ErrHeaderNotFound))
}
