package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

func TestStateIsGenesis(t *testing.T) {
	assert.True(t, State{}.IsGenesis())
	assert.False(t, State{Height: 1}.IsGenesis())
	assert.False(t, State{TipHash: types.Hash{0x01}}.IsGenesis())
}

func TestTipStoreGetMissingIsGenesis(t *testing.T) {
	pdb := storage.NewPrefixDB(storage.NewMemory())
	tips := NewTipStore(pdb)

	got, err := tips.Get()
	require.NoError(t, err)
	assert.True(t, got.IsGenesis())
}

func TestTipStorePutGetRoundTrips(t *testing.T) {
	pdb := storage.NewPrefixDB(storage.NewMemory())
	tips := NewTipStore(pdb)

	want := State{Height: 42, TipHash: types.Hash{0xAB}, TxCount: 777}
	require.NoError(t, tips.Put(want))
	require.NoError(t, pdb.Commit(want.Height))

	got, err := tips.Get()
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
