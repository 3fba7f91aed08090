package claimtrie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

func TestSupportStorePutTotal(t *testing.T) {
	pdb := storage.NewPrefixDB(storage.NewMemory())
	s := NewSupportStore(pdb)

	var claimHash types.ClaimHash
	claimHash[0] = 0x01

	require.NoError(t, s.Put(&Support{ClaimHash: claimHash, TxNum: 1, Nout: 0, Amount: 100}))
	require.NoError(t, s.Put(&Support{ClaimHash: claimHash, TxNum: 2, Nout: 0, Amount: 50}))
	require.NoError(t, pdb.Commit(types.Height(1)))

	total, err := s.TotalActiveAmount(claimHash)
	require.NoError(t, err)
	assert.Equal(t, uint64(150), total)
}

func TestSupportStoreDelete(t *testing.T) {
	pdb := storage.NewPrefixDB(storage.NewMemory())
	s := NewSupportStore(pdb)

	var claimHash types.ClaimHash
	claimHash[0] = 0x02
	sup := &Support{ClaimHash: claimHash, TxNum: 1, Nout: 0, Amount: 100}
	require.NoError(t, s.Put(sup))
	require.NoError(t, pdb.Commit(types.Height(1)))

	require.NoError(t, s.Delete(sup))
	require.NoError(t, pdb.Commit(types.Height(2)))

	total, err := s.TotalActiveAmount(claimHash)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), total)
}
