package claimtrie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

func TestStageAndUnstageShortIDs(t *testing.T) {
	pdb := storage.NewPrefixDB(storage.NewMemory())
	var hash types.ClaimHash
	hash[0], hash[1] = 0xAB, 0xCD

	require.NoError(t, stageShortIDs(pdb, "hello", hash, 7, 0))
	require.NoError(t, pdb.Commit(types.Height(1)))

	v, err := pdb.Get(storage.ColClaimShortID, shortIDKey("hello", "a"))
	require.NoError(t, err)
	assert.Equal(t, encodeRootOutpoint(7, 0), v)

	fullHex := "abcd"
	_, err = pdb.Get(storage.ColClaimShortID, shortIDKey("hello", fullHex))
	require.NoError(t, err)

	require.NoError(t, unstageShortIDs(pdb, "hello", hash))
	require.NoError(t, pdb.Commit(types.Height(2)))

	_, err = pdb.Get(storage.ColClaimShortID, shortIDKey("hello", "a"))
	assert.ErrorIs(t, err, storage.ErrKeyNotFound)
}

func TestEncodeRootOutpointIs12Bytes(t *testing.T) {
	buf := encodeRootOutpoint(12345, 3)
	assert.Len(t, buf, 12)
}
