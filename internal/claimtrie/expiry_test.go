package claimtrie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

func TestExpirationIndexScheduleAndDueAt(t *testing.T) {
	pdb := storage.NewPrefixDB(storage.NewMemory())
	idx := NewExpirationIndex(pdb)

	var hash types.ClaimHash
	hash[0] = 0x01
	require.NoError(t, idx.Schedule(hash, 100))
	require.NoError(t, pdb.Commit(types.Height(1)))

	due, err := idx.DueAt(100)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, hash, due[0])

	empty, err := idx.DueAt(101)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestExpirerAbandonsNonChannelsFirstThenChannels(t *testing.T) {
	pdb := storage.NewPrefixDB(storage.NewMemory())
	claims := NewClaimStore(pdb)
	idx := NewExpirationIndex(pdb)

	var channel, signed types.ClaimHash
	channel[0], signed[0] = 0x01, 0x02
	require.NoError(t, claims.Put(&Claim{ClaimHash: channel, Name: "@ch"}))
	require.NoError(t, claims.Put(&Claim{ClaimHash: signed, Name: "post", ChannelHash: channel}))
	require.NoError(t, idx.Schedule(channel, 50))
	require.NoError(t, idx.Schedule(signed, 50))
	require.NoError(t, pdb.Commit(types.Height(1)))

	var order []types.ClaimHash
	abandon := func(c *Claim) error {
		order = append(order, c.ClaimHash)
		return claims.Delete(c)
	}
	isChannel := func(c *Claim) bool { return c.ClaimHash == channel }

	expirer := NewExpirer(claims, abandon, isChannel)
	require.NoError(t, expirer.Run(idx, 50))
	require.NoError(t, pdb.Commit(types.Height(2)))

	require.Len(t, order, 2)
	assert.Equal(t, signed, order[0])
	assert.Equal(t, channel, order[1])
}
