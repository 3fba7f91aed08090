package claimtrie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

func TestActivationScheduleAndDueAt(t *testing.T) {
	pdb := storage.NewPrefixDB(storage.NewMemory())
	s := NewActivationStore(pdb)

	var hash types.ClaimHash
	hash[0] = 0x01
	target := ActivationTarget{Name: "x", ClaimHash: hash, Amount: 50}

	require.NoError(t, s.Schedule(30, target))
	require.NoError(t, pdb.Commit(types.Height(1)))

	due, err := s.DueAt(30)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "x", due[0].Name)

	empty, err := s.DueAt(31)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestActivationActivateIsActive(t *testing.T) {
	pdb := storage.NewPrefixDB(storage.NewMemory())
	s := NewActivationStore(pdb)

	var hash types.ClaimHash
	hash[0] = 0x02
	target := ActivationTarget{Name: "x", ClaimHash: hash}

	active, err := s.IsActive(target)
	require.NoError(t, err)
	assert.False(t, active)

	require.NoError(t, s.Activate(5, target))
	require.NoError(t, pdb.Commit(types.Height(1)))

	active, err = s.IsActive(target)
	require.NoError(t, err)
	assert.True(t, active)

	require.NoError(t, s.Deactivate(target))
	require.NoError(t, pdb.Commit(types.Height(2)))

	active, err = s.IsActive(target)
	require.NoError(t, err)
	assert.False(t, active)
}

func TestActivationPendingInWindow(t *testing.T) {
	pdb := storage.NewPrefixDB(storage.NewMemory())
	s := NewActivationStore(pdb)

	var hash types.ClaimHash
	hash[0] = 0x03
	require.NoError(t, s.Schedule(15, ActivationTarget{Name: "x", ClaimHash: hash}))
	require.NoError(t, pdb.Commit(types.Height(1)))

	heights, targets, err := s.PendingInWindow("x", 10, 20)
	require.NoError(t, err)
	require.Len(t, heights, 1)
	require.Len(t, targets, 1)
	assert.Equal(t, types.Height(15), heights[0])
}
