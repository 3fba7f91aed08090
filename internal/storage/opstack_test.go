package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

func TestReversibleOpStackCommitAndRollback(t *testing.T) {
	db := NewMemory()
	ops := NewReversibleOpStack(db)

	require.NoError(t, ops.StagePut(ColClaim, []byte("claim1"), []byte("v1")))
	v, err := ops.Get(ColClaim, []byte("claim1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	require.NoError(t, ops.Commit(types.Height(10)))
	assert.False(t, ops.Pending())

	v, err = db.Get(rawKey(ColClaim, []byte("claim1")))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	// Update at height 11, overwriting the prior value.
	require.NoError(t, ops.StagePut(ColClaim, []byte("claim1"), []byte("v2")))
	require.NoError(t, ops.Commit(types.Height(11)))

	v, err = db.Get(rawKey(ColClaim, []byte("claim1")))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)

	// Rolling back height 11 should restore v1.
	require.NoError(t, ops.Rollback(types.Height(11)))
	v, err = db.Get(rawKey(ColClaim, []byte("claim1")))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)
}

func TestReversibleOpStackRollbackOfCreate(t *testing.T) {
	db := NewMemory()
	ops := NewReversibleOpStack(db)

	require.NoError(t, ops.StagePut(ColClaim, []byte("new"), []byte("v")))
	require.NoError(t, ops.Commit(types.Height(1)))

	require.NoError(t, ops.Rollback(types.Height(1)))
	ok, err := db.Has(rawKey(ColClaim, []byte("new")))
	require.NoError(t, err)
	assert.False(t, ok, "claim created at height 1 should not exist after rollback")
}

func TestReversibleOpStackStageDeleteInverts(t *testing.T) {
	db := NewMemory()
	db.Put(rawKey(ColSupport, []byte("s1")), []byte("orig"))

	ops := NewReversibleOpStack(db)
	require.NoError(t, ops.StageDelete(ColSupport, []byte("s1")))
	require.NoError(t, ops.Commit(types.Height(5)))

	ok, _ := db.Has(rawKey(ColSupport, []byte("s1")))
	assert.False(t, ok)

	require.NoError(t, ops.Rollback(types.Height(5)))
	v, err := db.Get(rawKey(ColSupport, []byte("s1")))
	require.NoError(t, err)
	assert.Equal(t, []byte("orig"), v)
}

func TestReversibleOpStackStagePutOverPutFails(t *testing.T) {
	db := NewMemory()
	ops := NewReversibleOpStack(db)

	require.NoError(t, ops.StagePut(ColClaim, []byte("claim1"), []byte("v1")))
	err := ops.StagePut(ColClaim, []byte("claim1"), []byte("v2"))
	assert.ErrorIs(t, err, ErrInvariantViolated)
}

func TestReversibleOpStackStagePutAfterDeleteSucceeds(t *testing.T) {
	db := NewMemory()
	ops := NewReversibleOpStack(db)

	require.NoError(t, ops.StagePut(ColClaim, []byte("claim1"), []byte("v1")))
	require.NoError(t, ops.StageDelete(ColClaim, []byte("claim1")))
	require.NoError(t, ops.StagePut(ColClaim, []byte("claim1"), []byte("v2")))

	v, err := ops.Get(ColClaim, []byte("claim1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v2"), v)
}

func TestReversibleOpStackRollbackWhilePendingFails(t *testing.T) {
	db := NewMemory()
	ops := NewReversibleOpStack(db)
	require.NoError(t, ops.StagePut(ColClaim, []byte("x"), []byte("y")))

	err := ops.Rollback(types.Height(1))
	assert.ErrorIs(t, err, ErrInvariantViolated)
}

func TestReversibleOpStackRollbackMissingRecord(t *testing.T) {
	db := NewMemory()
	ops := NewReversibleOpStack(db)
	err := ops.Rollback(types.Height(99))
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestReversibleOpStackIterateMergesStaged(t *testing.T) {
	db := NewMemory()
	db.Put(rawKey(ColActivation, []byte("name/1")), []byte("committed1"))
	db.Put(rawKey(ColActivation, []byte("name/2")), []byte("committed2"))

	ops := NewReversibleOpStack(db)
	require.NoError(t, ops.StagePut(ColActivation, []byte("name/3"), []byte("staged3")))
	require.NoError(t, ops.StageDelete(ColActivation, []byte("name/1")))

	var keys []string
	err := ops.Iterate(ColActivation, []byte("name/"), false, func(k, v []byte) error {
		keys = append(keys, string(k))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"name/2", "name/3"}, keys)

	keys = nil
	err = ops.Iterate(ColActivation, []byte("name/"), true, func(k, v []byte) error {
		keys = append(keys, string(k))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"name/3", "name/2"}, keys)
}

func TestPrefixDBRoundTrip(t *testing.T) {
	db := NewMemory()
	p := NewPrefixDB(db)

	require.NoError(t, p.StagePut(ColUTXO, []byte("u1"), []byte("v1")))
	v, err := p.Get(ColUTXO, []byte("u1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), v)

	require.NoError(t, p.Commit(types.Height(3)))
	ok, err := p.Has(ColUTXO, []byte("u1"))
	require.NoError(t, err)
	assert.True(t, ok)
}
