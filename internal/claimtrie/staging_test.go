package claimtrie

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

func TestBlockStagingTouchedOrDeleted(t *testing.T) {
	b := NewBlockStaging(10)
	var a, c types.ClaimHash
	a[0], c[0] = 0x01, 0x02

	b.Touch(a)
	b.Touch(c)
	b.Delete(c)

	touched, deleted := b.TouchedOrDeleted()
	assert.Equal(t, []types.ClaimHash{a}, touched)
	assert.Equal(t, []types.ClaimHash{c}, deleted)
}

func TestBlockStagingTouchNames(t *testing.T) {
	b := NewBlockStaging(1)
	b.TouchName("x")
	b.TouchName("y")
	assert.Len(t, b.TouchNames(), 2)
}

func TestBlockStagingRemovedActiveSupport(t *testing.T) {
	b := NewBlockStaging(1)
	var claimHash types.ClaimHash
	claimHash[0] = 0x01

	b.RecordRemovedActiveSupport(claimHash, 50)
	b.RecordRemovedActiveSupport(claimHash, 25)

	claims := b.ClaimsWithRemovedSupport()
	assert.Equal(t, []types.ClaimHash{claimHash}, claims)
}
