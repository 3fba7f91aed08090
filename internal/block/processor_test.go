package block

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/pkg/crypto"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
	"github.com/Klingon-tech/klingnet-index/pkg/wire"
)

func testProcessor(t *testing.T) *Processor {
	t.Helper()
	p, err := NewProcessor(storage.NewMemory(), types.Height(10))
	require.NoError(t, err)
	return p
}

func coinbaseTx(hx types.HashX, reward uint64) *wire.Transaction {
	return &wire.Transaction{
		Inputs:  []wire.Input{{PrevOut: wire.Outpoint{}}},
		Outputs: []wire.Output{{Value: reward, HashX: hx, Kind: wire.KindRegular}},
	}
}

func genesisBlock(hx types.HashX) *wire.Block {
	return &wire.Block{
		Header:       wire.Header{Height: 0},
		Transactions: []*wire.Transaction{coinbaseTx(hx, 5000)},
	}
}

func TestAdvanceBlockGenesisSetsTip(t *testing.T) {
	p := testProcessor(t)
	var hx types.HashX
	hx[0] = 1

	blk := genesisBlock(hx)
	require.NoError(t, p.AdvanceBlock(blk))

	tip, err := p.Tip()
	require.NoError(t, err)
	assert.Equal(t, types.Height(0), tip.Height)
	assert.Equal(t, blk.Hash(), tip.TipHash)
}

func TestAdvanceBlockRejectsBadPrevHash(t *testing.T) {
	p := testProcessor(t)
	var hx types.HashX
	hx[0] = 1
	require.NoError(t, p.AdvanceBlock(genesisBlock(hx)))

	bad := &wire.Block{
		Header:       wire.Header{Height: 1, PrevHash: types.Hash{0xFF}},
		Transactions: []*wire.Transaction{coinbaseTx(hx, 5000)},
	}
	err := p.AdvanceBlock(bad)
	assert.ErrorIs(t, err, ErrBadPrevHash)
}

func TestAdvanceBlockCreatesAndActivatesClaim(t *testing.T) {
	p := testProcessor(t)
	var hx types.HashX
	hx[0] = 1

	genesis := genesisBlock(hx)
	require.NoError(t, p.AdvanceBlock(genesis))

	claimTx := &wire.Transaction{
		Inputs: []wire.Input{{PrevOut: wire.Outpoint{}}},
		Outputs: []wire.Output{
			{Value: 500, HashX: hx, Kind: wire.KindClaimName, Claim: &wire.ClaimMeta{Name: "foo"}},
		},
	}
	blk1 := &wire.Block{
		Header:       wire.Header{Height: 1, PrevHash: genesis.Hash()},
		Transactions: []*wire.Transaction{claimTx},
	}
	require.NoError(t, p.AdvanceBlock(blk1))

	claimHash := crypto.ClaimHashFromOutpoint(claimTx.Hash(), 0)
	c, err := p.claims.Get(claimHash)
	require.NoError(t, err)
	assert.Equal(t, "foo", c.Name)
	assert.Equal(t, uint64(500), c.Amount)

	takeover, err := p.takeovers.Get("foo")
	require.NoError(t, err)
	assert.Equal(t, claimHash, takeover.ClaimHash)
}

func TestAdvanceBlockAbandonRemovesClaim(t *testing.T) {
	p := testProcessor(t)
	var hx types.HashX
	hx[0] = 1

	genesis := genesisBlock(hx)
	require.NoError(t, p.AdvanceBlock(genesis))

	claimTx := &wire.Transaction{
		Inputs: []wire.Input{{PrevOut: wire.Outpoint{}}},
		Outputs: []wire.Output{
			{Value: 500, HashX: hx, Kind: wire.KindClaimName, Claim: &wire.ClaimMeta{Name: "foo"}},
		},
	}
	blk1 := &wire.Block{
		Header:       wire.Header{Height: 1, PrevHash: genesis.Hash()},
		Transactions: []*wire.Transaction{claimTx},
	}
	require.NoError(t, p.AdvanceBlock(blk1))
	claimHash := crypto.ClaimHashFromOutpoint(claimTx.Hash(), 0)

	spendTx := &wire.Transaction{
		Inputs: []wire.Input{{PrevOut: wire.Outpoint{TxHash: claimTx.Hash(), Index: 0}}},
		Outputs: []wire.Output{
			{Value: 500, HashX: hx, Kind: wire.KindRegular},
		},
	}
	blk2 := &wire.Block{
		Header:       wire.Header{Height: 2, PrevHash: blk1.Hash()},
		Transactions: []*wire.Transaction{spendTx},
	}
	require.NoError(t, p.AdvanceBlock(blk2))

	_, err := p.claims.Get(claimHash)
	assert.Error(t, err)

	_, err = p.takeovers.Get("foo")
	assert.Error(t, err)
}

func TestAdvanceBlockUpdateClaimPreservesClaimAndRootPointers(t *testing.T) {
	p := testProcessor(t)
	var hx types.HashX
	hx[0] = 1

	genesis := genesisBlock(hx)
	require.NoError(t, p.AdvanceBlock(genesis))

	claimTx := &wire.Transaction{
		Inputs: []wire.Input{{PrevOut: wire.Outpoint{}}},
		Outputs: []wire.Output{
			{Value: 100, HashX: hx, Kind: wire.KindClaimName, Claim: &wire.ClaimMeta{Name: "foo"}},
		},
	}
	blk1 := &wire.Block{
		Header:       wire.Header{Height: 1, PrevHash: genesis.Hash()},
		Transactions: []*wire.Transaction{claimTx},
	}
	require.NoError(t, p.AdvanceBlock(blk1))

	claimHash := crypto.ClaimHashFromOutpoint(claimTx.Hash(), 0)
	original, err := p.claims.Get(claimHash)
	require.NoError(t, err)

	updateTx := &wire.Transaction{
		Inputs: []wire.Input{{PrevOut: wire.Outpoint{TxHash: claimTx.Hash(), Index: 0}}},
		Outputs: []wire.Output{
			{Value: 200, HashX: hx, Kind: wire.KindUpdateClaim, Claim: &wire.ClaimMeta{Name: "foo", ClaimHash: claimHash}},
		},
	}
	blk2 := &wire.Block{
		Header:       wire.Header{Height: 2, PrevHash: blk1.Hash()},
		Transactions: []*wire.Transaction{updateTx},
	}
	require.NoError(t, p.AdvanceBlock(blk2))

	updated, err := p.claims.Get(claimHash)
	require.NoError(t, err, "update_claim must mutate the claim in place, not abandon it")
	assert.Equal(t, uint64(200), updated.Amount)
	assert.Equal(t, original.RootTxNum, updated.RootTxNum)
	assert.Equal(t, original.RootNout, updated.RootNout)

	takeover, err := p.takeovers.Get("foo")
	require.NoError(t, err)
	assert.Equal(t, claimHash, takeover.ClaimHash)
}

func TestAdvanceBlockUpdateClaimNameMismatchAbandonsClaim(t *testing.T) {
	p := testProcessor(t)
	var hx types.HashX
	hx[0] = 1

	genesis := genesisBlock(hx)
	require.NoError(t, p.AdvanceBlock(genesis))

	claimTx := &wire.Transaction{
		Inputs: []wire.Input{{PrevOut: wire.Outpoint{}}},
		Outputs: []wire.Output{
			{Value: 100, HashX: hx, Kind: wire.KindClaimName, Claim: &wire.ClaimMeta{Name: "foo"}},
		},
	}
	blk1 := &wire.Block{
		Header:       wire.Header{Height: 1, PrevHash: genesis.Hash()},
		Transactions: []*wire.Transaction{claimTx},
	}
	require.NoError(t, p.AdvanceBlock(blk1))
	claimHash := crypto.ClaimHashFromOutpoint(claimTx.Hash(), 0)

	updateTx := &wire.Transaction{
		Inputs: []wire.Input{{PrevOut: wire.Outpoint{TxHash: claimTx.Hash(), Index: 0}}},
		Outputs: []wire.Output{
			{Value: 200, HashX: hx, Kind: wire.KindUpdateClaim, Claim: &wire.ClaimMeta{Name: "bar", ClaimHash: claimHash}},
		},
	}
	blk2 := &wire.Block{
		Header:       wire.Header{Height: 2, PrevHash: blk1.Hash()},
		Transactions: []*wire.Transaction{updateTx},
	}
	require.NoError(t, p.AdvanceBlock(blk2))

	_, err := p.claims.Get(claimHash)
	assert.Error(t, err, "a name-mismatched update drops the update but still abandons the spent claim")
}
