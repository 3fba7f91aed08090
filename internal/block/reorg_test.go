package block

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/klingnet-index/pkg/crypto"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
	"github.com/Klingon-tech/klingnet-index/pkg/wire"
)

type fakeSearchSink struct {
	calls []struct {
		height  types.Height
		touched []types.ClaimHash
		deleted []types.ClaimHash
	}
}

func (f *fakeSearchSink) NotifyTouched(height types.Height, touched, deleted []types.ClaimHash) {
	f.calls = append(f.calls, struct {
		height  types.Height
		touched []types.ClaimHash
		deleted []types.ClaimHash
	}{height, touched, deleted})
}

type fakeHeaderSource struct {
	hashes map[types.Height]types.Hash
}

func (f *fakeHeaderSource) BlockHashAt(ctx context.Context, height types.Height) (types.Hash, error) {
	return f.hashes[height], nil
}

func TestBackupBlockReversesClaimCreation(t *testing.T) {
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

	_, err := p.claims.Get(claimHash)
	require.NoError(t, err)

	sink := &fakeSearchSink{}
	p.SetSearchSink(sink)

	require.NoError(t, p.BackupBlock())

	tip, err := p.Tip()
	require.NoError(t, err)
	assert.Equal(t, types.Height(0), tip.Height)
	assert.Equal(t, genesis.Hash(), tip.TipHash)

	_, err = p.claims.Get(claimHash)
	assert.Error(t, err)

	require.Len(t, sink.calls, 1)
	assert.Equal(t, types.Height(1), sink.calls[0].height)
	assert.Contains(t, sink.calls[0].deleted, claimHash)
}

func TestBackupBlockRefusesGenesis(t *testing.T) {
	p := testProcessor(t)
	var hx types.HashX
	hx[0] = 1
	require.NoError(t, p.AdvanceBlock(genesisBlock(hx)))

	err := p.BackupBlock()
	assert.ErrorIs(t, err, ErrReorgTooDeep)
}

func TestCheckAndAdvanceBlocksMatchingTip(t *testing.T) {
	p := testProcessor(t)
	var hx types.HashX
	hx[0] = 1
	genesis := genesisBlock(hx)
	require.NoError(t, p.AdvanceBlock(genesis))

	blk1 := &wire.Block{
		Header:       wire.Header{Height: 1, PrevHash: genesis.Hash()},
		Transactions: []*wire.Transaction{coinbaseTx(hx, 100)},
	}
	blk2 := &wire.Block{
		Header:       wire.Header{Height: 2, PrevHash: blk1.Hash()},
		Transactions: []*wire.Transaction{coinbaseTx(hx, 100)},
	}

	err := p.CheckAndAdvanceBlocks(context.Background(), nil, []*wire.Block{blk1, blk2})
	require.NoError(t, err)

	tip, err := p.Tip()
	require.NoError(t, err)
	assert.Equal(t, types.Height(2), tip.Height)
}

func TestCheckAndAdvanceBlocksInteriorMismatch(t *testing.T) {
	p := testProcessor(t)
	var hx types.HashX
	hx[0] = 1
	genesis := genesisBlock(hx)
	require.NoError(t, p.AdvanceBlock(genesis))

	blk1 := &wire.Block{
		Header:       wire.Header{Height: 1, PrevHash: genesis.Hash()},
		Transactions: []*wire.Transaction{coinbaseTx(hx, 100)},
	}
	stale := &wire.Block{
		Header:       wire.Header{Height: 2, PrevHash: types.Hash{0xEE}},
		Transactions: []*wire.Transaction{coinbaseTx(hx, 100)},
	}

	err := p.CheckAndAdvanceBlocks(context.Background(), nil, []*wire.Block{blk1, stale})
	assert.ErrorIs(t, err, ErrInteriorMismatch)

	tip, err := p.Tip()
	require.NoError(t, err)
	assert.Equal(t, types.Height(1), tip.Height)
}

func TestCheckAndAdvanceBlocksReorgsToDaemon(t *testing.T) {
	p := testProcessor(t)
	var hx types.HashX
	hx[0] = 1
	genesis := genesisBlock(hx)
	require.NoError(t, p.AdvanceBlock(genesis))

	staleBlk1 := &wire.Block{
		Header:       wire.Header{Height: 1, PrevHash: genesis.Hash()},
		Transactions: []*wire.Transaction{coinbaseTx(hx, 111)},
	}
	require.NoError(t, p.AdvanceBlock(staleBlk1))

	daemonBlk1 := &wire.Block{
		Header:       wire.Header{Height: 1, PrevHash: genesis.Hash(), MerkleRoot: types.Hash{0x22}},
		Transactions: []*wire.Transaction{coinbaseTx(hx, 222)},
	}
	daemon := &fakeHeaderSource{hashes: map[types.Height]types.Hash{
		0: genesis.Hash(),
		1: daemonBlk1.Hash(),
	}}

	err := p.CheckAndAdvanceBlocks(context.Background(), daemon, []*wire.Block{daemonBlk1})
	assert.ErrorIs(t, err, ErrInteriorMismatch)

	tip, err := p.Tip()
	require.NoError(t, err)
	assert.Equal(t, types.Height(0), tip.Height)
	assert.Equal(t, genesis.Hash(), tip.TipHash)
}
