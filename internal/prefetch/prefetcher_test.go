package prefetch

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/klingnet-index/pkg/types"
	"github.com/Klingon-tech/klingnet-index/pkg/wire"
)

type fakeSource struct {
	height types.Height
	blocks map[types.Height]*wire.Block
}

func newFakeSource(n int) *fakeSource {
	f := &fakeSource{blocks: make(map[types.Height]*wire.Block)}
	for i := 0; i < n; i++ {
		h := types.Height(i)
		f.blocks[h] = &wire.Block{
			Header:       wire.Header{Height: h},
			Transactions: []*wire.Transaction{{Outputs: []wire.Output{{Value: 1}}}},
		}
	}
	f.height = types.Height(n - 1)
	return f
}

func (f *fakeSource) DaemonHeight(ctx context.Context) (types.Height, error) {
	return f.height, nil
}

func (f *fakeSource) BlocksFrom(ctx context.Context, fromHeight types.Height, count int) ([]*wire.Block, error) {
	var out []*wire.Block
	for i := 0; i < count; i++ {
		h := fromHeight + types.Height(i)
		blk, ok := f.blocks[h]
		if !ok {
			break
		}
		out = append(out, blk)
	}
	return out, nil
}

func TestFillOnceFetchesAvailableBlocks(t *testing.T) {
	src := newFakeSource(20)
	p := New(src, 0, nil)
	p.SetMinCacheSize(1 << 20)

	filled, err := p.fillOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, filled)
	assert.Equal(t, types.Height(20), p.FetchedHeight())

	blocks := p.TakePrefetched()
	assert.Len(t, blocks, 20)
}

func TestFillOnceSubstitutesGenesis(t *testing.T) {
	src := newFakeSource(5)
	genesis := &wire.Block{Header: wire.Header{Height: 0, Nonce: 99}}
	p := New(src, 0, genesis)
	p.SetMinCacheSize(1 << 20)

	_, err := p.fillOnce(context.Background())
	require.NoError(t, err)

	blocks := p.TakePrefetched()
	require.NotEmpty(t, blocks)
	assert.Equal(t, uint64(99), blocks[0].Header.Nonce)
}

func TestResetHeightClearsCache(t *testing.T) {
	src := newFakeSource(20)
	p := New(src, 0, nil)
	p.SetMinCacheSize(1 << 20)

	_, err := p.fillOnce(context.Background())
	require.NoError(t, err)
	assert.NotZero(t, len(p.cache))

	p.ResetHeight(3)
	assert.Equal(t, types.Height(3), p.FetchedHeight())
	assert.Empty(t, p.TakePrefetched())
}

func TestFillOnceStopsWhenCacheAtBudget(t *testing.T) {
	src := newFakeSource(20)
	p := New(src, 0, nil)
	p.SetMinCacheSize(1)

	p.cacheBytes = 1
	filled, err := p.fillOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, filled)
}

func TestFillOnceNoNewBlocksAtTip(t *testing.T) {
	src := newFakeSource(1)
	p := New(src, 1, nil)
	p.SetMinCacheSize(1 << 20)

	filled, err := p.fillOnce(context.Background())
	require.NoError(t, err)
	assert.False(t, filled)
}
