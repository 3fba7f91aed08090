package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

func TestGenesisFor(t *testing.T) {
	assert.Equal(t, "Klingnet Mainnet", GenesisFor(Mainnet).ChainName)
	assert.Equal(t, "Klingnet Testnet", GenesisFor(Testnet).ChainName)
	assert.Equal(t, "Klingnet Regtest", GenesisFor(Regtest).ChainName)
}

func TestCheckDaemonGenesisSkipsZeroExpected(t *testing.T) {
	g := RegtestGenesis()
	require.NoError(t, g.CheckDaemonGenesis(types.Hash{0xAB}))
}

func TestCheckDaemonGenesisMatches(t *testing.T) {
	g := &Genesis{ChainName: "test", GenesisHash: types.Hash{0x01, 0x02}}
	require.NoError(t, g.CheckDaemonGenesis(types.Hash{0x01, 0x02}))
}

func TestCheckDaemonGenesisMismatch(t *testing.T) {
	g := &Genesis{ChainName: "test", GenesisHash: types.Hash{0x01, 0x02}}
	err := g.CheckDaemonGenesis(types.Hash{0x03, 0x04})
	require.Error(t, err)
}
