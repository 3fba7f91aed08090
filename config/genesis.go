package config

import (
	"fmt"

	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

// =============================================================================
// Chain identity
//
// Unlike the daemon this indexer sits behind, the indexer itself defines no
// consensus rules — it only needs to know which chain it's looking at, so it
// can refuse to build a claim index against the wrong daemon.
// =============================================================================

// Genesis identifies the chain an indexer instance is tracking: its name
// and the hash of the block the daemon must report at height 0.
type Genesis struct {
	ChainName   string     `json:"chain_name"`
	GenesisHash types.Hash `json:"genesis_hash"`
}

// MainnetGenesis returns the mainnet chain identity.
func MainnetGenesis() *Genesis {
	return &Genesis{
		ChainName:   "Klingnet Mainnet",
		GenesisHash: types.Hash{},
	}
}

// TestnetGenesis returns the testnet chain identity.
func TestnetGenesis() *Genesis {
	return &Genesis{
		ChainName:   "Klingnet Testnet",
		GenesisHash: types.Hash{},
	}
}

// RegtestGenesis returns the regtest chain identity. Regtest genesis hashes
// vary per local daemon instance, so this is left unset and never checked.
func RegtestGenesis() *Genesis {
	return &Genesis{ChainName: "Klingnet Regtest"}
}

// GenesisFor returns the chain identity for the given network.
func GenesisFor(network NetworkType) *Genesis {
	switch network {
	case Testnet:
		return TestnetGenesis()
	case Regtest:
		return RegtestGenesis()
	default:
		return MainnetGenesis()
	}
}

// CheckDaemonGenesis verifies that the daemon's reported genesis hash
// matches what this indexer expects for its configured network, refusing
// to build a claim index against a daemon tracking a different chain. A
// zero expected hash (regtest, or a network whose genesis hasn't been
// pinned yet) skips the check.
func (g *Genesis) CheckDaemonGenesis(daemonHash types.Hash) error {
	if g.GenesisHash.IsZero() {
		return nil
	}
	if daemonHash != g.GenesisHash {
		return fmt.Errorf("daemon genesis hash %s does not match expected %s for %s",
			daemonHash, g.GenesisHash, g.ChainName)
	}
	return nil
}
