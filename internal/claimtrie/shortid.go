package claimtrie

import (
	"encoding/hex"

	"github.com/Klingon-tech/klingnet-index/internal/storage"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

// maxShortIDLen is the longest disambiguating prefix stored, matching the
// original protocol's "name#1".."name#10" URL forms.
const maxShortIDLen = 10

// shortIDKey builds the ColClaimShortID row key: name + "\x00" + hex prefix.
// Iterating by (name, prefix) lets a resolver find every claim whose id
// starts with a candidate short id without scanning the whole name bucket.
func shortIDKey(name, prefix string) []byte {
	key := make([]byte, 0, len(name)+1+len(prefix))
	key = append(key, []byte(name)...)
	key = append(key, 0)
	key = append(key, []byte(prefix)...)
	return key
}

// stageShortIDs stages one ColClaimShortID row per prefix length 1..10 of
// the claim hash's hex encoding, each mapping to the claim's root outpoint
// so a short id resolves back to the claim that created it even across
// updates.
func stageShortIDs(db *storage.PrefixDB, name string, claimHash types.ClaimHash, rootTxNum types.TxNum, rootNout uint32) error {
	full := hex.EncodeToString(claimHash[:])
	rootKey := encodeRootOutpoint(rootTxNum, rootNout)
	for n := 1; n <= maxShortIDLen && n <= len(full); n++ {
		if err := db.StagePut(storage.ColClaimShortID, shortIDKey(name, full[:n]), rootKey); err != nil {
			return err
		}
	}
	return nil
}

// unstageShortIDs removes every short id row for claimHash, used when a
// claim expires or is abandoned.
func unstageShortIDs(db *storage.PrefixDB, name string, claimHash types.ClaimHash) error {
	full := hex.EncodeToString(claimHash[:])
	for n := 1; n <= maxShortIDLen && n <= len(full); n++ {
		if err := db.StageDelete(storage.ColClaimShortID, shortIDKey(name, full[:n])); err != nil {
			return err
		}
	}
	return nil
}

func encodeRootOutpoint(txNum types.TxNum, nout uint32) []byte {
	buf := make([]byte, 12)
	for i := 0; i < 8; i++ {
		buf[i] = byte(txNum >> (8 * (7 - i)))
	}
	buf[8] = byte(nout >> 24)
	buf[9] = byte(nout >> 16)
	buf[10] = byte(nout >> 8)
	buf[11] = byte(nout)
	return buf
}
