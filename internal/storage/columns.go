package storage

import "github.com/Klingon-tech/klingnet-index/pkg/types"

// Column tags every key with the logical column family it belongs to. This
// plays the same role as the teacher's byte-string prefixes in
// internal/utxo/store.go ("u/", "a/", "k/"), collapsed to a single byte so
// every family sorts independently and an undo record can replay a write
// against the right family without re-deriving it.
type Column byte

const (
	ColUTXO Column = iota + 1
	ColHashXUtxo
	ColClaim
	ColClaimByName
	ColClaimExpiration
	ColClaimShortID
	ColClaimByTxo
	ColSupport
	ColSupportByTxo
	ColActivation
	ColPendingActivation
	ColTakeover
	ColEffectiveAmount
	ColRepost
	ColRepostedClaim
	ColChannelCount
	ColHeader
	ColTxHash
	ColTxNum
	ColUndo
	ColTip
)

func rawKey(col Column, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = byte(col)
	copy(out[1:], key)
	return out
}

func undoRecordKey(height types.Height) []byte {
	key := make([]byte, 4)
	key[0] = byte(height >> 24)
	key[1] = byte(height >> 16)
	key[2] = byte(height >> 8)
	key[3] = byte(height)
	return rawKey(ColUndo, key)
}
