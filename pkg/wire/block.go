package wire

import (
	"encoding/binary"

	"github.com/Klingon-tech/klingnet-index/pkg/crypto"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

// Header is a block header as the daemon reports it.
type Header struct {
	Version    uint32      `json:"version"`
	PrevHash   types.Hash  `json:"prev_hash"`
	MerkleRoot types.Hash  `json:"merkle_root"`
	Timestamp  uint64      `json:"timestamp"`
	Height     types.Height `json:"height"`
	Bits       uint32      `json:"bits"`
	Nonce      uint64      `json:"nonce"`
}

// Hash computes the block hash from the header's canonical bytes.
func (h *Header) Hash() types.Hash {
	return crypto.Hash(h.SigningBytes())
}

// SigningBytes returns the canonical byte representation used for hashing.
func (h *Header) SigningBytes() []byte {
	buf := make([]byte, 0, 84)
	buf = binary.LittleEndian.AppendUint32(buf, h.Version)
	buf = append(buf, h.PrevHash[:]...)
	buf = append(buf, h.MerkleRoot[:]...)
	buf = binary.LittleEndian.AppendUint64(buf, h.Timestamp)
	buf = binary.LittleEndian.AppendUint32(buf, uint32(h.Height))
	buf = binary.LittleEndian.AppendUint32(buf, h.Bits)
	buf = binary.LittleEndian.AppendUint64(buf, h.Nonce)
	return buf
}

// Block is a full block: header plus transactions in canonical order
// (coinbase first).
type Block struct {
	Header       Header         `json:"header"`
	Transactions []*Transaction `json:"transactions"`
}

// Hash returns the block's header hash.
func (b *Block) Hash() types.Hash {
	return b.Header.Hash()
}

// Size estimates a block's serialized size in bytes from its canonical
// signing-byte encoding, used by the prefetcher's rolling-average batch
// sizing.
func (b *Block) Size() int {
	size := len(b.Header.SigningBytes())
	for _, tx := range b.Transactions {
		size += len(tx.SigningBytes())
	}
	return size
}
