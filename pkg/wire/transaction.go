package wire

import (
	"encoding/binary"
	"encoding/hex"
	"encoding/json"

	"github.com/Klingon-tech/klingnet-index/pkg/crypto"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

// Outpoint is the wire-level reference to an output: by transaction hash,
// since a TxNum has not been assigned yet at the point a transaction
// arrives from the daemon. internal/utxo converts these to
// types.TxOutpoint once the referenced transaction has an assigned TxNum.
type Outpoint struct {
	TxHash types.Hash `json:"tx_hash"`
	Index  uint32     `json:"index"`
}

func (o Outpoint) IsZero() bool {
	return o.TxHash.IsZero() && o.Index == 0
}

// Input spends a prior output.
type Input struct {
	PrevOut   Outpoint `json:"prevout"`
	Signature []byte   `json:"signature"`
	PubKey    []byte   `json:"pubkey"`
}

type inputJSON struct {
	PrevOut   Outpoint `json:"prevout"`
	Signature string   `json:"signature,omitempty"`
	PubKey    string   `json:"pubkey,omitempty"`
}

func (in Input) MarshalJSON() ([]byte, error) {
	j := inputJSON{PrevOut: in.PrevOut}
	if in.Signature != nil {
		j.Signature = hex.EncodeToString(in.Signature)
	}
	if in.PubKey != nil {
		j.PubKey = hex.EncodeToString(in.PubKey)
	}
	return json.Marshal(j)
}

func (in *Input) UnmarshalJSON(data []byte) error {
	var j inputJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	in.PrevOut = j.PrevOut
	if j.Signature != "" {
		b, err := hex.DecodeString(j.Signature)
		if err != nil {
			return err
		}
		in.Signature = b
	}
	if j.PubKey != "" {
		b, err := hex.DecodeString(j.PubKey)
		if err != nil {
			return err
		}
		in.PubKey = b
	}
	return nil
}

// Transaction is a raw transaction as handed to the indexer by the daemon
// (or reconstructed from mempool), with pre-classified outputs.
type Transaction struct {
	Version  uint32   `json:"version"`
	Inputs   []Input  `json:"inputs"`
	Outputs  []Output `json:"outputs"`
	LockTime uint64   `json:"locktime"`
}

// Hash computes the transaction hash from its canonical signing bytes.
func (tx *Transaction) Hash() types.Hash {
	return crypto.Hash(tx.SigningBytes())
}

// SigningBytes returns the canonical byte representation used for hashing.
// Claim/support metadata is folded in so that two transactions differing
// only in claim value still hash distinctly.
func (tx *Transaction) SigningBytes() []byte {
	var buf []byte
	buf = binary.LittleEndian.AppendUint32(buf, tx.Version)

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Inputs)))
	for _, in := range tx.Inputs {
		buf = append(buf, in.PrevOut.TxHash[:]...)
		buf = binary.LittleEndian.AppendUint32(buf, in.PrevOut.Index)
		if in.PrevOut.IsZero() && len(in.Signature) > 0 {
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(in.Signature)))
			buf = append(buf, in.Signature...)
		}
	}

	buf = binary.LittleEndian.AppendUint32(buf, uint32(len(tx.Outputs)))
	for _, out := range tx.Outputs {
		buf = binary.LittleEndian.AppendUint64(buf, out.Value)
		buf = append(buf, out.HashX[:]...)
		buf = append(buf, byte(out.Kind))
		if out.Claim != nil {
			buf = append(buf, []byte(out.Claim.Name)...)
			buf = append(buf, out.Claim.ClaimHash[:]...)
			buf = binary.LittleEndian.AppendUint32(buf, uint32(len(out.Claim.Value)))
			buf = append(buf, out.Claim.Value...)
		}
	}

	buf = binary.LittleEndian.AppendUint64(buf, tx.LockTime)
	return buf
}

// IsCoinbase reports whether tx is a coinbase transaction: its single
// input spends the all-zero outpoint.
func (tx *Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].PrevOut.IsZero()
}
