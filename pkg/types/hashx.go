package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// HashXSize is the length of a script-hash key, an 11-byte prefix of the
// blake3 hash of a locking script. UTXOs and claim/support rows are grouped
// by HashX rather than by the full script, matching the column layout of
// §4.2.
const HashXSize = 11

// HashX is the condensed key under which UTXOs belonging to the same
// locking script are grouped.
type HashX [HashXSize]byte

// IsZero returns true if the HashX is all zeros.
func (x HashX) IsZero() bool {
	return x == HashX{}
}

// String returns the hex-encoded HashX.
func (x HashX) String() string {
	return hex.EncodeToString(x[:])
}

// Bytes returns a copy of the HashX as a byte slice.
func (x HashX) Bytes() []byte {
	b := make([]byte, HashXSize)
	copy(b, x[:])
	return b
}

// MarshalJSON encodes the HashX as a hex string.
func (x HashX) MarshalJSON() ([]byte, error) {
	return json.Marshal(x.String())
}

// UnmarshalJSON decodes a hex string into a HashX.
func (x *HashX) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid hashX hex: %w", err)
	}
	if len(decoded) != HashXSize {
		return fmt.Errorf("hashX must be %d bytes, got %d", HashXSize, len(decoded))
	}
	copy(x[:], decoded)
	return nil
}

// NewHashX truncates a full blake3 script hash down to its HashX prefix.
func NewHashX(scriptHash Hash) HashX {
	var x HashX
	copy(x[:], scriptHash[:HashXSize])
	return x
}
