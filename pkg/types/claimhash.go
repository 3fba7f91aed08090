package types

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// ClaimHashSize is the length of a claim id in bytes, matching LBRY's
// 20-byte claim ids (ripemd160-sized, derived here via truncated blake3).
const ClaimHashSize = 20

// ClaimHash identifies a claim or support independent of which UTXO
// currently backs it: it is derived once from the claim's originating
// outpoint and never changes across updates.
type ClaimHash [ClaimHashSize]byte

// IsZero returns true if the claim hash is all zeros.
func (c ClaimHash) IsZero() bool {
	return c == ClaimHash{}
}

// String returns the hex-encoded claim hash, root-tx-num ordering first
// (big-endian byte order, matching on-wire claim id display conventions).
func (c ClaimHash) String() string {
	return hex.EncodeToString(c[:])
}

// Bytes returns a copy of the claim hash as a byte slice.
func (c ClaimHash) Bytes() []byte {
	b := make([]byte, ClaimHashSize)
	copy(b, c[:])
	return b
}

// Less reports whether c sorts before other under byte-lexicographic order,
// used as the deterministic tie-break in takeover resolution.
func (c ClaimHash) Less(other ClaimHash) bool {
	for i := range c {
		if c[i] != other[i] {
			return c[i] < other[i]
		}
	}
	return false
}

// MarshalJSON encodes the claim hash as a hex string.
func (c ClaimHash) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// UnmarshalJSON decodes a hex string into a claim hash.
func (c *ClaimHash) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if s == "" {
		*c = ClaimHash{}
		return nil
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("invalid claim hash hex: %w", err)
	}
	if len(decoded) != ClaimHashSize {
		return fmt.Errorf("claim hash must be %d bytes, got %d", ClaimHashSize, len(decoded))
	}
	copy(c[:], decoded)
	return nil
}

// HexToClaimHash converts a hex string to a ClaimHash.
func HexToClaimHash(s string) (ClaimHash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return ClaimHash{}, fmt.Errorf("invalid hex: %w", err)
	}
	if len(b) != ClaimHashSize {
		return ClaimHash{}, fmt.Errorf("claim hash must be %d bytes, got %d", ClaimHashSize, len(b))
	}
	var c ClaimHash
	copy(c[:], b)
	return c, nil
}
