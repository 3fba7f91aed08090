// Package wire defines the raw block and transaction shapes consumed from
// the daemon: already-deserialized and already-classified, since script
// parsing itself is an external collaborator's job (see §1 Non-goals).
package wire

import (
	"encoding/hex"
	"encoding/json"

	"github.com/Klingon-tech/klingnet-index/pkg/types"
)

// OutputKind classifies what a transaction output does to the claimtrie.
// The daemon classifies scripts before handing transactions to the
// indexer; this package never parses a locking script itself.
type OutputKind uint8

const (
	// KindRegular is a plain payment output, not claim-related.
	KindRegular OutputKind = iota
	// KindClaimName creates a brand-new claim.
	KindClaimName
	// KindUpdateClaim updates an existing claim, identified by ClaimHash.
	KindUpdateClaim
	// KindSupportClaim adds a support to an existing claim, optionally
	// carrying support metadata (comment/channel signature).
	KindSupportClaim
)

func (k OutputKind) String() string {
	switch k {
	case KindClaimName:
		return "claim_name"
	case KindUpdateClaim:
		return "update_claim"
	case KindSupportClaim:
		return "support_claim"
	default:
		return "regular"
	}
}

// ChannelSignature is present on a claim or support when its value was
// signed by a channel's signing key.
type ChannelSignature struct {
	// SigningChannelHash identifies the channel claim whose key signed this
	// value. Zero if unsigned.
	SigningChannelHash types.ClaimHash `json:"signing_channel_hash"`
	Signature          []byte          `json:"signature"`
	PubKey             []byte          `json:"pubkey"`
}

func (s *ChannelSignature) IsZero() bool {
	return s == nil || s.SigningChannelHash.IsZero()
}

// ClaimMeta carries the claim-specific fields of a ClaimName/UpdateClaim/
// SupportClaim output. Name normalization (§3 Invariants) happens later in
// internal/claimtrie, not here — this is the raw wire shape.
type ClaimMeta struct {
	// Name is the claim name exactly as it appeared in the output script,
	// not yet NFC-normalized.
	Name string `json:"name"`
	// ClaimHash is the target claim id for UpdateClaim and SupportClaim
	// outputs. Ignored for ClaimName (the id is derived from the creating
	// outpoint instead).
	ClaimHash types.ClaimHash `json:"claim_hash"`
	// Value is the opaque serialized claim/support value blob (protobuf in
	// the original protocol; treated here as an opaque payload since
	// metadata parsing is out of scope — only its presence and signature
	// matter to activation/takeover).
	Value []byte `json:"value"`
	// RepostedClaimHash is set when Value represents a repost of another
	// claim.
	RepostedClaimHash types.ClaimHash `json:"reposted_claim_hash,omitempty"`
	Signature         *ChannelSignature `json:"signature,omitempty"`
}

// Output is a transaction output, pre-classified by kind.
type Output struct {
	Value uint64         `json:"value"`
	HashX types.HashX    `json:"hashx"`
	Kind  OutputKind     `json:"kind"`
	Claim *ClaimMeta     `json:"claim,omitempty"`
}

type outputJSON struct {
	Value uint64     `json:"value"`
	HashX string     `json:"hashx"`
	Kind  OutputKind `json:"kind"`
	Claim *ClaimMeta `json:"claim,omitempty"`
}

func (o Output) MarshalJSON() ([]byte, error) {
	return json.Marshal(outputJSON{
		Value: o.Value,
		HashX: hex.EncodeToString(o.HashX[:]),
		Kind:  o.Kind,
		Claim: o.Claim,
	})
}

func (o *Output) UnmarshalJSON(data []byte) error {
	var j outputJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	o.Value = j.Value
	o.Kind = j.Kind
	o.Claim = j.Claim
	if j.HashX != "" {
		b, err := hex.DecodeString(j.HashX)
		if err != nil {
			return err
		}
		copy(o.HashX[:], b)
	}
	return nil
}
