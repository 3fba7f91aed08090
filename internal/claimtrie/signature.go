package claimtrie

import (
	"github.com/Klingon-tech/klingnet-index/pkg/crypto"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
	"github.com/Klingon-tech/klingnet-index/pkg/wire"
)

// ChannelPubKey returns the public key a channel claim signs with. A
// channel's value carries its signing key directly, so no protobuf
// metadata parsing is needed to recover it.
func ChannelPubKey(channel *Claim, channelValue []byte) []byte {
	return channelValue
}

// signingDigest is the hash a channel signature is computed over: the
// claim name and value bound to the channel that signs it, so a signature
// can't be replayed onto a different name or a different channel.
func signingDigest(name string, value []byte, channelHash types.ClaimHash) types.Hash {
	buf := make([]byte, 0, len(name)+len(value)+types.ClaimHashSize)
	buf = append(buf, []byte(name)...)
	buf = append(buf, value...)
	buf = append(buf, channelHash[:]...)
	return crypto.Hash(buf)
}

// ValidateSignature checks a claim's channel signature against the
// claimed signing channel's public key. Returns false (never an error) on
// any malformed input — an invalid signature just means the claim is
// unsigned for ranking purposes, it never aborts processing.
func ValidateSignature(name string, value []byte, sig *wire.ChannelSignature, channelPubKey []byte) bool {
	if sig == nil || sig.IsZero() || len(channelPubKey) == 0 {
		return false
	}
	digest := signingDigest(name, value, sig.SigningChannelHash)
	return crypto.VerifySignature(digest.Bytes(), sig.Signature, channelPubKey)
}
