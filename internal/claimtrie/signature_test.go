package claimtrie

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Klingon-tech/klingnet-index/pkg/crypto"
	"github.com/Klingon-tech/klingnet-index/pkg/types"
	"github.com/Klingon-tech/klingnet-index/pkg/wire"
)

func TestValidateSignatureRoundTrip(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	name := "hello"
	value := []byte("claim value bytes")
	var channelHash types.ClaimHash
	channelHash[0] = 0x01

	digest := signingDigest(name, value, channelHash)
	sig, err := key.Sign(digest[:])
	require.NoError(t, err)

	cs := &wire.ChannelSignature{SigningChannelHash: channelHash, Signature: sig, PubKey: key.PublicKey()}
	assert.True(t, ValidateSignature(name, value, cs, key.PublicKey()))
}

func TestValidateSignatureRejectsTamperedValue(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	var channelHash types.ClaimHash
	digest := signingDigest("hello", []byte("original"), channelHash)
	sig, err := key.Sign(digest[:])
	require.NoError(t, err)

	cs := &wire.ChannelSignature{SigningChannelHash: channelHash, Signature: sig, PubKey: key.PublicKey()}
	assert.False(t, ValidateSignature("hello", []byte("tampered"), cs, key.PublicKey()))
}

func TestValidateSignatureNilRejected(t *testing.T) {
	assert.False(t, ValidateSignature("hello", []byte("x"), nil, nil))
}
