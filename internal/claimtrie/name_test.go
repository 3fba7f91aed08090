package claimtrie

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeNameNFC(t *testing.T) {
	decomposed := string([]rune{'e', 0x0301})
	precomposed := "é"
	a := assert.New(t)
	a.NotEqual(decomposed, precomposed)
	a.Equal(NormalizeName(precomposed), NormalizeName(decomposed))
}

func TestNormalizeNamePlainUnaffected(t *testing.T) {
	assert.Equal(t, "hello", NormalizeName("hello"))
}
