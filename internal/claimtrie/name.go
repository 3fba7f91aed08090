package claimtrie

import "golang.org/x/text/unicode/norm"

// NormalizeName applies NFC normalization to a claim name, the same
// transform the original protocol applies before using a name as a trie
// key — two byte-distinct encodings of the same visible name must land on
// the same claims.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}
