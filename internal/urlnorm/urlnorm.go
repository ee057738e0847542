// Package urlnorm rewrites URL strings into a canonical form for
// deduplication and cache keys.
package urlnorm

import (
	"crypto/sha256"
	"encoding/hex"
)

// Canonicalize normalizes raw with DefaultOptions and returns the result
// together with its hash.
func Canonicalize(raw string) (canonicalURL string, canonicalHash string, err error) {
	canonicalURL, err = Normalize(raw, DefaultOptions())
	if err != nil {
		return "", "", err
	}
	return canonicalURL, Hash(canonicalURL), nil
}

// Hash returns the hex SHA-256 of a canonical URL.
func Hash(canonicalURL string) string {
	h := sha256.Sum256([]byte(canonicalURL))
	return hex.EncodeToString(h[:])
}
