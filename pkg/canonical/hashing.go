// Copyright 2025 Certen Protocol

package canonical

import (
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
)

// KeccakHex returns the 0x-prefixed, lowercase, 66-char keccak-256 digest of data.
func KeccakHex(data []byte) string {
	h := crypto.Keccak256(data)
	return fmt.Sprintf("0x%x", h)
}

// HashCanonical canonicalizes v and returns its keccak-256 digest.
func HashCanonical(v interface{}) (string, error) {
	bs, err := Marshal(v)
	if err != nil {
		return "", err
	}
	return KeccakHex(bs), nil
}

// HashCanonicalMap is HashCanonical for an already-decoded map, skipping the
// re-marshal of the source struct.
func HashCanonicalMap(m map[string]interface{}) (string, error) {
	var buf []byte
	var err error
	buf, err = Marshal(m)
	if err != nil {
		return "", err
	}
	return KeccakHex(buf), nil
}
