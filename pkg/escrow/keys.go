// Copyright 2025 Certen Protocol

package escrow

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// addressFromPrivateKey derives the checksummed address for a hex-encoded
// secp256k1 private key, used by the dry-run backend to attribute events
// to a signer without submitting a real transaction.
func addressFromPrivateKey(privateKeyHex string) (string, error) {
	return AddressFromPrivateKey(privateKeyHex)
}

// AddressFromPrivateKey derives the checksummed address for a hex-encoded
// secp256k1 private key. Exported so service entrypoints can resolve the
// judge address for a dry-run backend from JUDGE_PRIVATE_KEY without
// reimplementing key parsing.
func AddressFromPrivateKey(privateKeyHex string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("escrow: parse private key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}
