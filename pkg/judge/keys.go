// Copyright 2025 Certen Protocol

package judge

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// addressFromPrivateKeyHex derives the checksummed address for a hex-encoded
// secp256k1 private key, used to check whether the configured judge key
// matches the on-chain judge address before submitting a ruling.
func addressFromPrivateKeyHex(privateKeyHex string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("judge: parse private key: %w", err)
	}
	return crypto.PubkeyToAddress(key.PublicKey).Hex(), nil
}
