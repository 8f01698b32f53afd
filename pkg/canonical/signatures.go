// Copyright 2025 Certen Protocol
//
// EIP-191 "personal message" signing and recovery, grounded on the same
// go-ethereum crypto primitives the live escrow backend uses for
// transaction signing.

package canonical

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// ErrInvalidDID is returned when a DID does not match the did:8004:0x<40-hex> shape.
var ErrInvalidDID = errors.New("canonical: invalid did:8004 identifier")

// personalMessageHash decodes digestHex to its raw bytes and applies the
// EIP-191 "\x19Ethereum Signed Message:\n" prefix over those bytes,
// matching eth_account's encode_defunct(hexstr=...) behavior (and
// OpenZeppelin's ECDSA.toEthSignedMessageHash(bytes32)): the message signed
// is the raw digest, not the textual hex string that encodes it.
func personalMessageHash(digestHex string) []byte {
	msg := common.FromHex(digestHex)
	prefixed := append([]byte(fmt.Sprintf("\x19Ethereum Signed Message:\n%d", len(msg))), msg...)
	return crypto.Keccak256(prefixed)
}

// SignEIP191 signs digestHex (a 0x-prefixed hex string) with privateKeyHex
// (a 0x-prefixed or bare hex secp256k1 private key) and returns a
// 0x-prefixed 65-byte signature with a 27/28-normalized recovery id.
func SignEIP191(privateKeyHex, digestHex string) (string, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(privateKeyHex, "0x"))
	if err != nil {
		return "", fmt.Errorf("canonical: parse private key: %w", err)
	}
	sig, err := crypto.Sign(personalMessageHash(digestHex), key)
	if err != nil {
		return "", fmt.Errorf("canonical: sign: %w", err)
	}
	if len(sig) == 65 {
		sig[64] += 27
	}
	return fmt.Sprintf("0x%x", sig), nil
}

// RecoverSignerEIP191 recovers the checksummed address that produced signature
// over digestHex.
func RecoverSignerEIP191(digestHex, signature string) (string, error) {
	sigBytes := common.FromHex(signature)
	if len(sigBytes) != 65 {
		return "", fmt.Errorf("canonical: signature must be 65 bytes, got %d", len(sigBytes))
	}
	sigBytes = append([]byte(nil), sigBytes...)
	if sigBytes[64] >= 27 {
		sigBytes[64] -= 27
	}

	pub, err := crypto.SigToPub(personalMessageHash(digestHex), sigBytes)
	if err != nil {
		return "", fmt.Errorf("canonical: recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub).Hex(), nil
}

// VerifySignatureEIP191 reports whether signature over digestHex recovers to
// expectedAddress (checksum-insensitive comparison).
func VerifySignatureEIP191(digestHex, signature, expectedAddress string) (bool, error) {
	recovered, err := RecoverSignerEIP191(digestHex, signature)
	if err != nil {
		return false, err
	}
	return common.HexToAddress(recovered) == common.HexToAddress(expectedAddress), nil
}

// DIDToAddress strips the did:8004: prefix and returns the checksummed address.
func DIDToAddress(actorID string) (string, error) {
	if !strings.HasPrefix(actorID, "did:8004:0x") {
		return "", ErrInvalidDID
	}
	addrHex := actorID[len("did:8004:"):]
	if !common.IsHexAddress(addrHex) {
		return "", ErrInvalidDID
	}
	return common.HexToAddress(addrHex).Hex(), nil
}

// AddressToDID formats an address as a did:8004 identifier.
func AddressToDID(address string) string {
	return "did:8004:" + common.HexToAddress(address).Hex()
}
