package crypto

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// EthSigner holds the L1 wallet key used during onboarding
// Uses secp256k1 curve (Ethereum-compatible)
type EthSigner struct {
	privateKey *ecdsa.PrivateKey
	address    common.Address
}

// GenerateEthKey creates a new random wallet key
func GenerateEthKey() (*EthSigner, error) {
	privateKey, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return newEthSigner(privateKey), nil
}

// EthSignerFromHex creates a wallet signer from a hex-encoded private key
// Format: "0x1234..." or "1234..." (64 hex chars)
func EthSignerFromHex(hexKey string) (*EthSigner, error) {
	privateKey, err := crypto.HexToECDSA(trimmedHex(hexKey))
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return newEthSigner(privateKey), nil
}

func newEthSigner(privateKey *ecdsa.PrivateKey) *EthSigner {
	return &EthSigner{
		privateKey: privateKey,
		address:    crypto.PubkeyToAddress(privateKey.PublicKey),
	}
}

// Address returns the wallet address
func (s *EthSigner) Address() common.Address {
	return s.address
}

// PrivateKeyHex returns the private key as hex string (WITHOUT 0x prefix)
// WARNING: Keep this secret! Never expose to users or logs
func (s *EthSigner) PrivateKeyHex() string {
	return fmt.Sprintf("%x", crypto.FromECDSA(s.privateKey))
}

// Sign signs a 32-byte digest and returns [R || S || V] with V in {27, 28}
func (s *EthSigner) Sign(hash []byte) ([]byte, error) {
	if len(hash) != 32 {
		return nil, fmt.Errorf("hash must be 32 bytes, got %d", len(hash))
	}

	signature, err := crypto.Sign(hash, s.privateKey)
	if err != nil {
		return nil, fmt.Errorf("failed to sign: %w", err)
	}
	signature[64] += 27

	return signature, nil
}

// RecoverEthAddress recovers the wallet address from a digest and a
// [R || S || V] signature. V may be 0/1 or 27/28.
func RecoverEthAddress(hash []byte, signature []byte) (common.Address, error) {
	if len(signature) != 65 {
		return common.Address{}, fmt.Errorf("invalid signature length: %d", len(signature))
	}
	if len(hash) != 32 {
		return common.Address{}, fmt.Errorf("invalid hash length: %d", len(hash))
	}

	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}

	publicKey, err := crypto.SigToPub(hash, sig)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover public key: %w", err)
	}
	return crypto.PubkeyToAddress(*publicKey), nil
}

// SignatureHex encodes a wallet signature as 0x-prefixed hex
func SignatureHex(signature []byte) string {
	return hexutil.Encode(signature)
}

func trimmedHex(s string) string {
	h, _ := trimHexPrefix(s)
	return h
}
