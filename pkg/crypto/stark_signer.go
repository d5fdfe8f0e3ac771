package crypto

import (
	"fmt"
	"math/big"
)

// StarkSigner holds a Stark key pair
// The public key may be supplied separately from the private key: accounts
// registered with a key that differs from the derived one keep signing with
// the registered key
type StarkSigner struct {
	privateKey *big.Int
	publicKey  *big.Int
}

// NewStarkSigner creates a signer whose public key is derived from priv
func NewStarkSigner(priv *big.Int) (*StarkSigner, error) {
	pub, err := DerivePublicKey(priv)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	return &StarkSigner{
		privateKey: new(big.Int).Set(priv),
		publicKey:  pub,
	}, nil
}

// NewStarkSignerWithPublicKey creates a signer that publishes pub as its key
func NewStarkSignerWithPublicKey(priv, pub *big.Int) (*StarkSigner, error) {
	if err := checkPrivateKey(priv); err != nil {
		return nil, err
	}
	if pub == nil || pub.Sign() <= 0 || pub.Cmp(FieldPrime) >= 0 {
		return nil, fmt.Errorf("public key out of range")
	}
	return &StarkSigner{
		privateKey: new(big.Int).Set(priv),
		publicKey:  new(big.Int).Set(pub),
	}, nil
}

// FromPrivateKeyHex creates a signer from a hex-encoded private key
// Format: "0x1234..." or "1234..."
func FromPrivateKeyHex(hexKey string) (*StarkSigner, error) {
	priv, err := ParseFeltHex(hexKey)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	return NewStarkSigner(priv)
}

// FromKeyPairHex creates a signer from hex-encoded private and public keys
func FromKeyPairHex(privateKeyHex, publicKeyHex string) (*StarkSigner, error) {
	priv, err := ParseFeltHex(privateKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse private key: %w", err)
	}
	pub, err := ParseFeltHex(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("failed to parse public key: %w", err)
	}
	return NewStarkSignerWithPublicKey(priv, pub)
}

// PublicKey returns the public key used in signed messages
func (s *StarkSigner) PublicKey() *big.Int {
	return new(big.Int).Set(s.publicKey)
}

// PublicKeyHex returns the public key as 0x-prefixed hex
func (s *StarkSigner) PublicKeyHex() string {
	return FeltHex(s.publicKey)
}

// DerivedPublicKey recomputes the public key from the private key
func (s *StarkSigner) DerivedPublicKey() (*big.Int, error) {
	return DerivePublicKey(s.privateKey)
}

// VerifyPublicKey reports whether the supplied public key matches the derived one
func (s *StarkSigner) VerifyPublicKey() bool {
	derived, err := s.DerivedPublicKey()
	if err != nil {
		return false
	}
	return derived.Cmp(s.publicKey) == 0
}

// PrivateKeyHex returns the private key as 0x-prefixed hex
// WARNING: Keep this secret! Never expose to users or logs
func (s *StarkSigner) PrivateKeyHex() string {
	return FeltHex(s.privateKey)
}

// Sign signs a message hash with the private key
func (s *StarkSigner) Sign(hash *big.Int) (r, sig *big.Int, err error) {
	r, sig, err = Sign(s.privateKey, hash)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sign: %w", err)
	}
	return r, sig, nil
}
