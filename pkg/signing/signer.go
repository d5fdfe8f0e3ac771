package signing

import (
	"fmt"
	"math/big"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/uhyunpark/starksettle/pkg/crypto"
)

// KeySigner is the signature primitive. *crypto.StarkSigner implements it.
type KeySigner interface {
	// PublicKey is the key placed in the preimage, possibly supplied rather than derived
	PublicKey() *big.Int
	DerivedPublicKey() (*big.Int, error)
	Sign(hash *big.Int) (r, s *big.Int, err error)
}

// KeyStatus records whether the supplied public key was checked against
// the private key. It is advisory and never blocks signing.
type KeyStatus int32

const (
	KeyUnverified KeyStatus = iota
	KeyVerified
	KeyMismatch
)

func (s KeyStatus) String() string {
	switch s {
	case KeyVerified:
		return "verified"
	case KeyMismatch:
		return "mismatch"
	default:
		return "unverified"
	}
}

// Signer wraps a key pair with its verification state
type Signer struct {
	key    KeySigner
	status atomic.Int32
	log    *zap.SugaredLogger
}

// NewSigner wraps key in the unverified state
func NewSigner(key KeySigner, log *zap.SugaredLogger) *Signer {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Signer{key: key, log: log}
}

// NewSignerFromHex loads a Stark key pair. An empty publicKeyHex derives the
// public key; otherwise the supplied key is used as is and left unverified.
func NewSignerFromHex(privateKeyHex, publicKeyHex string, log *zap.SugaredLogger) (*Signer, error) {
	var (
		key *crypto.StarkSigner
		err error
	)
	if publicKeyHex == "" {
		key, err = crypto.FromPrivateKeyHex(privateKeyHex)
	} else {
		key, err = crypto.FromKeyPairHex(privateKeyHex, publicKeyHex)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return NewSigner(key, log), nil
}

// Status returns the current key verification state
func (s *Signer) Status() KeyStatus {
	return KeyStatus(s.status.Load())
}

// PublicKey returns the key that goes into every preimage
func (s *Signer) PublicKey() *big.Int {
	return s.key.PublicKey()
}

// PublicKeyHex returns the public key as 0x-prefixed hex
func (s *Signer) PublicKeyHex() string {
	return crypto.FeltHex(s.key.PublicKey())
}

// VerifyKey compares the supplied public key with the one derived from the
// private key. A mismatch is logged and reported, never returned as an error:
// signing continues with the supplied key.
func (s *Signer) VerifyKey() (bool, error) {
	derived, err := s.key.DerivedPublicKey()
	if err != nil {
		return false, fmt.Errorf("%w: failed to derive public key: %v", ErrInvalidInput, err)
	}
	supplied := s.key.PublicKey()
	if derived.Cmp(supplied) == 0 {
		s.status.Store(int32(KeyVerified))
		return true, nil
	}

	s.status.Store(int32(KeyMismatch))
	s.log.Warnw("public_key_mismatch",
		"supplied", crypto.FeltHex(supplied),
		"derived", crypto.FeltHex(derived),
	)
	return false, nil
}

// Sign signs a message hash with the private key
func (s *Signer) Sign(hash *big.Int) (r, sig *big.Int, err error) {
	r, sig, err = s.key.Sign(hash)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrSignatureFailed, err)
	}
	if r == nil || sig == nil {
		return nil, nil, fmt.Errorf("%w: empty signature component", ErrSignatureFailed)
	}
	return r, sig, nil
}
