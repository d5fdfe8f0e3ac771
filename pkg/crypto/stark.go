package crypto

import (
	"errors"
	"fmt"
	"math/big"

	starkcurve "github.com/consensys/gnark-crypto/ecc/stark-curve"
	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
	"github.com/consensys/gnark-crypto/ecc/stark-curve/fr"
)

var (
	// FieldPrime is the Stark field modulus, 2^251 + 17*2^192 + 1
	FieldPrime = fp.Modulus()

	// CurveOrder is the order of the Stark curve generator
	CurveOrder = fr.Modulus()

	// maxECDSAValue bounds the message hash, r and w (2^251)
	maxECDSAValue = new(big.Int).Lsh(big.NewInt(1), 251)
)

// maxSignAttempts caps the nonce retry loop
const maxSignAttempts = 256

var (
	ErrInvalidPrivateKey = errors.New("private key must be in [1, curve order)")
	ErrInvalidMessage    = errors.New("message hash must be in [0, 2^251)")
)

func checkPrivateKey(priv *big.Int) error {
	if priv == nil || priv.Sign() <= 0 || priv.Cmp(CurveOrder) >= 0 {
		return ErrInvalidPrivateKey
	}
	return nil
}

// DerivePublicKey returns the x coordinate of priv*G, the Stark public key
func DerivePublicKey(priv *big.Int) (*big.Int, error) {
	if err := checkPrivateKey(priv); err != nil {
		return nil, err
	}
	var p starkcurve.G1Affine
	p.ScalarMultiplicationBase(priv)
	return p.X.BigInt(new(big.Int)), nil
}

// Sign produces a Stark ECDSA signature over msgHash
// The nonce is derived deterministically (RFC 6979, HMAC-SHA256); when a
// candidate nonce yields an out-of-range r or w the seed is bumped and the
// derivation repeated, so the same key and hash always give the same (r, s)
func Sign(priv, msgHash *big.Int) (r, s *big.Int, err error) {
	if err := checkPrivateKey(priv); err != nil {
		return nil, nil, err
	}
	if msgHash == nil || msgHash.Sign() < 0 || msgHash.Cmp(maxECDSAValue) >= 0 {
		return nil, nil, ErrInvalidMessage
	}

	var seed uint64
	for attempt := 0; attempt < maxSignAttempts; attempt++ {
		k := generateK(msgHash, priv, seed)
		seed++

		var R starkcurve.G1Affine
		R.ScalarMultiplicationBase(k)
		r := R.X.BigInt(new(big.Int))
		if r.Sign() == 0 || r.Cmp(maxECDSAValue) >= 0 {
			continue
		}

		// t = msg_hash + r * priv (mod n)
		t := new(big.Int).Mul(r, priv)
		t.Add(t, msgHash).Mod(t, CurveOrder)
		if t.Sign() == 0 {
			continue
		}

		// w = k / t (mod n)
		w := new(big.Int).ModInverse(t, CurveOrder)
		w.Mul(w, k).Mod(w, CurveOrder)
		if w.Sign() == 0 || w.Cmp(maxECDSAValue) >= 0 {
			continue
		}

		s := new(big.Int).ModInverse(w, CurveOrder)
		return r, s, nil
	}

	return nil, nil, fmt.Errorf("failed to find a valid nonce after %d attempts", maxSignAttempts)
}

// Verify checks a Stark ECDSA signature against the x-only public key
// Both points sharing that x coordinate are tried
func Verify(publicKey, msgHash, r, s *big.Int) bool {
	if publicKey == nil || msgHash == nil || r == nil || s == nil {
		return false
	}
	if publicKey.Sign() <= 0 || publicKey.Cmp(FieldPrime) >= 0 {
		return false
	}
	if msgHash.Sign() < 0 || msgHash.Cmp(maxECDSAValue) >= 0 {
		return false
	}
	if r.Sign() <= 0 || r.Cmp(maxECDSAValue) >= 0 {
		return false
	}
	if s.Sign() <= 0 || s.Cmp(CurveOrder) >= 0 {
		return false
	}
	w := new(big.Int).ModInverse(s, CurveOrder)
	if w == nil || w.Sign() == 0 || w.Cmp(maxECDSAValue) >= 0 {
		return false
	}

	q, ok := pointFromX(publicKey)
	if !ok {
		return false
	}

	u1 := new(big.Int).Mul(msgHash, w)
	u1.Mod(u1, CurveOrder)
	u2 := new(big.Int).Mul(r, w)
	u2.Mod(u2, CurveOrder)

	var neg starkcurve.G1Affine
	neg.Neg(&q)
	for _, candidate := range []*starkcurve.G1Affine{&q, &neg} {
		var acc starkcurve.G1Jac
		acc.JointScalarMultiplicationBase(candidate, u1, u2)
		var res starkcurve.G1Affine
		res.FromJacobian(&acc)
		if res.IsInfinity() {
			continue
		}
		if res.X.BigInt(new(big.Int)).Cmp(r) == 0 {
			return true
		}
	}
	return false
}

// pointFromX recovers a curve point with the given x coordinate
func pointFromX(x *big.Int) (starkcurve.G1Affine, bool) {
	var p starkcurve.G1Affine
	p.X.SetBigInt(x)

	// y^2 = x^3 + a*x + b
	a, b := starkcurve.CurveCoefficients()
	var rhs, ax fp.Element
	rhs.Square(&p.X).Mul(&rhs, &p.X)
	ax.Mul(&a, &p.X)
	rhs.Add(&rhs, &ax).Add(&rhs, &b)

	if p.Y.Sqrt(&rhs) == nil {
		return starkcurve.G1Affine{}, false
	}
	return p, true
}
