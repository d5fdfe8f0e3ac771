package crypto

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"math/big"
)

// generateK derives the signing nonce for msgHash
// A hash that is exactly one nibble short of 32 bytes is shifted left by
// four bits first so the result matches the elliptic.js/cairo-lang signers.
// A non-zero seed is appended as extra entropy (RFC 6979 section 3.6).
func generateK(msgHash, priv *big.Int, seed uint64) *big.Int {
	h := new(big.Int).Set(msgHash)
	if bl := h.BitLen(); bl >= 248 && bl%8 >= 1 && bl%8 <= 4 {
		h.Lsh(h, 4)
	}

	var extra []byte
	if seed > 0 {
		extra = new(big.Int).SetUint64(seed).Bytes()
	}
	return rfc6979Nonce(CurveOrder, priv, h.Bytes(), extra)
}

func rfc6979Nonce(order, secret *big.Int, data, extra []byte) *big.Int {
	qlen := order.BitLen()
	rolen := (qlen + 7) / 8

	z := bits2int(data, qlen)
	if z.Cmp(order) >= 0 {
		z.Sub(z, order)
	}

	bx := make([]byte, 0, 2*rolen+len(extra))
	bx = append(bx, int2octets(secret, rolen)...)
	bx = append(bx, int2octets(z, rolen)...)
	bx = append(bx, extra...)

	v := bytes.Repeat([]byte{0x01}, sha256.Size)
	k := make([]byte, sha256.Size)

	k = mac(k, v, []byte{0x00}, bx)
	v = mac(k, v)
	k = mac(k, v, []byte{0x01}, bx)
	v = mac(k, v)

	for {
		var t []byte
		for len(t) < rolen {
			v = mac(k, v)
			t = append(t, v...)
		}
		candidate := bits2int(t, qlen)
		if candidate.Sign() > 0 && candidate.Cmp(order) < 0 {
			return candidate
		}
		k = mac(k, v, []byte{0x00})
		v = mac(k, v)
	}
}

func mac(key []byte, parts ...[]byte) []byte {
	h := hmac.New(sha256.New, key)
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// bits2int keeps the leftmost qlen bits of data
func bits2int(data []byte, qlen int) *big.Int {
	x := new(big.Int).SetBytes(data)
	if l := len(data) * 8; l > qlen {
		x.Rsh(x, uint(l-qlen))
	}
	return x
}

func int2octets(x *big.Int, rolen int) []byte {
	out := make([]byte, rolen)
	return x.FillBytes(out)
}
