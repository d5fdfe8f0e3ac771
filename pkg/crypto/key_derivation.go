package crypto

import (
	"crypto/sha256"
	"fmt"
	"math/big"
	"strings"
)

// PrivateKeyFromEthSignature derives a Stark private key from an Ethereum
// signature over the account-creation message. Only r (the first 32 bytes
// of the signature) seeds the derivation.
func PrivateKeyFromEthSignature(signature string) (*big.Int, error) {
	sig := strings.TrimPrefix(strings.TrimPrefix(signature, "0x"), "0X")
	if len(sig) < 64 {
		return nil, fmt.Errorf("signature too short: %d hex chars", len(sig))
	}
	r, ok := new(big.Int).SetString(sig[:64], 16)
	if !ok {
		return nil, fmt.Errorf("invalid signature hex")
	}
	return GrindKey(r, CurveOrder), nil
}

// GrindKey maps a 256-bit seed uniformly onto [0, limit)
// sha256(seed || index) is rehashed with increasing index until it falls
// below the largest multiple of limit that fits in 256 bits
func GrindKey(seed, limit *big.Int) *big.Int {
	space := new(big.Int).Lsh(big.NewInt(1), 256)
	maxAllowed := new(big.Int).Sub(space, new(big.Int).Mod(space, limit))

	for index := int64(0); ; index++ {
		key := indexedSHA256(seed, big.NewInt(index))
		if key.Cmp(maxAllowed) < 0 {
			return key.Mod(key, limit)
		}
	}
}

func indexedSHA256(seed, index *big.Int) *big.Int {
	data := append(paddedBytes(seed), paddedBytes(index)...)
	sum := sha256.Sum256(data)
	return new(big.Int).SetBytes(sum[:])
}

// paddedBytes is the minimal big-endian encoding, with zero encoded as one byte
func paddedBytes(x *big.Int) []byte {
	if x.Sign() == 0 {
		return []byte{0}
	}
	return x.Bytes()
}
