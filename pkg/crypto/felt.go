package crypto

import (
	"fmt"
	"math/big"
	"strings"
)

// maxShortStringLen is the number of ASCII bytes that fit in one felt
const maxShortStringLen = 31

// ParseFelt converts a preimage field into a field element
// "0x"-prefixed values are hex, everything else is a signed decimal;
// negative values are taken mod p
func ParseFelt(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("empty field element")
	}

	var (
		v  *big.Int
		ok bool
	)
	if hex, isHex := trimHexPrefix(s); isHex {
		if !isHexDigits(hex) {
			return nil, fmt.Errorf("invalid hex field element %q", s)
		}
		v, ok = new(big.Int).SetString(hex, 16)
	} else {
		if !isDecimal(s) {
			return nil, fmt.Errorf("invalid field element %q", s)
		}
		v, ok = new(big.Int).SetString(s, 10)
	}
	if !ok {
		return nil, fmt.Errorf("invalid field element %q", s)
	}

	if v.Sign() < 0 {
		if new(big.Int).Neg(v).Cmp(FieldPrime) >= 0 {
			return nil, fmt.Errorf("field element %q out of range", s)
		}
		return v.Add(v, FieldPrime), nil
	}
	if v.Cmp(FieldPrime) >= 0 {
		return nil, fmt.Errorf("field element %q out of range", s)
	}
	return v, nil
}

// EncodeShortString converts a domain string into a felt
// Numeric strings are taken as numbers, other strings as big-endian ASCII
func EncodeShortString(s string) (*big.Int, error) {
	if s == "" {
		return big.NewInt(0), nil
	}
	if _, isHex := trimHexPrefix(s); isHex || isDecimal(s) {
		return ParseFelt(s)
	}
	if len(s) > maxShortStringLen {
		return nil, fmt.Errorf("short string %q longer than %d bytes", s, maxShortStringLen)
	}
	for i := 0; i < len(s); i++ {
		if s[i] > 0x7f {
			return nil, fmt.Errorf("short string %q is not ASCII", s)
		}
	}
	return new(big.Int).SetBytes([]byte(s)), nil
}

// FeltHex formats a felt the way signatures and keys are published: 0x-prefixed lower-case hex
func FeltHex(v *big.Int) string {
	return fmt.Sprintf("%#x", v)
}

// ParseFeltHex parses a key or signature component with or without the 0x prefix
func ParseFeltHex(s string) (*big.Int, error) {
	hex, _ := trimHexPrefix(strings.TrimSpace(s))
	if hex == "" {
		return nil, fmt.Errorf("empty hex value")
	}
	if !isHexDigits(hex) {
		return nil, fmt.Errorf("invalid hex value %q", s)
	}
	v, ok := new(big.Int).SetString(hex, 16)
	if !ok {
		return nil, fmt.Errorf("invalid hex value %q", s)
	}
	if v.Cmp(FieldPrime) >= 0 {
		return nil, fmt.Errorf("hex value %q exceeds field prime", s)
	}
	return v, nil
}

func trimHexPrefix(s string) (string, bool) {
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		return s[2:], true
	}
	return s, false
}

// isHexDigits rejects signs and separators that big.Int would otherwise accept
func isHexDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}

func isDecimal(s string) bool {
	digits := strings.TrimPrefix(s, "-")
	if digits == "" {
		return false
	}
	for _, c := range digits {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
