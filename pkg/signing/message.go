package signing

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/uhyunpark/starksettle/pkg/crypto"
	"github.com/uhyunpark/starksettle/pkg/settlement"
)

// Signable is one of the three settlement messages. Fields returns the
// struct part of the preimage in hash order; the public key and domain are
// appended by Preimage.
type Signable interface {
	Kind() crypto.MessageKind
	Fields() []string
}

// OrderMessage is a perpetual order settlement
type OrderMessage struct {
	PositionID        uint32
	SyntheticAssetID  string
	CollateralAssetID string
	Amounts           settlement.CanonicalAmounts
	Expiration        uint64 // epoch seconds
	Nonce             uint64
}

func (m OrderMessage) Kind() crypto.MessageKind { return crypto.KindOrder }

// Fields orders the amounts as the venue verifier expects; the fee is always
// paid in the collateral asset
func (m OrderMessage) Fields() []string {
	return []string{
		u32(m.PositionID),
		m.SyntheticAssetID,
		strconv.FormatInt(m.Amounts.Synthetic, 10),
		m.CollateralAssetID,
		strconv.FormatInt(m.Amounts.Collateral, 10),
		m.CollateralAssetID,
		strconv.FormatUint(m.Amounts.Fee, 10),
		strconv.FormatUint(m.Expiration, 10),
		strconv.FormatUint(m.Nonce, 10),
	}
}

// WithdrawalMessage moves collateral out to a Starknet address
type WithdrawalMessage struct {
	Recipient         string // hex address
	PositionID        uint32
	CollateralAssetID string
	Amount            uint64
	Expiration        uint64
	Nonce             uint64
}

func (m WithdrawalMessage) Kind() crypto.MessageKind { return crypto.KindWithdrawal }

func (m WithdrawalMessage) Fields() []string {
	return []string{
		m.Recipient,
		u32(m.PositionID),
		m.CollateralAssetID,
		strconv.FormatUint(m.Amount, 10),
		strconv.FormatUint(m.Expiration, 10),
		strconv.FormatUint(m.Nonce, 10),
	}
}

// TransferMessage moves collateral between two positions
type TransferMessage struct {
	RecipientPositionID uint32
	SenderPositionID    uint32
	CollateralAssetID   string
	Amount              uint64
	Expiration          uint64
	Nonce               uint64
}

func (m TransferMessage) Kind() crypto.MessageKind { return crypto.KindTransfer }

func (m TransferMessage) Fields() []string {
	return []string{
		u32(m.RecipientPositionID),
		u32(m.SenderPositionID),
		m.CollateralAssetID,
		strconv.FormatUint(m.Amount, 10),
		strconv.FormatUint(m.Expiration, 10),
		strconv.FormatUint(m.Nonce, 10),
	}
}

// Preimage assembles the full ordered field list:
// struct fields, signer public key (hex), domain fields
func Preimage(msg Signable, publicKey *big.Int, domain Domain) []string {
	fields := msg.Fields()
	out := make([]string, 0, len(fields)+1+crypto.DomainFieldCount)
	out = append(out, fields...)
	out = append(out, crypto.FeltHex(publicKey))
	return append(out, domain.Fields()...)
}

// ParsePositionID parses a vault/position id given as a decimal string
func ParsePositionID(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid position id %q", ErrInvalidInput, s)
	}
	return uint32(v), nil
}

// checkAssetID rejects identifiers that are not hex felts
func checkAssetID(name, id string) error {
	if !strings.HasPrefix(id, "0x") && !strings.HasPrefix(id, "0X") {
		return fmt.Errorf("%w: %s %q must be 0x-prefixed hex", ErrInvalidInput, name, id)
	}
	if _, err := crypto.ParseFeltHex(id); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInvalidInput, name, err)
	}
	return nil
}

func u32(v uint32) string {
	return strconv.FormatUint(uint64(v), 10)
}
