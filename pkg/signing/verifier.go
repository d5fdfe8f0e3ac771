package signing

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/uhyunpark/starksettle/pkg/crypto"
	"github.com/uhyunpark/starksettle/pkg/market"
	"github.com/uhyunpark/starksettle/pkg/settlement"
	"github.com/uhyunpark/starksettle/pkg/transaction"
)

// Verifier recomputes message hashes from signed requests and checks their
// signatures, the way the venue does before accepting them
type Verifier struct {
	domain Domain
	hasher Hasher
	policy settlement.RoundingPolicy
}

// NewVerifier creates a verifier for one signing domain
func NewVerifier(domain Domain, opts ...Option) *Verifier {
	p := &Pipeline{
		domain: domain,
		hasher: crypto.NewTypedDataHasher(),
		policy: settlement.DefaultRoundingPolicy,
	}
	for _, opt := range opts {
		opt(p)
	}
	return &Verifier{domain: p.domain, hasher: p.hasher, policy: p.policy}
}

// VerifyOrder checks a signed order: the id must equal the recomputed hash,
// debugging amounts (if present) must match the canonical amounts, and the
// signature must verify against the settlement's stark key
func (v *Verifier) VerifyOrder(req *transaction.CreateOrderRequest, assets market.AssetContext) error {
	if req == nil || req.Settlement == nil {
		return fmt.Errorf("%w: order is not signed", ErrInvalidSignature)
	}
	if !req.Settlement.CollateralPosition.Equal(decimal.NewFromInt(int64(assets.PositionID))) {
		return fmt.Errorf("%w: settlement position %s, want %d", ErrInvalidSignature, req.Settlement.CollateralPosition, assets.PositionID)
	}

	msg, err := orderMessage(req, assets, v.policy)
	if err != nil {
		return err
	}
	if d := req.DebuggingAmounts; d != nil {
		want := transaction.NewDebuggingAmounts(msg.Amounts)
		if !d.SyntheticAmount.Equal(want.SyntheticAmount) ||
			!d.CollateralAmount.Equal(want.CollateralAmount) ||
			!d.FeeAmount.Equal(want.FeeAmount) {
			return fmt.Errorf("%w: debugging amounts do not match canonical amounts", ErrInvalidSignature)
		}
	}

	hash, err := v.check(msg, req.Settlement.StarkKey, req.Settlement.Signature)
	if err != nil {
		return err
	}
	if req.ID != hash.String() {
		return fmt.Errorf("%w: order id %s does not match hash %s", ErrInvalidSignature, req.ID, hash)
	}
	return nil
}

// VerifyWithdrawal checks a signed withdrawal of the default collateral asset
// sent from positionID by publicKeyHex
func (v *Verifier) VerifyWithdrawal(req *transaction.WithdrawalRequest, positionID, publicKeyHex string) error {
	if req == nil {
		return fmt.Errorf("%w: withdrawal is not signed", ErrInvalidSignature)
	}
	p := &Pipeline{policy: v.policy}
	msg, err := p.WithdrawalMessage(WithdrawalParams{
		Amount:       req.Amount,
		Recipient:    req.Recipient,
		PositionID:   positionID,
		Nonce:        req.Nonce,
		ExpiryMillis: req.ExpiryEpochMillis,
	})
	if err != nil {
		return err
	}
	_, err = v.check(msg, publicKeyHex, req.Signature)
	return err
}

// VerifyTransfer checks a signed transfer of the default collateral asset
// sent from senderPositionID by publicKeyHex
func (v *Verifier) VerifyTransfer(req *transaction.TransferRequest, senderPositionID, publicKeyHex string) error {
	if req == nil {
		return fmt.Errorf("%w: transfer is not signed", ErrInvalidSignature)
	}
	p := &Pipeline{policy: v.policy}
	msg, err := p.TransferMessage(TransferParams{
		Amount:              req.Amount,
		RecipientPositionID: req.RecipientAccountID,
		SenderPositionID:    senderPositionID,
		Nonce:               req.Nonce,
		ExpiryMillis:        req.ExpiryEpochMillis,
	})
	if err != nil {
		return err
	}
	_, err = v.check(msg, publicKeyHex, req.Signature)
	return err
}

func (v *Verifier) check(msg Signable, publicKeyHex string, sig transaction.Signature) (*big.Int, error) {
	pub, err := crypto.ParseFeltHex(publicKeyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: stark key: %v", ErrInvalidInput, err)
	}
	r, err := crypto.ParseFeltHex(sig.R)
	if err != nil {
		return nil, fmt.Errorf("%w: r: %v", ErrInvalidSignature, err)
	}
	s, err := crypto.ParseFeltHex(sig.S)
	if err != nil {
		return nil, fmt.Errorf("%w: s: %v", ErrInvalidSignature, err)
	}

	hash, err := hashMessage(v.hasher, msg, pub, v.domain)
	if err != nil {
		return nil, err
	}
	if !crypto.Verify(pub, hash, r, s) {
		return nil, fmt.Errorf("%w: %s signature does not verify", ErrInvalidSignature, msg.Kind())
	}
	return hash, nil
}

// Verifier returns a verifier sharing the pipeline's domain, hasher and rounding policy
func (p *Pipeline) Verifier() *Verifier {
	return &Verifier{domain: p.domain, hasher: p.hasher, policy: p.policy}
}
