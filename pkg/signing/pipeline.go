package signing

import (
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/uhyunpark/starksettle/pkg/crypto"
	"github.com/uhyunpark/starksettle/pkg/market"
	"github.com/uhyunpark/starksettle/pkg/settlement"
	"github.com/uhyunpark/starksettle/pkg/transaction"
)

// DefaultCollateralResolution is the resolution of the USD collateral asset
const DefaultCollateralResolution int64 = 1_000_000

// DefaultCollateralAssetID is the settlement id of the USD collateral asset
const DefaultCollateralAssetID = "0x1"

// Hasher is the canonical structured-hash primitive.
// *crypto.TypedDataHasher implements it.
type Hasher interface {
	HashMessage(kind crypto.MessageKind, fields []string) (*big.Int, error)
}

// Pipeline turns requests in human units into signed settlement requests.
// It holds no mutable state and is safe for concurrent use.
type Pipeline struct {
	signer *Signer
	domain Domain
	hasher Hasher
	policy settlement.RoundingPolicy
	log    *zap.SugaredLogger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithHasher replaces the bundled typed-data hasher
func WithHasher(h Hasher) Option {
	return func(p *Pipeline) { p.hasher = h }
}

// WithRoundingPolicy replaces settlement.DefaultRoundingPolicy
func WithRoundingPolicy(policy settlement.RoundingPolicy) Option {
	return func(p *Pipeline) { p.policy = policy }
}

// WithLogger sets the logger; the default discards everything
func WithLogger(log *zap.SugaredLogger) Option {
	return func(p *Pipeline) { p.log = log }
}

// NewPipeline creates a pipeline signing under domain
func NewPipeline(signer *Signer, domain Domain, opts ...Option) (*Pipeline, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: signer is required", ErrInvalidInput)
	}
	if err := domain.Validate(); err != nil {
		return nil, err
	}
	p := &Pipeline{
		signer: signer,
		domain: domain,
		hasher: crypto.NewTypedDataHasher(),
		policy: settlement.DefaultRoundingPolicy,
		log:    zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Domain returns the signing domain
func (p *Pipeline) Domain() Domain { return p.domain }

// Signer returns the wrapped signer
func (p *Pipeline) Signer() *Signer { return p.signer }

// Hash computes the message hash of msg under the pipeline's key and domain
func (p *Pipeline) Hash(msg Signable) (*big.Int, error) {
	return hashMessage(p.hasher, msg, p.signer.PublicKey(), p.domain)
}

func hashMessage(h Hasher, msg Signable, publicKey *big.Int, domain Domain) (*big.Int, error) {
	hash, err := h.HashMessage(msg.Kind(), Preimage(msg, publicKey, domain))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrHashComputationFailed, msg.Kind(), err)
	}
	if hash == nil {
		return nil, fmt.Errorf("%w: %s: empty hash", ErrHashComputationFailed, msg.Kind())
	}
	return hash, nil
}

func (p *Pipeline) sign(msg Signable) (hash *big.Int, sig transaction.Signature, err error) {
	hash, err = p.Hash(msg)
	if err != nil {
		return nil, transaction.Signature{}, err
	}
	r, s, err := p.signer.Sign(hash)
	if err != nil {
		return nil, transaction.Signature{}, err
	}
	return hash, transaction.Signature{R: crypto.FeltHex(r), S: crypto.FeltHex(s)}, nil
}

// OrderMessage canonicalizes req into the message that SignOrder hashes
func (p *Pipeline) OrderMessage(req *transaction.CreateOrderRequest, assets market.AssetContext) (OrderMessage, error) {
	return orderMessage(req, assets, p.policy)
}

func orderMessage(req *transaction.CreateOrderRequest, assets market.AssetContext, policy settlement.RoundingPolicy) (OrderMessage, error) {
	if req == nil {
		return OrderMessage{}, fmt.Errorf("%w: nil order", ErrInvalidInput)
	}
	if err := req.Validate(); err != nil {
		return OrderMessage{}, err
	}
	if err := checkAssetID("synthetic asset id", assets.SyntheticAssetID); err != nil {
		return OrderMessage{}, err
	}
	if err := checkAssetID("collateral asset id", assets.CollateralAssetID); err != nil {
		return OrderMessage{}, err
	}

	intent, err := req.Intent()
	if err != nil {
		return OrderMessage{}, err
	}
	amounts, err := settlement.CanonicalizeWithPolicy(intent, assets, policy)
	if err != nil {
		return OrderMessage{}, fmt.Errorf("failed to canonicalize order: %w", err)
	}
	expiration, err := settlement.SettlementExpiration(intent.ExpiryMillis)
	if err != nil {
		return OrderMessage{}, err
	}

	return OrderMessage{
		PositionID:        assets.PositionID,
		SyntheticAssetID:  assets.SyntheticAssetID,
		CollateralAssetID: assets.CollateralAssetID,
		Amounts:           amounts,
		Expiration:        expiration,
		Nonce:             intent.Nonce,
	}, nil
}

// SignOrder canonicalizes, hashes and signs an order. The returned copy
// carries the hash as its decimal id, the settlement and the debugging
// amounts; req itself is left untouched.
func (p *Pipeline) SignOrder(req *transaction.CreateOrderRequest, assets market.AssetContext) (*transaction.CreateOrderRequest, error) {
	msg, err := p.OrderMessage(req, assets)
	if err != nil {
		return nil, err
	}
	hash, sig, err := p.sign(msg)
	if err != nil {
		return nil, err
	}

	out := req.Clone()
	out.ID = hash.String()
	out.Settlement = &transaction.Settlement{
		Signature:          sig,
		StarkKey:           p.signer.PublicKeyHex(),
		CollateralPosition: decimal.NewFromInt(int64(assets.PositionID)),
	}
	out.DebuggingAmounts = transaction.NewDebuggingAmounts(msg.Amounts)

	p.log.Infow("order_signed",
		"id", out.ID,
		"market", out.Market,
		"side", out.Side,
		"synthetic", msg.Amounts.Synthetic,
		"collateral", msg.Amounts.Collateral,
		"fee", msg.Amounts.Fee,
		"expiration", msg.Expiration,
	)
	return out, nil
}

// SignMarketOrder signs req against a registered market. Non-tradable
// markets are rejected.
func (p *Pipeline) SignMarketOrder(req *transaction.CreateOrderRequest, m *market.Market, positionID uint32) (*transaction.CreateOrderRequest, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: nil market", ErrInvalidInput)
	}
	if req != nil && req.Market != m.Name {
		return nil, fmt.Errorf("%w: order market %q does not match %q", ErrInvalidInput, req.Market, m.Name)
	}
	if !m.Status.Tradable() {
		return nil, fmt.Errorf("%w: market %s is %s", ErrInvalidInput, m.Name, m.Status)
	}
	return p.SignOrder(req, m.AssetContext(positionID))
}

// WithdrawalParams describes a withdrawal in human units
type WithdrawalParams struct {
	Amount               decimal.Decimal
	Recipient            string // Starknet address, 0x hex
	PositionID           string // sender vault id, decimal
	CollateralAssetID    string // defaults to DefaultCollateralAssetID
	CollateralResolution int64  // defaults to DefaultCollateralResolution
	Nonce                uint64
	ExpiryMillis         int64
}

// WithdrawalMessage canonicalizes params into the message that SignWithdrawal hashes
func (p *Pipeline) WithdrawalMessage(params WithdrawalParams) (WithdrawalMessage, error) {
	positionID, err := ParsePositionID(params.PositionID)
	if err != nil {
		return WithdrawalMessage{}, err
	}
	if err := checkAssetID("recipient", params.Recipient); err != nil {
		return WithdrawalMessage{}, err
	}
	assetID, resolution := collateralDefaults(params.CollateralAssetID, params.CollateralResolution)
	if err := checkAssetID("collateral asset id", assetID); err != nil {
		return WithdrawalMessage{}, err
	}

	amount, err := settlement.CollateralUnits(params.Amount, resolution, p.policy.Transfer)
	if err != nil {
		return WithdrawalMessage{}, err
	}
	expiration, err := settlement.SettlementExpiration(params.ExpiryMillis)
	if err != nil {
		return WithdrawalMessage{}, err
	}

	return WithdrawalMessage{
		Recipient:         params.Recipient,
		PositionID:        positionID,
		CollateralAssetID: assetID,
		Amount:            amount,
		Expiration:        expiration,
		Nonce:             params.Nonce,
	}, nil
}

// SignWithdrawal signs a withdrawal of collateral to a Starknet address
func (p *Pipeline) SignWithdrawal(params WithdrawalParams) (*transaction.WithdrawalRequest, error) {
	msg, err := p.WithdrawalMessage(params)
	if err != nil {
		return nil, err
	}
	hash, sig, err := p.sign(msg)
	if err != nil {
		return nil, err
	}

	p.log.Infow("withdrawal_signed",
		"hash", crypto.FeltHex(hash),
		"recipient", msg.Recipient,
		"position", msg.PositionID,
		"amount", msg.Amount,
	)
	return &transaction.WithdrawalRequest{
		Amount:            params.Amount,
		Recipient:         params.Recipient,
		Nonce:             params.Nonce,
		ExpiryEpochMillis: params.ExpiryMillis,
		Signature:         sig,
	}, nil
}

// TransferParams describes a transfer between two positions in human units
type TransferParams struct {
	Amount               decimal.Decimal
	RecipientPositionID  string // decimal vault id
	SenderPositionID     string // decimal vault id
	CollateralAssetID    string // defaults to DefaultCollateralAssetID
	CollateralResolution int64  // defaults to DefaultCollateralResolution
	Nonce                uint64
	ExpiryMillis         int64
}

// TransferMessage canonicalizes params into the message that SignTransfer hashes
func (p *Pipeline) TransferMessage(params TransferParams) (TransferMessage, error) {
	recipient, err := ParsePositionID(params.RecipientPositionID)
	if err != nil {
		return TransferMessage{}, err
	}
	sender, err := ParsePositionID(params.SenderPositionID)
	if err != nil {
		return TransferMessage{}, err
	}
	assetID, resolution := collateralDefaults(params.CollateralAssetID, params.CollateralResolution)
	if err := checkAssetID("collateral asset id", assetID); err != nil {
		return TransferMessage{}, err
	}

	amount, err := settlement.CollateralUnits(params.Amount, resolution, p.policy.Transfer)
	if err != nil {
		return TransferMessage{}, err
	}
	expiration, err := settlement.SettlementExpiration(params.ExpiryMillis)
	if err != nil {
		return TransferMessage{}, err
	}

	return TransferMessage{
		RecipientPositionID: recipient,
		SenderPositionID:    sender,
		CollateralAssetID:   assetID,
		Amount:              amount,
		Expiration:          expiration,
		Nonce:               params.Nonce,
	}, nil
}

// SignTransfer signs a collateral transfer between two positions
func (p *Pipeline) SignTransfer(params TransferParams) (*transaction.TransferRequest, error) {
	msg, err := p.TransferMessage(params)
	if err != nil {
		return nil, err
	}
	hash, sig, err := p.sign(msg)
	if err != nil {
		return nil, err
	}

	p.log.Infow("transfer_signed",
		"hash", crypto.FeltHex(hash),
		"from", msg.SenderPositionID,
		"to", msg.RecipientPositionID,
		"amount", msg.Amount,
	)
	return &transaction.TransferRequest{
		Amount:             params.Amount,
		RecipientAccountID: params.RecipientPositionID,
		Nonce:              params.Nonce,
		ExpiryEpochMillis:  params.ExpiryMillis,
		Signature:          sig,
	}, nil
}

func collateralDefaults(assetID string, resolution int64) (string, int64) {
	if assetID == "" {
		assetID = DefaultCollateralAssetID
	}
	if resolution == 0 {
		resolution = DefaultCollateralResolution
	}
	return assetID, resolution
}
