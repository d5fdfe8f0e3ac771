package crypto

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// AccountCreation is the EIP-712 message a wallet signs to derive its
// Stark key for one sub-account
type AccountCreation struct {
	AccountIndex int8           // sub-account index, 0 for the main account
	Wallet       common.Address // L1 wallet address
	TosAccepted  bool           // terms of service accepted
}

// Onboarding hashes and signs AccountCreation messages for one signing domain
// (e.g. "extended.exchange")
type Onboarding struct {
	domainName string
}

// NewOnboarding creates an onboarding helper for the given EIP-712 domain name
func NewOnboarding(domainName string) *Onboarding {
	return &Onboarding{domainName: domainName}
}

func (o *Onboarding) typedData(msg *AccountCreation) apitypes.TypedData {
	return apitypes.TypedData{
		Types: apitypes.Types{
			"EIP712Domain": []apitypes.Type{
				{Name: "name", Type: "string"},
			},
			"AccountCreation": []apitypes.Type{
				{Name: "accountIndex", Type: "int8"},
				{Name: "wallet", Type: "address"},
				{Name: "tosAccepted", Type: "bool"},
			},
		},
		PrimaryType: "AccountCreation",
		Domain: apitypes.TypedDataDomain{
			Name: o.domainName,
		},
		Message: apitypes.TypedDataMessage{
			"accountIndex": fmt.Sprintf("%d", msg.AccountIndex),
			"wallet":       msg.Wallet.Hex(),
			"tosAccepted":  msg.TosAccepted,
		},
	}
}

// HashAccountCreation returns the EIP-712 digest of msg
func (o *Onboarding) HashAccountCreation(msg *AccountCreation) ([]byte, error) {
	typedData := o.typedData(msg)

	domainSeparator, err := typedData.HashStruct("EIP712Domain", typedData.Domain.Map())
	if err != nil {
		return nil, fmt.Errorf("failed to hash domain: %w", err)
	}

	messageHash, err := typedData.HashStruct(typedData.PrimaryType, typedData.Message)
	if err != nil {
		return nil, fmt.Errorf("failed to hash message: %w", err)
	}

	// keccak256("\x19\x01" || domainSeparator || messageHash)
	rawData := []byte(fmt.Sprintf("\x19\x01%s%s", string(domainSeparator), string(messageHash)))
	return crypto.Keccak256Hash(rawData).Bytes(), nil
}

// SignAccountCreation signs the account-creation message with the wallet key
func (o *Onboarding) SignAccountCreation(wallet *EthSigner, accountIndex int8) ([]byte, error) {
	hash, err := o.HashAccountCreation(&AccountCreation{
		AccountIndex: accountIndex,
		Wallet:       wallet.Address(),
		TosAccepted:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to hash account creation: %w", err)
	}
	return wallet.Sign(hash)
}

// VerifyAccountCreation checks that signature was produced by msg.Wallet
func (o *Onboarding) VerifyAccountCreation(msg *AccountCreation, signature []byte) (bool, error) {
	hash, err := o.HashAccountCreation(msg)
	if err != nil {
		return false, fmt.Errorf("failed to hash account creation: %w", err)
	}
	addr, err := RecoverEthAddress(hash, signature)
	if err != nil {
		return false, err
	}
	return addr == msg.Wallet, nil
}

// DeriveStarkSigner signs the account-creation message and grinds the
// signature into the sub-account's Stark key pair
func (o *Onboarding) DeriveStarkSigner(wallet *EthSigner, accountIndex int8) (*StarkSigner, error) {
	sig, err := o.SignAccountCreation(wallet, accountIndex)
	if err != nil {
		return nil, err
	}
	priv, err := PrivateKeyFromEthSignature(SignatureHex(sig))
	if err != nil {
		return nil, fmt.Errorf("failed to derive stark key: %w", err)
	}
	return NewStarkSigner(priv)
}
