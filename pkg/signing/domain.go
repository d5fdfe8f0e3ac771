package signing

import (
	"fmt"
	"strings"
)

// Domain separates signatures per network and protocol revision
type Domain struct {
	Name     string `json:"name"`
	Version  string `json:"version"`
	ChainID  string `json:"chainId"`
	Revision string `json:"revision"`
}

// MainnetDomain is the Starknet mainnet perpetuals domain
func MainnetDomain() Domain {
	return Domain{Name: "Perpetuals", Version: "v0", ChainID: "SN_MAIN", Revision: "1"}
}

// TestnetDomain is the Starknet Sepolia perpetuals domain
func TestnetDomain() Domain {
	return Domain{Name: "Perpetuals", Version: "v0", ChainID: "SN_SEPOLIA", Revision: "1"}
}

// DomainForNetwork returns the domain of a named network ("mainnet" or "testnet")
func DomainForNetwork(network string) (Domain, error) {
	switch strings.ToLower(network) {
	case "mainnet", "main", "sn_main":
		return MainnetDomain(), nil
	case "testnet", "sepolia", "sn_sepolia":
		return TestnetDomain(), nil
	}
	return Domain{}, fmt.Errorf("%w: unknown network %q", ErrInvalidInput, network)
}

// Fields returns the trailing preimage fields: name, version, chain id, revision
func (d Domain) Fields() []string {
	return []string{d.Name, d.Version, d.ChainID, d.Revision}
}

// Validate rejects a domain with empty fields
func (d Domain) Validate() error {
	if d.Name == "" || d.Version == "" || d.ChainID == "" || d.Revision == "" {
		return fmt.Errorf("%w: incomplete signing domain %+v", ErrInvalidInput, d)
	}
	return nil
}

// Override replaces the fields given as non-empty strings
func (d Domain) Override(name, version, chainID, revision string) Domain {
	if name != "" {
		d.Name = name
	}
	if version != "" {
		d.Version = version
	}
	if chainID != "" {
		d.ChainID = chainID
	}
	if revision != "" {
		d.Revision = revision
	}
	return d
}
