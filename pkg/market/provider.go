package market

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk layout of a markets metadata file
//
//	markets:
//	  - name: BTC-USD
//	    assetName: BTC
//	    status: ACTIVE
//	    tradingConfig: {minOrderSize: "0.0001", minOrderSizeChange: "0.00001", minPriceChange: "1"}
//	    l2Config: {collateralId: "0x1", collateralResolution: 1000000, syntheticId: "0x4254432d3600000000000000000000", syntheticResolution: 1000000}
type File struct {
	Markets []*Market `yaml:"markets"`
}

// ParseFile decodes market metadata from YAML and validates every entry
func ParseFile(data []byte) ([]*Market, error) {
	var f File
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("failed to decode markets: %w", err)
	}
	for i, m := range f.Markets {
		if m == nil {
			return nil, fmt.Errorf("market entry %d is empty", i)
		}
		if m.Status == "" {
			m.Status = Active
		}
		if err := m.Validate(); err != nil {
			return nil, err
		}
	}
	return f.Markets, nil
}

// LoadFile reads and parses a markets metadata file
func LoadFile(path string) ([]*Market, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read markets file: %w", err)
	}
	return ParseFile(data)
}

// LoadRegistry builds a registry from a markets metadata file
func LoadRegistry(path string) (*Registry, error) {
	markets, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	reg := NewRegistry()
	for _, m := range markets {
		if err := reg.Register(m); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
