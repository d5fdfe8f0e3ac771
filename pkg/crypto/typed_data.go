package crypto

import (
	"fmt"
	"math/big"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/NethermindEth/starknet.go/curve"
	"github.com/consensys/gnark-crypto/ecc/stark-curve/fp"
	pedersenhash "github.com/consensys/gnark-crypto/ecc/stark-curve/pedersen-hash"
	"golang.org/x/crypto/sha3"
)

// MessageKind tags the three settlement messages
type MessageKind string

const (
	KindOrder      MessageKind = "ORDER"
	KindWithdrawal MessageKind = "WITHDRAWAL"
	KindTransfer   MessageKind = "TRANSFER"
)

// messagePrefix is mixed into every message hash ahead of the domain
const messagePrefix = "StarkNet Message"

// DomainFieldCount is the number of trailing preimage fields carrying the
// signing domain: name, version, chain id, revision
const DomainFieldCount = 4

// domainType is the encoded type of the signing domain
const domainType = `"StarknetDomain"("name":"shortstring","version":"shortstring","chainId":"shortstring","revision":"shortstring")`

// wrapperTypes trails every encoded struct type. Wrapped values are hashed
// inline, one felt each, the way the perpetuals contract serializes them
const wrapperTypes = `"PositionId"("value":"u32")"AssetId"("value":"felt")"Timestamp"("seconds":"u64")`

// Encoded struct types per message kind, as declared by the perpetuals contract
// Field order matches the preimage assembled by the signing package
var messageTypes = map[MessageKind]messageType{
	KindOrder: {
		encoded: `"Order"("position_id":"felt","base_asset_id":"AssetId","base_amount":"i64","quote_asset_id":"AssetId","quote_amount":"i64","fee_asset_id":"AssetId","fee_amount":"u64","expiration":"Timestamp","salt":"felt")` + wrapperTypes,
		fields:  9,
	},
	KindWithdrawal: {
		encoded: `"WithdrawArgs"("recipient":"ContractAddress","position_id":"PositionId","collateral_id":"AssetId","amount":"u64","expiration":"Timestamp","salt":"felt")` + wrapperTypes,
		fields:  6,
	},
	KindTransfer: {
		encoded: `"TransferArgs"("recipient":"PositionId","position_id":"PositionId","collateral_id":"AssetId","amount":"u64","expiration":"Timestamp","salt":"felt")` + wrapperTypes,
		fields:  6,
	},
}

type messageType struct {
	encoded string
	fields  int
}

// FieldCount returns the number of preimage fields expected for kind:
// struct fields, the signer's public key and the four domain fields
func FieldCount(kind MessageKind) (int, bool) {
	t, ok := messageTypes[kind]
	if !ok {
		return 0, false
	}
	return t.fields + 1 + DomainFieldCount, true
}

// ArrayHasher compresses a sequence of field elements into one
type ArrayHasher interface {
	HashArray(elems []*big.Int) *big.Int
	Name() string
}

// PoseidonArrayHasher is the Starknet Poseidon sponge over the elements,
// the array hash of revision 1 typed data
type PoseidonArrayHasher struct{}

func (PoseidonArrayHasher) Name() string { return "poseidon" }

func (PoseidonArrayHasher) HashArray(elems []*big.Int) *big.Int {
	felts := make([]*felt.Felt, len(elems))
	for i, e := range elems {
		felts[i] = new(felt.Felt).SetBigInt(e)
	}
	return curve.PoseidonArray(felts...).BigInt(new(big.Int))
}

// PedersenArrayHasher chains Pedersen over the elements and finally the length
type PedersenArrayHasher struct{}

func (PedersenArrayHasher) Name() string { return "pedersen" }

func (PedersenArrayHasher) HashArray(elems []*big.Int) *big.Int {
	felts := make([]*fp.Element, len(elems))
	for i, e := range elems {
		felts[i] = new(fp.Element).SetBigInt(e)
	}
	h := pedersenhash.PedersenArray(felts...)
	return h.BigInt(new(big.Int))
}

// StarknetKeccak is keccak256 truncated to the low 250 bits
func StarknetKeccak(data []byte) *big.Int {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	v := new(big.Int).SetBytes(h.Sum(nil))
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 250), big.NewInt(1))
	return v.And(v, mask)
}

// TypedDataOption customizes a TypedDataHasher
type TypedDataOption func(*TypedDataHasher)

// WithArrayHasher replaces the Poseidon array hash
func WithArrayHasher(h ArrayHasher) TypedDataOption {
	return func(t *TypedDataHasher) { t.hasher = h }
}

// TypedDataHasher computes structured message hashes
//
//	H(prefix, H(domainTypeHash, name, version, chainId, revision), publicKey, H(typeHash, fields...))
//
// where H is the configured ArrayHasher and type hashes are StarknetKeccak of the encoded types
type TypedDataHasher struct {
	hasher         ArrayHasher
	prefix         *big.Int
	domainTypeHash *big.Int
	typeHashes     map[MessageKind]*big.Int
}

// NewTypedDataHasher creates a hasher over the Poseidon array hash
func NewTypedDataHasher(opts ...TypedDataOption) *TypedDataHasher {
	t := &TypedDataHasher{
		hasher:         PoseidonArrayHasher{},
		prefix:         new(big.Int).SetBytes([]byte(messagePrefix)),
		domainTypeHash: StarknetKeccak([]byte(domainType)),
		typeHashes:     make(map[MessageKind]*big.Int, len(messageTypes)),
	}
	for kind, mt := range messageTypes {
		t.typeHashes[kind] = StarknetKeccak([]byte(mt.encoded))
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// HasherName reports the array hash in use
func (t *TypedDataHasher) HasherName() string { return t.hasher.Name() }

// TypeHash returns the type hash of a message kind
func (t *TypedDataHasher) TypeHash(kind MessageKind) (*big.Int, error) {
	h, ok := t.typeHashes[kind]
	if !ok {
		return nil, fmt.Errorf("unknown message kind %q", kind)
	}
	return new(big.Int).Set(h), nil
}

// HashMessage hashes an ordered preimage:
// struct fields, then the public key, then the four domain fields
func (t *TypedDataHasher) HashMessage(kind MessageKind, fields []string) (*big.Int, error) {
	typeHash, ok := t.typeHashes[kind]
	if !ok {
		return nil, fmt.Errorf("unknown message kind %q", kind)
	}
	want, _ := FieldCount(kind)
	if len(fields) != want {
		return nil, fmt.Errorf("%s preimage has %d fields, want %d", kind, len(fields), want)
	}

	n := len(fields) - DomainFieldCount - 1
	structFields, account, domain := fields[:n], fields[n], fields[n+1:]

	domainHash, err := t.hashDomain(domain)
	if err != nil {
		return nil, err
	}

	elems := make([]*big.Int, 0, n+1)
	elems = append(elems, typeHash)
	for i, f := range structFields {
		v, err := ParseFelt(f)
		if err != nil {
			return nil, fmt.Errorf("%s field %d: %w", kind, i, err)
		}
		elems = append(elems, v)
	}
	structHash := t.hasher.HashArray(elems)

	accountFelt, err := ParseFelt(account)
	if err != nil {
		return nil, fmt.Errorf("%s public key: %w", kind, err)
	}

	return t.hasher.HashArray([]*big.Int{t.prefix, domainHash, accountFelt, structHash}), nil
}

func (t *TypedDataHasher) hashDomain(domain []string) (*big.Int, error) {
	elems := make([]*big.Int, 0, len(domain)+1)
	elems = append(elems, t.domainTypeHash)
	for i, f := range domain {
		v, err := EncodeShortString(f)
		if err != nil {
			return nil, fmt.Errorf("domain field %d: %w", i, err)
		}
		elems = append(elems, v)
	}
	return t.hasher.HashArray(elems), nil
}
