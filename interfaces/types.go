// Package interfaces defines the core interfaces and types for the confidential
// query client. It provides the contract between components without implementation details.
package interfaces

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Hash32 is a 32-byte identifier shared by contracts, clusters, code blobs and
// transactions on the ledger.
type Hash32 [32]byte

// ContractID identifies a deployed confidential contract.
type ContractID Hash32

// ClusterID identifies a cluster of workers sharing a key-registry scope.
type ClusterID Hash32

// CodeHash identifies uploaded contract code.
type CodeHash Hash32

// TxHash identifies a submitted transaction.
type TxHash Hash32

func parseHash32(s string) (Hash32, error) {
	clean := strings.TrimPrefix(s, "0x")
	if len(clean) != 64 {
		return Hash32{}, errors.New("invalid length: hex string must be 64 characters")
	}

	raw, err := hex.DecodeString(clean)
	if err != nil {
		return Hash32{}, fmt.Errorf("invalid hex format: %w", err)
	}

	var h Hash32
	copy(h[:], raw)
	return h, nil
}

func hash32FromBytes(b []byte) (Hash32, error) {
	if len(b) != 32 {
		return Hash32{}, errors.New("invalid length: must be 32 bytes")
	}
	var h Hash32
	copy(h[:], b)
	return h, nil
}

// NewContractIDFromHex parses a 0x-prefixed or bare 64-character hex string.
func NewContractIDFromHex(s string) (ContractID, error) {
	h, err := parseHash32(s)
	return ContractID(h), err
}

// NewContractIDFromBytes creates a contract ID from exactly 32 bytes.
func NewContractIDFromBytes(b []byte) (ContractID, error) {
	h, err := hash32FromBytes(b)
	return ContractID(h), err
}

// String returns the 0x-prefixed hex representation.
func (id ContractID) String() string { return hexutil.Encode(id[:]) }

// Bytes returns the raw 32 bytes.
func (id ContractID) Bytes() []byte { return id[:] }

// MarshalText implements encoding.TextMarshaler.
func (id ContractID) MarshalText() ([]byte, error) { return hexutil.Bytes(id[:]).MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ContractID) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("ContractID", input, id[:])
}

// NewClusterIDFromHex parses a 0x-prefixed or bare 64-character hex string.
func NewClusterIDFromHex(s string) (ClusterID, error) {
	h, err := parseHash32(s)
	return ClusterID(h), err
}

func (id ClusterID) String() string { return hexutil.Encode(id[:]) }

func (id ClusterID) MarshalText() ([]byte, error) { return hexutil.Bytes(id[:]).MarshalText() }

func (id *ClusterID) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("ClusterID", input, id[:])
}

// NewCodeHashFromHex parses a 0x-prefixed or bare 64-character hex string.
func NewCodeHashFromHex(s string) (CodeHash, error) {
	h, err := parseHash32(s)
	return CodeHash(h), err
}

func (h CodeHash) String() string { return hexutil.Encode(h[:]) }

func (h CodeHash) MarshalText() ([]byte, error) { return hexutil.Bytes(h[:]).MarshalText() }

func (h *CodeHash) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("CodeHash", input, h[:])
}

func (h TxHash) String() string { return hexutil.Encode(h[:]) }

func (h TxHash) MarshalText() ([]byte, error) { return hexutil.Bytes(h[:]).MarshalText() }

func (h *TxHash) UnmarshalText(input []byte) error {
	return hexutil.UnmarshalFixedText("TxHash", input, h[:])
}

// ContractKey is the key record published by the key registry once a
// contract's key material has been provisioned inside the enclave.
type ContractKey struct {
	ContractID ContractID    `json:"contractId"`
	Pubkey     hexutil.Bytes `json:"pubkey"`
}

// EventInstantiating is emitted by a deployment transaction and carries the
// identifier of the contract being instantiated.
const EventInstantiating = "Instantiating"

// Event is a single event emitted by an included transaction.
type Event struct {
	Name       string     `json:"name"`
	ContractID ContractID `json:"contractId"`
	ClusterID  ClusterID  `json:"clusterId"`
}

// TxStatus describes what the ledger knows about a submitted transaction.
type TxStatus struct {
	Hash TxHash `json:"hash"`

	// InBlock is set once the transaction has been included or finalized.
	InBlock bool `json:"inBlock"`

	// Events is only meaningful once InBlock is set.
	Events []Event `json:"events"`
}

// FindEvent returns the first event with the given name.
func (s *TxStatus) FindEvent(name string) (Event, bool) {
	for _, ev := range s.Events {
		if ev.Name == name {
			return ev, true
		}
	}
	return Event{}, false
}

// InstantiateRequest carries the arguments of the instantiateContract
// extrinsic. ConstructorPayload is the ABI-encoded constructor call
// (selector followed by arguments), produced by an external encoder.
type InstantiateRequest struct {
	CodeHash            CodeHash      `json:"codeHash"`
	ConstructorPayload  hexutil.Bytes `json:"constructorPayload"`
	Salt                hexutil.Bytes `json:"salt"`
	ClusterID           ClusterID     `json:"clusterId"`
	Transfer            *hexutil.Big  `json:"transfer"`
	GasLimit            uint64        `json:"gasLimit"`
	StorageDepositLimit *hexutil.Big  `json:"storageDepositLimit,omitempty"`
	Deposit             *hexutil.Big  `json:"deposit"`
}

// NewInstantiateRequest fills the value fields with zero so the request
// serializes without nil big integers.
func NewInstantiateRequest(codeHash CodeHash, clusterID ClusterID, payload, salt []byte) InstantiateRequest {
	return InstantiateRequest{
		CodeHash:           codeHash,
		ConstructorPayload: payload,
		Salt:               salt,
		ClusterID:          clusterID,
		Transfer:           (*hexutil.Big)(new(big.Int)),
		Deposit:            (*hexutil.Big)(new(big.Int)),
	}
}
