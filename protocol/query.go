package protocol

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ruteri/tee-confidential-query/interfaces"
)

// QueryHead addresses a query and carries the nonce the enclave must echo.
type QueryHead struct {
	ContractID interfaces.ContractID
	Nonce      [32]byte
}

// Query is the plaintext sealed inside a request envelope.
type Query struct {
	Head QueryHead

	// Origin is the signer identity. The enclave rejects queries whose
	// origin differs from the request signature.
	Origin []byte

	// Payload is the ABI-encoded call: selector followed by arguments.
	Payload []byte

	Deposit    *big.Int
	Transfer   *big.Int
	Estimating bool
}

func (q *Query) Encode() ([]byte, error) {
	data, err := rlp.EncodeToBytes(q)
	if err != nil {
		return nil, fmt.Errorf("failed to encode query: %w", err)
	}
	return data, nil
}

func DecodeQuery(data []byte) (*Query, error) {
	var q Query
	if err := rlp.DecodeBytes(data, &q); err != nil {
		return nil, fmt.Errorf("%w: query: %v", interfaces.ErrProtocolDecode, err)
	}
	return &q, nil
}
