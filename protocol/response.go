package protocol

import (
	"bytes"
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ruteri/tee-confidential-query/cryptoutils"
	"github.com/ruteri/tee-confidential-query/interfaces"
)

// ResponseStatus tags the outcome of a query as reported by the contract.
type ResponseStatus uint8

const (
	StatusOk ResponseStatus = iota
	StatusErr
)

// Response is the plaintext sealed inside a response envelope.
type Response struct {
	Nonce        [32]byte
	Status       ResponseStatus
	Output       []byte
	ErrorCode    uint32
	ErrorMessage string
}

func (r *Response) Encode() ([]byte, error) {
	data, err := rlp.EncodeToBytes(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode response: %w", err)
	}
	return data, nil
}

// QueryResult is either the contract's output or the error it reported.
type QueryResult struct {
	Output []byte
	Err    *interfaces.QueryError
}

// Unwrap returns the output, or the contract error as a Go error.
func (r *QueryResult) Unwrap() ([]byte, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return r.Output, nil
}

// SealResponse encodes and encrypts a response for the client that sent the
// matching query. It is the enclave half of DecodeResponse.
func SealResponse(suite cryptoutils.CipherSuite, local cryptoutils.KeyPair, secret cryptoutils.SharedSecret, resp *Response) ([]byte, error) {
	plaintext, err := resp.Encode()
	if err != nil {
		return nil, err
	}
	env, err := SealEnvelope(suite, local, secret, plaintext)
	if err != nil {
		return nil, err
	}
	return env.Encode()
}

// DecodeResponse decrypts a response envelope with the default cipher suite.
func DecodeResponse(raw []byte, secret cryptoutils.SharedSecret, expectedNonce [32]byte) (*QueryResult, error) {
	return ResponseDecoder{Suite: cryptoutils.AES256GCM}.Decode(raw, secret, expectedNonce)
}

// ResponseDecoder turns encrypted response envelopes into query results.
type ResponseDecoder struct {
	Suite cryptoutils.CipherSuite
}

// Decode opens raw with the embedded nonce and secret, then checks that the
// response answers the query identified by expectedNonce.
func (d ResponseDecoder) Decode(raw []byte, secret cryptoutils.SharedSecret, expectedNonce [32]byte) (*QueryResult, error) {
	env, err := DecodeEnvelope(raw)
	if err != nil {
		return nil, err
	}

	plaintext, err := env.Open(d.Suite, secret)
	if err != nil {
		return nil, fmt.Errorf("failed to open response: %w", err)
	}

	var resp Response
	if err := rlp.DecodeBytes(plaintext, &resp); err != nil {
		return nil, fmt.Errorf("%w: response: %v", interfaces.ErrProtocolDecode, err)
	}

	if !bytes.Equal(resp.Nonce[:], expectedNonce[:]) {
		return nil, fmt.Errorf("%w: response nonce does not match request", interfaces.ErrProtocolDecode)
	}

	switch resp.Status {
	case StatusOk:
		return &QueryResult{Output: resp.Output}, nil
	case StatusErr:
		return &QueryResult{Err: &interfaces.QueryError{
			Code:    resp.ErrorCode,
			Message: resp.ErrorMessage,
			Data:    resp.Output,
		}}, nil
	default:
		return nil, fmt.Errorf("%w: unknown response status %d", interfaces.ErrProtocolDecode, resp.Status)
	}
}
