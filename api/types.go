package api

import (
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// Routes served by a worker and by the local enclave simulator.
const (
	// ContractQueryPath accepts an RLP-encoded SignedRequest and answers with
	// an encoded response envelope.
	ContractQueryPath = "/prpc/ContractQuery"

	// GetInfoPath returns the worker's InfoResponse as JSON.
	GetInfoPath = "/prpc/GetInfo"

	// RegistryRPCPath serves the JSON-RPC registry of the local simulator.
	RegistryRPCPath = "/rpc"
)

// Header constants used in HTTP requests and responses.
const (
	// RequestIDHeader correlates one query across client and worker logs.
	RequestIDHeader = "X-Request-Id"

	// ContentTypeBinary is the content type of every protocol message.
	ContentTypeBinary = "application/octet-stream"

	// MaxBodySize is the maximum allowed request and response body size (1MB).
	MaxBodySize = 1024 * 1024
)

// InfoResponse describes a worker. Clients derive their SharedSecret from
// WorkerPubkey when the key registry is not consulted directly.
type InfoResponse struct {
	// WorkerPubkey is the X25519 public key query envelopes are sealed to
	WorkerPubkey hexutil.Bytes `json:"worker_pubkey"`

	// CipherSuite names the AEAD the worker expects
	CipherSuite string `json:"cipher_suite"`

	// Contracts is the number of contracts the worker serves
	Contracts int `json:"contracts"`

	Version string `json:"version"`
}
