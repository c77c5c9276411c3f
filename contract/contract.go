package contract

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/ruteri/tee-confidential-query/common"
	"github.com/ruteri/tee-confidential-query/cryptoutils"
	"github.com/ruteri/tee-confidential-query/interfaces"
	"github.com/ruteri/tee-confidential-query/metadata"
	"github.com/ruteri/tee-confidential-query/metrics"
	"github.com/ruteri/tee-confidential-query/protocol"
)

// Config wires a Contract handle. ContractID, RemotePubkey, Operations,
// Transport and Signer are required.
type Config struct {
	ContractID interfaces.ContractID

	// RemotePubkey is the X25519 key published for the contract by the key
	// registry (or the worker key reported by GetInfo).
	RemotePubkey []byte

	Operations *metadata.OperationTable
	Transport  interfaces.QueryTransport
	Signer     cryptoutils.Signer
	Suite      cryptoutils.CipherSuite
	Log        *slog.Logger
}

// CallOptions carries the optional value fields of a query.
type CallOptions struct {
	Deposit    *big.Int
	Transfer   *big.Int
	Estimating bool
}

// Contract is a handle for querying one confidential contract.
//
// The handle's key pair and shared secret are created once in New and
// reused for every query; only the envelope nonce and the request nonce are
// fresh per query. A Contract is safe for concurrent use.
type Contract struct {
	id        interfaces.ContractID
	ops       *metadata.OperationTable
	transport interfaces.QueryTransport
	signer    cryptoutils.Signer
	suite     cryptoutils.CipherSuite
	key       cryptoutils.KeyPair
	secret    cryptoutils.SharedSecret
	log       *slog.Logger
}

// New validates cfg and performs key agreement with the remote key.
// Invalid configuration fails with interfaces.ErrConfiguration.
func New(cfg Config) (*Contract, error) {
	switch {
	case cfg.ContractID == (interfaces.ContractID{}):
		return nil, fmt.Errorf("%w: missing contract id", interfaces.ErrConfiguration)
	case cfg.Operations == nil:
		return nil, fmt.Errorf("%w: missing operation table", interfaces.ErrConfiguration)
	case cfg.Transport == nil:
		return nil, fmt.Errorf("%w: missing query transport", interfaces.ErrConfiguration)
	case cfg.Signer == nil:
		return nil, fmt.Errorf("%w: missing signer", interfaces.ErrConfiguration)
	}
	if _, err := cryptoutils.ParseCipherSuite(cfg.Suite.String()); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrConfiguration, err)
	}

	key, err := cryptoutils.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	secret, err := cryptoutils.DeriveSharedSecret(key.Secret, cfg.RemotePubkey)
	if err != nil {
		return nil, fmt.Errorf("%w: remote key: %w", interfaces.ErrConfiguration, err)
	}

	log := cfg.Log
	if log == nil {
		log = common.DiscardLogger()
	}

	return &Contract{
		id:        cfg.ContractID,
		ops:       cfg.Operations,
		transport: cfg.Transport,
		signer:    cfg.Signer,
		suite:     cfg.Suite,
		key:       key,
		secret:    secret,
		log:       log.With("contract", cfg.ContractID.String()),
	}, nil
}

func (c *Contract) ID() interfaces.ContractID { return c.id }

// PublicKey is the handle's X25519 public key, carried in every envelope.
func (c *Contract) PublicKey() []byte {
	pub := c.key.Public
	return pub[:]
}

func (c *Contract) Operations() *metadata.OperationTable { return c.ops }

// Query runs one confidential query of the operation ref with already
// encoded arguments. A contract-level failure is returned in
// QueryResult.Err with a nil error.
func (c *Contract) Query(ctx context.Context, ref metadata.OperationRef, args []byte) (*protocol.QueryResult, error) {
	return c.QueryWith(ctx, ref, args, CallOptions{})
}

// Call is Query with the contract error, if any, returned as the error.
func (c *Contract) Call(ctx context.Context, ref metadata.OperationRef, args []byte) ([]byte, error) {
	result, err := c.Query(ctx, ref, args)
	if err != nil {
		return nil, err
	}
	return result.Unwrap()
}

// QueryWith is Query with explicit value fields.
func (c *Contract) QueryWith(ctx context.Context, ref metadata.OperationRef, args []byte, opts CallOptions) (*protocol.QueryResult, error) {
	op, err := c.Bind(ref)
	if err != nil {
		return nil, err
	}
	return c.QueryOperation(ctx, op, args, opts)
}

// Bind resolves ref against the contract's operation table. An unknown
// label or index fails with interfaces.ErrOperationNotFound.
func (c *Contract) Bind(ref metadata.OperationRef) (metadata.Operation, error) {
	return c.ops.Resolve(ref)
}

// QueryOperation queries an operation already returned by Bind.
func (c *Contract) QueryOperation(ctx context.Context, op metadata.Operation, args []byte, opts CallOptions) (*protocol.QueryResult, error) {
	start := time.Now()
	result, err := c.roundTrip(ctx, op, args, opts)
	outcome := outcomeOf(result, err)
	metrics.QueryCompleted(outcome, time.Since(start))

	if err != nil {
		c.log.Debug("query failed", "operation", op.Name, "outcome", outcome, "err", err)
		return nil, err
	}
	c.log.Debug("query completed", "operation", op.Name, "outcome", outcome, "duration", time.Since(start))
	return result, nil
}

func (c *Contract) roundTrip(ctx context.Context, op metadata.Operation, args []byte, opts CallOptions) (*protocol.QueryResult, error) {
	nonce, err := cryptoutils.NewRequestNonce()
	if err != nil {
		return nil, err
	}

	query := &protocol.Query{
		Head:       protocol.QueryHead{ContractID: c.id, Nonce: nonce},
		Origin:     c.signer.PublicKey(),
		Payload:    op.EncodeCall(args),
		Deposit:    orZero(opts.Deposit),
		Transfer:   orZero(opts.Transfer),
		Estimating: opts.Estimating,
	}
	plaintext, err := query.Encode()
	if err != nil {
		return nil, err
	}

	env, err := protocol.SealEnvelope(c.suite, c.key, c.secret, plaintext)
	if err != nil {
		return nil, err
	}
	encodedEnv, err := env.Encode()
	if err != nil {
		return nil, err
	}
	req, err := protocol.SignRequest(encodedEnv, c.signer)
	if err != nil {
		return nil, err
	}
	raw, err := req.Encode()
	if err != nil {
		return nil, err
	}

	resp, err := c.transport.ContractQuery(ctx, raw)
	if err != nil {
		return nil, err
	}

	return protocol.ResponseDecoder{Suite: c.suite}.Decode(resp, c.secret, nonce)
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return new(big.Int)
	}
	return v
}

func outcomeOf(result *protocol.QueryResult, err error) string {
	switch {
	case err == nil && result.Err != nil:
		return metrics.OutcomeContractError
	case err == nil:
		return metrics.OutcomeOk
	case errors.Is(err, interfaces.ErrTransport):
		return metrics.OutcomeTransport
	case errors.Is(err, interfaces.ErrDecryption):
		return metrics.OutcomeDecryption
	case errors.Is(err, interfaces.ErrProtocolDecode):
		return metrics.OutcomeDecode
	case errors.Is(err, interfaces.ErrInvalidSignature), errors.Is(err, interfaces.ErrUnsupportedSignatureType):
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeOther
	}
}
