package enclave

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ruteri/tee-confidential-query/cryptoutils"
	"github.com/ruteri/tee-confidential-query/interfaces"
	"github.com/ruteri/tee-confidential-query/metrics"
	"github.com/ruteri/tee-confidential-query/protocol"
)

// Error codes reported to clients in sealed error responses.
const (
	CodeInternal uint32 = iota + 1
	CodeContractNotFound
	CodeUnknownSelector
	CodeMutatingQuery
	CodeBadArguments
)

// Handler executes one query against a contract. Returning an
// *interfaces.QueryError reports a contract-level error to the caller; any
// other error is reported as CodeInternal.
type Handler interface {
	Query(ctx context.Context, origin []byte, payload []byte) ([]byte, error)
}

type HandlerFunc func(ctx context.Context, origin []byte, payload []byte) ([]byte, error)

func (f HandlerFunc) Query(ctx context.Context, origin []byte, payload []byte) ([]byte, error) {
	return f(ctx, origin, payload)
}

// Config configures a Runtime. A zero WorkerKey is replaced with a fresh key.
type Config struct {
	WorkerKey cryptoutils.KeyPair
	Suite     cryptoutils.CipherSuite
	Log       *slog.Logger
}

// Runtime is an in-process stand-in for a confidential worker. It owns the
// worker key pair, opens signed query envelopes addressed to it and answers
// them with sealed responses.
//
// Runtime implements interfaces.QueryTransport, so a client can talk to it
// without any network in between.
type Runtime struct {
	key   cryptoutils.KeyPair
	suite cryptoutils.CipherSuite
	log   *slog.Logger

	mu        sync.RWMutex
	contracts map[interfaces.ContractID]Handler
}

var _ interfaces.QueryTransport = (*Runtime)(nil)

func NewRuntime(cfg Config) (*Runtime, error) {
	key := cfg.WorkerKey
	if key == (cryptoutils.KeyPair{}) {
		var err error
		if key, err = cryptoutils.GenerateKeyPair(); err != nil {
			return nil, fmt.Errorf("failed to generate worker key: %w", err)
		}
	}
	if _, err := cryptoutils.ParseCipherSuite(cfg.Suite.String()); err != nil {
		return nil, fmt.Errorf("%w: %v", interfaces.ErrConfiguration, err)
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	return &Runtime{
		key:       key,
		suite:     cfg.Suite,
		log:       log.With("component", "enclave"),
		contracts: make(map[interfaces.ContractID]Handler),
	}, nil
}

// WorkerPublicKey is the X25519 key clients encrypt queries to.
func (r *Runtime) WorkerPublicKey() []byte {
	pub := r.key.Public
	return pub[:]
}

func (r *Runtime) Suite() cryptoutils.CipherSuite {
	return r.suite
}

// Register installs or replaces the handler for a contract.
func (r *Runtime) Register(id interfaces.ContractID, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.contracts[id] = h
	r.log.Info("contract registered", "contract", id.String())
}

func (r *Runtime) Unregister(id interfaces.ContractID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.contracts, id)
}

// Contracts returns the number of registered contracts.
func (r *Runtime) Contracts() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.contracts)
}

// InstantiateHook returns a callback that registers a handler built by
// newHandler for every instantiated contract. It fits the OnInstantiated
// hook of the in-memory registry.
func (r *Runtime) InstantiateHook(newHandler func(interfaces.InstantiateRequest) (Handler, error)) func(interfaces.ContractID, interfaces.InstantiateRequest) {
	return func(id interfaces.ContractID, req interfaces.InstantiateRequest) {
		h, err := newHandler(req)
		if err != nil {
			r.log.Warn("contract constructor failed", "contract", id.String(), "err", err)
			return
		}
		r.Register(id, h)
	}
}

// ContractQuery handles one encoded SignedRequest.
//
// Requests that cannot be authenticated or opened are rejected with an error
// and no response: interfaces.ErrProtocolDecode, interfaces.ErrInvalidSignature,
// interfaces.ErrUnsupportedSignatureType or interfaces.ErrDecryption.
// Everything after that, including unknown contracts, is answered with a
// sealed response.
func (r *Runtime) ContractQuery(ctx context.Context, signedRequest []byte) ([]byte, error) {
	resp, outcome, err := r.handle(ctx, signedRequest)
	metrics.EnclaveHandled(outcome)
	if err != nil {
		r.log.Debug("query rejected", "outcome", outcome, "err", err)
	}
	return resp, err
}

func (r *Runtime) handle(ctx context.Context, signedRequest []byte) ([]byte, string, error) {
	req, err := protocol.DecodeSignedRequest(signedRequest)
	if err != nil {
		return nil, metrics.OutcomeDecode, err
	}
	if err := protocol.VerifySignedRequest(req); err != nil {
		return nil, metrics.OutcomeRejected, err
	}

	env, err := protocol.DecodeEnvelope(req.EncodedEnvelope)
	if err != nil {
		return nil, metrics.OutcomeDecode, err
	}
	secret, err := cryptoutils.DeriveSharedSecret(r.key.Secret, env.PublicKey)
	if err != nil {
		return nil, metrics.OutcomeDecode, fmt.Errorf("%w: %w", interfaces.ErrProtocolDecode, err)
	}
	plaintext, err := env.Open(r.suite, secret)
	if err != nil {
		return nil, metrics.OutcomeDecryption, err
	}
	query, err := protocol.DecodeQuery(plaintext)
	if err != nil {
		return nil, metrics.OutcomeDecode, err
	}
	if string(query.Origin) != string(req.Signature.SignedBy) {
		return nil, metrics.OutcomeRejected, fmt.Errorf("%w: query origin does not match signer", interfaces.ErrInvalidSignature)
	}

	result := r.dispatch(ctx, query)
	sealed, err := protocol.SealResponse(r.suite, r.key, secret, result)
	if err != nil {
		return nil, metrics.OutcomeOther, err
	}

	outcome := metrics.OutcomeOk
	if result.Status == protocol.StatusErr {
		outcome = metrics.OutcomeContractError
	}
	return sealed, outcome, nil
}

func (r *Runtime) dispatch(ctx context.Context, query *protocol.Query) *protocol.Response {
	resp := &protocol.Response{Nonce: query.Head.Nonce}

	r.mu.RLock()
	h, ok := r.contracts[query.Head.ContractID]
	r.mu.RUnlock()
	if !ok {
		return withError(resp, &interfaces.QueryError{
			Code:    CodeContractNotFound,
			Message: fmt.Sprintf("contract %s not found", query.Head.ContractID),
		})
	}

	output, err := h.Query(ctx, query.Origin, query.Payload)
	if err != nil {
		qerr, ok := interfaces.AsQueryError(err)
		if !ok {
			qerr = &interfaces.QueryError{Code: CodeInternal, Message: err.Error()}
		}
		return withError(resp, qerr)
	}

	resp.Status = protocol.StatusOk
	resp.Output = output
	return resp
}

func withError(resp *protocol.Response, qerr *interfaces.QueryError) *protocol.Response {
	resp.Status = protocol.StatusErr
	resp.ErrorCode = qerr.Code
	resp.ErrorMessage = qerr.Message
	resp.Output = qerr.Data
	return resp
}

// IsRejection reports whether err means the request never reached a contract.
func IsRejection(err error) bool {
	return errors.Is(err, interfaces.ErrInvalidSignature) ||
		errors.Is(err, interfaces.ErrUnsupportedSignatureType)
}
