package queryhandler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruteri/tee-confidential-query/api"
	"github.com/ruteri/tee-confidential-query/common"
	"github.com/ruteri/tee-confidential-query/cryptoutils"
	"github.com/ruteri/tee-confidential-query/interfaces"
)

// Worker is the enclave side served over HTTP. enclave.Runtime implements it.
type Worker interface {
	interfaces.QueryTransport
	WorkerPublicKey() []byte
	Suite() cryptoutils.CipherSuite
	Contracts() int
}

// Handler serves the worker routes of the query protocol.
type Handler struct {
	worker Worker
	log    *slog.Logger
}

func NewHandler(worker Worker, log *slog.Logger) *Handler {
	if log == nil {
		log = common.DiscardLogger()
	}
	return &Handler{
		worker: worker,
		log:    log,
	}
}

// RegisterRoutes configures the HTTP router with the worker endpoints:
//   - POST /prpc/ContractQuery
//   - GET /prpc/GetInfo
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post(api.ContractQueryPath, h.HandleContractQuery)
	r.Get(api.GetInfoPath, h.HandleGetInfo)
}

// HandleContractQuery passes an encoded SignedRequest to the worker and
// returns the encoded response envelope.
//
// Status codes:
//   - 200 OK: response envelope in the body, including contract-level errors
//   - 400 Bad Request: request could not be decoded or decrypted
//   - 403 Forbidden: signature or origin rejected
//   - 413 Request Entity Too Large: body exceeds api.MaxBodySize
//   - 500 Internal Server Error: any other failure
func (h *Handler) HandleContractQuery(w http.ResponseWriter, r *http.Request) {
	log := h.log.With("requestID", r.Header.Get(api.RequestIDHeader))

	body, err := io.ReadAll(io.LimitReader(r.Body, api.MaxBodySize+1))
	if err != nil {
		log.Error("Failed to read request body", "err", err)
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}
	if len(body) > api.MaxBodySize {
		http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
		return
	}

	resp, err := h.worker.ContractQuery(r.Context(), body)
	if err != nil {
		status := statusFor(err)
		log.Warn("Contract query rejected", "err", err, "status", status)
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", api.ContentTypeBinary)
	if _, err := w.Write(resp); err != nil {
		log.Error("Failed to write response", "err", err)
	}
}

// HandleGetInfo returns the worker's public key and cipher suite as JSON.
func (h *Handler) HandleGetInfo(w http.ResponseWriter, r *http.Request) {
	response := api.InfoResponse{
		WorkerPubkey: h.worker.WorkerPublicKey(),
		CipherSuite:  h.worker.Suite().String(),
		Contracts:    h.worker.Contracts(),
		Version:      common.Version,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.log.Error("Failed to encode response", "err", err)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrInvalidSignature),
		errors.Is(err, interfaces.ErrUnsupportedSignatureType):
		return http.StatusForbidden
	case errors.Is(err, interfaces.ErrProtocolDecode),
		errors.Is(err, interfaces.ErrDecryption):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
