package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ruteri/tee-confidential-query/api"
	"github.com/ruteri/tee-confidential-query/interfaces"
)

const defaultTimeout = 30 * time.Second

// HTTPTransport implements interfaces.QueryTransport by POSTing the encoded
// SignedRequest to a worker's ContractQuery route. It performs exactly one
// round trip per call.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
	log     *slog.Logger
}

// NewHTTPTransport creates a transport for the worker at baseURL
// (e.g. "http://127.0.0.1:8000"). A nil client uses a client with a 30s timeout.
func NewHTTPTransport(baseURL string, client *http.Client, log *slog.Logger) *HTTPTransport {
	if client == nil {
		client = &http.Client{Timeout: defaultTimeout}
	}
	if log == nil {
		log = slog.Default()
	}
	return &HTTPTransport{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  client,
		log:     log,
	}
}

// ContractQuery sends one signed request and returns the raw response body.
// Every failure is wrapped in interfaces.ErrTransport.
func (t *HTTPTransport) ContractQuery(ctx context.Context, signedRequest []byte) ([]byte, error) {
	requestID := uuid.NewString()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+api.ContractQueryPath, bytes.NewReader(signedRequest))
	if err != nil {
		return nil, fmt.Errorf("%w: could not initialize request: %v", interfaces.ErrTransport, err)
	}
	req.Header.Set("Content-Type", api.ContentTypeBinary)
	req.Header.Set(api.RequestIDHeader, requestID)

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: could not reach worker: %w", interfaces.ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, api.MaxBodySize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: could not read response: %v", interfaces.ErrTransport, err)
	}
	if len(body) > api.MaxBodySize {
		return nil, fmt.Errorf("%w: response exceeds %d bytes", interfaces.ErrTransport, api.MaxBodySize)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: worker returned error %d: %s", interfaces.ErrTransport, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	t.log.Debug("contract query round trip",
		slog.String("requestID", requestID),
		slog.Int("requestBytes", len(signedRequest)),
		slog.Int("responseBytes", len(body)),
		slog.Duration("duration", time.Since(start)))

	return body, nil
}
