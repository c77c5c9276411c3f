package interfaces

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration is returned synchronously when a handle or watcher is
	// constructed with missing or malformed collaborators.
	ErrConfiguration = errors.New("invalid configuration")

	// ErrIdentityNotFound is returned when a finalized deployment transaction
	// carries no Instantiating event.
	ErrIdentityNotFound = errors.New("contract identity not found in transaction events")

	// ErrTimeout is returned when the instantiation watcher exceeds its deadline.
	ErrTimeout = errors.New("timed out waiting for contract instantiation")

	// ErrDecryption is returned when authenticated decryption fails. No
	// plaintext is ever returned alongside it.
	ErrDecryption = errors.New("decryption failed")

	// ErrProtocolDecode is returned when a response does not match the wire schema.
	ErrProtocolDecode = errors.New("malformed protocol message")

	// ErrTransport is returned when the query round trip itself fails.
	ErrTransport = errors.New("query transport failed")

	// ErrOperationNotFound is returned when a message name or index is not
	// present in the contract metadata.
	ErrOperationNotFound = errors.New("operation not found in contract metadata")

	// ErrUnsupportedSignatureType is returned for signature schemes that are
	// recognized on the wire but cannot be produced or checked locally.
	ErrUnsupportedSignatureType = errors.New("unsupported signature type")

	// ErrInvalidSignature is returned when a request signature does not verify.
	ErrInvalidSignature = errors.New("invalid request signature")
)

// QueryError is a failure reported by the contract itself. It is a successful
// round trip at the protocol level.
type QueryError struct {
	Code    uint32
	Message string
	Data    []byte
}

func (e *QueryError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("contract query error (code %d)", e.Code)
	}
	return fmt.Sprintf("contract query error (code %d): %s", e.Code, e.Message)
}

// AsQueryError reports whether err carries a contract-side failure.
func AsQueryError(err error) (*QueryError, bool) {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}
