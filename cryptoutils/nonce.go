package cryptoutils

import (
	"crypto/rand"
	"fmt"
	"io"
)

// NewNonce draws a fresh 12-byte AEAD nonce from the system CSPRNG.
func NewNonce() ([NonceSize]byte, error) {
	var nonce [NonceSize]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nonce, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return nonce, nil
}

// NewRequestNonce draws the 32-byte nonce that binds a response to its query.
func NewRequestNonce() ([32]byte, error) {
	var nonce [32]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nonce, fmt.Errorf("failed to generate request nonce: %w", err)
	}
	return nonce, nil
}
