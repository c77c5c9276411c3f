package cryptoutils

import (
	"crypto/aes"
	"crypto/cipher"
	"errors"
	"fmt"

	"github.com/ruteri/tee-confidential-query/interfaces"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	// KeySize is the symmetric key length accepted by every cipher suite.
	KeySize = 32
	// NonceSize is the AEAD nonce length carried in every envelope.
	NonceSize = 12
)

var (
	ErrInvalidKeyLength   = errors.New("invalid key length: must be 32 bytes")
	ErrInvalidNonceLength = errors.New("invalid nonce length: must be 12 bytes")
	ErrUnknownCipherSuite = errors.New("unknown cipher suite")
)

// CipherSuite selects the AEAD construction used for envelopes. Both sides
// of a query must agree on the suite out of band.
type CipherSuite uint8

const (
	// AES256GCM is the suite spoken by production workers.
	AES256GCM CipherSuite = iota
	ChaCha20Poly1305
)

func (s CipherSuite) String() string {
	switch s {
	case AES256GCM:
		return "aes-256-gcm"
	case ChaCha20Poly1305:
		return "chacha20-poly1305"
	default:
		return "unknown"
	}
}

// ParseCipherSuite maps a suite name as printed by String back to the suite.
func ParseCipherSuite(name string) (CipherSuite, error) {
	switch name {
	case "", "aes-256-gcm":
		return AES256GCM, nil
	case "chacha20-poly1305":
		return ChaCha20Poly1305, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownCipherSuite, name)
	}
}

func (s CipherSuite) aead(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeyLength
	}

	switch s {
	case AES256GCM:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create cipher: %w", err)
		}
		return cipher.NewGCM(block)
	case ChaCha20Poly1305:
		return chacha20poly1305.New(key)
	default:
		return nil, ErrUnknownCipherSuite
	}
}

// Encrypt seals plaintext under key and nonce. The output is ciphertext with
// the 16-byte authentication tag appended. The same inputs always produce the
// same output, so the caller must never reuse a nonce under one key.
func (s CipherSuite) Encrypt(plaintext, key, nonce []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonceLength
	}
	aead, err := s.aead(key)
	if err != nil {
		return nil, err
	}
	return aead.Seal(nil, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext produced by Encrypt. Any authentication failure is
// reported as interfaces.ErrDecryption and no plaintext is returned.
func (s CipherSuite) Decrypt(ciphertext, key, nonce []byte) ([]byte, error) {
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonceLength
	}
	aead, err := s.aead(key)
	if err != nil {
		return nil, err
	}
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", interfaces.ErrDecryption, s)
	}
	return plaintext, nil
}

// Encrypt seals plaintext with the default AES-256-GCM suite.
func Encrypt(plaintext, key, nonce []byte) ([]byte, error) {
	return AES256GCM.Encrypt(plaintext, key, nonce)
}

// Decrypt opens ciphertext with the default AES-256-GCM suite.
func Decrypt(ciphertext, key, nonce []byte) ([]byte, error) {
	return AES256GCM.Decrypt(ciphertext, key, nonce)
}
