package cryptoutils

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

var sharedSecretInfo = []byte("pink-query-v1")

var ErrInvalidPublicKey = errors.New("invalid x25519 public key")

// KeyPair is an X25519 key pair. Secret never leaves the process.
type KeyPair struct {
	Secret [32]byte
	Public [32]byte
}

// SharedSecret is the symmetric key both sides derive for one handle. It
// redacts itself when formatted or logged.
type SharedSecret [32]byte

func (s SharedSecret) String() string { return "[redacted]" }

func (s SharedSecret) GoString() string { return "cryptoutils.SharedSecret{[redacted]}" }

func (s SharedSecret) LogValue() slog.Value { return slog.StringValue("[redacted]") }

// Bytes exposes the key material for cipher operations.
func (s *SharedSecret) Bytes() []byte { return s[:] }

// GenerateKeyPair returns a fresh X25519 key pair.
// The secret scalar is clamped per RFC 7748.
func GenerateKeyPair() (KeyPair, error) {
	return generateKeyPair(rand.Reader)
}

func generateKeyPair(r io.Reader) (KeyPair, error) {
	var kp KeyPair
	if _, err := io.ReadFull(r, kp.Secret[:]); err != nil {
		return KeyPair{}, fmt.Errorf("failed to read key material: %w", err)
	}
	clamp(&kp.Secret)

	pub, err := curve25519.X25519(kp.Secret[:], curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to derive public key: %w", err)
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// KeyPairFromSecret rebuilds a key pair from a stored secret scalar.
func KeyPairFromSecret(secret []byte) (KeyPair, error) {
	if len(secret) != 32 {
		return KeyPair{}, ErrInvalidKeyLength
	}
	var kp KeyPair
	copy(kp.Secret[:], secret)
	clamp(&kp.Secret)

	pub, err := curve25519.X25519(kp.Secret[:], curve25519.Basepoint)
	if err != nil {
		return KeyPair{}, fmt.Errorf("failed to derive public key: %w", err)
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// PublicKeyHex returns the hex encoding of the public half.
func (kp KeyPair) PublicKeyHex() string {
	return hex.EncodeToString(kp.Public[:])
}

// DeriveSharedSecret computes X25519(localSecret, remotePublic) and expands
// it with HKDF-SHA256. Swapping the roles of the two parties yields the same
// secret. Low-order remote points are rejected.
func DeriveSharedSecret(localSecret [32]byte, remotePublic []byte) (SharedSecret, error) {
	if len(remotePublic) != 32 {
		return SharedSecret{}, fmt.Errorf("%w: got %d bytes", ErrInvalidPublicKey, len(remotePublic))
	}

	dh, err := curve25519.X25519(localSecret[:], remotePublic)
	if err != nil {
		return SharedSecret{}, fmt.Errorf("%w: %v", ErrInvalidPublicKey, err)
	}
	defer zero(dh)

	var out SharedSecret
	kdf := hkdf.New(sha256.New, dh, nil, sharedSecretInfo)
	if _, err := io.ReadFull(kdf, out[:]); err != nil {
		return SharedSecret{}, fmt.Errorf("failed to expand shared secret: %w", err)
	}
	return out, nil
}

func clamp(k *[32]byte) {
	k[0] &= 248
	k[31] &= 127
	k[31] |= 64
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
