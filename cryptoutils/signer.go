package cryptoutils

import (
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/tee-confidential-query/interfaces"
)

// SignatureType tags the scheme a request signature was produced with.
type SignatureType uint8

const (
	SignatureEd25519 SignatureType = iota
	SignatureSr25519
	SignatureEcdsaSecp256k1
)

func (t SignatureType) String() string {
	switch t {
	case SignatureEd25519:
		return "ed25519"
	case SignatureSr25519:
		return "sr25519"
	case SignatureEcdsaSecp256k1:
		return "ecdsa-secp256k1"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// Signer is the signing capability a query is authorized with. PublicKey is
// the identity the enclave sees as the query origin.
type Signer interface {
	SignatureType() SignatureType
	PublicKey() []byte
	Sign(message []byte) ([]byte, error)
}

// Ed25519Signer signs the raw message bytes with an Ed25519 key.
type Ed25519Signer struct {
	key ed25519.PrivateKey
}

// NewEd25519Signer wraps a 32-byte seed or a 64-byte private key.
func NewEd25519Signer(key []byte) (*Ed25519Signer, error) {
	switch len(key) {
	case ed25519.SeedSize:
		return &Ed25519Signer{key: ed25519.NewKeyFromSeed(key)}, nil
	case ed25519.PrivateKeySize:
		return &Ed25519Signer{key: ed25519.PrivateKey(append([]byte(nil), key...))}, nil
	default:
		return nil, fmt.Errorf("invalid ed25519 key length %d", len(key))
	}
}

// GenerateEd25519Signer creates a signer with a fresh random key.
func GenerateEd25519Signer() (*Ed25519Signer, error) {
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ed25519 key: %w", err)
	}
	return &Ed25519Signer{key: priv}, nil
}

func (s *Ed25519Signer) SignatureType() SignatureType { return SignatureEd25519 }

func (s *Ed25519Signer) PublicKey() []byte {
	return s.key.Public().(ed25519.PublicKey)
}

func (s *Ed25519Signer) Sign(message []byte) ([]byte, error) {
	return ed25519.Sign(s.key, message), nil
}

// Seed returns the 32-byte seed the signer was derived from.
func (s *Ed25519Signer) Seed() []byte {
	return s.key.Seed()
}

// EcdsaSigner signs keccak256(message) with a secp256k1 key, the digest the
// scheme requires. The identity is the 33-byte compressed public key.
type EcdsaSigner struct {
	key *ecdsa.PrivateKey
}

// NewEcdsaSigner loads a hex or raw 32-byte secp256k1 private key.
func NewEcdsaSigner(key []byte) (*EcdsaSigner, error) {
	priv, err := crypto.ToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("invalid secp256k1 key: %w", err)
	}
	return &EcdsaSigner{key: priv}, nil
}

// NewEcdsaSignerFromHex loads a hex-encoded secp256k1 private key.
func NewEcdsaSignerFromHex(key string) (*EcdsaSigner, error) {
	priv, err := crypto.HexToECDSA(key)
	if err != nil {
		return nil, fmt.Errorf("invalid secp256k1 key: %w", err)
	}
	return &EcdsaSigner{key: priv}, nil
}

// GenerateEcdsaSigner creates a signer with a fresh random key.
func GenerateEcdsaSigner() (*EcdsaSigner, error) {
	priv, err := crypto.GenerateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secp256k1 key: %w", err)
	}
	return &EcdsaSigner{key: priv}, nil
}

func (s *EcdsaSigner) SignatureType() SignatureType { return SignatureEcdsaSecp256k1 }

func (s *EcdsaSigner) PublicKey() []byte {
	return crypto.CompressPubkey(&s.key.PublicKey)
}

func (s *EcdsaSigner) Sign(message []byte) ([]byte, error) {
	return crypto.Sign(crypto.Keccak256(message), s.key)
}

// PrivateKeyHex returns the hex-encoded private scalar.
func (s *EcdsaSigner) PrivateKeyHex() string {
	return hex.EncodeToString(crypto.FromECDSA(s.key))
}

// VerifySignature checks sig over message for the identity signedBy under
// the scheme named by sigType.
func VerifySignature(sigType SignatureType, signedBy, message, sig []byte) error {
	switch sigType {
	case SignatureEd25519:
		if len(signedBy) != ed25519.PublicKeySize {
			return fmt.Errorf("%w: bad ed25519 public key length %d", interfaces.ErrInvalidSignature, len(signedBy))
		}
		if !ed25519.Verify(ed25519.PublicKey(signedBy), message, sig) {
			return interfaces.ErrInvalidSignature
		}
		return nil
	case SignatureEcdsaSecp256k1:
		if len(sig) != crypto.SignatureLength {
			return fmt.Errorf("%w: bad secp256k1 signature length %d", interfaces.ErrInvalidSignature, len(sig))
		}
		if !crypto.VerifySignature(signedBy, crypto.Keccak256(message), sig[:crypto.RecoveryIDOffset]) {
			return interfaces.ErrInvalidSignature
		}
		return nil
	case SignatureSr25519:
		return fmt.Errorf("%w: %s", interfaces.ErrUnsupportedSignatureType, sigType)
	default:
		return fmt.Errorf("%w: %s", interfaces.ErrUnsupportedSignatureType, sigType)
	}
}
