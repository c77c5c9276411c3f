package protocol

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ruteri/tee-confidential-query/cryptoutils"
	"github.com/ruteri/tee-confidential-query/interfaces"
)

// EnvelopeVersion prefixes every encoded envelope.
const EnvelopeVersion byte = 0x01

// Envelope is the encrypted wrapper around one query or response. PublicKey
// is the sender's X25519 public key the receiver needs to derive the
// SharedSecret.
type Envelope struct {
	Nonce      [cryptoutils.NonceSize]byte
	PublicKey  []byte
	Ciphertext []byte
}

// BuildEnvelope encrypts plaintext under secret with a fresh nonce using the
// default cipher suite.
func BuildEnvelope(local cryptoutils.KeyPair, secret cryptoutils.SharedSecret, plaintext []byte) (*Envelope, error) {
	return SealEnvelope(cryptoutils.AES256GCM, local, secret, plaintext)
}

// SealEnvelope encrypts plaintext under secret with a fresh nonce.
func SealEnvelope(suite cryptoutils.CipherSuite, local cryptoutils.KeyPair, secret cryptoutils.SharedSecret, plaintext []byte) (*Envelope, error) {
	nonce, err := cryptoutils.NewNonce()
	if err != nil {
		return nil, err
	}

	ciphertext, err := suite.Encrypt(plaintext, secret.Bytes(), nonce[:])
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt envelope: %w", err)
	}

	return &Envelope{
		Nonce:      nonce,
		PublicKey:  append([]byte(nil), local.Public[:]...),
		Ciphertext: ciphertext,
	}, nil
}

// Open decrypts the envelope with the nonce it carries.
func (e *Envelope) Open(suite cryptoutils.CipherSuite, secret cryptoutils.SharedSecret) ([]byte, error) {
	return suite.Decrypt(e.Ciphertext, secret.Bytes(), e.Nonce[:])
}

// Encode serializes the envelope as the version byte followed by
// RLP([nonce, publicKey, ciphertext]).
func (e *Envelope) Encode() ([]byte, error) {
	body, err := rlp.EncodeToBytes(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode envelope: %w", err)
	}
	return append([]byte{EnvelopeVersion}, body...), nil
}

// DecodeEnvelope parses bytes produced by Envelope.Encode.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty envelope", interfaces.ErrProtocolDecode)
	}
	if data[0] != EnvelopeVersion {
		return nil, fmt.Errorf("%w: unsupported envelope version %#x", interfaces.ErrProtocolDecode, data[0])
	}

	var env Envelope
	if err := rlp.DecodeBytes(data[1:], &env); err != nil {
		return nil, fmt.Errorf("%w: envelope: %v", interfaces.ErrProtocolDecode, err)
	}
	if len(env.PublicKey) != 32 {
		return nil, fmt.Errorf("%w: envelope public key must be 32 bytes, got %d", interfaces.ErrProtocolDecode, len(env.PublicKey))
	}
	return &env, nil
}
