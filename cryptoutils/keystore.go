package cryptoutils

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/tee-confidential-query/interfaces"
	"golang.org/x/crypto/argon2"
)

var keyFileMagic = []byte("PQK1")

const keyFileSaltSize = 16

var ErrMalformedKeyFile = errors.New("malformed key file")

// SealKeyFile encrypts signing key material under a passphrase so it can be
// written to disk by the CLI.
//
// The sealed format is:
//
//	[magic "PQK1" (4 bytes)][salt (16 bytes)][nonce (12 bytes)][ciphertext]
//
// The file key is derived with Argon2id from the passphrase and the salt.
func SealKeyFile(passphrase, secret []byte) ([]byte, error) {
	salt := make([]byte, keyFileSaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	nonce, err := NewNonce()
	if err != nil {
		return nil, err
	}

	key := deriveFileKey(passphrase, salt)
	defer zero(key)

	ciphertext, err := Encrypt(secret, key, nonce[:])
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(keyFileMagic)+len(salt)+len(nonce)+len(ciphertext))
	out = append(out, keyFileMagic...)
	out = append(out, salt...)
	out = append(out, nonce[:]...)
	out = append(out, ciphertext...)
	return out, nil
}

// OpenKeyFile reverses SealKeyFile. A wrong passphrase surfaces as
// interfaces.ErrDecryption.
func OpenKeyFile(passphrase, sealed []byte) ([]byte, error) {
	header := len(keyFileMagic) + keyFileSaltSize + NonceSize
	if len(sealed) < header || !bytes.Equal(sealed[:len(keyFileMagic)], keyFileMagic) {
		return nil, ErrMalformedKeyFile
	}

	salt := sealed[len(keyFileMagic) : len(keyFileMagic)+keyFileSaltSize]
	nonce := sealed[len(keyFileMagic)+keyFileSaltSize : header]

	key := deriveFileKey(passphrase, salt)
	defer zero(key)

	return Decrypt(sealed[header:], key, nonce)
}

// SealSigner seals the signer's scheme tag and private key with SealKeyFile.
func SealSigner(passphrase []byte, s Signer) ([]byte, error) {
	var raw []byte
	switch signer := s.(type) {
	case *Ed25519Signer:
		raw = signer.Seed()
	case *EcdsaSigner:
		raw = crypto.FromECDSA(signer.key)
	default:
		return nil, fmt.Errorf("%w: cannot seal %s keys", interfaces.ErrUnsupportedSignatureType, s.SignatureType())
	}
	defer zero(raw)

	material := append([]byte{byte(s.SignatureType())}, raw...)
	defer zero(material)
	return SealKeyFile(passphrase, material)
}

// OpenSigner restores a signer sealed by SealSigner.
func OpenSigner(passphrase, sealed []byte) (Signer, error) {
	material, err := OpenKeyFile(passphrase, sealed)
	if err != nil {
		return nil, err
	}
	defer zero(material)
	if len(material) < 2 {
		return nil, ErrMalformedKeyFile
	}

	switch SignatureType(material[0]) {
	case SignatureEd25519:
		return NewEd25519Signer(material[1:])
	case SignatureEcdsaSecp256k1:
		return NewEcdsaSigner(material[1:])
	default:
		return nil, fmt.Errorf("%w: %s", interfaces.ErrUnsupportedSignatureType, SignatureType(material[0]))
	}
}

func deriveFileKey(passphrase, salt []byte) []byte {
	// time=1, memory=64MiB, threads=4
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}
