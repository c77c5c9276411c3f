// Package cryptoutils provides the cryptographic primitives of the confidential
// query protocol.
//
// # Key Agreement
//
// GenerateKeyPair creates a clamped X25519 key pair. DeriveSharedSecret runs
// X25519 against the remote worker's public key and expands the result with
// HKDF-SHA256, so both parties arrive at the same SharedSecret. SharedSecret
// redacts itself in fmt and slog output.
//
// # Authenticated Encryption
//
// CipherSuite selects the AEAD used for envelopes:
//
//   - AES256GCM (default, spoken by production workers)
//   - ChaCha20Poly1305
//
// Keys are 32 bytes and nonces 12 bytes. Lengths are checked before any
// cipher is constructed. A failed authentication check yields
// interfaces.ErrDecryption and never partial plaintext.
//
// NewNonce draws every envelope nonce from crypto/rand. A nonce must not be
// reused under the same SharedSecret.
//
// # Request Signing
//
// Signer is the capability a query is authorized with:
//
//   - Ed25519Signer signs the raw encoded envelope
//   - EcdsaSigner signs keccak256 of the encoded envelope with secp256k1
//
// Sr25519 is recognized on the wire but cannot be produced or verified here.
//
// # Key Files
//
// SealKeyFile and OpenKeyFile protect signer key material at rest with an
// Argon2id-derived AES-GCM key. The format is:
//
//	[magic "PQK1" (4 bytes)][salt (16 bytes)][nonce (12 bytes)][ciphertext]
package cryptoutils
