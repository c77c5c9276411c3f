package cryptoutils

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/ruteri/tee-confidential-query/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomBytes(t *testing.T, n int) []byte {
	t.Helper()
	b := make([]byte, n)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return b
}

func TestCipherRoundTrip(t *testing.T) {
	key := randomBytes(t, KeySize)
	nonce := randomBytes(t, NonceSize)

	testCases := []struct {
		name string
		data []byte
	}{
		{name: "Empty data", data: []byte{}},
		{name: "Simple string", data: []byte("This is a secret message")},
		{name: "Binary data", data: []byte{0x00, 0x01, 0x02, 0x03, 0xFF, 0xFE, 0xFD}},
		{name: "Long data", data: make([]byte, 64*1024)},
	}

	for _, suite := range []CipherSuite{AES256GCM, ChaCha20Poly1305} {
		for _, tc := range testCases {
			t.Run(suite.String()+"/"+tc.name, func(t *testing.T) {
				ciphertext, err := suite.Encrypt(tc.data, key, nonce)
				require.NoError(t, err)
				require.Len(t, ciphertext, len(tc.data)+16)

				plaintext, err := suite.Decrypt(ciphertext, key, nonce)
				require.NoError(t, err)
				require.True(t, bytes.Equal(tc.data, plaintext))
			})
		}
	}
}

func TestCipherDeterministic(t *testing.T) {
	key := randomBytes(t, KeySize)
	nonce := randomBytes(t, NonceSize)

	a, err := Encrypt([]byte("same input"), key, nonce)
	require.NoError(t, err)
	b, err := Encrypt([]byte("same input"), key, nonce)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestCipherTamperDetection(t *testing.T) {
	key := randomBytes(t, KeySize)
	nonce := randomBytes(t, NonceSize)
	plaintext := []byte("transfer 100 to alice")

	for _, suite := range []CipherSuite{AES256GCM, ChaCha20Poly1305} {
		ciphertext, err := suite.Encrypt(plaintext, key, nonce)
		require.NoError(t, err)

		for i := range ciphertext {
			tampered := append([]byte(nil), ciphertext...)
			tampered[i] ^= 0x01

			out, err := suite.Decrypt(tampered, key, nonce)
			require.ErrorIs(t, err, interfaces.ErrDecryption, "suite %s byte %d", suite, i)
			require.Nil(t, out)
		}
	}
}

func TestCipherWrongKey(t *testing.T) {
	key := randomBytes(t, KeySize)
	otherKey := randomBytes(t, KeySize)
	nonce := randomBytes(t, NonceSize)

	ciphertext, err := Encrypt([]byte("secret"), key, nonce)
	require.NoError(t, err)

	out, err := Decrypt(ciphertext, otherKey, nonce)
	require.ErrorIs(t, err, interfaces.ErrDecryption)
	require.Nil(t, out)

	out, err = Decrypt(ciphertext, key, randomBytes(t, NonceSize))
	require.ErrorIs(t, err, interfaces.ErrDecryption)
	require.Nil(t, out)
}

func TestCipherInputValidation(t *testing.T) {
	_, err := Encrypt([]byte("x"), make([]byte, 16), make([]byte, NonceSize))
	require.ErrorIs(t, err, ErrInvalidKeyLength)

	_, err = Encrypt([]byte("x"), make([]byte, KeySize), make([]byte, 24))
	require.ErrorIs(t, err, ErrInvalidNonceLength)

	_, err = Decrypt([]byte("x"), make([]byte, 31), make([]byte, NonceSize))
	require.ErrorIs(t, err, ErrInvalidKeyLength)

	_, err = CipherSuite(9).Encrypt([]byte("x"), make([]byte, KeySize), make([]byte, NonceSize))
	require.ErrorIs(t, err, ErrUnknownCipherSuite)
}

func TestParseCipherSuite(t *testing.T) {
	for _, suite := range []CipherSuite{AES256GCM, ChaCha20Poly1305} {
		parsed, err := ParseCipherSuite(suite.String())
		require.NoError(t, err)
		require.Equal(t, suite, parsed)
	}

	parsed, err := ParseCipherSuite("")
	require.NoError(t, err)
	require.Equal(t, AES256GCM, parsed)

	_, err = ParseCipherSuite("rot13")
	require.ErrorIs(t, err, ErrUnknownCipherSuite)
}

func TestNonceUniqueness(t *testing.T) {
	const draws = 10000
	seen := make(map[[NonceSize]byte]struct{}, draws)
	for i := 0; i < draws; i++ {
		n, err := NewNonce()
		require.NoError(t, err)
		_, dup := seen[n]
		require.False(t, dup, "duplicate nonce after %d draws", i)
		seen[n] = struct{}{}
	}
}
