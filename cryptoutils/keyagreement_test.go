package cryptoutils

import (
	"bytes"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDeriveSharedSecretCommutative(t *testing.T) {
	for i := 0; i < 16; i++ {
		a, err := GenerateKeyPair()
		require.NoError(t, err)
		b, err := GenerateKeyPair()
		require.NoError(t, err)

		ab, err := DeriveSharedSecret(a.Secret, b.Public[:])
		require.NoError(t, err)
		ba, err := DeriveSharedSecret(b.Secret, a.Public[:])
		require.NoError(t, err)

		require.Equal(t, ab, ba)
	}
}

func TestDeriveSharedSecretDistinctPeers(t *testing.T) {
	a, err := GenerateKeyPair()
	require.NoError(t, err)
	b, err := GenerateKeyPair()
	require.NoError(t, err)
	c, err := GenerateKeyPair()
	require.NoError(t, err)

	ab, err := DeriveSharedSecret(a.Secret, b.Public[:])
	require.NoError(t, err)
	ac, err := DeriveSharedSecret(a.Secret, c.Public[:])
	require.NoError(t, err)
	require.NotEqual(t, ab, ac)
}

func TestDeriveSharedSecretRejectsBadPoints(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	_, err = DeriveSharedSecret(kp.Secret, make([]byte, 31))
	require.ErrorIs(t, err, ErrInvalidPublicKey)

	// The all-zero point has small order and yields an all-zero DH output.
	_, err = DeriveSharedSecret(kp.Secret, make([]byte, 32))
	require.ErrorIs(t, err, ErrInvalidPublicKey)
}

func TestKeyPairFromSecret(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	restored, err := KeyPairFromSecret(kp.Secret[:])
	require.NoError(t, err)
	require.Equal(t, kp, restored)

	_, err = KeyPairFromSecret([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrInvalidKeyLength)
}

func TestGenerateKeyPairDeterministicReader(t *testing.T) {
	seed := bytes.Repeat([]byte{0x42}, 32)
	a, err := generateKeyPair(bytes.NewReader(seed))
	require.NoError(t, err)
	b, err := generateKeyPair(bytes.NewReader(seed))
	require.NoError(t, err)
	require.Equal(t, a, b)
	require.Equal(t, byte(0), a.Secret[0]&7, "secret must be clamped")
}

func TestSharedSecretRedacted(t *testing.T) {
	a, err := GenerateKeyPair()
	require.NoError(t, err)
	b, err := GenerateKeyPair()
	require.NoError(t, err)
	secret, err := DeriveSharedSecret(a.Secret, b.Public[:])
	require.NoError(t, err)

	require.Equal(t, "[redacted]", fmt.Sprint(secret))
	require.Equal(t, "[redacted]", fmt.Sprintf("%v", secret))
	require.Equal(t, "cryptoutils.SharedSecret{[redacted]}", fmt.Sprintf("%#v", secret))

	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	logger.Info("derived", "secret", secret)
	require.Contains(t, buf.String(), "secret=[redacted]")
}
