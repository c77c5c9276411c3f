package protocol

import (
	"math/big"
	"testing"

	"github.com/ruteri/tee-confidential-query/cryptoutils"
	"github.com/ruteri/tee-confidential-query/interfaces"
	"github.com/stretchr/testify/require"
)

type parties struct {
	client       cryptoutils.KeyPair
	worker       cryptoutils.KeyPair
	clientSecret cryptoutils.SharedSecret
	workerSecret cryptoutils.SharedSecret
}

func newParties(t *testing.T) parties {
	t.Helper()
	client, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)
	worker, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)

	clientSecret, err := cryptoutils.DeriveSharedSecret(client.Secret, worker.Public[:])
	require.NoError(t, err)
	workerSecret, err := cryptoutils.DeriveSharedSecret(worker.Secret, client.Public[:])
	require.NoError(t, err)

	return parties{client: client, worker: worker, clientSecret: clientSecret, workerSecret: workerSecret}
}

func TestEnvelopeRoundTrip(t *testing.T) {
	p := newParties(t)

	for _, suite := range []cryptoutils.CipherSuite{cryptoutils.AES256GCM, cryptoutils.ChaCha20Poly1305} {
		t.Run(suite.String(), func(t *testing.T) {
			plaintext := []byte("get_balance(alice)")

			env, err := SealEnvelope(suite, p.client, p.clientSecret, plaintext)
			require.NoError(t, err)
			require.Equal(t, p.client.Public[:], env.PublicKey)

			encoded, err := env.Encode()
			require.NoError(t, err)
			require.Equal(t, EnvelopeVersion, encoded[0])

			decoded, err := DecodeEnvelope(encoded)
			require.NoError(t, err)
			require.Equal(t, env, decoded)

			// The worker derives the secret from the public key in the envelope.
			workerSecret, err := cryptoutils.DeriveSharedSecret(p.worker.Secret, decoded.PublicKey)
			require.NoError(t, err)

			opened, err := decoded.Open(suite, workerSecret)
			require.NoError(t, err)
			require.Equal(t, plaintext, opened)
		})
	}
}

func TestEnvelopeFreshNonces(t *testing.T) {
	p := newParties(t)

	a, err := BuildEnvelope(p.client, p.clientSecret, []byte("same"))
	require.NoError(t, err)
	b, err := BuildEnvelope(p.client, p.clientSecret, []byte("same"))
	require.NoError(t, err)

	require.NotEqual(t, a.Nonce, b.Nonce)
	require.NotEqual(t, a.Ciphertext, b.Ciphertext)
}

func TestDecodeEnvelopeErrors(t *testing.T) {
	p := newParties(t)
	env, err := BuildEnvelope(p.client, p.clientSecret, []byte("x"))
	require.NoError(t, err)
	encoded, err := env.Encode()
	require.NoError(t, err)

	wrongVersion := append([]byte(nil), encoded...)
	wrongVersion[0] = 0x02

	shortKey := &Envelope{Nonce: env.Nonce, PublicKey: []byte{1, 2, 3}, Ciphertext: env.Ciphertext}
	shortKeyEncoded, err := shortKey.Encode()
	require.NoError(t, err)
	longKey := &Envelope{Nonce: env.Nonce, PublicKey: make([]byte, 33), Ciphertext: env.Ciphertext}
	longKeyEncoded, err := longKey.Encode()
	require.NoError(t, err)

	testCases := []struct {
		name string
		data []byte
	}{
		{name: "empty", data: nil},
		{name: "wrong version", data: wrongVersion},
		{name: "truncated", data: encoded[:len(encoded)-4]},
		{name: "trailing bytes", data: append(append([]byte(nil), encoded...), 0x00)},
		{name: "short public key", data: shortKeyEncoded},
		{name: "long public key", data: longKeyEncoded},
		{name: "garbage", data: []byte{EnvelopeVersion, 0xff, 0xff}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeEnvelope(tc.data)
			require.ErrorIs(t, err, interfaces.ErrProtocolDecode)
		})
	}
}

func TestSignedRequestRoundTrip(t *testing.T) {
	p := newParties(t)

	edSigner, err := cryptoutils.GenerateEd25519Signer()
	require.NoError(t, err)
	ecSigner, err := cryptoutils.GenerateEcdsaSigner()
	require.NoError(t, err)

	for _, signer := range []cryptoutils.Signer{edSigner, ecSigner} {
		t.Run(signer.SignatureType().String(), func(t *testing.T) {
			env, err := BuildEnvelope(p.client, p.clientSecret, []byte("query"))
			require.NoError(t, err)
			encodedEnv, err := env.Encode()
			require.NoError(t, err)

			req, err := SignRequest(encodedEnv, signer)
			require.NoError(t, err)
			require.Equal(t, encodedEnv, req.EncodedEnvelope)
			require.Equal(t, signer.PublicKey(), req.Signature.SignedBy)

			wire, err := req.Encode()
			require.NoError(t, err)

			decoded, err := DecodeSignedRequest(wire)
			require.NoError(t, err)
			require.Equal(t, req, decoded)
			require.NoError(t, decoded.Verify())

			// Any change to the signed bytes invalidates the signature.
			decoded.EncodedEnvelope[len(decoded.EncodedEnvelope)-1] ^= 0x01
			require.ErrorIs(t, decoded.Verify(), interfaces.ErrInvalidSignature)
		})
	}
}

func TestSignRequestNilSigner(t *testing.T) {
	_, err := SignRequest([]byte("x"), nil)
	require.ErrorIs(t, err, interfaces.ErrConfiguration)
}

func TestQueryEncoding(t *testing.T) {
	id, err := interfaces.NewContractIDFromHex("0x0101010101010101010101010101010101010101010101010101010101010101")
	require.NoError(t, err)
	nonce, err := cryptoutils.NewRequestNonce()
	require.NoError(t, err)

	q := &Query{
		Head:       QueryHead{ContractID: id, Nonce: nonce},
		Origin:     []byte{0xaa, 0xbb},
		Payload:    []byte{0x12, 0x34, 0x56, 0x78, 0x01},
		Deposit:    big.NewInt(0),
		Transfer:   big.NewInt(1000),
		Estimating: true,
	}
	data, err := q.Encode()
	require.NoError(t, err)

	decoded, err := DecodeQuery(data)
	require.NoError(t, err)
	require.Equal(t, q.Head, decoded.Head)
	require.Equal(t, q.Payload, decoded.Payload)
	require.Equal(t, 0, q.Transfer.Cmp(decoded.Transfer))
	require.True(t, decoded.Estimating)

	_, err = DecodeQuery([]byte{0x01})
	require.ErrorIs(t, err, interfaces.ErrProtocolDecode)
}

func TestDecodeResponse(t *testing.T) {
	p := newParties(t)
	nonce, err := cryptoutils.NewRequestNonce()
	require.NoError(t, err)
	otherNonce, err := cryptoutils.NewRequestNonce()
	require.NoError(t, err)

	seal := func(t *testing.T, resp *Response) []byte {
		raw, err := SealResponse(cryptoutils.AES256GCM, p.worker, p.workerSecret, resp)
		require.NoError(t, err)
		return raw
	}

	t.Run("ok", func(t *testing.T) {
		raw := seal(t, &Response{Nonce: nonce, Status: StatusOk, Output: []byte{0x2a}})
		res, err := DecodeResponse(raw, p.clientSecret, nonce)
		require.NoError(t, err)
		require.Nil(t, res.Err)
		require.Equal(t, []byte{0x2a}, res.Output)

		out, err := res.Unwrap()
		require.NoError(t, err)
		require.Equal(t, []byte{0x2a}, out)
	})

	t.Run("contract error", func(t *testing.T) {
		raw := seal(t, &Response{Nonce: nonce, Status: StatusErr, ErrorCode: 7, ErrorMessage: "insufficient balance"})
		res, err := DecodeResponse(raw, p.clientSecret, nonce)
		require.NoError(t, err)
		require.NotNil(t, res.Err)
		require.Equal(t, uint32(7), res.Err.Code)
		require.Equal(t, "insufficient balance", res.Err.Message)

		_, err = res.Unwrap()
		qe, ok := interfaces.AsQueryError(err)
		require.True(t, ok)
		require.Equal(t, uint32(7), qe.Code)
	})

	t.Run("nonce mismatch", func(t *testing.T) {
		raw := seal(t, &Response{Nonce: otherNonce, Status: StatusOk})
		_, err := DecodeResponse(raw, p.clientSecret, nonce)
		require.ErrorIs(t, err, interfaces.ErrProtocolDecode)
	})

	t.Run("unknown status", func(t *testing.T) {
		raw := seal(t, &Response{Nonce: nonce, Status: ResponseStatus(9)})
		_, err := DecodeResponse(raw, p.clientSecret, nonce)
		require.ErrorIs(t, err, interfaces.ErrProtocolDecode)
	})

	t.Run("wrong key", func(t *testing.T) {
		raw := seal(t, &Response{Nonce: nonce, Status: StatusOk, Output: []byte("secret")})
		stranger := newParties(t)
		res, err := DecodeResponse(raw, stranger.clientSecret, nonce)
		require.ErrorIs(t, err, interfaces.ErrDecryption)
		require.Nil(t, res)
	})

	t.Run("suite mismatch", func(t *testing.T) {
		raw := seal(t, &Response{Nonce: nonce, Status: StatusOk})
		_, err := ResponseDecoder{Suite: cryptoutils.ChaCha20Poly1305}.Decode(raw, p.clientSecret, nonce)
		require.ErrorIs(t, err, interfaces.ErrDecryption)
	})

	t.Run("not an envelope", func(t *testing.T) {
		_, err := DecodeResponse([]byte("<html>bad gateway</html>"), p.clientSecret, nonce)
		require.ErrorIs(t, err, interfaces.ErrProtocolDecode)
	})

	t.Run("plaintext not a response", func(t *testing.T) {
		env, err := BuildEnvelope(p.worker, p.workerSecret, []byte{0xde, 0xad})
		require.NoError(t, err)
		raw, err := env.Encode()
		require.NoError(t, err)
		_, err = DecodeResponse(raw, p.clientSecret, nonce)
		require.ErrorIs(t, err, interfaces.ErrProtocolDecode)
	})
}
