package enclave

import (
	"context"
	"io"
	"log/slog"
	"math/big"
	"testing"

	"github.com/ruteri/tee-confidential-query/cryptoutils"
	"github.com/ruteri/tee-confidential-query/interfaces"
	"github.com/ruteri/tee-confidential-query/metadata"
	"github.com/ruteri/tee-confidential-query/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testContract = interfaces.ContractID{0xaa}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRuntime(t *testing.T, suite cryptoutils.CipherSuite) *Runtime {
	t.Helper()
	rt, err := NewRuntime(Config{Suite: suite, Log: testLogger()})
	require.NoError(t, err)

	md, err := metadata.Parse([]byte(FlipperMetadata))
	require.NoError(t, err)
	ctor, err := md.Constructors.Resolve(metadata.ByName("new"))
	require.NoError(t, err)

	flipper, err := NewFlipper(ctor.EncodeCall([]byte{1}))
	require.NoError(t, err)
	rt.Register(testContract, flipper)
	return rt
}

type testClient struct {
	suite  cryptoutils.CipherSuite
	key    cryptoutils.KeyPair
	secret cryptoutils.SharedSecret
	signer cryptoutils.Signer
}

func newTestClient(t *testing.T, rt *Runtime) *testClient {
	t.Helper()
	key, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)
	secret, err := cryptoutils.DeriveSharedSecret(key.Secret, rt.WorkerPublicKey())
	require.NoError(t, err)
	signer, err := cryptoutils.GenerateEd25519Signer()
	require.NoError(t, err)
	return &testClient{suite: rt.Suite(), key: key, secret: secret, signer: signer}
}

func (c *testClient) request(t *testing.T, q *protocol.Query) []byte {
	t.Helper()
	plaintext, err := q.Encode()
	require.NoError(t, err)
	env, err := protocol.SealEnvelope(c.suite, c.key, c.secret, plaintext)
	require.NoError(t, err)
	encodedEnv, err := env.Encode()
	require.NoError(t, err)
	req, err := protocol.SignRequest(encodedEnv, c.signer)
	require.NoError(t, err)
	raw, err := req.Encode()
	require.NoError(t, err)
	return raw
}

func (c *testClient) query(t *testing.T, contract interfaces.ContractID, message string, args []byte) *protocol.Query {
	t.Helper()
	md, err := metadata.Parse([]byte(FlipperMetadata))
	require.NoError(t, err)

	payload := []byte{0xff, 0xff, 0xff, 0xff}
	if op, err := md.Messages.Resolve(metadata.ByName(message)); err == nil {
		payload = op.EncodeCall(args)
	}
	nonce, err := cryptoutils.NewRequestNonce()
	require.NoError(t, err)
	return &protocol.Query{
		Head:     protocol.QueryHead{ContractID: contract, Nonce: nonce},
		Origin:   c.signer.PublicKey(),
		Payload:  payload,
		Deposit:  big.NewInt(0),
		Transfer: big.NewInt(0),
	}
}

func TestRuntime_Query(t *testing.T) {
	for _, suite := range []cryptoutils.CipherSuite{cryptoutils.AES256GCM, cryptoutils.ChaCha20Poly1305} {
		t.Run(suite.String(), func(t *testing.T) {
			rt := newTestRuntime(t, suite)
			c := newTestClient(t, rt)
			decoder := protocol.ResponseDecoder{Suite: suite}

			tests := []struct {
				name     string
				contract interfaces.ContractID
				message  string
				args     []byte
				output   []byte
				errCode  uint32
			}{
				{name: "get", contract: testContract, message: "get", output: []byte{1}},
				{name: "whoami", contract: testContract, message: "whoami", output: c.signer.PublicKey()},
				{name: "echo", contract: testContract, message: "echo", args: []byte("hello"), output: []byte("hello")},
				{name: "get with args", contract: testContract, message: "get", args: []byte{1}, errCode: CodeBadArguments},
				{name: "mutating", contract: testContract, message: "flip", errCode: CodeMutatingQuery},
				{name: "unknown selector", contract: testContract, message: "nope", errCode: CodeUnknownSelector},
				{name: "unknown contract", contract: interfaces.ContractID{0xbb}, message: "get", errCode: CodeContractNotFound},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					q := c.query(t, tt.contract, tt.message, tt.args)
					raw, err := rt.ContractQuery(context.Background(), c.request(t, q))
					require.NoError(t, err)

					result, err := decoder.Decode(raw, c.secret, q.Head.Nonce)
					require.NoError(t, err)
					if tt.errCode != 0 {
						require.NotNil(t, result.Err)
						assert.Equal(t, tt.errCode, result.Err.Code)
						return
					}
					require.Nil(t, result.Err)
					assert.Equal(t, tt.output, result.Output)
				})
			}
		})
	}
}

func TestRuntime_FlipOutOfBand(t *testing.T) {
	rt := newTestRuntime(t, cryptoutils.AES256GCM)
	c := newTestClient(t, rt)

	rt.mu.RLock()
	flipper := rt.contracts[testContract].(*Flipper)
	rt.mu.RUnlock()
	flipper.Flip()

	q := c.query(t, testContract, "get", nil)
	raw, err := rt.ContractQuery(context.Background(), c.request(t, q))
	require.NoError(t, err)
	result, err := protocol.DecodeResponse(raw, c.secret, q.Head.Nonce)
	require.NoError(t, err)
	out, err := result.Unwrap()
	require.NoError(t, err)
	assert.Equal(t, []byte{0}, out)
}

func TestRuntime_Rejections(t *testing.T) {
	rt := newTestRuntime(t, cryptoutils.AES256GCM)
	c := newTestClient(t, rt)

	t.Run("garbage", func(t *testing.T) {
		_, err := rt.ContractQuery(context.Background(), []byte{0x01, 0x02})
		require.ErrorIs(t, err, interfaces.ErrProtocolDecode)
	})

	t.Run("tampered signature", func(t *testing.T) {
		raw := c.request(t, c.query(t, testContract, "get", nil))
		req, err := protocol.DecodeSignedRequest(raw)
		require.NoError(t, err)
		req.Signature.Signature[0] ^= 0xff
		tampered, err := req.Encode()
		require.NoError(t, err)

		_, err = rt.ContractQuery(context.Background(), tampered)
		require.ErrorIs(t, err, interfaces.ErrInvalidSignature)
		assert.True(t, IsRejection(err))
	})

	t.Run("origin mismatch", func(t *testing.T) {
		q := c.query(t, testContract, "whoami", nil)
		q.Origin = []byte("someone else")
		_, err := rt.ContractQuery(context.Background(), c.request(t, q))
		require.ErrorIs(t, err, interfaces.ErrInvalidSignature)
	})

	t.Run("encrypted to another worker", func(t *testing.T) {
		other := newTestRuntime(t, cryptoutils.AES256GCM)
		stranger := newTestClient(t, other)
		_, err := rt.ContractQuery(context.Background(), stranger.request(t, stranger.query(t, testContract, "get", nil)))
		require.ErrorIs(t, err, interfaces.ErrDecryption)
	})
}

func TestRuntime_InstantiateHook(t *testing.T) {
	rt, err := NewRuntime(Config{Log: testLogger()})
	require.NoError(t, err)
	hook := rt.InstantiateHook(FlipperConstructor)

	hook(interfaces.ContractID{0x01}, interfaces.InstantiateRequest{ConstructorPayload: []byte{0x9b, 0xae, 0x9d, 0x5e, 0x00}})
	assert.Equal(t, 1, rt.Contracts())

	hook(interfaces.ContractID{0x02}, interfaces.InstantiateRequest{ConstructorPayload: []byte{0x00}})
	assert.Equal(t, 1, rt.Contracts(), "failed constructor registers nothing")

	rt.Unregister(interfaces.ContractID{0x01})
	assert.Equal(t, 0, rt.Contracts())
}

func TestNewRuntime_Validation(t *testing.T) {
	_, err := NewRuntime(Config{Suite: cryptoutils.CipherSuite(9)})
	require.ErrorIs(t, err, interfaces.ErrConfiguration)

	key, err := cryptoutils.GenerateKeyPair()
	require.NoError(t, err)
	rt, err := NewRuntime(Config{WorkerKey: key})
	require.NoError(t, err)
	assert.Equal(t, key.Public[:], rt.WorkerPublicKey())
}
