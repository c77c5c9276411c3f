package enclave

import (
	"bytes"
	"testing"

	"github.com/ruteri/tee-confidential-query/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMasterKey(t *testing.T) {
	_, err := NewMasterKey(make([]byte, 16))
	require.ErrorIs(t, err, ErrShortMasterKey)

	seed := bytes.Repeat([]byte{0x42}, 32)
	mk, err := NewMasterKey(seed)
	require.NoError(t, err)

	a, err := mk.WorkerKey(interfaces.ClusterID{0x01})
	require.NoError(t, err)
	again, err := mk.WorkerKey(interfaces.ClusterID{0x01})
	require.NoError(t, err)
	b, err := mk.WorkerKey(interfaces.ClusterID{0x02})
	require.NoError(t, err)

	assert.Equal(t, a.Public, again.Public)
	assert.NotEqual(t, a.Public, b.Public)

	// The seed is copied.
	seed[0] = 0x00
	after, err := mk.WorkerKey(interfaces.ClusterID{0x01})
	require.NoError(t, err)
	assert.Equal(t, a.Public, after.Public)

	rt, err := NewRuntime(Config{WorkerKey: a, Log: testLogger()})
	require.NoError(t, err)
	assert.Equal(t, a.Public[:], rt.WorkerPublicKey())
}

func TestMasterKeyShares(t *testing.T) {
	seed := bytes.Repeat([]byte{0x17}, 32)
	mk, err := NewMasterKey(seed)
	require.NoError(t, err)
	want, err := mk.WorkerKey(interfaces.ClusterID{0x01})
	require.NoError(t, err)

	shares, err := SplitMasterKey(seed, 5, 3)
	require.NoError(t, err)
	require.Len(t, shares, 5)

	recovered, err := CombineMasterKey([][]byte{shares[4], shares[0], shares[2]})
	require.NoError(t, err)
	got, err := recovered.WorkerKey(interfaces.ClusterID{0x01})
	require.NoError(t, err)
	assert.Equal(t, want.Public, got.Public)

	_, err = CombineMasterKey(shares[:1])
	require.Error(t, err)

	_, err = SplitMasterKey(seed, 2, 3)
	require.ErrorIs(t, err, interfaces.ErrConfiguration)
	_, err = SplitMasterKey(seed[:8], 5, 3)
	require.ErrorIs(t, err, ErrShortMasterKey)
}
