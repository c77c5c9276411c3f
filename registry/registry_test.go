package registry

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ruteri/tee-confidential-query/interfaces"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testCluster = interfaces.ClusterID{0x0c}
	testCode    = interfaces.CodeHash{0xc0, 0xde}
)

func testRequest(salt string) interfaces.InstantiateRequest {
	return interfaces.NewInstantiateRequest(testCode, testCluster, []byte{0x9b, 0xae, 0x9d, 0x5e}, []byte(salt))
}

// TestMockRegistryClient_Propagation walks a deployment through every stage
func TestMockRegistryClient_Propagation(t *testing.T) {
	ctx := context.Background()
	m := NewMockRegistryClient()
	m.SetWorkerKey(testCluster, []byte{0x01, 0x02})
	m.SetPropagationDelay(PropagationDelay{InclusionPolls: 2, ClusterPolls: 2, KeyPolls: 1})

	var instantiated []interfaces.ContractID
	m.OnInstantiated = func(id interfaces.ContractID, req interfaces.InstantiateRequest) {
		instantiated = append(instantiated, id)
	}

	_, err := m.InstantiateContract(ctx, testRequest("a"))
	require.ErrorIs(t, err, ErrNoTransactOpts)

	m.SetTransactOpts()
	req := testRequest("a")
	hash, err := m.InstantiateContract(ctx, req)
	require.NoError(t, err)
	expectedID := DeriveContractID(req)

	// Not included on the first read
	status, err := m.TransactionStatus(ctx, hash)
	require.NoError(t, err)
	assert.False(t, status.InBlock)

	// Cluster reads before inclusion do not count
	ids, err := m.ClusterContracts(ctx, testCluster)
	require.NoError(t, err)
	assert.Empty(t, ids)

	status, err = m.TransactionStatus(ctx, hash)
	require.NoError(t, err)
	require.True(t, status.InBlock)
	ev, ok := status.FindEvent(interfaces.EventInstantiating)
	require.True(t, ok)
	assert.Equal(t, expectedID, ev.ContractID)
	assert.Equal(t, testCluster, ev.ClusterID)

	ids, err = m.ClusterContracts(ctx, testCluster)
	require.NoError(t, err)
	assert.Empty(t, ids)

	ids, err = m.ClusterContracts(ctx, testCluster)
	require.NoError(t, err)
	assert.Equal(t, []interfaces.ContractID{expectedID}, ids)

	key, err := m.ContractKey(ctx, expectedID)
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, hexutil.Bytes{0x01, 0x02}, key.Pubkey)
	assert.Equal(t, []interfaces.ContractID{expectedID}, instantiated)

	assert.Equal(t, 2, m.StatusCalls())
	assert.Equal(t, 3, m.ClusterCalls())
	assert.Equal(t, 1, m.KeyCalls())

	_, err = m.TransactionStatus(ctx, interfaces.TxHash{0xff})
	require.ErrorIs(t, err, ErrUnknownTransaction)
}

func TestMockRegistryClient_Never(t *testing.T) {
	ctx := context.Background()
	m := NewMockRegistryClient()
	m.SetTransactOpts()
	m.SetPropagationDelay(PropagationDelay{InclusionPolls: 1, Never: true})

	hash, err := m.InstantiateContract(ctx, testRequest("never"))
	require.NoError(t, err)
	status, err := m.TransactionStatus(ctx, hash)
	require.NoError(t, err)
	require.True(t, status.InBlock)

	for i := 0; i < 10; i++ {
		ids, err := m.ClusterContracts(ctx, testCluster)
		require.NoError(t, err)
		require.Empty(t, ids)
	}
}

func TestMockRegistryClient_InjectedErrors(t *testing.T) {
	ctx := context.Background()
	m := NewMockRegistryClient()
	m.RegisterContract(testCluster, interfaces.ContractID{0x01})
	m.FailClusterReads(errors.New("node syncing"))

	_, err := m.ClusterContracts(ctx, testCluster)
	require.EqualError(t, err, "node syncing")

	ids, err := m.ClusterContracts(ctx, testCluster)
	require.NoError(t, err)
	require.Len(t, ids, 1)
}

// TestRPCClient_InProc exercises the JSON-RPC client against the API served in-process
func TestRPCClient_InProc(t *testing.T) {
	ctx := context.Background()
	backend := NewMockRegistryClient()
	backend.SetTransactOpts()
	backend.SetWorkerKey(testCluster, []byte{0xaa, 0xbb})

	server, err := NewRPCServer(backend)
	require.NoError(t, err)
	defer server.Stop()

	client := NewRPCClient(rpc.DialInProc(server))
	defer client.Close()

	req := testRequest("rpc")
	req.Transfer = (*hexutil.Big)(big.NewInt(5))
	hash, err := client.InstantiateContract(ctx, req)
	require.NoError(t, err)
	expectedID := DeriveContractID(req)

	status, err := client.TransactionStatus(ctx, hash)
	require.NoError(t, err)
	require.True(t, status.InBlock)
	ev, ok := status.FindEvent(interfaces.EventInstantiating)
	require.True(t, ok)
	assert.Equal(t, expectedID, ev.ContractID)

	key, err := client.ContractKey(ctx, expectedID)
	require.NoError(t, err)
	assert.Nil(t, key, "key must not be provisioned before cluster registration")

	ids, err := client.ClusterContracts(ctx, testCluster)
	require.NoError(t, err)
	assert.Equal(t, []interfaces.ContractID{expectedID}, ids)

	key, err = client.ContractKey(ctx, expectedID)
	require.NoError(t, err)
	require.NotNil(t, key)
	assert.Equal(t, expectedID, key.ContractID)
	assert.Equal(t, hexutil.Bytes{0xaa, 0xbb}, key.Pubkey)

	empty, err := client.ClusterContracts(ctx, interfaces.ClusterID{0xee})
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = client.TransactionStatus(ctx, interfaces.TxHash{0x01})
	require.Error(t, err)
	assert.Contains(t, err.Error(), ErrUnknownTransaction.Error())
}

func TestMockRegistry_Testify(t *testing.T) {
	ctx := context.Background()
	m := new(MockRegistry)
	m.On("ClusterContracts", ctx, testCluster).Return(nil, nil).Once()
	m.On("ContractKey", ctx, interfaces.ContractID{0x01}).Return(nil, errors.New("boom")).Once()

	ids, err := m.ClusterContracts(ctx, testCluster)
	require.NoError(t, err)
	require.Nil(t, ids)

	_, err = m.ContractKey(ctx, interfaces.ContractID{0x01})
	require.EqualError(t, err, "boom")

	m.AssertExpectations(t)
}
