package registry

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ruteri/tee-confidential-query/interfaces"
)

// RPCClient implements interfaces.RegistryClient against a node exposing the
// registry JSON-RPC namespace.
type RPCClient struct {
	client *rpc.Client
}

// NewRPCClient wraps an established RPC connection.
func NewRPCClient(client *rpc.Client) *RPCClient {
	return &RPCClient{client: client}
}

// DialRPC connects to a registry endpoint (http://, ws:// or an IPC path).
func DialRPC(ctx context.Context, url string) (*RPCClient, error) {
	client, err := rpc.DialContext(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to dial registry at %s: %w", url, err)
	}
	return NewRPCClient(client), nil
}

// Close terminates the underlying connection.
func (c *RPCClient) Close() {
	c.client.Close()
}

// ClusterContracts retrieves the contracts registered in a cluster.
func (c *RPCClient) ClusterContracts(ctx context.Context, clusterID interfaces.ClusterID) ([]interfaces.ContractID, error) {
	var ids []interfaces.ContractID
	if err := c.client.CallContext(ctx, &ids, Namespace+"_clusterContracts", clusterID); err != nil {
		return nil, err
	}
	return ids, nil
}

// ContractKey retrieves a contract key. A nil key means not yet provisioned.
func (c *RPCClient) ContractKey(ctx context.Context, contractID interfaces.ContractID) (*interfaces.ContractKey, error) {
	var key *interfaces.ContractKey
	if err := c.client.CallContext(ctx, &key, Namespace+"_contractKey", contractID); err != nil {
		return nil, err
	}
	return key, nil
}

// TransactionStatus retrieves the inclusion status of a transaction.
func (c *RPCClient) TransactionStatus(ctx context.Context, hash interfaces.TxHash) (*interfaces.TxStatus, error) {
	var status interfaces.TxStatus
	if err := c.client.CallContext(ctx, &status, Namespace+"_transactionStatus", hash); err != nil {
		return nil, err
	}
	return &status, nil
}

// InstantiateContract submits a deployment and returns its transaction hash.
func (c *RPCClient) InstantiateContract(ctx context.Context, req interfaces.InstantiateRequest) (interfaces.TxHash, error) {
	var hash interfaces.TxHash
	if err := c.client.CallContext(ctx, &hash, Namespace+"_instantiateContract", req); err != nil {
		return interfaces.TxHash{}, err
	}
	return hash, nil
}
