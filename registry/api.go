package registry

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ruteri/tee-confidential-query/interfaces"
)

// Namespace is the JSON-RPC namespace the registry methods are served under.
const Namespace = "pink"

// API exposes a registry backend over JSON-RPC. Method names map to
// pink_clusterContracts, pink_contractKey, pink_transactionStatus and
// pink_instantiateContract.
type API struct {
	backend interfaces.RegistryClient
}

// NewAPI creates a new registry API
func NewAPI(backend interfaces.RegistryClient) *API {
	return &API{backend: backend}
}

// ClusterContracts returns the contracts registered in a cluster
func (api *API) ClusterContracts(ctx context.Context, clusterID interfaces.ClusterID) ([]interfaces.ContractID, error) {
	ids, err := api.backend.ClusterContracts(ctx, clusterID)
	if err != nil {
		return nil, err
	}
	if ids == nil {
		ids = []interfaces.ContractID{}
	}
	return ids, nil
}

// ContractKey returns the key of a contract, or null if not provisioned
func (api *API) ContractKey(ctx context.Context, contractID interfaces.ContractID) (*interfaces.ContractKey, error) {
	return api.backend.ContractKey(ctx, contractID)
}

// TransactionStatus returns the inclusion status of a transaction
func (api *API) TransactionStatus(ctx context.Context, hash interfaces.TxHash) (*interfaces.TxStatus, error) {
	return api.backend.TransactionStatus(ctx, hash)
}

// InstantiateContract submits a deployment
func (api *API) InstantiateContract(ctx context.Context, req interfaces.InstantiateRequest) (interfaces.TxHash, error) {
	return api.backend.InstantiateContract(ctx, req)
}

// APIs returns the RPC descriptors for a registry backend.
func APIs(backend interfaces.RegistryClient) []rpc.API {
	return []rpc.API{
		{
			Namespace: Namespace,
			Service:   NewAPI(backend),
		},
	}
}

// NewRPCServer creates a JSON-RPC server serving backend. The server is an
// http.Handler and can be mounted on any router.
func NewRPCServer(backend interfaces.RegistryClient) (*rpc.Server, error) {
	server := rpc.NewServer()
	for _, api := range APIs(backend) {
		if err := server.RegisterName(api.Namespace, api.Service); err != nil {
			return nil, fmt.Errorf("failed to register %s API: %w", api.Namespace, err)
		}
	}
	return server, nil
}
