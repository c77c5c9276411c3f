package interfaces

import "context"

// ClusterRegistry is the on-ledger view of which contracts a cluster hosts.
// Views are eventually consistent; a contract may appear several polls after
// its deployment transaction was included.
type ClusterRegistry interface {
	ClusterContracts(ctx context.Context, clusterID ClusterID) ([]ContractID, error)
}

// KeyRegistry publishes per-contract keys once the enclave has provisioned them.
// A nil key and nil error mean the key is not provisioned yet.
type KeyRegistry interface {
	ContractKey(ctx context.Context, contractID ContractID) (*ContractKey, error)
}

// TxTracker reports the inclusion status of a submitted transaction.
type TxTracker interface {
	TransactionStatus(ctx context.Context, hash TxHash) (*TxStatus, error)
}

// Deployer submits contract instantiation transactions.
type Deployer interface {
	InstantiateContract(ctx context.Context, req InstantiateRequest) (TxHash, error)
}

// RegistryClient bundles every ledger-facing read and write the client needs.
type RegistryClient interface {
	ClusterRegistry
	KeyRegistry
	TxTracker
	Deployer
}

// QueryTransport performs one contractQuery round trip. Implementations do
// not retry; the caller owns retry policy.
type QueryTransport interface {
	ContractQuery(ctx context.Context, signedRequest []byte) ([]byte, error)
}
