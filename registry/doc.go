// Package registry provides clients for the ledger-side registries a
// confidential query client depends on: the cluster membership registry,
// the contract key registry, transaction status and contract deployment.
//
// RPCClient talks to a node exposing the "pink" JSON-RPC namespace:
//
//	pink_clusterContracts(clusterId) -> [contractId]
//	pink_contractKey(contractId) -> {contractId, pubkey} | null
//	pink_transactionStatus(txHash) -> {hash, inBlock, events}
//	pink_instantiateContract(request) -> txHash
//
// NewRPCServer serves the same namespace on top of any
// interfaces.RegistryClient, which is how the local enclave simulator exposes
// its in-memory ledger.
//
// MockRegistryClient is an in-memory ledger for tests and local development.
// Deployments become visible in stages as they are polled, mimicking the
// eventually consistent views of a real node:
//
//	m := registry.NewMockRegistryClient()
//	m.SetTransactOpts()
//	m.SetPropagationDelay(registry.PropagationDelay{InclusionPolls: 1, ClusterPolls: 2, KeyPolls: 1})
//
// MockRegistry is a testify mock of the same interface.
package registry
