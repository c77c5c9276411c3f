// Package interfaces defines the core interfaces and types for the confidential
// contract query client, separating interface definitions from implementations.
//
// # Ledger Interfaces
//
// ClusterRegistry: Lists the contracts hosted by a cluster. Used to detect the
// moment a freshly deployed contract has been registered.
//
// KeyRegistry: Returns the key record of a contract once the enclave has
// provisioned it. Absence is reported as a nil record, not an error.
//
// TxTracker and Deployer: Submit instantiation transactions and report their
// inclusion status and emitted events.
//
// # Transport Interfaces
//
// QueryTransport: A single contractQuery round trip carrying an encoded
// SignedRequest and returning the encrypted response envelope.
//
// # Storage Interfaces
//
// MetadataBackend: Stores contract metadata documents by code hash across
// file, S3, IPFS and Vault backends.
//
// # Errors
//
// Every failure returned by the library wraps one of the sentinels in
// errors.go so callers can use errors.Is. Contract-reported failures are
// returned as *QueryError.
package interfaces
