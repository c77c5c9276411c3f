// Package storage provides contract metadata backends keyed by code hash.
//
// Backends are created from location URIs:
//
//	[scheme]://[auth@]host[:port][/path][?params]
//
// Supported schemes:
//
//   - file:///var/lib/pink/metadata
//   - s3://[ACCESS_KEY:SECRET_KEY@]bucket/prefix?region=us-west-2&endpoint=http://minio:9000
//   - ipfs://127.0.0.1:5001/pink-metadata?timeout=30s (documents live in the node's MFS)
//   - vault://vault.example.com:8200/secret/pink/metadata?token=...
//
// Every backend stores a document under the hex code hash, so any backend
// can serve as a fallback for another. MultiStorageBackend reads from the
// first available backend that has the document and writes to all of them;
// failures are aggregated with go-multierror.
//
//	factory := storage.NewStorageBackendFactory(logger)
//	backend, err := factory.CreateMultiBackend(locations)
//	store, err := metadata.NewStore(backend, logger)
package storage
