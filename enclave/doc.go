// Package enclave simulates the worker side of the confidential query
// protocol for tests and local development.
//
// A Runtime holds the worker X25519 key pair and a set of in-memory contract
// handlers. For every signed request it verifies the signature, derives the
// shared secret from the envelope's ephemeral key, opens the query, checks
// that the query origin is the signer, dispatches the payload and seals the
// response with a fresh nonce, echoing the request nonce inside.
//
// Flipper is a small contract used by the simulator and the end-to-end tests.
// Its messages are routed by selector through SelectorMux using the
// operation table parsed from FlipperMetadata.
package enclave
