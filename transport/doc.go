// Package transport carries encoded query requests to workers.
//
// HTTPTransport performs a single POST to a worker's ContractQuery route and
// never retries. Resolver discovers worker base URLs from DNS SRV records.
package transport
