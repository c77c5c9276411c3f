// Package metrics holds the prometheus collectors of the query client, the
// instantiation watcher and the enclave simulator, and the server exposing them.
package metrics
