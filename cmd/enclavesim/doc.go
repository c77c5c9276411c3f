// Package main (cmd/enclavesim) runs a development worker.
//
// The binary hosts an in-process contract runtime behind the query API and
// serves a mock registry over JSON-RPC on the same listener:
//
//	POST /prpc/ContractQuery   signed, encrypted contract queries
//	GET  /prpc/GetInfo         worker public key and cipher suite
//	POST /rpc                  registry JSON-RPC (pink_* methods)
//	GET  /livez, /readyz       health checks, with /drain and /undrain
//
// Deployments submitted through the registry become queryable after the
// configured number of polls; every instantiated contract runs the flipper
// example code.
//
// Usage:
//
//	enclavesim --listen-addr 127.0.0.1:8080 --cluster 0x…01 --cluster-polls 3
package main
