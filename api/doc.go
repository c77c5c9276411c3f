/*
Package api holds the HTTP surface shared by query clients and workers.

Routes:

  - POST /prpc/ContractQuery - encoded SignedRequest in, encoded response envelope out
  - GET /prpc/GetInfo - worker public key and cipher suite as JSON
  - POST /rpc - JSON-RPC registry (local simulator only)

Request and response bodies of the query route are opaque protocol bytes
(ContentTypeBinary) limited to MaxBodySize.

The queryhandler subpackage implements the worker side of these routes on
top of an enclave runtime.
*/
package api
