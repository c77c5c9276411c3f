// Package contract is the client entry point for confidential queries.
//
// A Contract handle binds a contract id, its operation table, a transport
// and a signer. Every Query seals the call in an envelope encrypted under
// the handle's shared secret, signs the encoded envelope, sends it in one
// transport round trip and decodes the sealed response, checking that it
// echoes the request nonce.
//
//	rec, err := contract.Instantiate(ctx, registry, w, req)
//	c, err := contract.Attach(rec, contract.Config{Operations: md.Messages, Transport: tr, Signer: signer})
//	out, err := c.Call(ctx, metadata.ByName("get"), nil)
package contract
