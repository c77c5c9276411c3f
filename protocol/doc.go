// Package protocol implements the wire formats of the confidential query
// protocol.
//
// A query travels as:
//
//	SignedRequest{
//	    EncodedEnvelope: 0x01 || RLP([nonce(12), clientPublicKey(32), AEAD(Query)]),
//	    Signature:       {SignedBy, SignatureType, sig(EncodedEnvelope)},
//	}
//
// and the answer comes back as an envelope sealed under the same shared
// secret whose plaintext is an RLP-encoded Response. The Response echoes the
// 32-byte request nonce from the QueryHead; DecodeResponse rejects answers to
// a different query with interfaces.ErrProtocolDecode.
package protocol
