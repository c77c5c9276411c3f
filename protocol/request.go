package protocol

import (
	"fmt"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/ruteri/tee-confidential-query/cryptoutils"
	"github.com/ruteri/tee-confidential-query/interfaces"
)

// Signature authorizes one encoded envelope. SignedBy is the identity the
// enclave treats as the query origin.
type Signature struct {
	SignedBy      []byte
	SignatureType cryptoutils.SignatureType
	Signature     []byte
}

// SignedRequest is what travels over the query transport.
type SignedRequest struct {
	EncodedEnvelope []byte
	Signature       Signature
}

// SignRequest signs the exact encoded envelope bytes. The envelope is never
// re-encoded before signing.
func SignRequest(encodedEnvelope []byte, signer cryptoutils.Signer) (*SignedRequest, error) {
	if signer == nil {
		return nil, fmt.Errorf("%w: nil signer", interfaces.ErrConfiguration)
	}

	sig, err := signer.Sign(encodedEnvelope)
	if err != nil {
		return nil, fmt.Errorf("failed to sign request: %w", err)
	}

	return &SignedRequest{
		EncodedEnvelope: encodedEnvelope,
		Signature: Signature{
			SignedBy:      signer.PublicKey(),
			SignatureType: signer.SignatureType(),
			Signature:     sig,
		},
	}, nil
}

// Verify checks the signature against the encoded envelope it carries.
func (r *SignedRequest) Verify() error {
	return cryptoutils.VerifySignature(
		r.Signature.SignatureType,
		r.Signature.SignedBy,
		r.EncodedEnvelope,
		r.Signature.Signature,
	)
}

// VerifySignedRequest checks req's signature.
func VerifySignedRequest(req *SignedRequest) error {
	if req == nil {
		return fmt.Errorf("%w: nil request", interfaces.ErrProtocolDecode)
	}
	return req.Verify()
}

// Encode serializes the request for the transport.
func (r *SignedRequest) Encode() ([]byte, error) {
	data, err := rlp.EncodeToBytes(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode signed request: %w", err)
	}
	return data, nil
}

// DecodeSignedRequest parses bytes produced by SignedRequest.Encode.
func DecodeSignedRequest(data []byte) (*SignedRequest, error) {
	var req SignedRequest
	if err := rlp.DecodeBytes(data, &req); err != nil {
		return nil, fmt.Errorf("%w: signed request: %v", interfaces.ErrProtocolDecode, err)
	}
	return &req, nil
}
