package enclave

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/hashicorp/vault/shamir"
	"github.com/ruteri/tee-confidential-query/cryptoutils"
	"github.com/ruteri/tee-confidential-query/interfaces"
)

var ErrShortMasterKey = errors.New("master key must be at least 32 bytes")

// MasterKey derives worker key pairs deterministically, so a restarted
// worker keeps the public key already published for its cluster.
type MasterKey struct {
	seed []byte
}

// NewMasterKey copies seed, which must be at least 32 bytes long.
func NewMasterKey(seed []byte) (*MasterKey, error) {
	if len(seed) < 32 {
		return nil, ErrShortMasterKey
	}
	return &MasterKey{seed: append([]byte(nil), seed...)}, nil
}

// WorkerKey derives the X25519 key pair a worker serving clusterID uses:
// sha256(seed || clusterID || "worker").
func (k *MasterKey) WorkerKey(clusterID interfaces.ClusterID) (cryptoutils.KeyPair, error) {
	h := sha256.New()
	h.Write(k.seed)
	h.Write(clusterID[:])
	h.Write([]byte("worker"))
	return cryptoutils.KeyPairFromSecret(h.Sum(nil))
}

// SplitMasterKey splits seed into parts Shamir shares, any threshold of
// which recover it with CombineMasterKey.
func SplitMasterKey(seed []byte, parts, threshold int) ([][]byte, error) {
	if len(seed) < 32 {
		return nil, ErrShortMasterKey
	}
	if threshold < 2 || parts < threshold {
		return nil, fmt.Errorf("%w: need 2 <= threshold (%d) <= parts (%d)", interfaces.ErrConfiguration, threshold, parts)
	}
	shares, err := shamir.Split(seed, parts, threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to split master key: %w", err)
	}
	return shares, nil
}

// CombineMasterKey reconstructs a master key from Shamir shares. Fewer
// shares than the split threshold yield a different key, not an error.
func CombineMasterKey(shares [][]byte) (*MasterKey, error) {
	seed, err := shamir.Combine(shares)
	if err != nil {
		return nil, fmt.Errorf("failed to reconstruct master key: %w", err)
	}
	mk, err := NewMasterKey(seed)
	zeroBytes(seed)
	return mk, err
}

func zeroBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
