package registry

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ruteri/tee-confidential-query/interfaces"
)

// ErrNoTransactOpts is returned when a transaction is attempted without first enabling transactions.
var ErrNoTransactOpts = errors.New("no authorized transactor available")

// ErrUnknownTransaction is returned for transaction hashes the ledger never saw.
var ErrUnknownTransaction = errors.New("unknown transaction")

// PropagationDelay controls how many reads it takes for a deployment to
// become visible in each view of the mock ledger. A value of 1 means the
// change is visible on the first read after the previous stage completed.
type PropagationDelay struct {
	// InclusionPolls is the number of TransactionStatus reads until the
	// transaction is reported in a block.
	InclusionPolls int

	// ClusterPolls is the number of ClusterContracts reads, counted after
	// inclusion, until the contract is listed in its cluster.
	ClusterPolls int

	// KeyPolls is the number of ContractKey reads, counted after cluster
	// registration, until the key is provisioned.
	KeyPolls int

	// Never stops the deployment from progressing past inclusion.
	Never bool
}

type deployment struct {
	contractID interfaces.ContractID
	clusterID  interfaces.ClusterID
	delay      PropagationDelay

	statusReads  int
	clusterReads int
	keyReads     int

	included    bool
	registered  bool
	provisioned bool
}

// MockRegistryClient provides a simple in-memory implementation of the
// ledger registries for testing purposes without requiring a node connection.
// Deployments progress through inclusion, cluster registration and key
// provisioning as they are polled, simulating eventually consistent views.
type MockRegistryClient struct {
	mutex sync.RWMutex

	clusters    map[interfaces.ClusterID][]interfaces.ContractID
	keys        map[interfaces.ContractID]*interfaces.ContractKey
	txs         map[interfaces.TxHash]*interfaces.TxStatus
	deployments map[interfaces.TxHash]*deployment
	workerKeys  map[interfaces.ClusterID][]byte

	delay            PropagationDelay
	allowTransacting bool
	txCounter        uint64

	clusterCalls int
	keyCalls     int
	statusCalls  int
	clusterErrs  []error

	// OnInstantiated is called once a deployment's key is provisioned. It
	// runs with the registry lock held and must not call back into the client.
	OnInstantiated func(contractID interfaces.ContractID, req interfaces.InstantiateRequest)
	requests       map[interfaces.TxHash]interfaces.InstantiateRequest
}

// NewMockRegistryClient creates a new mock registry client with empty initial state.
// The client starts in a read-only state - call SetTransactOpts to enable transaction operations.
func NewMockRegistryClient() *MockRegistryClient {
	return &MockRegistryClient{
		clusters:    make(map[interfaces.ClusterID][]interfaces.ContractID),
		keys:        make(map[interfaces.ContractID]*interfaces.ContractKey),
		txs:         make(map[interfaces.TxHash]*interfaces.TxStatus),
		deployments: make(map[interfaces.TxHash]*deployment),
		workerKeys:  make(map[interfaces.ClusterID][]byte),
		requests:    make(map[interfaces.TxHash]interfaces.InstantiateRequest),
		delay:       PropagationDelay{InclusionPolls: 1, ClusterPolls: 1, KeyPolls: 1},
	}
}

// SetTransactOpts enables transaction operations on the mock client.
func (m *MockRegistryClient) SetTransactOpts() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.allowTransacting = true
}

// SetPropagationDelay sets the delay applied to subsequently submitted deployments.
func (m *MockRegistryClient) SetPropagationDelay(delay PropagationDelay) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.delay = delay
}

// SetWorkerKey sets the key published for contracts provisioned in cluster.
func (m *MockRegistryClient) SetWorkerKey(clusterID interfaces.ClusterID, pubkey []byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.workerKeys[clusterID] = append([]byte(nil), pubkey...)
}

// RegisterContract lists a contract in a cluster immediately.
func (m *MockRegistryClient) RegisterContract(clusterID interfaces.ClusterID, contractID interfaces.ContractID) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.registerLocked(clusterID, contractID)
}

// ProvisionKey publishes a contract key immediately.
func (m *MockRegistryClient) ProvisionKey(contractID interfaces.ContractID, pubkey []byte) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.keys[contractID] = &interfaces.ContractKey{ContractID: contractID, Pubkey: append([]byte(nil), pubkey...)}
}

// AddTransaction records a transaction status as-is, bypassing the deployment simulation.
func (m *MockRegistryClient) AddTransaction(status interfaces.TxStatus) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	s := status
	m.txs[status.Hash] = &s
}

// FailClusterReads makes the next len(errs) ClusterContracts calls return the given errors.
func (m *MockRegistryClient) FailClusterReads(errs ...error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.clusterErrs = append(m.clusterErrs, errs...)
}

// ClusterCalls returns the number of ClusterContracts calls made so far.
func (m *MockRegistryClient) ClusterCalls() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.clusterCalls
}

// KeyCalls returns the number of ContractKey calls made so far.
func (m *MockRegistryClient) KeyCalls() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.keyCalls
}

// StatusCalls returns the number of TransactionStatus calls made so far.
func (m *MockRegistryClient) StatusCalls() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.statusCalls
}

// DeriveContractID computes the identifier a deployment will be assigned:
// keccak256(codeHash || clusterID || salt).
func DeriveContractID(req interfaces.InstantiateRequest) interfaces.ContractID {
	return interfaces.ContractID(crypto.Keccak256Hash(req.CodeHash[:], req.ClusterID[:], req.Salt))
}

// InstantiateContract records a pending deployment and returns its transaction hash.
func (m *MockRegistryClient) InstantiateContract(ctx context.Context, req interfaces.InstantiateRequest) (interfaces.TxHash, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if !m.allowTransacting {
		return interfaces.TxHash{}, ErrNoTransactOpts
	}

	m.txCounter++
	var counter [8]byte
	binary.BigEndian.PutUint64(counter[:], m.txCounter)
	hash := interfaces.TxHash(crypto.Keccak256Hash(req.CodeHash[:], req.Salt, counter[:]))

	m.txs[hash] = &interfaces.TxStatus{Hash: hash}
	m.deployments[hash] = &deployment{
		contractID: DeriveContractID(req),
		clusterID:  req.ClusterID,
		delay:      m.delay,
	}
	m.requests[hash] = req
	return hash, nil
}

// TransactionStatus reports a transaction, including it once its inclusion delay has elapsed.
func (m *MockRegistryClient) TransactionStatus(ctx context.Context, hash interfaces.TxHash) (*interfaces.TxStatus, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.statusCalls++

	status, ok := m.txs[hash]
	if !ok {
		return nil, ErrUnknownTransaction
	}

	if d, ok := m.deployments[hash]; ok && !d.included {
		d.statusReads++
		if d.statusReads >= d.delay.InclusionPolls {
			d.included = true
			status.InBlock = true
			status.Events = append(status.Events, interfaces.Event{
				Name:       interfaces.EventInstantiating,
				ContractID: d.contractID,
				ClusterID:  d.clusterID,
			})
		}
	}

	out := *status
	out.Events = append([]interfaces.Event(nil), status.Events...)
	return &out, nil
}

// ClusterContracts lists the contracts registered in a cluster.
func (m *MockRegistryClient) ClusterContracts(ctx context.Context, clusterID interfaces.ClusterID) ([]interfaces.ContractID, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.clusterCalls++

	if len(m.clusterErrs) > 0 {
		err := m.clusterErrs[0]
		m.clusterErrs = m.clusterErrs[1:]
		return nil, err
	}

	for _, d := range m.deployments {
		if d.clusterID != clusterID || !d.included || d.registered || d.delay.Never {
			continue
		}
		d.clusterReads++
		if d.clusterReads >= d.delay.ClusterPolls {
			d.registered = true
			m.registerLocked(clusterID, d.contractID)
		}
	}

	// Return a copy to prevent modification of internal state
	contracts := make([]interfaces.ContractID, len(m.clusters[clusterID]))
	copy(contracts, m.clusters[clusterID])
	return contracts, nil
}

// ContractKey returns the key record of a contract, or nil if not yet provisioned.
func (m *MockRegistryClient) ContractKey(ctx context.Context, contractID interfaces.ContractID) (*interfaces.ContractKey, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.keyCalls++

	for hash, d := range m.deployments {
		if d.contractID != contractID || !d.registered || d.provisioned {
			continue
		}
		d.keyReads++
		if d.keyReads >= d.delay.KeyPolls {
			d.provisioned = true
			m.keys[contractID] = &interfaces.ContractKey{
				ContractID: contractID,
				Pubkey:     append([]byte(nil), m.workerKeys[d.clusterID]...),
			}
			if m.OnInstantiated != nil {
				m.OnInstantiated(contractID, m.requests[hash])
			}
		}
	}

	key, ok := m.keys[contractID]
	if !ok {
		return nil, nil
	}
	out := *key
	return &out, nil
}

func (m *MockRegistryClient) registerLocked(clusterID interfaces.ClusterID, contractID interfaces.ContractID) {
	for _, existing := range m.clusters[clusterID] {
		if existing == contractID {
			return
		}
	}
	m.clusters[clusterID] = append(m.clusters[clusterID], contractID)
}
