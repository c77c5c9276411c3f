package registry

import (
	"context"

	"github.com/ruteri/tee-confidential-query/interfaces"
	"github.com/stretchr/testify/mock"
)

// MockRegistry mocks the interfaces.RegistryClient interface
type MockRegistry struct {
	mock.Mock
}

// ClusterContracts mocks the ClusterContracts method
func (m *MockRegistry) ClusterContracts(ctx context.Context, clusterID interfaces.ClusterID) ([]interfaces.ContractID, error) {
	args := m.Called(ctx, clusterID)
	ids, _ := args.Get(0).([]interfaces.ContractID)
	return ids, args.Error(1)
}

// ContractKey mocks the ContractKey method
func (m *MockRegistry) ContractKey(ctx context.Context, contractID interfaces.ContractID) (*interfaces.ContractKey, error) {
	args := m.Called(ctx, contractID)
	key, _ := args.Get(0).(*interfaces.ContractKey)
	return key, args.Error(1)
}

// TransactionStatus mocks the TransactionStatus method
func (m *MockRegistry) TransactionStatus(ctx context.Context, hash interfaces.TxHash) (*interfaces.TxStatus, error) {
	args := m.Called(ctx, hash)
	status, _ := args.Get(0).(*interfaces.TxStatus)
	return status, args.Error(1)
}

// InstantiateContract mocks the InstantiateContract method
func (m *MockRegistry) InstantiateContract(ctx context.Context, req interfaces.InstantiateRequest) (interfaces.TxHash, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(interfaces.TxHash), args.Error(1)
}
