package contract

import (
	"context"
	"fmt"

	"github.com/ruteri/tee-confidential-query/interfaces"
	"github.com/ruteri/tee-confidential-query/watcher"
)

// Instantiate submits a deployment through deployer and waits with w until
// the new contract is registered in its cluster and has a key. The returned
// record is valid even when an error is returned after submission.
func Instantiate(ctx context.Context, deployer interfaces.Deployer, w *watcher.Watcher, req interfaces.InstantiateRequest) (*watcher.Record, error) {
	if deployer == nil || w == nil {
		return nil, fmt.Errorf("%w: instantiate requires a deployer and a watcher", interfaces.ErrConfiguration)
	}

	txHash, err := deployer.InstantiateContract(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("submitting deployment: %w", err)
	}
	return w.WaitDeployment(ctx, txHash, req)
}

// Attach creates a handle for a contract the watcher reported Ready. The
// contract id and remote key come from rec; the rest from cfg.
func Attach(rec *watcher.Record, cfg Config) (*Contract, error) {
	if rec == nil || rec.State != watcher.Ready || rec.Key == nil {
		return nil, fmt.Errorf("%w: contract is not ready", interfaces.ErrConfiguration)
	}
	cfg.ContractID = rec.ContractID
	cfg.RemotePubkey = rec.Key.Pubkey
	return New(cfg)
}

// RemoteKey looks up the published key of an existing contract. A contract
// without a provisioned key fails with interfaces.ErrIdentityNotFound.
func RemoteKey(ctx context.Context, keys interfaces.KeyRegistry, id interfaces.ContractID) ([]byte, error) {
	key, err := keys.ContractKey(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reading key registry: %w", err)
	}
	if key == nil || len(key.Pubkey) == 0 {
		return nil, fmt.Errorf("%w: no key provisioned for %s", interfaces.ErrIdentityNotFound, id)
	}
	return key.Pubkey, nil
}
