package watcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/tee-confidential-query/interfaces"
	"github.com/ruteri/tee-confidential-query/metrics"
	"github.com/sethvargo/go-retry"
	"go.uber.org/atomic"
)

const (
	DefaultTimeout      = 120 * time.Second
	DefaultPollInterval = time.Second
)

// State is the position of one deployment in the instantiation lifecycle.
type State int32

const (
	AwaitingBlockInclusion State = iota
	AwaitingClusterRegistration
	AwaitingKeyProvision
	Ready
	Failed
	TimedOut
)

func (s State) String() string {
	switch s {
	case AwaitingBlockInclusion:
		return "AwaitingBlockInclusion"
	case AwaitingClusterRegistration:
		return "AwaitingClusterRegistration"
	case AwaitingKeyProvision:
		return "AwaitingKeyProvision"
	case Ready:
		return "Ready"
	case Failed:
		return "Failed"
	case TimedOut:
		return "TimedOut"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// Terminal reports whether no further transitions can happen.
func (s State) Terminal() bool {
	return s == Ready || s == Failed || s == TimedOut
}

// Record is the watcher's view of one deployment.
type Record struct {
	TxHash     interfaces.TxHash
	ContractID interfaces.ContractID
	ClusterID  interfaces.ClusterID
	State      State

	// Salt is the deployment salt when the watch was started from the
	// instantiation request, nil otherwise.
	Salt []byte

	// Key is set once the state reaches Ready.
	Key *interfaces.ContractKey

	// Polls counts cluster and key registry reads.
	Polls int
}

// Config controls polling. Zero values are replaced with defaults.
type Config struct {
	Timeout      time.Duration
	PollInterval time.Duration
	Log          *slog.Logger

	// OnTransition, if set, is called synchronously on every state change.
	OnTransition func(rec Record, from, to State)
}

// Watcher detects when a freshly deployed contract becomes queryable.
// A Watcher is stateless between calls and may be shared.
type Watcher struct {
	tracker  interfaces.TxTracker
	clusters interfaces.ClusterRegistry
	keys     interfaces.KeyRegistry
	cfg      Config
	log      *slog.Logger
}

// New creates a watcher. All three registries are required.
func New(tracker interfaces.TxTracker, clusters interfaces.ClusterRegistry, keys interfaces.KeyRegistry, cfg Config) (*Watcher, error) {
	if tracker == nil || clusters == nil || keys == nil {
		return nil, fmt.Errorf("%w: watcher requires transaction, cluster and key registries", interfaces.ErrConfiguration)
	}
	if cfg.Timeout < 0 || cfg.PollInterval < 0 {
		return nil, fmt.Errorf("%w: negative watcher durations", interfaces.ErrConfiguration)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}

	return &Watcher{
		tracker:  tracker,
		clusters: clusters,
		keys:     keys,
		cfg:      cfg,
		log:      log.With("component", "watcher"),
	}, nil
}

// NewFromRegistry creates a watcher backed by a single registry client.
func NewFromRegistry(reg interfaces.RegistryClient, cfg Config) (*Watcher, error) {
	if reg == nil {
		return nil, fmt.Errorf("%w: nil registry", interfaces.ErrConfiguration)
	}
	return New(reg, reg, reg, cfg)
}

// Instantiation is one in-flight watch started with Start.
type Instantiation struct {
	state atomic.Int32
	done  chan struct{}
	rec   Record
	err   error
}

// State returns the current state. It is safe to call concurrently.
func (i *Instantiation) State() State {
	return State(i.state.Load())
}

// Done is closed once the watch has reached a terminal state.
func (i *Instantiation) Done() <-chan struct{} {
	return i.done
}

// Result blocks until the watch finishes and returns the final record.
func (i *Instantiation) Result() (*Record, error) {
	<-i.done
	rec := i.rec
	return &rec, i.err
}

// Start watches the deployment transaction txHash in the background.
func (w *Watcher) Start(ctx context.Context, txHash interfaces.TxHash) *Instantiation {
	inst := &Instantiation{done: make(chan struct{})}
	go func() {
		defer close(inst.done)
		inst.rec, inst.err = w.run(ctx, inst, Record{TxHash: txHash})
	}()
	return inst
}

// WaitReady blocks until the contract deployed by txHash is registered in
// its cluster and has a provisioned key, or until the watch fails.
//
// Errors:
//   - interfaces.ErrIdentityNotFound: the included transaction has no Instantiating event
//   - interfaces.ErrTimeout: the configured timeout or the context deadline elapsed
//   - context.Canceled: ctx was cancelled
func (w *Watcher) WaitReady(ctx context.Context, txHash interfaces.TxHash) (*Record, error) {
	inst := &Instantiation{}
	rec, err := w.run(ctx, inst, Record{TxHash: txHash})
	return &rec, err
}

// WaitDeployment is WaitReady for a deployment submitted with req. The
// record carries the request's salt.
func (w *Watcher) WaitDeployment(ctx context.Context, txHash interfaces.TxHash, req interfaces.InstantiateRequest) (*Record, error) {
	inst := &Instantiation{}
	rec, err := w.run(ctx, inst, Record{
		TxHash:    txHash,
		ClusterID: req.ClusterID,
		Salt:      append([]byte(nil), req.Salt...),
	})
	return &rec, err
}

var errNotYet = errors.New("not yet")

func (w *Watcher) run(ctx context.Context, inst *Instantiation, rec Record) (Record, error) {
	start := time.Now()
	rec.State = AwaitingBlockInclusion
	inst.state.Store(int32(rec.State))
	log := w.log.With("tx", rec.TxHash.String())

	transition := func(to State) {
		from := rec.State
		rec.State = to
		inst.state.Store(int32(to))
		log.Debug("instantiation state changed", "from", from.String(), "to", to.String())
		if w.cfg.OnTransition != nil {
			w.cfg.OnTransition(rec, from, to)
		}
	}

	backoff := retry.NewConstant(w.cfg.PollInterval)
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		if elapsed := time.Since(start); elapsed >= w.cfg.Timeout {
			return fmt.Errorf("%w after %s in state %s", interfaces.ErrTimeout, elapsed.Round(time.Millisecond), rec.State)
		}

		// A satisfied stage falls through to the next one without waiting;
		// only an unsatisfied poll suspends until the next interval.
		for {
			advanced, err := w.step(ctx, log, &rec, transition)
			if err != nil {
				return err
			}
			if rec.State == Ready {
				return nil
			}
			if !advanced {
				return retry.RetryableError(errNotYet)
			}
		}
	})

	switch {
	case err == nil:
		log.Info("contract instantiated",
			"contract", rec.ContractID.String(),
			"polls", rec.Polls,
			"duration", time.Since(start))
	case errors.Is(err, interfaces.ErrTimeout):
		transition(TimedOut)
	case errors.Is(err, context.DeadlineExceeded):
		transition(TimedOut)
		err = fmt.Errorf("%w: %w", interfaces.ErrTimeout, err)
	default:
		transition(Failed)
	}
	metrics.WatcherFinished(rec.State.String())

	if err != nil {
		log.Warn("instantiation watch ended", "state", rec.State.String(), "err", err)
	}
	return rec, err
}

// step performs one poll for the current state. It reports whether the
// state advanced. Registry read errors are logged and treated as "not yet".
func (w *Watcher) step(ctx context.Context, log *slog.Logger, rec *Record, transition func(State)) (bool, error) {
	switch rec.State {
	case AwaitingBlockInclusion:
		status, err := w.tracker.TransactionStatus(ctx, rec.TxHash)
		if err != nil {
			log.Debug("transaction status unavailable", "err", err)
			return false, nil
		}
		if status == nil || !status.InBlock {
			return false, nil
		}
		ev, ok := status.FindEvent(interfaces.EventInstantiating)
		if !ok {
			return false, fmt.Errorf("%w: %s", interfaces.ErrIdentityNotFound, rec.TxHash)
		}
		rec.ContractID = ev.ContractID
		rec.ClusterID = ev.ClusterID
		transition(AwaitingClusterRegistration)
		return true, nil

	case AwaitingClusterRegistration:
		rec.Polls++
		metrics.WatcherPolled(rec.State.String())
		ids, err := w.clusters.ClusterContracts(ctx, rec.ClusterID)
		if err != nil {
			log.Debug("cluster registry read failed", "err", err)
			return false, nil
		}
		for _, id := range ids {
			if id == rec.ContractID {
				transition(AwaitingKeyProvision)
				return true, nil
			}
		}
		return false, nil

	case AwaitingKeyProvision:
		rec.Polls++
		metrics.WatcherPolled(rec.State.String())
		key, err := w.keys.ContractKey(ctx, rec.ContractID)
		if err != nil {
			log.Debug("key registry read failed", "err", err)
			return false, nil
		}
		if key == nil {
			return false, nil
		}
		rec.Key = key
		transition(Ready)
		return true, nil

	default:
		return false, fmt.Errorf("watcher in terminal state %s", rec.State)
	}
}
