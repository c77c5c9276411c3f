// Package watcher implements the instantiation readiness state machine.
//
// After a deployment transaction is submitted, a contract is not queryable
// until three independent ledger views have caught up:
//
//	AwaitingBlockInclusion
//	    │  tx included, Instantiating event carries the contract id
//	    ▼
//	AwaitingClusterRegistration
//	    │  contract id listed by ClusterContracts(clusterID)
//	    ▼
//	AwaitingKeyProvision
//	    │  ContractKey(contractID) returns a key
//	    ▼
//	Ready
//
// Failed and TimedOut are the other terminal states. An included transaction
// without an Instantiating event fails at once, before any registry is
// polled.
//
// Each unsatisfied poll waits one PollInterval (default 1s) using a constant
// go-retry backoff; a satisfied stage proceeds to the next one without
// waiting. Before every poll the elapsed monotonic time is compared with
// Timeout (default 120s). Registry read errors are logged and the poll is
// retried on the next interval; results are never cached between polls.
//
// The wait between polls is interrupted by context cancellation. A cancelled
// context ends in Failed with context.Canceled; an expired context deadline
// ends in TimedOut with interfaces.ErrTimeout.
package watcher
