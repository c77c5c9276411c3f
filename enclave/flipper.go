package enclave

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/ruteri/tee-confidential-query/interfaces"
	"github.com/ruteri/tee-confidential-query/metadata"
)

// FlipperMetadata describes the Flipper contract.
const FlipperMetadata = `{
  "contract": {"name": "flipper", "version": "0.1.0"},
  "spec": {
    "constructors": [
      {"label": "new", "selector": "0x9bae9d5e",
       "args": [{"label": "init_value", "type": {"displayName": ["bool"]}}]}
    ],
    "messages": [
      {"label": "flip", "selector": "0x633aa551", "mutates": true, "args": []},
      {"label": "get", "selector": "0x2f865bd9", "mutates": false,
       "returnType": {"displayName": ["bool"]}},
      {"label": "whoami", "selector": "0x8f3ba6c2", "mutates": false,
       "returnType": {"displayName": ["AccountId"]}},
      {"label": "echo", "selector": "0x5b7ea4b6", "mutates": false,
       "args": [{"label": "data", "type": {"displayName": ["Vec"]}}],
       "returnType": {"displayName": ["Vec"]}}
    ]
  }
}`

// SelectorMux routes a query payload to a function by its 4-byte selector.
// Messages declared as mutating are refused; queries are read-only.
type SelectorMux struct {
	routes map[metadata.Selector]route
}

type route struct {
	op metadata.Operation
	fn func(ctx context.Context, origin, args []byte) ([]byte, error)
}

// NewSelectorMux binds functions to the messages of a metadata table by
// label. Every label in fns must exist in the table.
func NewSelectorMux(messages *metadata.OperationTable, fns map[string]func(ctx context.Context, origin, args []byte) ([]byte, error)) (*SelectorMux, error) {
	mux := &SelectorMux{routes: make(map[metadata.Selector]route, messages.Len())}
	for _, name := range messages.Names() {
		op, err := messages.Resolve(metadata.ByName(name))
		if err != nil {
			return nil, err
		}
		mux.routes[op.Selector] = route{op: op, fn: fns[name]}
	}
	for name := range fns {
		if _, err := messages.Resolve(metadata.ByName(name)); err != nil {
			return nil, err
		}
	}
	return mux, nil
}

func (m *SelectorMux) Query(ctx context.Context, origin []byte, payload []byte) ([]byte, error) {
	if len(payload) < metadata.SelectorSize {
		return nil, &interfaces.QueryError{Code: CodeUnknownSelector, Message: "payload shorter than a selector"}
	}
	var sel metadata.Selector
	copy(sel[:], payload)

	r, ok := m.routes[sel]
	if !ok {
		return nil, &interfaces.QueryError{Code: CodeUnknownSelector, Message: fmt.Sprintf("no message with selector %s", sel)}
	}
	if r.op.Mutates {
		return nil, &interfaces.QueryError{Code: CodeMutatingQuery, Message: fmt.Sprintf("message %s mutates state and cannot be queried", r.op.Name)}
	}
	if r.fn == nil {
		return nil, &interfaces.QueryError{Code: CodeUnknownSelector, Message: fmt.Sprintf("message %s is not implemented", r.op.Name)}
	}
	return r.fn(ctx, origin, payload[metadata.SelectorSize:])
}

// Flipper is a minimal contract holding one boolean.
type Flipper struct {
	*SelectorMux

	mu    sync.RWMutex
	value bool
}

// NewFlipper runs the "new" constructor. ctorPayload is the constructor
// selector followed by one byte holding the initial value.
func NewFlipper(ctorPayload []byte) (*Flipper, error) {
	md, err := metadata.Parse([]byte(FlipperMetadata))
	if err != nil {
		return nil, err
	}
	ctor, err := md.Constructors.Resolve(metadata.ByName("new"))
	if err != nil {
		return nil, err
	}
	if len(ctorPayload) != metadata.SelectorSize+1 || !bytes.Equal(ctorPayload[:metadata.SelectorSize], ctor.Selector[:]) {
		return nil, fmt.Errorf("flipper: constructor payload must be %s followed by one byte", ctor.Selector)
	}

	f := &Flipper{value: ctorPayload[metadata.SelectorSize] != 0}
	f.SelectorMux, err = NewSelectorMux(md.Messages, map[string]func(context.Context, []byte, []byte) ([]byte, error){
		"get":    f.get,
		"whoami": whoami,
		"echo":   echo,
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Flip toggles the value. It is the out-of-band equivalent of a transaction.
func (f *Flipper) Flip() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.value = !f.value
}

func (f *Flipper) get(ctx context.Context, origin, args []byte) ([]byte, error) {
	if len(args) != 0 {
		return nil, &interfaces.QueryError{Code: CodeBadArguments, Message: "get takes no arguments"}
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.value {
		return []byte{1}, nil
	}
	return []byte{0}, nil
}

func whoami(ctx context.Context, origin, args []byte) ([]byte, error) {
	return append([]byte(nil), origin...), nil
}

func echo(ctx context.Context, origin, args []byte) ([]byte, error) {
	return append([]byte(nil), args...), nil
}

// FlipperConstructor builds a Flipper for an instantiation request. It can
// be passed to Runtime.InstantiateHook.
func FlipperConstructor(req interfaces.InstantiateRequest) (Handler, error) {
	return NewFlipper(req.ConstructorPayload)
}
