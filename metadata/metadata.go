package metadata

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ruteri/tee-confidential-query/interfaces"
)

// SelectorSize is the length of an operation selector.
const SelectorSize = 4

var ErrInvalidMetadata = errors.New("invalid contract metadata")

// Selector identifies an operation inside a call payload.
type Selector [SelectorSize]byte

func (s Selector) String() string { return hexutil.Encode(s[:]) }

// Arg describes one declared operation argument.
type Arg struct {
	Label string
	Type  string
}

// Operation is one callable message or constructor of a contract.
type Operation struct {
	Name     string
	Index    int
	Selector Selector
	Mutates  bool
	Payable  bool
	Args     []Arg

	// ReturnType is empty for constructors and messages returning nothing.
	ReturnType string
}

// EncodeCall prefixes the already encoded arguments with the selector.
func (op Operation) EncodeCall(args []byte) []byte {
	payload := make([]byte, 0, SelectorSize+len(args))
	payload = append(payload, op.Selector[:]...)
	return append(payload, args...)
}

// OperationRef names an operation either by label or by position.
type OperationRef struct {
	name    string
	index   int
	byIndex bool
}

func ByName(name string) OperationRef { return OperationRef{name: name} }

func ByIndex(index int) OperationRef { return OperationRef{index: index, byIndex: true} }

func (r OperationRef) String() string {
	if r.byIndex {
		return fmt.Sprintf("#%d", r.index)
	}
	return r.name
}

// OperationTable is an immutable, ordered set of operations. It is safe for
// concurrent use.
type OperationTable struct {
	ops    []Operation
	byName map[string]int
}

// NewOperationTable indexes ops in order. Names and selectors must be unique.
func NewOperationTable(ops []Operation) (*OperationTable, error) {
	t := &OperationTable{
		ops:    make([]Operation, len(ops)),
		byName: make(map[string]int, len(ops)),
	}
	selectors := make(map[Selector]string, len(ops))
	for i, op := range ops {
		if op.Name == "" {
			return nil, fmt.Errorf("%w: operation %d has no label", ErrInvalidMetadata, i)
		}
		if _, dup := t.byName[op.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate operation %q", ErrInvalidMetadata, op.Name)
		}
		if other, dup := selectors[op.Selector]; dup {
			return nil, fmt.Errorf("%w: operations %q and %q share selector %s", ErrInvalidMetadata, other, op.Name, op.Selector)
		}
		op.Index = i
		op.Args = append([]Arg(nil), op.Args...)
		t.ops[i] = op
		t.byName[op.Name] = i
		selectors[op.Selector] = op.Name
	}
	return t, nil
}

// Resolve looks up an operation. Unknown references fail with
// interfaces.ErrOperationNotFound before anything is sent.
func (t *OperationTable) Resolve(ref OperationRef) (Operation, error) {
	if t == nil {
		return Operation{}, fmt.Errorf("%w: %s (empty table)", interfaces.ErrOperationNotFound, ref)
	}
	if ref.byIndex {
		if ref.index < 0 || ref.index >= len(t.ops) {
			return Operation{}, fmt.Errorf("%w: %s", interfaces.ErrOperationNotFound, ref)
		}
		return t.ops[ref.index], nil
	}
	i, ok := t.byName[ref.name]
	if !ok {
		return Operation{}, fmt.Errorf("%w: %s", interfaces.ErrOperationNotFound, ref)
	}
	return t.ops[i], nil
}

func (t *OperationTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.ops)
}

// Names lists operation labels in declaration order.
func (t *OperationTable) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, len(t.ops))
	for i, op := range t.ops {
		names[i] = op.Name
	}
	return names
}

// Metadata is the parsed description of a deployed contract's code.
type Metadata struct {
	// SourceHash is the code hash declared by the document, zero if absent.
	SourceHash   interfaces.CodeHash
	Name         string
	Version      string
	Constructors *OperationTable
	Messages     *OperationTable
}

type typeSpec struct {
	DisplayName []string `json:"displayName"`
}

func (t *typeSpec) String() string {
	if t == nil {
		return ""
	}
	return strings.Join(t.DisplayName, "::")
}

type argSpec struct {
	Label string    `json:"label"`
	Type  *typeSpec `json:"type"`
}

type operationSpec struct {
	Label      string    `json:"label"`
	Selector   string    `json:"selector"`
	Mutates    bool      `json:"mutates"`
	Payable    bool      `json:"payable"`
	Args       []argSpec `json:"args"`
	ReturnType *typeSpec `json:"returnType"`
}

type document struct {
	Source struct {
		Hash string `json:"hash"`
	} `json:"source"`
	Contract struct {
		Name    string `json:"name"`
		Version string `json:"version"`
	} `json:"contract"`
	Spec *struct {
		Constructors []operationSpec `json:"constructors"`
		Messages     []operationSpec `json:"messages"`
	} `json:"spec"`
}

// Parse decodes a contract metadata JSON document.
func Parse(data []byte) (*Metadata, error) {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMetadata, err)
	}
	if doc.Spec == nil {
		return nil, fmt.Errorf("%w: missing spec section", ErrInvalidMetadata)
	}

	md := &Metadata{
		Name:    doc.Contract.Name,
		Version: doc.Contract.Version,
	}
	if doc.Source.Hash != "" {
		h, err := interfaces.NewCodeHashFromHex(doc.Source.Hash)
		if err != nil {
			return nil, fmt.Errorf("%w: source hash: %v", ErrInvalidMetadata, err)
		}
		md.SourceHash = h
	}

	var err error
	if md.Constructors, err = buildTable(doc.Spec.Constructors); err != nil {
		return nil, fmt.Errorf("constructors: %w", err)
	}
	if md.Messages, err = buildTable(doc.Spec.Messages); err != nil {
		return nil, fmt.Errorf("messages: %w", err)
	}
	return md, nil
}

func buildTable(specs []operationSpec) (*OperationTable, error) {
	ops := make([]Operation, 0, len(specs))
	for _, s := range specs {
		sel, err := parseSelector(s.Selector)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrInvalidMetadata, s.Label, err)
		}
		op := Operation{
			Name:       s.Label,
			Selector:   sel,
			Mutates:    s.Mutates,
			Payable:    s.Payable,
			ReturnType: s.ReturnType.String(),
		}
		for _, a := range s.Args {
			op.Args = append(op.Args, Arg{Label: a.Label, Type: a.Type.String()})
		}
		ops = append(ops, op)
	}
	return NewOperationTable(ops)
}

func parseSelector(s string) (Selector, error) {
	var sel Selector
	b, err := hexutil.Decode(s)
	if err != nil {
		return sel, err
	}
	if len(b) != SelectorSize {
		return sel, fmt.Errorf("selector must be %d bytes, got %d", SelectorSize, len(b))
	}
	copy(sel[:], b)
	return sel, nil
}
