package flowunit

import (
	"fmt"
	"sync"

	"github.com/bingo1234588/modelbox/engine"
	"github.com/bingo1234588/modelbox/types"
)

// NewCapabilityFunc builds a fresh, unconfigured capability instance.
type NewCapabilityFunc func() engine.Capability

// PortBinder is implemented by every capability in this package: the
// plugin loader (out of scope for this module — spec.md §1) is
// responsible for calling BindPorts once a node's ports exist.
type PortBinder interface {
	BindPorts(in, out map[string]*engine.Port)
}

// entry pairs one flowunit kind's static metadata with its
// constructor, mirroring the (desc, create-func) pair
// MockFlow.AddFlowUnitDesc registers in the reference test suite.
type entry struct {
	desc *types.FlowUnitDesc
	new  NewCapabilityFunc
}

// Registry is an in-process stand-in for the out-of-scope plugin
// loader named in spec.md §1: it maps a flowunit name to its declared
// metadata and a constructor, the "named-contract external" the core
// reaches through.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]entry
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: map[string]entry{}}
}

// Add registers a flowunit kind. Registering the same name twice is a
// programming error in the caller and returns an error rather than
// silently overwriting.
func (r *Registry) Add(desc *types.FlowUnitDesc, newFunc NewCapabilityFunc) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[desc.Name]; ok {
		return fmt.Errorf("flowunit %q already registered", desc.Name)
	}
	r.entries[desc.Name] = entry{desc: desc, new: newFunc}
	return nil
}

// Descs returns every registered flowunit's metadata, keyed by name —
// the shape BuildGraph/CheckGraph consume (types.FlowUnitDesc map).
func (r *Registry) Descs() map[string]*types.FlowUnitDesc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]*types.FlowUnitDesc, len(r.entries))
	for name, e := range r.entries {
		out[name] = e.desc
	}
	return out
}

// New instantiates a fresh capability for the named flowunit kind.
func (r *Registry) New(name string) (engine.Capability, error) {
	r.mu.RLock()
	e, ok := r.entries[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("flowunit %q not registered", name)
	}
	return e.new(), nil
}

// NewDefaultRegistry builds a registry pre-populated with this
// package's demonstration capabilities (condition, script, expand,
// collapse) — the caller-supplied capability set spec.md §1 leaves
// unspecified.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	_ = r.Add(&types.FlowUnitDesc{
		Name:          "condition",
		InputPorts:    []string{"In_1"},
		OutputPorts:   []string{"Out_1", "Out_2"},
		FlowType:      types.STREAM,
		ConditionType: types.IfElse,
	}, func() engine.Capability { return NewConditionFlowUnit() })
	_ = r.Add(&types.FlowUnitDesc{
		Name:        "script",
		InputPorts:  []string{"In_1"},
		OutputPorts: []string{"Out_1"},
		FlowType:    types.NORMAL,
	}, func() engine.Capability { return NewScriptFlowUnit() })
	_ = r.Add(&types.FlowUnitDesc{
		Name:        "expand",
		InputPorts:  []string{"In_1"},
		OutputPorts: []string{"Out_1"},
		FlowType:    types.STREAM,
		OutputType:  types.Expand,
	}, func() engine.Capability { return NewExpandFlowUnit() })
	_ = r.Add(&types.FlowUnitDesc{
		Name:        "collapse",
		InputPorts:  []string{"In_1"},
		OutputPorts: []string{"Out_1"},
		FlowType:    types.STREAM,
		OutputType:  types.Collapse,
	}, func() engine.Capability { return NewCollapseFlowUnit() })
	return r
}
