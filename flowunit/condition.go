// Package flowunit holds demonstration flowunit capabilities: caller-
// supplied implementations of engine.Capability that a worker-pool
// scheduler (out of scope for this module — spec.md §1) would invoke
// against a node's ports. They exist to give the engine something
// concrete to route data through in tests and examples, not as part
// of the core's correctness contract.
package flowunit

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/bingo1234588/modelbox/engine"
	"github.com/bingo1234588/modelbox/types"
	"github.com/bingo1234588/modelbox/util"
)

// ConditionCase pairs a boolean expression with the output port to
// route to when it evaluates true, evaluated in order (first match
// wins) — the IF_ELSE condition opener shape of spec.md §4.6 rule 3.
type ConditionCase struct {
	Expr string `mapstructure:"expr"`
	Port string `mapstructure:"port"`
}

// ConditionConfiguration is ConditionFlowUnit's caller-supplied
// configuration, decoded via mapstructure from the node's attribute
// bag (grounded on components/filter/switch_node.go's SwitchNode).
type ConditionConfiguration struct {
	Cases       []ConditionCase `mapstructure:"cases"`
	DefaultPort string          `mapstructure:"default_port"`
}

type compiledCase struct {
	port    string
	program *vm.Program
}

// ConditionFlowUnit is a STREAM, IF_ELSE-typed capability: each input
// buffer is routed to exactly one declared output port by evaluating
// its configured case expressions in order, falling back to
// DefaultPort when none match. The buffer's payload is exposed to the
// expression environment as `data`, its metadata as `meta`.
type ConditionFlowUnit struct {
	Config ConditionConfiguration
	cases  []compiledCase

	in  map[string]*engine.Port
	out map[string]*engine.Port
}

// NewConditionFlowUnit builds an un-configured condition flowunit.
func NewConditionFlowUnit() *ConditionFlowUnit { return &ConditionFlowUnit{} }

// Init compiles every case expression once, failing BADCONF on the
// first one that doesn't compile.
func (f *ConditionFlowUnit) Init(inputNames, outputNames []string, config types.Configuration) types.Status {
	attrs := map[string]string(config)
	if err := util.Map2Struct(attrs, &f.Config); err != nil {
		return types.BadConf("condition flowunit: %v", err)
	}
	f.cases = f.cases[:0]
	for _, c := range f.Config.Cases {
		program, err := expr.Compile(c.Expr, expr.AllowUndefinedVariables(), expr.AsBool())
		if err != nil {
			return types.BadConf("condition flowunit: case %q: %v", c.Expr, err)
		}
		f.cases = append(f.cases, compiledCase{port: c.Port, program: program})
	}
	return types.StatusOK
}

// Open is a no-op; all compilation happens in Init.
func (f *ConditionFlowUnit) Open() types.Status { return types.StatusOK }

// GetDevice reports no device affinity: this capability is pure CPU
// logic with no device-bound resources.
func (f *ConditionFlowUnit) GetDevice() engine.Device { return nil }

// BindPorts attaches the node's actual port set, wired in by whatever
// instantiates this capability (a scheduler, or a test harness).
func (f *ConditionFlowUnit) BindPorts(in, out map[string]*engine.Port) {
	f.in, f.out = in, out
}

// Run evaluates every pending buffer on every input port against the
// compiled cases in order and forwards it to the first matching
// output port, or DefaultPort if none match. A buffer that matches no
// case and has no DefaultPort configured, or whose chosen port is not
// bound, gets an error attached and is not forwarded on any port.
func (f *ConditionFlowUnit) Run(runType engine.RunType) types.Status {
	for _, port := range f.in {
		for _, b := range port.Recv(-1) {
			dest := f.route(b)
			if dest == "" {
				b.SetError(fmt.Errorf("condition flowunit: no case matched and no default_port configured"))
				continue
			}
			out, ok := f.out[dest]
			if !ok {
				b.SetError(fmt.Errorf("condition flowunit: unknown output port %q", dest))
				continue
			}
			out.Send([]*engine.Buffer{b})
		}
	}
	return types.StatusOK
}

func (f *ConditionFlowUnit) route(b *engine.Buffer) string {
	env := map[string]interface{}{
		"data": string(b.Data),
		"meta": map[string]string(b.Meta),
	}
	for _, c := range f.cases {
		out, err := vm.Run(c.program, env)
		if err != nil {
			continue
		}
		if matched, ok := out.(bool); ok && matched {
			return c.port
		}
	}
	return f.Config.DefaultPort
}
