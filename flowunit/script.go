package flowunit

import (
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/bingo1234588/modelbox/engine"
	"github.com/bingo1234588/modelbox/types"
	"github.com/bingo1234588/modelbox/util"
)

// ScriptConfiguration is ScriptFlowUnit's caller-supplied
// configuration: a JS transform run once per input buffer.
type ScriptConfiguration struct {
	// Script body; receives `data` (the buffer payload as a string)
	// and `meta` (its string metadata map), and must evaluate to the
	// transformed payload string.
	Script string `mapstructure:"script"`
	// InPort/OutPort name the single port pair this flowunit reads
	// from and writes to.
	InPort  string `mapstructure:"in_port"`
	OutPort string `mapstructure:"out_port"`
}

// ScriptFlowUnit is a NORMAL flowunit capability that runs a
// user-supplied goja script against every buffer's payload, grounded
// on components/js/js_engine.go's pooled-VM pattern.
type ScriptFlowUnit struct {
	Config ScriptConfiguration

	vmPool sync.Pool

	in  map[string]*engine.Port
	out map[string]*engine.Port
}

// NewScriptFlowUnit builds an un-configured script flowunit.
func NewScriptFlowUnit() *ScriptFlowUnit { return &ScriptFlowUnit{} }

// Init decodes the configuration and primes the VM pool.
func (f *ScriptFlowUnit) Init(inputNames, outputNames []string, config types.Configuration) types.Status {
	attrs := map[string]string(config)
	if err := util.Map2Struct(attrs, &f.Config); err != nil {
		return types.BadConf("script flowunit: %v", err)
	}
	f.vmPool = sync.Pool{New: func() interface{} { return goja.New() }}
	return types.StatusOK
}

// Open is a no-op; the VM pool is primed lazily on first Run.
func (f *ScriptFlowUnit) Open() types.Status { return types.StatusOK }

// GetDevice reports no device affinity.
func (f *ScriptFlowUnit) GetDevice() engine.Device { return nil }

// BindPorts attaches the node's actual port set.
func (f *ScriptFlowUnit) BindPorts(in, out map[string]*engine.Port) {
	f.in, f.out = in, out
}

// Run evaluates the configured script against every pending buffer on
// InPort and forwards the transformed result on OutPort, preserving
// the buffer's IndexInfo (same lineage, new payload).
func (f *ScriptFlowUnit) Run(runType engine.RunType) types.Status {
	port, ok := f.in[f.Config.InPort]
	if !ok {
		return types.BadConf("script flowunit: unknown input port %q", f.Config.InPort)
	}
	out, ok := f.out[f.Config.OutPort]
	if !ok {
		return types.BadConf("script flowunit: unknown output port %q", f.Config.OutPort)
	}

	for _, b := range port.Recv(-1) {
		result, err := f.eval(b)
		if err != nil {
			b.SetError(fmt.Errorf("script flowunit: %w", err))
			out.Send([]*engine.Buffer{b})
			continue
		}
		transformed := engine.NewBuffer([]byte(result), b.Index())
		transformed.Meta = b.Meta
		out.Send([]*engine.Buffer{transformed})
	}
	return types.StatusOK
}

func (f *ScriptFlowUnit) eval(b *engine.Buffer) (string, error) {
	vmIface := f.vmPool.Get()
	vm := vmIface.(*goja.Runtime)
	defer f.vmPool.Put(vm)

	if err := vm.Set("data", string(b.Data)); err != nil {
		return "", err
	}
	if err := vm.Set("meta", map[string]string(b.Meta)); err != nil {
		return "", err
	}
	value, err := vm.RunString(f.Config.Script)
	if err != nil {
		return "", err
	}
	return value.String(), nil
}
