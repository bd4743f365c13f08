package flowunit

import (
	"bytes"
	"sync"

	"github.com/bingo1234588/modelbox/engine"
	"github.com/bingo1234588/modelbox/types"
	"github.com/bingo1234588/modelbox/util"
)

// CollapseConfiguration is CollapseFlowUnit's caller-supplied
// configuration: accumulated child payloads are joined with Separator
// back into one buffer at the parent's depth.
type CollapseConfiguration struct {
	InPort    string `mapstructure:"in_port"`
	OutPort   string `mapstructure:"out_port"`
	Separator string `mapstructure:"separator"`
}

type collapseGroup struct {
	parts [][]byte
}

// CollapseFlowUnit is the OutputType=COLLAPSE structural capability
// pairing with ExpandFlowUnit (spec.md §4.6 rule 4): it accumulates
// every child buffer sharing one parent IndexInfo, and on that
// parent's group-flush trigger (a placeholder end-flag child —
// ExpandFlowUnit's last emission per parent), joins them and emits one
// buffer back at the parent's own depth.
type CollapseFlowUnit struct {
	Config CollapseConfiguration

	mu     sync.Mutex
	groups map[*engine.IndexInfo]*collapseGroup

	in  map[string]*engine.Port
	out map[string]*engine.Port
}

// NewCollapseFlowUnit builds an un-configured collapse flowunit.
func NewCollapseFlowUnit() *CollapseFlowUnit {
	return &CollapseFlowUnit{groups: map[*engine.IndexInfo]*collapseGroup{}}
}

func (f *CollapseFlowUnit) Init(inputNames, outputNames []string, config types.Configuration) types.Status {
	attrs := map[string]string(config)
	if err := util.Map2Struct(attrs, &f.Config); err != nil {
		return types.BadConf("collapse flowunit: %v", err)
	}
	if f.Config.Separator == "" {
		f.Config.Separator = ","
	}
	if f.groups == nil {
		f.groups = map[*engine.IndexInfo]*collapseGroup{}
	}
	return types.StatusOK
}

func (f *CollapseFlowUnit) Open() types.Status { return types.StatusOK }

func (f *CollapseFlowUnit) GetDevice() engine.Device { return nil }

// BindPorts attaches the node's actual port set.
func (f *CollapseFlowUnit) BindPorts(in, out map[string]*engine.Port) {
	f.in, f.out = in, out
}

func (f *CollapseFlowUnit) Run(runType engine.RunType) types.Status {
	in, ok := f.in[f.Config.InPort]
	if !ok {
		return types.BadConf("collapse flowunit: unknown input port %q", f.Config.InPort)
	}
	out, ok := f.out[f.Config.OutPort]
	if !ok {
		return types.BadConf("collapse flowunit: unknown output port %q", f.Config.OutPort)
	}

	for _, b := range in.Recv(-1) {
		idx := b.Index()
		parent := idx.InheritInfo().InheritFrom()
		if parent == nil {
			b.SetError(types.BadConf("collapse flowunit: buffer at depth 0 has no expand to close"))
			continue
		}

		f.mu.Lock()
		grp, ok := f.groups[parent]
		if !ok {
			grp = &collapseGroup{}
			f.groups[parent] = grp
		}
		f.mu.Unlock()

		// The group-flush trigger and each child's own terminator are
		// both end-flag placeholders sharing the same inherit info;
		// only the trigger rides the parent's own stream (ExpandFlowUnit
		// builds it from parent.Stream()), so that's what tells them
		// apart.
		if idx.IsEndFlag() && idx.IsPlaceholder() && idx.Stream() == parent.Stream() {
			joined := bytes.Join(grp.parts, []byte(f.Config.Separator))
			out.Send([]*engine.Buffer{engine.NewBuffer(joined, parent)})
			f.mu.Lock()
			delete(f.groups, parent)
			f.mu.Unlock()
			continue
		}
		if idx.IsEndFlag() {
			continue // a child stream's own terminator, not the flush trigger
		}
		grp.parts = append(grp.parts, b.Data)
	}
	return types.StatusOK
}
