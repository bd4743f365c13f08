package flowunit

import (
	"bytes"

	"github.com/bingo1234588/modelbox/engine"
	"github.com/bingo1234588/modelbox/types"
	"github.com/bingo1234588/modelbox/util"
)

// ExpandConfiguration is ExpandFlowUnit's caller-supplied
// configuration: every input buffer's payload is split on Separator
// into one child buffer per part.
type ExpandConfiguration struct {
	InPort    string `mapstructure:"in_port"`
	OutPort   string `mapstructure:"out_port"`
	Separator string `mapstructure:"separator"`
}

// ExpandFlowUnit is the OutputType=EXPAND structural capability
// (spec.md §4.6 rule 4): it produces children at parent.Depth+1, one
// per split part, each on its own fresh Stream and each followed by a
// placeholder end-flag buffer ending that child stream. After the last
// part, one more placeholder end-flag buffer, on the parent's own
// Stream, marks the parent group as fully produced — CollapseFlowUnit's
// join trigger.
type ExpandFlowUnit struct {
	Config ExpandConfiguration

	in  map[string]*engine.Port
	out map[string]*engine.Port
}

// NewExpandFlowUnit builds an un-configured expand flowunit.
func NewExpandFlowUnit() *ExpandFlowUnit { return &ExpandFlowUnit{} }

func (f *ExpandFlowUnit) Init(inputNames, outputNames []string, config types.Configuration) types.Status {
	attrs := map[string]string(config)
	if err := util.Map2Struct(attrs, &f.Config); err != nil {
		return types.BadConf("expand flowunit: %v", err)
	}
	if f.Config.Separator == "" {
		f.Config.Separator = ","
	}
	return types.StatusOK
}

func (f *ExpandFlowUnit) Open() types.Status { return types.StatusOK }

func (f *ExpandFlowUnit) GetDevice() engine.Device { return nil }

// BindPorts attaches the node's actual port set.
func (f *ExpandFlowUnit) BindPorts(in, out map[string]*engine.Port) {
	f.in, f.out = in, out
}

func (f *ExpandFlowUnit) Run(runType engine.RunType) types.Status {
	in, ok := f.in[f.Config.InPort]
	if !ok {
		return types.BadConf("expand flowunit: unknown input port %q", f.Config.InPort)
	}
	out, ok := f.out[f.Config.OutPort]
	if !ok {
		return types.BadConf("expand flowunit: unknown output port %q", f.Config.OutPort)
	}

	for _, b := range in.Recv(-1) {
		parent := b.Index()
		if parent.IsEndFlag() {
			continue // a depth-level terminator carries no payload to split
		}
		session := parent.Stream().Session()
		parts := bytes.Split(b.Data, []byte(f.Config.Separator))
		childInherit := engine.NewChildInheritInfo(parent)

		for _, part := range parts {
			childStream := engine.NewStream(session, util.NewID())
			idx := engine.NewIndexInfo(childStream, childInherit, false, false)
			out.Send([]*engine.Buffer{engine.NewBuffer(part, idx)})
			// Synthetic terminator: the data buffer above carries the
			// payload, this placeholder ends the child stream — a
			// consumer must observe the end-flag separately, never by
			// inferring it from the data buffer itself.
			endIdx := engine.NewIndexInfo(childStream, childInherit, true, true)
			out.Send([]*engine.Buffer{engine.NewBuffer(nil, endIdx)})
		}

		// Group-flush trigger: a placeholder end-flag buffer on the
		// parent's own lineage tells CollapseFlowUnit this parent's
		// children are all produced.
		triggerIdx := engine.NewIndexInfo(parent.Stream(), childInherit, true, true)
		out.Send([]*engine.Buffer{engine.NewBuffer(nil, triggerIdx)})
	}
	return types.StatusOK
}
