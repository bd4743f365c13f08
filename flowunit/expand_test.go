package flowunit

import (
	"testing"

	"github.com/bingo1234588/modelbox/engine"
)

func TestExpandFlowUnitSplitsIntoChildStreamsWithTrigger(t *testing.T) {
	f := NewExpandFlowUnit()
	f.Config = ExpandConfiguration{InPort: "In_1", OutPort: "Out_1", Separator: ","}

	in := newBoundPorts("In_1")
	out := newBoundPorts("Out_1")
	f.BindPorts(in, out)

	session := engine.NewSession("s1")
	stream := engine.NewStream(session, "st1")
	parent := engine.NewIndexInfo(stream, engine.NewRootInheritInfo(), false, false)
	in["In_1"].Send([]*engine.Buffer{engine.NewBuffer([]byte("a,b,c"), parent)})

	if st := f.Run(0); !st.OK() {
		t.Fatalf("run: %v", st)
	}

	got := out["Out_1"].Recv(-1)
	// 3 parts * (data + end-flag) + 1 trailing group-flush trigger = 7.
	if len(got) != 7 {
		t.Fatalf("expected 7 emitted buffers (3 data+end pairs plus one trigger), got %d", len(got))
	}

	var dataParts []string
	var triggers int
	for _, b := range got {
		idx := b.Index()
		if idx.IsEndFlag() && idx.IsPlaceholder() && idx.InheritInfo().InheritFrom() == parent && idx.Stream() == parent.Stream() {
			triggers++
			continue
		}
		if !idx.IsEndFlag() {
			dataParts = append(dataParts, string(b.Data))
			if idx.InheritInfo().Depth() != parent.InheritInfo().Depth()+1 {
				t.Fatalf("expected a child buffer one depth below its parent, got depth %d vs parent depth %d",
					idx.InheritInfo().Depth(), parent.InheritInfo().Depth())
			}
		}
	}
	if triggers != 1 {
		t.Fatalf("expected exactly one group-flush trigger, got %d", triggers)
	}
	if len(dataParts) != 3 || dataParts[0] != "a" || dataParts[1] != "b" || dataParts[2] != "c" {
		t.Fatalf("expected parts a,b,c in order, got %v", dataParts)
	}
}

func TestExpandFlowUnitSkipsParentEndFlagBuffers(t *testing.T) {
	f := NewExpandFlowUnit()
	f.Config = ExpandConfiguration{InPort: "In_1", OutPort: "Out_1", Separator: ","}

	in := newBoundPorts("In_1")
	out := newBoundPorts("Out_1")
	f.BindPorts(in, out)

	session := engine.NewSession("s1")
	stream := engine.NewStream(session, "st1")
	endIdx := engine.NewIndexInfo(stream, engine.NewRootInheritInfo(), true, true)
	in["In_1"].Send([]*engine.Buffer{engine.NewBuffer(nil, endIdx)})

	if st := f.Run(0); !st.OK() {
		t.Fatalf("run: %v", st)
	}
	if got := out["Out_1"].Recv(-1); len(got) != 0 {
		t.Fatalf("expected a parent end-flag to produce nothing, got %d buffers", len(got))
	}
}
