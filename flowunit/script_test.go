package flowunit

import (
	"sync"
	"testing"

	"github.com/dop251/goja"

	"github.com/bingo1234588/modelbox/engine"
)

func TestScriptFlowUnitTransformsPayloadPreservingLineage(t *testing.T) {
	f := NewScriptFlowUnit()
	f.Config = ScriptConfiguration{
		Script:  `data.toUpperCase()`,
		InPort:  "In_1",
		OutPort: "Out_1",
	}
	f.vmPool = sync.Pool{New: func() interface{} { return goja.New() }}

	in := newBoundPorts("In_1")
	out := newBoundPorts("Out_1")
	f.BindPorts(in, out)

	session := engine.NewSession("s1")
	stream := engine.NewStream(session, "st1")
	idx := engine.NewIndexInfo(stream, engine.NewRootInheritInfo(), false, false)
	in["In_1"].Send([]*engine.Buffer{engine.NewBuffer([]byte("hi"), idx)})

	if st := f.Run(0); !st.OK() {
		t.Fatalf("run: %v", st)
	}
	got := out["Out_1"].Recv(-1)
	if len(got) != 1 {
		t.Fatalf("expected one transformed buffer, got %d", len(got))
	}
	if string(got[0].Data) != "HI" {
		t.Fatalf("expected uppercased payload, got %q", got[0].Data)
	}
	if got[0].Index() != idx {
		t.Fatal("expected the transformed buffer to keep the original lineage")
	}
}

func TestScriptFlowUnitAttachesErrorOnScriptFailure(t *testing.T) {
	f := NewScriptFlowUnit()
	f.Config = ScriptConfiguration{
		Script:  `not valid javascript (((`,
		InPort:  "In_1",
		OutPort: "Out_1",
	}
	f.vmPool = sync.Pool{New: func() interface{} { return goja.New() }}

	in := newBoundPorts("In_1")
	out := newBoundPorts("Out_1")
	f.BindPorts(in, out)

	session := engine.NewSession("s1")
	stream := engine.NewStream(session, "st1")
	idx := engine.NewIndexInfo(stream, engine.NewRootInheritInfo(), false, false)
	in["In_1"].Send([]*engine.Buffer{engine.NewBuffer([]byte("x"), idx)})

	if st := f.Run(0); !st.OK() {
		t.Fatalf("run: %v", st)
	}
	got := out["Out_1"].Recv(-1)
	if len(got) != 1 || !got[0].HasError() {
		t.Fatalf("expected the original buffer forwarded with an error attached, got %v", got)
	}
}

func TestScriptFlowUnitRunRejectsUnknownPorts(t *testing.T) {
	f := NewScriptFlowUnit()
	f.Config = ScriptConfiguration{InPort: "Missing", OutPort: "Out_1"}
	f.BindPorts(newBoundPorts("In_1"), newBoundPorts("Out_1"))
	if st := f.Run(0); st.OK() {
		t.Fatal("expected BADCONF for an unknown configured input port")
	}
}
