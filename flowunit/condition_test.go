package flowunit

import (
	"testing"

	"github.com/expr-lang/expr"

	"github.com/bingo1234588/modelbox/engine"
	"github.com/bingo1234588/modelbox/types"
)

func newBoundPorts(names ...string) map[string]*engine.Port {
	ports := make(map[string]*engine.Port, len(names))
	for _, n := range names {
		ports[n] = engine.NewPort(n, -1, 0)
	}
	return ports
}

func compileCase(t *testing.T, exprStr, port string) compiledCase {
	t.Helper()
	program, err := expr.Compile(exprStr, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		t.Fatalf("compile %q: %v", exprStr, err)
	}
	return compiledCase{port: port, program: program}
}

func TestConditionFlowUnitRoutesFirstMatchingCase(t *testing.T) {
	f := NewConditionFlowUnit()
	f.Config = ConditionConfiguration{DefaultPort: "Out_default"}
	f.cases = []compiledCase{
		compileCase(t, `data == "a"`, "Out_a"),
		compileCase(t, `data == "b"`, "Out_b"),
	}

	in := newBoundPorts("In_1")
	out := newBoundPorts("Out_a", "Out_b", "Out_default")
	f.BindPorts(in, out)

	idx := engine.NewIndexInfo(engine.NewStream(engine.NewSession("s1"), "st1"), engine.NewRootInheritInfo(), false, false)
	in["In_1"].Send([]*engine.Buffer{engine.NewBuffer([]byte("b"), idx)})

	if st := f.Run(0); !st.OK() {
		t.Fatalf("run: %v", st)
	}
	if got := out["Out_b"].Recv(-1); len(got) != 1 {
		t.Fatalf("expected the buffer routed to Out_b, got %v", got)
	}
	if got := out["Out_a"].Recv(-1); len(got) != 0 {
		t.Fatalf("expected nothing on Out_a, got %v", got)
	}
}

func TestConditionFlowUnitFallsBackToDefaultPort(t *testing.T) {
	f := NewConditionFlowUnit()
	f.Config = ConditionConfiguration{DefaultPort: "Out_default"}
	f.cases = []compiledCase{compileCase(t, `data == "a"`, "Out_a")}

	in := newBoundPorts("In_1")
	out := newBoundPorts("Out_a", "Out_default")
	f.BindPorts(in, out)

	idx := engine.NewIndexInfo(engine.NewStream(engine.NewSession("s1"), "st1"), engine.NewRootInheritInfo(), false, false)
	in["In_1"].Send([]*engine.Buffer{engine.NewBuffer([]byte("z"), idx)})

	if st := f.Run(0); !st.OK() {
		t.Fatalf("run: %v", st)
	}
	if got := out["Out_default"].Recv(-1); len(got) != 1 {
		t.Fatalf("expected the unmatched buffer routed to the default port, got %v", got)
	}
}

func TestConditionFlowUnitRunSetsErrorWhenNoCaseAndNoDefault(t *testing.T) {
	f := NewConditionFlowUnit()
	f.cases = []compiledCase{compileCase(t, `data == "a"`, "Out_a")}

	in := newBoundPorts("In_1")
	out := newBoundPorts("Out_a")
	f.BindPorts(in, out)

	idx := engine.NewIndexInfo(engine.NewStream(engine.NewSession("s1"), "st1"), engine.NewRootInheritInfo(), false, false)
	b := engine.NewBuffer([]byte("z"), idx)
	in["In_1"].Send([]*engine.Buffer{b})

	if st := f.Run(0); !st.OK() {
		t.Fatalf("run: %v", st)
	}
	if !b.HasError() {
		t.Fatal("expected an error attached when no case matches and no default_port is configured")
	}
}

func TestConditionFlowUnitInitRejectsMalformedCaseExpression(t *testing.T) {
	f := NewConditionFlowUnit()
	config := types.Configuration{"cases": "[{\"expr\":\"not(((a\"}]"}
	if st := f.Init(nil, nil, config); st.OK() {
		t.Fatal("expected BADCONF decoding cases that can't be turned into expressions")
	}
}
