package engine

import (
	"testing"

	"github.com/bingo1234588/modelbox/types"
)

func TestParseGraphvizNormalFlow(t *testing.T) {
	src := `digraph demo {
		input1[type=input]
		output1[type=output]
		b[type=flowunit, flowunit=test_1_1, device=cpu, deviceid=0]
		input1 -> b:In_1
		b:Out_1 -> output1
	}`
	g, st := ParseGraphviz(src)
	if !st.OK() {
		t.Fatalf("parse: %v", st)
	}
	if len(g.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(g.Nodes))
	}
	b := g.NodeByName("b")
	if b == nil || b.FlowUnit != "test_1_1" || b.Device != "cpu" || b.DeviceID != "0" {
		t.Fatalf("node b not parsed correctly: %+v", b)
	}
	if len(g.Edges) != 2 {
		t.Fatalf("expected 2 edges, got %d", len(g.Edges))
	}
	e0 := g.Edges[0]
	if e0.SrcNode != "input1" || e0.DstNode != "b" || e0.DstPort != "In_1" {
		t.Fatalf("edge 0 parsed wrong: %+v", e0)
	}
}

func TestParseGraphvizUnknownType(t *testing.T) {
	_, st := ParseGraphviz(`digraph d { a[type=bogus] }`)
	if st.OK() || st.Code != types.CodeBadConf {
		t.Fatalf("expected BADCONF for unknown type, got %v", st)
	}
}

func TestParseGraphvizMissingArrow(t *testing.T) {
	_, st := ParseGraphviz(`digraph d { a[type=input] a b }`)
	if st.OK() {
		t.Fatalf("expected parse failure for malformed edge")
	}
}

func TestParseGraphvizQuotedAttrValue(t *testing.T) {
	src := `digraph d { a[type=flowunit, flowunit="my_unit"] }`
	g, st := ParseGraphviz(src)
	if !st.OK() {
		t.Fatalf("parse: %v", st)
	}
	if g.Nodes[0].FlowUnit != "my_unit" {
		t.Fatalf("quoted value not stripped: %q", g.Nodes[0].FlowUnit)
	}
}
