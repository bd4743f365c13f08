package engine

import (
	"strings"
	"text/scanner"

	"github.com/bingo1234588/modelbox/types"
)

// ParseGraphviz parses the graphviz-subset graph description used
// throughout this engine's test fixtures and tooling:
//
//	digraph demo {
//	  input1[type=input]
//	  output1[type=output]
//	  b[type=flowunit, flowunit=test_1_1, device=cpu, deviceid=0]
//	  input1 -> b:In_1
//	  b:Out_1 -> output1
//	}
//
// Node declarations carry bracketed `key=value` attributes; edges are
// `src[:port] -> dst[:port]`, the port suffix omitted for virtual
// nodes. No ecosystem graphviz-DOT library appears anywhere in the
// reference corpus for this engine's domain, so this parser is a
// small hand-rolled scanner over text/scanner — the same minimalism
// the rest of this codebase applies to its own config/DSL loading
// rather than reaching for a parser-combinator dependency.
func ParseGraphviz(src string) (*types.GCGraph, types.Status) {
	p := &gvParser{}
	p.s.Init(strings.NewReader(src))
	p.s.Mode = scanner.ScanIdents | scanner.ScanInts | scanner.ScanStrings
	p.next()

	if !p.consumeIdent("digraph") {
		return nil, types.BadConf("graph: expected 'digraph'")
	}
	p.next() // graph name, ignored
	if !p.consumeTok('{') {
		return nil, types.BadConf("graph: expected '{'")
	}

	g := &types.GCGraph{}
	nodes := map[string]bool{}

	for p.tok != '}' && p.tok != scanner.EOF {
		name := p.identText()
		if name == "" {
			return nil, types.BadConf("graph: expected identifier, got %q", p.text())
		}
		p.next()

		if p.tok == '[' {
			node, st := p.parseNodeAttrs(name)
			if !st.OK() {
				return nil, st
			}
			if nodes[name] {
				return nil, types.BadConf("graph: duplicate node %q", name)
			}
			nodes[name] = true
			g.Nodes = append(g.Nodes, node)
			continue
		}

		edge, st := p.parseEdgeFrom(name)
		if !st.OK() {
			return nil, st
		}
		g.Edges = append(g.Edges, edge)
	}

	if !p.consumeTok('}') {
		return nil, types.BadConf("graph: expected '}'")
	}
	return g, types.StatusOK
}

type gvParser struct {
	s   scanner.Scanner
	tok rune
}

func (p *gvParser) next()            { p.tok = p.s.Scan() }
func (p *gvParser) text() string     { return p.s.TokenText() }
func (p *gvParser) consumeTok(r rune) bool {
	if p.tok == r {
		p.next()
		return true
	}
	return false
}
func (p *gvParser) consumeIdent(word string) bool {
	if p.tok == scanner.Ident && p.text() == word {
		p.next()
		return true
	}
	return false
}

// identText returns the current token's text if it can stand in for
// an identifier (bare ident or digits, e.g. a node named "0"), else "".
func (p *gvParser) identText() string {
	if p.tok == scanner.Ident || p.tok == scanner.Int {
		return p.text()
	}
	return ""
}

func (p *gvParser) parseNodeAttrs(name string) (*types.GraphNodeDesc, types.Status) {
	p.next() // consume '['
	attrs := map[string]string{}
	for p.tok != ']' && p.tok != scanner.EOF {
		key := p.identText()
		if key == "" {
			return nil, types.BadConf("graph: node %q: expected attribute name", name)
		}
		p.next()
		if !p.consumeTok('=') {
			return nil, types.BadConf("graph: node %q: expected '=' after %q", name, key)
		}
		val := p.attrValue()
		p.next()
		attrs[key] = val
		p.consumeTok(',')
	}
	if !p.consumeTok(']') {
		return nil, types.BadConf("graph: node %q: expected ']'", name)
	}

	kindStr := attrs["type"]
	var kind types.NodeKind
	switch kindStr {
	case "input":
		kind = types.InputNode
	case "output":
		kind = types.OutputNode
	case "output_unmatch":
		kind = types.OutputUnmatchNode
	case "flowunit", "":
		kind = types.FlowUnitNode
	default:
		return nil, types.BadConf("graph: node %q: unknown type %q", name, kindStr)
	}

	delete(attrs, "type")
	node := &types.GraphNodeDesc{
		Name:     name,
		Kind:     kind,
		FlowUnit: attrs["flowunit"],
		Device:   attrs["device"],
		DeviceID: attrs["deviceid"],
		Attrs:    attrs,
	}
	delete(attrs, "flowunit")
	delete(attrs, "device")
	delete(attrs, "deviceid")
	return node, types.StatusOK
}

// attrValue reads an unquoted bare-word or quoted-string attribute
// value at the current token.
func (p *gvParser) attrValue() string {
	if p.tok == scanner.String {
		s := p.text()
		return strings.Trim(s, `"`)
	}
	return p.text()
}

func (p *gvParser) parseEdgeFrom(srcName string) (*types.GraphEdgeDesc, types.Status) {
	srcPort := ""
	if p.tok == ':' {
		p.next()
		srcPort = p.identText()
		if srcPort == "" {
			return nil, types.BadConf("graph: edge from %q: expected port after ':'", srcName)
		}
		p.next()
	}
	if !(p.tok == '-' ) {
		return nil, types.BadConf("graph: edge from %q: expected '->'", srcName)
	}
	p.next()
	if !p.consumeTok('>') {
		return nil, types.BadConf("graph: edge from %q: expected '->'", srcName)
	}

	dstName := p.identText()
	if dstName == "" {
		return nil, types.BadConf("graph: edge from %q: expected destination node", srcName)
	}
	p.next()
	dstPort := ""
	if p.tok == ':' {
		p.next()
		dstPort = p.identText()
		if dstPort == "" {
			return nil, types.BadConf("graph: edge from %q to %q: expected port after ':'", srcName, dstName)
		}
		p.next()
	}

	return &types.GraphEdgeDesc{SrcNode: srcName, SrcPort: srcPort, DstNode: dstName, DstPort: dstPort}, types.StatusOK
}
