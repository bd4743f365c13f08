package engine

import (
	"fmt"

	"github.com/bingo1234588/modelbox/types"
)

// virtualPort is the implicit single port name used by input/output/
// output_unmatch nodes in the graph description, which are addressed
// without a port suffix (`input1 -> b:In_1`, `b:Out_1 -> output1`).
const virtualPort = "_virtual_"

// gedge is one resolved, node-pointer-bearing edge of a built Graph.
type gedge struct {
	src     *Node
	srcPort string
	dst     *Node
	dstPort string
}

// Graph is the resolved, pointer-linked form of a types.GCGraph: every
// node has its Capability initialized and every edge carries live
// *Node endpoints, ready for GraphChecker.Check.
type Graph struct {
	Nodes map[string]*Node
	order []string // declaration order, for deterministic iteration

	edges []*gedge

	outByNode map[*Node][]*gedge
	inByNode  map[*Node][]*gedge
	inByPort  map[*Node]map[string][]*gedge
}

// BuildGraph resolves desc against the flowunit registry descs,
// allocating one Node per declaration and one gedge per edge. It does
// not run GraphChecker — callers combine BuildGraph with Check, or use
// CheckGraph for both in one call.
func BuildGraph(desc *types.GCGraph, descs map[string]*types.FlowUnitDesc, cfg types.Configuration) (*Graph, types.Status) {
	g := &Graph{
		Nodes:     make(map[string]*Node, len(desc.Nodes)),
		outByNode: make(map[*Node][]*gedge),
		inByNode:  make(map[*Node][]*gedge),
		inByPort:  make(map[*Node]map[string][]*gedge),
	}

	for _, nd := range desc.Nodes {
		if _, dup := g.Nodes[nd.Name]; dup {
			return nil, types.BadConf("duplicate node name %q", nd.Name)
		}
		var n *Node
		switch nd.Kind {
		case types.InputNode:
			n = &Node{NodeBase: NodeBase{Name: nd.Name, Kind: nd.Kind, DeviceName: nd.Device, DeviceID: nd.DeviceID}}
			if st := n.InitAsInputVirtual([]string{virtualPort}, cfg); !st.OK() {
				return nil, st
			}
		case types.OutputNode:
			n = &Node{NodeBase: NodeBase{Name: nd.Name, Kind: nd.Kind, DeviceName: nd.Device, DeviceID: nd.DeviceID}}
			if st := n.InitAsOutputVirtual([]string{virtualPort}, cfg); !st.OK() {
				return nil, st
			}
		case types.OutputUnmatchNode:
			n = &Node{NodeBase: NodeBase{Name: nd.Name, Kind: nd.Kind, DeviceName: nd.Device, DeviceID: nd.DeviceID}}
			if st := n.InitAsOutputUnmatch([]string{virtualPort}, cfg); !st.OK() {
				return nil, st
			}
		default:
			fd, ok := descs[nd.FlowUnit]
			if !ok {
				return nil, types.BadConf("node %q references unknown flowunit %q", nd.Name, nd.FlowUnit)
			}
			n = NewNode(nd.Name, fd)
			n.DeviceName = nd.Device
			n.DeviceID = nd.DeviceID
			if st := n.Init(fd.InputPorts, fd.OutputPorts, cfg); !st.OK() {
				return nil, st
			}
		}
		g.Nodes[nd.Name] = n
		g.order = append(g.order, nd.Name)
	}

	for _, ed := range desc.Edges {
		src, ok := g.Nodes[ed.SrcNode]
		if !ok {
			return nil, types.BadConf("edge references unknown node %q", ed.SrcNode)
		}
		dst, ok := g.Nodes[ed.DstNode]
		if !ok {
			return nil, types.BadConf("edge references unknown node %q", ed.DstNode)
		}
		srcPort := resolvePort(src, ed.SrcPort, false)
		dstPort := resolvePort(dst, ed.DstPort, true)
		if srcPort == "" {
			return nil, types.BadConf("node %q has no output port %q", src.Name, ed.SrcPort)
		}
		if dstPort == "" {
			return nil, types.BadConf("node %q has no input port %q", dst.Name, ed.DstPort)
		}
		e := &gedge{src: src, srcPort: srcPort, dst: dst, dstPort: dstPort}
		g.edges = append(g.edges, e)
		g.outByNode[src] = append(g.outByNode[src], e)
		g.inByNode[dst] = append(g.inByNode[dst], e)
		if g.inByPort[dst] == nil {
			g.inByPort[dst] = map[string][]*gedge{}
		}
		g.inByPort[dst][dstPort] = append(g.inByPort[dst][dstPort], e)
	}

	return g, types.StatusOK
}

// resolvePort maps a (possibly empty) declared port name to the actual
// port on n: virtual nodes only ever have virtualPort.
func resolvePort(n *Node, declared string, input bool) string {
	ports := n.OutputPorts
	if input {
		ports = n.InputPorts
	}
	if declared == "" {
		if _, ok := ports[virtualPort]; ok {
			return virtualPort
		}
		if len(ports) == 1 {
			for name := range ports {
				return name
			}
		}
		return ""
	}
	if _, ok := ports[declared]; ok {
		return declared
	}
	return ""
}

// GetNode returns the node named name, or nil.
func (g *Graph) GetNode(name string) *Node { return g.Nodes[name] }

// OutEdges returns every edge leaving n, across all of its output ports.
func (g *Graph) OutEdges(n *Node) []*gedge { return g.outByNode[n] }

// InEdges returns every edge entering n, across all of its input ports.
func (g *Graph) InEdges(n *Node) []*gedge { return g.inByNode[n] }

// InEdgesOnPort returns the edges entering n's named input port.
func (g *Graph) InEdgesOnPort(n *Node, port string) []*gedge { return g.inByPort[n][port] }

// OutDegree is the number of distinct outgoing edges of n, across every
// output port.
func (g *Graph) OutDegree(n *Node) int { return len(g.outByNode[n]) }

// String renders the edge as "src:port -> dst:port" for diagnostics.
func (e *gedge) String() string {
	return fmt.Sprintf("%s:%s -> %s:%s", e.src.Name, e.srcPort, e.dst.Name, e.dstPort)
}
