package engine

import "github.com/bingo1234588/modelbox/types"

// frame is one element of a node's hierarchy stack: the structural
// opener (a condition or expand, or a loop node) whose sub-stream a
// node currently lives inside, tagged with the specific output port
// that carried it (so two branches of the same opener are
// distinguishable — spec.md §4.6 rules 3-6).
type frame struct {
	opener  *Node
	outPort string
}

func framesEqual(a, b []frame) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type convPoint struct {
	node *Node
	port string
}

// GraphChecker implements the static checks of spec.md §4.6: single-
// and multi-port match (rules 1-2), condition convergence (rule 3),
// expand/collapse pairing (rule 4), loop well-formedness (rule 5),
// hierarchy-boundary discipline (rule 6), and virtual node acceptance
// (rule 7). It also assigns each node's match node (spec.md §4.5) as a
// side effect of a successful Check.
//
// The design follows spec.md §9's "small fixed table of matchers"
// note: rather than branching on node kind throughout, Check computes
// two independent per-edge tags — a hierarchy stack pushed only by
// declared openers (drives match node + rules 3-6) and a provenance
// origin pushed by any fan-out node that is not itself an opener
// (drives rules 1-2) — and the legality of any single merge point falls out of
// comparing those tags, rather than of bespoke per-rule code.
type GraphChecker struct {
	g *Graph

	excluded map[*gedge]bool // back-edges, excluded from forward propagation

	forwardIn map[*Node][]*gedge // forward in-edges, any port

	loopBody map[*Node]map[*Node]bool // loop opener -> member nodes of its body

	stacks    map[*Node][]frame
	matchNode map[*Node]*Node

	condConverge map[*Node]convPoint
	condSeen     map[*Node]map[string]bool
}

// CheckGraph builds and validates desc in one call, returning the live
// Graph with every node's match node assigned on success.
func CheckGraph(desc *types.GCGraph, descs map[string]*types.FlowUnitDesc, cfg types.Configuration) (*Graph, types.Status) {
	g, st := BuildGraph(desc, descs, cfg)
	if !st.OK() {
		return nil, st
	}
	if st := NewGraphChecker(g).Check(); !st.OK() {
		return nil, st
	}
	return g, types.StatusOK
}

// NewGraphChecker builds a checker over g.
func NewGraphChecker(g *Graph) *GraphChecker {
	return &GraphChecker{
		g:            g,
		excluded:     map[*gedge]bool{},
		forwardIn:    map[*Node][]*gedge{},
		loopBody:     map[*Node]map[*Node]bool{},
		stacks:       map[*Node][]frame{},
		matchNode:    map[*Node]*Node{},
		condConverge: map[*Node]convPoint{},
		condSeen:     map[*Node]map[string]bool{},
	}
}

// Check validates g in full, assigning every node's match node on
// success.
func (c *GraphChecker) Check() types.Status {
	if st := c.classifyBackEdges(); !st.OK() {
		return st
	}
	c.computeForwardIn()
	if st := c.computeLoopBodies(); !st.OK() {
		return st
	}
	order, st := c.topoOrder()
	if !st.OK() {
		return st
	}
	for _, n := range order {
		if st := c.resolveNode(n); !st.OK() {
			return st
		}
	}
	if st := c.checkConditionConvergence(); !st.OK() {
		return st
	}
	if st := c.checkVirtualAcceptance(); !st.OK() {
		return st
	}
	for n, mn := range c.matchNode {
		n.SetMatchNode(mn)
	}
	return types.StatusOK
}

// classifyBackEdges runs a DFS over g, classifying every edge that
// targets a node still on the active DFS path as a back-edge. A
// back-edge is only legal into a declared loop node (spec.md §4.6
// rule 5); anything else is an ill-formed cycle.
func (c *GraphChecker) classifyBackEdges() types.Status {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[*Node]int{}
	var visit func(n *Node) types.Status
	visit = func(n *Node) types.Status {
		color[n] = gray
		for _, e := range c.g.OutEdges(n) {
			switch color[e.dst] {
			case white:
				if st := visit(e.dst); !st.OK() {
					return st
				}
			case gray:
				if !e.dst.IsLoop() {
					return types.BadConf("cycle through non-loop node %q (via %s)", e.dst.Name, e)
				}
				c.excluded[e] = true
			case black:
				// forward/cross edge in a DAG sense; nothing to do.
			}
		}
		color[n] = black
		return types.StatusOK
	}
	for _, name := range c.g.order {
		n := c.g.Nodes[name]
		if color[n] == white {
			if st := visit(n); !st.OK() {
				return st
			}
		}
	}
	return types.StatusOK
}

func (c *GraphChecker) computeForwardIn() {
	for _, name := range c.g.order {
		n := c.g.Nodes[name]
		for _, e := range c.g.InEdges(n) {
			if c.excluded[e] {
				continue
			}
			c.forwardIn[n] = append(c.forwardIn[n], e)
		}
	}
}

func (c *GraphChecker) forwardInOnPort(n *Node, port string) []*gedge {
	var out []*gedge
	for _, e := range c.forwardIn[n] {
		if e.dstPort == port {
			out = append(out, e)
		}
	}
	return out
}

// computeLoopBodies computes, for every loop node L with at least one
// back-edge, the set of nodes on the cycle between L's continue output
// and the back-edge's source (inclusive of the source, exclusive of
// L). Edges from L into that set push a loop frame; edges from L
// elsewhere are the loop's exit ports.
func (c *GraphChecker) computeLoopBodies() types.Status {
	for e := range c.excluded {
		loopNode := e.dst
		source := e.src
		reachableFromLoop := c.reachable(loopNode, true, map[*Node]bool{loopNode: true})
		reachableToSource := c.reachable(source, false, map[*Node]bool{})
		if c.loopBody[loopNode] == nil {
			c.loopBody[loopNode] = map[*Node]bool{}
		}
		for n := range reachableFromLoop {
			if reachableToSource[n] {
				c.loopBody[loopNode][n] = true
			}
		}
	}
	return types.StatusOK
}

// reachable does a forward (via out-edges) or backward (via forward
// in-edges) BFS from start, excluding back-edges either way. Nodes in
// seed are never entered. A backward walk always includes start in its
// result; a forward walk includes it only if an edge leads back to it.
func (c *GraphChecker) reachable(start *Node, forward bool, seed map[*Node]bool) map[*Node]bool {
	visited := map[*Node]bool{}
	queue := []*Node{start}
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		if forward {
			for _, e := range c.g.OutEdges(n) {
				if c.excluded[e] || seed[e.dst] || visited[e.dst] {
					continue
				}
				visited[e.dst] = true
				queue = append(queue, e.dst)
			}
		} else {
			for _, e := range c.forwardIn[n] {
				if seed[e.src] || visited[e.src] {
					continue
				}
				visited[e.src] = true
				queue = append(queue, e.src)
			}
		}
	}
	if !forward {
		visited[start] = true
	}
	return visited
}

// topoOrder runs Kahn's algorithm over the forward (back-edge
// excluded) edge set.
func (c *GraphChecker) topoOrder() ([]*Node, types.Status) {
	indeg := map[*Node]int{}
	for _, name := range c.g.order {
		n := c.g.Nodes[name]
		indeg[n] = len(c.forwardIn[n])
	}
	var queue []*Node
	for _, name := range c.g.order {
		n := c.g.Nodes[name]
		if indeg[n] == 0 {
			queue = append(queue, n)
		}
	}
	var order []*Node
	for len(queue) > 0 {
		n := queue[0]
		queue = queue[1:]
		order = append(order, n)
		for _, e := range c.g.OutEdges(n) {
			if c.excluded[e] {
				continue
			}
			indeg[e.dst]--
			if indeg[e.dst] == 0 {
				queue = append(queue, e.dst)
			}
		}
	}
	if len(order) != len(c.g.Nodes) {
		return nil, types.BadConf("graph has a cycle not mediated by a declared loop node")
	}
	return order, types.StatusOK
}

// resolveNode computes n's hierarchy stack (and, transitively, its
// match node) from its forward in-edges, and runs the provenance
// (rule 1/2) check on every port with more than one incoming edge.
func (c *GraphChecker) resolveNode(n *Node) types.Status {
	var nodeStack []frame
	haveStack := false

	ports := n.GetInputNames()
	for _, port := range ports {
		edges := c.forwardInOnPort(n, port)
		if len(edges) == 0 {
			continue
		}
		if st := c.checkProvenance(n, port, edges); !st.OK() {
			return st
		}
		portStack, st := c.mergePort(n, port, edges)
		if !st.OK() {
			return st
		}
		if !haveStack {
			nodeStack = portStack
			haveStack = true
		} else if !framesEqual(nodeStack, portStack) {
			return types.BadConf("node %q: input ports disagree on hierarchy (crosses a condition/expand/loop boundary)", n.Name)
		}
	}

	c.stacks[n] = nodeStack
	c.matchNode[n] = c.computeMatchNode(n, nodeStack)
	return types.StatusOK
}

// mergePort resolves the single hierarchy stack value contributed by
// all of the edges feeding one input port, popping a condition or
// expand frame when the edges represent that opener's distinct
// branches reconverging here.
func (c *GraphChecker) mergePort(n *Node, port string, edges []*gedge) ([]frame, types.Status) {
	contributed := make([][]frame, len(edges))
	for i, e := range edges {
		contributed[i] = c.stackOut(e)
	}
	if len(edges) == 1 {
		stack := contributed[0]
		// The graph-level norm for expand/collapse is a single edge
		// between them: the "many" buffers produced by expand share
		// that one edge at runtime, they don't fan out onto separate
		// graph edges the way condition branches do. So a collapse
		// closes its expand's frame here, on the lone edge, rather than
		// through the multi-edge reconvergence path below (which only
		// ever applies to condition branches).
		if n.IsCollapse() && len(stack) > 0 && stack[len(stack)-1].opener.IsExpand() {
			return stack[:len(stack)-1], types.StatusOK
		}
		return stack, types.StatusOK
	}

	first := contributed[0]
	allEqual := true
	for _, s := range contributed[1:] {
		if !framesEqual(first, s) {
			allEqual = false
			break
		}
	}
	if allEqual {
		return first, types.StatusOK
	}

	// Disagreement: legal only if every contributed stack has a
	// non-empty top frame naming the SAME opener (differing only in
	// outPort) and the stacks below that top frame all agree.
	var opener *Node
	below := contributed[0]
	if len(below) == 0 {
		return nil, types.BadConf("node %q port %q: incompatible hierarchy among producers", n.Name, port)
	}
	opener = below[len(below)-1].opener
	below = below[:len(below)-1]
	for _, s := range contributed {
		if len(s) == 0 || s[len(s)-1].opener != opener {
			return nil, types.BadConf("node %q port %q: incompatible hierarchy among producers", n.Name, port)
		}
		if !framesEqual(s[:len(s)-1], below) {
			return nil, types.BadConf("node %q port %q: incompatible hierarchy among producers", n.Name, port)
		}
	}

	switch {
	case opener.IsConditionOpener():
		if err := c.recordConditionConverge(opener, n, port, contributed); err != nil {
			return nil, *err
		}
		return below, types.StatusOK
	case opener.IsExpand():
		if !n.IsCollapse() {
			return nil, types.BadConf("node %q: reconverges expand %q's branches without being a collapse", n.Name, opener.Name)
		}
		return below, types.StatusOK
	default:
		return nil, types.BadConf("node %q port %q: hierarchy boundary crossed without a valid closer", n.Name, port)
	}
}

func (c *GraphChecker) recordConditionConverge(opener, n *Node, port string, contributed [][]frame) *types.Status {
	if c.condSeen[opener] == nil {
		c.condSeen[opener] = map[string]bool{}
	}
	for _, s := range contributed {
		top := s[len(s)-1]
		c.condSeen[opener][top.outPort] = true
	}
	cp, ok := c.condConverge[opener]
	if ok && (cp.node != n || cp.port != port) {
		st := types.BadConf("condition %q converges at more than one node/port (%q:%q and %q:%q)", opener.Name, cp.node.Name, cp.port, n.Name, port)
		return &st
	}
	c.condConverge[opener] = convPoint{node: n, port: port}
	return nil
}

// stackOut is the hierarchy stack an edge carries away from its
// source: the source's own stack, plus a new frame if the source is a
// declared opener (condition/expand always push; a loop node pushes
// only on edges that re-enter its own body).
func (c *GraphChecker) stackOut(e *gedge) []frame {
	src := e.src
	base := c.stacks[src]
	switch {
	case src.IsConditionOpener(), src.IsExpand():
		return append(append([]frame{}, base...), frame{opener: src, outPort: e.srcPort})
	case src.IsLoop():
		if c.loopBody[src][e.dst] {
			return append(append([]frame{}, base...), frame{opener: src, outPort: e.srcPort})
		}
		return base
	default:
		return base
	}
}

// computeMatchNode assigns n's match node per spec.md §4.5's table:
// condition and expand openers always report nil; a collapse reports
// the expand it closes;
// everything else reports the top of its own resolved stack.
func (c *GraphChecker) computeMatchNode(n *Node, stack []frame) *Node {
	if n.IsConditionOpener() || n.IsExpand() {
		return nil
	}
	if n.IsCollapse() {
		// The popped expand is recoverable from any forward in-edge's
		// raw contributed stack (before mergePort's pop).
		for _, port := range n.GetInputNames() {
			edges := c.forwardInOnPort(n, port)
			for _, e := range edges {
				raw := c.stackOut(e)
				if len(raw) > 0 {
					return raw[len(raw)-1].opener
				}
			}
		}
		return nil
	}
	if len(stack) == 0 {
		return nil
	}
	return stack[len(stack)-1].opener
}

// checkConditionConvergence enforces that every branch a condition
// opener declares actually reconverges at its recorded convergence
// point (spec.md §4.6 rule 3's "must all converge" clause).
func (c *GraphChecker) checkConditionConvergence() types.Status {
	for _, name := range c.g.order {
		n := c.g.Nodes[name]
		if !n.IsConditionOpener() {
			continue
		}
		if c.g.OutDegree(n) == 0 {
			continue
		}
		seen := c.condSeen[n]
		for _, port := range n.Desc.OutputPorts {
			if !seen[port] {
				return types.BadConf("condition %q: output port %q never reconverges", n.Name, port)
			}
		}
	}
	return types.StatusOK
}

// checkVirtualAcceptance enforces spec.md rule 7: an output (or
// output_unmatch) virtual node only accepts fully-converged, depth-0
// sub-streams — it may not sit inside an open condition/expand/loop
// scope.
func (c *GraphChecker) checkVirtualAcceptance() types.Status {
	for _, name := range c.g.order {
		n := c.g.Nodes[name]
		if n.Kind != types.OutputNode && n.Kind != types.OutputUnmatchNode {
			continue
		}
		if len(c.stacks[n]) != 0 {
			return types.BadConf("output node %q receives data still inside an open condition/expand/loop scope", n.Name)
		}
	}
	return types.StatusOK
}

// fanOrigin identifies, for rule 1/2 purposes, the nearest ancestor
// that genuinely duplicates data onto more than one downstream edge,
// stopping at any declared opener (whose legality is instead governed
// by the hierarchy-stack mechanism above).
type fanOrigin struct {
	ancestor *Node
	isFanout bool
}

func (c *GraphChecker) originOf(e *gedge) fanOrigin {
	n := e.src
	for {
		if n.IsOpener() {
			return fanOrigin{ancestor: n, isFanout: false}
		}
		if c.g.OutDegree(n) > 1 {
			return fanOrigin{ancestor: n, isFanout: true}
		}
		in := c.forwardIn[n]
		if len(in) != 1 {
			return fanOrigin{ancestor: n, isFanout: false}
		}
		n = in[0].src
	}
}

// checkProvenance rejects rule 1/2 violations: two or more edges into
// the same port that both trace back to the same non-opener fan-out
// ancestor, regardless of whether they left it via the same or
// different output ports.
func (c *GraphChecker) checkProvenance(n *Node, port string, edges []*gedge) types.Status {
	if len(edges) < 2 {
		return types.StatusOK
	}
	seen := map[*Node]bool{}
	for _, e := range edges {
		o := c.originOf(e)
		if !o.isFanout {
			continue
		}
		if seen[o.ancestor] {
			return types.BadConf("node %q port %q: duplicate data from %q converges on a single port", n.Name, port, o.ancestor.Name)
		}
		seen[o.ancestor] = true
	}
	return types.StatusOK
}
