package engine

import "github.com/bingo1234588/modelbox/types"

// InitAsInputVirtual wires n up as an InputVirtualNode (spec.md §4.1):
// one extern in-port per declared output port, sized by
// queue_size_external (falling back to the node's own queue size), so
// the external caller can push buffers into what is, from the
// engine's perspective, an output.
func (n *Node) InitAsInputVirtual(outputNames []string, config types.Configuration) types.Status {
	if st := n.Init(nil, outputNames, config); !st.OK() {
		return st
	}
	extQueueSize := config.GetInt64("queue_size_external", n.QueueSize)
	n.externPorts = make(map[string]*Port, len(outputNames))
	for _, name := range outputNames {
		n.externPorts[name] = NewPort(name, extQueueSize, n.Priority)
	}
	return types.StatusOK
}

// ExternPort returns the extern in-port for the named output port —
// the handle the caller's SessionIO pushes buffers through. The
// caller is responsible for having set lineage (IndexInfo,
// InheritInfo, session) on every buffer before pushing; InputVirtual
// performs no lineage synthesis (spec.md §4.1).
func (n *Node) ExternPort(name string) *Port { return n.externPorts[name] }

// RunInputVirtual drains every extern port and forwards its buffers
// unchanged onto the matching output port (spec.md §4.1).
func (n *Node) RunInputVirtual(runType RunType) types.Status {
	for name, out := range n.OutputPorts {
		ext, ok := n.externPorts[name]
		if !ok {
			continue
		}
		data := ext.Recv(-1)
		if len(data) == 0 {
			continue
		}
		out.Send(data)
	}
	return types.StatusOK
}

// InitAsOutputVirtual wires n up as an OutputVirtualNode (spec.md
// §4.2): an InputMatchStreamManager over the declared input ports,
// in-order and gather-all=false.
func (n *Node) InitAsOutputVirtual(inputNames []string, config types.Configuration) types.Status {
	if st := n.Init(inputNames, nil, config); !st.OK() {
		return st
	}
	n.matchMgr = NewInputMatchStreamManager(n.Name, n.QueueSize, inputNames)
	n.matchMgr.SetInputBufferInOrder(true)
	n.matchMgr.SetInputStreamGatherAll(false)
	return types.StatusOK
}

// eraseInvalidData pops and discards buffers whose session's
// SessionIO has already been released, stopping at the first head
// whose session still has a live handle — so a caller that
// disconnected mid-flight never blocks the queue for other sessions
// (spec.md §4.2 step 1).
func (n *Node) eraseInvalidData() {
	for _, port := range n.InputPorts {
		for {
			b, ok := port.Front()
			if !ok {
				break
			}
			if b.Index().Stream().Session().GetSessionIO() != nil {
				break
			}
			port.Pop()
		}
	}
}

// RunOutputVirtual implements spec.md §4.2's three steps: invalid-data
// erasure, match-stream generation, and per-group delivery of matched
// outputs to each group's SessionIO.
func (n *Node) RunOutputVirtual(runType RunType) types.Status {
	n.eraseInvalidData()

	groups, st := n.matchMgr.GenInputMatchStreamData(runType, n.InputPorts)
	if !st.OK() {
		return st
	}
	if len(groups) == 0 {
		return types.StatusOK
	}

	for _, group := range groups {
		if group.GetDataCount() == 0 {
			continue
		}
		session := group.GetSession()
		if session.IsAbort() {
			continue
		}
		io := session.GetSessionIO()
		if io == nil {
			continue
		}

		output := OutputBufferList{}
		var lastError error
		for port, buffers := range group.GetBufferList() {
			valid := make([]*Buffer, 0, len(buffers))
			for _, b := range buffers {
				idx := b.Index()
				if idx.IsEndFlag() || idx.IsPlaceholder() {
					continue
				}
				if b.HasError() {
					lastError = b.Error()
				}
				valid = append(valid, b)
			}
			output[port] = valid
		}
		io.PushGraphOutputBuffer(output)
		io.SetLastError(lastError)
		if lastError != nil {
			session.SetError(lastError)
		}

		// Once every stream this session owns has observed its
		// terminator, this is the session's terminal point (spec.md
		// §7/§8): deliver SessionEnd exactly once via Session.End's
		// own once-guard.
		if session.AllStreamsEnded() {
			session.End(session.GetError())
		}
	}
	return types.StatusOK
}
