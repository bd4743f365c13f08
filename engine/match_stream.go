package engine

import (
	"sort"
	"sync"

	"github.com/bingo1234588/modelbox/types"
)

// MatchStreamData is the per-tick deliverable to a node (spec.md §3): a
// Session plus, for each input port name, an ordered list of buffers
// that all share the same sub-stream lineage.
type MatchStreamData struct {
	Session *Session
	Buffers map[string][]*Buffer
}

// GetDataCount returns the total buffer count across every port.
func (d *MatchStreamData) GetDataCount() int {
	n := 0
	for _, bs := range d.Buffers {
		n += len(bs)
	}
	return n
}

// GetSession returns the owning session.
func (d *MatchStreamData) GetSession() *Session { return d.Session }

// GetBufferList returns the per-port buffer map.
func (d *MatchStreamData) GetBufferList() map[string][]*Buffer { return d.Buffers }

// matchGroup accumulates one in-flight sub-stream's buffers, keyed by
// the Stream of its root-ancestor IndexInfo (spec.md §4.4's "root
// ancestor under the node's match node" — see the simplifying note on
// InputMatchStreamManager).
type matchGroup struct {
	session  *Session
	buffers  map[string][]*Buffer
	havePort map[string]bool
	arrival  int
}

// InputMatchStreamManager groups buffers arriving across a node's
// input ports into MatchStreamData items sharing one sub-stream
// lineage (spec.md §4.4).
//
// Simplifying note: the spec identifies each group by "the root
// ancestor under the node's match node" — i.e. the ancestor at the
// depth where the node's enclosing scope was opened, not necessarily
// the global depth-0 ancestor. This implementation keys every group by
// the Stream of the buffer's depth-0 root ancestor
// (IndexInfo.RootAncestor().Stream()): depth-0 buffers of one stream,
// its end-flag included, share one group across every port, and each
// deeper buffer joins the group of the depth-0 stream it descends
// from. Groups are not narrowed to the ancestor at the depth of the
// node's own match node.
type InputMatchStreamManager struct {
	name      string
	ports     []string
	gatherAll bool
	inOrder   bool

	mu      sync.Mutex
	groups  map[*Stream]*matchGroup
	nextSeq int
}

// NewInputMatchStreamManager builds a manager for a node named name
// with the given declared input port names. queueSize is accepted for
// parity with the C++ constructor signature but is otherwise unused:
// back-pressure is the Port/Queue's concern, not the manager's.
func NewInputMatchStreamManager(name string, queueSize int64, ports []string) *InputMatchStreamManager {
	return &InputMatchStreamManager{
		name:   name,
		ports:  append([]string{}, ports...),
		groups: map[*Stream]*matchGroup{},
	}
}

// SetInputBufferInOrder configures whether per-port buffer lists
// preserve arrival order. The Port/Queue backing every input port is
// already strictly FIFO, so in-order delivery holds regardless of this
// setting; it is retained to mirror the C++ constructor contract.
func (m *InputMatchStreamManager) SetInputBufferInOrder(v bool) { m.inOrder = v }

// SetInputStreamGatherAll configures whether an item is only emitted
// once every input port has contributed to it (true) or as soon as any
// port makes progress (false, used by virtual output — spec.md §4.2).
func (m *InputMatchStreamManager) SetInputStreamGatherAll(v bool) { m.gatherAll = v }

// GenInputMatchStreamData drains every declared input port of ports
// and groups the result into ready MatchStreamData items, in ancestor-
// arrival order (spec.md §4.4). runType is accepted for parity with
// the C++ signature; this implementation does not interpret it.
func (m *InputMatchStreamManager) GenInputMatchStreamData(runType RunType, ports map[string]*Port) ([]*MatchStreamData, types.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, name := range m.ports {
		port, ok := ports[name]
		if !ok {
			continue
		}
		for _, b := range port.Recv(-1) {
			if st := m.ingest(name, b); !st.OK() {
				return nil, st
			}
		}
	}

	var readyKeys []*Stream
	for key, g := range m.groups {
		if len(g.buffers) == 0 {
			continue // no progress since last emission
		}
		if m.gatherAll && !m.allPortsSeen(g) {
			continue
		}
		readyKeys = append(readyKeys, key)
	}
	sort.Slice(readyKeys, func(i, j int) bool {
		return m.groups[readyKeys[i]].arrival < m.groups[readyKeys[j]].arrival
	})

	out := make([]*MatchStreamData, 0, len(readyKeys))
	for _, key := range readyKeys {
		g := m.groups[key]
		out = append(out, &MatchStreamData{Session: g.session, Buffers: g.buffers})
		if m.gatherAll {
			delete(m.groups, key)
		} else {
			// Partial-emission groups are reset, not deleted: the
			// manager has no per-stream end signal here (that lives in
			// Port/Session, not in matchGroup), so a group surviving
			// across ticks is indistinguishable from one that's simply
			// quiet. m.groups therefore grows by one entry per distinct
			// root stream ever seen on this node and never shrinks on
			// this path; nothing else removes these entries either
			// (SessionJanitor only sweeps SessionManager's table).
			g.buffers = map[string][]*Buffer{}
		}
	}
	return out, types.StatusOK
}

func (m *InputMatchStreamManager) allPortsSeen(g *matchGroup) bool {
	for _, p := range m.ports {
		if !g.havePort[p] {
			return false
		}
	}
	return true
}

func (m *InputMatchStreamManager) ingest(port string, b *Buffer) types.Status {
	idx := b.Index()
	st := idx.Stream()
	if st.Ended() {
		return types.InvalidState("buffer on port %q belongs to already-ended stream %q", port, st.ID())
	}
	if idx.IsEndFlag() {
		if !st.MarkEnded() {
			return types.InvalidState("duplicate end-flag for stream %q", st.ID())
		}
	}

	key := idx.RootAncestor().Stream()
	g, ok := m.groups[key]
	if !ok {
		g = &matchGroup{
			session:  st.Session(),
			buffers:  map[string][]*Buffer{},
			havePort: map[string]bool{},
			arrival:  m.nextSeq,
		}
		m.nextSeq++
		m.groups[key] = g
	}
	g.buffers[port] = append(g.buffers[port], b)
	g.havePort[port] = true
	return types.StatusOK
}
