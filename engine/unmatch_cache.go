package engine

import (
	"sync"

	"github.com/bingo1234588/modelbox/types"
)

// portCache is one port's per-stream accumulator inside a
// SessionUnmatchCache: an insertion-ordered queue of stream buckets,
// each holding that stream's buffers in arrival order.
type portCache struct {
	order    []*Stream
	byStream map[*Stream][]*Buffer
}

func (p *portCache) add(stream *Stream, b *Buffer) {
	if p.byStream == nil {
		p.byStream = map[*Stream][]*Buffer{}
	}
	if _, ok := p.byStream[stream]; !ok {
		p.order = append(p.order, stream)
	}
	p.byStream[stream] = append(p.byStream[stream], b)
}

// popFirst removes and returns the oldest stream bucket's buffers.
func (p *portCache) popFirst() ([]*Buffer, bool) {
	if len(p.order) == 0 {
		return nil, false
	}
	stream := p.order[0]
	p.order = p.order[1:]
	bufs := p.byStream[stream]
	delete(p.byStream, stream)
	return bufs, true
}

// SessionUnmatchCache buffers, per session, the outputs that failed to
// structurally match across input ports — a sub-tree that produced
// data on one port and ended on another without reconverging (spec.md
// §4.3).
type SessionUnmatchCache struct {
	mu          sync.Mutex
	ports       map[string]*portCache
	portEndFlag map[string]bool
	lastError   error
}

// NewSessionUnmatchCache builds a cache tracking the given port names.
func NewSessionUnmatchCache(portNames []string) *SessionUnmatchCache {
	c := &SessionUnmatchCache{
		ports:       make(map[string]*portCache, len(portNames)),
		portEndFlag: make(map[string]bool, len(portNames)),
	}
	for _, p := range portNames {
		c.ports[p] = &portCache{}
		c.portEndFlag[p] = false
	}
	return c
}

// CacheBuffer indexes buffer under port, keyed by its owning stream,
// preserving arrival order within the (port, stream) pair. If buffer
// is an end-flag, its lineage is walked up to its depth-0 root; only
// when that root is itself an end-flag is the port marked "ended at
// the top level" (spec.md §4.3 — this is the resolution of whether a
// non-root end-flag should count: a sub-stream ending mid-lineage does
// not end the port, only its ultimate ancestor ending does).
func (c *SessionUnmatchCache) CacheBuffer(port string, buffer *Buffer) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if buffer.HasError() {
		c.lastError = buffer.Error()
	}

	idx := buffer.Index()
	pc := c.ports[port]
	if pc == nil {
		pc = &portCache{}
		c.ports[port] = pc
	}
	pc.add(idx.Stream(), buffer)

	if !idx.IsEndFlag() {
		return
	}
	if idx.RootAncestor().IsEndFlag() {
		c.portEndFlag[port] = true
	}
}

// GetLastError returns the most recent error observed across every
// cached buffer.
func (c *SessionUnmatchCache) GetLastError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastError
}

// PopCache takes, for each port, the oldest stream bucket, strips its
// end-flag and placeholder buffers, and emits the remainder. Returns
// NODATA if every port had no streams at entry, else CONTINUE (spec.md
// §4.3: the caller loops until NODATA).
func (c *SessionUnmatchCache) PopCache() (OutputBufferList, types.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := OutputBufferList{}
	emptyPorts := 0
	for port, pc := range c.ports {
		bufs, ok := pc.popFirst()
		if !ok {
			out[port] = nil
			emptyPorts++
			continue
		}
		valid := make([]*Buffer, 0, len(bufs))
		for _, b := range bufs {
			idx := b.Index()
			if idx.IsEndFlag() || idx.IsPlaceholder() {
				continue
			}
			valid = append(valid, b)
		}
		out[port] = valid
	}
	if emptyPorts == len(c.ports) {
		return out, types.StatusNoData
	}
	return out, types.StatusContinue
}

// AllPortStreamEnd reports whether every port has observed its root
// stream's end-flag.
func (c *SessionUnmatchCache) AllPortStreamEnd() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ended := range c.portEndFlag {
		if !ended {
			return false
		}
	}
	return true
}

// unmatchState is the OutputUnmatchVirtualNode runtime state: one
// SessionUnmatchCache per currently-active session.
type unmatchState struct {
	mu     sync.Mutex
	byKey  map[*Session]*SessionUnmatchCache
}

// InitAsOutputUnmatch wires n up as an OutputUnmatchVirtualNode
// (spec.md §4.3): plain input ports, no match-stream manager — routing
// is per-session instead.
func (n *Node) InitAsOutputUnmatch(inputNames []string, config types.Configuration) types.Status {
	if st := n.Init(inputNames, nil, config); !st.OK() {
		return st
	}
	n.unmatch = &unmatchState{byKey: map[*Session]*SessionUnmatchCache{}}
	return types.StatusOK
}

// RunOutputUnmatch drains every input port into its session's cache
// (skipping aborted sessions), then walks every session: pushing every
// available slice while its SessionIO is alive, and erasing the
// session's cache entry once AllPortStreamEnd() or the session is
// aborted (spec.md §4.3).
func (n *Node) RunOutputUnmatch(runType RunType) types.Status {
	u := n.unmatch
	portNames := n.GetInputNames()

	for name, port := range n.InputPorts {
		for _, b := range port.Recv(-1) {
			session := b.Index().Stream().Session()
			if session.IsAbort() {
				continue
			}
			u.mu.Lock()
			cache, ok := u.byKey[session]
			if !ok {
				cache = NewSessionUnmatchCache(portNames)
				u.byKey[session] = cache
			}
			u.mu.Unlock()
			cache.CacheBuffer(name, b)
		}
	}

	u.mu.Lock()
	sessions := make([]*Session, 0, len(u.byKey))
	for s := range u.byKey {
		sessions = append(sessions, s)
	}
	u.mu.Unlock()

	for _, session := range sessions {
		u.mu.Lock()
		cache := u.byKey[session]
		u.mu.Unlock()
		if cache == nil {
			continue
		}

		if io := session.GetSessionIO(); io != nil {
			io.SetLastError(cache.GetLastError())
			for {
				output, st := cache.PopCache()
				if st.Code == types.CodeNoData {
					break
				}
				io.PushGraphOutputBuffer(output)
			}
		}

		if cache.AllPortStreamEnd() || session.IsAbort() {
			// Every port has observed its root stream's end-flag (or the
			// session was aborted outright): this is this session's
			// terminal point for the unmatched-output path, so deliver
			// its SessionEnd here (Session.End's once-guard makes this
			// safe even if RunOutputVirtual already delivered it on
			// another path for the same session).
			session.End(cache.GetLastError())
			u.mu.Lock()
			delete(u.byKey, session)
			u.mu.Unlock()
		}
	}
	return types.StatusOK
}
