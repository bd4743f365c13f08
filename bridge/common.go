// Package bridge adapts the caller-facing SessionIO contract (spec.md
// §6) onto concrete transports: MQTT, WebSocket, and plain HTTP. Each
// transport package pairs a SessionIO implementation (embedding
// engine.BaseSessionIO for the unexported sessionEnd hook) with a
// small front door that owns the wire protocol, grounded on the
// teacher's endpoint/mqtt, endpoint/websocket and endpoint/rest
// packages' Endpoint/Router shape.
package bridge

import (
	"github.com/bingo1234588/modelbox/engine"
	"github.com/bingo1234588/modelbox/types"
	"github.com/bingo1234588/modelbox/util"
)

// Ingest opens a fresh session and stream rooted at depth 0, wraps io
// in a SessionIOHandle, registers a weak reference to that handle on
// the session, and pushes one buffer carrying data/meta onto
// inputNode's external port named port. It returns both the session
// and the handle: Session.SetSessionIO only ever stores a weak
// pointer (spec.md §9 — the caller owns the strong one), so the
// caller MUST keep the returned *SessionIOHandle referenced for as
// long as it wants GetSessionIO to keep resolving; dropping it lets
// the next GC silently turn this into a disconnected session.
func Ingest(mgr *engine.SessionManager, inputNode *engine.Node, port string, io engine.SessionIO, data []byte, meta map[string]string) (*engine.Session, *engine.SessionIOHandle, types.Status) {
	ext := inputNode.ExternPort(port)
	if ext == nil {
		return nil, nil, types.BadConf("bridge: node %s has no external port %q", inputNode.Name, port)
	}

	session := mgr.CreateSession(util.NewID())
	handle := engine.NewSessionIOHandle(io)
	session.SetSessionIO(handle)

	stream := engine.NewStream(session, util.NewID())
	root := engine.NewRootInheritInfo()
	idx := engine.NewIndexInfo(stream, root, false, false)
	buf := engine.NewBuffer(data, idx)
	for k, v := range meta {
		buf.SetMeta(k, v)
	}
	ext.Send([]*engine.Buffer{buf})

	// The terminator rides the data buffer's own stream, so the match
	// manager groups it with that buffer; it only marks the stream ended
	// and is filtered out before delivery (RunOutputVirtual never
	// surfaces end-flag/placeholder buffers).
	endIdx := engine.NewIndexInfo(stream, root, true, true)
	ext.Send([]*engine.Buffer{engine.NewBuffer(nil, endIdx)})

	return session, handle, types.StatusOK
}
