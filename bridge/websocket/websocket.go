// Package websocket bridges a persistent WebSocket connection onto the
// engine's SessionIO contract: one connection is one session, every
// inbound frame is ingested as a fresh depth-0 buffer, and every
// matched/unmatched output group is written back as one outbound
// frame per buffer. Grounded on the teacher's endpoint/websocket
// Endpoint, trimmed to the upgrade handshake plus read/write pumps.
package websocket

import (
	"net/http"
	"runtime"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/bingo1234588/modelbox/engine"
	"github.com/bingo1234588/modelbox/types"
	"github.com/bingo1234588/modelbox/util"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Endpoint upgrades incoming HTTP requests to WebSocket connections and
// routes every frame on each connection to the configured input node.
type Endpoint struct {
	Manager *engine.SessionManager
	Node    *engine.Node
	Port    string
	Logger  types.Logger
}

// NewEndpoint builds an Endpoint feeding node's port for every
// connection it upgrades.
func NewEndpoint(mgr *engine.SessionManager, node *engine.Node, port string, logger types.Logger) *Endpoint {
	return &Endpoint{Manager: mgr, Node: node, Port: port, Logger: logger}
}

// Handle is an httprouter.Handle that upgrades the connection and runs
// its read pump until the client disconnects.
func (e *Endpoint) Handle(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		if e.Logger != nil {
			e.Logger.Printf("websocket bridge: upgrade: %v", err)
		}
		return
	}
	defer conn.Close()

	ext := e.Node.ExternPort(e.Port)
	if ext == nil {
		if e.Logger != nil {
			e.Logger.Printf("websocket bridge: node %s has no external port %q", e.Node.Name, e.Port)
		}
		return
	}

	// A connection is one session carrying one long-lived stream: every
	// frame is a fresh buffer on that stream's lineage, unlike
	// bridge.Ingest's one-shot request/response shape which would end
	// the stream immediately after the first message.
	session := e.Manager.CreateSession(util.NewID())
	io := &SessionIO{conn: conn}
	handle := engine.NewSessionIOHandle(io)
	session.SetSessionIO(handle)
	defer session.Close()
	// Session.SetSessionIO only keeps a weak reference to handle
	// (spec.md §9); the read pump below blocks on the connection, not
	// on handle, so without this the GC is free to collect it between
	// reads and silently turn a live connection into a disconnected
	// one.
	defer runtime.KeepAlive(handle)

	stream := engine.NewStream(session, util.NewID())
	root := engine.NewRootInheritInfo()

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			idx := engine.NewIndexInfo(stream, root, true, true)
			ext.Send([]*engine.Buffer{engine.NewBuffer(nil, idx)})
			session.Abort()
			return
		}
		idx := engine.NewIndexInfo(stream, root, false, false)
		ext.Send([]*engine.Buffer{engine.NewBuffer(payload, idx)})
	}
}

// SessionIO writes every delivered output group straight back to the
// connection it was opened from, one text frame per buffer.
type SessionIO struct {
	engine.BaseSessionIO

	mu   sync.Mutex
	conn *websocket.Conn
	meta map[string]engine.DataMeta
}

func (s *SessionIO) SetOutputMeta(port string, meta engine.DataMeta) types.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.meta == nil {
		s.meta = map[string]engine.DataMeta{}
	}
	s.meta[port] = meta
	return types.StatusOK
}

// Send is unused: input arrives through Endpoint.Handle's read pump,
// not through the caller pushing additional buffers in.
func (s *SessionIO) Send(port string, buffers []*engine.Buffer) types.Status {
	return types.BadConf("websocket bridge: Send is not supported, frames arrive via the connection")
}

// Recv is unused: PushGraphOutputBuffer writes directly to the socket.
func (s *SessionIO) Recv(timeout int) (engine.OutputBufferList, types.Status) {
	return nil, types.StatusNoData
}

func (s *SessionIO) Close() types.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wrapErr(s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
}

func (s *SessionIO) Shutdown() types.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return wrapErr(s.conn.Close())
}

func (s *SessionIO) PushGraphOutputBuffer(output engine.OutputBufferList) types.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, buffers := range output {
		for _, b := range buffers {
			if err := s.conn.WriteMessage(websocket.TextMessage, b.Data); err != nil {
				return types.InvalidState("websocket bridge: write: %v", err)
			}
		}
	}
	return types.StatusOK
}

func (s *SessionIO) SetLastError(err error) {}

func wrapErr(err error) types.Status {
	if err != nil {
		return types.InvalidState("websocket bridge: %v", err)
	}
	return types.StatusOK
}
