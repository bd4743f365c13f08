// Package httpendpoint bridges plain HTTP request/response onto the
// engine's SessionIO contract: each request opens a session, blocks
// for the first matched output group, and writes it back as the HTTP
// response body. Grounded on the teacher's endpoint/rest Endpoint,
// trimmed to a single httprouter.Handle since this module's scheduler
// and routing table live outside its scope.
package httpendpoint

import (
	"io"
	"net/http"
	"runtime"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/bingo1234588/modelbox/bridge"
	"github.com/bingo1234588/modelbox/engine"
	"github.com/bingo1234588/modelbox/types"
)

// Endpoint serves one route: a request body becomes one depth-0
// buffer on Node's Port, and the first output group delivered back to
// the session becomes the response body.
type Endpoint struct {
	Manager *engine.SessionManager
	Node    *engine.Node
	Port    string
	// Timeout bounds how long a request waits for output before
	// responding 504; zero means wait indefinitely.
	Timeout time.Duration
	Logger  types.Logger
}

// NewEndpoint builds an Endpoint feeding node's port for every request
// it serves.
func NewEndpoint(mgr *engine.SessionManager, node *engine.Node, port string, timeout time.Duration, logger types.Logger) *Endpoint {
	return &Endpoint{Manager: mgr, Node: node, Port: port, Timeout: timeout, Logger: logger}
}

// Handle is an httprouter.Handle that ingests the request body and
// blocks for a response group.
func (e *Endpoint) Handle(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	io_ := newSessionIO()
	session, handle, st := bridge.Ingest(e.Manager, e.Node, e.Port, io_, body, nil)
	if !st.OK() {
		http.Error(w, st.Error(), http.StatusBadRequest)
		return
	}
	defer session.Close()
	// Session.SetSessionIO only keeps a weak reference to handle
	// (spec.md §9); this handler blocks on io_.result for the whole
	// request, but nothing else in that wait references handle
	// itself, so without this the GC is free to collect it mid-wait
	// and turn a live request into an apparently-disconnected one.
	defer runtime.KeepAlive(handle)

	var timer <-chan time.Time
	if e.Timeout > 0 {
		t := time.NewTimer(e.Timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case output := <-io_.result:
		for _, buffers := range output {
			for _, b := range buffers {
				if b.HasError() {
					http.Error(w, b.Error().Error(), http.StatusInternalServerError)
					return
				}
				_, _ = w.Write(b.Data)
			}
		}
	case <-timer:
		http.Error(w, "timed out waiting for graph output", http.StatusGatewayTimeout)
		session.Abort()
	}
}

// SessionIO hands the first delivered output group to the blocked HTTP
// handler over a buffered channel; every group after the first is
// dropped, matching the request/response shape this bridge serves.
type SessionIO struct {
	engine.BaseSessionIO

	result chan engine.OutputBufferList
}

func newSessionIO() *SessionIO {
	return &SessionIO{result: make(chan engine.OutputBufferList, 1)}
}

func (s *SessionIO) SetOutputMeta(port string, meta engine.DataMeta) types.Status {
	return types.StatusOK
}

// Send is unused: the request body is the sole input, pushed once by
// Endpoint.Handle via bridge.Ingest.
func (s *SessionIO) Send(port string, buffers []*engine.Buffer) types.Status {
	return types.BadConf("http bridge: Send is not supported, the request body is the only input")
}

// Recv is unused: Endpoint.Handle reads from the result channel
// directly rather than polling through the SessionIO interface.
func (s *SessionIO) Recv(timeout int) (engine.OutputBufferList, types.Status) {
	return nil, types.StatusNoData
}

func (s *SessionIO) Close() types.Status    { return types.StatusOK }
func (s *SessionIO) Shutdown() types.Status { return types.StatusOK }

func (s *SessionIO) PushGraphOutputBuffer(output engine.OutputBufferList) types.Status {
	select {
	case s.result <- output:
	default:
		// a response was already delivered; later groups for this
		// one-shot request have nowhere to go.
	}
	return types.StatusOK
}

func (s *SessionIO) SetLastError(err error) {}
