// Package mqtt bridges MQTT topics onto the engine's SessionIO
// contract: each inbound message on a subscribed topic opens a fresh
// session feeding a graph's input virtual node, and the session's
// matched/unmatched output is republished under the route's response
// topic, grounded on the teacher's endpoint/mqtt Endpoint/RequestMessage
// shape but using paho directly rather than a SharedNode wrapper, since
// that wrapper belongs to components outside this module's scope.
package mqtt

import (
	"fmt"
	"sync"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/bingo1234588/modelbox/bridge"
	"github.com/bingo1234588/modelbox/engine"
	"github.com/bingo1234588/modelbox/types"
)

// Route pairs a subscribed topic with the graph input node/port it
// feeds and the topic template its responses are published to.
type Route struct {
	Topic        string
	Node         *engine.Node
	Port         string
	ResponseTopic string
	QOS           byte
}

// Endpoint is an MQTT front door: it subscribes every configured
// Route's topic and, for each arriving message, opens a session and
// streams the matched output back out over MQTT.
type Endpoint struct {
	Client  paho.Client
	Manager *engine.SessionManager
	Logger  types.Logger

	mu      sync.Mutex
	routes  []Route
	pending map[*engine.SessionIOHandle]struct{}
}

// NewEndpoint builds an Endpoint bound to an already-connected paho
// client and the session manager its graphs share.
func NewEndpoint(client paho.Client, mgr *engine.SessionManager, logger types.Logger) *Endpoint {
	return &Endpoint{Client: client, Manager: mgr, Logger: logger}
}

// AddRoute subscribes r.Topic and registers the route's dispatch.
func (e *Endpoint) AddRoute(r Route) error {
	e.mu.Lock()
	e.routes = append(e.routes, r)
	e.mu.Unlock()

	token := e.Client.Subscribe(r.Topic, r.QOS, e.handler(r))
	token.Wait()
	return token.Error()
}

func (e *Endpoint) handler(r Route) paho.MessageHandler {
	return func(c paho.Client, msg paho.Message) {
		defer func() {
			if rec := recover(); rec != nil && e.Logger != nil {
				e.Logger.Printf("mqtt bridge: handler panic on topic %s: %v", r.Topic, rec)
			}
		}()

		io := &SessionIO{client: c, responseTopic: r.ResponseTopic, qos: r.QOS}
		meta := map[string]string{"topic": msg.Topic()}
		_, handle, st := bridge.Ingest(e.Manager, r.Node, r.Port, io, msg.Payload(), meta)
		if !st.OK() {
			if e.Logger != nil {
				e.Logger.Printf("mqtt bridge: ingest on topic %s: %v", r.Topic, st)
			}
			return
		}

		// Session.SetSessionIO only keeps a weak reference to handle
		// (spec.md §9 — the caller owns the strong one); the handler
		// itself returns immediately, long before the graph produces
		// a response, so the strong reference has to live somewhere
		// that outlives this call. e.pending is that anchor; it is
		// released the moment sessionEnd fires, via OnSessionEnd.
		e.mu.Lock()
		if e.pending == nil {
			e.pending = map[*engine.SessionIOHandle]struct{}{}
		}
		e.pending[handle] = struct{}{}
		e.mu.Unlock()
		io.OnSessionEnd(func(error) {
			e.mu.Lock()
			delete(e.pending, handle)
			e.mu.Unlock()
		})
	}
}

// SessionIO publishes every buffer of a delivered output group as its
// own MQTT message, on responseTopic/<port>.
type SessionIO struct {
	engine.BaseSessionIO

	client        paho.Client
	responseTopic string
	qos           byte

	mu   sync.Mutex
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

// Send is unused on this bridge: MQTT routes are one-shot request/
// response, input only flows in through Endpoint.handler.
func (s *SessionIO) Send(port string, buffers []*engine.Buffer) types.Status {
	return types.BadConf("mqtt bridge: Send is not supported on an inbound-only route")
}

// Recv is unused: delivery happens via PushGraphOutputBuffer publishing
// directly, there is no caller-side poll loop for this transport.
func (s *SessionIO) Recv(timeout int) (engine.OutputBufferList, types.Status) {
	return nil, types.StatusNoData
}

func (s *SessionIO) Close() types.Status    { return types.StatusOK }
func (s *SessionIO) Shutdown() types.Status { return types.StatusOK }

func (s *SessionIO) PushGraphOutputBuffer(output engine.OutputBufferList) types.Status {
	for port, buffers := range output {
		for _, b := range buffers {
			topic := fmt.Sprintf("%s/%s", s.responseTopic, port)
			token := s.client.Publish(topic, s.qos, false, b.Data)
			token.Wait()
			if err := token.Error(); err != nil {
				return types.InvalidState("mqtt bridge: publish to %s: %v", topic, err)
			}
		}
	}
	return types.StatusOK
}

// SetLastError is a no-op: the final error (if any) is already visible
// to the caller via BaseSessionIO.SessionEndError once sessionEnd
// fires, so this transport does not duplicate it onto the wire.
func (s *SessionIO) SetLastError(err error) {}
