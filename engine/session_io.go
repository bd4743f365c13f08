package engine

import "github.com/bingo1234588/modelbox/types"

// DataMeta carries per-port output metadata set by the caller via
// SessionIO.SetOutputMeta (spec.md §6).
type DataMeta map[string]string

// OutputBufferList is the per-port payload handed to the caller by
// PushGraphOutputBuffer / Recv: one ordered buffer slice per port name.
type OutputBufferList map[string][]*Buffer

// SessionIO is the caller-facing contract for one session (spec.md
// §6). The engine only ever reaches it through a weak reference held
// by Session — see SessionIOHandle.
type SessionIO interface {
	// SetOutputMeta attaches metadata to be carried on future outputs
	// of port.
	SetOutputMeta(port string, meta DataMeta) types.Status
	// Send pushes buffers into the graph on port. The caller must have
	// set lineage (IndexInfo/InheritInfo/session) on every buffer
	// before calling Send; the engine performs no lineage synthesis.
	Send(port string, buffers []*Buffer) types.Status
	// Recv pops grouped outputs, blocking up to timeout (-1: forever,
	// 0: non-blocking poll). Returns an empty map on timeout expiry.
	Recv(timeout int) (OutputBufferList, types.Status)
	// Close requests a graceful end: no further Send is permitted, but
	// buffers already in flight are allowed to drain.
	Close() types.Status
	// Shutdown requests an abortive end: delivery stops immediately.
	Shutdown() types.Status
	// PushGraphOutputBuffer is called by the engine's virtual output
	// nodes to deliver one matched or unmatched group of outputs.
	PushGraphOutputBuffer(output OutputBufferList) types.Status
	// SetLastError records the final error (if any) of one delivered
	// group, surfaced to the caller alongside that group.
	SetLastError(err error)
	// sessionEnd is called by the engine on session teardown; it is
	// unexported so only this package (via the Session/SessionManager
	// lifecycle) can invoke it, mirroring the `friend class Session`
	// access restriction in session.h.
	sessionEnd(err error)
}

// SessionIOHandle is the strong reference a caller holds to keep its
// SessionIO alive. Session stores only a weak.Pointer to the handle
// (see session.go): once the caller drops every SessionIOHandle, the
// garbage collector is free to reclaim it and the engine's next lookup
// observes a nil SessionIO, exactly as spec.md §9 describes for the
// C++ weak_ptr original.
type SessionIOHandle struct {
	IO SessionIO
}

// NewSessionIOHandle wraps io in a handle the caller must keep
// referenced for as long as it wants to keep receiving output.
func NewSessionIOHandle(io SessionIO) *SessionIOHandle {
	return &SessionIOHandle{IO: io}
}
