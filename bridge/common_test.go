package bridge

import (
	"runtime"
	"testing"

	"github.com/bingo1234588/modelbox/engine"
	"github.com/bingo1234588/modelbox/types"
)

type stubSessionIO struct {
	engine.BaseSessionIO
	pushed  []engine.OutputBufferList
	lastErr error
}

func (s *stubSessionIO) SetOutputMeta(port string, meta engine.DataMeta) types.Status {
	return types.StatusOK
}
func (s *stubSessionIO) Send(port string, buffers []*engine.Buffer) types.Status { return types.StatusOK }
func (s *stubSessionIO) Recv(timeout int) (engine.OutputBufferList, types.Status) {
	return nil, types.StatusOK
}
func (s *stubSessionIO) Close() types.Status    { return types.StatusOK }
func (s *stubSessionIO) Shutdown() types.Status { return types.StatusOK }
func (s *stubSessionIO) PushGraphOutputBuffer(output engine.OutputBufferList) types.Status {
	s.pushed = append(s.pushed, output)
	return types.StatusOK
}
func (s *stubSessionIO) SetLastError(err error) { s.lastErr = err }

func TestIngestErrorsWhenNodeHasNoMatchingExternPort(t *testing.T) {
	mgr := engine.NewSessionManager()
	node := engine.NewNode("in1", nil)
	if st := node.InitAsInputVirtual([]string{"Out_1"}, types.Configuration{}); !st.OK() {
		t.Fatalf("init: %v", st)
	}

	_, _, st := Ingest(mgr, node, "Missing", &stubSessionIO{}, []byte("x"), nil)
	if st.OK() || st.Code != types.CodeBadConf {
		t.Fatalf("expected BADCONF for an unknown extern port, got %v", st)
	}
}

func TestIngestDeliversOneDataBufferThenEnds(t *testing.T) {
	mgr := engine.NewSessionManager()
	node := engine.NewNode("in1", nil)
	if st := node.InitAsInputVirtual([]string{"Out_1"}, types.Configuration{}); !st.OK() {
		t.Fatalf("init: %v", st)
	}

	io := &stubSessionIO{}
	session, handle, st := Ingest(mgr, node, "Out_1", io, []byte("payload"), map[string]string{"k": "v"})
	if !st.OK() {
		t.Fatalf("ingest: %v", st)
	}
	if session == nil {
		t.Fatal("expected a non-nil session")
	}
	if handle == nil {
		t.Fatal("expected a non-nil handle the caller must retain")
	}

	got := node.ExternPort("Out_1").Recv(-1)
	if len(got) != 2 {
		t.Fatalf("expected a data buffer plus its depth-0 terminator, got %d", len(got))
	}
	if string(got[0].Data) != "payload" {
		t.Fatalf("expected the payload preserved on the first buffer, got %q", got[0].Data)
	}
	if v, ok := got[0].GetMeta("k"); !ok || v != "v" {
		t.Fatalf("expected metadata carried onto the buffer, got %q ok=%v", v, ok)
	}
	if !got[1].Index().IsEndFlag() {
		t.Fatal("expected the second buffer to be the stream terminator")
	}
	// The session only holds a weak reference to handle (spec.md §9);
	// as long as the caller keeps handle referenced, GetSessionIO
	// must keep resolving even across a GC.
	runtime.GC()
	runtime.GC()
	if session.GetSessionIO() == nil {
		t.Fatal("expected GetSessionIO to still resolve while the caller retains the returned handle")
	}
	runtime.KeepAlive(handle)
}
