package engine

import (
	"testing"

	"github.com/bingo1234588/modelbox/types"
)

// recordingSessionIO captures the last group pushed to it, for
// assertions on what OutputVirtual actually delivered.
type recordingSessionIO struct {
	pushed   OutputBufferList
	lastErr  error
}

func (r *recordingSessionIO) SetOutputMeta(port string, meta DataMeta) types.Status { return types.StatusOK }
func (r *recordingSessionIO) Send(port string, buffers []*Buffer) types.Status      { return types.StatusOK }
func (r *recordingSessionIO) Recv(timeout int) (OutputBufferList, types.Status)     { return nil, types.StatusOK }
func (r *recordingSessionIO) Close() types.Status                                   { return types.StatusOK }
func (r *recordingSessionIO) Shutdown() types.Status                                { return types.StatusOK }
func (r *recordingSessionIO) PushGraphOutputBuffer(output OutputBufferList) types.Status {
	r.pushed = output
	return types.StatusOK
}
func (r *recordingSessionIO) SetLastError(err error) { r.lastErr = err }
func (r *recordingSessionIO) sessionEnd(err error)   {}

func TestInputVirtualForwardsExternBuffersToOutputPort(t *testing.T) {
	n := NewNode("in1", nil)
	if st := n.InitAsInputVirtual([]string{"Out_1"}, types.Configuration{}); !st.OK() {
		t.Fatalf("init: %v", st)
	}
	ext := n.ExternPort("Out_1")
	if ext == nil {
		t.Fatal("expected an extern port for Out_1")
	}

	session := NewSession("s1")
	stream := NewStream(session, "st1")
	idx := NewIndexInfo(stream, NewRootInheritInfo(), false, false)
	ext.Send([]*Buffer{NewBuffer([]byte("hi"), idx)})

	if st := n.RunInputVirtual(0); !st.OK() {
		t.Fatalf("run: %v", st)
	}
	out := n.OutputPorts["Out_1"].Recv(-1)
	if len(out) != 1 || string(out[0].Data) != "hi" {
		t.Fatalf("expected the extern buffer forwarded onto Out_1, got %v", out)
	}
}

func TestInputVirtualRunIsNoOpWhenExternPortEmpty(t *testing.T) {
	n := NewNode("in1", nil)
	if st := n.InitAsInputVirtual([]string{"Out_1"}, types.Configuration{}); !st.OK() {
		t.Fatalf("init: %v", st)
	}
	if st := n.RunInputVirtual(0); !st.OK() {
		t.Fatalf("run: %v", st)
	}
	if got := n.OutputPorts["Out_1"].Recv(-1); len(got) != 0 {
		t.Fatalf("expected no output, got %v", got)
	}
}

func TestOutputVirtualErasesDataFromReleasedSession(t *testing.T) {
	n := NewNode("out1", nil)
	if st := n.InitAsOutputVirtual([]string{"In_1"}, types.Configuration{}); !st.OK() {
		t.Fatalf("init: %v", st)
	}

	func() {
		session := NewSession("s1")
		stream := NewStream(session, "st1")
		idx := NewIndexInfo(stream, NewRootInheritInfo(), false, false)
		n.InputPorts["In_1"].Send([]*Buffer{NewBuffer([]byte("dead"), idx)})
		// No SessionIO ever attached; session falls out of scope here.
	}()

	if st := n.RunOutputVirtual(0); !st.OK() {
		t.Fatalf("run: %v", st)
	}
	if got := n.InputPorts["In_1"].Recv(-1); len(got) != 0 {
		t.Fatalf("expected eraseInvalidData to have dropped the buffer, got %v", got)
	}
}

func TestOutputVirtualDeliversAndFiltersEndFlagsAndPlaceholders(t *testing.T) {
	n := NewNode("out1", nil)
	if st := n.InitAsOutputVirtual([]string{"In_1"}, types.Configuration{}); !st.OK() {
		t.Fatalf("init: %v", st)
	}

	session := NewSession("s1")
	io := &recordingSessionIO{}
	session.SetSessionIO(NewSessionIOHandle(io))
	stream := NewStream(session, "st1")
	root := NewRootInheritInfo()

	dataIdx := NewIndexInfo(stream, root, false, false)
	endIdx := NewIndexInfo(stream, root, true, true)
	n.InputPorts["In_1"].Send([]*Buffer{
		NewBuffer([]byte("payload"), dataIdx),
		NewBuffer(nil, endIdx),
	})

	if st := n.RunOutputVirtual(0); !st.OK() {
		t.Fatalf("run: %v", st)
	}
	if io.pushed == nil {
		t.Fatal("expected a delivered output group")
	}
	bufs := io.pushed["In_1"]
	if len(bufs) != 1 || string(bufs[0].Data) != "payload" {
		t.Fatalf("expected only the non-end-flag buffer delivered, got %v", bufs)
	}
}

func TestOutputVirtualSkipsAbortedSession(t *testing.T) {
	n := NewNode("out1", nil)
	if st := n.InitAsOutputVirtual([]string{"In_1"}, types.Configuration{}); !st.OK() {
		t.Fatalf("init: %v", st)
	}

	session := NewSession("s1")
	io := &recordingSessionIO{}
	session.SetSessionIO(NewSessionIOHandle(io))
	session.Abort()

	stream := NewStream(session, "st1")
	idx := NewIndexInfo(stream, NewRootInheritInfo(), false, false)
	n.InputPorts["In_1"].Send([]*Buffer{NewBuffer([]byte("x"), idx)})

	if st := n.RunOutputVirtual(0); !st.OK() {
		t.Fatalf("run: %v", st)
	}
	if io.pushed != nil {
		t.Fatalf("expected an aborted session's group to be skipped, got %v", io.pushed)
	}
}
