package engine

import "testing"

func TestInputMatchStreamManagerSinglePortEmitsImmediately(t *testing.T) {
	mgr := NewInputMatchStreamManager("n", -1, []string{"In_1"})
	mgr.SetInputStreamGatherAll(false)

	session := NewSession("s1")
	stream := NewStream(session, "st1")
	idx := NewIndexInfo(stream, NewRootInheritInfo(), false, false)

	in1 := NewPort("In_1", -1, 0)
	in1.Send([]*Buffer{NewBuffer([]byte("hello"), idx)})

	groups, st := mgr.GenInputMatchStreamData(0, map[string]*Port{"In_1": in1})
	if !st.OK() {
		t.Fatalf("gen: %v", st)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if groups[0].GetDataCount() != 1 {
		t.Fatalf("expected 1 buffer in the group, got %d", groups[0].GetDataCount())
	}
}

func TestInputMatchStreamManagerGatherAllWaitsForEveryPort(t *testing.T) {
	mgr := NewInputMatchStreamManager("n", -1, []string{"A", "B"})
	mgr.SetInputStreamGatherAll(true)

	session := NewSession("s1")
	stream := NewStream(session, "st1")
	root := NewRootInheritInfo()
	idx := NewIndexInfo(stream, root, false, false)

	portA := NewPort("A", -1, 0)
	portB := NewPort("B", -1, 0)
	portA.Send([]*Buffer{NewBuffer([]byte("a"), idx)})

	groups, st := mgr.GenInputMatchStreamData(0, map[string]*Port{"A": portA, "B": portB})
	if !st.OK() {
		t.Fatalf("gen: %v", st)
	}
	if len(groups) != 0 {
		t.Fatalf("expected no group until every port has contributed, got %d", len(groups))
	}

	idxB := NewIndexInfo(stream, root, false, false)
	portB.Send([]*Buffer{NewBuffer([]byte("b"), idxB)})
	groups, st = mgr.GenInputMatchStreamData(0, map[string]*Port{"A": portA, "B": portB})
	if !st.OK() {
		t.Fatalf("gen: %v", st)
	}
	if len(groups) != 1 {
		t.Fatalf("expected 1 group once both ports contributed, got %d", len(groups))
	}
}

func TestInputMatchStreamManagerRejectsBufferAfterStreamEnded(t *testing.T) {
	mgr := NewInputMatchStreamManager("n", -1, []string{"In_1"})
	session := NewSession("s1")
	stream := NewStream(session, "st1")
	root := NewRootInheritInfo()

	port := NewPort("In_1", -1, 0)
	endIdx := NewIndexInfo(stream, root, true, true)
	port.Send([]*Buffer{NewBuffer(nil, endIdx)})
	if _, st := mgr.GenInputMatchStreamData(0, map[string]*Port{"In_1": port}); !st.OK() {
		t.Fatalf("first end-flag should be accepted: %v", st)
	}

	lateIdx := NewIndexInfo(stream, root, false, false)
	port.Send([]*Buffer{NewBuffer([]byte("late"), lateIdx)})
	_, st := mgr.GenInputMatchStreamData(0, map[string]*Port{"In_1": port})
	if st.OK() {
		t.Fatal("expected INVALID_STATE for a buffer arriving on an already-ended stream")
	}
}

func TestInputMatchStreamManagerAncestorArrivalOrder(t *testing.T) {
	mgr := NewInputMatchStreamManager("n", -1, []string{"In_1"})
	session := NewSession("s1")
	port := NewPort("In_1", -1, 0)

	streamB := NewStream(session, "b")
	streamA := NewStream(session, "a")
	idxB := NewIndexInfo(streamB, NewRootInheritInfo(), false, false)
	idxA := NewIndexInfo(streamA, NewRootInheritInfo(), false, false)
	// streamB's buffer is sent first: it should be the first group out.
	port.Send([]*Buffer{NewBuffer([]byte("b"), idxB)})
	port.Send([]*Buffer{NewBuffer([]byte("a"), idxA)})

	groups, st := mgr.GenInputMatchStreamData(0, map[string]*Port{"In_1": port})
	if !st.OK() {
		t.Fatalf("gen: %v", st)
	}
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if string(groups[0].Buffers["In_1"][0].Data) != "b" {
		t.Fatalf("expected arrival order b,a — got %s first", groups[0].Buffers["In_1"][0].Data)
	}
}
