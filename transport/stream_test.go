package transport

import (
	"io"
	"testing"
)

func TestIsStreamLocalAndBidi(t *testing.T) {
	cases := []struct {
		id       uint64
		isClient bool
		local    bool
		bidi     bool
	}{
		{id: 0, isClient: true, local: true, bidi: true},   // client-initiated bidi
		{id: 1, isClient: true, local: false, bidi: true},  // server-initiated bidi
		{id: 2, isClient: true, local: true, bidi: false},  // client-initiated uni
		{id: 3, isClient: false, local: true, bidi: false}, // server-initiated uni, viewed by server
	}
	for _, c := range cases {
		if got := isStreamLocal(c.id, c.isClient); got != c.local {
			t.Fatalf("isStreamLocal(%d, %v) = %v, want %v", c.id, c.isClient, got, c.local)
		}
		if got := isStreamBidi(c.id); got != c.bidi {
			t.Fatalf("isStreamBidi(%d) = %v, want %v", c.id, got, c.bidi)
		}
	}
}

func TestStreamReadWriteAndEOF(t *testing.T) {
	st := &Stream{}
	st.flow.init(100, 0)
	st.connFlow = &flowControl{}
	st.connFlow.init(100, 0)

	if err := st.pushRecv([]byte("hi"), 0, true); err != nil {
		t.Fatalf("pushRecv: %v", err)
	}
	buf := make([]byte, 2)
	n, err := st.Read(buf)
	if err != nil || string(buf[:n]) != "hi" {
		t.Fatalf("Read = %q, %v", buf[:n], err)
	}
	if _, err := st.Read(buf); err != io.EOF {
		t.Fatalf("Read after fin = %v, want io.EOF", err)
	}

	if _, err := st.Write([]byte("out")); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := st.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	data, _, fin := st.popSend(10)
	if string(data) != "out" || !fin {
		t.Fatalf("popSend = %q, fin=%v, want \"out\", fin=true (fin carried on the last chunk)", data, fin)
	}
	_, _, fin = st.popSend(10)
	if fin {
		t.Fatal("popSend after the fin-carrying chunk should not report fin again")
	}
}

func TestStreamPushRecvRespectsFlowControl(t *testing.T) {
	st := &Stream{}
	st.flow.init(4, 0)
	if err := st.pushRecv([]byte("toolong"), 0, false); err != errFlowControl {
		t.Fatalf("pushRecv over limit = %v, want errFlowControl", err)
	}
}
