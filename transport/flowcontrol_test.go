package transport

import "testing"

func TestFlowControlRecvWithinLimit(t *testing.T) {
	var f flowControl
	f.init(100, 0)
	if err := f.addRecv(40); err != nil {
		t.Fatalf("addRecv(40): %v", err)
	}
	if got := f.canRecv(); got != 60 {
		t.Fatalf("canRecv() = %d, want 60", got)
	}
}

func TestFlowControlRecvExceedsLimit(t *testing.T) {
	var f flowControl
	f.init(100, 0)
	if err := f.addRecv(101); err != errFlowControl {
		t.Fatalf("addRecv(101) = %v, want errFlowControl", err)
	}
}

func TestFlowControlWindowAutoTuning(t *testing.T) {
	var f flowControl
	f.init(100, 0)
	if f.shouldUpdateMaxRecv() {
		t.Fatal("shouldUpdateMaxRecv() = true before any data received")
	}
	if err := f.addRecv(60); err != nil { // over half the window
		t.Fatalf("addRecv: %v", err)
	}
	if !f.shouldUpdateMaxRecv() {
		t.Fatal("shouldUpdateMaxRecv() = false after crossing half the window")
	}
	f.commitMaxRecv()
	if f.recvMax != 200 {
		t.Fatalf("recvMax after commit = %d, want 200", f.recvMax)
	}
	if f.shouldUpdateMaxRecv() {
		t.Fatal("shouldUpdateMaxRecv() = true right after commit")
	}
}

func TestFlowControlSend(t *testing.T) {
	var f flowControl
	f.init(0, 50)
	f.addSend(20)
	if got := f.canSend(); got != 30 {
		t.Fatalf("canSend() = %d, want 30", got)
	}
	f.setMaxSend(10) // must not shrink an existing limit
	if f.sendMax != 50 {
		t.Fatalf("sendMax after shrink attempt = %d, want 50", f.sendMax)
	}
	f.setMaxSend(100)
	if f.sendMax != 100 {
		t.Fatalf("sendMax after grow = %d, want 100", f.sendMax)
	}
}
