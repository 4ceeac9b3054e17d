package transport

import "testing"

func TestStreamMapCreateEnforcesPeerLimit(t *testing.T) {
	var m streamMap
	m.init(10, 10)
	m.setPeerMaxStreamsBidi(1)
	if _, err := m.create(0, true, true); err != nil {
		t.Fatalf("create within limit: %v", err)
	}
	if _, err := m.create(4, true, true); err != errStreamLimit {
		t.Fatalf("create over limit = %v, want errStreamLimit", err)
	}
}

func TestStreamMapCreateEnforcesLocalLimit(t *testing.T) {
	var m streamMap
	m.init(1, 10)
	if _, err := m.create(1, false, true); err != nil {
		t.Fatalf("create within limit: %v", err)
	}
	if _, err := m.create(5, false, true); err != errStreamLimit {
		t.Fatalf("create over local bidi limit = %v, want errStreamLimit", err)
	}
}

func TestStreamMapGet(t *testing.T) {
	var m streamMap
	m.init(10, 10)
	m.setPeerMaxStreamsUni(10)
	st, err := m.create(2, true, false)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if m.get(2) != st {
		t.Fatal("get() did not return the created stream")
	}
	if m.get(99) != nil {
		t.Fatal("get() on unknown id should return nil")
	}
}

func TestStreamMapHasFlushable(t *testing.T) {
	var m streamMap
	m.init(10, 10)
	m.setPeerMaxStreamsUni(10)
	if m.hasFlushable() {
		t.Fatal("hasFlushable() = true on an empty map")
	}
	st, _ := m.create(2, true, false)
	st.Write([]byte("data"))
	if !m.hasFlushable() {
		t.Fatal("hasFlushable() = false with unsent stream data pending")
	}
}
