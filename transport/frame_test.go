package transport

import "testing"

func TestStreamFrameEncodeDecode(t *testing.T) {
	want := newStreamFrame(9, []byte("payload"), 42, true)
	b := make([]byte, want.encodedLen())
	n, err := want.encode(b)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if n != len(b) {
		t.Fatalf("encode wrote %d bytes, encodedLen said %d", n, len(b))
	}
	got := &streamFrame{}
	rn, err := got.decode(b)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rn != n {
		t.Fatalf("decode consumed %d bytes, want %d", rn, n)
	}
	if got.streamID != want.streamID || got.offset != want.offset || got.fin != want.fin || string(got.data) != string(want.data) {
		t.Fatalf("decoded %+v, want %+v", got, want)
	}
}

func TestStreamFrameEncodeShortBuffer(t *testing.T) {
	f := newStreamFrame(1, []byte("x"), 0, false)
	b := make([]byte, f.encodedLen()-1)
	if _, err := f.encode(b); err != errShortBuffer {
		t.Fatalf("encode into short buffer = %v, want errShortBuffer", err)
	}
}

func TestAckFrameRangeSetRoundTrip(t *testing.T) {
	var rs rangeSet
	rs.pushRange(0, 5)
	rs.pushRange(10, 12)
	rs.pushRange(20, 20)

	f := newAckFrame(7, rs)
	b := make([]byte, f.encodedLen())
	if _, err := f.encode(b); err != nil {
		t.Fatalf("encode: %v", err)
	}

	got := &ackFrame{}
	if _, err := got.decode(b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	gotRanges := got.toRangeSet()
	if !rangeSetEqual(gotRanges, rs) {
		t.Fatalf("toRangeSet() = %v, want %v", gotRanges, rs)
	}
}

func TestConnectionCloseFrameEncodeDecode(t *testing.T) {
	want := newConnectionCloseFrame(uint64(FlowControlError), 0x08, []byte("bye"), false)
	b := make([]byte, want.encodedLen())
	if _, err := want.encode(b); err != nil {
		t.Fatalf("encode: %v", err)
	}
	got := &connectionCloseFrame{}
	if _, err := got.decode(b); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.errorCode != want.errorCode || got.frameType != want.frameType || string(got.reasonPhrase) != string(want.reasonPhrase) {
		t.Fatalf("decoded %+v, want %+v", got, want)
	}
}

func TestPaddingFrameEncodedLen(t *testing.T) {
	f := newPaddingFrame(5)
	if f.encodedLen() != 5 {
		t.Fatalf("encodedLen() = %d, want 5", f.encodedLen())
	}
	b := make([]byte, 5)
	n, err := f.encode(b)
	if err != nil || n != 5 {
		t.Fatalf("encode = %d, %v, want 5, nil", n, err)
	}
	for _, c := range b {
		if c != frameTypePadding {
			t.Fatalf("padding byte = %#x, want 0", c)
		}
	}
}
