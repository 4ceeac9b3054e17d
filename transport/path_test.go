package transport

import (
	"testing"
	"time"
)

func TestPathChallengeQueuesResponse(t *testing.T) {
	s := &Conn{}
	f := newPathChallengeFrame([8]byte{1, 2, 3, 4, 5, 6, 7, 8})
	b := make([]byte, f.encodedLen())
	f.encode(b)

	if _, err := s.recvFramePathChallenge(b, time.Now()); err != nil {
		t.Fatalf("recvFramePathChallenge: %v", err)
	}
	resp := s.sendFramePathResponse()
	if resp == nil {
		t.Fatal("sendFramePathResponse() = nil, want a queued response")
	}
	if resp.data != f.data {
		t.Fatalf("response payload = %v, want %v", resp.data, f.data)
	}
	if s.sendFramePathResponse() != nil {
		t.Fatal("sendFramePathResponse() should drain the pending response once taken")
	}
}

func TestNewConnectionIDTracksPeerCIDsAndRetirement(t *testing.T) {
	s := &Conn{}
	f1 := newNewConnectionIDFrame(1, 0, []byte{0xaa}, [16]byte{})
	b1 := make([]byte, f1.encodedLen())
	f1.encode(b1)
	if _, err := s.recvFrameNewConnectionID(b1, time.Now()); err != nil {
		t.Fatalf("recvFrameNewConnectionID: %v", err)
	}

	f2 := newNewConnectionIDFrame(2, 2, []byte{0xbb}, [16]byte{})
	b2 := make([]byte, f2.encodedLen())
	f2.encode(b2)
	if _, err := s.recvFrameNewConnectionID(b2, time.Now()); err != nil {
		t.Fatalf("recvFrameNewConnectionID: %v", err)
	}

	if len(s.path.peerCIDs) != 1 || s.path.peerCIDs[0].sequenceNumber != 2 {
		t.Fatalf("peerCIDs = %+v, want only sequence 2 retained after retirePriorTo=2", s.path.peerCIDs)
	}
}

func TestRetireConnectionIDFrameValidatesEncoding(t *testing.T) {
	s := &Conn{}
	f := newRetireConnectionIDFrame(5)
	b := make([]byte, f.encodedLen())
	f.encode(b)
	if _, err := s.recvFrameRetireConnectionID(b, time.Now()); err != nil {
		t.Fatalf("recvFrameRetireConnectionID: %v", err)
	}
}
