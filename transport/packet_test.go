package transport

import "testing"

func TestPacketLongHeaderInitialRoundTrip(t *testing.T) {
	p := &packet{
		typ: packetTypeInitial,
		header: packetHeader{
			version: quicVersion1,
			dcid:    []byte{1, 2, 3, 4},
			scid:    []byte{5, 6, 7, 8},
		},
		token:           []byte{9, 9},
		packetNumber:    7,
		packetNumberLen: 1,
		payloadLen:      20,
	}
	b := make([]byte, p.encodedLen())
	n, err := p.encode(b)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if n != len(b) {
		t.Fatalf("encode wrote %d, encodedLen said %d", n, len(b))
	}

	got := &packet{}
	hn, err := got.decodeHeader(b)
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if hn != n-p.packetNumberLen {
		t.Fatalf("decodeHeader consumed %d, want %d (up to the packet number)", hn, n-p.packetNumberLen)
	}
	if got.typ != packetTypeInitial {
		t.Fatalf("typ = %v, want Initial", got.typ)
	}
	if got.header.version != quicVersion1 {
		t.Fatalf("version = %#x, want %#x", got.header.version, quicVersion1)
	}
	if string(got.header.dcid) != string(p.header.dcid) || string(got.header.scid) != string(p.header.scid) {
		t.Fatalf("cids mismatch: got dcid=%x scid=%x", got.header.dcid, got.header.scid)
	}
	if string(got.token) != string(p.token) {
		t.Fatalf("token = %x, want %x", got.token, p.token)
	}
	if got.payloadLen != p.payloadLen {
		t.Fatalf("payloadLen = %d, want %d", got.payloadLen, p.payloadLen)
	}
}

func TestPacketShortHeaderRoundTrip(t *testing.T) {
	p := &packet{
		typ:             packetTypeShort,
		header:          packetHeader{dcid: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
		packetNumber:    300,
		packetNumberLen: 2,
	}
	b := make([]byte, p.encodedLen())
	if _, err := p.encode(b); err != nil {
		t.Fatalf("encode: %v", err)
	}

	got := &packet{header: packetHeader{dcil: 8}}
	n, err := got.decodeHeader(b)
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if n != len(b)-p.packetNumberLen {
		t.Fatalf("decodeHeader consumed %d, want %d (up to the packet number)", n, len(b)-p.packetNumberLen)
	}
	if got.typ != packetTypeShort {
		t.Fatalf("typ = %v, want Short", got.typ)
	}
	if string(got.header.dcid) != string(p.header.dcid) {
		t.Fatalf("dcid = %x, want %x", got.header.dcid, p.header.dcid)
	}
}

func TestPacketVersionNegotiationDecodeBody(t *testing.T) {
	p := &packet{
		typ: packetTypeVersionNegotiation,
		header: packetHeader{
			dcid: []byte{1, 2, 3, 4},
			scid: []byte{5, 6, 7, 8},
		},
	}
	b := make([]byte, 1+4+1+len(p.header.dcid)+1+len(p.header.scid))
	b[0] = 0x80
	putUint32(b[1:5], 0) // version 0 marks version negotiation
	off := 5
	b[off] = byte(len(p.header.dcid))
	off++
	off += copy(b[off:], p.header.dcid)
	b[off] = byte(len(p.header.scid))
	off++
	off += copy(b[off:], p.header.scid)
	b = append(b, 0, 0, 0, 1, 0, 0, 0, 2) // two supported versions

	got := &packet{}
	hn, err := got.decodeHeader(b)
	if err != nil {
		t.Fatalf("decodeHeader: %v", err)
	}
	if got.typ != packetTypeVersionNegotiation {
		t.Fatalf("typ = %v, want VersionNegotiation", got.typ)
	}
	if _, err := got.decodeBody(b[:hn+8]); err != nil {
		t.Fatalf("decodeBody: %v", err)
	}
	if len(got.supportedVersions) != 2 || got.supportedVersions[0] != 1 || got.supportedVersions[1] != 2 {
		t.Fatalf("supportedVersions = %v, want [1 2]", got.supportedVersions)
	}
}
