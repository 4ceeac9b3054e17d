package transport

import "fmt"

// MaxCIDLength is the maximum length of a connection ID, in bytes.
// https://quicwg.org/base-drafts/draft-ietf-quic-transport.html#name-connection-id
const MaxCIDLength = 20

// MinInitialPacketSize is the minimum size of a UDP datagram carrying a
// client Initial packet.
// https://quicwg.org/base-drafts/draft-ietf-quic-transport.html#name-datagram-size
const MinInitialPacketSize = 1200

// MaxPacketSize is the largest packet size this implementation will ever
// produce or accept on a single read/write.
const MaxPacketSize = 65527

// minPayloadLength is the smallest payload an encrypted packet must carry so
// that the sampled header-protection offset always falls inside the packet.
const minPayloadLength = 4

// retryIntegrityTagLen is the length of the Retry Integrity Tag.
const retryIntegrityTagLen = 16

// packetSpace identifies one of the three packet-number spaces.
// https://quicwg.org/base-drafts/draft-ietf-quic-transport.html#packet-numbers
type packetSpace int

const (
	packetSpaceInitial packetSpace = iota
	packetSpaceHandshake
	packetSpaceApplication
	packetSpaceCount
)

func (s packetSpace) String() string {
	switch s {
	case packetSpaceInitial:
		return "initial"
	case packetSpaceHandshake:
		return "handshake"
	case packetSpaceApplication:
		return "application"
	default:
		return "unknown"
	}
}

// packetType is the long-header Type field, plus a pseudo-value for short
// header packets (which carry no explicit type field on the wire).
type packetType uint8

const (
	packetTypeInitial packetType = iota
	packetTypeZeroRTT
	packetTypeHandshake
	packetTypeRetry
	packetTypeVersionNegotiation
	packetTypeShort
)

func (t packetType) String() string {
	switch t {
	case packetTypeInitial:
		return "initial"
	case packetTypeZeroRTT:
		return "0rtt"
	case packetTypeHandshake:
		return "handshake"
	case packetTypeRetry:
		return "retry"
	case packetTypeVersionNegotiation:
		return "version_negotiation"
	case packetTypeShort:
		return "1rtt"
	default:
		return "unknown"
	}
}

// packetTypeFromSpace maps a packet number space to the packet type used to
// carry it. Application space always uses the short header (1-RTT); 0-RTT
// shares the Application packet number space per spec but has its own
// long-header type, and this package never sends 0-RTT packets.
func packetTypeFromSpace(space packetSpace) packetType {
	switch space {
	case packetSpaceInitial:
		return packetTypeInitial
	case packetSpaceHandshake:
		return packetTypeHandshake
	default:
		return packetTypeShort
	}
}

func packetTypeToSpace(t packetType) packetSpace {
	switch t {
	case packetTypeInitial:
		return packetSpaceInitial
	case packetTypeHandshake:
		return packetSpaceHandshake
	default:
		return packetSpaceApplication
	}
}

// packetHeader holds the fields common to long and short headers after
// parsing, before header protection is removed.
type packetHeader struct {
	version uint32
	dcid    []byte
	scid    []byte
	dcil    uint8 // Expected DCID length, used to parse short headers (no explicit length on the wire)
}

// packet represents one QUIC packet, either being decoded from the wire or
// about to be encoded onto it.
type packet struct {
	typ    packetType
	header packetHeader

	token []byte // Initial: address-validation token. Retry: retry token.

	packetNumber    uint64
	packetNumberLen int

	payloadLen int // Long header Length field (PN + payload); set before encrypting/after decrypting

	headerLen int // Bytes consumed decoding up to (not including) the packet number field

	supportedVersions []uint32 // Version Negotiation only
}

func (p *packet) String() string {
	return fmt.Sprintf("type=%s pn=%d dcid=%x scid=%x len=%d", p.typ, p.packetNumber, p.header.dcid, p.header.scid, p.payloadLen)
}

// isLongHeader reports whether the first byte marks a long-header packet.
func isLongHeader(b byte) bool {
	return b&0x80 != 0
}

// decodeHeader parses enough of the packet to determine its type, version
// and CIDs, and (for long headers carrying a length) leaves p.headerLen
// pointing at the first byte of the (still header-protected) packet number
// field. It does not remove header protection or decrypt anything.
func (p *packet) decodeHeader(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, newError(ProtocolViolation, "short packet")
	}
	first := b[0]
	if !isLongHeader(first) {
		return p.decodeShortHeader(b)
	}
	return p.decodeLongHeader(b, first)
}

func (p *packet) decodeShortHeader(b []byte) (int, error) {
	n := 1
	dcil := int(p.header.dcil)
	if len(b) < n+dcil {
		return 0, newError(ProtocolViolation, "short header truncated")
	}
	p.typ = packetTypeShort
	p.header.dcid = b[n : n+dcil]
	n += dcil
	p.headerLen = n
	return n, nil
}

func (p *packet) decodeLongHeader(b []byte, first byte) (int, error) {
	if len(b) < 5 {
		return 0, newError(ProtocolViolation, "long header truncated")
	}
	version := getUint32(b[1:5])
	n := 5
	if version == 0 {
		p.typ = packetTypeVersionNegotiation
	} else {
		switch (first >> 4) & 0x3 {
		case 0:
			p.typ = packetTypeInitial
		case 1:
			p.typ = packetTypeZeroRTT
		case 2:
			p.typ = packetTypeHandshake
		case 3:
			p.typ = packetTypeRetry
		}
	}
	p.header.version = version
	dcil, ok := readLenPrefixed(b, &n, &p.header.dcid)
	if !ok || dcil > MaxCIDLength {
		return 0, newError(ProtocolViolation, "dcid length")
	}
	scil, ok := readLenPrefixed(b, &n, &p.header.scid)
	if !ok || scil > MaxCIDLength {
		return 0, newError(ProtocolViolation, "scid length")
	}
	switch p.typ {
	case packetTypeVersionNegotiation:
		p.headerLen = n
		return n, nil
	case packetTypeRetry:
		p.headerLen = n
		return n, nil
	case packetTypeInitial:
		tokenLen, ok := readVarintBytes(b, &n, &p.token)
		if !ok {
			return 0, newError(ProtocolViolation, "token length")
		}
		_ = tokenLen
		fallthrough
	case packetTypeHandshake, packetTypeZeroRTT:
		var length uint64
		c := getVarint(b[n:], &length)
		if c == 0 {
			return 0, newError(ProtocolViolation, "length")
		}
		n += c
		p.payloadLen = int(length)
		p.headerLen = n
	}
	return n, nil
}

func readLenPrefixed(b []byte, n *int, out *[]byte) (int, bool) {
	if len(b) < *n+1 {
		return 0, false
	}
	l := int(b[*n])
	*n++
	if len(b) < *n+l {
		return 0, false
	}
	*out = b[*n : *n+l]
	*n += l
	return l, true
}

func readVarintBytes(b []byte, n *int, out *[]byte) (int, bool) {
	var l uint64
	c := getVarint(b[*n:], &l)
	if c == 0 {
		return 0, false
	}
	*n += c
	if len(b) < *n+int(l) {
		return 0, false
	}
	*out = b[*n : *n+int(l)]
	*n += int(l)
	return int(l), true
}

// decodeBody parses the type-specific trailer of packets that are not
// AEAD-protected in the normal packet-number-space sense: Version
// Negotiation (list of supported versions) and Retry (token + integrity
// tag, the latter verified separately by verifyRetryIntegrity).
func (p *packet) decodeBody(b []byte) (int, error) {
	switch p.typ {
	case packetTypeVersionNegotiation:
		rest := b[p.headerLen:]
		if len(rest)%4 != 0 {
			return 0, newError(ProtocolViolation, "supported versions")
		}
		p.supportedVersions = p.supportedVersions[:0]
		for i := 0; i+4 <= len(rest); i += 4 {
			p.supportedVersions = append(p.supportedVersions, getUint32(rest[i:i+4]))
		}
		return len(rest), nil
	case packetTypeRetry:
		rest := b[p.headerLen:]
		if len(rest) < retryIntegrityTagLen {
			return 0, newError(ProtocolViolation, "retry too short")
		}
		p.token = rest[:len(rest)-retryIntegrityTagLen]
		return len(rest), nil
	default:
		return 0, newError(InternalError, "decodeBody unsupported for type")
	}
}

// encodedLen returns the number of header bytes this packet will occupy,
// given its current field values (payloadLen must already include the
// packet number length and AEAD overhead for long headers).
func (p *packet) encodedLen() int {
	switch p.typ {
	case packetTypeShort:
		return 1 + len(p.header.dcid) + p.packetNumberLen
	default:
		n := 1 + 4 + 1 + len(p.header.dcid) + 1 + len(p.header.scid)
		if p.typ == packetTypeInitial {
			n += varintLen(uint64(len(p.token))) + len(p.token)
		}
		n += varintLen(uint64(p.payloadLen)) // Length field
		n += p.packetNumberLen
		return n
	}
}

// encode writes the packet header (with packet-number length encoded into
// the header but the packet number bytes themselves still left in place for
// header protection to be applied afterwards) and returns the offset at
// which the (to-be-encrypted) payload begins.
func (p *packet) encode(b []byte) (int, error) {
	if p.packetNumberLen == 0 {
		p.packetNumberLen = packetNumberLen(p.packetNumber, 0)
	}
	switch p.typ {
	case packetTypeShort:
		return p.encodeShortHeader(b)
	default:
		return p.encodeLongHeader(b)
	}
}

func (p *packet) encodeShortHeader(b []byte) (int, error) {
	n := 1 + len(p.header.dcid) + p.packetNumberLen
	if len(b) < n {
		return 0, errShortBuffer
	}
	b[0] = 0x40 | byte(p.packetNumberLen-1)
	copy(b[1:], p.header.dcid)
	off := 1 + len(p.header.dcid)
	encodePacketNumber(b[off:], p.packetNumber, p.packetNumberLen)
	return n, nil
}

func (p *packet) encodeLongHeader(b []byte) (int, error) {
	n := p.encodedLen() + p.packetNumberLen - varintLen(uint64(p.payloadLen))
	_ = n
	off := 0
	first := byte(0xc0)
	switch p.typ {
	case packetTypeInitial:
		first |= 0x00 << 4
	case packetTypeZeroRTT:
		first |= 0x01 << 4
	case packetTypeHandshake:
		first |= 0x02 << 4
	case packetTypeRetry:
		first |= 0x03 << 4
	}
	first |= byte(p.packetNumberLen - 1)
	need := 1 + 4 + 1 + len(p.header.dcid) + 1 + len(p.header.scid)
	if p.typ == packetTypeInitial {
		need += varintLen(uint64(len(p.token))) + len(p.token)
	}
	need += varintLen(uint64(p.payloadLen)) + p.packetNumberLen
	if len(b) < need {
		return 0, errShortBuffer
	}
	b[off] = first
	off++
	putUint32(b[off:], p.header.version)
	off += 4
	b[off] = byte(len(p.header.dcid))
	off++
	off += copy(b[off:], p.header.dcid)
	b[off] = byte(len(p.header.scid))
	off++
	off += copy(b[off:], p.header.scid)
	if p.typ == packetTypeInitial {
		off += putVarint(b[off:], uint64(len(p.token)))
		off += copy(b[off:], p.token)
	}
	off += putVarint(b[off:], uint64(p.payloadLen))
	encodePacketNumber(b[off:], p.packetNumber, p.packetNumberLen)
	off += p.packetNumberLen
	return off, nil
}
