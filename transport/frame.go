package transport

import "fmt"

// Frame type codes.
// https://quicwg.org/base-drafts/draft-ietf-quic-transport.html#name-frame-types-and-formats
const (
	frameTypePadding              = 0x00
	frameTypePing                 = 0x01
	frameTypeAck                  = 0x02
	frameTypeAckECN               = 0x03
	frameTypeResetStream          = 0x04
	frameTypeStopSending          = 0x05
	frameTypeCrypto               = 0x06
	frameTypeNewToken             = 0x07
	frameTypeStream               = 0x08
	frameTypeStreamEnd            = 0x0f
	frameTypeMaxData              = 0x10
	frameTypeMaxStreamData        = 0x11
	frameTypeMaxStreamsBidi       = 0x12
	frameTypeMaxStreamsUni        = 0x13
	frameTypeDataBlocked          = 0x14
	frameTypeStreamDataBlocked    = 0x15
	frameTypeStreamsBlockedBidi   = 0x16
	frameTypeStreamsBlockedUni    = 0x17
	frameTypeNewConnectionID      = 0x18
	frameTypeRetireConnectionID   = 0x19
	frameTypePathChallenge        = 0x1a
	frameTypePathResponse         = 0x1b
	frameTypeConnectionClose      = 0x1c
	frameTypeApplicationClose     = 0x1d
	frameTypeHanshakeDone         = 0x1e // Spelling kept consistent with conn.go's reference to this identifier.
)

// STREAM frame bit flags, valid for type codes 0x08-0x0f.
const (
	streamFrameBitFin = 0x01
	streamFrameBitLen = 0x02
	streamFrameBitOff = 0x04
)

// isFrameAckEliciting reports whether a frame of the given type counts
// towards making its containing packet ack-eliciting.
// https://quicwg.org/base-drafts/draft-ietf-quic-transport.html#ack-eliciting
func isFrameAckEliciting(typ uint64) bool {
	switch typ {
	case frameTypePadding, frameTypeAck, frameTypeAckECN, frameTypeConnectionClose, frameTypeApplicationClose:
		return false
	default:
		return true
	}
}

// frameAllowedInSpace reports whether a frame of the given type may appear
// in a packet of the given packet number space, per the restrictions table.
// Initial and Handshake packets only ever carry the frames needed to drive
// the handshake itself and close the connection; everything else (stream
// data, flow control, connection migration, ...) is Application-space only.
// https://quicwg.org/base-drafts/draft-ietf-quic-transport.html#name-frames-and-frame-types
func frameAllowedInSpace(typ uint64, space packetSpace) bool {
	if space == packetSpaceApplication {
		return true
	}
	switch typ {
	case frameTypePadding, frameTypePing, frameTypeAck, frameTypeAckECN, frameTypeCrypto, frameTypeConnectionClose:
		return true
	default:
		return false
	}
}

// frame is implemented by all frame types for encoding onto the wire.
// Decoding is done via type-specific decode methods since the caller always
// knows the concrete type from the leading type byte.
type frame interface {
	encodedLen() int
	encode(b []byte) (int, error)
}

// ---- PADDING ----

type paddingFrame struct {
	length int
}

func newPaddingFrame(length int) *paddingFrame {
	return &paddingFrame{length: length}
}

func (f *paddingFrame) encodedLen() int { return f.length }

func (f *paddingFrame) encode(b []byte) (int, error) {
	if len(b) < f.length {
		return 0, errShortBuffer
	}
	for i := 0; i < f.length; i++ {
		b[i] = 0
	}
	return f.length, nil
}

func (f *paddingFrame) decode(b []byte) (int, error) {
	n := 0
	for n < len(b) && b[n] == frameTypePadding {
		n++
	}
	f.length = n
	if n == 0 {
		return 0, newError(FrameEncodingError, "padding")
	}
	return n, nil
}

// ---- PING ----

type pingFrame struct{}

func (f *pingFrame) encodedLen() int { return 1 }

func (f *pingFrame) encode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, errShortBuffer
	}
	b[0] = frameTypePing
	return 1, nil
}

func (f *pingFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != frameTypePing {
		return 0, newError(FrameEncodingError, "ping")
	}
	return 1, nil
}

// ---- ACK ----

type ackFrame struct {
	largestAck    uint64
	ackDelay      uint64
	firstAckRange uint64
	ranges        []ackRange // Additional ranges below the first, newest-first
	ecn           bool
	ect0, ect1, ce uint64
}

type ackRange struct {
	gap      uint64
	ackRange uint64
}

func newAckFrame(ackDelay uint64, rs rangeSet) *ackFrame {
	f := &ackFrame{ackDelay: ackDelay}
	if rs.empty() {
		return f
	}
	// Encode newest-first: iterate rs (ascending) in reverse.
	f.largestAck = rs[len(rs)-1].end
	f.firstAckRange = rs[len(rs)-1].end - rs[len(rs)-1].start
	prevSmallest := rs[len(rs)-1].start
	for i := len(rs) - 2; i >= 0; i-- {
		gap := prevSmallest - rs[i].end - 2
		ar := rs[i].end - rs[i].start
		f.ranges = append(f.ranges, ackRange{gap: gap, ackRange: ar})
		prevSmallest = rs[i].start
	}
	return f
}

// toRangeSet reconstructs the ascending rangeSet this ACK frame covers, or
// nil if the encoding is malformed (e.g. a range would underflow below 0).
func (f *ackFrame) toRangeSet() rangeSet {
	var rs rangeSet
	if f.firstAckRange > f.largestAck {
		return nil
	}
	smallest := f.largestAck - f.firstAckRange
	rs.pushRange(smallest, f.largestAck)
	for _, r := range f.ranges {
		if r.gap+2 > smallest {
			return nil
		}
		largest := smallest - r.gap - 2
		if r.ackRange > largest {
			return nil
		}
		start := largest - r.ackRange
		rs.pushRange(start, largest)
		smallest = start
	}
	return rs
}

func (f *ackFrame) encodedLen() int {
	n := 1 + varintLen(f.largestAck) + varintLen(f.ackDelay) + varintLen(uint64(len(f.ranges))) + varintLen(f.firstAckRange)
	for _, r := range f.ranges {
		n += varintLen(r.gap) + varintLen(r.ackRange)
	}
	if f.ecn {
		n += varintLen(f.ect0) + varintLen(f.ect1) + varintLen(f.ce)
	}
	return n
}

func (f *ackFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	n := 0
	if f.ecn {
		b[0] = frameTypeAckECN
	} else {
		b[0] = frameTypeAck
	}
	n++
	n += putVarint(b[n:], f.largestAck)
	n += putVarint(b[n:], f.ackDelay)
	n += putVarint(b[n:], uint64(len(f.ranges)))
	n += putVarint(b[n:], f.firstAckRange)
	for _, r := range f.ranges {
		n += putVarint(b[n:], r.gap)
		n += putVarint(b[n:], r.ackRange)
	}
	if f.ecn {
		n += putVarint(b[n:], f.ect0)
		n += putVarint(b[n:], f.ect1)
		n += putVarint(b[n:], f.ce)
	}
	return n, nil
}

func (f *ackFrame) decode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, newError(FrameEncodingError, "ack")
	}
	ecn := b[0] == frameTypeAckECN
	if b[0] != frameTypeAck && !ecn {
		return 0, newError(FrameEncodingError, "ack")
	}
	f.ecn = ecn
	n := 1
	var count uint64
	for _, p := range []*uint64{&f.largestAck, &f.ackDelay, &count, &f.firstAckRange} {
		c := getVarint(b[n:], p)
		if c == 0 {
			return 0, newError(FrameEncodingError, "ack")
		}
		n += c
	}
	f.ranges = f.ranges[:0]
	for i := uint64(0); i < count; i++ {
		var gap, ar uint64
		c := getVarint(b[n:], &gap)
		if c == 0 {
			return 0, newError(FrameEncodingError, "ack range")
		}
		n += c
		c = getVarint(b[n:], &ar)
		if c == 0 {
			return 0, newError(FrameEncodingError, "ack range")
		}
		n += c
		f.ranges = append(f.ranges, ackRange{gap: gap, ackRange: ar})
	}
	if ecn {
		for _, p := range []*uint64{&f.ect0, &f.ect1, &f.ce} {
			c := getVarint(b[n:], p)
			if c == 0 {
				return 0, newError(FrameEncodingError, "ack ecn")
			}
			n += c
		}
	}
	return n, nil
}

func (f *ackFrame) String() string {
	return fmt.Sprintf("largest=%d delay=%d first_range=%d ranges=%d", f.largestAck, f.ackDelay, f.firstAckRange, len(f.ranges))
}

// ---- RESET_STREAM ----

type resetStreamFrame struct {
	streamID  uint64
	errorCode uint64
	finalSize uint64
}

func newResetStreamFrame(streamID, errorCode, finalSize uint64) *resetStreamFrame {
	return &resetStreamFrame{streamID: streamID, errorCode: errorCode, finalSize: finalSize}
}

func (f *resetStreamFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.errorCode) + varintLen(f.finalSize)
}

func (f *resetStreamFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	n := 0
	b[0] = frameTypeResetStream
	n++
	n += putVarint(b[n:], f.streamID)
	n += putVarint(b[n:], f.errorCode)
	n += putVarint(b[n:], f.finalSize)
	return n, nil
}

func (f *resetStreamFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != frameTypeResetStream {
		return 0, newError(FrameEncodingError, "reset_stream")
	}
	n := 1
	for _, p := range []*uint64{&f.streamID, &f.errorCode, &f.finalSize} {
		c := getVarint(b[n:], p)
		if c == 0 {
			return 0, newError(FrameEncodingError, "reset_stream")
		}
		n += c
	}
	return n, nil
}

// ---- STOP_SENDING ----

type stopSendingFrame struct {
	streamID  uint64
	errorCode uint64
}

func newStopSendingFrame(streamID, errorCode uint64) *stopSendingFrame {
	return &stopSendingFrame{streamID: streamID, errorCode: errorCode}
}

func (f *stopSendingFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.errorCode)
}

func (f *stopSendingFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	n := 0
	b[0] = frameTypeStopSending
	n++
	n += putVarint(b[n:], f.streamID)
	n += putVarint(b[n:], f.errorCode)
	return n, nil
}

func (f *stopSendingFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != frameTypeStopSending {
		return 0, newError(FrameEncodingError, "stop_sending")
	}
	n := 1
	for _, p := range []*uint64{&f.streamID, &f.errorCode} {
		c := getVarint(b[n:], p)
		if c == 0 {
			return 0, newError(FrameEncodingError, "stop_sending")
		}
		n += c
	}
	return n, nil
}

// ---- CRYPTO ----

type cryptoFrame struct {
	offset uint64
	data   []byte
}

func newCryptoFrame(data []byte, offset uint64) *cryptoFrame {
	return &cryptoFrame{data: data, offset: offset}
}

func (f *cryptoFrame) encodedLen() int {
	return 1 + varintLen(f.offset) + varintLen(uint64(len(f.data))) + len(f.data)
}

func (f *cryptoFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	n := 0
	b[0] = frameTypeCrypto
	n++
	n += putVarint(b[n:], f.offset)
	n += putVarint(b[n:], uint64(len(f.data)))
	n += copy(b[n:], f.data)
	return n, nil
}

func (f *cryptoFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != frameTypeCrypto {
		return 0, newError(FrameEncodingError, "crypto")
	}
	n := 1
	c := getVarint(b[n:], &f.offset)
	if c == 0 {
		return 0, newError(FrameEncodingError, "crypto")
	}
	n += c
	var length uint64
	c = getVarint(b[n:], &length)
	if c == 0 {
		return 0, newError(FrameEncodingError, "crypto")
	}
	n += c
	if uint64(len(b)-n) < length {
		return 0, newError(FrameEncodingError, "crypto")
	}
	f.data = b[n : n+int(length)]
	n += int(length)
	return n, nil
}

func (f *cryptoFrame) String() string {
	return fmt.Sprintf("offset=%d length=%d", f.offset, len(f.data))
}

// ---- NEW_TOKEN ----

type newTokenFrame struct {
	token []byte
}

func newNewTokenFrame(token []byte) *newTokenFrame {
	return &newTokenFrame{token: token}
}

func (f *newTokenFrame) encodedLen() int {
	return 1 + varintLen(uint64(len(f.token))) + len(f.token)
}

func (f *newTokenFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	n := 0
	b[0] = frameTypeNewToken
	n++
	n += putVarint(b[n:], uint64(len(f.token)))
	n += copy(b[n:], f.token)
	return n, nil
}

func (f *newTokenFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != frameTypeNewToken {
		return 0, newError(FrameEncodingError, "new_token")
	}
	n := 1
	var length uint64
	c := getVarint(b[n:], &length)
	if c == 0 {
		return 0, newError(FrameEncodingError, "new_token")
	}
	n += c
	if length == 0 || uint64(len(b)-n) < length {
		return 0, newError(FrameEncodingError, "new_token")
	}
	f.token = b[n : n+int(length)]
	n += int(length)
	return n, nil
}

// ---- STREAM ----

type streamFrame struct {
	streamID uint64
	offset   uint64
	data     []byte
	fin      bool
}

func newStreamFrame(streamID uint64, data []byte, offset uint64, fin bool) *streamFrame {
	return &streamFrame{streamID: streamID, data: data, offset: offset, fin: fin}
}

func (f *streamFrame) typeByte() byte {
	t := byte(frameTypeStream) | streamFrameBitLen
	if f.offset > 0 {
		t |= streamFrameBitOff
	}
	if f.fin {
		t |= streamFrameBitFin
	}
	return t
}

func (f *streamFrame) encodedLen() int {
	n := 1 + varintLen(f.streamID)
	if f.offset > 0 {
		n += varintLen(f.offset)
	}
	n += varintLen(uint64(len(f.data))) + len(f.data)
	return n
}

func (f *streamFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	n := 0
	b[0] = f.typeByte()
	n++
	n += putVarint(b[n:], f.streamID)
	if f.offset > 0 {
		n += putVarint(b[n:], f.offset)
	}
	n += putVarint(b[n:], uint64(len(f.data)))
	n += copy(b[n:], f.data)
	return n, nil
}

func (f *streamFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] < frameTypeStream || b[0] > frameTypeStreamEnd {
		return 0, newError(FrameEncodingError, "stream")
	}
	typ := b[0]
	n := 1
	c := getVarint(b[n:], &f.streamID)
	if c == 0 {
		return 0, newError(FrameEncodingError, "stream")
	}
	n += c
	f.offset = 0
	if typ&streamFrameBitOff != 0 {
		c = getVarint(b[n:], &f.offset)
		if c == 0 {
			return 0, newError(FrameEncodingError, "stream")
		}
		n += c
	}
	f.fin = typ&streamFrameBitFin != 0
	if typ&streamFrameBitLen != 0 {
		var length uint64
		c = getVarint(b[n:], &length)
		if c == 0 {
			return 0, newError(FrameEncodingError, "stream")
		}
		n += c
		if uint64(len(b)-n) < length {
			return 0, newError(FrameEncodingError, "stream")
		}
		f.data = b[n : n+int(length)]
		n += int(length)
	} else {
		// Extends to the end of the packet payload when LEN is unset.
		f.data = b[n:]
		n = len(b)
	}
	return n, nil
}

func (f *streamFrame) String() string {
	return fmt.Sprintf("id=%d offset=%d length=%d fin=%v", f.streamID, f.offset, len(f.data), f.fin)
}

// ---- MAX_DATA ----

type maxDataFrame struct {
	maximumData uint64
}

func newMaxDataFrame(max uint64) *maxDataFrame {
	return &maxDataFrame{maximumData: max}
}

func (f *maxDataFrame) encodedLen() int { return 1 + varintLen(f.maximumData) }

func (f *maxDataFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	b[0] = frameTypeMaxData
	n := 1 + putVarint(b[1:], f.maximumData)
	return n, nil
}

func (f *maxDataFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != frameTypeMaxData {
		return 0, newError(FrameEncodingError, "max_data")
	}
	c := getVarint(b[1:], &f.maximumData)
	if c == 0 {
		return 0, newError(FrameEncodingError, "max_data")
	}
	return 1 + c, nil
}

// ---- MAX_STREAM_DATA ----

type maxStreamDataFrame struct {
	streamID    uint64
	maximumData uint64
}

func newMaxStreamDataFrame(streamID, max uint64) *maxStreamDataFrame {
	return &maxStreamDataFrame{streamID: streamID, maximumData: max}
}

func (f *maxStreamDataFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.maximumData)
}

func (f *maxStreamDataFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	n := 1
	b[0] = frameTypeMaxStreamData
	n += putVarint(b[n:], f.streamID)
	n += putVarint(b[n:], f.maximumData)
	return n, nil
}

func (f *maxStreamDataFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != frameTypeMaxStreamData {
		return 0, newError(FrameEncodingError, "max_stream_data")
	}
	n := 1
	for _, p := range []*uint64{&f.streamID, &f.maximumData} {
		c := getVarint(b[n:], p)
		if c == 0 {
			return 0, newError(FrameEncodingError, "max_stream_data")
		}
		n += c
	}
	return n, nil
}

// ---- MAX_STREAMS ----

type maxStreamsFrame struct {
	bidi           bool
	maximumStreams uint64
}

func newMaxStreamsFrame(max uint64, bidi bool) *maxStreamsFrame {
	return &maxStreamsFrame{bidi: bidi, maximumStreams: max}
}

func (f *maxStreamsFrame) encodedLen() int { return 1 + varintLen(f.maximumStreams) }

func (f *maxStreamsFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	if f.bidi {
		b[0] = frameTypeMaxStreamsBidi
	} else {
		b[0] = frameTypeMaxStreamsUni
	}
	n := 1 + putVarint(b[1:], f.maximumStreams)
	return n, nil
}

func (f *maxStreamsFrame) decode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, newError(FrameEncodingError, "max_streams")
	}
	switch b[0] {
	case frameTypeMaxStreamsBidi:
		f.bidi = true
	case frameTypeMaxStreamsUni:
		f.bidi = false
	default:
		return 0, newError(FrameEncodingError, "max_streams")
	}
	c := getVarint(b[1:], &f.maximumStreams)
	if c == 0 {
		return 0, newError(FrameEncodingError, "max_streams")
	}
	return 1 + c, nil
}

// ---- DATA_BLOCKED ----

type dataBlockedFrame struct {
	dataLimit uint64
}

func newDataBlockedFrame(limit uint64) *dataBlockedFrame {
	return &dataBlockedFrame{dataLimit: limit}
}

func (f *dataBlockedFrame) encodedLen() int { return 1 + varintLen(f.dataLimit) }

func (f *dataBlockedFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	b[0] = frameTypeDataBlocked
	n := 1 + putVarint(b[1:], f.dataLimit)
	return n, nil
}

func (f *dataBlockedFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != frameTypeDataBlocked {
		return 0, newError(FrameEncodingError, "data_blocked")
	}
	c := getVarint(b[1:], &f.dataLimit)
	if c == 0 {
		return 0, newError(FrameEncodingError, "data_blocked")
	}
	return 1 + c, nil
}

// ---- STREAM_DATA_BLOCKED ----

type streamDataBlockedFrame struct {
	streamID  uint64
	dataLimit uint64
}

func newStreamDataBlockedFrame(streamID, limit uint64) *streamDataBlockedFrame {
	return &streamDataBlockedFrame{streamID: streamID, dataLimit: limit}
}

func (f *streamDataBlockedFrame) encodedLen() int {
	return 1 + varintLen(f.streamID) + varintLen(f.dataLimit)
}

func (f *streamDataBlockedFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	n := 1
	b[0] = frameTypeStreamDataBlocked
	n += putVarint(b[n:], f.streamID)
	n += putVarint(b[n:], f.dataLimit)
	return n, nil
}

func (f *streamDataBlockedFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != frameTypeStreamDataBlocked {
		return 0, newError(FrameEncodingError, "stream_data_blocked")
	}
	n := 1
	for _, p := range []*uint64{&f.streamID, &f.dataLimit} {
		c := getVarint(b[n:], p)
		if c == 0 {
			return 0, newError(FrameEncodingError, "stream_data_blocked")
		}
		n += c
	}
	return n, nil
}

// ---- STREAMS_BLOCKED ----

type streamsBlockedFrame struct {
	bidi        bool
	streamLimit uint64
}

func newStreamsBlockedFrame(limit uint64, bidi bool) *streamsBlockedFrame {
	return &streamsBlockedFrame{bidi: bidi, streamLimit: limit}
}

func (f *streamsBlockedFrame) encodedLen() int { return 1 + varintLen(f.streamLimit) }

func (f *streamsBlockedFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	if f.bidi {
		b[0] = frameTypeStreamsBlockedBidi
	} else {
		b[0] = frameTypeStreamsBlockedUni
	}
	n := 1 + putVarint(b[1:], f.streamLimit)
	return n, nil
}

func (f *streamsBlockedFrame) decode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, newError(FrameEncodingError, "streams_blocked")
	}
	switch b[0] {
	case frameTypeStreamsBlockedBidi:
		f.bidi = true
	case frameTypeStreamsBlockedUni:
		f.bidi = false
	default:
		return 0, newError(FrameEncodingError, "streams_blocked")
	}
	c := getVarint(b[1:], &f.streamLimit)
	if c == 0 {
		return 0, newError(FrameEncodingError, "streams_blocked")
	}
	return 1 + c, nil
}

// ---- NEW_CONNECTION_ID ----

type newConnectionIDFrame struct {
	sequenceNumber uint64
	retirePriorTo  uint64
	cid            []byte
	resetToken     [16]byte
}

func newNewConnectionIDFrame(seq, retirePriorTo uint64, cid []byte, token [16]byte) *newConnectionIDFrame {
	return &newConnectionIDFrame{sequenceNumber: seq, retirePriorTo: retirePriorTo, cid: cid, resetToken: token}
}

func (f *newConnectionIDFrame) encodedLen() int {
	return 1 + varintLen(f.sequenceNumber) + varintLen(f.retirePriorTo) + 1 + len(f.cid) + 16
}

func (f *newConnectionIDFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	n := 1
	b[0] = frameTypeNewConnectionID
	n += putVarint(b[n:], f.sequenceNumber)
	n += putVarint(b[n:], f.retirePriorTo)
	b[n] = byte(len(f.cid))
	n++
	n += copy(b[n:], f.cid)
	n += copy(b[n:], f.resetToken[:])
	return n, nil
}

func (f *newConnectionIDFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != frameTypeNewConnectionID {
		return 0, newError(FrameEncodingError, "new_connection_id")
	}
	n := 1
	for _, p := range []*uint64{&f.sequenceNumber, &f.retirePriorTo} {
		c := getVarint(b[n:], p)
		if c == 0 {
			return 0, newError(FrameEncodingError, "new_connection_id")
		}
		n += c
	}
	if len(b) < n+1 {
		return 0, newError(FrameEncodingError, "new_connection_id")
	}
	l := int(b[n])
	n++
	if l > MaxCIDLength || len(b) < n+l+16 {
		return 0, newError(FrameEncodingError, "new_connection_id")
	}
	f.cid = b[n : n+l]
	n += l
	copy(f.resetToken[:], b[n:n+16])
	n += 16
	return n, nil
}

// ---- RETIRE_CONNECTION_ID ----

type retireConnectionIDFrame struct {
	sequenceNumber uint64
}

func newRetireConnectionIDFrame(seq uint64) *retireConnectionIDFrame {
	return &retireConnectionIDFrame{sequenceNumber: seq}
}

func (f *retireConnectionIDFrame) encodedLen() int { return 1 + varintLen(f.sequenceNumber) }

func (f *retireConnectionIDFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	b[0] = frameTypeRetireConnectionID
	n := 1 + putVarint(b[1:], f.sequenceNumber)
	return n, nil
}

func (f *retireConnectionIDFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != frameTypeRetireConnectionID {
		return 0, newError(FrameEncodingError, "retire_connection_id")
	}
	c := getVarint(b[1:], &f.sequenceNumber)
	if c == 0 {
		return 0, newError(FrameEncodingError, "retire_connection_id")
	}
	return 1 + c, nil
}

// ---- PATH_CHALLENGE / PATH_RESPONSE ----

type pathChallengeFrame struct {
	data [8]byte
}

func newPathChallengeFrame(data [8]byte) *pathChallengeFrame {
	return &pathChallengeFrame{data: data}
}

func (f *pathChallengeFrame) encodedLen() int { return 9 }

func (f *pathChallengeFrame) encode(b []byte) (int, error) {
	if len(b) < 9 {
		return 0, errShortBuffer
	}
	b[0] = frameTypePathChallenge
	copy(b[1:9], f.data[:])
	return 9, nil
}

func (f *pathChallengeFrame) decode(b []byte) (int, error) {
	if len(b) < 9 || b[0] != frameTypePathChallenge {
		return 0, newError(FrameEncodingError, "path_challenge")
	}
	copy(f.data[:], b[1:9])
	return 9, nil
}

type pathResponseFrame struct {
	data [8]byte
}

func newPathResponseFrame(data [8]byte) *pathResponseFrame {
	return &pathResponseFrame{data: data}
}

func (f *pathResponseFrame) encodedLen() int { return 9 }

func (f *pathResponseFrame) encode(b []byte) (int, error) {
	if len(b) < 9 {
		return 0, errShortBuffer
	}
	b[0] = frameTypePathResponse
	copy(b[1:9], f.data[:])
	return 9, nil
}

func (f *pathResponseFrame) decode(b []byte) (int, error) {
	if len(b) < 9 || b[0] != frameTypePathResponse {
		return 0, newError(FrameEncodingError, "path_response")
	}
	copy(f.data[:], b[1:9])
	return 9, nil
}

// ---- CONNECTION_CLOSE ----

type connectionCloseFrame struct {
	application  bool
	errorCode    uint64
	frameType    uint64 // Transport variant only: frame type that triggered the error, 0 if unknown
	reasonPhrase []byte
}

func newConnectionCloseFrame(errorCode, frameType uint64, reason []byte, application bool) *connectionCloseFrame {
	return &connectionCloseFrame{application: application, errorCode: errorCode, frameType: frameType, reasonPhrase: reason}
}

func (f *connectionCloseFrame) encodedLen() int {
	n := 1 + varintLen(f.errorCode)
	if !f.application {
		n += varintLen(f.frameType)
	}
	n += varintLen(uint64(len(f.reasonPhrase))) + len(f.reasonPhrase)
	return n
}

func (f *connectionCloseFrame) encode(b []byte) (int, error) {
	if len(b) < f.encodedLen() {
		return 0, errShortBuffer
	}
	n := 1
	if f.application {
		b[0] = frameTypeApplicationClose
	} else {
		b[0] = frameTypeConnectionClose
	}
	n += putVarint(b[n:], f.errorCode)
	if !f.application {
		n += putVarint(b[n:], f.frameType)
	}
	n += putVarint(b[n:], uint64(len(f.reasonPhrase)))
	n += copy(b[n:], f.reasonPhrase)
	return n, nil
}

func (f *connectionCloseFrame) decode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, newError(FrameEncodingError, "connection_close")
	}
	switch b[0] {
	case frameTypeConnectionClose:
		f.application = false
	case frameTypeApplicationClose:
		f.application = true
	default:
		return 0, newError(FrameEncodingError, "connection_close")
	}
	n := 1
	c := getVarint(b[n:], &f.errorCode)
	if c == 0 {
		return 0, newError(FrameEncodingError, "connection_close")
	}
	n += c
	f.frameType = 0
	if !f.application {
		c = getVarint(b[n:], &f.frameType)
		if c == 0 {
			return 0, newError(FrameEncodingError, "connection_close")
		}
		n += c
	}
	var length uint64
	c = getVarint(b[n:], &length)
	if c == 0 {
		return 0, newError(FrameEncodingError, "connection_close")
	}
	n += c
	if uint64(len(b)-n) < length {
		return 0, newError(FrameEncodingError, "connection_close")
	}
	f.reasonPhrase = b[n : n+int(length)]
	n += int(length)
	return n, nil
}

func (f *connectionCloseFrame) String() string {
	return fmt.Sprintf("app=%v code=%s reason=%s", f.application, errorCodeString(f.errorCode), f.reasonPhrase)
}

// ---- HANDSHAKE_DONE ----

type handshakeDoneFrame struct{}

func (f *handshakeDoneFrame) encodedLen() int { return 1 }

func (f *handshakeDoneFrame) encode(b []byte) (int, error) {
	if len(b) < 1 {
		return 0, errShortBuffer
	}
	b[0] = frameTypeHanshakeDone
	return 1, nil
}

func (f *handshakeDoneFrame) decode(b []byte) (int, error) {
	if len(b) < 1 || b[0] != frameTypeHanshakeDone {
		return 0, newError(FrameEncodingError, "handshake_done")
	}
	return 1, nil
}

// ---- encoding helper ----

// encodeFrames writes frames sequentially into b.
func encodeFrames(b []byte, frames []frame) (int, error) {
	n := 0
	for _, f := range frames {
		m, err := f.encode(b[n:])
		if err != nil {
			return 0, err
		}
		n += m
	}
	return n, nil
}
