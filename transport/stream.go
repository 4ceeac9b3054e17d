package transport

import "io"

// Stream is a single bidirectional or unidirectional byte stream
// multiplexed over a Conn.
// https://quicwg.org/base-drafts/draft-ietf-quic-transport.html#name-streams
type Stream struct {
	send sendBuffer
	recv recvBuffer

	flow     flowControl
	connFlow *flowControl // Shared with the owning Conn, for connection-level accounting

	updateMaxData bool // MAX_STREAM_DATA waiting to be sent (set again if it is lost)

	// priority orders this stream against others when composing STREAM
	// frames for a packet: lower values are sent first. Streams of equal
	// priority are served in ID order. Defaults to 0, the highest priority,
	// so streams behave as before until an application opts into ordering.
	priority uint8
}

// SetPriority changes the order this stream's data is sent relative to the
// connection's other streams; lower values go first.
func (st *Stream) SetPriority(p uint8) {
	st.priority = p
}

// isStreamLocal reports whether id was opened by the endpoint identified by
// isClient, per the 2 least-significant bits of the stream ID.
// https://quicwg.org/base-drafts/draft-ietf-quic-transport.html#name-stream-types-and-identifier
func isStreamLocal(id uint64, isClient bool) bool {
	clientInitiated := id&0x1 == 0
	return clientInitiated == isClient
}

// isStreamBidi reports whether id is bidirectional.
func isStreamBidi(id uint64) bool {
	return id&0x2 == 0
}

// pushRecv buffers data received on this stream, enforcing and updating the
// stream-level receive window. The connection-level window is left to the
// caller.
func (st *Stream) pushRecv(data []byte, offset uint64, fin bool) error {
	end := offset + uint64(len(data))
	prevMax := st.recv.maxReceived()
	var newBytes int
	if end > prevMax {
		newBytes = int(end - prevMax)
	}
	if uint64(newBytes) > st.flow.canRecv() {
		return errFlowControl
	}
	if err := st.recv.push(data, offset, fin); err != nil {
		return err
	}
	return st.flow.addRecv(newBytes)
}

// popSend returns up to max bytes of outgoing stream data, or the pending
// FIN if all data has been returned already, for placement in a STREAM
// frame.
func (st *Stream) popSend(max int) ([]byte, uint64, bool) {
	return st.send.popSend(max)
}

// ackMaxData marks a previously sent MAX_STREAM_DATA update as acknowledged.
func (st *Stream) ackMaxData() {
	st.updateMaxData = false
}

// Read copies buffered, in-order stream data into p, returning io.EOF once
// the peer's FIN has been delivered and every byte up to it read.
func (st *Stream) Read(p []byte) (int, error) {
	n := st.recv.read(p)
	if n == 0 && st.recv.atFinal() {
		return 0, io.EOF
	}
	return n, nil
}

// Write queues p to be sent on this stream. The bytes are not necessarily on
// the wire yet; call Conn.Read to produce outgoing packets.
func (st *Stream) Write(p []byte) (int, error) {
	if err := st.send.write(p, false); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Close marks the stream's send side as finished, queuing a FIN.
func (st *Stream) Close() error {
	return st.send.write(nil, true)
}

// reset applies a peer RESET_STREAM, returning the number of previously
// unaccounted bytes the reset implies for connection-level flow control.
func (recv *recvBuffer) reset(finalSize uint64) (int, error) {
	if recv.finalSizeSet && recv.finalSize != finalSize {
		return 0, newError(FinalSizeError, "")
	}
	prevMax := recv.maxReceived()
	recv.finalSize = finalSize
	recv.finalSizeSet = true
	if finalSize < prevMax {
		return 0, newError(FinalSizeError, "")
	}
	return int(finalSize - prevMax), nil
}
