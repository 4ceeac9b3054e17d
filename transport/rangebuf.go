package transport

import "sort"

// sendBuffer is an ordered byte buffer for data an endpoint is sending on a
// stream or CRYPTO stream. Bytes are appended once by the application (or
// handshake engine) and may need to be served again verbatim if the packet
// carrying them is declared lost — same-offset retransmissions must be
// byte-identical, so the buffer keeps every byte until it is acknowledged.
type sendBuffer struct {
	data []byte // All bytes written so far; data[i] is byte at offset i.
	off  uint64 // Offset of the first byte not yet sent at all.

	acked  rangeSet // Offsets acknowledged by the peer.
	resend rangeSet // Offsets explicitly due for retransmission (declared lost).

	fin       bool
	finOffset uint64
	finSent   bool
	finAcked  bool
}

// write appends application/handshake bytes to the tail of the buffer.
func (b *sendBuffer) write(p []byte, fin bool) error {
	if b.fin && len(p) > 0 {
		return newError(StreamStateError, "write after fin")
	}
	b.data = append(b.data, p...)
	if fin {
		b.fin = true
		b.finOffset = uint64(len(b.data))
	}
	return nil
}

// push reinjects a previously sent range for retransmission (on loss) or,
// for an initial write at the current tail, behaves like write. offset must
// not create a gap with existing data for initial writes.
func (b *sendBuffer) push(p []byte, offset uint64, fin bool) error {
	if offset+uint64(len(p)) <= uint64(len(b.data)) {
		// Entirely within already-written data: this is a retransmit request
		// for bytes we still hold; just mark it for resend.
		b.resend.pushRange(offset, offset+uint64(len(p))-1)
		if fin {
			b.fin = true
			b.finOffset = offset + uint64(len(p))
		}
		return nil
	}
	if offset != uint64(len(b.data)) {
		return newError(InternalError, "send buffer gap")
	}
	return b.write(p, fin)
}

// popSend returns up to max bytes to place in the next outgoing packet,
// preferring ranges explicitly marked for resend over fresh tail bytes, and
// reports whether FIN should be set on this chunk.
func (b *sendBuffer) popSend(max int) ([]byte, uint64, bool) {
	if len(b.resend) > 0 {
		r := b.resend[0]
		end := r.end + 1
		if end-r.start > uint64(max) {
			end = r.start + uint64(max)
		}
		b.resend.removeUntil(end - 1)
		fin := b.fin && end == b.finOffset
		return b.data[r.start:end], r.start, fin
	}
	if b.off >= uint64(len(b.data)) {
		if b.fin && !b.finSent {
			b.finSent = true
			return nil, b.finOffset, true
		}
		return nil, b.off, false
	}
	end := uint64(len(b.data))
	if end-b.off > uint64(max) {
		end = b.off + uint64(max)
	}
	data := b.data[b.off:end]
	start := b.off
	b.off = end
	fin := b.fin && end == uint64(len(b.data)) && !b.finSent
	if fin {
		b.finSent = true
	}
	return data, start, fin
}

// ack records that the peer has acknowledged [offset, offset+length).
func (b *sendBuffer) ack(offset, length uint64) {
	if length == 0 {
		if b.fin && offset == b.finOffset {
			b.finAcked = true
		}
		return
	}
	b.acked.pushRange(offset, offset+length-1)
	if b.fin && offset+length == b.finOffset {
		b.finAcked = true
	}
}

// complete reports whether every byte written, including FIN, is acked.
func (b *sendBuffer) complete() bool {
	if !b.fin || !b.finAcked {
		return false
	}
	if len(b.data) == 0 {
		return true
	}
	return !b.acked.empty() && b.acked.smallest() == 0 && b.acked.largest() >= uint64(len(b.data))-1
}

// recvChunk is one contiguously-received piece of stream data awaiting
// reassembly.
type recvChunk struct {
	offset uint64
	data   []byte
}

// recvBuffer reassembles possibly-out-of-order, possibly-overlapping STREAM
// or CRYPTO frame payloads into an in-order byte stream.
type recvBuffer struct {
	chunks     []recvChunk // Sorted by offset; may overlap, read skips bytes already delivered
	readOffset uint64
	received   rangeSet

	finalSize    uint64
	finalSizeSet bool
}

// push buffers data received at offset, recording fin's final size if set.
// Returns a FinalSizeError if this contradicts a previously established
// final size, and a PROTOCOL_VIOLATION-flavoured error if overlapping bytes
// at the same offset differ from what is still buffered. Bytes below the read
// offset are no longer compared.
func (b *recvBuffer) push(data []byte, offset uint64, fin bool) error {
	end := offset + uint64(len(data))
	if fin {
		if b.finalSizeSet && b.finalSize != end {
			return newError(FinalSizeError, "")
		}
		b.finalSize = end
		b.finalSizeSet = true
	} else if b.finalSizeSet && end > b.finalSize {
		return newError(FinalSizeError, "")
	}
	if len(data) == 0 {
		return nil
	}
	if end <= b.readOffset {
		return nil // Already delivered; duplicate.
	}
	if offset < b.readOffset {
		data = data[b.readOffset-offset:]
		offset = b.readOffset
	}
	for _, c := range b.chunks {
		lo, hi := c.offset, c.offset+uint64(len(c.data))
		if lo < offset {
			lo = offset
		}
		if hi > end {
			hi = end
		}
		for o := lo; o < hi; o++ {
			if data[o-offset] != c.data[o-c.offset] {
				return newError(ProtocolViolation, "")
			}
		}
	}
	i := sort.Search(len(b.chunks), func(i int) bool { return b.chunks[i].offset >= offset })
	cp := append([]byte(nil), data...)
	b.chunks = append(b.chunks, recvChunk{})
	copy(b.chunks[i+1:], b.chunks[i:])
	b.chunks[i] = recvChunk{offset: offset, data: cp}
	b.received.pushRange(offset, offset+uint64(len(data))-1)
	return nil
}

// read copies the contiguous prefix starting at readOffset into b, advancing
// past delivered bytes, and reports how many bytes were copied.
func (b *recvBuffer) read(out []byte) int {
	n := 0
	for n < len(out) && len(b.chunks) > 0 {
		c := &b.chunks[0]
		if c.offset > b.readOffset {
			break
		}
		skip := b.readOffset - c.offset
		if skip >= uint64(len(c.data)) {
			b.chunks = b.chunks[1:]
			continue
		}
		avail := c.data[skip:]
		m := copy(out[n:], avail)
		n += m
		b.readOffset += uint64(m)
		if m == len(avail) {
			b.chunks = b.chunks[1:]
		} else {
			break
		}
	}
	return n
}

// readableLen reports how many contiguous bytes are available to read now.
func (b *recvBuffer) readableLen() uint64 {
	if len(b.chunks) == 0 || b.chunks[0].offset > b.readOffset {
		return 0
	}
	end := b.readOffset
	for _, c := range b.chunks {
		if c.offset > end {
			break
		}
		if c.offset+uint64(len(c.data)) > end {
			end = c.offset + uint64(len(c.data))
		}
	}
	return end - b.readOffset
}

// atFinal reports whether every byte up to the established final size has
// been read.
func (b *recvBuffer) atFinal() bool {
	return b.finalSizeSet && b.readOffset >= b.finalSize
}

// maxReceived returns the highest offset buffered so far, for flow-control
// accounting of data the receiver has committed to (even if unread).
func (b *recvBuffer) maxReceived() uint64 {
	if b.received.empty() {
		return b.readOffset
	}
	if b.received.largest()+1 > b.readOffset {
		return b.received.largest() + 1
	}
	return b.readOffset
}
