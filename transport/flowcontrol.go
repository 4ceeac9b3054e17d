package transport

// flowControl tracks one flow-controlled limit pair (what we allow the peer
// to send us, and what the peer allows us to send it) for either a single
// stream or a whole connection.
// https://quicwg.org/base-drafts/draft-ietf-quic-transport.html#name-flow-control
type flowControl struct {
	recvUsed uint64 // Cumulative bytes received so far
	recvMax  uint64 // Limit communicated to the peer (MAX_DATA/MAX_STREAM_DATA)

	// maxRecvNext is the next limit to advertise once shouldUpdateMaxRecv
	// reports true; it grows independently of recvMax so repeated reads
	// don't each trigger a frame.
	maxRecvNext uint64

	sendUsed uint64 // Bytes we have sent so far
	sendMax  uint64 // Limit the peer has granted us
}

func (f *flowControl) init(maxRecv, maxSend uint64) {
	f.recvMax = maxRecv
	f.maxRecvNext = maxRecv
	f.sendMax = maxSend
}

// canRecv returns how many more bytes may be received before recvMax is hit.
func (f *flowControl) canRecv() uint64 {
	if f.recvUsed >= f.recvMax {
		return 0
	}
	return f.recvMax - f.recvUsed
}

// addRecv accounts for n newly received bytes, returning a flow control
// error if this exceeds the advertised limit, and grows maxRecvNext once
// the window is mostly consumed.
func (f *flowControl) addRecv(n int) error {
	f.recvUsed += uint64(n)
	if f.recvUsed > f.recvMax {
		return errFlowControl
	}
	if f.recvUsed*2 >= f.maxRecvNext {
		f.maxRecvNext = f.recvMax * 2
	}
	return nil
}

// canSend returns how many more bytes may be sent before sendMax is hit.
func (f *flowControl) canSend() uint64 {
	if f.sendUsed >= f.sendMax {
		return 0
	}
	return f.sendMax - f.sendUsed
}

func (f *flowControl) addSend(n uint64) {
	f.sendUsed += n
}

// setMaxSend installs a new peer-granted limit, ignoring attempts to shrink it.
func (f *flowControl) setMaxSend(max uint64) {
	if max > f.sendMax {
		f.sendMax = max
	}
}

// shouldUpdateMaxRecv reports whether a MAX_DATA/MAX_STREAM_DATA frame
// should be queued to announce maxRecvNext. The growth trigger lives in
// addRecv so repeated small reads don't each demand a frame.
func (f *flowControl) shouldUpdateMaxRecv() bool {
	return f.maxRecvNext > f.recvMax
}

// commitMaxRecv marks maxRecvNext as sent to the peer.
func (f *flowControl) commitMaxRecv() {
	f.recvMax = f.maxRecvNext
}

// forceGrow schedules a larger advertised limit regardless of how much of
// the current window has been consumed, for when the peer reports being
// blocked at the current limit (DATA_BLOCKED/STREAM_DATA_BLOCKED) even
// though our own usage-based heuristic in addRecv hasn't fired yet.
func (f *flowControl) forceGrow() {
	if f.maxRecvNext <= f.recvMax {
		grown := f.recvMax * 2
		if grown == 0 {
			grown = 1
		}
		f.maxRecvNext = grown
	}
}
