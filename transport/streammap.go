package transport

// streamMap owns every Stream opened on a connection plus the stream-count
// limits in both directions.
// https://quicwg.org/base-drafts/draft-ietf-quic-transport.html#name-controlling-concurrency
type streamMap struct {
	streams map[uint64]*Stream

	// Limits we impose on streams the peer may open.
	maxStreamsBidi uint64
	maxStreamsUni  uint64
	nextBidi       uint64 // count of peer-initiated bidi streams created so far
	nextUni        uint64

	// Limits the peer has granted on streams we may open.
	peerMaxStreamsBidi uint64
	peerMaxStreamsUni  uint64
	localBidi          uint64
	localUni           uint64

	// updateMaxStreamsBidi/Uni mark that maxStreamsBidi/Uni grew and a
	// MAX_STREAMS frame announcing the new value has not been sent yet.
	updateMaxStreamsBidi bool
	updateMaxStreamsUni  bool
}

func (m *streamMap) init(maxBidi, maxUni uint64) {
	m.streams = make(map[uint64]*Stream)
	m.maxStreamsBidi = maxBidi
	m.maxStreamsUni = maxUni
}

func (m *streamMap) get(id uint64) *Stream {
	return m.streams[id]
}

// create allocates a new Stream for id, enforcing the relevant concurrency
// limit depending on who initiated it.
func (m *streamMap) create(id uint64, local, bidi bool) (*Stream, error) {
	if local {
		if bidi {
			if m.localBidi >= m.peerMaxStreamsBidi {
				return nil, errStreamLimit
			}
			m.localBidi++
		} else {
			if m.localUni >= m.peerMaxStreamsUni {
				return nil, errStreamLimit
			}
			m.localUni++
		}
	} else {
		if bidi {
			if m.nextBidi >= m.maxStreamsBidi {
				return nil, errStreamLimit
			}
			m.nextBidi++
		} else {
			if m.nextUni >= m.maxStreamsUni {
				return nil, errStreamLimit
			}
			m.nextUni++
		}
	}
	st := &Stream{}
	m.streams[id] = st
	return st, nil
}

func (m *streamMap) setPeerMaxStreamsBidi(max uint64) {
	if max > m.peerMaxStreamsBidi {
		m.peerMaxStreamsBidi = max
	}
}

func (m *streamMap) setPeerMaxStreamsUni(max uint64) {
	if max > m.peerMaxStreamsUni {
		m.peerMaxStreamsUni = max
	}
}

// growMaxStreams raises the limit advertised to the peer for streams it
// opens, called when the peer reports STREAMS_BLOCKED against the current
// limit, and marks a MAX_STREAMS update as due.
func (m *streamMap) growMaxStreams(bidi bool) {
	if bidi {
		if m.maxStreamsBidi == 0 {
			m.maxStreamsBidi = 1
		} else {
			m.maxStreamsBidi *= 2
		}
		m.updateMaxStreamsBidi = true
	} else {
		if m.maxStreamsUni == 0 {
			m.maxStreamsUni = 1
		} else {
			m.maxStreamsUni *= 2
		}
		m.updateMaxStreamsUni = true
	}
}

// release frees a stream's bookkeeping once both directions are fully
// finished. If id was peer-initiated, this also raises the concurrency
// limit by one and schedules a MAX_STREAMS update, so a stream the peer has
// finished with doesn't permanently shrink the peer's usable ID space.
func (m *streamMap) release(id uint64, local, bidi bool) {
	delete(m.streams, id)
	if local {
		return
	}
	if bidi {
		m.maxStreamsBidi++
		m.updateMaxStreamsBidi = true
	} else {
		m.maxStreamsUni++
		m.updateMaxStreamsUni = true
	}
}

// hasFlushable reports whether any stream has data, a FIN, or a
// MAX_STREAM_DATA update waiting to go out.
func (m *streamMap) hasFlushable() bool {
	for _, st := range m.streams {
		if st.updateMaxData {
			return true
		}
		if len(st.send.resend) > 0 {
			return true
		}
		if st.send.off < uint64(len(st.send.data)) {
			return true
		}
		if st.send.fin && !st.send.finSent {
			return true
		}
	}
	return false
}
