package transport

import "time"

// pathManager tracks the peer's alternate connection IDs (offered via
// NEW_CONNECTION_ID for future migration) and answers path validation
// challenges on the single path this endpoint actually uses.
// https://quicwg.org/base-drafts/draft-ietf-quic-transport.html#name-connection-migration
type pathManager struct {
	peerCIDs    []peerCID
	retiredUpTo uint64

	// pendingResponse holds the payload of a PATH_CHALLENGE received but not
	// yet answered with a PATH_RESPONSE.
	pendingResponse *[8]byte

	// localCIDs are the connection IDs this endpoint has minted for the
	// peer to address it by, beyond the one carried in transport
	// parameters. nextLocalSeq is the sequence number the next mint uses;
	// it starts at 1 since 0 is implicitly the transport-parameter CID.
	localCIDs    []localCID
	nextLocalSeq uint64

	// pendingIssue holds minted NEW_CONNECTION_ID frames not yet sent.
	pendingIssue []*newConnectionIDFrame
}

type peerCID struct {
	sequenceNumber uint64
	cid            []byte
	resetToken     [16]byte
}

type localCID struct {
	sequenceNumber uint64
	cid            []byte
}

func (pm *pathManager) retireUpTo(seq uint64) {
	if seq <= pm.retiredUpTo {
		return
	}
	kept := pm.peerCIDs[:0]
	for _, c := range pm.peerCIDs {
		if c.sequenceNumber < seq {
			continue
		}
		kept = append(kept, c)
	}
	pm.peerCIDs = kept
	pm.retiredUpTo = seq
}

// recvFramePathChallenge queues a PATH_RESPONSE carrying the same payload,
// per §4.4's rule that a challenge must be answered on the path it arrived
// on before any other traffic.
func (s *Conn) recvFramePathChallenge(b []byte, now time.Time) (int, error) {
	f := &pathChallengeFrame{}
	n, err := f.decode(b)
	if err != nil {
		return 0, err
	}
	data := f.data
	s.path.pendingResponse = &data
	return n, nil
}

// recvFramePathResponse is a no-op: this endpoint never migrates away from
// the address it dialed or accepted on, so it never issues a PATH_CHALLENGE
// of its own and has nothing to correlate a response against.
func (s *Conn) recvFramePathResponse(b []byte, now time.Time) (int, error) {
	f := &pathResponseFrame{}
	return f.decode(b)
}

func (s *Conn) recvFrameNewConnectionID(b []byte, now time.Time) (int, error) {
	f := &newConnectionIDFrame{}
	n, err := f.decode(b)
	if err != nil {
		return 0, err
	}
	if f.retirePriorTo > 0 {
		s.path.retireUpTo(f.retirePriorTo)
	}
	if f.sequenceNumber >= s.path.retiredUpTo {
		s.path.peerCIDs = append(s.path.peerCIDs, peerCID{
			sequenceNumber: f.sequenceNumber,
			cid:            append([]byte(nil), f.cid...),
			resetToken:     f.resetToken,
		})
	}
	return n, nil
}

// recvFrameRetireConnectionID drops the local CID the peer says it will no
// longer use and mints a replacement, so retiring a CID never leaves the
// peer with a shrinking pool to migrate with.
func (s *Conn) recvFrameRetireConnectionID(b []byte, now time.Time) (int, error) {
	f := &retireConnectionIDFrame{}
	n, err := f.decode(b)
	if err != nil {
		return 0, err
	}
	found := false
	kept := s.path.localCIDs[:0]
	for _, c := range s.path.localCIDs {
		if c.sequenceNumber == f.sequenceNumber {
			found = true
			continue
		}
		kept = append(kept, c)
	}
	s.path.localCIDs = kept
	if found {
		if _, err := s.mintLocalCID(); err != nil {
			debug("mint replacement cid: %v", err)
		}
	}
	return n, nil
}

func (s *Conn) sendFramePathResponse() *pathResponseFrame {
	if s.path.pendingResponse == nil {
		return nil
	}
	data := *s.path.pendingResponse
	s.path.pendingResponse = nil
	return newPathResponseFrame(data)
}

// mintLocalCID generates and registers a new local connection ID, queuing a
// NEW_CONNECTION_ID frame announcing it to the peer.
func (s *Conn) mintLocalCID() (*newConnectionIDFrame, error) {
	cid := make([]byte, MaxCIDLength)
	if err := s.rand(cid); err != nil {
		return nil, err
	}
	var token [16]byte
	if s.config != nil && s.config.ResetTokenFunc != nil {
		token = s.config.ResetTokenFunc(cid)
	}
	if s.path.nextLocalSeq == 0 {
		s.path.nextLocalSeq = 1 // 0 is implicitly the transport-parameter CID
	}
	seq := s.path.nextLocalSeq
	s.path.nextLocalSeq++
	s.path.localCIDs = append(s.path.localCIDs, localCID{sequenceNumber: seq, cid: cid})
	f := newNewConnectionIDFrame(seq, 0, cid, token)
	s.path.pendingIssue = append(s.path.pendingIssue, f)
	return f, nil
}

// issueLocalCIDs mints up to n additional local connection IDs, so a peer
// has spare CIDs on hand for migration as soon as the handshake confirms.
func (s *Conn) issueLocalCIDs(n int) {
	for i := 0; i < n; i++ {
		if _, err := s.mintLocalCID(); err != nil {
			debug("mint local cid: %v", err)
			return
		}
	}
}

// sendFrameNewConnectionID returns the next minted NEW_CONNECTION_ID frame
// waiting to be sent, without dequeuing it.
func (s *Conn) sendFrameNewConnectionID() *newConnectionIDFrame {
	if len(s.path.pendingIssue) == 0 {
		return nil
	}
	return s.path.pendingIssue[0]
}

// popFrameNewConnectionID dequeues the frame last returned by
// sendFrameNewConnectionID, once it has actually been added to a packet.
func (s *Conn) popFrameNewConnectionID() {
	s.path.pendingIssue = s.path.pendingIssue[1:]
}
