package transport

import (
	"crypto/tls"
	"sync"
)

// sessionCache stores TLS session tickets across connections to the same
// server name, so a Config shared by repeated dials can offer 0-RTT data on
// the second and later connections. It implements tls.ClientSessionCache
// and is meant to be set once on a client Config's TLS config, not rebuilt
// per connection.
type sessionCache struct {
	mu    sync.Mutex
	byKey map[string]*tls.ClientSessionState
}

func newSessionCache() *sessionCache {
	return &sessionCache{byKey: make(map[string]*tls.ClientSessionState)}
}

func (c *sessionCache) Get(sessionKey string) (*tls.ClientSessionState, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.byKey[sessionKey]
	return s, ok
}

func (c *sessionCache) Put(sessionKey string, cs *tls.ClientSessionState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cs == nil {
		delete(c.byKey, sessionKey)
		return
	}
	c.byKey[sessionKey] = cs
}

// earlyDataState tracks what happened to 0-RTT data offered on a connection
// attempt that resumed a session, so the application can tell a fresh
// handshake from a resumption whose early data the peer rejected.
type earlyDataState int

const (
	earlyDataNone earlyDataState = iota
	earlyDataOffered
	earlyDataAccepted
	earlyDataRejected
)

func (h *tlsHandshake) offeredEarlyData() bool {
	return h.earlyData == earlyDataOffered || h.earlyData == earlyDataAccepted
}

// rejectEarlyData records that the peer's handshake rejected 0-RTT. It only
// changes the recorded state; no 0-RTT packets are sent by this package, so
// nothing is queued for retransmission.
func (h *tlsHandshake) rejectEarlyData() {
	if h.earlyData == earlyDataOffered || h.earlyData == earlyDataAccepted {
		h.earlyData = earlyDataRejected
	}
}

func (h *tlsHandshake) acceptEarlyData() {
	if h.earlyData == earlyDataOffered {
		h.earlyData = earlyDataAccepted
	}
}

// EarlyDataRejected reports whether a 0-RTT connection attempt had its
// early data rejected by the peer.
func (s *Conn) EarlyDataRejected() bool {
	return s.handshake.earlyData == earlyDataRejected
}
