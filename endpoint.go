package quic

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"net"
	"sync"
	"time"

	"github.com/qnet-io/quic/transport"
)

// endpoint drives zero or more transport.Conn instances over a single UDP
// socket: a receive loop demultiplexes datagrams by destination connection
// ID, and a send loop drains each connection's outgoing packets and arms its
// idle/loss-detection timer.
type endpoint struct {
	config *transport.Config
	logger logger
	isClient bool

	socket *net.UDPConn

	mu    sync.Mutex
	conns map[string]*remoteConn // keyed by string(scid)

	handler Handler

	// resetSecret derives every stateless reset token this endpoint ever
	// advertises or recomputes, via HMAC. No per-connection token is ever
	// stored: the same cid always maps back to the same token.
	resetSecret [32]byte

	closeOnce sync.Once
	closeCh   chan struct{}
	wg        sync.WaitGroup
}

func newEndpoint(config *transport.Config, isClient bool) *endpoint {
	e := &endpoint{
		config:   config,
		isClient: isClient,
		conns:    make(map[string]*remoteConn),
		closeCh:  make(chan struct{}),
	}
	if _, err := rand.Read(e.resetSecret[:]); err != nil {
		panic("quic: failed to seed stateless reset secret: " + err.Error())
	}
	if !isClient {
		config.ResetTokenFunc = e.statelessResetToken
	}
	return e
}

// statelessResetToken derives the 16-byte token a peer can later echo back
// in an unroutable datagram to prove it once owned a connection using cid.
// https://quicwg.org/base-drafts/draft-ietf-quic-transport.html#name-calculating-a-stateless-res
func (e *endpoint) statelessResetToken(cid []byte) [16]byte {
	mac := hmac.New(sha256.New, e.resetSecret[:])
	mac.Write(cid)
	sum := mac.Sum(nil)
	var token [16]byte
	copy(token[:], sum)
	return token
}

func (e *endpoint) listenAndServe(addr string) error {
	socket, err := listenUDP("udp", addr)
	if err != nil {
		return err
	}
	e.socket = socket
	e.wg.Add(1)
	go e.recvLoop()
	return nil
}

func (e *endpoint) localAddr() net.Addr {
	if e.socket == nil {
		return nil
	}
	return e.socket.LocalAddr()
}

// recvLoop reads datagrams off the socket, routes each to its connection
// (creating a server-side one on first contact), and kicks the sender.
func (e *endpoint) recvLoop() {
	defer e.wg.Done()
	buf := make([]byte, transport.MaxPacketSize)
	for {
		n, addr, err := e.socket.ReadFromUDP(buf)
		if err != nil {
			select {
			case <-e.closeCh:
				return
			default:
				e.logger.log(levelError, "recv: %v", err)
				return
			}
		}
		e.handleDatagram(buf[:n], addr)
	}
}

func (e *endpoint) handleDatagram(b []byte, addr net.Addr) {
	scid := routingCID(b)
	e.mu.Lock()
	rc, ok := e.conns[string(scid)]
	e.mu.Unlock()
	var isNew bool
	if !ok {
		if e.isClient {
			// Not a connection we created: maybe the server lost its state
			// and this is a stateless reset for one of ours.
			e.checkStatelessReset(b, addr)
			return
		}
		if !looksLikeInitial(b) {
			// Anything that isn't a long-header Initial can't start a new
			// connection; tell whoever sent it that we have no state for
			// the CID it used.
			e.sendStatelessReset(scid, addr, len(b))
			return
		}
		var err error
		rc, err = e.acceptConn(scid, addr)
		if err != nil {
			e.logger.log(levelError, "accept: %v", err)
			return
		}
		isNew = true
	}
	if _, err := rc.readFrom(b); err != nil {
		e.logger.log(levelError, "conn %x: %v", rc.scid, err)
	}
	e.serve(rc, isNew)
	e.pump(rc)
}

// looksLikeInitial reports whether b's first byte marks a long-header
// Initial packet, the only packet type allowed to create a new connection.
func looksLikeInitial(b []byte) bool {
	if len(b) < 1 {
		return false
	}
	return b[0]&0x80 != 0 && (b[0]>>4)&0x3 == 0
}

// minStatelessResetLen is the RFC 9000 §10.3 floor: small enough to be
// mistaken for a short header packet, but large enough to actually carry a
// useful random prefix ahead of the 16-byte token.
const minStatelessResetLen = 21

// sendStatelessReset emits a datagram shaped like an ordinary short header
// packet whose final 16 bytes are dcid's reset token, capped below the
// size of the datagram that triggered it so it can never be used to
// amplify traffic toward addr.
// https://quicwg.org/base-drafts/draft-ietf-quic-transport.html#name-stateless-reset
func (e *endpoint) sendStatelessReset(dcid []byte, addr net.Addr, datagramLen int) {
	n := minStatelessResetLen
	if n >= datagramLen {
		n = datagramLen - 1
	}
	if n < 17 {
		return
	}
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return
	}
	b[0] = (b[0] & 0x3f) | 0x40 // Clear the long-header bit.
	token := e.statelessResetToken(dcid)
	copy(b[len(b)-16:], token[:])
	if _, err := e.socket.WriteTo(b, addr); err != nil {
		e.logger.log(levelError, "stateless reset: %v", err)
	}
}

// checkStatelessReset reports whether b's trailing 16 bytes match a known
// connection's peer-advertised stateless reset token, force-closing that
// connection if so.
func (e *endpoint) checkStatelessReset(b []byte, addr net.Addr) bool {
	if len(b) < 16 {
		return false
	}
	token := b[len(b)-16:]
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, rc := range e.conns {
		if rc.addr.String() != addr.String() {
			continue
		}
		if peer := rc.peerStatelessResetToken(); len(peer) == 16 && bytes.Equal(peer, token) {
			rc.forceClose()
			return true
		}
	}
	return false
}

// acceptConn creates a new server-side connection for a client's Initial
// packet, indexed by the connection ID the client will recognize us by
// from this point: our own randomly generated source CID.
func (e *endpoint) acceptConn(dcid []byte, addr net.Addr) (*remoteConn, error) {
	scid := make([]byte, transport.MaxCIDLength)
	if _, err := rand.Read(scid); err != nil {
		return nil, err
	}
	token := e.statelessResetToken(scid)
	e.config.Params.StatelessResetToken = token[:]
	conn, err := transport.Accept(scid, dcid, e.config)
	if err != nil {
		return nil, err
	}
	rc := newRemoteConn(scid, addr, conn)
	e.logger.attachLogger(rc)
	e.mu.Lock()
	e.conns[string(scid)] = rc
	e.mu.Unlock()
	return rc, nil
}

// connect creates a new client-side connection dialing addr.
func (e *endpoint) connect(addr string) (*remoteConn, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, err
	}
	scid := make([]byte, transport.MaxCIDLength)
	if _, err := rand.Read(scid); err != nil {
		return nil, err
	}
	conn, err := transport.Connect(scid, e.config)
	if err != nil {
		return nil, err
	}
	rc := newRemoteConn(scid, raddr, conn)
	e.logger.attachLogger(rc)
	e.mu.Lock()
	e.conns[string(scid)] = rc
	e.mu.Unlock()
	e.serve(rc, true)
	e.pump(rc)
	return rc, nil
}

// serve delivers accumulated events, plus a synthetic EventConnAccept on
// first contact, to the application handler.
func (e *endpoint) serve(rc *remoteConn, isNew bool) {
	if e.handler == nil {
		return
	}
	var events []transport.Event
	if isNew {
		events = append(events, transport.Event{Type: EventConnAccept})
	}
	events = rc.events(events)
	rc.mu.Lock()
	closed := rc.conn.IsClosed()
	rc.mu.Unlock()
	if closed {
		events = append(events, transport.Event{Type: EventConnClose})
	}
	if len(events) > 0 {
		e.handler.Serve(rc, events)
	}
	if closed {
		e.mu.Lock()
		delete(e.conns, string(rc.scid))
		e.mu.Unlock()
	}
}

// pump drains any packets rc now has to send and schedules its next timeout.
func (e *endpoint) pump(rc *remoteConn) {
	buf := make([]byte, transport.MaxPacketSize)
	for {
		n, err := rc.writeTo(buf)
		if err != nil {
			e.logger.log(levelError, "conn %x: %v", rc.scid, err)
			return
		}
		if n == 0 {
			break
		}
		if _, err := e.socket.WriteTo(buf[:n], rc.addr); err != nil {
			e.logger.log(levelError, "send: %v", err)
			return
		}
	}
	e.armTimer(rc)
}

func (e *endpoint) armTimer(rc *remoteConn) {
	d := rc.timeout()
	if d < 0 {
		if rc.idleTimer != nil {
			rc.idleTimer.Stop()
		}
		return
	}
	if rc.idleTimer == nil {
		rc.idleTimer = time.AfterFunc(d, func() { e.onTimeout(rc) })
	} else {
		rc.idleTimer.Reset(d)
	}
}

func (e *endpoint) onTimeout(rc *remoteConn) {
	// A zero-length Write drives Conn's internal checkTimeout path.
	if _, err := rc.readFrom(nil); err != nil {
		e.logger.log(levelError, "conn %x: timeout: %v", rc.scid, err)
	}
	e.serve(rc, false)
	e.pump(rc)
}

func (e *endpoint) close() error {
	e.closeOnce.Do(func() {
		close(e.closeCh)
		if e.socket != nil {
			e.socket.Close()
		}
	})
	e.wg.Wait()
	return nil
}

// routingCID extracts the destination connection ID used to route a
// datagram to its connection: the DCID length is unknown for short-header
// packets on the wire, so this package always generates and looks up fixed
// MaxCIDLength source CIDs for connections it owns.
func routingCID(b []byte) []byte {
	if len(b) < 1 {
		return nil
	}
	if b[0]&0x80 != 0 {
		// Long header: 1 (first byte) + 4 (version) + 1 (dcid len) ...
		if len(b) < 6 {
			return nil
		}
		dcil := int(b[5])
		if len(b) < 6+dcil {
			return nil
		}
		return b[6 : 6+dcil]
	}
	if len(b) < 1+transport.MaxCIDLength {
		return nil
	}
	return b[1 : 1+transport.MaxCIDLength]
}
