package quic

import (
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/qnet-io/quic/transport"
)

// Conn is a single QUIC connection as seen by the application: safe for
// concurrent use from the Handler goroutine and any number of stream
// readers/writers, unlike the single-threaded transport.Conn it wraps.
type Conn interface {
	// RemoteAddr returns the address of the peer.
	RemoteAddr() net.Addr
	// Stream returns the stream identified by id, creating it if this
	// endpoint may open it and it does not exist yet.
	Stream(id uint64) *transport.Stream
	// Close starts closing the connection, sending errorCode to the peer.
	Close(app bool, errorCode uint64, reason string) error
}

// remoteConn associates a transport.Conn with the network address it
// communicates through and the connection ID indexing it in the local
// connection table.
type remoteConn struct {
	mu   sync.Mutex
	conn *transport.Conn

	scid []byte
	addr net.Addr

	// traceID tags every qlog line for this connection, so logs from a
	// fleet of endpoints can be correlated by connection independent of
	// the CID the peer happens to be using at a given moment (CIDs can
	// change across migration and retirement).
	traceID uuid.UUID

	idleTimer *time.Timer
}

func newRemoteConn(scid []byte, addr net.Addr, conn *transport.Conn) *remoteConn {
	return &remoteConn{
		scid:    append([]byte(nil), scid...),
		addr:    addr,
		conn:    conn,
		traceID: uuid.New(),
	}
}

func (c *remoteConn) RemoteAddr() net.Addr {
	return c.addr
}

func (c *remoteConn) Stream(id uint64) *transport.Stream {
	c.mu.Lock()
	defer c.mu.Unlock()
	st, err := c.conn.Stream(id)
	if err != nil {
		return nil
	}
	return st
}

func (c *remoteConn) Close(app bool, errorCode uint64, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.Close(app, errorCode, reason)
	return nil
}

// writeTo produces the next packet to send for this connection, if any.
func (c *remoteConn) writeTo(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Read(b)
}

// readFrom feeds a received packet into this connection.
func (c *remoteConn) readFrom(b []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Write(b)
}

func (c *remoteConn) timeout() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Timeout()
}

func (c *remoteConn) events(buf []transport.Event) []transport.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.Events(buf)
}

// peerStatelessResetToken returns the token the peer advertised for this
// connection, or nil before it has arrived (e.g. mid-handshake).
func (c *remoteConn) peerStatelessResetToken() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.PeerStatelessResetToken()
}

// forceClose tears down local state immediately, without a CONNECTION_CLOSE
// exchange: used when a stateless reset proves the peer has already
// forgotten this connection.
func (c *remoteConn) forceClose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.ForceClose()
}
