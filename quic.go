// Package quic implements a QUIC endpoint on top of the wire-level state
// machine in the transport subpackage: UDP socket handling, connection
// demultiplexing by connection ID, and the application-facing Client and
// Server types.
package quic

import "github.com/qnet-io/quic/transport"

// Connection-level events, layered on top of transport.EventType's
// stream-level event space.
const (
	// EventConnAccept is delivered once to the handler when a connection
	// (client-initiated Connect, or server-accepted) is new.
	EventConnAccept transport.EventType = 100 + iota
	// EventConnClose is delivered once, after which no further events for
	// this connection will be raised.
	EventConnClose
)

// Handler serves application events raised on a connection.
type Handler interface {
	Serve(c Conn, events []transport.Event)
}

// HandlerFunc adapts a function to a Handler.
type HandlerFunc func(c Conn, events []transport.Event)

func (f HandlerFunc) Serve(c Conn, events []transport.Event) {
	f(c, events)
}
