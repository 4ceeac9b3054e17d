package quic

import (
	"io"

	"github.com/qnet-io/quic/transport"
)

// Server accepts inbound QUIC connections and serves their lifecycle events.
type Server struct {
	endpoint *endpoint
}

// NewServer returns a Server using config for every accepted connection.
// config.TLS must carry at least one certificate.
func NewServer(config *transport.Config) *Server {
	return &Server{endpoint: newEndpoint(config, false)}
}

// SetHandler installs the handler invoked with each connection's events.
func (s *Server) SetHandler(h Handler) {
	s.endpoint.handler = h
}

// SetLogger enables qlog-style transaction logging at the given verbosity
// (0=off 1=error 2=info 3=debug 4=trace) to w.
func (s *Server) SetLogger(level int, w io.Writer) {
	s.endpoint.logger.level = logLevel(level)
	s.endpoint.logger.setWriter(w)
}

// ListenAndServe accepts connections on addr until Close is called.
func (s *Server) ListenAndServe(addr string) error {
	return s.endpoint.listenAndServe(addr)
}

// Close shuts down the server's socket and every connection on it.
func (s *Server) Close() error {
	return s.endpoint.close()
}
