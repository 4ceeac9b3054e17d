package quic

import (
	"io"

	"github.com/qnet-io/quic/transport"
)

// Client dials outbound QUIC connections and serves their lifecycle events.
type Client struct {
	endpoint *endpoint
}

// NewClient returns a Client using config for every connection it creates.
func NewClient(config *transport.Config) *Client {
	return &Client{endpoint: newEndpoint(config, true)}
}

// SetHandler installs the handler invoked with each connection's events.
func (c *Client) SetHandler(h Handler) {
	c.endpoint.handler = h
}

// SetLogger enables qlog-style transaction logging at the given verbosity
// (0=off 1=error 2=info 3=debug 4=trace) to w.
func (c *Client) SetLogger(level int, w io.Writer) {
	c.endpoint.logger.level = logLevel(level)
	c.endpoint.logger.setWriter(w)
}

// ListenAndServe opens the local UDP socket Connect will send from.
func (c *Client) ListenAndServe(addr string) error {
	return c.endpoint.listenAndServe(addr)
}

// Connect dials a new connection to addr.
func (c *Client) Connect(addr string) error {
	_, err := c.endpoint.connect(addr)
	return err
}

// Close shuts down the client's socket and every connection on it.
func (c *Client) Close() error {
	return c.endpoint.close()
}
