package transport

import (
	"crypto/tls"
	"sync"
)

// quicVersion1 is the only wire version this package speaks.
// https://quicwg.org/base-drafts/draft-ietf-quic-transport.html#name-version
const quicVersion1 = 0x00000001

func versionSupported(v uint32) bool {
	return v == quicVersion1
}

// Config holds everything needed to create a client or server Conn: the TLS
// configuration (fed to the external handshake engine) and the local
// transport parameters offered to the peer.
type Config struct {
	Version uint32
	TLS     *tls.Config
	Params  Parameters

	// ResetTokenFunc derives the stateless reset token advertised for a
	// local connection ID. Set by the endpoint that owns the UDP socket:
	// only it can correlate a reset token with the 4-tuple it will later
	// see an unroutable datagram arrive on. Left nil, no stateless reset
	// token is advertised (Params.StatelessResetToken stays unset).
	ResetTokenFunc func(cid []byte) [16]byte

	tokenMu      sync.Mutex
	tokenStore   *tokenStore
	clientTokens map[string][]byte
}

// NewConfig returns a Config with the QUIC v1 wire version and the default
// transport parameters, ready to be tailored by the caller (at minimum,
// setting TLS.Certificates on the server or TLS.ServerName on the client).
func NewConfig(tlsConfig *tls.Config) *Config {
	return &Config{
		Version: quicVersion1,
		TLS:     tlsConfig,
		Params:  DefaultParameters(),
	}
}

// EnableSessionResumption gives a client Config a session cache so repeated
// dials to the same server can resume the TLS session and offer 0-RTT data.
// It has no effect on a server Config.
func (c *Config) EnableSessionResumption() {
	if c.TLS != nil && c.TLS.ClientSessionCache == nil {
		c.TLS.ClientSessionCache = newSessionCache()
	}
}

// tokens lazily creates and returns this Config's server-side NEW_TOKEN
// store, shared across every connection accepted from it.
func (c *Config) tokens() *tokenStore {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.tokenStore == nil {
		c.tokenStore = &tokenStore{}
	}
	return c.tokenStore
}

// token returns a NEW_TOKEN token previously offered by serverName, if any,
// letting a client Config skip a Retry round trip on a repeat connection.
func (c *Config) token(serverName string) []byte {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	return c.clientTokens[serverName]
}

// storeToken remembers a NEW_TOKEN token offered by serverName.
func (c *Config) storeToken(serverName string, token []byte) {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()
	if c.clientTokens == nil {
		c.clientTokens = make(map[string][]byte)
	}
	c.clientTokens[serverName] = append([]byte(nil), token...)
}
