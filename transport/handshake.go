package transport

import (
	"context"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/tls"
	"hash"

	"golang.org/x/crypto/hkdf"
)

// tlsHandshake drives the external handshake engine named in spec.md §1:
// this package treats the TLS 1.3 state machine as an opaque collaborator,
// reached here through the standard library's crypto/tls QUIC binding
// (tls.QUICConn), which already speaks exactly the "CRYPTO bytes in,
// keys/params/alerts out" contract spec.md describes.
type tlsHandshake struct {
	conn   *Conn
	qconn  *tls.QUICConn
	tlsConfig *tls.Config

	started   bool
	complete  bool
	peerParams Parameters
	gotPeerParams bool

	earlyData earlyDataState
}

func (h *tlsHandshake) init(c *Conn, cfg *tls.Config) {
	h.conn = c
	h.tlsConfig = cfg
	qcfg := &tls.QUICConfig{TLSConfig: cfg}
	if c.isClient {
		h.qconn = tls.QUICClient(qcfg)
		if cfg.ClientSessionCache != nil {
			h.earlyData = earlyDataOffered
		}
	} else {
		h.qconn = tls.QUICServer(qcfg)
	}
}

func (h *tlsHandshake) reset() {
	cfg := h.tlsConfig
	c := h.conn
	h.init(c, cfg)
}

func (h *tlsHandshake) setTransportParams(p *Parameters) {
	if h.qconn != nil {
		h.qconn.SetTransportParameters(p.Marshal())
	}
}

func (h *tlsHandshake) HandshakeComplete() bool { return h.complete }

func (h *tlsHandshake) peerTransportParams() *Parameters {
	if !h.gotPeerParams {
		return nil
	}
	return &h.peerParams
}

// writeSpace returns the packet-number space the handshake would like to
// write into right now (used when probing on PTO expiry): the latest space
// whose keys can encrypt, with Application only once the connection is
// active.
func (h *tlsHandshake) writeSpace() packetSpace {
	if h.conn.state >= stateActive && h.conn.packetNumberSpaces[packetSpaceApplication].canEncrypt() {
		return packetSpaceApplication
	}
	if h.conn.packetNumberSpaces[packetSpaceHandshake].canEncrypt() {
		return packetSpaceHandshake
	}
	return packetSpaceInitial
}

// doHandshake feeds any buffered received CRYPTO bytes into the TLS state
// machine and drains resulting events: new keys to install, outgoing CRYPTO
// bytes to queue, transport parameters received, and handshake completion.
func (h *tlsHandshake) doHandshake() error {
	if !h.started {
		h.started = true
		if err := h.qconn.Start(context.Background()); err != nil {
			return tlsHandshakeError(err)
		}
	}
	for space := packetSpaceInitial; space <= packetSpaceHandshake; space++ {
		level := spaceToQUICLevel(space)
		cs := &h.conn.packetNumberSpaces[space].cryptoStream
		for cs.recv.readableLen() > 0 {
			buf := make([]byte, cs.recv.readableLen())
			n := cs.recv.read(buf)
			if err := h.qconn.HandleData(level, buf[:n]); err != nil {
				return tlsHandshakeError(err)
			}
		}
	}
	// 1-RTT CRYPTO (post-handshake messages, e.g. NewSessionTicket) is
	// delivered the same way once Application keys are installed.
	if h.conn.packetNumberSpaces[packetSpaceApplication].canDecrypt() {
		cs := &h.conn.packetNumberSpaces[packetSpaceApplication].cryptoStream
		for cs.recv.readableLen() > 0 {
			buf := make([]byte, cs.recv.readableLen())
			n := cs.recv.read(buf)
			if err := h.qconn.HandleData(tls.QUICEncryptionLevelApplication, buf[:n]); err != nil {
				return tlsHandshakeError(err)
			}
		}
	}
	for {
		e := h.qconn.NextEvent()
		switch e.Kind {
		case tls.QUICNoEvent:
			return nil
		case tls.QUICSetReadSecret:
			if err := h.installSecret(e.Level, e.Data, e.Suite, false); err != nil {
				return err
			}
		case tls.QUICSetWriteSecret:
			if err := h.installSecret(e.Level, e.Data, e.Suite, true); err != nil {
				return err
			}
		case tls.QUICWriteData:
			space := quicLevelToSpace(e.Level)
			cs := &h.conn.packetNumberSpaces[space].cryptoStream
			_ = cs.send.write(e.Data, false)
		case tls.QUICTransportParameters:
			var p Parameters
			if err := p.Unmarshal(e.Data); err != nil {
				return newError(TransportParameterError, err.Error())
			}
			h.peerParams = p
			h.gotPeerParams = true
		case tls.QUICHandshakeDone:
			h.complete = true
			h.acceptEarlyData()
		case tls.QUICTransportParametersRequired:
			h.setTransportParams(&h.conn.localParams)
		case tls.QUICRejectedEarlyData:
			h.rejectEarlyData()
		case tls.QUICStoreSession:
			if err := h.qconn.StoreSession(e.SessionState); err != nil {
				return tlsHandshakeError(err)
			}
		}
	}
}

func (h *tlsHandshake) installSecret(level tls.QUICEncryptionLevel, secret []byte, suite uint16, write bool) error {
	space := quicLevelToSpace(level)
	keys, err := newPacketKeysFromSuite(secret, suite)
	if err != nil {
		return newError(InternalError, "key derivation")
	}
	pnSpace := &h.conn.packetNumberSpaces[space]
	if write {
		pnSpace.sealer = keys
	} else {
		pnSpace.opener = keys
	}
	return nil
}

func spaceToQUICLevel(space packetSpace) tls.QUICEncryptionLevel {
	switch space {
	case packetSpaceInitial:
		return tls.QUICEncryptionLevelInitial
	case packetSpaceHandshake:
		return tls.QUICEncryptionLevelHandshake
	default:
		return tls.QUICEncryptionLevelApplication
	}
}

func quicLevelToSpace(level tls.QUICEncryptionLevel) packetSpace {
	switch level {
	case tls.QUICEncryptionLevelInitial:
		return packetSpaceInitial
	case tls.QUICEncryptionLevelHandshake:
		return packetSpaceHandshake
	default:
		return packetSpaceApplication
	}
}

func tlsHandshakeError(err error) error {
	var alert tls.AlertError
	if ok := asAlertError(err, &alert); ok {
		return newError(TransportErrorCode(0x100+uint64(alert)), err.Error())
	}
	return newError(InternalError, err.Error())
}

func asAlertError(err error, target *tls.AlertError) bool {
	a, ok := err.(tls.AlertError)
	if ok {
		*target = a
	}
	return ok
}

// newPacketKeysFromSuite derives packet-protection keys directly from an
// already-derived TLS secret (as handed to us by tls.QUICConn), choosing the
// transcript hash by cipher suite.
func newPacketKeysFromSuite(secret []byte, suite uint16) (*packetKeys, error) {
	h := hashForSuite(suite)
	key := hkdfExpandLabelHash(h, secret, "quic key", nil, keyLenForSuite(suite))
	iv := hkdfExpandLabelHash(h, secret, "quic iv", nil, ivLen)
	hpKey := hkdfExpandLabelHash(h, secret, "quic hp", nil, keyLenForSuite(suite))
	return newPacketKeysRaw(key, iv, hpKey)
}

func hashForSuite(suite uint16) func() hash.Hash {
	if suite == tls.TLS_AES_256_GCM_SHA384 {
		return sha512.New384
	}
	return sha256.New
}

func keyLenForSuite(suite uint16) int {
	if suite == tls.TLS_AES_256_GCM_SHA384 {
		return 32
	}
	return keyLenAES128
}

func hkdfExpandLabelHash(h func() hash.Hash, secret []byte, label string, context []byte, length int) []byte {
	fullLabel := "tls13 " + label
	hkdfLabel := make([]byte, 0, 2+1+len(fullLabel)+1+len(context))
	hkdfLabel = append(hkdfLabel, byte(length>>8), byte(length))
	hkdfLabel = append(hkdfLabel, byte(len(fullLabel)))
	hkdfLabel = append(hkdfLabel, fullLabel...)
	hkdfLabel = append(hkdfLabel, byte(len(context)))
	hkdfLabel = append(hkdfLabel, context...)
	out := make([]byte, length)
	r := hkdf.Expand(h, secret, hkdfLabel)
	_, _ = r.Read(out)
	return out
}
