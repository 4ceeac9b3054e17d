package transport

import "time"

// Parameters are QUIC transport parameters, exchanged during the handshake
// via the external TLS engine's extension channel.
// https://quicwg.org/base-drafts/draft-ietf-quic-transport.html#name-transport-parameters
type Parameters struct {
	OriginalDestinationCID []byte // Server only, set when Retry was sent
	MaxIdleTimeout          time.Duration
	StatelessResetToken     []byte // Server only, 16 bytes
	MaxUDPPayloadSize       uint64
	InitialMaxData          uint64
	InitialMaxStreamDataBidiLocal  uint64
	InitialMaxStreamDataBidiRemote uint64
	InitialMaxStreamDataUni        uint64
	InitialMaxStreamsBidi   uint64
	InitialMaxStreamsUni    uint64
	AckDelayExponent        uint64
	MaxAckDelay             time.Duration
	DisableActiveMigration  bool
	PreferredAddress        *PreferredAddress
	ActiveConnectionIDLimit uint64
	InitialSourceCID        []byte
	RetrySourceCID          []byte
}

// PreferredAddress lets a server offer an alternate address for the client
// to migrate to once the handshake completes.
// https://quicwg.org/base-drafts/draft-ietf-quic-transport.html#preferred-address
type PreferredAddress struct {
	IPv4         [4]byte
	IPv4Port     uint16
	IPv6         [16]byte
	IPv6Port     uint16
	CID          []byte
	ResetToken   [16]byte
}

// Transport parameter extension IDs.
// https://quicwg.org/base-drafts/draft-ietf-quic-transport.html#transport-parameter-definitions
const (
	paramOriginalDestinationCID      = 0x00
	paramMaxIdleTimeout              = 0x01
	paramStatelessResetToken         = 0x02
	paramMaxUDPPayloadSize           = 0x03
	paramInitialMaxData              = 0x04
	paramInitialMaxStreamDataBidiLocal  = 0x05
	paramInitialMaxStreamDataBidiRemote = 0x06
	paramInitialMaxStreamDataUni        = 0x07
	paramInitialMaxStreamsBidi       = 0x08
	paramInitialMaxStreamsUni        = 0x09
	paramAckDelayExponent            = 0x0a
	paramMaxAckDelay                 = 0x0b
	paramDisableActiveMigration      = 0x0c
	paramPreferredAddress            = 0x0d
	paramActiveConnectionIDLimit     = 0x0e
	paramInitialSourceCID            = 0x0f
	paramRetrySourceCID              = 0x10
)

// DefaultParameters returns the transport parameters this package uses
// unless the application overrides them in Config.
func DefaultParameters() Parameters {
	return Parameters{
		MaxIdleTimeout:                 30 * time.Second,
		MaxUDPPayloadSize:              65527,
		InitialMaxData:                 1 << 20,
		InitialMaxStreamDataBidiLocal:  1 << 18,
		InitialMaxStreamDataBidiRemote: 1 << 18,
		InitialMaxStreamDataUni:        1 << 18,
		InitialMaxStreamsBidi:          100,
		InitialMaxStreamsUni:           100,
		AckDelayExponent:               3,
		MaxAckDelay:                    25 * time.Millisecond,
		ActiveConnectionIDLimit:        2,
	}
}

// Marshal encodes the parameters as the TLS extension body.
func (p *Parameters) Marshal() []byte {
	b := make([]byte, 0, 256)
	b = appendBytesParam(b, paramOriginalDestinationCID, p.OriginalDestinationCID)
	if p.MaxIdleTimeout > 0 {
		b = appendVarintParam(b, paramMaxIdleTimeout, uint64(p.MaxIdleTimeout/time.Millisecond))
	}
	b = appendBytesParam(b, paramStatelessResetToken, p.StatelessResetToken)
	if p.MaxUDPPayloadSize > 0 {
		b = appendVarintParam(b, paramMaxUDPPayloadSize, p.MaxUDPPayloadSize)
	}
	b = appendVarintParam(b, paramInitialMaxData, p.InitialMaxData)
	b = appendVarintParam(b, paramInitialMaxStreamDataBidiLocal, p.InitialMaxStreamDataBidiLocal)
	b = appendVarintParam(b, paramInitialMaxStreamDataBidiRemote, p.InitialMaxStreamDataBidiRemote)
	b = appendVarintParam(b, paramInitialMaxStreamDataUni, p.InitialMaxStreamDataUni)
	b = appendVarintParam(b, paramInitialMaxStreamsBidi, p.InitialMaxStreamsBidi)
	b = appendVarintParam(b, paramInitialMaxStreamsUni, p.InitialMaxStreamsUni)
	if p.AckDelayExponent > 0 {
		b = appendVarintParam(b, paramAckDelayExponent, p.AckDelayExponent)
	}
	if p.MaxAckDelay > 0 {
		b = appendVarintParam(b, paramMaxAckDelay, uint64(p.MaxAckDelay/time.Millisecond))
	}
	if p.DisableActiveMigration {
		b = appendFlagParam(b, paramDisableActiveMigration)
	}
	if p.PreferredAddress != nil {
		b = appendPreferredAddressParam(b, p.PreferredAddress)
	}
	if p.ActiveConnectionIDLimit > 0 {
		b = appendVarintParam(b, paramActiveConnectionIDLimit, p.ActiveConnectionIDLimit)
	}
	b = appendBytesParam(b, paramInitialSourceCID, p.InitialSourceCID)
	b = appendBytesParam(b, paramRetrySourceCID, p.RetrySourceCID)
	return b
}

func appendVarintParam(b []byte, id uint64, v uint64) []byte {
	var tmp [8]byte
	n := putVarint(tmp[:], v)
	b = appendTLV(b, id, tmp[:n])
	return b
}

func appendBytesParam(b []byte, id uint64, v []byte) []byte {
	if v == nil {
		return b
	}
	return appendTLV(b, id, v)
}

func appendFlagParam(b []byte, id uint64) []byte {
	return appendTLV(b, id, nil)
}

func appendTLV(b []byte, id uint64, v []byte) []byte {
	var tmp [8]byte
	n := putVarint(tmp[:], id)
	b = append(b, tmp[:n]...)
	n = putVarint(tmp[:], uint64(len(v)))
	b = append(b, tmp[:n]...)
	b = append(b, v...)
	return b
}

func appendPreferredAddressParam(b []byte, a *PreferredAddress) []byte {
	v := make([]byte, 0, 4+2+16+2+1+len(a.CID)+16)
	v = append(v, a.IPv4[:]...)
	v = append(v, byte(a.IPv4Port>>8), byte(a.IPv4Port))
	v = append(v, a.IPv6[:]...)
	v = append(v, byte(a.IPv6Port>>8), byte(a.IPv6Port))
	v = append(v, byte(len(a.CID)))
	v = append(v, a.CID...)
	v = append(v, a.ResetToken[:]...)
	return appendTLV(b, paramPreferredAddress, v)
}

// Unmarshal parses a received transport-parameter extension body.
// Reserved parameter IDs of the form 31*N+27 are ignored, per §6.
func (p *Parameters) Unmarshal(b []byte) error {
	for len(b) > 0 {
		var id, length uint64
		n := getVarint(b, &id)
		if n == 0 {
			return newError(TransportParameterError, "param id")
		}
		b = b[n:]
		n = getVarint(b, &length)
		if n == 0 {
			return newError(TransportParameterError, "param length")
		}
		b = b[n:]
		if uint64(len(b)) < length {
			return newError(TransportParameterError, "param value")
		}
		v := b[:length]
		b = b[length:]
		if id%31 == 27 {
			continue // Reserved, used by GREASE-style middlebox testing.
		}
		if err := p.setParam(id, v); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parameters) setParam(id uint64, v []byte) error {
	switch id {
	case paramOriginalDestinationCID:
		p.OriginalDestinationCID = append([]byte(nil), v...)
	case paramMaxIdleTimeout:
		val, err := decodeVarintParam(v)
		if err != nil {
			return err
		}
		p.MaxIdleTimeout = time.Duration(val) * time.Millisecond
	case paramStatelessResetToken:
		if len(v) != 16 {
			return newError(TransportParameterError, "reset token length")
		}
		p.StatelessResetToken = append([]byte(nil), v...)
	case paramMaxUDPPayloadSize:
		val, err := decodeVarintParam(v)
		if err != nil {
			return err
		}
		if val < 1200 {
			return newError(TransportParameterError, "max_udp_payload_size")
		}
		p.MaxUDPPayloadSize = val
	case paramInitialMaxData:
		val, err := decodeVarintParam(v)
		if err != nil {
			return err
		}
		p.InitialMaxData = val
	case paramInitialMaxStreamDataBidiLocal:
		val, err := decodeVarintParam(v)
		if err != nil {
			return err
		}
		p.InitialMaxStreamDataBidiLocal = val
	case paramInitialMaxStreamDataBidiRemote:
		val, err := decodeVarintParam(v)
		if err != nil {
			return err
		}
		p.InitialMaxStreamDataBidiRemote = val
	case paramInitialMaxStreamDataUni:
		val, err := decodeVarintParam(v)
		if err != nil {
			return err
		}
		p.InitialMaxStreamDataUni = val
	case paramInitialMaxStreamsBidi:
		val, err := decodeVarintParam(v)
		if err != nil {
			return err
		}
		p.InitialMaxStreamsBidi = val
	case paramInitialMaxStreamsUni:
		val, err := decodeVarintParam(v)
		if err != nil {
			return err
		}
		p.InitialMaxStreamsUni = val
	case paramAckDelayExponent:
		val, err := decodeVarintParam(v)
		if err != nil {
			return err
		}
		if val > 20 {
			return newError(TransportParameterError, "ack_delay_exponent")
		}
		p.AckDelayExponent = val
	case paramMaxAckDelay:
		val, err := decodeVarintParam(v)
		if err != nil {
			return err
		}
		if val >= 1<<14 {
			return newError(TransportParameterError, "max_ack_delay")
		}
		p.MaxAckDelay = time.Duration(val) * time.Millisecond
	case paramDisableActiveMigration:
		if len(v) != 0 {
			return newError(TransportParameterError, "disable_active_migration")
		}
		p.DisableActiveMigration = true
	case paramPreferredAddress:
		pa, err := decodePreferredAddress(v)
		if err != nil {
			return err
		}
		p.PreferredAddress = pa
	case paramActiveConnectionIDLimit:
		val, err := decodeVarintParam(v)
		if err != nil {
			return err
		}
		if val < 2 {
			return newError(TransportParameterError, "active_connection_id_limit")
		}
		p.ActiveConnectionIDLimit = val
	case paramInitialSourceCID:
		p.InitialSourceCID = append([]byte(nil), v...)
	case paramRetrySourceCID:
		p.RetrySourceCID = append([]byte(nil), v...)
	}
	return nil
}

func decodeVarintParam(v []byte) (uint64, error) {
	var val uint64
	n := getVarint(v, &val)
	if n != len(v) {
		return 0, newError(TransportParameterError, "varint param")
	}
	return val, nil
}

func decodePreferredAddress(v []byte) (*PreferredAddress, error) {
	if len(v) < 4+2+16+2+1 {
		return nil, newError(TransportParameterError, "preferred_address")
	}
	pa := &PreferredAddress{}
	copy(pa.IPv4[:], v[0:4])
	pa.IPv4Port = uint16(v[4])<<8 | uint16(v[5])
	copy(pa.IPv6[:], v[6:22])
	pa.IPv6Port = uint16(v[22])<<8 | uint16(v[23])
	l := int(v[24])
	if len(v) < 25+l+16 {
		return nil, newError(TransportParameterError, "preferred_address cid")
	}
	pa.CID = append([]byte(nil), v[25:25+l]...)
	copy(pa.ResetToken[:], v[25+l:25+l+16])
	return pa, nil
}
