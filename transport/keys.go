package transport

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"crypto/tls"

	"golang.org/x/crypto/hkdf"
)

// initialSalt is the version 1 salt used to derive Initial secrets.
// https://quicwg.org/base-drafts/draft-ietf-quic-tls.html#name-initial-secrets
var initialSalt = []byte{
	0x38, 0x76, 0x2c, 0xf7, 0xf5, 0x59, 0x34, 0xb3,
	0x4d, 0x17, 0x9a, 0xe6, 0xa4, 0xc8, 0x0c, 0xad,
	0xcc, 0xbb, 0x7f, 0x0a,
}

const (
	keyLenAES128  = 16
	ivLen         = 12
	hpSampleLen   = 16
	sampleOffset  = 4 // Offset into the packet payload where the HP sample starts, relative to the assumed 4-byte packet number field
)

// packetKeys holds one direction's (or, for Initial, one endpoint's) packet
// protection keys for a single encryption level: an AEAD for packet body
// protection and a block cipher for header protection.
// https://quicwg.org/base-drafts/draft-ietf-quic-tls.html#name-packet-protection-keys
type packetKeys struct {
	aead cipher.AEAD
	iv   []byte
	hp   cipher.Block

	confidentialitySent uint64 // Packets encrypted with these keys so far, for the AEAD usage limit
}

func newPacketKeys(secret []byte, suite uint16) (*packetKeys, error) {
	keyLen := keyLenAES128
	key := hkdfExpandLabel(secret, "quic key", nil, keyLen)
	iv := hkdfExpandLabel(secret, "quic iv", nil, ivLen)
	hpKey := hkdfExpandLabel(secret, "quic hp", nil, keyLen)
	return newPacketKeysRaw(key, iv, hpKey)
}

// newPacketKeysRaw builds an AEAD + header-protection cipher pair from
// already-expanded key material.
func newPacketKeysRaw(key, iv, hpKey []byte) (*packetKeys, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	hpBlock, err := aes.NewCipher(hpKey)
	if err != nil {
		return nil, err
	}
	return &packetKeys{aead: aead, iv: iv, hp: hpBlock}, nil
}

// nonce XORs the IV with the packet number per RFC 9001 §5.3.
func (k *packetKeys) nonce(packetNumber uint64) []byte {
	n := make([]byte, len(k.iv))
	copy(n, k.iv)
	for i := 0; i < 8; i++ {
		n[len(n)-1-i] ^= byte(packetNumber >> (8 * i))
	}
	return n
}

// seal encrypts payload in place (appending the authentication tag) using
// header as associated data, and returns the sealed payload.
func (k *packetKeys) seal(dst, header, payload []byte, packetNumber uint64) []byte {
	return k.aead.Seal(dst, k.nonce(packetNumber), payload, header)
}

// open authenticates and decrypts payload using header as associated data.
func (k *packetKeys) open(dst, header, payload []byte, packetNumber uint64) ([]byte, error) {
	return k.aead.Open(dst, k.nonce(packetNumber), payload, header)
}

// headerProtectionMask computes the 5-byte mask applied to the first byte
// (partially) and the packet number bytes, from a 16-byte sample of the
// packet ciphertext.
// https://quicwg.org/base-drafts/draft-ietf-quic-tls.html#name-header-protection-applicat
func (k *packetKeys) headerProtectionMask(sample []byte) [5]byte {
	var out [aes.BlockSize]byte
	k.hp.Encrypt(out[:], sample)
	var mask [5]byte
	copy(mask[:], out[:5])
	return mask
}

// hkdfExpandLabel implements the TLS 1.3 HKDF-Expand-Label construction used
// throughout the QUIC key schedule.
// https://datatracker.ietf.org/doc/html/rfc8446#section-7.1
func hkdfExpandLabel(secret []byte, label string, context []byte, length int) []byte {
	hkdfLabel := make([]byte, 0, 2+1+len("tls13 ")+len(label)+1+len(context))
	hkdfLabel = append(hkdfLabel, byte(length>>8), byte(length))
	fullLabel := "tls13 " + label
	hkdfLabel = append(hkdfLabel, byte(len(fullLabel)))
	hkdfLabel = append(hkdfLabel, fullLabel...)
	hkdfLabel = append(hkdfLabel, byte(len(context)))
	hkdfLabel = append(hkdfLabel, context...)

	out := make([]byte, length)
	r := hkdf.Expand(sha256.New, secret, hkdfLabel)
	_, _ = r.Read(out)
	return out
}

// initialAEAD derives the client and server Initial packet-protection keys
// from the client-chosen destination CID, per RFC 9001 §5.2. Both sides
// derive both secrets: the client encrypts with its own key and decrypts
// with the server's, and vice versa.
type initialAEAD struct {
	client *packetKeys
	server *packetKeys
}

func (a *initialAEAD) init(dcid []byte) {
	initialSecret := hkdf.Extract(sha256.New, dcid, initialSalt)
	clientSecret := hkdfExpandLabel(initialSecret, "client in", nil, sha256.Size)
	serverSecret := hkdfExpandLabel(initialSecret, "server in", nil, sha256.Size)
	a.client, _ = newPacketKeys(clientSecret, tls.TLS_AES_128_GCM_SHA256)
	a.server, _ = newPacketKeys(serverSecret, tls.TLS_AES_128_GCM_SHA256)
}

// retryIntegrityKey/Nonce are fixed per RFC 9001 §5.8, used to authenticate
// Retry packets (they carry no confidentiality, only an integrity tag).
var (
	retryIntegrityKey = []byte{
		0xbe, 0x0c, 0x69, 0x0b, 0x9f, 0x66, 0x57, 0x5a,
		0x1d, 0x76, 0x6b, 0x54, 0xe3, 0x68, 0xc8, 0x4e,
	}
	retryIntegrityNonce = []byte{
		0x46, 0x15, 0x99, 0xd3, 0x5d, 0x63, 0x2b, 0xf2,
		0x23, 0x98, 0x25, 0xbb,
	}
)

// verifyRetryIntegrity recomputes the Retry Integrity Tag over the
// pseudo-packet (original DCID length-prefixed + retry packet without the
// tag) and compares it to the trailing 16 bytes of b.
func verifyRetryIntegrity(b []byte, odcid []byte) bool {
	if len(b) < retryIntegrityTagLen {
		return false
	}
	block, err := aes.NewCipher(retryIntegrityKey)
	if err != nil {
		return false
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return false
	}
	pseudo := make([]byte, 0, len(odcid)+1+len(b))
	pseudo = append(pseudo, byte(len(odcid)))
	pseudo = append(pseudo, odcid...)
	pseudo = append(pseudo, b[:len(b)-retryIntegrityTagLen]...)
	expected := aead.Seal(nil, retryIntegrityNonce, nil, pseudo)
	got := b[len(b)-retryIntegrityTagLen:]
	if len(expected) < retryIntegrityTagLen {
		return false
	}
	return constantTimeEqual(expected[len(expected)-retryIntegrityTagLen:], got)
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}
