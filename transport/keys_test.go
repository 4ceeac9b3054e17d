package transport

import "testing"

// TestInitialAEADDerivation checks that Initial secrets derive deterministic,
// distinct client/server keys from a destination CID, per RFC 9001 §5.2.
func TestInitialAEADDerivation(t *testing.T) {
	dcid := []byte{0x83, 0x94, 0xc8, 0xf0, 0x3e, 0x51, 0x57, 0x08}
	var a, b initialAEAD
	a.init(dcid)
	b.init(dcid)
	if a.client == nil || a.server == nil {
		t.Fatal("initialAEAD.init produced nil keys")
	}
	payload := []byte("client hello bytes")
	header := []byte{0xc0, 0x00, 0x00, 0x00, 0x01}
	sealedA := a.client.seal(nil, header, payload, 2)
	sealedB := b.client.seal(nil, header, payload, 2)
	if string(sealedA) != string(sealedB) {
		t.Fatal("same dcid should derive identical client Initial keys")
	}
	sealedServer := a.server.seal(nil, header, payload, 2)
	if string(sealedA) == string(sealedServer) {
		t.Fatal("client and server Initial keys should differ")
	}
	opened, err := a.server.open(nil, header, sealedA, 2)
	if err == nil {
		t.Fatalf("server should not be able to decrypt with its own key what was sealed under the client key, got %q", opened)
	}
}

func TestPacketKeysSealOpenRoundTrip(t *testing.T) {
	key := make([]byte, keyLenAES128)
	iv := make([]byte, ivLen)
	hpKey := make([]byte, keyLenAES128)
	for i := range key {
		key[i] = byte(i)
		hpKey[i] = byte(i + 1)
	}
	for i := range iv {
		iv[i] = byte(i + 2)
	}
	k, err := newPacketKeysRaw(key, iv, hpKey)
	if err != nil {
		t.Fatalf("newPacketKeysRaw: %v", err)
	}
	header := []byte{0x40, 0x01, 0x02, 0x03}
	payload := []byte("quic payload data")
	sealed := k.seal(nil, header, payload, 42)
	opened, err := k.open(nil, header, sealed, 42)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if string(opened) != string(payload) {
		t.Fatalf("opened = %q, want %q", opened, payload)
	}
}

func TestPacketKeysOpenRejectsTamperedHeader(t *testing.T) {
	key := make([]byte, keyLenAES128)
	iv := make([]byte, ivLen)
	hpKey := make([]byte, keyLenAES128)
	k, err := newPacketKeysRaw(key, iv, hpKey)
	if err != nil {
		t.Fatalf("newPacketKeysRaw: %v", err)
	}
	sealed := k.seal(nil, []byte{0x01}, []byte("data"), 1)
	if _, err := k.open(nil, []byte{0x02}, sealed, 1); err == nil {
		t.Fatal("open with tampered associated data should fail authentication")
	}
}

func TestHeaderProtectionMaskDeterministic(t *testing.T) {
	key := make([]byte, keyLenAES128)
	iv := make([]byte, ivLen)
	hpKey := make([]byte, keyLenAES128)
	for i := range hpKey {
		hpKey[i] = byte(i * 3)
	}
	k, err := newPacketKeysRaw(key, iv, hpKey)
	if err != nil {
		t.Fatalf("newPacketKeysRaw: %v", err)
	}
	sample := make([]byte, hpSampleLen)
	for i := range sample {
		sample[i] = byte(i)
	}
	m1 := k.headerProtectionMask(sample)
	m2 := k.headerProtectionMask(sample)
	if m1 != m2 {
		t.Fatal("headerProtectionMask is not deterministic for the same sample")
	}
}

func TestVerifyRetryIntegrity(t *testing.T) {
	odcid := []byte{1, 2, 3, 4, 5, 6, 7, 8}
	pseudo := make([]byte, 0, len(odcid)+1+5)
	pseudo = append(pseudo, byte(len(odcid)))
	pseudo = append(pseudo, odcid...)
	pseudo = append(pseudo, []byte{0xc0, 0x00, 0x00, 0x00, 0x01}...)

	aeadKeys, err := newPacketKeysRaw(retryIntegrityKey, retryIntegrityNonce, retryIntegrityKey)
	if err != nil {
		t.Fatalf("newPacketKeysRaw: %v", err)
	}
	tag := aeadKeys.aead.Seal(nil, retryIntegrityNonce, nil, pseudo)

	packet := append(append([]byte{}, []byte{0xc0, 0x00, 0x00, 0x00, 0x01}...), tag...)
	if !verifyRetryIntegrity(packet, odcid) {
		t.Fatal("verifyRetryIntegrity rejected a correctly computed tag")
	}
	packet[len(packet)-1] ^= 0xff
	if verifyRetryIntegrity(packet, odcid) {
		t.Fatal("verifyRetryIntegrity accepted a tampered tag")
	}
}
