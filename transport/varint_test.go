package transport

import "testing"

func TestVarintRoundTrip(t *testing.T) {
	values := []uint64{0, 1, 63, 64, 16383, 16384, 1073741823, 1073741824, maxVarintValue}
	for _, v := range values {
		n := varintLen(v)
		b := make([]byte, n)
		if w := putVarint(b, v); w != n {
			t.Fatalf("putVarint(%d): wrote %d, want %d", v, w, n)
		}
		var got uint64
		if r := getVarint(b, &got); r != n {
			t.Fatalf("getVarint(%d): read %d, want %d", v, r, n)
		}
		if got != v {
			t.Fatalf("round trip %d: got %d", v, got)
		}
	}
}

func TestVarintLenOutOfRange(t *testing.T) {
	if n := varintLen(maxVarintValue + 1); n != 0 {
		t.Fatalf("varintLen(overflow) = %d, want 0", n)
	}
}

func TestPutVarintShortBuffer(t *testing.T) {
	b := make([]byte, 1)
	if n := putVarint(b, 16384); n != 0 {
		t.Fatalf("putVarint with short buffer = %d, want 0", n)
	}
}

func TestGetVarintIncomplete(t *testing.T) {
	b := []byte{0x80, 0x01} // length nibble claims 4 bytes, only 2 present
	var v uint64
	if n := getVarint(b, &v); n != 0 {
		t.Fatalf("getVarint(incomplete) = %d, want 0", n)
	}
}

func TestPacketNumberLen(t *testing.T) {
	cases := []struct {
		pn, largestAcked uint64
		want             int
	}{
		{pn: 0, largestAcked: 0, want: 1},
		{pn: 127, largestAcked: 0, want: 2},
		{pn: 1000, largestAcked: 900, want: 1},
		{pn: 100000, largestAcked: 0, want: 3},
	}
	for _, c := range cases {
		got := packetNumberLen(c.pn, c.largestAcked)
		if got != c.want {
			t.Fatalf("packetNumberLen(%d, %d) = %d, want %d", c.pn, c.largestAcked, got, c.want)
		}
	}
}

func TestPacketNumberRoundTrip(t *testing.T) {
	largestReceived := uint64(999)
	for _, pn := range []uint64{1000, 1001, 1200, 2000} {
		length := packetNumberLen(pn, largestReceived)
		b := make([]byte, length)
		encodePacketNumber(b, pn, length)
		var truncated uint64
		getVarintTruncated(b, length, &truncated)
		got := decodePacketNumber(largestReceived, truncated, length)
		if got != pn {
			t.Fatalf("decodePacketNumber round trip: got %d, want %d", got, pn)
		}
	}
}

// getVarintTruncated reads a fixed-width big-endian packet number, unlike
// getVarint which reads the self-describing QUIC varint encoding.
func getVarintTruncated(b []byte, length int, v *uint64) {
	var n uint64
	for _, c := range b[:length] {
		n = n<<8 | uint64(c)
	}
	*v = n
}
