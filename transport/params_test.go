package transport

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParametersRoundTrip(t *testing.T) {
	want := Parameters{
		MaxIdleTimeout:                 30 * time.Second,
		MaxUDPPayloadSize:              1452,
		InitialMaxData:                 1 << 20,
		InitialMaxStreamDataBidiLocal:  1 << 16,
		InitialMaxStreamDataBidiRemote: 1 << 16,
		InitialMaxStreamDataUni:        1 << 15,
		InitialMaxStreamsBidi:          10,
		InitialMaxStreamsUni:           3,
		AckDelayExponent:               3,
		MaxAckDelay:                    25 * time.Millisecond,
		DisableActiveMigration:         true,
		ActiveConnectionIDLimit:        4,
		InitialSourceCID:               []byte{1, 2, 3, 4},
		RetrySourceCID:                 []byte{5, 6, 7, 8},
	}
	b := want.Marshal()
	var got Parameters
	if err := got.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("params round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestParametersPreferredAddress(t *testing.T) {
	want := Parameters{
		PreferredAddress: &PreferredAddress{
			IPv4:     [4]byte{127, 0, 0, 1},
			IPv4Port: 4433,
			CID:      []byte{9, 9, 9},
		},
	}
	b := want.Marshal()
	var got Parameters
	if err := got.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if diff := cmp.Diff(want.PreferredAddress, got.PreferredAddress); diff != "" {
		t.Fatalf("preferred_address mismatch (-want +got):\n%s", diff)
	}
}

func TestParametersRejectsShortResetToken(t *testing.T) {
	var p Parameters
	b := appendTLV(nil, paramStatelessResetToken, []byte{1, 2, 3})
	if err := p.Unmarshal(b); err == nil {
		t.Fatal("Unmarshal accepted a short stateless_reset_token")
	}
}

func TestParametersRejectsSmallMaxUDPPayloadSize(t *testing.T) {
	var p Parameters
	b := appendVarintParam(nil, paramMaxUDPPayloadSize, 100)
	if err := p.Unmarshal(b); err == nil {
		t.Fatal("Unmarshal accepted max_udp_payload_size below 1200")
	}
}

func TestParametersSkipsGreaseIDs(t *testing.T) {
	var p Parameters
	b := appendVarintParam(nil, 31*5+27, 42)
	b = append(b, appendVarintParam(nil, paramInitialMaxData, 7)...)
	if err := p.Unmarshal(b); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if p.InitialMaxData != 7 {
		t.Fatalf("InitialMaxData = %d, want 7", p.InitialMaxData)
	}
}
