package transport

import (
	"testing"
	"time"
)

func TestLossRecoveryAckUpdatesRTT(t *testing.T) {
	var r lossRecovery
	now := time.Now()
	r.init(now)

	op := newOutgoingPacket(1, now)
	op.addFrame(&pingFrame{})
	op.size = 100
	r.onPacketSent(op, packetSpaceApplication)

	acked := rangeSet{{1, 1}}
	r.onAckReceived(acked, 0, packetSpaceApplication, now.Add(50*time.Millisecond))

	if !r.haveRTT {
		t.Fatal("haveRTT = false after an ack with a usable sample")
	}
	if r.smoothedRTT < 40*time.Millisecond || r.smoothedRTT > 60*time.Millisecond {
		t.Fatalf("smoothedRTT = %v, want roughly 50ms", r.smoothedRTT)
	}
	if len(r.sent[packetSpaceApplication]) != 0 {
		t.Fatal("acked packet should be removed from sent")
	}
}

func TestLossRecoveryPacketThreshold(t *testing.T) {
	var r lossRecovery
	now := time.Now()
	r.init(now)

	for pn := uint64(1); pn <= 5; pn++ {
		op := newOutgoingPacket(pn, now)
		op.addFrame(&pingFrame{})
		op.size = 100
		r.onPacketSent(op, packetSpaceApplication)
	}

	// Acking pn=5 while pn=1,2 remain: with packetThreshold=3, pn=1 is more
	// than 3 behind (5-1=4 >= 3) and should be declared lost.
	acked := rangeSet{{5, 5}}
	r.onAckReceived(acked, 0, packetSpaceApplication, now)

	var lostPNs []uint64
	r.drainLost(packetSpaceApplication, func(f frame) { lostPNs = append(lostPNs, 1) })
	if len(lostPNs) == 0 {
		t.Fatal("expected at least one packet declared lost by packet threshold")
	}
}

func TestLossRecoveryDropUnackedData(t *testing.T) {
	var r lossRecovery
	now := time.Now()
	r.init(now)
	op := newOutgoingPacket(1, now)
	op.addFrame(&pingFrame{})
	op.size = 200
	r.onPacketSent(op, packetSpaceInitial)
	if r.cc.bytesInFlight != 200 {
		t.Fatalf("bytesInFlight = %d, want 200", r.cc.bytesInFlight)
	}
	r.dropUnackedData(packetSpaceInitial)
	if r.cc.bytesInFlight != 0 {
		t.Fatalf("bytesInFlight after drop = %d, want 0", r.cc.bytesInFlight)
	}
	if len(r.sent[packetSpaceInitial]) != 0 {
		t.Fatal("sent packets should be cleared after dropUnackedData")
	}
	if r.largestAcked[packetSpaceInitial] != -1 {
		t.Fatal("largestAcked should reset to -1 after dropUnackedData")
	}
}

func TestProbeTimeoutGrowsWithPTOCount(t *testing.T) {
	var r lossRecovery
	r.init(time.Now())
	base := r.probeTimeout()
	r.ptoCount = 3
	grown := r.probeTimeout()
	if grown <= base {
		t.Fatalf("probeTimeout did not grow with ptoCount: base=%v grown=%v", base, grown)
	}
}
