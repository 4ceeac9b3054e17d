package transport

import (
	"testing"
	"time"
)

func TestCongestionSlowStartGrows(t *testing.T) {
	var c congestionController
	c.init()
	if c.state != ccSlowStart {
		t.Fatal("initial state should be slow start")
	}
	initial := c.congestionWindow
	c.onPacketSent(1000)
	c.onPacketAcked(1000, time.Now())
	if c.congestionWindow <= initial {
		t.Fatalf("congestionWindow after ack = %d, want growth from %d", c.congestionWindow, initial)
	}
}

func TestCongestionLossMultiplicativeDecrease(t *testing.T) {
	var c congestionController
	c.init()
	before := c.congestionWindow
	c.onPacketSent(1000)
	now := time.Now()
	c.onPacketLost(1000, now)
	if c.state != ccRecovery {
		t.Fatal("state should become recovery after a loss")
	}
	if c.congestionWindow >= before {
		t.Fatalf("congestionWindow after loss = %d, want less than %d", c.congestionWindow, before)
	}
	if c.congestionWindow < minimumWindow {
		t.Fatalf("congestionWindow %d dropped below minimumWindow %d", c.congestionWindow, minimumWindow)
	}
}

func TestCongestionRecoveryAbsorbsFurtherLoss(t *testing.T) {
	var c congestionController
	c.init()
	now := time.Now()
	c.onPacketSent(2000)
	c.onPacketLost(1000, now)
	afterFirstLoss := c.congestionWindow
	// A second loss reported for a packet sent before recovery started
	// should not cut the window again.
	c.onPacketLost(1000, now)
	if c.congestionWindow != afterFirstLoss {
		t.Fatalf("congestionWindow changed during recovery: %d -> %d", afterFirstLoss, c.congestionWindow)
	}
}

func TestCongestionCanSend(t *testing.T) {
	var c congestionController
	c.init()
	if !c.canSend(100) {
		t.Fatal("canSend should allow traffic within a fresh window")
	}
	c.onPacketSent(c.congestionWindow)
	if c.canSend(1) {
		t.Fatal("canSend should refuse once the window is fully used")
	}
}
