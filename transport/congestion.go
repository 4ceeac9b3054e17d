package transport

import "time"

// Congestion control constants from RFC 9002 §7, the NewReno variant.
const (
	initialWindowPackets          = 10
	maxDatagramSize               = 1452
	minimumWindow                 = 2 * maxDatagramSize
	lossReductionFactor           = 0.5
	persistentCongestionThreshold = 3
)

// congestionState distinguishes slow start, recovery, and steady-state
// congestion avoidance.
type congestionState int

const (
	ccSlowStart congestionState = iota
	ccRecovery
	ccCongestionAvoidance
)

// congestionController is a NewReno-equivalent sender, grounded on RFC 9002
// Appendix B's reference implementation: additive-increase in congestion
// avoidance, multiplicative-decrease on loss, and a recovery period that
// absorbs further losses from packets already known to be affected.
type congestionController struct {
	state congestionState

	congestionWindow uint64
	bytesInFlight    uint64
	ssthresh         uint64

	recoveryStartTime time.Time

	pacer tokenPacer
}

func (c *congestionController) init() {
	c.congestionWindow = initialWindowPackets * maxDatagramSize
	c.ssthresh = ^uint64(0)
	c.state = ccSlowStart
	c.pacer.init(c.congestionWindow)
}

func (c *congestionController) onPacketSent(size uint64) {
	c.bytesInFlight += size
	c.pacer.onPacketSent(size)
}

func (c *congestionController) onPacketDiscarded(size uint64) {
	if size > c.bytesInFlight {
		c.bytesInFlight = 0
		return
	}
	c.bytesInFlight -= size
}

func (c *congestionController) onPacketAcked(size uint64, now time.Time) {
	if size > c.bytesInFlight {
		c.bytesInFlight = 0
	} else {
		c.bytesInFlight -= size
	}
	if c.inRecovery(now) {
		return
	}
	switch c.state {
	case ccSlowStart:
		c.congestionWindow += size
		if c.congestionWindow >= c.ssthresh {
			c.state = ccCongestionAvoidance
		}
	case ccRecovery:
		// A packet sent after recovery began was acknowledged.
		c.state = ccCongestionAvoidance
		fallthrough
	case ccCongestionAvoidance:
		c.congestionWindow += maxDatagramSize * size / c.congestionWindow
	}
	c.pacer.setWindow(c.congestionWindow)
}

func (c *congestionController) onPacketLost(size uint64, now time.Time) {
	if size > c.bytesInFlight {
		c.bytesInFlight = 0
	} else {
		c.bytesInFlight -= size
	}
	if c.inRecovery(now) {
		return
	}
	c.recoveryStartTime = now
	c.state = ccRecovery
	c.congestionWindow = uint64(float64(c.congestionWindow) * lossReductionFactor)
	if c.congestionWindow < minimumWindow {
		c.congestionWindow = minimumWindow
	}
	c.ssthresh = c.congestionWindow
	c.pacer.setWindow(c.congestionWindow)
}

func (c *congestionController) inRecovery(now time.Time) bool {
	return !c.recoveryStartTime.IsZero() && !now.After(c.recoveryStartTime)
}

// onPersistentCongestion collapses the window to the minimum, per RFC 9002
// §7.6: a loss spread across persistentCongestionThreshold round trips
// means the path itself can't sustain the current rate, not that a single
// burst was dropped, so recovery must restart from scratch rather than
// merely halve.
func (c *congestionController) onPersistentCongestion() {
	c.congestionWindow = minimumWindow
	c.state = ccSlowStart
	c.recoveryStartTime = time.Time{}
	c.pacer.setWindow(c.congestionWindow)
}

// canSend reports whether the congestion window allows another size bytes
// in flight right now.
func (c *congestionController) canSend(size uint64) bool {
	return c.bytesInFlight+size <= c.congestionWindow
}
