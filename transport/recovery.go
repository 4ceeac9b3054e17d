package transport

import "time"

// Loss detection tuning constants, as recommended in RFC 9002.
const (
	packetThreshold  = 3
	timeThresholdNum = 9
	timeThresholdDen = 8
	granularity      = time.Millisecond
	initialRTT       = 333 * time.Millisecond
	maxPTOBackoff    = 1 << 5
)

// sentPacket is the bookkeeping recovery keeps per packet-number space for
// every packet sent until it is acked or forgotten about.
type sentPacket struct {
	packetNumber uint64
	timeSent     time.Time
	size         uint64
	ackEliciting bool
	inFlight     bool
	frames       []frame
}

// lossRecovery implements the loss-detection and congestion-control
// component: RTT estimation, packet/time threshold loss detection, the
// probe timeout, and (via cc) NewReno-style congestion control.
// https://www.rfc-editor.org/rfc/rfc9002
type lossRecovery struct {
	sent [packetSpaceCount][]sentPacket

	acked [packetSpaceCount][]frame // Frames from packets acked since the last drainAcked
	lost  [packetSpaceCount][]frame // Frames from packets declared lost since the last drainLost

	largestAcked     [packetSpaceCount]int64 // -1 if none
	largestAckedTime [packetSpaceCount]time.Time
	lossTime         [packetSpaceCount]time.Time

	minRTT      time.Duration
	smoothedRTT time.Duration
	rttVar      time.Duration
	latestRTT   time.Duration
	haveRTT     bool

	maxAckDelay time.Duration

	ptoCount           int
	probes             int
	lossDetectionTimer time.Time

	cc congestionController
}

func (r *lossRecovery) init(now time.Time) {
	*r = lossRecovery{}
	for i := range r.largestAcked {
		r.largestAcked[i] = -1
	}
	r.smoothedRTT = initialRTT
	r.rttVar = initialRTT / 2
	r.cc.init()
}

// onPacketSent records a newly sent packet and, if ack-eliciting, arms
// congestion control accounting and the loss detection timer.
func (r *lossRecovery) onPacketSent(op *outgoingPacket, space packetSpace) {
	sp := sentPacket{
		packetNumber: op.packetNumber,
		timeSent:     op.timeSent,
		size:         op.size,
		ackEliciting: op.ackEliciting,
		inFlight:     op.inFlight,
		frames:       op.frames,
	}
	r.sent[space] = append(r.sent[space], sp)
	if op.inFlight {
		r.cc.onPacketSent(op.size)
	}
	r.setLossDetectionTimer(op.timeSent)
}

// onAckReceived processes a received ACK range set: updates the RTT sample
// from the largest newly-acked packet, marks packets acked (and so able to
// have their frames drained via drainAcked, their bytes released from
// congestion-control accounting), then runs loss detection for everything
// older than the newly confirmed largest acknowledged packet.
func (r *lossRecovery) onAckReceived(ranges rangeSet, ackDelay time.Duration, space packetSpace, now time.Time) {
	if ranges.empty() {
		return
	}
	largest := ranges.largest()
	newlyAcked := false
	remaining := r.sent[space][:0]
	for _, sp := range r.sent[space] {
		if ranges.contains(sp.packetNumber) {
			if int64(sp.packetNumber) > r.largestAcked[space] {
				r.largestAcked[space] = int64(sp.packetNumber)
				r.largestAckedTime[space] = sp.timeSent
				if sp.ackEliciting && sp.packetNumber == largest {
					r.updateRTT(now.Sub(sp.timeSent), ackDelay)
				}
			}
			r.acked[space] = append(r.acked[space], sp.frames...)
			if sp.inFlight {
				r.cc.onPacketAcked(sp.size, sp.timeSent)
			}
			newlyAcked = true
			continue
		}
		remaining = append(remaining, sp)
	}
	r.sent[space] = remaining
	if !newlyAcked {
		return
	}
	_ = largest
	r.ptoCount = 0
	r.detectLost(space, now)
	r.setLossDetectionTimer(now)
}

func (r *lossRecovery) updateRTT(sample, ackDelay time.Duration) {
	if sample < 0 {
		return
	}
	if !r.haveRTT {
		r.haveRTT = true
		r.minRTT = sample
		r.smoothedRTT = sample
		r.rttVar = sample / 2
		r.latestRTT = sample
		return
	}
	r.latestRTT = sample
	if sample < r.minRTT {
		r.minRTT = sample
	}
	adjusted := sample
	if adjusted-r.minRTT >= ackDelay {
		adjusted -= ackDelay
	}
	rttVarSample := r.smoothedRTT - adjusted
	if rttVarSample < 0 {
		rttVarSample = -rttVarSample
	}
	r.rttVar = (3*r.rttVar + rttVarSample) / 4
	r.smoothedRTT = (7*r.smoothedRTT + adjusted) / 8
}

// detectLost applies the packet and time thresholds from RFC 9002 §6.1 to
// everything outstanding in space older than largestAcked, moving lost
// packets' frames into r.lost and their bytes out of congestion control.
func (r *lossRecovery) detectLost(space packetSpace, now time.Time) {
	if r.largestAcked[space] < 0 {
		return
	}
	lossDelay := time.Duration(timeThresholdNum) * maxDuration(r.latestRTT, r.smoothedRTT) / timeThresholdDen
	if lossDelay < granularity {
		lossDelay = granularity
	}
	lost := time.Time{}
	var firstLostSent, lastLostSent time.Time
	remaining := r.sent[space][:0]
	for _, sp := range r.sent[space] {
		if int64(sp.packetNumber) > r.largestAcked[space] {
			remaining = append(remaining, sp)
			continue
		}
		sinceSent := now.Sub(sp.timeSent)
		byCount := r.largestAcked[space]-int64(sp.packetNumber) >= packetThreshold
		byTime := sinceSent >= lossDelay
		if byCount || byTime {
			r.lost[space] = append(r.lost[space], sp.frames...)
			if sp.inFlight {
				r.cc.onPacketLost(sp.size, now)
				if firstLostSent.IsZero() || sp.timeSent.Before(firstLostSent) {
					firstLostSent = sp.timeSent
				}
				if sp.timeSent.After(lastLostSent) {
					lastLostSent = sp.timeSent
				}
			}
			continue
		}
		due := sp.timeSent.Add(lossDelay)
		if lost.IsZero() || due.Before(lost) {
			lost = due
		}
		remaining = append(remaining, sp)
	}
	r.sent[space] = remaining
	r.lossTime[space] = lost
	// RFC 9002 §7.6: if the in-flight packets declared lost just now span
	// at least persistentCongestionThreshold round trips, the path is
	// persistently congested rather than having dropped a single burst.
	if !firstLostSent.IsZero() && lastLostSent.Sub(firstLostSent) >= r.persistentCongestionDuration() {
		r.cc.onPersistentCongestion()
	}
}

// persistentCongestionDuration is the RFC 9002 §7.6.1 duration: the PTO
// formula's core (smoothed RTT plus RTT variance margin and peer ack delay)
// stretched over persistentCongestionThreshold round trips.
func (r *lossRecovery) persistentCongestionDuration() time.Duration {
	return (r.smoothedRTT + maxDuration(4*r.rttVar, granularity) + r.maxAckDelay) * persistentCongestionThreshold
}

// drainAcked passes every frame from a newly acked packet in space to fn and
// clears the queue.
func (r *lossRecovery) drainAcked(space packetSpace, fn func(frame)) {
	for _, f := range r.acked[space] {
		fn(f)
	}
	r.acked[space] = r.acked[space][:0]
}

// drainLost passes every frame from a newly lost packet in space to fn and
// clears the queue, so the caller can requeue retransmittable information.
func (r *lossRecovery) drainLost(space packetSpace, fn func(frame)) {
	for _, f := range r.lost[space] {
		fn(f)
	}
	r.lost[space] = r.lost[space][:0]
}

// dropUnackedData discards all outstanding packet and loss-timer state for
// space, called when its keys are dropped (Initial after Handshake keys
// install, Handshake after the handshake confirms).
func (r *lossRecovery) dropUnackedData(space packetSpace) {
	for _, sp := range r.sent[space] {
		if sp.inFlight {
			r.cc.onPacketDiscarded(sp.size)
		}
	}
	r.sent[space] = nil
	r.acked[space] = nil
	r.lost[space] = nil
	r.lossTime[space] = time.Time{}
	r.largestAcked[space] = -1
}

// probeTimeout is the current PTO duration, RFC 9002 §6.2.1.
func (r *lossRecovery) probeTimeout() time.Duration {
	pto := r.smoothedRTT + maxDuration(4*r.rttVar, granularity) + r.maxAckDelay
	backoff := time.Duration(1)
	for i := 0; i < r.ptoCount && backoff < maxPTOBackoff; i++ {
		backoff *= 2
	}
	return pto * backoff
}

// setLossDetectionTimer arms the single timer covering both the earliest
// loss-detection time across spaces and the next PTO.
func (r *lossRecovery) setLossDetectionTimer(now time.Time) {
	earliestLoss := time.Time{}
	anyInFlight := false
	for space := packetSpaceInitial; space < packetSpaceCount; space++ {
		if len(r.sent[space]) > 0 {
			anyInFlight = true
		}
		t := r.lossTime[space]
		if t.IsZero() {
			continue
		}
		if earliestLoss.IsZero() || t.Before(earliestLoss) {
			earliestLoss = t
		}
	}
	if !earliestLoss.IsZero() {
		r.lossDetectionTimer = earliestLoss
		return
	}
	if !anyInFlight {
		r.lossDetectionTimer = time.Time{}
		return
	}
	r.lossDetectionTimer = now.Add(r.probeTimeout())
}

// onLossDetectionTimeout fires when the armed timer above expires: either
// run time-threshold loss detection for the space with the earliest loss
// time, or schedule a probe (PTO) if nothing was newly lost.
func (r *lossRecovery) onLossDetectionTimeout(now time.Time) {
	firedLoss := false
	for space := packetSpaceInitial; space < packetSpaceCount; space++ {
		if r.lossTime[space].IsZero() || now.Before(r.lossTime[space]) {
			continue
		}
		r.detectLost(space, now)
		firedLoss = true
	}
	if firedLoss {
		r.setLossDetectionTimer(now)
		return
	}
	r.ptoCount++
	r.probes = 2
	r.setLossDetectionTimer(now)
}

func maxDuration(a, b time.Duration) time.Duration {
	if a > b {
		return a
	}
	return b
}
