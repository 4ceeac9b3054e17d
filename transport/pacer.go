package transport

import (
	"time"

	"golang.org/x/time/rate"
)

// tokenPacer holds an x/time/rate limiter whose burst is sized from the
// current congestion window. Its rate stays unlimited: nothing in this
// package calls setRate or allow, so outgoing packets are not paced.
// https://www.rfc-editor.org/rfc/rfc9002#section-7.7
type tokenPacer struct {
	limiter *rate.Limiter
}

// pacingGain inflates the pacing rate slightly above the measured
// congestion-window/RTT rate, matching the N+1/N factor recommended in
// RFC 9002 §7.7 to avoid under-sending on noisy RTT samples.
const pacingGain = 1.25

func (p *tokenPacer) init(window uint64) {
	p.limiter = rate.NewLimiter(rate.Inf, int(window))
}

func (p *tokenPacer) setWindow(window uint64) {
	if p.limiter == nil {
		p.init(window)
		return
	}
	p.limiter.SetBurst(int(window))
}

// setRate recomputes the token rate from the current congestion window and
// smoothed RTT. It has no callers in this package.
func (p *tokenPacer) setRate(window uint64, rtt time.Duration) {
	if rtt <= 0 {
		p.limiter.SetLimit(rate.Inf)
		return
	}
	bytesPerSecond := pacingGain * float64(window) / rtt.Seconds()
	p.limiter.SetLimit(rate.Limit(bytesPerSecond))
}

func (p *tokenPacer) onPacketSent(size uint64) {
	if p.limiter == nil {
		return
	}
	p.limiter.AllowN(time.Now(), int(size))
}

// allow reports whether size bytes may be sent immediately under the
// current pacing rate.
func (p *tokenPacer) allow(size uint64) bool {
	if p.limiter == nil {
		return true
	}
	return p.limiter.AllowN(time.Now(), int(size))
}
