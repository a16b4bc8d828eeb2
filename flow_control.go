package mqttsn

import (
	"time"

	"golang.org/x/time/rate"
)

// FlowController admits inbound PUBLISH messages at a bounded rate.
// Publishes over the limit are answered with REJECTED_CONGESTION.
// A zero rate admits everything.
type FlowController struct {
	limiter  *rate.Limiter
	rejected uint64
}

// NewFlowController creates a controller admitting perSecond publishes per
// second with the given burst.
func NewFlowController(perSecond float64, burst int) *FlowController {
	if perSecond <= 0 {
		return &FlowController{}
	}

	if burst < 1 {
		burst = 1
	}

	return &FlowController{
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

// Admit reports whether a publish arriving at now may be processed.
func (f *FlowController) Admit(now time.Time) bool {
	if f.limiter == nil {
		return true
	}

	if f.limiter.AllowN(now, 1) {
		return true
	}

	f.rejected++
	return false
}

// Rejected returns the number of publishes refused so far.
func (f *FlowController) Rejected() uint64 {
	return f.rejected
}

// Limited returns true if a rate limit is in effect.
func (f *FlowController) Limited() bool {
	return f.limiter != nil
}
