// Package clock implements the GNSS<->local clock calibrator (spec §4.1,
// component C1): it turns a hardware time-pulse paired with a local
// exposure trigger into the scalar offset Δ such that t_gnss ≈ t_local + Δ.
package clock

import (
	"sync"

	"github.com/gnss-vio/gvins-core/internal/gnsstime"
	"github.com/gnss-vio/gvins-core/logging"
	"github.com/gnss-vio/gvins-core/measurement"
)

// Publisher is notified whenever Δ changes, so it can be forwarded to the
// estimator (estimator.InputGNSSTimeDiff) without this package depending on
// the estimator package.
type Publisher func(delta float64)

// Calibrator owns {Δ, valid, pendingPulse} (spec §3, m_time). Once valid
// becomes true it stays true; Reset clears only the pending pulse (I5).
type Calibrator struct {
	mu sync.Mutex

	delta           float64
	valid           bool
	pendingPulseT   float64
	pendingPulseSet bool

	publish Publisher
	logger  logging.Logger
}

// New returns a Calibrator in online-sync mode: Δ starts invalid and is set
// by the first Pulse+Trigger pair.
func New(logger logging.Logger, publish Publisher) *Calibrator {
	return &Calibrator{publish: publish, logger: logger}
}

// NewOffline returns a Calibrator pre-seeded from configuration, for
// GNSS_LOCAL_ONLINE_SYNC=false (spec §4.1 "Offline mode").
func NewOffline(logger logging.Logger, publish Publisher, staticDelta float64) *Calibrator {
	c := &Calibrator{publish: publish, logger: logger, delta: staticDelta, valid: true}
	if publish != nil {
		publish(staticDelta)
	}
	return c
}

// Pulse records a hardware time-pulse. week/tow/system/utcBased describe
// the pulse as the receiver reports it; it is converted to unified GPS-time
// seconds and stored as the pending pulse, replacing any prior pending
// pulse whether or not a trigger consumed it.
func (c *Calibrator) Pulse(p measurement.PulseEvent) {
	tGNSS, err := gnsstime.ToGPSSeconds(p.Week, p.TOW, p.System, p.UTCBased)
	if err != nil {
		c.logger.Warnf("unknown GNSS time system in time-pulse: %v", err)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingPulseT = tGNSS
	c.pendingPulseSet = true
}

// Trigger records a local-clock exposure trigger. If a pulse is pending,
// it computes Δ = pendingPulse - t_local, marks Δ valid, publishes it, and
// consumes the pending pulse. A trigger with no pending pulse is a no-op.
func (c *Calibrator) Trigger(t measurement.TriggerEvent) {
	c.mu.Lock()
	if !c.pendingPulseSet {
		c.mu.Unlock()
		return
	}
	delta := c.pendingPulseT - t.TLocal
	c.pendingPulseSet = false
	wasValid := c.valid
	c.delta = delta
	c.valid = true
	c.mu.Unlock()

	if !wasValid {
		c.logger.Infof("time difference between GNSS and local clock calibrated: %.9f s", delta)
	}
	if c.publish != nil {
		c.publish(delta)
	}
}

// Offset returns the current (Δ, valid) pair. Safe to call from any thread;
// the returned Δ is read-only outside this package (I5).
func (c *Calibrator) Offset() (delta float64, valid bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.delta, c.valid
}

// Reset clears the pending pulse but preserves Δ/valid: restart preserves
// clock-calibration state (spec §4.7).
func (c *Calibrator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.pendingPulseSet = false
}
