// Package ingest implements the unbounded FIFO queues sensor callbacks push
// into (spec §4.2, component C2) and the synchronizer that pops aligned
// measurement bundles out of them (spec §4.5, component C5). The two stay
// in one package because they share a single mutex and condition variable
// by design (spec §5, §9): the synchronizer's extraction step runs inside
// the same critical section the wake-up predicate is evaluated in.
package ingest

import (
	"sync"

	"github.com/gnss-vio/gvins-core/logging"
	"github.com/gnss-vio/gvins-core/measurement"
)

// Buffers holds the IMU, feature, and GNSS FIFOs (I1) behind one mutex and
// one condition variable (spec §4.2, §5: m_buf/con). Ephemeris and iono
// records bypass buffering entirely per §4.2 and are forwarded straight to
// the estimator by the caller, so this type has no queue for them.
type Buffers struct {
	mu   sync.Mutex
	cond *sync.Cond

	imu     []measurement.IMUSample
	feature []measurement.FeatureFrame
	gnss    []measurement.GNSSEpoch

	gnssEnabled bool
	deltaValid  func() bool

	lastIMUT    float64
	haveLastIMU bool

	closed bool

	logger logging.Logger
}

// New constructs empty buffers. deltaValid reports whether C1's Δ is
// currently valid; GNSS observations arriving while it is false are
// dropped entirely (they cannot be aligned, spec §4.2).
func New(logger logging.Logger, gnssEnabled bool, deltaValid func() bool) *Buffers {
	b := &Buffers{gnssEnabled: gnssEnabled, deltaValid: deltaValid, logger: logger}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// PushIMU enqueues an IMU sample, enforcing I2 (strictly increasing
// timestamps): a sample at or before the last accepted one is dropped with
// a warning and the queue is left unchanged.
func (b *Buffers) PushIMU(s measurement.IMUSample) bool {
	b.mu.Lock()
	if b.haveLastIMU && s.TLocal <= b.lastIMUT {
		b.mu.Unlock()
		b.logger.Warnf("imu message in disorder, dropping sample at t=%f (last=%f)", s.TLocal, b.lastIMUT)
		return false
	}
	b.lastIMUT = s.TLocal
	b.haveLastIMU = true
	b.imu = append(b.imu, s)
	b.mu.Unlock()
	b.cond.Signal()
	return true
}

// PushFeature enqueues a feature frame. Decimation (C3) is applied by the
// caller before this is reached; every frame passed here is buffered.
func (b *Buffers) PushFeature(f measurement.FeatureFrame) {
	b.mu.Lock()
	b.feature = append(b.feature, f)
	b.mu.Unlock()
	b.cond.Signal()
}

// PushGNSS enqueues a GNSS epoch, unless GNSS is disabled or Δ is not yet
// valid, in which case it is dropped entirely (spec §4.2).
func (b *Buffers) PushGNSS(e measurement.GNSSEpoch) bool {
	if !b.gnssEnabled {
		return false
	}
	if b.deltaValid != nil && !b.deltaValid() {
		return false
	}
	b.mu.Lock()
	b.gnss = append(b.gnss, e)
	b.mu.Unlock()
	b.cond.Signal()
	return true
}

// Flush empties the IMU and feature queues but preserves GNSS (spec §4.7:
// restart flushes imu_buf/feature_buf; "GNSS and ephemeris are preserved —
// they remain valid"). It also resets I2's last-timestamp tracking so the
// first post-restart IMU sample is always accepted (P4).
func (b *Buffers) Flush() {
	b.mu.Lock()
	b.imu = nil
	b.feature = nil
	b.haveLastIMU = false
	b.mu.Unlock()
}

// Close unblocks any goroutine waiting in Next/Wait and makes all future
// waits return immediately. Used during shutdown.
func (b *Buffers) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()
	b.cond.Broadcast()
}

// Len returns the current queue depths, for diagnostics.
func (b *Buffers) Len() (imu, feature, gnss int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.imu), len(b.feature), len(b.gnss)
}
