package ingest

import (
	"math"
	"sync/atomic"

	"github.com/gnss-vio/gvins-core/measurement"
)

// maxGNSSCameraDelay is the numeric constant from spec §6.
const maxGNSSCameraDelay = 0.05

// Bundle is one synchronized measurement group: a visual frame, the IMU
// samples spanning its interval plus the straddling sample used for
// interpolation (I3), and optionally the nearest GNSS epoch (I4).
type Bundle struct {
	Image measurement.FeatureFrame
	IMU   []measurement.IMUSample
	GNSS  *measurement.GNSSEpoch
}

// ClockOffset is read by the synchronizer to align feature and GNSS time;
// it is satisfied by clock.Calibrator.Offset.
type ClockOffset func() (delta float64, valid bool)

// Synchronizer implements spec §4.5 (component C5): pop a visual frame
// plus its spanning IMU slice plus (optionally) the nearest GNSS epoch.
type Synchronizer struct {
	buf    *Buffers
	offset ClockOffset
	td     func() float64

	waitCount int64 // supplemented feature: mirrors the original's sum_of_wait
}

// NewSynchronizer builds a Synchronizer over buf. offset reports C1's
// current Δ; td reports the estimator's current visual/IMU time offset.
func NewSynchronizer(buf *Buffers, offset ClockOffset, td func() float64) *Synchronizer {
	return &Synchronizer{buf: buf, offset: offset, td: td}
}

// Next blocks until a bundle can be extracted, or until the underlying
// buffers are closed, in which case it returns (nil, false). It is the
// only method that should run on the dispatcher's worker goroutine.
func (s *Synchronizer) Next() (*Bundle, bool) {
	b := s.buf
	b.mu.Lock()
	defer b.mu.Unlock()
	for {
		if b.closed {
			return nil, false
		}
		if bundle, ok := s.tryExtract(); ok {
			return bundle, true
		}
		atomic.AddInt64(&s.waitCount, 1)
		b.cond.Wait()
	}
}

// WaitCount returns the number of times the wake-up predicate was
// evaluated but did not yet yield a bundle — a cheap observability counter
// the original source tracks as sum_of_wait.
func (s *Synchronizer) WaitCount() int64 {
	return atomic.LoadInt64(&s.waitCount)
}

// tryExtract assumes b.mu is held. It returns ok=false whenever the
// dispatcher should keep waiting (spec's "block-and-wait", not an error).
func (s *Synchronizer) tryExtract() (*Bundle, bool) {
	b := s.buf

	if len(b.imu) == 0 || len(b.feature) == 0 || (b.gnssEnabled && len(b.gnss) == 0) {
		return nil, false
	}

	frontFeatureT := b.feature[0].TLocal
	if !(b.imu[len(b.imu)-1].TLocal > frontFeatureT) {
		// IMU hasn't caught up to the pending feature frame yet.
		return nil, false
	}

	// Step 1: drop stale features (IMU missed their start).
	for len(b.feature) > 0 && b.imu[0].TLocal > frontFeatureT {
		b.logger.Warnf("stale feature frame at t=%f discarded: imu queue starts at t=%f", frontFeatureT, b.imu[0].TLocal)
		b.feature = b.feature[1:]
		if len(b.feature) == 0 {
			return nil, false
		}
		frontFeatureT = b.feature[0].TLocal
	}
	if !(b.imu[len(b.imu)-1].TLocal > frontFeatureT) {
		// The new front frame is not yet spanned by buffered IMU either.
		return nil, false
	}

	var paired *measurement.GNSSEpoch
	if b.gnssEnabled {
		delta, valid := s.offset()
		if !valid {
			return nil, false
		}
		featureGNSST := frontFeatureT + delta

		for len(b.gnss) > 0 && b.gnss[0].TGNSS < featureGNSST-maxGNSSCameraDelay {
			b.logger.Warnf("stale GNSS epoch at t=%f discarded (feature-aligned t=%f)", b.gnss[0].TGNSS, featureGNSST)
			b.gnss = b.gnss[1:]
		}
		if len(b.gnss) == 0 {
			b.logger.Warnf("wait for gnss...")
			return nil, false
		}
		if math.Abs(b.gnss[0].TGNSS-featureGNSST) < maxGNSSCameraDelay {
			epoch := b.gnss[0]
			paired = &epoch
			b.gnss = b.gnss[1:]
		}
	}

	img := b.feature[0]
	b.feature = b.feature[1:]

	td := s.td()
	imgCutoff := img.TLocal + td

	var slice []measurement.IMUSample
	for len(b.imu) > 0 && b.imu[0].TLocal < imgCutoff {
		slice = append(slice, b.imu[0])
		b.imu = b.imu[1:]
	}
	if len(b.imu) > 0 {
		// The straddling sample: copied, not removed (I3; it is used for
		// interpolation and stays in the buffer for the next bundle).
		slice = append(slice, b.imu[0])
	}
	if len(slice) == 0 {
		b.logger.Warnf("no imu between two images at t=%f", img.TLocal)
	}

	return &Bundle{Image: img, IMU: slice, GNSS: paired}, true
}
