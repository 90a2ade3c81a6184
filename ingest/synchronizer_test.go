package ingest

import (
	"testing"

	"github.com/golang/geo/r3"
	"go.viam.com/test"

	"github.com/gnss-vio/gvins-core/logging"
	"github.com/gnss-vio/gvins-core/measurement"
)

func sample(t, ax float64) measurement.IMUSample {
	return measurement.IMUSample{TLocal: t, Accel: r3.Vector{X: ax}, Gyro: r3.Vector{}}
}

func frame(t float64) measurement.FeatureFrame {
	return measurement.FeatureFrame{TLocal: t}
}

func TestSynchronizerNext(t *testing.T) {
	logger := logging.NewTestLogger(t)

	t.Run("waits until imu catches up to feature", func(t *testing.T) {
		b := New(logger, false, nil)
		sync := NewSynchronizer(b, func() (float64, bool) { return 0, false }, func() float64 { return 0 })

		b.PushFeature(frame(1.0))
		done := make(chan *Bundle, 1)
		go func() {
			bundle, ok := sync.Next()
			if ok {
				done <- bundle
			}
		}()

		// Give the goroutine a chance to block in cond.Wait; there is no
		// IMU data yet so Next must not return.
		select {
		case <-done:
			t.Fatal("Next returned before imu caught up")
		default:
		}

		b.PushIMU(sample(0.5, 1))
		b.PushIMU(sample(1.5, 1))

		bundle := <-done
		test.That(t, bundle.Image.TLocal, test.ShouldEqual, 1.0)
		test.That(t, len(bundle.IMU) >= 1, test.ShouldBeTrue)
	})

	t.Run("drops stale feature frame", func(t *testing.T) {
		b := New(logger, false, nil)
		sync := NewSynchronizer(b, func() (float64, bool) { return 0, false }, func() float64 { return 0 })

		b.PushFeature(frame(0.1))
		b.PushFeature(frame(1.0))
		b.PushIMU(sample(0.5, 1))
		b.PushIMU(sample(1.5, 1))

		bundle, ok := sync.Next()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, bundle.Image.TLocal, test.ShouldEqual, 1.0)
	})

	t.Run("straddling sample stays queued for next bundle", func(t *testing.T) {
		b := New(logger, false, nil)
		sync := NewSynchronizer(b, func() (float64, bool) { return 0, false }, func() float64 { return 0 })

		b.PushFeature(frame(1.0))
		b.PushIMU(sample(0.5, 1))
		b.PushIMU(sample(1.5, 1))

		bundle, ok := sync.Next()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, bundle.IMU[len(bundle.IMU)-1].TLocal, test.ShouldEqual, 1.5)

		imuLeft, featLeft, _ := b.Len()
		test.That(t, imuLeft, test.ShouldEqual, 1)
		test.That(t, featLeft, test.ShouldEqual, 0)
	})

	t.Run("gnss pairs within window and drops stale epochs", func(t *testing.T) {
		b := New(logger, true, func() bool { return true })
		sync := NewSynchronizer(b, func() (float64, bool) { return 0, true }, func() float64 { return 0 })

		b.PushGNSS(measurement.GNSSEpoch{TGNSS: 0.1})
		b.PushGNSS(measurement.GNSSEpoch{TGNSS: 1.0})
		b.PushFeature(frame(1.01))
		b.PushIMU(sample(0.5, 1))
		b.PushIMU(sample(1.5, 1))

		bundle, ok := sync.Next()
		test.That(t, ok, test.ShouldBeTrue)
		test.That(t, bundle.GNSS, test.ShouldNotBeNil)
		test.That(t, bundle.GNSS.TGNSS, test.ShouldEqual, 1.0)
	})

	t.Run("waits when all buffered gnss epochs are stale", func(t *testing.T) {
		b := New(logger, true, func() bool { return true })
		sync := NewSynchronizer(b, func() (float64, bool) { return 0, true }, func() float64 { return 0 })

		b.PushGNSS(measurement.GNSSEpoch{TGNSS: 0.0})
		b.PushFeature(frame(1.0))
		b.PushIMU(sample(0.5, 1))
		b.PushIMU(sample(1.5, 1))

		done := make(chan *Bundle, 1)
		go func() {
			bundle, ok := sync.Next()
			if ok {
				done <- bundle
			}
		}()

		select {
		case <-done:
			t.Fatal("Next returned with no gnss epoch left to pair")
		default:
		}

		b.PushGNSS(measurement.GNSSEpoch{TGNSS: 1.0})
		bundle := <-done
		test.That(t, bundle.GNSS.TGNSS, test.ShouldEqual, 1.0)
	})

	t.Run("Close unblocks a waiting Next", func(t *testing.T) {
		b := New(logger, false, nil)
		sync := NewSynchronizer(b, func() (float64, bool) { return 0, false }, func() float64 { return 0 })

		done := make(chan bool, 1)
		go func() {
			_, ok := sync.Next()
			done <- ok
		}()
		b.Close()
		ok := <-done
		test.That(t, ok, test.ShouldBeFalse)
	})
}
