package clock

import (
	"testing"

	"go.viam.com/test"

	"github.com/gnss-vio/gvins-core/logging"
	"github.com/gnss-vio/gvins-core/measurement"
)

func TestClockCalibration(t *testing.T) {
	logger := logging.NewTestLogger(t)

	t.Run("pulse then trigger calibrates delta", func(t *testing.T) {
		var published float64
		var publishCount int
		c := New(logger, func(d float64) { published = d; publishCount++ })

		delta, valid := c.Offset()
		test.That(t, valid, test.ShouldBeFalse)
		test.That(t, delta, test.ShouldEqual, 0.0)

		c.Pulse(measurement.PulseEvent{Week: 2000, TOW: 100.0, System: measurement.TimeSystemGPS})
		const localT = 1700000123.456
		c.Trigger(measurement.TriggerEvent{TLocal: localT})

		gotDelta, gotValid := c.Offset()
		test.That(t, gotValid, test.ShouldBeTrue)
		tGNSS := 2000*604800.0 + 100.0
		wantDelta := tGNSS - localT
		test.That(t, gotDelta, test.ShouldAlmostEqual, wantDelta, 1e-9)
		test.That(t, published, test.ShouldAlmostEqual, wantDelta, 1e-9)
		test.That(t, publishCount, test.ShouldEqual, 1)
	})

	t.Run("trigger with no pending pulse is a no-op", func(t *testing.T) {
		c := New(logger, nil)
		c.Trigger(measurement.TriggerEvent{TLocal: 5})
		_, valid := c.Offset()
		test.That(t, valid, test.ShouldBeFalse)
	})

	t.Run("next pulse replaces pending pulse even without a trigger", func(t *testing.T) {
		c := New(logger, nil)
		c.Pulse(measurement.PulseEvent{Week: 2000, TOW: 0, System: measurement.TimeSystemGPS})
		c.Pulse(measurement.PulseEvent{Week: 2000, TOW: 50, System: measurement.TimeSystemGPS})
		c.Trigger(measurement.TriggerEvent{TLocal: 0})
		delta, valid := c.Offset()
		test.That(t, valid, test.ShouldBeTrue)
		test.That(t, delta, test.ShouldAlmostEqual, 2000*604800.0+50.0, 1e-9)
	})

	t.Run("unknown time system is ignored, not calibrated", func(t *testing.T) {
		c := New(logger, nil)
		c.Pulse(measurement.PulseEvent{Week: 2000, TOW: 0, System: measurement.TimeSystemNone})
		c.Trigger(measurement.TriggerEvent{TLocal: 0})
		_, valid := c.Offset()
		test.That(t, valid, test.ShouldBeFalse)
	})

	t.Run("offline mode is valid immediately", func(t *testing.T) {
		var published float64
		c := NewOffline(logger, func(d float64) { published = d }, 0.125)
		delta, valid := c.Offset()
		test.That(t, valid, test.ShouldBeTrue)
		test.That(t, delta, test.ShouldEqual, 0.125)
		test.That(t, published, test.ShouldEqual, 0.125)
	})

	t.Run("valid never reverts, not even on Reset", func(t *testing.T) {
		c := New(logger, nil)
		c.Pulse(measurement.PulseEvent{Week: 2000, TOW: 0, System: measurement.TimeSystemGPS})
		c.Trigger(measurement.TriggerEvent{TLocal: 0})
		_, valid := c.Offset()
		test.That(t, valid, test.ShouldBeTrue)

		c.Reset()
		_, valid = c.Offset()
		test.That(t, valid, test.ShouldBeTrue)
	})
}
