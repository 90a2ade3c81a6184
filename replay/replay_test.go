package replay

import (
	"context"
	"testing"

	"go.viam.com/test"

	"github.com/gnss-vio/gvins-core/measurement"
)

func TestPlayerDeliversEventsInOrder(t *testing.T) {
	var delivered []float64
	sink := Sink{
		PushIMU: func(s measurement.IMUSample) bool {
			delivered = append(delivered, s.TLocal)
			return true
		},
	}
	events := []Event{
		{At: 0.0, IMU: &measurement.IMUSample{TLocal: 0.0}},
		{At: 0.01, IMU: &measurement.IMUSample{TLocal: 0.01}},
		{At: 0.02, IMU: &measurement.IMUSample{TLocal: 0.02}},
	}
	p := New(events, sink, 0) // rate<=0: as fast as possible
	p.Run(context.Background())

	test.That(t, len(delivered), test.ShouldEqual, 3)
	test.That(t, delivered[0], test.ShouldEqual, 0.0)
	test.That(t, delivered[2], test.ShouldEqual, 0.02)
}

func TestPlayerStopsOnCancel(t *testing.T) {
	count := 0
	sink := Sink{PushIMU: func(s measurement.IMUSample) bool { count++; return true }}
	events := []Event{
		{At: 0.0, IMU: &measurement.IMUSample{}},
		{At: 1.0, IMU: &measurement.IMUSample{}},
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := New(events, sink, 1.0)
	p.Run(ctx)
	test.That(t, count, test.ShouldEqual, 0)
}

func TestPlayerDispatchesByPayloadKind(t *testing.T) {
	var gotGNSS, gotFeature bool
	sink := Sink{
		PushGNSS:     func(measurement.GNSSEpoch) bool { gotGNSS = true; return true },
		AdmitFeature: func(measurement.FeatureFrame) bool { gotFeature = true; return true },
	}
	events := []Event{
		{At: 0, GNSS: &measurement.GNSSEpoch{}},
		{At: 0.1, Feature: &measurement.FeatureFrame{}},
	}
	New(events, sink, 0).Run(context.Background())
	test.That(t, gotGNSS, test.ShouldBeTrue)
	test.That(t, gotFeature, test.ShouldBeTrue)
}
