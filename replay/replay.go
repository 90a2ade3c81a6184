// Package replay feeds a recorded or synthetic sequence of timestamped
// sensor events back into the ingest buffers at a configurable playback
// rate. It is a supplemented feature: the original ROS node could be
// driven from a rosbag, and this is the equivalent for a node with no wire
// transport (spec §1 puts transport out of scope, so replay talks to the
// same ingest API a live sensor callback would).
package replay

import (
	"context"
	"time"

	"github.com/gnss-vio/gvins-core/clock"
	"github.com/gnss-vio/gvins-core/measurement"
)

// Event is one timestamped sensor occurrence. Exactly one of the payload
// fields is set; At is the event's timestamp in seconds, and Run delivers it
// (At minus the first event's At)/Rate seconds after playback starts, so a
// recorded session can be replayed at a rate other than 1x without losing
// relative spacing.
type Event struct {
	At float64

	IMU     *measurement.IMUSample
	Feature *measurement.FeatureFrame
	GNSS    *measurement.GNSSEpoch
	Pulse   *measurement.PulseEvent
	Trigger *measurement.TriggerEvent
}

// Sink is the subset of the live ingest API a replay session drives.
type Sink struct {
	PushIMU      func(measurement.IMUSample) bool
	AdmitFeature func(measurement.FeatureFrame) bool
	PushGNSS     func(measurement.GNSSEpoch) bool
	Pulse        func(measurement.PulseEvent)
	Trigger      func(measurement.TriggerEvent)
}

// Player drives a sequence of Events into a Sink, honoring their relative
// spacing scaled by Rate (1.0 = real time, 0 or negative = as fast as
// possible).
type Player struct {
	events []Event
	sink   Sink
	rate   float64
}

// New builds a Player. events must be sorted by At.
func New(events []Event, sink Sink, rate float64) *Player {
	return &Player{events: events, sink: sink, rate: rate}
}

// Run delivers every event to the sink in order, sleeping between events to
// honor Rate, until ctx is canceled or the sequence is exhausted.
func (p *Player) Run(ctx context.Context) {
	if len(p.events) == 0 {
		return
	}
	start := p.events[0].At
	playbackStart := time.Now()

	for _, ev := range p.events {
		if ctx.Err() != nil {
			return
		}
		if p.rate > 0 {
			elapsed := (ev.At - start) / p.rate
			target := playbackStart.Add(time.Duration(elapsed * float64(time.Second)))
			if d := time.Until(target); d > 0 {
				select {
				case <-time.After(d):
				case <-ctx.Done():
					return
				}
			}
		}
		p.deliver(ev)
	}
}

func (p *Player) deliver(ev Event) {
	switch {
	case ev.IMU != nil:
		if p.sink.PushIMU != nil {
			p.sink.PushIMU(*ev.IMU)
		}
	case ev.Feature != nil:
		if p.sink.AdmitFeature != nil {
			p.sink.AdmitFeature(*ev.Feature)
		}
	case ev.GNSS != nil:
		if p.sink.PushGNSS != nil {
			p.sink.PushGNSS(*ev.GNSS)
		}
	case ev.Pulse != nil:
		if p.sink.Pulse != nil {
			p.sink.Pulse(*ev.Pulse)
		}
	case ev.Trigger != nil:
		if p.sink.Trigger != nil {
			p.sink.Trigger(*ev.Trigger)
		}
	}
}

// SinkFromCalibrator adapts a clock.Calibrator's Pulse/Trigger methods into
// a partial Sink, for replay sessions that only need to drive C1.
func SinkFromCalibrator(c *clock.Calibrator) Sink {
	return Sink{Pulse: c.Pulse, Trigger: c.Trigger}
}
