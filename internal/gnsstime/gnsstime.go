// Package gnsstime converts GNSS receiver time-pulse timestamps, expressed
// in whatever time system the receiver reports, into unified GPS-time
// seconds. Satellite ephemeris decoding and PVT math stay out of this
// module entirely (see spec §1); this package only resolves the handful of
// fixed, well-known epoch/leap-second offsets between time systems that a
// time-pulse correlator needs.
package gnsstime

import (
	"github.com/pkg/errors"

	"github.com/gnss-vio/gvins-core/measurement"
)

const secondsPerWeek = 604800.0

// gpsUTCLeapSeconds is the GPS-UTC leap second count. It grows over time as
// leap seconds are inserted into UTC; this module pins it to the value in
// effect since the 2017 leap second and does not attempt to track future
// insertions, consistent with the spec's "drift over the session is
// assumed small" treatment of clock offsets generally.
const gpsUTCLeapSeconds = 18.0

// bdsGPSLeapOffsetSeconds is BeiDou Time's fixed offset from GPS time
// (BDT = GPST - 14s); bdsEpochWeekShift is the week-count shift between the
// BDS epoch (2006-01-01) and the GPS epoch (1980-01-06): 1356 whole weeks.
const (
	bdsGPSLeapOffsetSeconds = 14.0
	bdsEpochWeekShift       = 1356
)

// ToGPSSeconds converts a (week, tow, system, utcBased) time-pulse reading
// into unified GPS-time seconds, per the per-system rules of spec §4.1:
// GPS direct; GLO or utcBased -> UTC-to-GPS; GAL -> Galileo-to-GPS; BDS ->
// BeiDou-to-GPS; unknown system is an error the caller should warn and
// ignore the pulse on.
func ToGPSSeconds(week int, tow float64, system measurement.TimeSystem, utcBased bool) (float64, error) {
	if utcBased || system == measurement.TimeSystemGLO {
		return float64(week)*secondsPerWeek + tow + gpsUTCLeapSeconds, nil
	}
	switch system {
	case measurement.TimeSystemGPS:
		return float64(week)*secondsPerWeek + tow, nil
	case measurement.TimeSystemGAL:
		// Galileo System Time shares the GPS epoch and is steered to GPS
		// time with no whole-second offset.
		return float64(week)*secondsPerWeek + tow, nil
	case measurement.TimeSystemBDS:
		return float64(week+bdsEpochWeekShift)*secondsPerWeek + tow + bdsGPSLeapOffsetSeconds, nil
	default:
		return 0, errors.Errorf("unknown GNSS time system %v", system)
	}
}
