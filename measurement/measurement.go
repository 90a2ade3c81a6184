// Package measurement defines the wire-agnostic sensor data types that flow
// through the ingest buffers, synchronizer, and mechanizer. The transport
// layer that decodes these from sensor messages is out of scope; callers
// construct these values directly from whatever transport they use.
package measurement

import "github.com/golang/geo/r3"

// IMUSample is one inertial measurement. TLocal is seconds on the local
// (VI-sensor) clock; samples must arrive in strictly increasing TLocal
// order (I2).
type IMUSample struct {
	TLocal float64
	Accel  r3.Vector // m/s^2, sensor frame
	Gyro   r3.Vector // rad/s, sensor frame
}

// FeaturePoint is a single tracked visual feature on the normalized camera
// plane (Z is always 1), with its pixel coordinate and pixel velocity
// attached.
type FeaturePoint struct {
	ID  int // feature track id, decoded from the channel value
	Cam int // camera index, decoded from the channel value
	X   float64
	Y   float64
	Z   float64 // invariant: always 1
	U   float64
	V   float64
	VX  float64
	VY  float64
}

// DecodeChannel splits the integer channel value the front end packs
// feature-id and camera-id into: id = v/numCam, cam = v mod numCam.
func DecodeChannel(v, numCam int) (id, cam int) {
	return v / numCam, v % numCam
}

// FeatureFrame is one visual frame's worth of tracked points, all sharing a
// single local timestamp.
type FeatureFrame struct {
	TLocal float64
	Points []FeaturePoint
}

// SatObservation is a single satellite's pseudorange/Doppler observation
// within a GNSS epoch. Ephemeris decoding and satellite-position math are
// out of scope; these are exactly the fields a consumer of an epoch (the
// estimator) needs without decoding the broadcast navigation message.
type SatObservation struct {
	SatID       uint32
	Pseudorange float64 // meters
	Doppler     float64 // Hz
	CN0         float64 // dB-Hz, carrier-to-noise ratio
}

// GNSSEpoch is an ordered batch of satellite observations sharing one GPS-time
// timestamp. TGNSS is the first record's time, per the data model.
type GNSSEpoch struct {
	TGNSS float64
	Obs   []SatObservation
}

// EphemerisKind tags which broadcast variant an Ephemeris record carries.
// The core treats the payload as opaque and forwards it to the estimator.
type EphemerisKind int

const (
	EphemerisGPS EphemerisKind = iota
	EphemerisGalileo
	EphemerisBeiDou
	EphemerisGLONASS
)

// Ephemeris is a tagged, opaque broadcast ephemeris record. The core never
// inspects Payload; it is forwarded to the estimator as-is.
type Ephemeris struct {
	Kind    EphemerisKind
	Payload interface{}
}

// IonoParams is one broadcast ionospheric-correction parameter set.
type IonoParams struct {
	TLocal float64
	Params [8]float64
}

// TimeSystem identifies the time reference a GNSS time-pulse is expressed in.
type TimeSystem int

const (
	TimeSystemNone TimeSystem = iota
	TimeSystemGPS
	TimeSystemGLO
	TimeSystemGAL
	TimeSystemBDS
)

// PulseEvent is a hardware time-pulse from the GNSS receiver, latched at a
// precisely known instant on the GNSS clock.
type PulseEvent struct {
	Week     int
	TOW      float64
	System   TimeSystem
	UTCBased bool
}

// TriggerEvent is the local-clock timestamp of the exposure trigger latched
// by the imaging sensor at the same physical instant as a PulseEvent.
type TriggerEvent struct {
	TLocal float64
}
